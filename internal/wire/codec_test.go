package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	frame, err := Encode(NewCommand("call", int64(1700000000123456), 3, 42, true, -1))
	require.NoError(t, err)

	ev, ok := Decode(frame)
	require.True(t, ok)
	assert.Equal(t, KindCall, ev.Kind)
	assert.Equal(t, "call", ev.Name)
	require.Len(t, ev.Fields, 5)
	assert.Equal(t, int64(1700000000123456), ev.Int(0))
	assert.Equal(t, int64(3), ev.Int(1))
	assert.Equal(t, int64(42), ev.Int(2))
	assert.True(t, ev.Bool(3))
	assert.Equal(t, int64(-1), ev.Int(4))
}

func TestDecodeNestedArraysAndStrings(t *testing.T) {
	frame, err := Encode(NewCommand("evaled", "ok", []any{1, "two", []any{false}}))
	require.NoError(t, err)

	ev, ok := Decode(frame)
	require.True(t, ok)
	assert.Equal(t, KindEvaled, ev.Kind)
	assert.Equal(t, "ok", ev.String(0))

	nested, ok := ev.Fields[1].([]any)
	require.True(t, ok)
	require.Len(t, nested, 3)
	assert.EqualValues(t, 1, nested[0])
	assert.Equal(t, "two", nested[1])
	assert.Equal(t, []any{false}, nested[2])
}

func TestDecodeBinFieldsAsStrings(t *testing.T) {
	// the target packs every string as msgpack bin
	frame, err := msgpack.Marshal([]any{[]byte("mid"), 7, []byte("sleep")})
	require.NoError(t, err)

	ev, ok := Decode(frame)
	require.True(t, ok)
	assert.Equal(t, KindMethod, ev.Kind)
	assert.Equal(t, int64(7), ev.Int(0))
	assert.Equal(t, "sleep", ev.String(1))
}

func TestDecodeCompactIntegers(t *testing.T) {
	tests := []struct {
		name  string
		value int64
	}{
		{"positive fixint", 3},
		{"fixint upper bound", 127},
		{"uint8", 200},
		{"uint16", 4321},
		{"uint32", 70000},
		{"negative fixint", -1},
		{"int8", -100},
		{"int16", -200},
		{"int32", -70000},
		{"int64", 1 << 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := msgpack.NewEncoder(&buf)
			enc.UseCompactInts(true)
			require.NoError(t, enc.Encode([]any{"mid", tt.value, "name", []any{tt.value}}))

			ev, ok := Decode(buf.Bytes())
			require.True(t, ok)
			assert.Equal(t, tt.value, ev.Int(0))
			assert.Equal(t, "name", ev.String(1))
			assert.Equal(t, []any{tt.value}, ev.Fields[2])
		})
	}
}

func TestEventIntAcceptsEveryWidth(t *testing.T) {
	ev := Event{Fields: []any{int8(-3), int16(-300), uint8(250), uint16(60000), int32(-5), uint32(5), float32(2)}}
	assert.Equal(t, int64(-3), ev.Int(0))
	assert.Equal(t, int64(-300), ev.Int(1))
	assert.Equal(t, int64(250), ev.Int(2))
	assert.Equal(t, int64(60000), ev.Int(3))
	assert.Equal(t, int64(-5), ev.Int(4))
	assert.Equal(t, int64(5), ev.Int(5))
	assert.Equal(t, int64(2), ev.Int(6))
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	full, err := Encode(NewCommand("klass", 1, "String"))
	require.NoError(t, err)
	notArray, err := msgpack.Marshal("attached")
	require.NoError(t, err)
	emptyArray, err := msgpack.Marshal([]any{})
	require.NoError(t, err)
	numericHead, err := msgpack.Marshal([]any{1, 2})
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"truncated", full[:len(full)-1]},
		{"not an array", notArray},
		{"empty array", emptyArray},
		{"numeric kind", numericHead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Decode(tt.payload)
			assert.False(t, ok)
		})
	}
}

func TestDecodeUnknownKindKeepsName(t *testing.T) {
	frame, err := Encode(NewCommand("mystery", 1))
	require.NoError(t, err)

	ev, ok := Decode(frame)
	require.True(t, ok)
	assert.Equal(t, KindUnknown, ev.Kind)
	assert.Equal(t, "mystery", ev.Name)
}

func TestEventAccessorsTolerateMissingFields(t *testing.T) {
	ev := Event{Kind: KindReturn}
	assert.Zero(t, ev.Int(0))
	assert.Empty(t, ev.String(3))
	assert.False(t, ev.Bool(1))
	assert.Zero(t, ev.Int(-1))
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input    string
		expected Kind
	}{
		{"during_gc", KindDuringGC},
		{"duringGc", KindDuringGC},
		{"gc_start", KindGCStart},
		{"gcStart", KindGCStart},
		{"gc_end", KindGCEnd},
		{"gcEnd", KindGCEnd},
		{"gc", KindGC},
		{"mid", KindMethod},
		{"klass", KindClass},
		{"cslow", KindCSlow},
		{"remove", KindRemove},
		{"unknown", KindUnknown},
		{"", KindUnknown},
		{"CALL", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseKind(tt.input))
		})
	}
}

func TestKindStringIsWireName(t *testing.T) {
	for k, name := range kindNames {
		if k == KindUnknown {
			continue
		}
		assert.Equal(t, k, ParseKind(k.String()), name)
	}
	assert.Equal(t, "unknown", Kind(999).String())
}
