// Package wire encodes controller commands and decodes target events.
//
// Both directions use msgpack arrays: a verb or kind name followed by
// positional fields.
package wire

import (
	"bytes"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// Command is a verb plus its ordered arguments.
type Command struct {
	Verb string
	Args []any
}

// NewCommand builds a Command.
func NewCommand(verb string, args ...any) Command {
	return Command{Verb: verb, Args: args}
}

// Event is a decoded tuple from the target.
type Event struct {
	Kind   Kind
	Name   string // name as received, kept for unknown kinds
	Fields []any
}

// Encode packs cmd as [verb, args...] using the most compact integer forms.
func Encode(cmd Command) ([]byte, error) {
	tuple := make([]any, 0, len(cmd.Args)+1)
	tuple = append(tuple, cmd.Verb)
	tuple = append(tuple, cmd.Args...)

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(tuple); err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Verb, err)
	}
	return buf.Bytes(), nil
}

// Decode unpacks the first msgpack object in payload. It reports false for
// empty, truncated or malformed payloads, which callers skip.
func Decode(payload []byte) (Event, bool) {
	if len(payload) == 0 {
		return Event{}, false
	}
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return Event{}, false
	}
	tuple, ok := v.([]interface{})
	if !ok || len(tuple) == 0 {
		return Event{}, false
	}
	name, ok := asString(tuple[0])
	if !ok {
		return Event{}, false
	}
	fields := make([]any, len(tuple)-1)
	for i, f := range tuple[1:] {
		fields[i] = normalize(f)
	}
	return Event{Kind: ParseKind(name), Name: name, Fields: fields}, true
}

// Int returns field i as an integer, or 0 when absent or not numeric.
func (e Event) Int(i int) int64 {
	if i < 0 || i >= len(e.Fields) {
		return 0
	}
	switch v := e.Fields[i].(type) {
	case int64:
		return v
	case uint64:
		if v > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(v)
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case float32:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// String returns field i as a string. Non-string values are formatted.
func (e Event) String(i int) string {
	if i < 0 || i >= len(e.Fields) {
		return ""
	}
	if s, ok := asString(e.Fields[i]); ok {
		return s
	}
	if e.Fields[i] == nil {
		return ""
	}
	return fmt.Sprint(e.Fields[i])
}

// Bool returns field i as a boolean. Numbers are true when non-zero.
func (e Event) Bool(i int) bool {
	if i < 0 || i >= len(e.Fields) {
		return false
	}
	if b, ok := e.Fields[i].(bool); ok {
		return b
	}
	return e.Int(i) != 0
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

// normalize turns bin payloads into strings and every signed integer width
// into int64, recursively through arrays. Unsigned values that fit are
// widened to int64 too.
func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t)
		}
		return t
	case []interface{}:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normalize(x)
		}
		return out
	}
	return v
}
