package flamegraph

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func convert(t *testing.T, input string) string {
	t.Helper()
	c, err := Build("flamegraph")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, c.Convert(strings.NewReader(input), &out))
	return out.String()
}

func TestConvertTopLevelCalls(t *testing.T) {
	got := convert(t, "IO.select <0.000044>\nIO.select <0.000055>\n")
	assert.Equal(t, "IO.select 44\nIO.select 55\n", got)
}

func TestConvertNestedTrace(t *testing.T) {
	input := `IO.select <0.000044>
IO.select <0.000055>

Puma::Client#eagerly_finish
  IO.select <0.000010>
  Puma::Client#try_to_finish
    BasicSocket#read_nonblock
      BasicSocket#__read_nonblock <0.000018>
    BasicSocket#read_nonblock <0.000029>
  Puma::Client#try_to_finish <0.000153>
Puma::Client#eagerly_finish <0.000179>
Puma::ThreadPool#<<
  Thread::Mutex#synchronize
    Thread::ConditionVariable#signal <0.000008>
  Thread::Mutex#synchronize <0.000027>
Puma::ThreadPool#<< <0.000035>
`
	want := `IO.select 44
IO.select 55
Puma::Client#eagerly_finish;IO.select 10
Puma::Client#eagerly_finish;Puma::Client#try_to_finish;BasicSocket#read_nonblock;BasicSocket#__read_nonblock 18
Puma::ThreadPool#<<;Thread::Mutex#synchronize;Thread::ConditionVariable#signal 8
`
	if diff := cmp.Diff(want, convert(t, input)); diff != "" {
		t.Errorf("converted output mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertEdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "whitespace only", input: "   \n\t\n", want: ""},
		{name: "rounds to microseconds", input: "a <0.0000196>\n", want: "a 20\n"},
		{name: "spaces inside brackets", input: "a < 0.000100>\n", want: "a 100\n"},
		{name: "arguments kept in name", input: "a(x=1, y=<2>) <0.000003>\n", want: "a(x=1, y=<2>) 3\n"},
		{name: "deeper than stack", input: "    orphan <0.000001>\n", want: ""},
		{name: "no trailing newline", input: "a\n  b <0.000001>", want: "a;b 1\n"},
		{
			name:  "sibling header after footer",
			input: "a\n  b <0.000001>\na <0.000002>\nc\n  d <0.000004>\n",
			want:  "a;b 1\nc;d 4\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, convert(t, tt.input))
		})
	}
}

func TestConvertInvalidDuration(t *testing.T) {
	c := Flamegraph{}
	err := c.Convert(strings.NewReader("a <soon>\n"), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestBuildUnknownType(t *testing.T) {
	_, err := Build("speedscope")
	assert.EqualError(t, err, "unknown type: speedscope")
}
