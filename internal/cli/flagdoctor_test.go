package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTraceFlags(t *testing.T) {
	valid := func() TraceCmd {
		return TraceCmd{PID: []int{42}, Methods: []string{"Foo#bar"}, Prefix: 2, Timeout: 5 * time.Second}
	}

	tests := []struct {
		name   string
		modify func(c *TraceCmd)
		code   string
	}{
		{name: "valid", modify: func(c *TraceCmd) {}},
		{name: "ps instead of pid", modify: func(c *TraceCmd) { c.PID, c.Ps = nil, "puma" }},
		{name: "no target", modify: func(c *TraceCmd) { c.PID = nil }, code: "INVALID_PID"},
		{name: "pid and ps", modify: func(c *TraceCmd) { c.Ps = "puma" }, code: "INVALID_FLAGS"},
		{name: "negative pid", modify: func(c *TraceCmd) { c.PID = []int{-1} }, code: "INVALID_PID"},
		{name: "no mode", modify: func(c *TraceCmd) { c.Methods = nil }, code: "INVALID_FLAGS"},
		{name: "gc only", modify: func(c *TraceCmd) { c.Methods, c.GC = nil, true }},
		{name: "tracer files only", modify: func(c *TraceCmd) { c.Methods, c.Tracers = nil, []string{"io"} }},
		{name: "slow methods only", modify: func(c *TraceCmd) { c.Methods, c.SlowMethods = nil, []string{"Foo#bar"} }},
		{name: "negative slow", modify: func(c *TraceCmd) { c.Slow = -5 }, code: "INVALID_FLAGS"},
		{name: "slow and slowcpu", modify: func(c *TraceCmd) { c.Slow, c.SlowCPU = 10, 10 }, code: "INVALID_FLAGS"},
		{name: "negative prefix", modify: func(c *TraceCmd) { c.Prefix = -1 }, code: "INVALID_FLAGS"},
		{name: "zero timeout", modify: func(c *TraceCmd) { c.Timeout = 0 }, code: "INVALID_FLAGS"},
		{name: "append without output", modify: func(c *TraceCmd) { c.Append = true }, code: "INVALID_FLAGS"},
		{name: "append with output", modify: func(c *TraceCmd) { c.Append, c.Output = true, "trace.log" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			globals, _, stderr := testGlobals("text")
			c := valid()
			tt.modify(&c)

			err := validateTraceFlags(globals, &c)
			if tt.code == "" {
				require.NoError(t, err)
				assert.Empty(t, stderr.String())
				return
			}
			require.Error(t, err)
			assert.Contains(t, stderr.String(), "Error ["+tt.code+"]")
		})
	}
}
