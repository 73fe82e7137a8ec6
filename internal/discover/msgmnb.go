package discover

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// RecommendedMsgmnb is the queue size that keeps busy targets from
// dropping events.
const RecommendedMsgmnb = 1024 * 1024

const msgmnbSysctl = "kernel.msgmnb"

// MsgmnbCheck is the result of comparing kernel.msgmnb with the
// recommended size.
type MsgmnbCheck struct {
	Current     int
	Recommended int
}

// OK reports whether the queue size is large enough.
func (c MsgmnbCheck) OK() bool {
	return c.Current >= c.Recommended
}

// Command returns the sysctl invocation that raises the limit.
func (c MsgmnbCheck) Command() string {
	return fmt.Sprintf("sysctl %s=%d", msgmnbSysctl, c.Recommended)
}

// Advice describes how to fix a small queue size.
func (c MsgmnbCheck) Advice(root bool) string {
	size := humanize.IBytes(uint64(c.Current))
	if root {
		return fmt.Sprintf("running `%s` to prevent losing events (currently: %s)", c.Command(), size)
	}
	return fmt.Sprintf("run `sudo %s` to prevent losing events (currently: %s)", c.Command(), size)
}
