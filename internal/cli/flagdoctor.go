package cli

// validateTraceFlags centralizes the trace flag combinations that cannot work.
func validateTraceFlags(globals *Globals, c *TraceCmd) error {
	if len(c.PID) == 0 && c.Ps == "" {
		return outputErrorCommon(globals, "INVALID_PID", "no process to trace", "pass --pid PID or --ps PATTERN")
	}
	if len(c.PID) > 0 && c.Ps != "" {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--pid cannot be combined with --ps", "drop one of them")
	}
	for _, pid := range c.PID {
		if pid <= 0 {
			return outputErrorCommon(globals, "INVALID_PID", "invalid pid", "pids are positive integers")
		}
	}
	if !c.Firehose && c.Slow == 0 && c.SlowCPU == 0 && !c.GC &&
		len(c.Methods) == 0 && len(c.Tracers) == 0 && len(c.SlowMethods) == 0 {
		return outputErrorCommon(globals, "INVALID_FLAGS",
			"--slow, --slowcpu, --gc, --firehose, --methods, --slow-methods or --config required",
			"try calltap trace --help")
	}
	if c.Slow < 0 || c.SlowCPU < 0 {
		return outputErrorCommon(globals, "INVALID_FLAGS", "slow thresholds must be positive", "pass --slow MS with MS > 0")
	}
	if c.Slow > 0 && c.SlowCPU > 0 {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--slow cannot be combined with --slowcpu", "pick wall clock or cpu time")
	}
	if c.Prefix < 0 {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--prefix must not be negative")
	}
	if c.Timeout <= 0 {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--timeout must be positive")
	}
	if c.Append && c.Output == "" {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--append requires --output", "add --output FILE or drop --append")
	}
	return nil
}
