package session

import (
	"fmt"

	"github.com/vburojevic/calltap/internal/selector"
	"github.com/vburojevic/calltap/internal/wire"
)

// Add registers tracers for the given selectors. Every selector and
// expression is checked before anything is sent.
func (s *Session) Add(selectors ...string) error {
	return s.add(false, selectors)
}

// AddSlow restricts slow call sampling to the given selectors.
func (s *Session) AddSlow(selectors ...string) error {
	return s.add(true, selectors)
}

func (s *Session) add(slow bool, raw []string) error {
	sels, err := selector.ParseAll(raw)
	if err != nil {
		return err
	}
	for _, sel := range sels {
		if err := s.command("add", sel.Method, slow); err != nil {
			return fmt.Errorf("add %s: %w", sel.Method, err)
		}
		for _, expr := range sel.Exprs {
			if err := s.command("addexpr", expr); err != nil {
				return fmt.Errorf("add expression %q: %w", expr, err)
			}
		}
	}
	return nil
}

// Watch samples calls slower than msec milliseconds, measured in CPU time
// when cpuOnly is set.
func (s *Session) Watch(msec int, cpuOnly bool) error {
	if msec <= 0 {
		return fmt.Errorf("slow threshold must be positive, got %d", msec)
	}
	s.renderer.SetWatchSlow(true)
	verb := "watch"
	if cpuOnly {
		verb = "watchcpu"
	}
	return s.command(verb, msec)
}

// Firehose traces every method call.
func (s *Session) Firehose() error { return s.command("firehose") }

// DevMode turns on the target's development mode.
func (s *Session) DevMode() error { return s.command("devmode") }

// GC turns on garbage collection tracing.
func (s *Session) GC() error { return s.command("gc") }

// Fork asks the target to fork a busy looping copy of itself and returns
// the copy's pid.
func (s *Session) Fork() (int, error) {
	s.forked, s.forkedPID = false, 0
	if err := s.command("fork"); err != nil {
		return 0, err
	}
	if !s.WaitFor("for fork", ForkTimeout, func() bool { return s.forked }) {
		s.log.Warnf("timed out waiting for fork")
		return 0, fmt.Errorf("fork: %w", ErrTimeout)
	}
	if s.forkedPID <= 0 {
		return 0, ErrForkFailed
	}
	return s.forkedPID, nil
}

// Eval evaluates code inside the target and returns the printed result.
func (s *Session) Eval(code string) (string, error) {
	if err := selector.Validate(code); err != nil {
		return "", err
	}
	s.evaled, s.evalRes = false, ""
	if err := s.command("eval", code); err != nil {
		return "", err
	}
	if !s.WaitFor("for eval response", s.timeout, func() bool { return s.evaled }) {
		s.log.Warnf("timed out waiting for eval response")
		return "", fmt.Errorf("eval: %w", ErrTimeout)
	}
	res := s.evalRes
	s.evaled, s.evalRes = false, ""
	return res, nil
}

// Println writes a line to the trace output.
func (s *Session) Println(line string) {
	s.renderer.Println(line)
}

func (s *Session) command(verb string, args ...any) error {
	if s.state != Attached {
		if s.state == Gone {
			return ErrGone
		}
		return ErrNotAttached
	}
	return s.send(wire.NewCommand(verb, args...))
}
