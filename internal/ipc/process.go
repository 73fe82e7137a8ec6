package ipc

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Process signals a target by pid.
type Process struct {
	PID int
}

// Nudge asks the target to poll its command queue and flush its event buffer.
func (p Process) Nudge() error {
	return p.signal(unix.SIGURG)
}

// Probe is a zero-effect liveness check.
func (p Process) Probe() error {
	return p.signal(0)
}

func (p Process) signal(sig unix.Signal) error {
	err := unix.Kill(p.PID, sig)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ESRCH):
		return fmt.Errorf("pid %d: %w", p.PID, ErrGone)
	case errors.Is(err, unix.EPERM):
		return fmt.Errorf("pid %d: %w", p.PID, ErrPermission)
	}
	return fmt.Errorf("signal pid %d: %w", p.PID, err)
}
