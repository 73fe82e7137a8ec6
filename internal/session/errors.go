package session

import (
	"errors"
	"fmt"

	"github.com/vburojevic/calltap/internal/ipc"
)

var (
	// ErrNoProcess means the pid is not valid or does not exist.
	ErrNoProcess = errors.New("invalid pid")

	// ErrAlreadyTraced means another controller owns the target.
	ErrAlreadyTraced = errors.New("process already being traced")

	// ErrTimeout means an awaited reply did not arrive in time.
	ErrTimeout = errors.New("timed out")

	// ErrInterrupted is returned by Run when the operator interrupts it.
	ErrInterrupted = errors.New("interrupted")

	// ErrForkFailed means the target replied that it could not fork.
	ErrForkFailed = errors.New("process could not fork")

	// ErrNotAttached is returned for commands issued outside an attached session.
	ErrNotAttached = errors.New("not attached")

	// Re-exported transport conditions.
	ErrGone         = ipc.ErrGone
	ErrPermission   = ipc.ErrPermission
	ErrNotListening = ipc.ErrNotListening
)

// AttachError reports why a session could not attach to a process.
type AttachError struct {
	PID int
	Err error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("attach to process %d: %v", e.PID, e.Err)
}

func (e *AttachError) Unwrap() error {
	return e.Err
}
