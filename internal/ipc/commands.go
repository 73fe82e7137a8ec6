package ipc

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/cenkalti/backoff/v4"

	"github.com/vburojevic/calltap/internal/wire"
)

// maxInterruptRetries bounds how often an EINTR'd send is retried.
const maxInterruptRetries = 16

// frameWriter writes one raw frame to the target's command transport.
type frameWriter interface {
	writeFrame(frame []byte) error
}

// CommandChannel sends encoded commands to one target.
type CommandChannel struct {
	w        frameWriter
	maxFrame int
}

// OpenCommandChannel attaches to the command queue of pid.
func OpenCommandChannel(pid int) (*CommandChannel, error) {
	q, err := openQueue(-pid)
	if err != nil {
		return nil, err
	}
	return &CommandChannel{w: q, maxFrame: MaxFrameSize}, nil
}

// Send encodes cmd and writes it to the target. Oversized frames fail with
// ErrFrameTooLarge and nothing is transmitted.
func (c *CommandChannel) Send(cmd wire.Command) error {
	frame, err := wire.Encode(cmd)
	if err != nil {
		return err
	}
	if len(frame) > c.maxFrame {
		return fmt.Errorf("%s (%d > %d bytes): %w", cmd.Verb, len(frame), c.maxFrame, ErrFrameTooLarge)
	}

	op := func() error {
		err := c.w.writeFrame(frame)
		if err == nil || errors.Is(err, syscall.EINTR) {
			return err
		}
		return backoff.Permanent(err)
	}
	err = backoff.Retry(op, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, maxInterruptRetries))
	if err != nil {
		return classifyQueueError(err)
	}
	return nil
}

// classifyQueueError maps errnos that mean the queue was torn down.
func classifyQueueError(err error) error {
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.EIDRM) {
		return fmt.Errorf("%w: %w", ErrGone, err)
	}
	return err
}
