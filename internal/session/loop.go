package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/vburojevic/calltap/internal/ipc"
)

// Run processes events until the target goes away, ctx is cancelled or an
// interrupt arrives. A vanished target ends the loop without error.
func (s *Session) Run(ctx context.Context) error {
	for {
		if s.state == Gone {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.intr:
			return ErrInterrupted
		default:
		}

		payload, err := s.events.Receive(s.pollTimeout)
		if err != nil {
			return fmt.Errorf("receive events: %w", err)
		}
		if payload == nil {
			if err := s.target.Probe(); errors.Is(err, ipc.ErrGone) {
				s.state = Gone
				s.renderer.Newline()
				s.log.Infof("process %d is gone", s.pid)
				return nil
			}
			continue
		}

		s.process(payload)
		s.drain()
		if err := s.renderer.Err(); err != nil {
			return fmt.Errorf("write trace: %w", err)
		}
	}
}
