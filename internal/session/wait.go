package session

import (
	"errors"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/calltap/internal/ipc"
)

// DefaultQuantum is the polling interval of a Waiter.
const DefaultQuantum = 50 * time.Millisecond

// Waiter polls a predicate in fixed quanta, draining events and nudging the
// target between polls.
type Waiter struct {
	Clock   clock.Clock
	Quantum time.Duration
	// Drain processes pending events without blocking.
	Drain func()
	// Nudge re-signals the target. ipc.ErrGone ends the wait.
	Nudge func() error
	// Interrupts are reported and the wait resumes.
	Interrupts <-chan os.Signal
	Log        *zap.SugaredLogger
}

// Wait polls pred at most timeout/quantum times and reports whether it held.
func (w Waiter) Wait(reason string, timeout time.Duration, pred func() bool) bool {
	quantum := w.Quantum
	if quantum <= 0 {
		quantum = DefaultQuantum
	}
	clk := w.Clock
	if clk == nil {
		clk = clock.New()
	}

	remaining := timeout
	for polls := int(timeout / quantum); polls > 0; polls-- {
		if w.Drain != nil {
			w.Drain()
		}
		w.sleep(clk, quantum, reason, remaining)
		if w.Nudge != nil {
			if err := w.Nudge(); errors.Is(err, ipc.ErrGone) {
				return false
			}
		}
		remaining -= quantum

		if pred() {
			return true
		}
	}
	return false
}

func (w Waiter) sleep(clk clock.Clock, d time.Duration, reason string, remaining time.Duration) {
	timer := clk.Timer(d)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return
		case <-w.Interrupts:
			if w.Log != nil {
				w.Log.Warnf("waiting %s (%ds left)", reason, int(remaining.Seconds()))
			}
		}
	}
}
