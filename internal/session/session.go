// Package session drives the attach protocol with one traced process and
// feeds its events to a renderer.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/vburojevic/calltap/internal/ipc"
	"github.com/vburojevic/calltap/internal/metrics"
	"github.com/vburojevic/calltap/internal/render"
	"github.com/vburojevic/calltap/internal/wire"
)

const (
	DefaultTimeout = 5 * time.Second
	ForkTimeout    = 30 * time.Second

	receiveTimeout = time.Second
	drainBatch     = 50
	duringGCPause  = 10 * time.Millisecond
	openAttempts   = 5
	openPause      = 150 * time.Millisecond
)

// CommandSender delivers commands to the target.
type CommandSender interface {
	Send(cmd wire.Command) error
}

// EventSource yields raw event datagrams.
type EventSource interface {
	Receive(timeout time.Duration) ([]byte, error)
	TryReceive() ([]byte, error)
	Close() error
}

// Target signals the traced process.
type Target interface {
	Nudge() error
	Probe() error
}

// Options configures a Session.
type Options struct {
	Timeout        time.Duration
	Render         render.Options
	SocketTemplate string
	Clock          clock.Clock
	Interrupts     <-chan os.Signal
	Log            *zap.SugaredLogger
	Metrics        *metrics.Metrics
	// SelfPID is the pid announced in attach; defaults to os.Getpid().
	SelfPID int
}

// Session is the controller side of one traced process.
type Session struct {
	pid  int
	self int

	cmds     CommandSender
	events   EventSource
	target   Target
	renderer *render.Renderer

	timeout     time.Duration
	pollTimeout time.Duration
	clock       clock.Clock
	log         *zap.SugaredLogger
	metrics     *metrics.Metrics
	intr        <-chan os.Signal

	state        State
	foreignOwner int

	forked    bool
	forkedPID int
	evaled    bool
	evalRes   string

	closeOnce sync.Once
	closeErr  error
}

// New opens the channels to pid and attaches to it. Trace output goes to out.
func New(pid int, out io.Writer, opts Options) (*Session, error) {
	if pid <= 0 {
		return nil, &AttachError{PID: pid, Err: ErrNoProcess}
	}
	target := ipc.Process{PID: pid}
	if err := target.Probe(); err != nil {
		if errors.Is(err, ipc.ErrGone) {
			err = ErrNoProcess
		}
		return nil, &AttachError{PID: pid, Err: err}
	}

	events, err := ipc.ListenEvents(pid, opts.SocketTemplate)
	if err != nil {
		return nil, &AttachError{PID: pid, Err: err}
	}

	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	cmds, err := openCommands(pid, target, opts.Clock)
	if err != nil {
		events.Close()
		return nil, &AttachError{PID: pid, Err: err}
	}

	s := newSession(pid, cmds, events, target, out, opts)
	if err := s.Attach(); err != nil {
		events.Close()
		return nil, err
	}
	return s, nil
}

// openCommands nudges the target until it has created its queues.
func openCommands(pid int, target Target, clk clock.Clock) (*ipc.CommandChannel, error) {
	var ch *ipc.CommandChannel
	op := func() error {
		if err := target.Nudge(); err != nil {
			return backoff.Permanent(err)
		}
		clk.Sleep(openPause)

		var err error
		ch, err = ipc.OpenCommandChannel(pid)
		if err != nil && !errors.Is(err, ipc.ErrNotListening) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, openAttempts-1)); err != nil {
		return nil, err
	}
	return ch, nil
}

func newSession(pid int, cmds CommandSender, events EventSource, target Target, out io.Writer, opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.SelfPID == 0 {
		opts.SelfPID = os.Getpid()
	}
	ropts := opts.Render
	if ropts.Log == nil {
		ropts.Log = opts.Log
	}

	return &Session{
		pid:         pid,
		self:        opts.SelfPID,
		cmds:        cmds,
		events:      events,
		target:      target,
		renderer:    render.New(out, ropts),
		timeout:     opts.Timeout,
		pollTimeout: receiveTimeout,
		clock:       opts.Clock,
		log:         opts.Log,
		metrics:     opts.Metrics,
		intr:        opts.Interrupts,
	}
}

// PID returns the traced pid.
func (s *Session) PID() int { return s.pid }

// State returns the current attach state.
func (s *Session) State() State { return s.state }

// Renderer returns the renderer that owns the trace output.
func (s *Session) Renderer() *render.Renderer { return s.renderer }

// WaitFor polls pred every quantum for up to timeout while processing events.
func (s *Session) WaitFor(reason string, timeout time.Duration, pred func() bool) bool {
	w := Waiter{
		Clock:      s.clock,
		Quantum:    DefaultQuantum,
		Drain:      s.drain,
		Nudge:      s.nudge,
		Interrupts: s.intr,
		Log:        s.log,
	}
	return w.Wait(reason, timeout, pred)
}

// Attach announces this controller to the target and waits for it to
// confirm. A confirmation naming another controller fails the attach and
// leaves the state untouched.
func (s *Session) Attach() error {
	if s.state == Gone {
		return &AttachError{PID: s.pid, Err: ErrGone}
	}
	s.state = Attaching
	s.foreignOwner = 0

	if err := s.send(wire.NewCommand("attach", s.self)); err != nil {
		if s.state != Gone {
			s.state = Detached
		}
		return &AttachError{PID: s.pid, Err: err}
	}

	s.WaitFor("to attach", s.timeout, func() bool {
		return s.state == Attached || s.foreignOwner != 0
	})

	switch {
	case s.state == Attached:
		s.log.Infof("attached to process %d", s.pid)
		return nil
	case s.foreignOwner != 0:
		s.state = Detached
		return &AttachError{PID: s.pid, Err: fmt.Errorf("%w (%d != %d)", ErrAlreadyTraced, s.foreignOwner, s.self)}
	case s.state == Gone:
		return &AttachError{PID: s.pid, Err: ErrGone}
	}
	s.state = Detached
	return &AttachError{PID: s.pid, Err: ErrNotListening}
}

// Detach asks the target to stop tracing and waits for it to confirm. The
// outcome is logged; it never fails.
func (s *Session) Detach() {
	if s.state == Gone || s.state == Detached {
		return
	}
	s.state = Detaching

	err := s.send(wire.NewCommand("detach"))
	s.renderer.Newline()
	if errors.Is(err, ipc.ErrGone) || s.state == Gone {
		s.state = Gone
		s.log.Infof("process %d is gone", s.pid)
		return
	}
	if err != nil {
		s.log.Debugw("detach", "pid", s.pid, "error", err)
	}

	ok := s.WaitFor("to detach cleanly", s.timeout, func() bool { return s.state == Detached })
	s.renderer.Newline()
	switch {
	case ok:
		s.log.Infof("detached from process %d", s.pid)
	case s.state == Gone:
		s.log.Infof("process %d is gone", s.pid)
	default:
		s.state = Detached
		s.log.Warnf("could not detach cleanly from process %d", s.pid)
	}
}

// Close detaches if needed and releases the event channel. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.state == Attached || s.state == Attaching || s.state == Detaching {
			s.Detach()
		}
		s.renderer.Newline()
		s.closeErr = s.events.Close()
	})
	return s.closeErr
}

// send transmits cmd, nudges the target and drains pending events.
func (s *Session) send(cmd wire.Command) error {
	if s.state == Gone {
		return ipc.ErrGone
	}
	if err := s.cmds.Send(cmd); err != nil {
		if errors.Is(err, ipc.ErrGone) {
			s.state = Gone
		}
		return err
	}
	s.metrics.Command(s.pid, cmd.Verb)

	if err := s.nudge(); err != nil {
		return err
	}
	s.drain()
	return nil
}

// nudge signals the target and marks the session Gone when it has exited.
func (s *Session) nudge() error {
	err := s.target.Nudge()
	if errors.Is(err, ipc.ErrGone) {
		s.state = Gone
	}
	return err
}

// drain processes up to drainBatch queued events without blocking.
func (s *Session) drain() {
	for i := 0; i < drainBatch; i++ {
		payload, err := s.events.TryReceive()
		if err != nil {
			s.log.Debugw("drain events", "pid", s.pid, "error", err)
			return
		}
		if payload == nil {
			return
		}
		s.process(payload)
	}
}

// process applies one raw event.
func (s *Session) process(payload []byte) {
	ev, ok := wire.Decode(payload)
	if !ok {
		s.log.Debugw("skipping undecodable event", "pid", s.pid, "bytes", len(payload))
		return
	}
	s.metrics.Event(s.pid, ev.Kind.String())

	switch ev.Kind {
	case wire.KindDuringGC:
		s.clock.Sleep(duringGCPause)
		if err := s.nudge(); err != nil {
			s.log.Debugw("nudge after gc", "pid", s.pid, "error", err)
		}
		return

	case wire.KindAttached:
		owner := int(ev.Int(0))
		if owner != s.self {
			s.foreignOwner = owner
			s.log.Warnf("process %d is already being traced (%d != %d)", s.pid, owner, s.self)
			return
		}
		s.state = Attached
		return

	case wire.KindDetached:
		owner := int(ev.Int(0))
		if owner != s.self {
			s.log.Warnf("process %d detached %d, but we are %d", s.pid, owner, s.self)
			return
		}
		s.state = Detached
		return
	}

	if !s.state.receiving() {
		s.log.Warnf("got %s before attaching", ev.Name)
		return
	}

	switch ev.Kind {
	case wire.KindForked:
		s.forked = true
		s.forkedPID = int(ev.Int(0))
	case wire.KindEvaled:
		s.evaled = true
		s.evalRes = ev.String(0)
	default:
		s.renderer.Render(ev)
		s.metrics.Nesting(s.pid, s.renderer.Nesting())
	}
}
