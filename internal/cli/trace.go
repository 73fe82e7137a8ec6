package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vburojevic/calltap/internal/discover"
	"github.com/vburojevic/calltap/internal/metrics"
	"github.com/vburojevic/calltap/internal/output"
	"github.com/vburojevic/calltap/internal/render"
	"github.com/vburojevic/calltap/internal/selector"
	"github.com/vburojevic/calltap/internal/session"
)

// TraceCmd attaches to one or more processes and prints their method calls
type TraceCmd struct {
	PID         []int         `short:"p" name:"pid" sep:"," help:"Process id to trace (repeatable, or comma separated)"`
	Ps          string        `name:"ps" placeholder:"REGEX" help:"Trace processes whose 'user pid cmdline' matches REGEX"`
	Firehose    bool          `short:"f" help:"Trace every method call"`
	Slow        int           `short:"s" placeholder:"MS" help:"Watch for method calls slower than MS milliseconds"`
	SlowCPU     int           `name:"slowcpu" placeholder:"MS" help:"Watch for method calls using more than MS milliseconds of CPU time"`
	SlowMethods []string      `name:"slow-methods" sep:"none" help:"Restrict slow call watching to this selector (repeatable)"`
	Methods     []string      `short:"m" sep:"none" help:"Selector to trace (repeatable), e.g. 'Foo#bar(x, @y)' or 'Kernel#sleep'"`
	Tracers     []string      `short:"c" name:"config" placeholder:"FILE" help:"Tracer files with one selector per line (bundled: io, eventmachine, activerecord)"`
	GC          bool          `name:"gc" help:"Trace garbage collection"`
	DevMode     bool          `name:"devmode" help:"Enable the target's development mode"`
	StartTime   bool          `short:"t" name:"start-time" default:"${config_show_time}" negatable:"" help:"Prefix lines with the call start time"`
	NoDuration  bool          `short:"n" name:"no-duration" default:"${config_no_duration}" help:"Hide call durations"`
	Prefix      int           `short:"r" default:"${config_prefix}" help:"Spaces of indentation per nesting level"`
	Output      string        `short:"o" default:"${config_output}" placeholder:"FILE" help:"Write the trace to FILE (FILE.PID when tracing several processes)"`
	Append      bool          `short:"a" default:"${config_append}" help:"Append to --output instead of truncating it"`
	Timeout     time.Duration `default:"${config_timeout}" help:"How long to wait for attach, detach and eval replies"`
	MetricsAddr string        `name:"metrics-addr" default:"${config_metrics_addr}" placeholder:"HOST:PORT" help:"Serve Prometheus metrics on this address while tracing"`
}

// Run executes the trace command
func (c *TraceCmd) Run(globals *Globals) error {
	if len(c.Tracers) == 0 && globals.Config != nil {
		c.Tracers = globals.Config.Defaults.Tracers
	}
	if err := validateTraceFlags(globals, c); err != nil {
		return err
	}

	methods, err := c.selectors()
	if err != nil {
		return outputErrorCommon(globals, "INVALID_SELECTOR", err.Error(), "selectors look like Class#method, Class.method or Class#method(expr, @ivar)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pids := c.PID
	if c.Ps != "" {
		if pids, err = c.pickProcesses(ctx, globals); err != nil {
			return err
		}
	}

	prepareQueues(ctx, globals.Logger())

	var m *metrics.Metrics
	if c.MetricsAddr != "" {
		m = metrics.New()
	}
	globals.waitBeforeAttach()
	if err := c.traceAll(ctx, globals, pids, methods, m); err != nil {
		return traceFailure(globals, err)
	}
	return nil
}

// selectors merges --methods with the selectors of every tracer file and
// checks all of them, including --slow-methods.
func (c *TraceCmd) selectors() ([]string, error) {
	methods := append([]string(nil), c.Methods...)
	if len(c.Tracers) > 0 {
		lines, err := selector.LoadTracerFiles(c.Tracers)
		if err != nil {
			return nil, err
		}
		methods = append(methods, lines...)
	}
	if _, err := selector.ParseAll(methods); err != nil {
		return nil, err
	}
	if _, err := selector.ParseAll(c.SlowMethods); err != nil {
		return nil, err
	}
	return methods, nil
}

// slowThreshold returns the slow watch threshold and whether it measures CPU
// time. --slow-methods alone watches with the configured default.
func (c *TraceCmd) slowThreshold(globals *Globals) (int, bool) {
	switch {
	case c.SlowCPU > 0:
		return c.SlowCPU, true
	case c.Slow > 0:
		return c.Slow, false
	case len(c.SlowMethods) > 0 && globals.Config != nil:
		return globals.Config.Defaults.Slow, false
	}
	return 0, false
}

// traceAll runs one session per pid next to the optional metrics server.
func (c *TraceCmd) traceAll(ctx context.Context, globals *Globals, pids []int, methods []string, m *metrics.Metrics) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group
	{
		eg, egctx := errgroup.WithContext(ctx)
		g.Add(func() error {
			for _, pid := range pids {
				eg.Go(func() error {
					return c.traceOne(egctx, globals, pid, len(pids) > 1, methods, m)
				})
			}
			return eg.Wait()
		}, func(error) {
			cancel()
		})
	}
	if m != nil {
		ln, err := net.Listen("tcp", c.MetricsAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", c.MetricsAddr, err)
		}
		g.Add(func() error {
			globals.Logger().Infof("serving metrics on http://%s/metrics", ln.Addr())
			return m.Serve(ln)
		}, func(error) {
			ln.Close()
		})
	}
	return g.Run()
}

// traceOne attaches to pid, installs the tracers and renders events until
// the process exits or the operator interrupts.
func (c *TraceCmd) traceOne(ctx context.Context, globals *Globals, pid int, multi bool, methods []string, m *metrics.Metrics) error {
	sink, err := c.openSink(globals, pid, multi)
	if err != nil {
		return err
	}
	defer sink.Close()

	intr := make(chan os.Signal, 1)
	signal.Notify(intr, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(intr)

	log := globals.Logger()
	opts := session.Options{
		Timeout: c.Timeout,
		Render: render.Options{
			Prefix:       strings.Repeat(" ", c.Prefix),
			ShowTime:     c.StartTime,
			ShowDuration: !c.NoDuration,
			Log:          log,
		},
		SocketTemplate: globals.Config.SocketTemplate,
		Interrupts:     intr,
		Log:            log,
		Metrics:        m,
	}
	sess, err := session.New(pid, sink, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := c.install(globals, sess, methods); err != nil {
		return err
	}

	err = sess.Run(ctx)
	if errors.Is(err, session.ErrInterrupted) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *TraceCmd) openSink(globals *Globals, pid int, multi bool) (*output.Sink, error) {
	if c.Output == "" {
		return output.Wrap(globals.Stdout), nil
	}
	sink, err := output.Open(output.PathFor(c.Output, pid, multi), c.Append)
	if err != nil {
		return nil, &outputError{err: err}
	}
	return sink, nil
}

// install sends the tracing commands in the order the target expects.
func (c *TraceCmd) install(globals *Globals, sess *session.Session, methods []string) error {
	if c.DevMode {
		if err := sess.DevMode(); err != nil {
			return err
		}
	}
	if c.GC {
		if err := sess.GC(); err != nil {
			return err
		}
	}
	if c.Firehose {
		return sess.Firehose()
	}

	if len(methods) > 0 {
		if err := sess.Add(methods...); err != nil {
			return err
		}
	}
	if msec, cpuOnly := c.slowThreshold(globals); msec > 0 {
		if err := sess.Watch(msec, cpuOnly); err != nil {
			return err
		}
		if len(c.SlowMethods) > 0 {
			return sess.AddSlow(c.SlowMethods...)
		}
	}
	return nil
}

// pickProcesses resolves --ps, asking which matches to trace when there are
// several.
func (c *TraceCmd) pickProcesses(ctx context.Context, globals *Globals) ([]int, error) {
	procs, err := discover.Find(ctx, c.Ps)
	if err != nil {
		return nil, outputErrorCommon(globals, "INVALID_FLAGS", err.Error())
	}
	if len(procs) == 0 {
		return nil, outputErrorCommon(globals, "NO_MATCH", fmt.Sprintf("could not find any processes matching %q", c.Ps))
	}

	suffix := "es"
	if len(procs) == 1 {
		suffix = ""
	}
	fmt.Fprintf(globals.Stderr, "*** found %d process%s matching %q\n", len(procs), suffix, c.Ps)
	if len(procs) == 1 {
		fmt.Fprintln(globals.Stderr, procs[0])
		return []int{procs[0].PID}, nil
	}

	picks, err := promptSelection(globals.Stdin, globals.Stderr, procs)
	if err != nil {
		return nil, outputErrorCommon(globals, "NO_MATCH", "no processes selected", "answer with 0 for all or a list such as 1,4")
	}
	return lo.Map(picks, func(i int, _ int) int { return procs[i].PID }), nil
}

// promptSelection lists procs and reads picks until a valid answer arrives.
func promptSelection(in io.Reader, out io.Writer, procs []discover.Process) ([]int, error) {
	width := len(fmt.Sprint(len(procs)))
	for i, p := range procs {
		fmt.Fprintf(out, "   [%*d]   %s\n", width, i+1, p)
	}
	fmt.Fprintf(out, "   [%*d]   all %d processes\n", width, 0, len(procs))

	r := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "*** trace which processes? (0/1,4): ")
		line, readErr := r.ReadString('\n')
		if picks, err := discover.ParseSelection(line, len(procs)); err == nil {
			return picks, nil
		}
		if readErr != nil {
			fmt.Fprintln(out)
			return nil, readErr
		}
	}
}

// prepareQueues warns about a small kernel queue limit, raising it when
// running as root, and removes queue pairs left by dead processes.
func prepareQueues(ctx context.Context, log *zap.SugaredLogger) {
	if check, err := discover.CheckMsgmnb(); err == nil && !check.OK() {
		root := os.Geteuid() == 0
		log.Warn(check.Advice(root))
		if root {
			if err := discover.RaiseMsgmnb(check); err != nil {
				log.Warnf("could not raise kernel.msgmnb: %v", err)
			}
		}
	}

	pairs, err := discover.CleanupStaleQueues(ctx)
	if err != nil {
		log.Debugf("stale queue cleanup: %v", err)
	}
	for _, p := range pairs {
		log.Infof("removed stale message queue pair %d/%d", p.In.ID, p.Out.ID)
	}
}

// outputError marks failures to open the trace destination.
type outputError struct {
	err error
}

func (e *outputError) Error() string { return e.err.Error() }
func (e *outputError) Unwrap() error { return e.err }

// traceFailure maps a trace error to its error code.
func traceFailure(globals *Globals, err error) error {
	var attachErr *session.AttachError
	var outErr *outputError
	switch {
	case errors.As(err, &attachErr):
		return outputErrorCommon(globals, "ATTACH_FAILED", err.Error(), attachHint(attachErr.Err))
	case errors.As(err, &outErr):
		return outputErrorCommon(globals, "OUTPUT_FAILED", err.Error(), "check that the output directory exists and is writable")
	case errors.Is(err, selector.ErrInvalidExpression), errors.Is(err, selector.ErrEmpty):
		return outputErrorCommon(globals, "INVALID_SELECTOR", err.Error())
	default:
		return outputErrorCommon(globals, "TRACE_FAILED", err.Error())
	}
}

func attachHint(err error) string {
	switch {
	case errors.Is(err, session.ErrNoProcess):
		return "check the pid with calltap ps PATTERN"
	case errors.Is(err, session.ErrPermission):
		return "run as the owner of the process or as root"
	case errors.Is(err, session.ErrAlreadyTraced):
		return "another calltap is attached to this process"
	case errors.Is(err, session.ErrNotListening):
		return "the process must load the calltap agent before it can be traced"
	}
	return ""
}
