package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vburojevic/calltap/internal/output"
	"github.com/vburojevic/calltap/internal/render"
	"github.com/vburojevic/calltap/internal/selector"
	"github.com/vburojevic/calltap/internal/session"
)

// backtraceDelim separates frames in a backtraces reply. Threads are
// separated by the delimiter twice.
const backtraceDelim = "146621c9d681409aa"

// EvalCmd evaluates code inside a process
type EvalCmd struct {
	PID     int           `short:"p" name:"pid" required:"" help:"Process id"`
	Code    string        `arg:"" help:"Code to evaluate"`
	Timeout time.Duration `default:"${config_timeout}" help:"How long to wait for the reply"`
}

// EvalOutput is the JSON result of eval and the backtrace commands
type EvalOutput struct {
	Type   string `json:"type"`
	PID    int    `json:"pid"`
	Code   string `json:"code"`
	Result string `json:"result"`
}

// Run executes the eval command
func (c *EvalCmd) Run(globals *Globals) error {
	res, err := evalIn(globals, c.PID, c.Timeout, c.Code, func(sess *session.Session, res string) {
		sess.Println(">> " + c.Code)
		sess.Println("=> " + res)
	})
	if err != nil {
		return err
	}
	if globals.jsonOutput() {
		return writeJSON(globals, EvalOutput{Type: "eval", PID: c.PID, Code: c.Code, Result: res})
	}
	return nil
}

// BacktraceCmd prints the current backtrace of a process
type BacktraceCmd struct {
	PID     int           `short:"p" name:"pid" required:"" help:"Process id"`
	Frames  int           `arg:"" optional:"" default:"20" help:"Number of frames"`
	Timeout time.Duration `default:"${config_timeout}" help:"How long to wait for the reply"`
}

// Run executes the backtrace command
func (c *BacktraceCmd) Run(globals *Globals) error {
	code := fmt.Sprintf("caller.first(%d).join('|')", c.Frames)
	res, err := evalIn(globals, c.PID, c.Timeout, code, func(sess *session.Session, res string) {
		sess.Println(formatBacktrace(res))
	})
	if err != nil {
		return err
	}
	if globals.jsonOutput() {
		return writeJSON(globals, EvalOutput{Type: "backtrace", PID: c.PID, Code: code, Result: formatBacktrace(res)})
	}
	return nil
}

// formatBacktrace unquotes an inspected "a|b|c" reply into one frame per line.
func formatBacktrace(res string) string {
	if len(res) >= 2 {
		res = res[1 : len(res)-1]
	}
	return strings.Join(strings.Split(res, "|"), "\n  ")
}

// BacktracesCmd prints the backtraces of every thread of a process
type BacktracesCmd struct {
	PID     int           `short:"p" name:"pid" required:"" help:"Process id"`
	Frames  int           `arg:"" optional:"" default:"0" help:"Number of frames per thread (0 for all)"`
	Timeout time.Duration `default:"${config_timeout}" help:"How long to wait for the reply"`
}

// Run executes the backtraces command
func (c *BacktracesCmd) Run(globals *Globals) error {
	code := backtracesCode(c.Frames)
	res, err := evalIn(globals, c.PID, c.Timeout, code, func(sess *session.Session, res string) {
		sess.Println(formatBacktraces(res))
	})
	if err != nil {
		return err
	}
	if globals.jsonOutput() {
		return writeJSON(globals, EvalOutput{Type: "backtraces", PID: c.PID, Code: code, Result: formatBacktraces(res)})
	}
	return nil
}

func backtracesCode(frames int) string {
	if frames == 0 {
		frames = -1
	}
	return fmt.Sprintf(
		"Thread.list.reject { |t| t.name == '__RBTrace__' }.map{ |t| t.backtrace[0...%d].join(%q)}.join(%q)",
		frames, backtraceDelim, backtraceDelim+backtraceDelim)
}

func formatBacktraces(res string) string {
	return strings.Join(strings.Split(res, backtraceDelim), "\n")
}

// ForkCmd forks a busy looping copy of a process
type ForkCmd struct {
	PID int `short:"p" name:"pid" required:"" help:"Process id"`
}

// ForkOutput is the JSON result of fork
type ForkOutput struct {
	Type      string `json:"type"`
	PID       int    `json:"pid"`
	ForkedPID int    `json:"forked_pid"`
}

// Run executes the fork command
func (c *ForkCmd) Run(globals *Globals) error {
	sess, closeFn, err := attach(globals, c.PID, globals.Config.Timeout)
	if err != nil {
		return err
	}
	defer closeFn()

	forked, err := sess.Fork()
	if err != nil {
		hint := ""
		if errors.Is(err, session.ErrTimeout) {
			hint = "the process did not reply within " + session.ForkTimeout.String()
		}
		return outputErrorCommon(globals, "FORK_FAILED", err.Error(), hint)
	}
	if globals.jsonOutput() {
		return writeJSON(globals, ForkOutput{Type: "fork", PID: c.PID, ForkedPID: forked})
	}
	fmt.Fprintf(globals.Stderr, "*** forked off a busy looping copy at %d (make sure to kill -9 it when you're done)\n", forked)
	return nil
}

// evalIn attaches to pid, evaluates code and detaches. show prints the reply
// in text mode.
func evalIn(globals *Globals, pid int, timeout time.Duration, code string, show func(*session.Session, string)) (string, error) {
	if err := selector.Validate(code); err != nil {
		return "", outputErrorCommon(globals, "EVAL_FAILED", err.Error(), "check the code for unbalanced brackets or quotes")
	}

	sess, closeFn, err := attach(globals, pid, timeout)
	if err != nil {
		return "", err
	}
	defer closeFn()

	res, err := sess.Eval(code)
	if err != nil {
		return "", outputErrorCommon(globals, "EVAL_FAILED", err.Error())
	}
	if !globals.jsonOutput() {
		show(sess, res)
	}
	return res, nil
}

// attach opens a session whose output goes to stdout.
func attach(globals *Globals, pid int, timeout time.Duration) (*session.Session, func(), error) {
	if pid <= 0 {
		return nil, nil, outputErrorCommon(globals, "INVALID_PID", "invalid pid", "pids are positive integers")
	}
	if timeout <= 0 {
		timeout = session.DefaultTimeout
	}
	globals.waitBeforeAttach()

	sink := output.Wrap(globals.Stdout)
	opts := session.Options{
		Timeout:        timeout,
		Render:         render.DefaultOptions(),
		SocketTemplate: globals.Config.SocketTemplate,
		Log:            globals.Logger(),
	}
	sess, err := session.New(pid, sink, opts)
	if err != nil {
		sink.Close()
		return nil, nil, traceFailure(globals, err)
	}
	return sess, func() {
		sess.Close()
		sink.Close()
	}, nil
}
