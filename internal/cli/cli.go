// Package cli implements the calltap commands.
package cli

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/alecthomas/kong"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/calltap/internal/config"
)

// Version information (set by ldflags)
var (
	Version = "dev"
	Commit  = "none"
)

// CLI is the root command structure for Kong
type CLI struct {
	Format  string `enum:"text,json" default:"${config_format}" help:"Output format for diagnostics and results (text or json)"`
	Verbose bool          `short:"v" help:"Enable debug logging"`
	Wait    time.Duration `help:"How long to wait before attaching to a process"`

	Trace      TraceCmd      `cmd:"" default:"withargs" help:"Attach to processes and trace method calls"`
	Eval       EvalCmd       `cmd:"" help:"Evaluate code inside a traced process"`
	Backtrace  BacktraceCmd  `cmd:"" help:"Print the current backtrace of a process"`
	Backtraces BacktracesCmd `cmd:"" help:"Print the backtraces of every thread of a process"`
	Fork       ForkCmd       `cmd:"" help:"Fork a busy looping copy of a process for debugging"`
	Heapdump   HeapdumpCmd   `cmd:"" help:"Write a heap dump of a process from a forked copy"`
	Shapesdump ShapesdumpCmd `cmd:"" help:"Write an object shapes dump of a process from a forked copy"`
	Convert    ConvertCmd    `cmd:"" help:"Convert trace output, e.g. to folded flamegraph stacks"`
	Ps         PsCmd         `cmd:"" help:"List processes whose command line matches a pattern"`
	Doctor     DoctorCmd     `cmd:"" help:"Check message queue limits and remove stale queues"`
	Config     ConfigCmd     `cmd:"" help:"Show or generate configuration"`
	Completion CompletionCmd `cmd:"" help:"Generate shell completions"`
	Version    VersionCmd    `cmd:"" help:"Show version information"`
}

// Globals holds global flags and state shared by every command
type Globals struct {
	Format  string
	Verbose bool
	Wait    time.Duration
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config
	Clock   clock.Clock

	log *zap.SugaredLogger
}

// NewGlobals creates a Globals from the parsed CLI
func NewGlobals(cli *CLI) *Globals {
	return NewGlobalsWithConfig(cli, config.Default())
}

// NewGlobalsWithConfig creates a Globals from the parsed CLI and loaded config
func NewGlobalsWithConfig(cli *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Globals{
		Format:  cli.Format,
		Verbose: cli.Verbose || cfg.Verbose,
		Wait:    cli.Wait,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
}

// Logger returns the diagnostics logger, built on first use.
func (g *Globals) Logger() *zap.SugaredLogger {
	if g.log == nil {
		g.log = newLogger(g.Stderr, g.Verbose)
	}
	return g.log
}

// Debug prints a debug message when verbose mode is enabled
func (g *Globals) Debug(format string, args ...interface{}) {
	g.Logger().Debugf(format, args...)
}

// waitBeforeAttach sleeps for --wait.
func (g *Globals) waitBeforeAttach() {
	if g.Wait <= 0 {
		return
	}
	clk := g.Clock
	if clk == nil {
		clk = clock.New()
	}
	g.Debug("waiting %s before attaching", g.Wait)
	clk.Sleep(g.Wait)
}

func (g *Globals) jsonOutput() bool {
	return g.Format == "json"
}

// ConfigVars exposes config values to flag defaults
func ConfigVars(cfg *config.Config) kong.Vars {
	return kong.Vars{
		"config_format":       cfg.Format,
		"config_timeout":      cfg.Timeout.String(),
		"config_prefix":       strconv.Itoa(cfg.Prefix),
		"config_show_time":    strconv.FormatBool(cfg.ShowTime),
		"config_no_duration":  strconv.FormatBool(!cfg.ShowDuration),
		"config_output":       cfg.Defaults.Output,
		"config_append":       strconv.FormatBool(cfg.Defaults.Append),
		"config_metrics_addr": cfg.MetricsAddr,
	}
}
