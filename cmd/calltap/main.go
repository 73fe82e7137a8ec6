package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/vburojevic/calltap/internal/cli"
	"github.com/vburojevic/calltap/internal/config"
)

const quickStart = `calltap - trace method calls in a running process

Quick start:
  calltap ps puma                           Find processes to trace
  calltap -p PID -m 'Kernel#sleep'          Trace one method
  calltap -p PID --slow 250                 Watch for calls slower than 250ms
  calltap eval -p PID 'Thread.list.size'    Evaluate code in the process
  calltap heapdump -p PID heap.json         Dump the heap from a forked copy

For help:
  calltap --help                            All commands and flags
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Config values become flag defaults, CLI flags still win
	ctx := kong.Parse(&c,
		kong.Name("calltap"),
		kong.Description("calltap: attach to a live process and trace its method calls, slow calls and garbage collections"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		cli.ConfigVars(cfg),
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	err = ctx.Run(globals)
	if err != nil {
		os.Exit(1)
	}
}
