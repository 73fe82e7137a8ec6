package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/vburojevic/calltap/internal/discover"
)

// PsCmd lists processes that could be traced
type PsCmd struct {
	Pattern string `arg:"" help:"Regex matched against 'user pid cmdline'"`
}

// PsOutput is the JSON shape of one listed process
type PsOutput struct {
	Type    string `json:"type"`
	PID     int    `json:"pid"`
	User    string `json:"user"`
	Cmdline string `json:"cmdline"`
}

// Run executes the ps command
func (c *PsCmd) Run(globals *Globals) error {
	procs, err := discover.Find(context.Background(), c.Pattern)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_FLAGS", err.Error())
	}
	if len(procs) == 0 {
		return outputErrorCommon(globals, "NO_MATCH", fmt.Sprintf("could not find any processes matching %q", c.Pattern))
	}

	if globals.jsonOutput() {
		for _, p := range procs {
			if err := writeJSON(globals, PsOutput{Type: "process", PID: p.PID, User: p.User, Cmdline: p.Cmdline}); err != nil {
				return err
			}
		}
		return nil
	}
	return renderProcessTable(globals.Stdout, procs)
}

func renderProcessTable(w io.Writer, procs []discover.Process) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "PID", "USER", "COMMAND")
	for i, p := range procs {
		if err := table.Append([]string{strconv.Itoa(i + 1), strconv.Itoa(p.PID), p.User, p.Cmdline}); err != nil {
			return err
		}
	}
	return table.Render()
}
