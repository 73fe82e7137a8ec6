package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/vburojevic/calltap/internal/discover"
)

// DoctorCmd checks the host's message queue setup
type DoctorCmd struct {
	Fix    bool `help:"Raise kernel.msgmnb to the recommended size (needs root)"`
	DryRun bool `name:"dry-run" help:"List stale queue pairs without removing them"`
}

// DoctorOutput is the JSON result of doctor
type DoctorOutput struct {
	Type        string     `json:"type"`
	Msgmnb      int        `json:"msgmnb"`
	Recommended int        `json:"recommended"`
	OK          bool       `json:"ok"`
	Advice      string     `json:"advice,omitempty"`
	StaleQueues []stalePID `json:"stale_queues"`
	Removed     bool       `json:"removed"`
}

type stalePID struct {
	PID int `json:"pid"`
	In  int `json:"in"`
	Out int `json:"out"`
}

// Run executes the doctor command
func (c *DoctorCmd) Run(globals *Globals) error {
	ctx := context.Background()
	root := os.Geteuid() == 0

	check, err := discover.CheckMsgmnb()
	if err != nil {
		return outputErrorCommon(globals, "DOCTOR_FAILED", err.Error())
	}
	if c.Fix && !check.OK() {
		if err := discover.RaiseMsgmnb(check); err != nil {
			return outputErrorCommon(globals, "DOCTOR_FAILED", fmt.Sprintf("raise kernel.msgmnb: %v", err), "run `sudo "+check.Command()+"`")
		}
		check.Current = check.Recommended
	}

	var pairs []discover.StalePair
	if c.DryRun {
		queues, err := discover.ListQueues()
		if err != nil {
			return outputErrorCommon(globals, "DOCTOR_FAILED", err.Error())
		}
		pairs = discover.StalePairs(queues, func(pid int) bool { return discover.Alive(ctx, pid) })
	} else if pairs, err = discover.CleanupStaleQueues(ctx); err != nil {
		return outputErrorCommon(globals, "DOCTOR_FAILED", fmt.Sprintf("remove stale queues: %v", err))
	}

	if globals.jsonOutput() {
		out := DoctorOutput{
			Type:        "doctor",
			Msgmnb:      check.Current,
			Recommended: check.Recommended,
			OK:          check.OK(),
			StaleQueues: make([]stalePID, 0, len(pairs)),
			Removed:     !c.DryRun,
		}
		if !check.OK() {
			out.Advice = check.Advice(root)
		}
		for _, p := range pairs {
			out.StaleQueues = append(out.StaleQueues, stalePID{PID: p.PID, In: p.In.ID, Out: p.Out.ID})
		}
		return writeJSON(globals, out)
	}

	fmt.Fprintf(globals.Stdout, "kernel.msgmnb: %s (recommended %s)\n",
		humanize.IBytes(uint64(check.Current)), humanize.IBytes(uint64(check.Recommended)))
	if !check.OK() {
		fmt.Fprintf(globals.Stdout, "  %s\n", check.Advice(false))
	}
	if len(pairs) == 0 {
		fmt.Fprintln(globals.Stdout, "no stale message queues")
		return nil
	}
	verb := "removed"
	if c.DryRun {
		verb = "stale"
	}
	for _, p := range pairs {
		fmt.Fprintf(globals.Stdout, "%s message queue pair %d/%d (pid %d)\n", verb, p.In.ID, p.Out.ID, p.PID)
	}
	return nil
}
