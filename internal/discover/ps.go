// Package discover finds traceable processes and checks the host's message
// queue setup.
package discover

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v4/process"
)

// ErrBadSelection is returned for unparsable process picks.
var ErrBadSelection = errors.New("invalid selection")

// Process is a candidate process.
type Process struct {
	PID     int
	User    string
	Cmdline string
}

// String renders the process like a ps line.
func (p Process) String() string {
	return fmt.Sprintf("%s %d %s", p.User, p.PID, p.Cmdline)
}

// Find lists processes whose "user pid cmdline" line matches pattern,
// excluding this process and its parent.
func Find(ctx context.Context, pattern string) ([]Process, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var all []Process
	for _, p := range procs {
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil || cmdline == "" {
			continue
		}
		user, _ := p.UsernameWithContext(ctx)
		all = append(all, Process{PID: int(p.Pid), User: user, Cmdline: cmdline})
	}
	return Filter(all, re, os.Getpid(), os.Getppid()), nil
}

// Filter keeps processes matching re and not in exclude.
func Filter(procs []Process, re *regexp.Regexp, exclude ...int) []Process {
	return lo.Filter(procs, func(p Process, _ int) bool {
		return !lo.Contains(exclude, p.PID) && re.MatchString(p.String())
	})
}

// ParseSelection turns an answer such as "1,4" into indexes of a list of n
// candidates. "0" selects all of them.
func ParseSelection(input string, n int) ([]int, error) {
	input = strings.TrimSpace(input)
	if input == "0" {
		return lo.Range(n), nil
	}
	if input == "" {
		return nil, ErrBadSelection
	}

	var picks []int
	for _, part := range strings.Split(strings.TrimSuffix(input, ","), ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || i < 1 || i > n {
			return nil, fmt.Errorf("%w: %q", ErrBadSelection, part)
		}
		picks = append(picks, i-1)
	}
	return lo.Uniq(picks), nil
}

// Alive reports whether pid exists.
func Alive(ctx context.Context, pid int) bool {
	ok, err := process.PidExistsWithContext(ctx, int32(pid))
	return err == nil && ok
}
