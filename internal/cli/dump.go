package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vburojevic/calltap/internal/session"
)

// HeapdumpCmd writes an ObjectSpace heap dump of a process
type HeapdumpCmd struct {
	PID     int           `short:"p" name:"pid" required:"" help:"Process id"`
	File    string        `arg:"" optional:"" type:"path" placeholder:"FILE" help:"Where to write the dump (a temporary file when omitted)"`
	Timeout time.Duration `default:"${config_timeout}" help:"How long to wait for the reply"`
}

// Run executes the heapdump command
func (c *HeapdumpCmd) Run(globals *Globals) error {
	return runDump(globals, dumpKind{name: "heapdump", label: "Heap dump", method: "dump_all"}, c.PID, c.File, c.Timeout)
}

// ShapesdumpCmd writes an ObjectSpace shapes dump of a process
type ShapesdumpCmd struct {
	PID     int           `short:"p" name:"pid" required:"" help:"Process id"`
	File    string        `arg:"" optional:"" type:"path" placeholder:"FILE" help:"Where to write the dump (a temporary file when omitted)"`
	Timeout time.Duration `default:"${config_timeout}" help:"How long to wait for the reply"`
}

// Run executes the shapesdump command
func (c *ShapesdumpCmd) Run(globals *Globals) error {
	return runDump(globals, dumpKind{name: "shapesdump", label: "Shapes dump", method: "dump_shapes"}, c.PID, c.File, c.Timeout)
}

// DumpOutput is the JSON result of heapdump and shapesdump
type DumpOutput struct {
	Type string `json:"type"`
	PID  int    `json:"pid"`
	File string `json:"file"`
}

type dumpKind struct {
	name   string
	label  string
	method string
}

func runDump(globals *Globals, kind dumpKind, pid int, file string, timeout time.Duration) error {
	path, err := dumpPath(kind.name, file)
	if err != nil {
		return outputErrorCommon(globals, "OUTPUT_FAILED", err.Error())
	}
	if _, err := evalIn(globals, pid, timeout, dumpCode(kind.method, path), func(*session.Session, string) {}); err != nil {
		return err
	}

	if globals.jsonOutput() {
		return writeJSON(globals, DumpOutput{Type: kind.name, PID: pid, File: path})
	}
	fmt.Fprintf(globals.Stdout, "%s being written to %s\n", kind.label, path)
	return nil
}

// dumpPath resolves where the target writes its dump. The target has its
// own working directory, so the path is made absolute.
func dumpPath(name, file string) (string, error) {
	if file == "" {
		f, err := os.CreateTemp("", "calltap-"+name+"-*")
		if err != nil {
			return "", err
		}
		file = f.Name()
		f.Close()
		os.Remove(file)
	}
	return filepath.Abs(file)
}

// dumpCode forks the target and writes the dump from the child, renaming
// it into place once complete.
func dumpCode(method, path string) string {
	return fmt.Sprintf(
		"Thread.new{n=%s;Process.wait(fork{File.open(n+'.tmp','w'){|f|ObjectSpace.%s(output:f)};File.rename(n+'.tmp',n);exit!(0)})}",
		rubyQuote(path), method)
}

func rubyQuote(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}
