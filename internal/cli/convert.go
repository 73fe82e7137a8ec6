package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/lo"

	"github.com/vburojevic/calltap/internal/flamegraph"
)

// ConvertCmd converts saved trace output
type ConvertCmd struct {
	Type  string   `default:"flamegraph" enum:"flamegraph" help:"Output type (flamegraph)"`
	Files []string `arg:"" optional:"" type:"existingfile" help:"Trace files to read, concatenated (stdin when none)"`
}

// Run executes the convert command
func (c *ConvertCmd) Run(globals *Globals) error {
	conv, err := flamegraph.Build(c.Type)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_FLAGS", err.Error(), "supported types: "+strings.Join(flamegraph.Types, ", "))
	}

	in := globals.Stdin
	if len(c.Files) > 0 {
		files := make([]*os.File, 0, len(c.Files))
		defer func() {
			for _, f := range files {
				f.Close()
			}
		}()
		for _, name := range c.Files {
			f, err := os.Open(name)
			if err != nil {
				return outputErrorCommon(globals, "CONVERT_FAILED", err.Error())
			}
			files = append(files, f)
		}
		in = io.MultiReader(lo.Map(files, func(f *os.File, _ int) io.Reader { return f })...)
	}

	if err := conv.Convert(in, globals.Stdout); err != nil {
		return outputErrorCommon(globals, "CONVERT_FAILED", fmt.Sprintf("convert to %s: %v", c.Type, err))
	}
	return nil
}
