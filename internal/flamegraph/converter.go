// Package flamegraph converts indented call trace text into collapsed stack
// records ("a;b;c 42") understood by flamegraph.pl and speedscope.
package flamegraph

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Converter reads trace text from in and writes converted records to out.
type Converter interface {
	Convert(in io.Reader, out io.Writer) error
}

// Types lists the converter names accepted by Build.
var Types = []string{"flamegraph"}

// Build returns the converter registered under kind.
func Build(kind string) (Converter, error) {
	switch kind {
	case "flamegraph":
		return Flamegraph{}, nil
	}
	return nil, fmt.Errorf("unknown type: %s", kind)
}

var timedLine = regexp.MustCompile(`^(.*) <\s*(.*)>$`)

// Flamegraph emits one record per leaf call line.
type Flamegraph struct{}

// Convert processes in line by line. Depth is the leading space count
// divided by two. Header lines push a frame, a timed line at the stack depth
// is a leaf record, and a timed line below the stack depth is a footer that
// closes frames without output.
func (Flamegraph) Convert(in io.Reader, out io.Writer) error {
	var stack []string
	w := bufio.NewWriter(out)

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimLeft(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		depth := (len(line) - len(trimmed)) / 2
		trimmed = strings.TrimSpace(trimmed)

		popped := false
		for len(stack) > depth {
			stack = stack[:len(stack)-1]
			popped = true
		}

		m := timedLine.FindStringSubmatch(trimmed)
		if m == nil {
			stack = append(stack, trimmed)
			continue
		}
		if popped || len(stack) != depth {
			continue
		}

		micros, err := parseMicros(m[2])
		if err != nil {
			return fmt.Errorf("line %q: %w", line, err)
		}
		record := append(append([]string(nil), stack...), strings.TrimSpace(m[1]))
		if _, err := fmt.Fprintf(w, "%s %d\n", strings.Join(record, ";"), micros); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return w.Flush()
}

func parseMicros(s string) (int64, error) {
	sec, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %w", err)
	}
	return int64(math.Round(sec * 1e6)), nil
}
