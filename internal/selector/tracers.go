package selector

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

//go:embed tracers/*.tracer
var bundled embed.FS

// ErrTracerNotFound means neither a file nor a bundled set has the name.
var ErrTracerNotFound = errors.New("tracer file does not exist")

// Bundled lists the names of the built-in tracer sets.
func Bundled() []string {
	entries, err := fs.ReadDir(bundled, "tracers")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".tracer"))
	}
	sort.Strings(names)
	return names
}

// LoadTracerFile reads selectors from the file at name, falling back to the
// bundled set of that name.
func LoadTracerFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err == nil {
		defer f.Close()
		return ReadTracerLines(f)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	b, err := bundled.Open(path.Join("tracers", name+".tracer"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrTracerNotFound)
	}
	defer b.Close()
	return ReadTracerLines(b)
}

// LoadTracerFiles concatenates the selectors of every named file.
func LoadTracerFiles(names []string) ([]string, error) {
	var all []string
	for _, name := range names {
		lines, err := LoadTracerFile(name)
		if err != nil {
			return nil, err
		}
		all = append(all, lines...)
	}
	return all, nil
}

// ReadTracerLines returns one selector per line, skipping blanks and
// # comments.
func ReadTracerLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}
