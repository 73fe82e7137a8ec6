// Package output opens the destinations trace text is written to.
package output

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

// Sink is a line buffered trace destination. Complete lines are flushed as
// soon as they are written.
type Sink struct {
	mu   sync.Mutex
	w    *bufio.Writer
	file *os.File
	path string
}

// Open creates or truncates path, or appends to it when appendMode is set.
func Open(path string, appendMode bool) (*Sink, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	return &Sink{w: bufio.NewWriter(f), file: f, path: path}, nil
}

// Wrap line buffers an existing writer such as stdout. Close does not close w.
func Wrap(w io.Writer) *Sink {
	return &Sink{w: bufio.NewWriter(w)}
}

// Path returns the file path, empty for wrapped writers.
func (s *Sink) Path() string {
	return s.path
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.w.Write(p)
	if err != nil {
		return n, err
	}
	if bytes.IndexByte(p, '\n') >= 0 {
		err = s.w.Flush()
	}
	return n, err
}

// Flush writes any partial line.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

// Close flushes and closes the underlying file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.w.Flush()
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
		s.file = nil
	}
	return err
}

// PathFor returns the output path for pid. When several pids are traced
// each gets its own file suffixed with the pid.
func PathFor(base string, pid int, multi bool) string {
	if base == "" || !multi {
		return base
	}
	return fmt.Sprintf("%s.%d", base, pid)
}
