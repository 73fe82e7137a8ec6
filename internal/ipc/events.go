package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultSocketTemplate names the event socket for a target pid.
const DefaultSocketTemplate = "/tmp/calltap-%d.sock"

const maxDatagram = 65536

// EventChannel receives event datagrams from one target.
type EventChannel struct {
	conn      *net.UnixConn
	path      string
	buf       []byte
	closeOnce sync.Once
	closeErr  error
}

// ListenEvents binds the event socket for pid. template must contain one %d.
// A stale socket file left by an earlier run is replaced.
func ListenEvents(pid int, template string) (*EventChannel, error) {
	if template == "" {
		template = DefaultSocketTemplate
	}
	path := fmt.Sprintf(template, pid)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
	}

	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", path, err)
	}
	// the target runs as another user often enough
	if err := os.Chmod(path, 0o666); err != nil {
		conn.Close()
		os.Remove(path)
		return nil, fmt.Errorf("chmod %s: %w", path, err)
	}
	return &EventChannel{conn: conn, path: path, buf: make([]byte, maxDatagram)}, nil
}

// Path returns the socket address.
func (c *EventChannel) Path() string {
	return c.path
}

// Receive waits up to timeout for one datagram. It returns (nil, nil) when
// the timeout elapses first.
func (c *EventChannel) Receive(timeout time.Duration) ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	n, err := c.conn.Read(c.buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, nil
		}
		return nil, err
	}
	return append([]byte(nil), c.buf[:n]...), nil
}

// TryReceive returns one queued datagram without blocking, or (nil, nil).
func (c *EventChannel) TryReceive() ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}
	raw, err := c.conn.SyscallConn()
	if err != nil {
		return nil, err
	}

	var (
		n       int
		recvErr error
	)
	err = raw.Read(func(fd uintptr) bool {
		n, _, recvErr = unix.Recvfrom(int(fd), c.buf, unix.MSG_DONTWAIT)
		return true
	})
	if err != nil {
		return nil, err
	}
	if recvErr != nil {
		if errors.Is(recvErr, unix.EAGAIN) || errors.Is(recvErr, unix.EINTR) {
			return nil, nil
		}
		return nil, recvErr
	}
	return append([]byte(nil), c.buf[:n]...), nil
}

// Close shuts the socket and removes its file. It is safe to call twice.
func (c *EventChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
		if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) && c.closeErr == nil {
			c.closeErr = err
		}
	})
	return c.closeErr
}
