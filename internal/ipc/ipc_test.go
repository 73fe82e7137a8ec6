package ipc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/calltap/internal/wire"
)

type fakeWriter struct {
	frames [][]byte
	errs   []error
}

func (f *fakeWriter) writeFrame(frame []byte) error {
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	f.frames = append(f.frames, append([]byte(nil), frame...))
	return nil
}

func TestCommandChannelSend(t *testing.T) {
	w := &fakeWriter{}
	c := &CommandChannel{w: w, maxFrame: 256}

	require.NoError(t, c.Send(wire.NewCommand("attach", 42)))
	require.Len(t, w.frames, 1)

	want, err := wire.Encode(wire.NewCommand("attach", 42))
	require.NoError(t, err)
	assert.Equal(t, want, w.frames[0])
}

func TestCommandChannelRejectsOversizedFrame(t *testing.T) {
	w := &fakeWriter{}
	c := &CommandChannel{w: w, maxFrame: 32}

	err := c.Send(wire.NewCommand("eval", strings.Repeat("x", 64)))
	require.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Empty(t, w.frames, "nothing may be transmitted")

	require.NoError(t, c.Send(wire.NewCommand("eval", "1")))
	assert.Len(t, w.frames, 1)
}

func TestCommandChannelRetriesInterrupts(t *testing.T) {
	w := &fakeWriter{errs: []error{syscall.EINTR, syscall.EINTR}}
	c := &CommandChannel{w: w, maxFrame: 256}

	require.NoError(t, c.Send(wire.NewCommand("detach")))
	assert.Len(t, w.frames, 1)
}

func TestCommandChannelClassifiesErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantGone bool
	}{
		{name: "queue removed", err: syscall.EIDRM, wantGone: true},
		{name: "invalid queue", err: syscall.EINVAL, wantGone: true},
		{name: "permission", err: syscall.EACCES, wantGone: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWriter{errs: []error{tt.err}}
			c := &CommandChannel{w: w, maxFrame: 256}

			err := c.Send(wire.NewCommand("detach"))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			if tt.wantGone {
				assert.ErrorIs(t, err, ErrGone)
			} else {
				assert.NotErrorIs(t, err, ErrGone)
			}
			assert.Empty(t, w.frames)
		})
	}
}

func socketTemplate(t *testing.T) string {
	t.Helper()
	// sun_path is short, keep the name small
	dir, err := os.MkdirTemp("", "ct")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "%d.sock")
}

func send(t *testing.T, path string, payload []byte) {
	t.Helper()
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(payload)
	require.NoError(t, err)
}

func TestEventChannelRoundTrip(t *testing.T) {
	tmpl := socketTemplate(t)
	ch, err := ListenEvents(4242, tmpl)
	require.NoError(t, err)
	defer ch.Close()

	assert.Equal(t, fmt.Sprintf(tmpl, 4242), ch.Path())

	info, err := os.Stat(ch.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o666), info.Mode().Perm())

	send(t, ch.Path(), []byte("one"))
	send(t, ch.Path(), []byte("two"))

	got, err := ch.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	got, err = ch.TryReceive()
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	got, err = ch.TryReceive()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEventChannelReceiveTimeout(t *testing.T) {
	ch, err := ListenEvents(7, socketTemplate(t))
	require.NoError(t, err)
	defer ch.Close()

	start := time.Now()
	got, err := ch.Receive(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestEventChannelReplacesStaleSocket(t *testing.T) {
	tmpl := socketTemplate(t)
	path := fmt.Sprintf(tmpl, 9)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	ch, err := ListenEvents(9, tmpl)
	require.NoError(t, err)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestProcessProbe(t *testing.T) {
	assert.NoError(t, Process{PID: os.Getpid()}.Probe())
}
