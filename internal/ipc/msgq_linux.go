//go:build linux && (amd64 || arm64)

package ipc

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MaxFrameSize is the payload size of one queue message.
const MaxFrameSize = 256

const (
	queuePerm = 0o666
	msgType   = 1
)

// message mirrors struct { long mtype; char buf[MaxFrameSize]; }.
type message struct {
	mtype int64
	buf   [MaxFrameSize]byte
}

type msgQueue struct {
	id int
}

func openQueue(key int) (*msgQueue, error) {
	id, _, errno := unix.Syscall(unix.SYS_MSGGET, uintptr(key), queuePerm, 0)
	if errno != 0 {
		if errno == unix.ENOENT {
			return nil, ErrNotListening
		}
		return nil, fmt.Errorf("msgget %d: %w", key, errno)
	}
	return &msgQueue{id: int(id)}, nil
}

func (q *msgQueue) writeFrame(frame []byte) error {
	if len(frame) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	m := message{mtype: msgType}
	copy(m.buf[:], frame)
	_, _, errno := unix.Syscall6(unix.SYS_MSGSND, uintptr(q.id), uintptr(unsafe.Pointer(&m)), uintptr(len(m.buf)), 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// RemoveQueue deletes the message queue with the given id.
func RemoveQueue(id int) error {
	_, _, errno := unix.Syscall(unix.SYS_MSGCTL, uintptr(id), unix.IPC_RMID, 0)
	if errno != 0 {
		if errors.Is(errno, syscall.EINVAL) || errors.Is(errno, syscall.EIDRM) {
			return nil
		}
		return fmt.Errorf("msgctl %d: %w", id, errno)
	}
	return nil
}
