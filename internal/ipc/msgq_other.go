//go:build !(linux && (amd64 || arm64))

package ipc

import (
	"errors"
	"fmt"
)

// MaxFrameSize is the payload size of one queue message.
const MaxFrameSize = 120

var errQueuesUnsupported = errors.New("message queues are not supported on this platform")

type msgQueue struct{}

func openQueue(key int) (*msgQueue, error) {
	return nil, fmt.Errorf("msgget %d: %w", key, errQueuesUnsupported)
}

func (q *msgQueue) writeFrame([]byte) error {
	return errQueuesUnsupported
}

// RemoveQueue deletes the message queue with the given id.
func RemoveQueue(id int) error {
	return fmt.Errorf("msgctl %d: %w", id, errQueuesUnsupported)
}
