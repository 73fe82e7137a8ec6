// Package ipc carries commands to and events from a traced process.
//
// Commands travel over a SysV message queue keyed by the negated target pid,
// events arrive as datagrams on a unix socket named after the target pid.
package ipc

import "errors"

var (
	// ErrFrameTooLarge is returned before transmission when an encoded
	// command does not fit in one queue message.
	ErrFrameTooLarge = errors.New("command is too long")

	// ErrGone means the target process or its queue no longer exists.
	ErrGone = errors.New("process is gone")

	// ErrPermission means the target exists but cannot be signalled.
	ErrPermission = errors.New("could not signal process, are you running as root?")

	// ErrNotListening means the target has no command queue.
	ErrNotListening = errors.New("pid is not listening for messages")
)
