//go:build !linux

package discover

import "errors"

var errNoSysctl = errors.New("kernel.msgmnb is only tunable on linux")

// CheckMsgmnb reads kernel.msgmnb.
func CheckMsgmnb() (MsgmnbCheck, error) {
	return MsgmnbCheck{}, errNoSysctl
}

// RaiseMsgmnb sets kernel.msgmnb to the recommended size. It needs root.
func RaiseMsgmnb(MsgmnbCheck) error {
	return errNoSysctl
}
