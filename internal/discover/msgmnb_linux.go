//go:build linux

package discover

import (
	"fmt"
	"os"
	"strconv"

	"github.com/prometheus/procfs"
)

// CheckMsgmnb reads kernel.msgmnb.
func CheckMsgmnb() (MsgmnbCheck, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return MsgmnbCheck{}, err
	}
	vals, err := fs.SysctlInts(msgmnbSysctl)
	if err != nil {
		return MsgmnbCheck{}, fmt.Errorf("read %s: %w", msgmnbSysctl, err)
	}
	if len(vals) == 0 {
		return MsgmnbCheck{}, fmt.Errorf("read %s: empty value", msgmnbSysctl)
	}
	return MsgmnbCheck{Current: vals[0], Recommended: RecommendedMsgmnb}, nil
}

// RaiseMsgmnb sets kernel.msgmnb to the recommended size. It needs root.
func RaiseMsgmnb(c MsgmnbCheck) error {
	path := procfs.DefaultMountPoint + "/sys/kernel/msgmnb"
	return os.WriteFile(path, []byte(strconv.Itoa(c.Recommended)+"\n"), 0o644)
}
