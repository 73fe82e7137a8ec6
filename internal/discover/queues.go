package discover

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/vburojevic/calltap/internal/ipc"
)

const sysvMsgPath = "/proc/sysvipc/msg"

// Queue is one SysV message queue.
type Queue struct {
	Key int
	ID  int
}

// StalePair is a pid/-pid queue pair whose owner process is gone.
type StalePair struct {
	PID int
	In  Queue
	Out Queue
}

// ParseQueues reads the /proc/sysvipc/msg table.
func ParseQueues(r io.Reader) ([]Queue, error) {
	var queues []Queue
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || fields[0] == "key" {
			continue
		}
		key, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("parse key %q: %w", fields[0], err)
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("parse msqid %q: %w", fields[1], err)
		}
		queues = append(queues, Queue{Key: key, ID: id})
	}
	return queues, sc.Err()
}

// StalePairs finds key/-key pairs whose key is no longer a live pid.
func StalePairs(queues []Queue, alive func(pid int) bool) []StalePair {
	byKey := make(map[int]Queue, len(queues))
	for _, q := range queues {
		byKey[q.Key] = q
	}

	var pairs []StalePair
	for key, in := range byKey {
		if key <= 0 {
			continue
		}
		out, ok := byKey[-key]
		if !ok || alive(key) {
			continue
		}
		pairs = append(pairs, StalePair{PID: key, In: in, Out: out})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].PID < pairs[j].PID })
	return pairs
}

// ListQueues returns the message queues on this host.
func ListQueues() ([]Queue, error) {
	f, err := os.Open(sysvMsgPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseQueues(f)
}

// CleanupStaleQueues removes queue pairs left behind by dead targets.
func CleanupStaleQueues(ctx context.Context) ([]StalePair, error) {
	queues, err := ListQueues()
	if err != nil {
		return nil, err
	}
	pairs := StalePairs(queues, func(pid int) bool { return Alive(ctx, pid) })
	for _, p := range pairs {
		if err := ipc.RemoveQueue(p.In.ID); err != nil {
			return pairs, err
		}
		if err := ipc.RemoveQueue(p.Out.ID); err != nil {
			return pairs, err
		}
	}
	return pairs, nil
}
