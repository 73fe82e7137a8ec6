package session

// State is the attach state of a Session.
type State int

const (
	Detached State = iota
	Attaching
	Attached
	Detaching
	// Gone is terminal: the target no longer exists.
	Gone
)

func (s State) String() string {
	switch s {
	case Detached:
		return "detached"
	case Attaching:
		return "attaching"
	case Attached:
		return "attached"
	case Detaching:
		return "detaching"
	case Gone:
		return "gone"
	}
	return "unknown"
}

// receiving reports whether trace events are rendered in this state.
func (s State) receiving() bool {
	return s == Attached || s == Detaching
}
