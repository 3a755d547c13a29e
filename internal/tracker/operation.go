package tracker

import "fmt"

// Operation selects which primitive is called for each PID.
type Operation int

// Operations.
const (
	OpTrack Operation = iota + 1
	OpUntrack
)

// String returns the command name of the operation.
func (op Operation) String() string {
	switch op {
	case OpTrack:
		return "track"
	case OpUntrack:
		return "untrack"
	default:
		return fmt.Sprintf("Operation(%d)", int(op))
	}
}

// Verb returns the progressive form used in log messages.
func (op Operation) Verb() string {
	switch op {
	case OpTrack:
		return "tracking"
	case OpUntrack:
		return "untracking"
	default:
		return op.String()
	}
}
