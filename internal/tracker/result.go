package tracker

import "errors"

// NoPID marks a Failure that did not happen on a specific PID.
const NoPID = -2

// Result exit codes. They match the command's process exit status.
const (
	ExitSuccess       = 0
	ExitError         = 1
	ExitTrackerFailed = 5
)

// Attempt is one primitive call.
type Attempt struct {
	PID int
	Err error
}

// Failure is the first failure of an Apply call.
type Failure struct {
	// PID is the failing PID, AllPIDs for the wildcard, or NoPID when the
	// failure happened before any PID was processed.
	PID int
	Err error
}

// Result is the outcome of Invoker.Apply.
type Result struct {
	// Applied counts the PIDs on which the primitive succeeded.
	Applied int
	// Attempts lists every primitive call in order, including a failing one.
	Attempts []Attempt
	// Failure is nil on success.
	Failure *Failure
}

// OK reports whether every requested PID was applied.
func (r Result) OK() bool { return r.Failure == nil }

// ExitCode maps the result to a process exit status.
func (r Result) ExitCode() int {
	if r.Failure == nil {
		return ExitSuccess
	}
	var perr *PIDError
	if errors.As(r.Failure.Err, &perr) {
		return ExitTrackerFailed
	}
	return ExitError
}
