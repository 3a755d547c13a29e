package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/majorcontext/tracectl/internal/log"
	"github.com/majorcontext/tracectl/internal/pidspec"
)

// AllPIDs is the value passed to the primitives to mean every process.
const AllPIDs = -1

// ErrUnknownOperation is returned for an Operation outside OpTrack/OpUntrack.
var ErrUnknownOperation = errors.New("unknown tracker operation")

// Handle is an open reference to one session domain.
type Handle interface {
	// Track adds pid to the tracker. AllPIDs tracks every process.
	Track(ctx context.Context, pid int) error

	// Untrack removes pid from the tracker. AllPIDs untracks every process.
	Untrack(ctx context.Context, pid int) error

	// Close releases the handle.
	Close() error
}

// SessionControl opens handles on tracing sessions.
type SessionControl interface {
	OpenHandle(ctx context.Context, session string, domain Domain) (Handle, error)
}

// SessionError reports that no handle could be opened for a session.
type SessionError struct {
	Session string
	Domain  Domain
	Err     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("opening session %q (%s): %v", e.Session, e.Domain, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// PIDError reports the PID on which a primitive failed.
type PIDError struct {
	Op  Operation
	PID int
	Err error
}

func (e *PIDError) Error() string {
	if e.PID == AllPIDs {
		return fmt.Sprintf("%s all PIDs: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s PID %d: %v", e.Op, e.PID, e.Err)
}

func (e *PIDError) Unwrap() error { return e.Err }

// Invoker drives the track and untrack primitives for a PID spec.
type Invoker struct {
	control SessionControl
}

// NewInvoker returns an Invoker that opens handles through control.
func NewInvoker(control SessionControl) *Invoker {
	return &Invoker{control: control}
}

// Apply opens a handle on session/domain and calls the primitive selected by
// op for every PID in spec, in order. It stops at the first failing PID; PIDs
// after it are not attempted and earlier ones stay applied. The handle is
// closed before Apply returns.
//
// The returned Result is valid even when err is non-nil.
func (inv *Invoker) Apply(ctx context.Context, op Operation, session string, domain Domain, spec pidspec.Spec) (res Result, err error) {
	if op != OpTrack && op != OpUntrack {
		return Result{Failure: &Failure{PID: NoPID, Err: ErrUnknownOperation}}, ErrUnknownOperation
	}

	h, err := inv.control.OpenHandle(ctx, session, domain)
	if err != nil {
		serr := &SessionError{Session: session, Domain: domain, Err: err}
		return Result{Failure: &Failure{PID: NoPID, Err: serr}}, serr
	}
	defer func() {
		if cerr := h.Close(); cerr != nil {
			log.Warn("closing session handle", "session", session, "domain", domain, "error", cerr)
		}
	}()

	pids := spec.PIDs()
	if spec.IsAll() {
		pids = []int{AllPIDs}
	}

	logger := log.With("op", op.String(), "session", session, "domain", domain.String())
	res.Attempts = make([]Attempt, 0, len(pids))
	for _, pid := range pids {
		logger.Debug(op.Verb()+" pid", "pid", pid)

		var callErr error
		switch op {
		case OpTrack:
			callErr = h.Track(ctx, pid)
		case OpUntrack:
			callErr = h.Untrack(ctx, pid)
		}
		res.Attempts = append(res.Attempts, Attempt{PID: pid, Err: callErr})

		if callErr != nil {
			perr := &PIDError{Op: op, PID: pid, Err: callErr}
			res.Failure = &Failure{PID: pid, Err: perr}
			return res, perr
		}
		res.Applied++
	}
	return res, nil
}
