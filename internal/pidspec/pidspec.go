// Package pidspec parses the PID list given to the track and untrack
// commands. A list is either an explicit, ordered set of process IDs or the
// wildcard that stands for every process.
package pidspec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxPID is the largest process ID accepted. PIDs are stored as signed 32-bit
// values by the session-control service.
const MaxPID = math.MaxInt32

var (
	// ErrConflictingPidSpec is returned when a PID list is given together with --all.
	ErrConflictingPidSpec = errors.New("an empty PID list is expected with --all")

	// ErrMissingPidSpec is returned when neither a PID list nor --all is given.
	ErrMissingPidSpec = errors.New("specify a PID list, or --all with an empty PID list")

	// ErrInvalidPid is matched by every *InvalidPIDError.
	ErrInvalidPid = errors.New("invalid PID")
)

// InvalidPIDError reports the first token of a PID list that is not a valid PID.
type InvalidPIDError struct {
	Token string
	Err   error
}

func (e *InvalidPIDError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid PID %q: %v", e.Token, e.Err)
	}
	return fmt.Sprintf("invalid PID %q", e.Token)
}

func (e *InvalidPIDError) Unwrap() error { return e.Err }

// Is reports ErrInvalidPid as a match so callers can test the error class.
func (e *InvalidPIDError) Is(target error) bool { return target == ErrInvalidPid }

// Spec is a parsed PID list. The zero value is not valid; use Parse, All or
// Explicit.
type Spec struct {
	all  bool
	pids []int
}

// All returns the wildcard spec.
func All() Spec {
	return Spec{all: true}
}

// Explicit returns a spec for the given PIDs. The slice is copied.
func Explicit(pids ...int) Spec {
	return Spec{pids: append([]int(nil), pids...)}
}

// IsAll reports whether s is the wildcard.
func (s Spec) IsAll() bool { return s.all }

// PIDs returns a copy of the explicit PIDs in input order. It is nil for the
// wildcard.
func (s Spec) PIDs() []int {
	if s.all {
		return nil
	}
	return append([]int(nil), s.pids...)
}

// Len returns the number of explicit PIDs, or 1 for the wildcard.
func (s Spec) Len() int {
	if s.all {
		return 1
	}
	return len(s.pids)
}

// String renders "*" for the wildcard and the comma-separated list otherwise.
func (s Spec) String() string {
	if s.all {
		return "*"
	}
	parts := make([]string, len(s.pids))
	for i, pid := range s.pids {
		parts[i] = strconv.Itoa(pid)
	}
	return strings.Join(parts, ",")
}

// Parse builds a Spec from the raw --pid value and the --all flag. A nil raw
// means the value was omitted. An empty string is treated the same way.
//
// Tokens must be base-10 unsigned integers no larger than MaxPID. Empty tokens
// are rejected. Order and duplicates are kept as given.
func Parse(raw *string, all bool) (Spec, error) {
	present := raw != nil && *raw != ""

	switch {
	case all && present:
		return Spec{}, ErrConflictingPidSpec
	case all:
		return All(), nil
	case !present:
		return Spec{}, ErrMissingPidSpec
	}

	tokens := strings.Split(*raw, ",")
	pids := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		pid, err := parsePID(tok)
		if err != nil {
			return Spec{}, err
		}
		pids = append(pids, pid)
	}
	return Spec{pids: pids}, nil
}

func parsePID(tok string) (int, error) {
	if tok == "" {
		return 0, &InvalidPIDError{Token: tok, Err: errors.New("empty PID")}
	}
	v, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, &InvalidPIDError{Token: tok, Err: err}
	}
	if v > MaxPID {
		return 0, &InvalidPIDError{Token: tok, Err: fmt.Errorf("exceeds maximum PID %d", MaxPID)}
	}
	return int(v), nil
}
