package report

import (
	"errors"
	"fmt"

	"github.com/majorcontext/tracectl/internal/tracker"
)

// Element names of the command document.
const (
	ElementCommand = "command"
	ElementName    = "name"
	ElementOutput  = "output"
	ElementPIDs    = "pids"
	ElementPID     = "pid"
	ElementID      = "id"
	ElementAll     = "all"
	ElementSuccess = "success"
)

// ErrState is returned when a Builder call does not fit the document order.
var ErrState = errors.New("report element out of order")

type state int

const (
	stateClosed state = iota
	stateCommandOpen
	stateOutputOpen
	statePIDsOpen
	statePIDsClosed
	stateOutputClosed
	stateCommandClosed
)

var stateNames = [...]string{
	stateClosed:        "closed",
	stateCommandOpen:   "command open",
	stateOutputOpen:    "output open",
	statePIDsOpen:      "pids open",
	statePIDsClosed:    "pids closed",
	stateOutputClosed:  "output closed",
	stateCommandClosed: "command closed",
}

func (s state) String() string { return stateNames[s] }

// Builder writes a command document:
//
//	<command>
//	  <name>track</name>
//	  <output>
//	    <pids>
//	      <pid><id>10</id><success>true</success></pid>
//	    </pids>
//	  </output>
//	  <success>true</success>
//	</command>
//
// Calls must follow that order; a failed write leaves the builder unusable.
type Builder struct {
	w     Writer
	state state
	err   error
}

// NewBuilder returns a Builder writing to w.
func NewBuilder(w Writer) *Builder {
	return &Builder{w: w}
}

// OpenCommand opens the command element and writes its name.
func (b *Builder) OpenCommand(name string) error {
	return b.step(stateClosed, stateCommandOpen, func() error {
		if err := b.w.OpenElement(ElementCommand); err != nil {
			return err
		}
		return b.w.WriteString(ElementName, name)
	})
}

// OpenOutput opens the output element.
func (b *Builder) OpenOutput() error {
	return b.step(stateCommandOpen, stateOutputOpen, func() error {
		return b.w.OpenElement(ElementOutput)
	})
}

// WritePIDs writes the pids element with one entry per attempt.
func (b *Builder) WritePIDs(attempts []tracker.Attempt) error {
	if err := b.step(stateOutputOpen, statePIDsOpen, func() error {
		return b.w.OpenElement(ElementPIDs)
	}); err != nil {
		return err
	}
	for _, a := range attempts {
		if err := b.writeAttempt(a); err != nil {
			return b.fail(err)
		}
	}
	return b.step(statePIDsOpen, statePIDsClosed, b.w.CloseElement)
}

func (b *Builder) writeAttempt(a tracker.Attempt) error {
	if err := b.w.OpenElement(ElementPID); err != nil {
		return err
	}
	if a.PID == tracker.AllPIDs {
		if err := b.w.WriteBool(ElementAll, true); err != nil {
			return err
		}
	} else if err := b.w.WriteInt(ElementID, int64(a.PID)); err != nil {
		return err
	}
	if err := b.w.WriteBool(ElementSuccess, a.Err == nil); err != nil {
		return err
	}
	return b.w.CloseElement()
}

// CloseOutput closes the output element and writes the success flag. The
// pids element may be skipped when no PID was attempted.
func (b *Builder) CloseOutput(success bool) error {
	from := statePIDsClosed
	if b.state == stateOutputOpen {
		from = stateOutputOpen
	}
	return b.step(from, stateOutputClosed, func() error {
		if err := b.w.CloseElement(); err != nil {
			return err
		}
		return b.w.WriteBool(ElementSuccess, success)
	})
}

// CloseCommand closes the command element.
func (b *Builder) CloseCommand() error {
	return b.step(stateOutputClosed, stateCommandClosed, b.w.CloseElement)
}

// Close releases the writer. An incomplete document is reported as the
// builder's first write error, or ErrState, joined with the writer's own
// close error.
func (b *Builder) Close() error {
	complete := b.state == stateCommandClosed && b.err == nil
	b.state = stateClosed
	closeErr := b.w.Close()
	if complete {
		return closeErr
	}
	err := b.err
	if err == nil {
		err = fmt.Errorf("%w: document incomplete", ErrState)
	}
	return errors.Join(err, closeErr)
}

// WriteResult writes everything after OpenOutput for res.
func (b *Builder) WriteResult(res tracker.Result) error {
	if len(res.Attempts) > 0 || res.Failure == nil || res.Failure.PID != tracker.NoPID {
		if err := b.WritePIDs(res.Attempts); err != nil {
			return err
		}
	}
	if err := b.CloseOutput(res.ExitCode() == tracker.ExitSuccess); err != nil {
		return err
	}
	return b.CloseCommand()
}

func (b *Builder) step(from, to state, fn func() error) error {
	if b.err != nil {
		return b.err
	}
	if b.state != from {
		return fmt.Errorf("%w: in state %s, want %s", ErrState, b.state, from)
	}
	if err := fn(); err != nil {
		return b.fail(err)
	}
	b.state = to
	return nil
}

func (b *Builder) fail(err error) error {
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		err = &IOError{Op: "write", Err: err}
	}
	b.err = err
	return err
}
