package cli

import (
	"errors"
	"strings"

	"github.com/majorcontext/tracectl/internal/pidspec"
	"github.com/majorcontext/tracectl/internal/report"
	"github.com/majorcontext/tracectl/internal/tracker"
)

// Process exit statuses.
const (
	ExitSuccess       = 0
	ExitError         = 1
	ExitUndefined     = 2
	ExitMissingDomain = 3
	ExitPIDSpec       = 4
	ExitTrackerFailed = tracker.ExitTrackerFailed
	ExitReportIO      = 6
)

// usageError marks an error caused by how the command was invoked. The
// command usage is printed after the message.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func usagef(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

func wantsUsage(err error) bool {
	var uerr *usageError
	return errors.As(err, &uerr) || isUnknownCommand(err)
}

// isUnknownCommand matches the error cobra returns for an unknown subcommand.
func isUnknownCommand(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "unknown command ")
}

// exitCodeFor maps an error returned by a command to an exit status. Specific
// classes win over the usage marker so that, for example, a missing domain
// exits with ExitMissingDomain even though usage is printed.
func exitCodeFor(err error) int {
	var (
		pidErr *tracker.PIDError
		ioErr  *report.IOError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, tracker.ErrDomainNotSpecified):
		return ExitMissingDomain
	case errors.Is(err, pidspec.ErrMissingPidSpec),
		errors.Is(err, pidspec.ErrConflictingPidSpec),
		errors.Is(err, pidspec.ErrInvalidPid):
		return ExitPIDSpec
	case errors.As(err, &pidErr):
		return ExitTrackerFailed
	case errors.As(err, &ioErr), errors.Is(err, report.ErrState):
		return ExitReportIO
	case wantsUsage(err):
		return ExitUndefined
	default:
		return ExitError
	}
}
