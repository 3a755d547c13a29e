package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/majorcontext/tracectl/internal/pidspec"
	"github.com/majorcontext/tracectl/internal/report"
	"github.com/majorcontext/tracectl/internal/tracker"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitError},
		{"domain", usagef(tracker.ErrDomainNotSpecified), ExitMissingDomain},
		{"missing pids", usagef(pidspec.ErrMissingPidSpec), ExitPIDSpec},
		{"conflicting pids", pidspec.ErrConflictingPidSpec, ExitPIDSpec},
		{"invalid pid", fmt.Errorf("parsing: %w", &pidspec.InvalidPIDError{Token: "x"}), ExitPIDSpec},
		{"tracker", &tracker.PIDError{Op: tracker.OpTrack, PID: 3, Err: errors.New("no")}, ExitTrackerFailed},
		{"session", &tracker.SessionError{Session: "s", Err: errors.New("no")}, ExitError},
		{"report io", &report.IOError{Op: "open command", Err: errors.New("EPIPE")}, ExitReportIO},
		{"report state", fmt.Errorf("%w: x", report.ErrState), ExitReportIO},
		{"usage", usagef(errors.New(`unexpected argument "x"`)), ExitUndefined},
		{"unknown command", errors.New(`unknown command "x" for "tracectl"`), ExitUndefined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestExitCodesDistinct(t *testing.T) {
	codes := []int{ExitSuccess, ExitError, ExitUndefined, ExitMissingDomain, ExitPIDSpec, ExitTrackerFailed, ExitReportIO}
	seen := map[int]bool{}
	for _, c := range codes {
		assert.False(t, seen[c], "duplicate exit code %d", c)
		seen[c] = true
	}
}

func TestUsagef(t *testing.T) {
	assert.NoError(t, usagef(nil))
	err := usagef(pidspec.ErrMissingPidSpec)
	assert.True(t, wantsUsage(err))
	assert.ErrorIs(t, err, pidspec.ErrMissingPidSpec)
	assert.False(t, wantsUsage(errors.New("x")))
}
