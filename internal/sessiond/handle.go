package sessiond

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/majorcontext/tracectl/internal/tracker"
)

var (
	// ErrPIDTracked is returned when tracking a PID the tracker already covers.
	ErrPIDTracked = errors.New("PID already tracked")
	// ErrPIDNotTracked is returned when untracking a PID not in the tracker list.
	ErrPIDNotTracked = errors.New("PID not tracked")
	// ErrInvalidPID is returned for negative PIDs other than tracker.AllPIDs.
	ErrInvalidPID = errors.New("invalid PID")
	// ErrHandleClosed is returned by calls on a closed handle.
	ErrHandleClosed = errors.New("handle closed")
)

// Handle gives access to the tracker of one session domain.
type Handle struct {
	store   *Store
	session string
	domain  tracker.Domain

	mu     sync.Mutex
	closed bool
}

// OpenHandle returns a handle on the tracker of session/domain.
func (s *Store) OpenHandle(ctx context.Context, session string, domain tracker.Domain) (*Handle, error) {
	if _, err := s.Get(ctx, session); err != nil {
		return nil, err
	}
	return &Handle{store: s, session: session, domain: domain}, nil
}

// Session returns the session name.
func (h *Handle) Session() string { return h.session }

// Domain returns the tracker domain.
func (h *Handle) Domain() tracker.Domain { return h.domain }

// Track adds pid to the tracker. tracker.AllPIDs switches the tracker to
// every process and drops the explicit list.
func (h *Handle) Track(ctx context.Context, pid int) error {
	return h.update(ctx, pid, func(tx *sql.Tx, all bool) error {
		if pid == tracker.AllPIDs {
			return h.reset(ctx, tx, true)
		}
		if all {
			return fmt.Errorf("%w: %d (tracker covers all PIDs)", ErrPIDTracked, pid)
		}
		tracked, err := h.isTracked(ctx, tx, pid)
		if err != nil {
			return err
		}
		if tracked {
			return fmt.Errorf("%w: %d", ErrPIDTracked, pid)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tracked_pids (session, domain, pid) VALUES (?, ?, ?)`,
			h.session, h.domain.String(), pid); err != nil {
			return fmt.Errorf("inserting pid: %w", err)
		}
		return nil
	})
}

// Untrack removes pid from the tracker. tracker.AllPIDs empties the tracker
// so that no process is traced.
func (h *Handle) Untrack(ctx context.Context, pid int) error {
	return h.update(ctx, pid, func(tx *sql.Tx, all bool) error {
		if pid == tracker.AllPIDs {
			return h.reset(ctx, tx, false)
		}
		if all {
			return fmt.Errorf("%w: %d (tracker covers all PIDs)", ErrPIDNotTracked, pid)
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM tracked_pids WHERE session = ? AND domain = ? AND pid = ?`,
			h.session, h.domain.String(), pid)
		if err != nil {
			return fmt.Errorf("deleting pid: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %d", ErrPIDNotTracked, pid)
		}
		return nil
	})
}

// Close releases the handle. Closing twice returns ErrHandleClosed.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHandleClosed
	}
	h.closed = true
	return nil
}

func (h *Handle) update(ctx context.Context, pid int, fn func(tx *sql.Tx, all bool) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHandleClosed
	}
	if pid < 0 && pid != tracker.AllPIDs {
		return fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}

	return h.store.withTx(ctx, func(tx *sql.Tx) error {
		all, err := trackAll(ctx, tx, h.session, h.domain)
		if err != nil {
			return err
		}
		return fn(tx, all)
	})
}

func (h *Handle) reset(ctx context.Context, tx *sql.Tx, all bool) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tracked_pids WHERE session = ? AND domain = ?`,
		h.session, h.domain.String()); err != nil {
		return fmt.Errorf("clearing tracked pids: %w", err)
	}
	flag := 0
	if all {
		flag = 1
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE trackers SET track_all = ? WHERE session = ? AND domain = ?`,
		flag, h.session, h.domain.String()); err != nil {
		return fmt.Errorf("updating tracker: %w", err)
	}
	return nil
}

func (h *Handle) isTracked(ctx context.Context, tx *sql.Tx, pid int) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM tracked_pids WHERE session = ? AND domain = ? AND pid = ?`,
		h.session, h.domain.String(), pid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up pid: %w", err)
	}
	return true, nil
}

// Control adapts a Store to tracker.SessionControl.
type Control struct {
	Store *Store
}

// OpenHandle implements tracker.SessionControl.
func (c Control) OpenHandle(ctx context.Context, session string, domain tracker.Domain) (tracker.Handle, error) {
	h, err := c.Store.OpenHandle(ctx, session, domain)
	if err != nil {
		return nil, err
	}
	return h, nil
}

var _ tracker.SessionControl = Control{}
