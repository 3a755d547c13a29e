// Package sessiond is the session-control service used by tracectl. It keeps
// the tracing session registry and the per-domain PID trackers in a SQLite
// database and exposes the track and untrack primitives through handles.
package sessiond

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration

	"github.com/majorcontext/tracectl/internal/tracker"
)

var (
	// ErrSessionNotFound is returned when no session has the given name.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned by Create for a name already in use.
	ErrSessionExists = errors.New("session already exists")
	// ErrInvalidName is returned for names that fail validSessionName.
	ErrInvalidName = errors.New("invalid session name")
)

// validSessionName matches names safe to print and store.
var validSessionName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Session is a registered tracing session.
type Session struct {
	Name      string
	CreatedAt time.Time
}

// TrackerState is the content of one domain's tracker.
type TrackerState struct {
	Domain tracker.Domain
	// All is true when every process is tracked; PIDs is then empty.
	All bool
	// PIDs lists explicitly tracked processes in the order they were added.
	PIDs []int
}

// Store is the SQLite-backed session registry.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the registry at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes writers and avoids SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			name       TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS trackers (
			session   TEXT NOT NULL,
			domain    TEXT NOT NULL,
			track_all INTEGER NOT NULL,
			PRIMARY KEY (session, domain)
		);
		CREATE TABLE IF NOT EXISTS tracked_pids (
			session TEXT NOT NULL,
			domain  TEXT NOT NULL,
			pid     INTEGER NOT NULL,
			PRIMARY KEY (session, domain, pid)
		);
	`)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create registers a session. Both domains start out tracking every process.
func (s *Store) Create(ctx context.Context, name string) (*Session, error) {
	if !validSessionName.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	sess := &Session{Name: name, CreatedAt: time.Now().UTC()}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		exists, err := sessionExists(ctx, tx, name)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrSessionExists, name)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (name, created_at) VALUES (?, ?)`,
			name, sess.CreatedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("inserting session: %w", err)
		}
		for _, d := range tracker.Domains() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO trackers (session, domain, track_all) VALUES (?, ?, 1)`,
				name, d.String()); err != nil {
				return fmt.Errorf("inserting %s tracker: %w", d, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Destroy removes a session and its trackers.
func (s *Store) Destroy(ctx context.Context, name string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name)
		if err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, name)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM trackers WHERE session = ?`, name); err != nil {
			return fmt.Errorf("deleting trackers: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tracked_pids WHERE session = ?`, name); err != nil {
			return fmt.Errorf("deleting tracked pids: %w", err)
		}
		return nil
	})
}

// Get returns the named session.
func (s *Store) Get(ctx context.Context, name string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT name, created_at FROM sessions WHERE name = ?`, name)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	return sess, err
}

// List returns every session, oldest first.
func (s *Store) List(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, created_at FROM sessions ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Tracker returns the tracker state of one session domain.
func (s *Store) Tracker(ctx context.Context, name string, domain tracker.Domain) (*TrackerState, error) {
	state := &TrackerState{Domain: domain}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		all, err := trackAll(ctx, tx, name, domain)
		if err != nil {
			return err
		}
		state.All = all

		rows, err := tx.QueryContext(ctx,
			`SELECT pid FROM tracked_pids WHERE session = ? AND domain = ? ORDER BY rowid`,
			name, domain.String())
		if err != nil {
			return fmt.Errorf("querying tracked pids: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var pid int
			if err := rows.Scan(&pid); err != nil {
				return fmt.Errorf("scanning pid: %w", err)
			}
			state.PIDs = append(state.PIDs, pid)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var created string
	if err := row.Scan(&sess.Name, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return &sess, nil
}

func sessionExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up session: %w", err)
	}
	return true, nil
}

func trackAll(ctx context.Context, tx *sql.Tx, name string, domain tracker.Domain) (bool, error) {
	var all int
	err := tx.QueryRowContext(ctx,
		`SELECT track_all FROM trackers WHERE session = ? AND domain = ?`,
		name, domain.String()).Scan(&all)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	if err != nil {
		return false, fmt.Errorf("reading tracker: %w", err)
	}
	return all != 0, nil
}
