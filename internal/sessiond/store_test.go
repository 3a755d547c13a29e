package sessiond

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majorcontext/tracectl/internal/pidspec"
	"github.com/majorcontext/tracectl/internal/tracker"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	created, err := store.Create(ctx, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, "trace-1", created.Name)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := store.Get(ctx, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, "trace-1", got.Name)

	_, err = store.Create(ctx, "trace-1")
	assert.ErrorIs(t, err, ErrSessionExists)

	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_CreateRejectsBadNames(t *testing.T) {
	store := openTestStore(t)
	for _, name := range []string{"", "-lead", "has space", "a/b", "../x"} {
		_, err := store.Create(context.Background(), name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestStore_NewSessionTracksAll(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_, err := store.Create(ctx, "s")
	require.NoError(t, err)

	for _, d := range tracker.Domains() {
		state, err := store.Tracker(ctx, "s", d)
		require.NoError(t, err)
		assert.True(t, state.All, d.String())
		assert.Empty(t, state.PIDs)
	}
}

func TestStore_ListAndDestroy(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	for _, name := range []string{"a", "b"} {
		_, err := store.Create(ctx, name)
		require.NoError(t, err)
	}

	h, err := store.OpenHandle(ctx, "a", tracker.DomainKernel)
	require.NoError(t, err)
	require.NoError(t, h.Untrack(ctx, tracker.AllPIDs))
	require.NoError(t, h.Track(ctx, 7))
	require.NoError(t, h.Close())

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	require.NoError(t, store.Destroy(ctx, "a"))
	assert.ErrorIs(t, store.Destroy(ctx, "a"), ErrSessionNotFound)

	sessions, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "b", sessions[0].Name)

	// Recreating a destroyed session starts from a clean tracker.
	_, err = store.Create(ctx, "a")
	require.NoError(t, err)
	state, err := store.Tracker(ctx, "a", tracker.DomainKernel)
	require.NoError(t, err)
	assert.True(t, state.All)
	assert.Empty(t, state.PIDs)
}

func TestHandle_TrackerSemantics(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_, err := store.Create(ctx, "s")
	require.NoError(t, err)

	h, err := store.OpenHandle(ctx, "s", tracker.DomainUserspace)
	require.NoError(t, err)
	defer h.Close()

	// Tracking a PID while all are tracked is redundant.
	assert.ErrorIs(t, h.Track(ctx, 10), ErrPIDTracked)
	assert.ErrorIs(t, h.Untrack(ctx, 10), ErrPIDNotTracked)

	require.NoError(t, h.Untrack(ctx, tracker.AllPIDs))
	require.NoError(t, h.Track(ctx, 30))
	require.NoError(t, h.Track(ctx, 10))
	require.NoError(t, h.Track(ctx, 0))
	assert.ErrorIs(t, h.Track(ctx, 10), ErrPIDTracked)

	state, err := store.Tracker(ctx, "s", tracker.DomainUserspace)
	require.NoError(t, err)
	assert.False(t, state.All)
	assert.Equal(t, []int{30, 10, 0}, state.PIDs)

	require.NoError(t, h.Untrack(ctx, 10))
	assert.ErrorIs(t, h.Untrack(ctx, 10), ErrPIDNotTracked)

	// The kernel tracker is independent.
	kstate, err := store.Tracker(ctx, "s", tracker.DomainKernel)
	require.NoError(t, err)
	assert.True(t, kstate.All)

	require.NoError(t, h.Track(ctx, tracker.AllPIDs))
	state, err = store.Tracker(ctx, "s", tracker.DomainUserspace)
	require.NoError(t, err)
	assert.True(t, state.All)
	assert.Empty(t, state.PIDs)

	assert.ErrorIs(t, h.Track(ctx, -5), ErrInvalidPID)
}

func TestHandle_Close(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_, err := store.Create(ctx, "s")
	require.NoError(t, err)

	h, err := store.OpenHandle(ctx, "s", tracker.DomainKernel)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	assert.ErrorIs(t, h.Close(), ErrHandleClosed)
	assert.ErrorIs(t, h.Track(ctx, 1), ErrHandleClosed)
}

func TestHandle_SessionDestroyedUnderHandle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_, err := store.Create(ctx, "s")
	require.NoError(t, err)

	h, err := store.OpenHandle(ctx, "s", tracker.DomainKernel)
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, store.Destroy(ctx, "s"))
	assert.ErrorIs(t, h.Untrack(ctx, tracker.AllPIDs), ErrSessionNotFound)
}

func TestOpenHandle_UnknownSession(t *testing.T) {
	store := openTestStore(t)
	_, err := store.OpenHandle(context.Background(), "ghost", tracker.DomainKernel)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestControl_WithInvoker(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_, err := store.Create(ctx, "s")
	require.NoError(t, err)

	inv := tracker.NewInvoker(Control{Store: store})

	_, err = inv.Apply(ctx, tracker.OpUntrack, "s", tracker.DomainKernel, pidspec.All())
	require.NoError(t, err)

	res, err := inv.Apply(ctx, tracker.OpTrack, "s", tracker.DomainKernel, pidspec.Explicit(10, 20))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)

	// 20 is already tracked: 15 applies, 20 fails, 40 is never attempted.
	res, err = inv.Apply(ctx, tracker.OpTrack, "s", tracker.DomainKernel, pidspec.Explicit(15, 20, 40))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPIDTracked)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, tracker.ExitTrackerFailed, res.ExitCode())

	state, err := store.Tracker(ctx, "s", tracker.DomainKernel)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 15}, state.PIDs)

	_, err = inv.Apply(ctx, tracker.OpTrack, "ghost", tracker.DomainKernel, pidspec.Explicit(1))
	var serr *tracker.SessionError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
