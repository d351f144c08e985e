package pos

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStoreCreateAndGet(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Hour)
	sess := store.Create()

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	require.Same(t, sess, got)
	require.Equal(t, 1, store.Len())

	_, err = store.Get(uuid.New())
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStoreDelete(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Hour)
	sess := store.Create()

	store.Delete(sess.ID)
	_, err := store.Get(sess.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)

	// unknown ids are ignored
	store.Delete(uuid.New())
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store := NewStore(time.Hour)
	store.Now = func() time.Time { return now }

	stale := store.Create()
	now = now.Add(2 * time.Hour)
	fresh := store.Create()

	removed := store.sweepOnce(now)
	require.Equal(t, 1, removed)

	_, err := store.Get(stale.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(fresh.ID)
	require.NoError(t, err)
}

func TestSweepSkipsSubmittingSessions(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store := NewStore(time.Hour)
	store.Now = func() time.Time { return now }

	sess := store.Create()
	require.True(t, sess.BeginSubmit())

	removed := store.sweepOnce(now.Add(3 * time.Hour))
	require.Zero(t, removed)

	sess.EndSubmit()
	removed = store.sweepOnce(now.Add(3 * time.Hour))
	require.Equal(t, 1, removed)
}

func TestGetRefreshesIdleDeadline(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store := NewStore(time.Hour)
	store.Now = func() time.Time { return now }

	sess := store.Create()

	now = now.Add(50 * time.Minute)
	_, err := store.Get(sess.ID)
	require.NoError(t, err)

	// would have expired at +60m without the touch at +50m
	removed := store.sweepOnce(now.Add(30 * time.Minute))
	require.Zero(t, removed)
}

func TestBeginSubmitIsExclusive(t *testing.T) {
	t.Parallel()

	sess := NewStore(time.Hour).Create()

	require.True(t, sess.BeginSubmit())
	require.False(t, sess.BeginSubmit())
	require.True(t, sess.Submitting())

	sess.EndSubmit()
	require.True(t, sess.BeginSubmit())
}
