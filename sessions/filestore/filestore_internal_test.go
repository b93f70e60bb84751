package filestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatekeeper-id/gatekeeper/sessions"
)

// The locks map must not retain an entry per session ever seen, or it
// grows without bound over the process lifetime.
func TestPurgeReleasesLockEntry(t *testing.T) {
	flow := sessions.Flow{
		Required:    []sessions.StepKind{sessions.StepPrimary},
		RetryBudget: 1,
	}
	store, err := Open(t.TempDir(), flow,
		WithTTL(time.Hour),
		WithSweepInterval(0),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Touch(ctx, sess.ID))

	store.mu.RLock()
	_, held := store.locks[sess.ID]
	store.mu.RUnlock()
	require.True(t, held, "mutation allocates a lock entry")

	require.NoError(t, store.Delete(ctx, sess.ID))

	store.mu.RLock()
	_, held = store.locks[sess.ID]
	store.mu.RUnlock()
	require.False(t, held, "purge frees the lock entry")
}
