// internal/domain/cart/manager_test.go
package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-backend/internal/domain/identity"
)

func newTestManager(policy SyncPolicy) (*Manager, *mockRepo, *mockRepo) {
	guestRepo, userRepo := newMockRepo(), newMockRepo()
	return NewManager(userRepo, guestRepo, policy, testLogger()), guestRepo, userRepo
}

func TestStoreForReturnsSameStorePerOwner(t *testing.T) {
	m, _, _ := newTestManager(SyncPolicy{MaxRetries: 3})
	ctx := context.Background()

	a, err := m.StoreFor(ctx, GuestOwner("session-1"))
	require.NoError(t, err)
	b, err := m.StoreFor(ctx, GuestOwner("session-1"))
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := m.StoreFor(ctx, GuestOwner("session-2"))
	require.NoError(t, err)
	assert.NotSame(t, a, other)
}

func TestDispatchRekeysStoreOnSignIn(t *testing.T) {
	m, _, userRepo := newTestManager(SyncPolicy{MaxRetries: 3})
	ctx := context.Background()

	seedUserCart(t, userRepo, 42, item(1, 3, "10.00"))
	store, err := m.StoreFor(ctx, GuestOwner("session-1"))
	require.NoError(t, err)
	require.NoError(t, store.AddItem(ctx, 1, nil, 2, price("10.00"), 10))

	uid := uint(42)
	m.dispatch(ctx, identity.Transition{Type: identity.TransitionSignIn, UserID: &uid, SessionToken: "session-1"})

	// The merged store now answers for the user key.
	merged, err := m.StoreFor(ctx, UserOwner(42))
	require.NoError(t, err)
	assert.Same(t, store, merged)
	assert.Equal(t, 5, merged.Snapshot().TotalQuantity())
}

func TestDispatchSignOutRetainsCartUnderGuestKey(t *testing.T) {
	m, _, _ := newTestManager(SyncPolicy{MaxRetries: 3})
	ctx := context.Background()

	store, err := m.StoreFor(ctx, GuestOwner("session-1"))
	require.NoError(t, err)
	require.NoError(t, store.AddItem(ctx, 1, nil, 2, price("10.00"), 10))

	uid := uint(42)
	m.dispatch(ctx, identity.Transition{Type: identity.TransitionSignIn, UserID: &uid, SessionToken: "session-1"})
	m.dispatch(ctx, identity.Transition{Type: identity.TransitionSignOut, SessionToken: "session-1"})

	// The sign-out must reach the session's existing store, not a freshly
	// loaded empty one, or the retained cart stays stranded under the user
	// key.
	retained, err := m.StoreFor(ctx, GuestOwner("session-1"))
	require.NoError(t, err)
	assert.Same(t, store, retained)
	assert.Equal(t, 2, retained.Snapshot().TotalQuantity())

	// And the user key no longer answers with the old store.
	userStore, err := m.StoreFor(ctx, UserOwner(42))
	require.NoError(t, err)
	assert.NotSame(t, store, userStore)
}

func TestResyncReachesSessionSynchronizer(t *testing.T) {
	m, _, userRepo := newTestManager(SyncPolicy{MaxRetries: 3})
	ctx := context.Background()

	store, err := m.StoreFor(ctx, GuestOwner("session-1"))
	require.NoError(t, err)
	require.NoError(t, store.AddItem(ctx, 1, nil, 2, price("10.00"), 10))

	userRepo.m.Lock()
	userRepo.fetchErr = assert.AnError
	userRepo.m.Unlock()

	uid := uint(42)
	m.dispatch(ctx, identity.Transition{Type: identity.TransitionSignIn, UserID: &uid, SessionToken: "session-1"})
	require.Error(t, store.Err())

	userRepo.m.Lock()
	userRepo.fetchErr = nil
	userRepo.m.Unlock()

	require.NoError(t, m.Resync(ctx, "session-1"))
	assert.Equal(t, UserOwner(42), store.Owner())
	assert.Equal(t, 2, store.Snapshot().TotalQuantity())

	// The retried merge re-keyed the store under the user.
	merged, err := m.StoreFor(ctx, UserOwner(42))
	require.NoError(t, err)
	assert.Same(t, store, merged)

	// Unknown sessions are a no-op.
	assert.NoError(t, m.Resync(ctx, "never-seen"))
}

func TestEvictIdleDropsUntouchedSessions(t *testing.T) {
	m, guestRepo, _ := newTestManager(SyncPolicy{MaxRetries: 3, GuestIdleTTL: time.Minute})
	ctx := context.Background()

	store, err := m.StoreFor(ctx, GuestOwner("session-1"))
	require.NoError(t, err)
	require.NoError(t, store.AddItem(ctx, 1, nil, 2, price("10.00"), 10))
	m.dispatch(ctx, identity.Transition{Type: identity.TransitionStartup, SessionToken: "session-1"})

	// Still fresh: nothing goes.
	m.evictIdle(time.Now())
	m.mu.Lock()
	assert.Len(t, m.stores, 1)
	assert.Len(t, m.syncs, 1)
	m.mu.Unlock()

	// Past the TTL the in-process state is dropped.
	m.evictIdle(time.Now().Add(2 * time.Minute))
	m.mu.Lock()
	assert.Empty(t, m.stores)
	assert.Empty(t, m.syncs)
	m.mu.Unlock()

	// The durable copy survives eviction; the next touch reloads it.
	require.NotNil(t, guestRepo.stored(GuestOwner("session-1")))
	reloaded, err := m.StoreFor(ctx, GuestOwner("session-1"))
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Snapshot().TotalQuantity())
}
