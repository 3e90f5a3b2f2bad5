// internal/domain/cart/synchronizer_test.go
package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedGuestStore(t *testing.T, guestRepo *mockRepo, items ...Item) *Store {
	t.Helper()
	owner := GuestOwner("session-1")
	c := NewCart(owner)
	for _, item := range items {
		c.upsert(item)
	}
	require.NoError(t, guestRepo.Replace(context.Background(), c))
	return NewStore(c, guestRepo, testLogger())
}

func seedUserCart(t *testing.T, userRepo *mockRepo, userID uint, items ...Item) {
	t.Helper()
	c := NewCart(UserOwner(userID))
	for _, item := range items {
		c.upsert(item)
	}
	require.NoError(t, userRepo.Replace(context.Background(), c))
}

func item(productID uint, qty int, unitPrice string) Item {
	return Item{
		ProductID: productID,
		UnitPrice: price(unitPrice),
		Quantity:  qty,
		VendorID:  1,
	}
}

func TestMergeSumsQuantitiesByKey(t *testing.T) {
	server := NewCart(UserOwner(42))
	server.upsert(item(1, 3, "10.00"))
	server.upsert(item(2, 1, "4.00"))

	local := NewCart(GuestOwner("s"))
	local.upsert(item(1, 2, "10.00"))
	local.upsert(item(3, 1, "7.00"))

	merged := Merge(server, local)

	// 3 server + 2 local units of product 1 become one 5-unit line.
	require.Equal(t, 3, merged.ItemCount())
	for _, it := range merged.Items {
		if it.ProductID == 1 {
			assert.Equal(t, 5, it.Quantity)
		}
	}
}

func TestMergeIsIdempotentOnLineKeys(t *testing.T) {
	server := NewCart(UserOwner(42))
	server.upsert(item(1, 3, "10.00"))

	local := NewCart(GuestOwner("s"))
	local.upsert(item(1, 2, "10.00"))

	merged := Merge(server, local)

	// Re-running the merge never produces duplicate lines.
	again := Merge(merged, local)
	assert.Equal(t, 1, again.ItemCount())
}

func TestMergeKeepsServerPriceSnapshot(t *testing.T) {
	server := NewCart(UserOwner(42))
	server.upsert(item(1, 3, "12.00"))

	local := NewCart(GuestOwner("s"))
	local.upsert(item(1, 2, "10.00")) // stale snapshot from before a reprice

	merged := Merge(server, local)

	require.Equal(t, 1, merged.ItemCount())
	assert.Equal(t, 5, merged.Items[0].Quantity)
	assert.True(t, merged.Items[0].UnitPrice.Equal(price("12.00")),
		"got %s", merged.Items[0].UnitPrice)
}

func TestSignInMergesGuestIntoUserCart(t *testing.T) {
	guestRepo, userRepo := newMockRepo(), newMockRepo()
	store := seedGuestStore(t, guestRepo, item(1, 2, "10.00"))
	seedUserCart(t, userRepo, 42, item(1, 3, "10.00"), item(2, 1, "4.00"))

	y := NewSynchronizer(store, userRepo, guestRepo, SyncPolicy{MaxRetries: 3}, testLogger())
	require.NoError(t, y.SignIn(context.Background(), 42))

	// Store now answers for the user with the merged contents.
	assert.Equal(t, UserOwner(42), store.Owner())
	snap := store.Snapshot()
	require.Equal(t, 2, snap.ItemCount())
	assert.Equal(t, 6, snap.TotalQuantity())

	// The merged result is the durable copy.
	stored := userRepo.stored(UserOwner(42))
	require.NotNil(t, stored)
	assert.Equal(t, 6, stored.TotalQuantity())

	// The guest blob is gone, so a replayed sync cannot merge twice.
	assert.Nil(t, guestRepo.stored(GuestOwner("session-1")))
}

func TestSignInWithEmptyLocalAdoptsServerCart(t *testing.T) {
	guestRepo, userRepo := newMockRepo(), newMockRepo()
	store := seedGuestStore(t, guestRepo)
	seedUserCart(t, userRepo, 42, item(5, 4, "2.50"))

	y := NewSynchronizer(store, userRepo, guestRepo, SyncPolicy{MaxRetries: 3}, testLogger())
	require.NoError(t, y.SignIn(context.Background(), 42))

	snap := store.Snapshot()
	assert.Equal(t, 4, snap.TotalQuantity())

	// Nothing to persist when there was nothing to merge.
	userRepo.m.Lock()
	calls := userRepo.replaceCalls
	userRepo.m.Unlock()
	assert.Equal(t, 1, calls) // the seed write only
}

func TestSignInRetriesMergeOnConflict(t *testing.T) {
	guestRepo, userRepo := newMockRepo(), newMockRepo()
	store := seedGuestStore(t, guestRepo, item(1, 2, "10.00"))
	seedUserCart(t, userRepo, 42, item(1, 3, "10.00"))

	userRepo.m.Lock()
	userRepo.conflictsLeft = 2
	userRepo.m.Unlock()

	y := NewSynchronizer(store, userRepo, guestRepo, SyncPolicy{MaxRetries: 3}, testLogger())
	require.NoError(t, y.SignIn(context.Background(), 42))

	assert.Equal(t, 5, store.Snapshot().TotalQuantity())
}

func TestSignInSurfacesConflictAfterBoundedRetries(t *testing.T) {
	guestRepo, userRepo := newMockRepo(), newMockRepo()
	store := seedGuestStore(t, guestRepo, item(1, 2, "10.00"))
	seedUserCart(t, userRepo, 42, item(1, 3, "10.00"))

	userRepo.m.Lock()
	userRepo.conflictsLeft = 10
	userRepo.m.Unlock()

	y := NewSynchronizer(store, userRepo, guestRepo, SyncPolicy{MaxRetries: 3}, testLogger())
	err := y.SignIn(context.Background(), 42)
	assert.ErrorIs(t, err, ErrSyncConflict)

	// Local cart retained, error surfaced; nothing was dropped.
	assert.Equal(t, GuestOwner("session-1"), store.Owner())
	assert.Equal(t, 2, store.Snapshot().TotalQuantity())
	assert.ErrorIs(t, store.Err(), ErrSyncConflict)
}

func TestSignInServerFailureRetainsLocalCart(t *testing.T) {
	guestRepo, userRepo := newMockRepo(), newMockRepo()
	store := seedGuestStore(t, guestRepo, item(1, 2, "10.00"))

	userRepo.m.Lock()
	userRepo.fetchErr = assert.AnError
	userRepo.m.Unlock()

	y := NewSynchronizer(store, userRepo, guestRepo, SyncPolicy{MaxRetries: 3}, testLogger())
	err := y.SignIn(context.Background(), 42)
	assert.ErrorIs(t, err, ErrSyncFailed)
	assert.Equal(t, 2, store.Snapshot().TotalQuantity())
	assert.ErrorIs(t, store.Err(), ErrSyncFailed)
}

func TestResyncRetriesFailedSignIn(t *testing.T) {
	guestRepo, userRepo := newMockRepo(), newMockRepo()
	store := seedGuestStore(t, guestRepo, item(1, 2, "10.00"))

	userRepo.m.Lock()
	userRepo.fetchErr = assert.AnError
	userRepo.m.Unlock()

	y := NewSynchronizer(store, userRepo, guestRepo, SyncPolicy{MaxRetries: 3}, testLogger())
	require.Error(t, y.SignIn(context.Background(), 42))

	// Collaborator recovers; the caller-initiated retry converges.
	userRepo.m.Lock()
	userRepo.fetchErr = nil
	userRepo.m.Unlock()

	require.NoError(t, y.Resync(context.Background()))
	assert.Equal(t, UserOwner(42), store.Owner())
	assert.Equal(t, 2, store.Snapshot().TotalQuantity())
}

func TestResyncAfterConvergenceIsIdempotent(t *testing.T) {
	guestRepo, userRepo := newMockRepo(), newMockRepo()
	store := seedGuestStore(t, guestRepo, item(1, 2, "10.00"))
	seedUserCart(t, userRepo, 42, item(1, 3, "10.00"))

	y := NewSynchronizer(store, userRepo, guestRepo, SyncPolicy{MaxRetries: 3}, testLogger())
	require.NoError(t, y.SignIn(context.Background(), 42))
	require.Equal(t, 5, store.Snapshot().TotalQuantity())

	// A converged store already mirrors the durable copy; a repeated sync
	// must not merge the cart with itself.
	for i := 0; i < 3; i++ {
		require.NoError(t, y.Resync(context.Background()))
		assert.Equal(t, 5, store.Snapshot().TotalQuantity())
	}
}

func TestResyncAfterSignOutMergesRetainedCart(t *testing.T) {
	guestRepo, userRepo := newMockRepo(), newMockRepo()
	store := seedGuestStore(t, guestRepo, item(1, 2, "10.00"))

	y := NewSynchronizer(store, userRepo, guestRepo, SyncPolicy{MaxRetries: 3}, testLogger())
	require.NoError(t, y.SignIn(context.Background(), 42))
	y.SignOut(context.Background(), "session-2")

	// The retained cart was never persisted under the new session, so the
	// sync still has work to do and must not drop the lines.
	require.NoError(t, y.Resync(context.Background()))
	assert.Equal(t, 2, store.Snapshot().TotalQuantity())
}

func TestSignOutRetainsCartByDefault(t *testing.T) {
	guestRepo, userRepo := newMockRepo(), newMockRepo()
	store := seedGuestStore(t, guestRepo, item(1, 2, "10.00"))

	y := NewSynchronizer(store, userRepo, guestRepo, SyncPolicy{MaxRetries: 3}, testLogger())
	require.NoError(t, y.SignIn(context.Background(), 42))

	y.SignOut(context.Background(), "session-2")

	owner := store.Owner()
	assert.Equal(t, OwnerKindGuest, owner.Kind)
	assert.Equal(t, "session-2", owner.ID)
	assert.Equal(t, 2, store.Snapshot().TotalQuantity())
	assert.Equal(t, int64(0), store.Snapshot().Version)
}

func TestSignOutClearsCartWhenPolicySaysSo(t *testing.T) {
	guestRepo, userRepo := newMockRepo(), newMockRepo()
	store := seedGuestStore(t, guestRepo, item(1, 2, "10.00"))

	y := NewSynchronizer(store, userRepo, guestRepo, SyncPolicy{ClearOnSignOut: true, MaxRetries: 3}, testLogger())
	require.NoError(t, y.SignIn(context.Background(), 42))

	y.SignOut(context.Background(), "session-2")

	assert.Equal(t, OwnerKindGuest, store.Owner().Kind)
	assert.True(t, store.Snapshot().IsEmpty())
}
