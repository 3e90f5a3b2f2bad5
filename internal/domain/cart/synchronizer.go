// internal/domain/cart/synchronizer.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/domain/identity"
	"golang.org/x/sync/singleflight"
)

// SyncPolicy configures synchronizer behaviour
type SyncPolicy struct {
	// ClearOnSignOut empties the local cart when the user signs out instead
	// of retaining it for the next anonymous session. A privacy trade-off on
	// shared devices, so it is policy, not code.
	ClearOnSignOut bool
	// MaxRetries bounds merge re-attempts on version conflicts.
	MaxRetries int
	// GuestIdleTTL bounds how long an untouched session keeps its in-process
	// store and synchronizer; zero disables eviction. Pairing it with the
	// guest-cart blob TTL keeps the in-memory copy from outliving the
	// durable one.
	GuestIdleTTL time.Duration
}

// Synchronizer reconciles the local store with the server-held cart on every
// authentication transition. It reacts to bus events exactly once each; no
// polling, no timer-driven activity.
type Synchronizer struct {
	store     *Store
	userRepo  Repository
	guestRepo Repository
	policy    SyncPolicy
	sfg       singleflight.Group
	log       *logrus.Entry

	mu     sync.Mutex
	target Owner // the owner the store should converge to
}

// NewSynchronizer creates a synchronizer for one shopper's store
func NewSynchronizer(store *Store, userRepo, guestRepo Repository, policy SyncPolicy, log *logrus.Logger) *Synchronizer {
	if policy.MaxRetries < 1 {
		policy.MaxRetries = 3
	}
	return &Synchronizer{
		store:     store,
		userRepo:  userRepo,
		guestRepo: guestRepo,
		policy:    policy,
		log:       log.WithField("component", "cart_synchronizer"),
		target:    store.Owner(),
	}
}

// Run consumes transitions until the context ends or the channel closes
func (y *Synchronizer) Run(ctx context.Context, events <-chan identity.Transition) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-events:
			if !ok {
				return
			}
			y.handle(ctx, t)
		}
	}
}

func (y *Synchronizer) handle(ctx context.Context, t identity.Transition) {
	switch t.Type {
	case identity.TransitionSignIn:
		if t.UserID == nil {
			y.log.Warn("sign-in transition without user id")
			return
		}
		if err := y.SignIn(ctx, *t.UserID); err != nil {
			y.log.WithError(err).Error("sign-in cart sync failed")
		}
	case identity.TransitionSignOut:
		y.SignOut(ctx, t.SessionToken)
	case identity.TransitionStartup:
		if err := y.Resync(ctx); err != nil {
			y.log.WithError(err).Error("startup cart sync failed")
		}
	}
}

// SignIn merges the local (anonymous) cart into the now-authenticated user's
// server cart. On failure the local cart is retained and the store error set;
// a retry happens only when the caller invokes Resync.
func (y *Synchronizer) SignIn(ctx context.Context, userID uint) error {
	owner := UserOwner(userID)

	y.mu.Lock()
	y.target = owner
	y.mu.Unlock()

	return y.syncTo(ctx, owner)
}

// SignOut hands the cart back to an anonymous owner. The server cart is
// neither fetched nor cleared; what happens to the local contents is policy.
func (y *Synchronizer) SignOut(ctx context.Context, sessionToken string) {
	if sessionToken == "" {
		sessionToken = uuid.NewString()
	}
	owner := GuestOwner(sessionToken)

	y.mu.Lock()
	y.target = owner
	y.mu.Unlock()

	if y.policy.ClearOnSignOut {
		y.store.Rebind(y.guestRepo, NewCart(owner))
		y.log.WithField("owner", owner.Key()).Info("cart cleared on sign-out")
		return
	}

	kept := y.store.Snapshot()
	kept.Owner = owner
	kept.Version = 0
	y.store.Rebind(y.guestRepo, kept)
	y.log.WithField("owner", owner.Key()).Info("cart retained for anonymous session")
}

// Resync re-runs the sync toward the last requested owner. Used at startup
// and as the caller-initiated retry after a failed sign-in merge.
func (y *Synchronizer) Resync(ctx context.Context) error {
	y.mu.Lock()
	owner := y.target
	y.mu.Unlock()

	return y.syncTo(ctx, owner)
}

func (y *Synchronizer) syncTo(ctx context.Context, owner Owner) error {
	prev := y.store.Owner()
	local := y.store.Snapshot()

	repo := y.guestRepo
	if owner.Kind == OwnerKindUser {
		repo = y.userRepo
	}

	// A store that already converged to this owner holds a persisted replica
	// of the server cart; merging it with its own durable copy would double
	// every quantity. A retained sign-out cart (Version 0, not yet persisted)
	// still goes through the merge.
	converged := prev.Key() == owner.Key() && local.Version > 0

	var adopted *Cart
	if local.IsEmpty() || converged {
		// Nothing to merge; adopt the server copy as-is.
		server, err := y.fetchServer(ctx, repo, owner)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrSyncFailed, err)
			y.store.reject(err)
			return err
		}
		adopted = server
	} else {
		merged, err := y.mergeWithRetry(ctx, repo, owner, local)
		if err != nil {
			y.store.reject(err)
			return err
		}
		adopted = merged
	}

	y.store.Rebind(repo, adopted)

	// Drop the guest blob once its lines live server-side, so a replayed
	// sign-in cannot merge them twice.
	if prev.Kind == OwnerKindGuest && owner.Kind == OwnerKindUser && !local.IsEmpty() {
		if err := y.guestRepo.Delete(ctx, prev); err != nil {
			y.log.WithError(err).WithField("owner", prev.Key()).Warn("failed to delete guest cart after merge")
		}
	}

	y.log.WithFields(logrus.Fields{
		"owner": owner.Key(),
		"lines": adopted.ItemCount(),
	}).Info("cart synchronized")
	return nil
}

// mergeWithRetry fetches, merges and persists under the repository's
// compare-and-set, refetching on conflict up to the retry bound. Only the
// merge is retried, never the surrounding auth flow.
func (y *Synchronizer) mergeWithRetry(ctx context.Context, repo Repository, owner Owner, local *Cart) (*Cart, error) {
	var lastErr error
	for attempt := 1; attempt <= y.policy.MaxRetries; attempt++ {
		server, err := y.fetchServer(ctx, repo, owner)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch server cart: %v", ErrSyncFailed, err)
		}

		merged := Merge(server, local)
		merged.Owner = owner

		err = repo.Replace(ctx, merged)
		if err == nil {
			return merged, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: persist merged cart: %v", ErrSyncFailed, err)
		}

		lastErr = err
		y.log.WithFields(logrus.Fields{"owner": owner.Key(), "attempt": attempt}).
			Debug("merge conflicted, refetching")
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrSyncConflict, y.policy.MaxRetries, lastErr)
}

// fetchServer collapses concurrent fetches for the same owner
func (y *Synchronizer) fetchServer(ctx context.Context, repo Repository, owner Owner) (*Cart, error) {
	v, err, _ := y.sfg.Do(owner.Key(), func() (interface{}, error) {
		return repo.Fetch(ctx, owner)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Cart).Clone(), nil
}
