// internal/domain/cart/manager.go
package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/domain/identity"
)

// Manager hands out one Store per cart owner and routes auth transitions to
// the owning session's synchronizer. Stores are created lazily from the
// durable copy on first touch and evicted after a session goes idle.
type Manager struct {
	mu       sync.Mutex
	stores   map[string]*Store
	syncs    map[string]*Synchronizer // keyed by anonymous session token
	seen     map[string]time.Time     // store key -> last touch
	syncSeen map[string]time.Time     // session token -> last touch

	userRepo  Repository
	guestRepo Repository
	policy    SyncPolicy
	log       *logrus.Logger
}

// NewManager creates a cart manager
func NewManager(userRepo, guestRepo Repository, policy SyncPolicy, log *logrus.Logger) *Manager {
	return &Manager{
		stores:    make(map[string]*Store),
		syncs:     make(map[string]*Synchronizer),
		seen:      make(map[string]time.Time),
		syncSeen:  make(map[string]time.Time),
		userRepo:  userRepo,
		guestRepo: guestRepo,
		policy:    policy,
		log:       log,
	}
}

func (m *Manager) repoFor(owner Owner) Repository {
	if owner.Kind == OwnerKindUser {
		return m.userRepo
	}
	return m.guestRepo
}

// StoreFor returns the store for an owner, loading the durable cart on first use
func (m *Manager) StoreFor(ctx context.Context, owner Owner) (*Store, error) {
	m.mu.Lock()
	if s, ok := m.stores[owner.Key()]; ok {
		m.seen[owner.Key()] = time.Now()
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	repo := m.repoFor(owner)
	c, err := repo.Fetch(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart for %s: %w", owner.Key(), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[owner.Key()] = time.Now()
	if s, ok := m.stores[owner.Key()]; ok {
		return s, nil
	}
	s := NewStore(c, repo, m.log)
	m.stores[owner.Key()] = s
	return s, nil
}

// Resync retries the last requested sync for a session, typically after a
// failed sign-in merge. No-op when the session has never transitioned.
func (m *Manager) Resync(ctx context.Context, sessionToken string) error {
	m.mu.Lock()
	y, ok := m.syncs[sessionToken]
	if ok {
		m.syncSeen[sessionToken] = time.Now()
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	store := y.store
	prevKey := store.Owner().Key()
	err := y.Resync(ctx)

	// A successful retry of a sign-in merge hands the store to the user key.
	m.mu.Lock()
	if newKey := store.Owner().Key(); newKey != prevKey {
		delete(m.stores, prevKey)
		delete(m.seen, prevKey)
		m.stores[newKey] = store
	}
	m.seen[store.Owner().Key()] = time.Now()
	m.mu.Unlock()
	return err
}

// Run consumes auth transitions until the context ends or the channel closes,
// periodically evicting sessions idle past the policy TTL.
func (m *Manager) Run(ctx context.Context, events <-chan identity.Transition) {
	var evict <-chan time.Time
	if m.policy.GuestIdleTTL > 0 {
		ticker := time.NewTicker(m.policy.GuestIdleTTL / 4)
		defer ticker.Stop()
		evict = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-evict:
			m.evictIdle(time.Now())
		case t, ok := <-events:
			if !ok {
				return
			}
			m.dispatch(ctx, t)
		}
	}
}

// evictIdle drops in-process state for sessions untouched past the TTL. The
// durable copies live in redis/postgres; StoreFor reloads them on next use.
func (m *Manager) evictIdle(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-m.policy.GuestIdleTTL)
	evicted := 0
	for key, at := range m.seen {
		if at.Before(cutoff) {
			delete(m.stores, key)
			delete(m.seen, key)
			evicted++
		}
	}
	for token, at := range m.syncSeen {
		if at.Before(cutoff) {
			delete(m.syncs, token)
			delete(m.syncSeen, token)
			evicted++
		}
	}
	if evicted > 0 {
		m.log.WithField("evicted", evicted).Debug("dropped idle cart sessions")
	}
}

func (m *Manager) dispatch(ctx context.Context, t identity.Transition) {
	// The session's synchronizer, when one exists, already holds the store
	// under whichever owner the last sync left it. Loading by guest key here
	// would hand a signed-in shopper's sign-out to a fresh empty store and
	// strand the retained cart.
	m.mu.Lock()
	y, ok := m.syncs[t.SessionToken]
	m.syncSeen[t.SessionToken] = time.Now()
	m.mu.Unlock()

	if !ok {
		owner := GuestOwner(t.SessionToken)
		if t.Type == identity.TransitionStartup && t.UserID != nil {
			owner = UserOwner(*t.UserID)
		}

		store, err := m.StoreFor(ctx, owner)
		if err != nil {
			m.log.WithError(err).WithField("owner", owner.Key()).Error("cannot load store for transition")
			return
		}

		m.mu.Lock()
		if existing, raced := m.syncs[t.SessionToken]; raced {
			y = existing
		} else {
			y = NewSynchronizer(store, m.userRepo, m.guestRepo, m.policy, m.log)
			m.syncs[t.SessionToken] = y
		}
		m.mu.Unlock()
	}

	store := y.store
	prevKey := store.Owner().Key()
	y.handle(ctx, t)

	// A sync may have handed the store to a different owner.
	m.mu.Lock()
	if newKey := store.Owner().Key(); newKey != prevKey {
		delete(m.stores, prevKey)
		delete(m.seen, prevKey)
		m.stores[newKey] = store
	}
	m.seen[store.Owner().Key()] = time.Now()
	m.mu.Unlock()
}
