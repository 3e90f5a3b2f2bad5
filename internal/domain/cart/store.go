// internal/domain/cart/store.go
package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Store is the authoritative in-process cart for one shopper session. The
// server-held repository is the durable copy; the store persists every
// mutation through it before committing locally, so no reader ever observes
// state the server has not accepted.
//
// Mutations are serialized: a call issued while another is in flight waits
// its turn, which rules out lost updates from out-of-order completions. The
// isUpdating/error pair is UI-facing state describing the last attempt.
type Store struct {
	// opMu serializes mutations; held for the full duration of persist+commit.
	opMu sync.Mutex

	// stateMu guards the fields below for snapshot readers.
	stateMu  sync.RWMutex
	cart     *Cart
	repo     Repository
	updating bool
	lastErr  error

	log *logrus.Entry
}

// NewStore creates a store over an already-loaded cart
func NewStore(c *Cart, repo Repository, log *logrus.Logger) *Store {
	return &Store{
		cart: c.Clone(),
		repo: repo,
		log:  log.WithField("component", "cart_store"),
	}
}

// Snapshot returns a deep copy of the current cart. Mutations are
// all-or-nothing, so a snapshot never exposes a partially applied change.
func (s *Store) Snapshot() *Cart {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.cart.Clone()
}

// Owner returns the cart's current owner
func (s *Store) Owner() Owner {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.cart.Owner
}

// IsUpdating reports whether a mutation is currently in flight
func (s *Store) IsUpdating() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.updating
}

// Err returns the last mutation's failure, if any. It clears at the start of
// the next mutation.
func (s *Store) Err() error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lastErr
}

// AddItem merges a product into an existing line with the same
// (product, variant) key or appends a new line, then persists.
func (s *Store) AddItem(ctx context.Context, productID uint, variantID *uint, quantity int, unitPrice decimal.Decimal, vendorID uint) error {
	if quantity < 1 {
		return s.reject(ErrInvalidQuantity)
	}

	return s.mutate(ctx, "add_item", func(working *Cart) error {
		working.upsert(Item{
			ProductID: productID,
			VariantID: variantID,
			VendorID:  vendorID,
			UnitPrice: unitPrice,
			Quantity:  quantity,
			AddedAt:   time.Now().UTC(),
		})
		return nil
	})
}

// UpdateQuantity replaces a line's quantity; zero or below removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	return s.mutate(ctx, "update_quantity", func(working *Cart) error {
		i := working.lineIndex(lineID)
		if i < 0 {
			return ErrLineNotFound
		}
		if quantity <= 0 {
			working.Items = append(working.Items[:i], working.Items[i+1:]...)
			return nil
		}
		working.Items[i].Quantity = quantity
		return nil
	})
}

// RemoveItem deletes a line
func (s *Store) RemoveItem(ctx context.Context, lineID string) error {
	return s.UpdateQuantity(ctx, lineID, 0)
}

// Clear empties the cart; used after a successful checkout
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, "clear", func(working *Cart) error {
		working.Items = []Item{}
		return nil
	})
}

// mutate runs one serialized mutation: clone, apply, persist, commit. On any
// failure the committed cart is untouched and the error lands in lastErr.
func (s *Store) mutate(ctx context.Context, op string, apply func(working *Cart) error) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.begin()
	defer s.end()

	s.stateMu.RLock()
	working := s.cart.Clone()
	repo := s.repo
	s.stateMu.RUnlock()

	if err := apply(working); err != nil {
		return s.reject(err)
	}
	working.UpdatedAt = time.Now().UTC()

	if err := repo.Replace(ctx, working); err != nil {
		err = fmt.Errorf("persist cart: %w", err)
		s.log.WithField("op", op).WithError(err).Warn("cart mutation not persisted")
		return s.reject(err)
	}

	s.stateMu.Lock()
	s.cart = working
	s.stateMu.Unlock()
	return nil
}

// Rebind atomically swaps the store's owner, repository and contents. Used by
// the synchronizer after a merge or an auth transition.
func (s *Store) Rebind(repo Repository, c *Cart) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMu.Lock()
	s.repo = repo
	s.cart = c.Clone()
	s.lastErr = nil
	s.stateMu.Unlock()
}

func (s *Store) begin() {
	s.stateMu.Lock()
	s.updating = true
	s.lastErr = nil
	s.stateMu.Unlock()
}

func (s *Store) end() {
	s.stateMu.Lock()
	s.updating = false
	s.stateMu.Unlock()
}

// reject records a failure without touching cart contents
func (s *Store) reject(err error) error {
	s.stateMu.Lock()
	s.lastErr = err
	s.stateMu.Unlock()
	return err
}
