// internal/domain/cart/repository.go
package cart

import (
	"context"
	"errors"
)

var (
	// ErrLineNotFound is returned when a mutation targets a line id not in the cart
	ErrLineNotFound = errors.New("cart line not found")
	// ErrInvalidQuantity is returned when an add carries a non-positive quantity
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrConflict signals an optimistic-concurrency failure on a server write
	ErrConflict = errors.New("cart version conflict")
	// ErrSyncConflict is surfaced when a merge still conflicts after bounded retries
	ErrSyncConflict = errors.New("cart sync conflict")
	// ErrSyncFailed wraps collaborator failures during a sync; the local cart is retained
	ErrSyncFailed = errors.New("cart sync failed")
)

// Repository is the server-held durable copy of a cart. The in-process Store
// is a cache over it and must never silently diverge after a successful sync.
type Repository interface {
	// Fetch returns the cart for an owner, or an empty cart when none exists.
	Fetch(ctx context.Context, owner Owner) (*Cart, error)

	// Replace stores the cart if its Version still matches the stored copy,
	// returning ErrConflict otherwise. On success the cart's Version is
	// advanced in place.
	Replace(ctx context.Context, c *Cart) error

	// Delete removes the stored cart for an owner.
	Delete(ctx context.Context, owner Owner) error
}
