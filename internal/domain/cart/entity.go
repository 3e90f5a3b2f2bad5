// internal/domain/cart/entity.go
package cart

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OwnerKind distinguishes anonymous session carts from user carts
type OwnerKind string

const (
	OwnerKindGuest OwnerKind = "guest"
	OwnerKindUser  OwnerKind = "user"
)

// Owner identifies who holds a cart: an anonymous session token or an
// authenticated user id, never both.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

// GuestOwner builds an owner for an anonymous session token
func GuestOwner(sessionToken string) Owner {
	return Owner{Kind: OwnerKindGuest, ID: sessionToken}
}

// UserOwner builds an owner for an authenticated user
func UserOwner(userID uint) Owner {
	return Owner{Kind: OwnerKindUser, ID: fmt.Sprintf("%d", userID)}
}

// Key returns a stable string identity for map keys and log fields
func (o Owner) Key() string {
	return string(o.Kind) + ":" + o.ID
}

// LineKey is the merge identity of a cart line. Lines with equal keys are the
// same logical line regardless of which device added them.
type LineKey struct {
	ProductID uint
	VariantID uint // zero when the product has no variant
}

// Item is one cart line. UnitPrice is a snapshot taken at add time.
type Item struct {
	LineID    string          `json:"line_id"`
	ProductID uint            `json:"product_id"`
	VariantID *uint           `json:"variant_id,omitempty"`
	VendorID  uint            `json:"vendor_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"added_at"`
}

// Key returns the line's merge identity
func (i Item) Key() LineKey {
	k := LineKey{ProductID: i.ProductID}
	if i.VariantID != nil {
		k.VariantID = *i.VariantID
	}
	return k
}

// LineTotal is unit price times quantity
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is an ordered sequence of lines with a version used for optimistic
// concurrency against the server-held copy.
type Cart struct {
	Owner     Owner     `json:"owner"`
	Items     []Item    `json:"items"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCart creates an empty cart for an owner
func NewCart(owner Owner) *Cart {
	return &Cart{
		Owner:     owner,
		Items:     []Item{},
		UpdatedAt: time.Now().UTC(),
	}
}

// Subtotal recomputes the cart total from its lines. Totals are always derived
// fresh; nothing cached can go stale across mutations.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// ItemCount returns the number of distinct lines
func (c *Cart) ItemCount() int {
	return len(c.Items)
}

// TotalQuantity returns the sum of all line quantities
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone returns a deep copy
func (c *Cart) Clone() *Cart {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	return &Cart{
		Owner:     c.Owner,
		Items:     items,
		Version:   c.Version,
		UpdatedAt: c.UpdatedAt,
	}
}

// upsert merges an item into an existing line with the same key by summing
// quantities, or appends a new line.
func (c *Cart) upsert(item Item) {
	key := item.Key()
	for i := range c.Items {
		if c.Items[i].Key() == key {
			c.Items[i].Quantity += item.Quantity
			c.Items[i].UnitPrice = item.UnitPrice // snapshot may have moved
			return
		}
	}
	if item.LineID == "" {
		item.LineID = uuid.NewString()
	}
	c.Items = append(c.Items, item)
}

// absorb is upsert without the reprice: an existing line keeps its recorded
// UnitPrice when an incoming line matches its key.
func (c *Cart) absorb(item Item) {
	key := item.Key()
	for i := range c.Items {
		if c.Items[i].Key() == key {
			c.Items[i].Quantity += item.Quantity
			return
		}
	}
	if item.LineID == "" {
		item.LineID = uuid.NewString()
	}
	c.Items = append(c.Items, item)
}

// lineIndex returns the position of a line by id, or -1
func (c *Cart) lineIndex(lineID string) int {
	for i := range c.Items {
		if c.Items[i].LineID == lineID {
			return i
		}
	}
	return -1
}

// Merge combines local lines into the server cart, summing quantities for
// matching (product, variant) keys and appending the rest. Keying on line
// identity instead would duplicate lines when a sync re-runs after a crash.
// Quantities are left uncapped; stock is validated at checkout. Server-side
// price snapshots win: a stale guest copy must not reprice a server line.
func Merge(server, local *Cart) *Cart {
	merged := server.Clone()
	for _, item := range local.Items {
		merged.absorb(item)
	}
	merged.UpdatedAt = time.Now().UTC()
	return merged
}
