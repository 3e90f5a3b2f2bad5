// internal/domain/cart/gorm_repository.go
package cart

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartHead is the per-user cart header row carrying the optimistic version
type CartHead struct {
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	Version   int64     `gorm:"not null" json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (CartHead) TableName() string {
	return "carts"
}

// CartLine is one persisted cart line for an authenticated user
type CartLine struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	LineID    string          `gorm:"uniqueIndex;not null" json:"line_id"`
	ProductID uint            `gorm:"not null" json:"product_id"`
	VariantID *uint           `json:"variant_id,omitempty"`
	VendorID  uint            `gorm:"not null" json:"vendor_id"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	AddedAt   time.Time       `json:"added_at"`
}

// TableName overrides the table name
func (CartLine) TableName() string {
	return "cart_lines"
}

// GormRepository persists user carts in postgres. Replace is a compare-and-set
// on the header version so concurrent writes from another device under the
// same account surface as ErrConflict instead of a blind overwrite.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a user cart repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func ownerUserID(owner Owner) (uint, error) {
	if owner.Kind != OwnerKindUser {
		return 0, fmt.Errorf("owner %s is not a user", owner.Key())
	}
	id, err := strconv.ParseUint(owner.ID, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid user owner id %q: %w", owner.ID, err)
	}
	return uint(id), nil
}

// Fetch loads the cart for a user, or an empty version-zero cart
func (r *GormRepository) Fetch(ctx context.Context, owner Owner) (*Cart, error) {
	userID, err := ownerUserID(owner)
	if err != nil {
		return nil, err
	}

	var head CartHead
	err = r.db.WithContext(ctx).Where("user_id = ?", userID).First(&head).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return NewCart(owner), nil
		}
		return nil, fmt.Errorf("failed to fetch cart header: %w", err)
	}

	var lines []CartLine
	err = r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at, id").
		Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cart lines: %w", err)
	}

	c := &Cart{
		Owner:     owner,
		Items:     make([]Item, len(lines)),
		Version:   head.Version,
		UpdatedAt: head.UpdatedAt,
	}
	for i, line := range lines {
		c.Items[i] = Item{
			LineID:    line.LineID,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			VendorID:  line.VendorID,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			AddedAt:   line.AddedAt,
		}
	}
	return c, nil
}

// Replace stores the cart contents under a version compare-and-set
func (r *GormRepository) Replace(ctx context.Context, c *Cart) error {
	userID, err := ownerUserID(c.Owner)
	if err != nil {
		return err
	}

	newVersion := c.Version + 1
	now := time.Now().UTC()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.Version == 0 {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&CartHead{UserID: userID, Version: newVersion, UpdatedAt: now})
			if res.Error != nil {
				return fmt.Errorf("failed to create cart header: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				// A header already exists, so version zero is stale.
				return ErrConflict
			}
		} else {
			res := tx.Model(&CartHead{}).
				Where("user_id = ? AND version = ?", userID, c.Version).
				Updates(map[string]interface{}{"version": newVersion, "updated_at": now})
			if res.Error != nil {
				return fmt.Errorf("failed to update cart header: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrConflict
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&CartLine{}).Error; err != nil {
			return fmt.Errorf("failed to clear cart lines: %w", err)
		}

		for _, item := range c.Items {
			line := CartLine{
				UserID:    userID,
				LineID:    item.LineID,
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				VendorID:  item.VendorID,
				UnitPrice: item.UnitPrice,
				Quantity:  item.Quantity,
				AddedAt:   item.AddedAt,
			}
			if err := tx.Create(&line).Error; err != nil {
				return fmt.Errorf("failed to insert cart line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.Version = newVersion
	return nil
}

// Delete removes the cart header and lines for a user
func (r *GormRepository) Delete(ctx context.Context, owner Owner) error {
	userID, err := ownerUserID(owner)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&CartLine{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&CartHead{}).Error
	})
}
