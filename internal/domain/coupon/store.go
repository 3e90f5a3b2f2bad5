// internal/domain/coupon/store.go
package coupon

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists coupons and redemptions
type Store struct {
	db *gorm.DB
}

// NewStore creates a new coupon store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FindByCode looks up a coupon by its normalized code
func (s *Store) FindByCode(ctx context.Context, code string) (*Coupon, error) {
	var c Coupon
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}
	return &c, nil
}

// RedeemOnce records a coupon use for a checkout session and bumps the usage
// counter. The redemption row is unique on session, so a repeated callback
// delivery for the same session is a no-op.
func (s *Store) RedeemOnce(ctx context.Context, couponID uint, sessionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&Redemption{CouponID: couponID, SessionID: sessionID})
		if res.Error != nil {
			return fmt.Errorf("failed to record redemption: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Already counted for this session.
			return nil
		}

		return tx.Model(&Coupon{}).
			Where("id = ?", couponID).
			UpdateColumn("used_count", gorm.Expr("used_count + 1")).Error
	})
}
