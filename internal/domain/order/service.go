// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrOrderNotFound is returned when no order matches the lookup.
var ErrOrderNotFound = errors.New("order not found")

// Service records confirmed orders and answers read queries over them.
type Service struct {
	db     *gorm.DB
	config *config.Config
	log    *logrus.Entry
}

// NewService creates a new order service
func NewService(db *gorm.DB, cfg *config.Config, log *logrus.Logger) *Service {
	return &Service{
		db:     db,
		config: cfg,
		log:    log.WithField("component", "order"),
	}
}

// Draft carries everything needed to persist an order at confirmation time.
type Draft struct {
	Owner      cart.Owner
	Items      []cart.Item
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	Currency   string
	CouponCode string
	SessionID  string
	PaymentID  string
}

// Record writes the order for a confirmed payment session. It is idempotent
// on the session: a replayed confirmation returns the already-stored order
// with created=false instead of inserting a duplicate.
func (s *Service) Record(ctx context.Context, d Draft) (*Order, bool, error) {
	o := &Order{
		OwnerKey:         d.Owner.Key(),
		PaymentSessionID: d.SessionID,
		PaymentID:        d.PaymentID,
		Status:           StatusConfirmed,
		SubtotalAmount:   d.Subtotal,
		DiscountAmount:   d.Discount,
		TotalAmount:      d.Total,
		Currency:         d.Currency,
		CouponCode:       d.CouponCode,
	}
	if d.Owner.Kind == cart.OwnerKindUser {
		if id, perr := strconv.ParseUint(d.Owner.ID, 10, 32); perr == nil {
			uid := uint(id)
			o.UserID = &uid
		}
	}
	for _, it := range d.Items {
		o.Items = append(o.Items, OrderItem{
			ProductID:        it.ProductID,
			ProductVariantID: it.VariantID,
			VendorID:         it.VendorID,
			Quantity:         it.Quantity,
			UnitPrice:        it.UnitPrice,
			TotalPrice:       it.LineTotal(),
		})
	}

	created := true
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_session_id"}},
			DoNothing: true,
		}).Create(o)
		if res.Error != nil {
			return fmt.Errorf("failed to create order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			created = false
			return tx.Preload("Items").
				Where("payment_session_id = ?", d.SessionID).
				First(o).Error
		}
		o.OrderNumber = o.GenerateOrderNumber()
		return tx.Model(o).Update("order_number", o.OrderNumber).Error
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.WithFields(logrus.Fields{
			"order_number": o.OrderNumber,
			"session_id":   d.SessionID,
			"total":        o.TotalAmount.StringFixed(2),
		}).Info("Order recorded")
	}
	return o, created, nil
}

// GetByNumber returns an order with its items.
func (s *Service) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	var o Order
	err := s.db.WithContext(ctx).Preload("Items").
		Where("order_number = ?", orderNumber).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &o, nil
}

// GetUserOrders lists a user's orders, newest first.
func (s *Service) GetUserOrders(ctx context.Context, userID uint, page, limit int) ([]Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var total int64
	q := s.db.WithContext(ctx).Model(&Order{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	var orders []Order
	err := q.Preload("Items").
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// VendorPayout is one row of the per-vendor settlement view.
type VendorPayout struct {
	VendorID  uint            `json:"vendor_id"`
	ItemCount int64           `json:"item_count"`
	GrossSale decimal.Decimal `json:"gross_sale"`
}

// VendorPayouts sums confirmed order lines per vendor. Read-only: the
// ledger is derived from order_items, never mutated directly.
func (s *Service) VendorPayouts(ctx context.Context) ([]VendorPayout, error) {
	var rows []VendorPayout
	err := s.db.WithContext(ctx).
		Table("order_items").
		Select("order_items.vendor_id AS vendor_id, COUNT(*) AS item_count, COALESCE(SUM(order_items.total_price), 0) AS gross_sale").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status = ? AND orders.deleted_at IS NULL", StatusConfirmed).
		Group("order_items.vendor_id").
		Order("order_items.vendor_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute vendor payouts: %w", err)
	}
	return rows, nil
}
