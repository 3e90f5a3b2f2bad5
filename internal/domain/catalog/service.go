// internal/domain/catalog/service.go
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrProductNotFound is returned for unknown or inactive products
	ErrProductNotFound = errors.New("product not found or inactive")
	// ErrVariantNotFound is returned for unknown or inactive variants
	ErrVariantNotFound = errors.New("product variant not found or inactive")
	// ErrInsufficientStock is returned when tracked stock cannot cover a request
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Service resolves product data for the cart and checkout paths
type Service struct {
	db *gorm.DB
}

// NewService creates a new catalog service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// PriceQuote is the price snapshot and stock picture taken at add-to-cart time
type PriceQuote struct {
	ProductID     uint            `json:"product_id"`
	VariantID     *uint           `json:"variant_id,omitempty"`
	VendorID      uint            `json:"vendor_id"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TrackQuantity bool            `json:"track_quantity"`
	Available     int             `json:"available"`
}

// PriceFor resolves the unit price snapshot for a product or variant
func (s *Service) PriceFor(ctx context.Context, productID uint, variantID *uint) (*PriceQuote, error) {
	var prod Product
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", productID, true).First(&prod).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	quote := &PriceQuote{
		ProductID:     prod.ID,
		VendorID:      prod.VendorID,
		UnitPrice:     prod.Price,
		TrackQuantity: prod.TrackQuantity,
		Available:     prod.Quantity,
	}

	if variantID != nil {
		var variant ProductVariant
		err := s.db.WithContext(ctx).
			Where("id = ? AND product_id = ? AND is_active = ?", *variantID, productID, true).
			First(&variant).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrVariantNotFound
			}
			return nil, fmt.Errorf("failed to load variant: %w", err)
		}
		quote.VariantID = variantID
		quote.Available = variant.Quantity
		if variant.Price.IsPositive() {
			quote.UnitPrice = variant.Price
		}
	}

	return quote, nil
}

// CheckStock verifies a requested quantity against tracked stock
func (q *PriceQuote) CheckStock(quantity int) error {
	if q.TrackQuantity && q.Available < quantity {
		return fmt.Errorf("%w: available %d", ErrInsufficientStock, q.Available)
	}
	return nil
}
