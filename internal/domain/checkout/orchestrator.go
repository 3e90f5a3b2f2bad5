// internal/domain/checkout/orchestrator.go
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/coupon"
	"github.com/your-org/marketplace-backend/internal/domain/order"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/pkg/money"
)

// State is the lifecycle of a single checkout attempt. Failed is terminal;
// retrying means starting a fresh attempt.
type State string

const (
	StateIdle           State = "idle"
	StatePricing        State = "pricing"
	StateSessionCreated State = "session_created"
	StateSucceeded      State = "succeeded"
	StateFailed         State = "failed"
	StateCancelled      State = "cancelled"
)

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrUnknownSession = errors.New("unknown payment session")
)

// confirmedKeyTTL bounds how long the replay guard lives in redis. The unique
// order row keeps confirmation idempotent past this window.
const confirmedKeyTTL = 7 * 24 * time.Hour

// Redeemer marks a coupon as used for a payment session, at most once.
type Redeemer interface {
	RedeemOnce(ctx context.Context, couponID uint, sessionID string) error
}

// Recorder persists the order for a confirmed session.
type Recorder interface {
	Record(ctx context.Context, d order.Draft) (*order.Order, bool, error)
}

// Marker is the subset of the redis client used for replay guards.
type Marker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Attempt is one pass through the checkout state machine.
type Attempt struct {
	ID         string           `json:"id"`
	State      State            `json:"state"`
	Subtotal   decimal.Decimal  `json:"subtotal"`
	Discount   decimal.Decimal  `json:"discount"`
	Total      decimal.Decimal  `json:"total"`
	MinorUnits int64            `json:"amount_minor_units"`
	Currency   string           `json:"currency"`
	CouponCode string           `json:"coupon_code,omitempty"`
	Session    *payment.Session `json:"session,omitempty"`

	mu       sync.Mutex
	store    *cart.Store
	items    []cart.Item
	couponID *uint
}

// Orchestrator prices a cart, opens payment sessions, and settles them when
// the processor's confirmation arrives. Confirmation is the source of truth:
// the synchronous CreateSession return only opens the session.
type Orchestrator struct {
	engine   *coupon.Engine
	redeemer Redeemer
	payments payment.Client
	orders   Recorder
	marker   Marker
	config   *config.Config
	log      *logrus.Entry

	mu       sync.Mutex
	attempts map[string]*Attempt // keyed by payment session id
}

// NewOrchestrator creates a new checkout orchestrator
func NewOrchestrator(engine *coupon.Engine, redeemer Redeemer, payments payment.Client, orders Recorder, marker Marker, cfg *config.Config, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		engine:   engine,
		redeemer: redeemer,
		payments: payments,
		orders:   orders,
		marker:   marker,
		config:   cfg,
		log:      log.WithField("component", "checkout"),
		attempts: make(map[string]*Attempt),
	}
}

// Begin prices the store's current cart and opens a payment session. The cart
// is left intact whatever happens here; only a confirmed payment clears it.
func (o *Orchestrator) Begin(ctx context.Context, store *cart.Store, couponCode string) (*Attempt, error) {
	a := &Attempt{
		ID:       uuid.New().String(),
		State:    StatePricing,
		Currency: o.config.Payment.Currency,
		store:    store,
	}

	snap := store.Snapshot()
	if snap.IsEmpty() {
		a.State = StateFailed
		return a, ErrEmptyCart
	}
	a.items = snap.Items
	a.Subtotal = snap.Subtotal()
	a.Discount = decimal.Zero

	if couponCode != "" {
		v, err := o.engine.Validate(ctx, couponCode, a.Subtotal, time.Now())
		if err != nil {
			a.State = StateFailed
			return a, fmt.Errorf("coupon lookup failed: %w", err)
		}
		if !v.Valid {
			a.State = StateFailed
			return a, v.Err
		}
		a.Discount = v.Discount
		a.CouponCode = v.Coupon.Code
		a.couponID = &v.Coupon.ID
	}

	a.Total = a.Subtotal.Sub(a.Discount)
	minor, err := money.ToMinorUnits(a.Total, a.Currency)
	if err != nil {
		a.State = StateFailed
		return a, err
	}
	if err := money.CheckChargeable(minor); err != nil {
		a.State = StateFailed
		return a, err
	}
	a.MinorUnits = minor

	session, err := o.payments.CreateSession(ctx, payment.CreateSessionRequest{
		AmountMinorUnits: minor,
		Currency:         a.Currency,
		Reference:        a.ID,
		Metadata: map[string]string{
			"attempt_id": a.ID,
			"owner":      store.Owner().Key(),
			"coupon":     a.CouponCode,
		},
	})
	if err != nil {
		a.State = StateFailed
		return a, fmt.Errorf("failed to create payment session: %w", err)
	}
	a.Session = session
	a.State = StateSessionCreated

	o.mu.Lock()
	o.attempts[session.ID] = a
	o.mu.Unlock()

	o.log.WithFields(logrus.Fields{
		"attempt_id": a.ID,
		"session_id": session.ID,
		"amount":     minor,
		"currency":   a.Currency,
	}).Info("Payment session created")
	return a, nil
}

// Confirm settles an attempt from the processor's asynchronous confirmation.
// Success is idempotent on the session id: the first delivery clears the
// cart, writes the order, and redeems the coupon; repeats are no-ops.
func (o *Orchestrator) Confirm(ctx context.Context, sessionID, paymentID, event string) (*Attempt, error) {
	o.mu.Lock()
	a, ok := o.attempts[sessionID]
	o.mu.Unlock()
	if !ok {
		return nil, ErrUnknownSession
	}

	// Webhooks retry and can arrive out of order; a.mu serializes deliveries
	// for the same session so they cannot interleave mid-settlement.
	a.mu.Lock()
	defer a.mu.Unlock()

	// A settled attempt stays settled. Only a captured event may supersede an
	// earlier failure verdict: the funds moved, and Record stays idempotent.
	if a.State == StateSucceeded {
		return a, nil
	}

	terminal := a.State == StateFailed || a.State == StateCancelled

	switch event {
	case payment.EventFailed:
		if !terminal {
			a.State = StateFailed
		}
		return a, nil
	case payment.EventCancelled:
		if !terminal {
			a.State = StateCancelled
		}
		return a, nil
	case payment.EventCaptured:
		// fall through
	default:
		return a, fmt.Errorf("unrecognized confirmation event %q", event)
	}

	first, err := o.marker.SetNX(ctx, "checkout:confirmed:"+sessionID, a.ID, confirmedKeyTTL).Result()
	if err != nil {
		// Lost the guard; the unique order row below still prevents a
		// duplicate, so keep going.
		o.log.WithError(err).Warn("Replay guard unavailable, relying on order uniqueness")
		first = true
	}
	if !first {
		// An earlier delivery already settled this session.
		a.State = StateSucceeded
		return a, nil
	}

	owner := a.store.Owner()
	_, created, err := o.orders.Record(ctx, order.Draft{
		Owner:      owner,
		Items:      a.items,
		Subtotal:   a.Subtotal,
		Discount:   a.Discount,
		Total:      a.Total,
		Currency:   a.Currency,
		CouponCode: a.CouponCode,
		SessionID:  sessionID,
		PaymentID:  paymentID,
	})
	if err != nil {
		return a, fmt.Errorf("failed to record order: %w", err)
	}

	if created {
		if err := a.store.Clear(ctx); err != nil {
			// Payment already captured; the cart will also be dropped on
			// the next sync. Not worth failing the webhook over.
			o.log.WithError(err).WithField("session_id", sessionID).
				Warn("Failed to clear cart after confirmation")
		}
		if a.couponID != nil {
			if err := o.redeemer.RedeemOnce(ctx, *a.couponID, sessionID); err != nil {
				o.log.WithError(err).WithField("coupon", a.CouponCode).
					Warn("Failed to redeem coupon")
			}
		}
	}

	a.State = StateSucceeded
	o.log.WithFields(logrus.Fields{
		"attempt_id": a.ID,
		"session_id": sessionID,
		"owner":      owner.Key(),
	}).Info("Checkout confirmed")
	return a, nil
}
