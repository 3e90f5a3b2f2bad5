// internal/domain/checkout/orchestrator_test.go
package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/coupon"
	"github.com/your-org/marketplace-backend/internal/domain/order"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/pkg/money"
)

type memRepo struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
}

func newMemRepo() *memRepo {
	return &memRepo{carts: make(map[string]*cart.Cart)}
}

func (r *memRepo) Fetch(_ context.Context, owner cart.Owner) (*cart.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.carts[owner.Key()]; ok {
		return c.Clone(), nil
	}
	return cart.NewCart(owner), nil
}

func (r *memRepo) Replace(_ context.Context, c *cart.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.carts[c.Owner.Key()]; ok && existing.Version != c.Version {
		return cart.ErrConflict
	}
	c.Version++
	r.carts[c.Owner.Key()] = c.Clone()
	return nil
}

func (r *memRepo) Delete(_ context.Context, owner cart.Owner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, owner.Key())
	return nil
}

type stubPayments struct {
	mu       sync.Mutex
	calls    int
	err      error
	lastReq  payment.CreateSessionRequest
	sessions int
}

func (p *stubPayments) CreateSession(_ context.Context, req payment.CreateSessionRequest) (*payment.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	p.sessions++
	return &payment.Session{
		ID:               "sess_" + req.Reference,
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         req.Currency,
		Status:           "created",
		Reference:        req.Reference,
		CreatedAt:        time.Now().Unix(),
	}, nil
}

type stubOrders struct {
	mu      sync.Mutex
	records int
	seen    map[string]*order.Order
	err     error
}

func newStubOrders() *stubOrders {
	return &stubOrders{seen: make(map[string]*order.Order)}
}

func (s *stubOrders) Record(_ context.Context, d order.Draft) (*order.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, false, s.err
	}
	if o, ok := s.seen[d.SessionID]; ok {
		return o, false, nil
	}
	s.records++
	o := &order.Order{
		OrderNumber:      "ORD-TEST",
		PaymentSessionID: d.SessionID,
		TotalAmount:      d.Total,
		CouponCode:       d.CouponCode,
	}
	s.seen[d.SessionID] = o
	return o, true, nil
}

type stubRedeemer struct {
	mu    sync.Mutex
	calls map[uint]int
}

func newStubRedeemer() *stubRedeemer {
	return &stubRedeemer{calls: make(map[uint]int)}
}

func (r *stubRedeemer) RedeemOnce(_ context.Context, couponID uint, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[couponID]++
	return nil
}

type stubMarker struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newStubMarker() *stubMarker {
	return &stubMarker{seen: make(map[string]bool)}
}

func (m *stubMarker) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return redis.NewBoolResult(false, m.err)
	}
	if m.seen[key] {
		return redis.NewBoolResult(false, nil)
	}
	m.seen[key] = true
	return redis.NewBoolResult(true, nil)
}

type stubFinder struct {
	coupons map[string]*coupon.Coupon
}

func (f *stubFinder) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	if c, ok := f.coupons[code]; ok {
		return c, nil
	}
	return nil, coupon.ErrCouponNotFound
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testConfig() *config.Config {
	return &config.Config{
		Payment: config.PaymentConfig{Currency: "USD", Locale: "en-US"},
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	orch     *Orchestrator
	store    *cart.Store
	payments *stubPayments
	orders   *stubOrders
	redeemer *stubRedeemer
	marker   *stubMarker
}

func newFixture(t *testing.T, coupons map[string]*coupon.Coupon) *fixture {
	t.Helper()
	f := &fixture{
		payments: &stubPayments{},
		orders:   newStubOrders(),
		redeemer: newStubRedeemer(),
		marker:   newStubMarker(),
	}
	f.store = cart.NewStore(cart.NewCart(cart.GuestOwner("session-1")), newMemRepo(), testLogger())
	engine := coupon.NewEngine(&stubFinder{coupons: coupons})
	f.orch = NewOrchestrator(engine, f.redeemer, f.payments, f.orders, f.marker, testConfig(), testLogger())
	return f
}

func TestBeginRejectsEmptyCart(t *testing.T) {
	f := newFixture(t, nil)

	a, err := f.orch.Begin(context.Background(), f.store, "")

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, StateFailed, a.State)
	assert.Equal(t, 0, f.payments.calls)
}

func TestBeginFailsBelowMinimumBeforeProcessor(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.AddItem(context.Background(), 1, nil, 1, dec("0.30"), 10))

	a, err := f.orch.Begin(context.Background(), f.store, "")

	assert.ErrorIs(t, err, money.ErrAmountOutOfRange)
	assert.Equal(t, StateFailed, a.State)
	assert.Equal(t, 0, f.payments.calls, "processor must never see an unchargeable amount")
	assert.Len(t, f.store.Snapshot().Items, 1, "cart left intact")
}

func TestBeginOpensSessionWithDiscountedAmount(t *testing.T) {
	max := dec("5.00")
	f := newFixture(t, map[string]*coupon.Coupon{
		"SAVE10": {
			ID:                7,
			Code:              "SAVE10",
			DiscountType:      coupon.DiscountTypePercentage,
			DiscountValue:     dec("10"),
			MaxDiscountAmount: &max,
			StartsAt:          time.Now().Add(-time.Hour),
			IsActive:          true,
		},
	})
	require.NoError(t, f.store.AddItem(context.Background(), 1, nil, 2, dec("50.00"), 10))

	a, err := f.orch.Begin(context.Background(), f.store, "save10")

	require.NoError(t, err)
	assert.Equal(t, StateSessionCreated, a.State)
	assert.True(t, a.Subtotal.Equal(dec("100.00")))
	assert.True(t, a.Discount.Equal(dec("5.00")), "percentage discount capped at max")
	assert.True(t, a.Total.Equal(dec("95.00")))
	assert.EqualValues(t, 9500, a.MinorUnits)
	assert.EqualValues(t, 9500, f.payments.lastReq.AmountMinorUnits)
	assert.Equal(t, "SAVE10", f.payments.lastReq.Metadata["coupon"])
	assert.Len(t, f.store.Snapshot().Items, 1, "cart intact until confirmation")
}

func TestBeginCouponRejectionFailsAttempt(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.AddItem(context.Background(), 1, nil, 1, dec("20.00"), 10))

	a, err := f.orch.Begin(context.Background(), f.store, "GHOST")

	assert.ErrorIs(t, err, coupon.ErrCouponNotFound)
	assert.Equal(t, StateFailed, a.State)
	assert.Equal(t, 0, f.payments.calls)
}

func TestBeginProcessorErrorLeavesCart(t *testing.T) {
	f := newFixture(t, nil)
	f.payments.err = errors.New("gateway timeout")
	require.NoError(t, f.store.AddItem(context.Background(), 1, nil, 1, dec("20.00"), 10))

	a, err := f.orch.Begin(context.Background(), f.store, "")

	require.Error(t, err)
	assert.Equal(t, StateFailed, a.State)
	assert.Len(t, f.store.Snapshot().Items, 1)
}

func TestConfirmClearsCartAndRecordsOrder(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.AddItem(context.Background(), 1, nil, 1, dec("20.00"), 10))
	a, err := f.orch.Begin(context.Background(), f.store, "")
	require.NoError(t, err)

	got, err := f.orch.Confirm(context.Background(), a.Session.ID, "pay_1", payment.EventCaptured)

	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, got.State)
	assert.Equal(t, 1, f.orders.records)
	assert.True(t, f.store.Snapshot().IsEmpty(), "confirmed payment empties the cart")
}

func TestConfirmIsIdempotent(t *testing.T) {
	start := time.Now().Add(-time.Hour)
	f := newFixture(t, map[string]*coupon.Coupon{
		"FLAT5": {
			ID:            3,
			Code:          "FLAT5",
			DiscountType:  coupon.DiscountTypeFlat,
			DiscountValue: dec("5.00"),
			StartsAt:      start,
			IsActive:      true,
		},
	})
	require.NoError(t, f.store.AddItem(context.Background(), 1, nil, 1, dec("20.00"), 10))
	a, err := f.orch.Begin(context.Background(), f.store, "FLAT5")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := f.orch.Confirm(context.Background(), a.Session.ID, "pay_1", payment.EventCaptured)
		require.NoError(t, err)
		assert.Equal(t, StateSucceeded, got.State)
	}

	assert.Equal(t, 1, f.orders.records, "one order per session")
	assert.Equal(t, 1, f.redeemer.calls[3], "coupon redeemed exactly once")
}

func TestConfirmSurvivesGuardOutage(t *testing.T) {
	f := newFixture(t, nil)
	f.marker.err = errors.New("redis down")
	require.NoError(t, f.store.AddItem(context.Background(), 1, nil, 1, dec("20.00"), 10))
	a, err := f.orch.Begin(context.Background(), f.store, "")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := f.orch.Confirm(context.Background(), a.Session.ID, "pay_1", payment.EventCaptured)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, f.orders.records, "order uniqueness backstops the guard")
}

func TestConfirmFailureLeavesCartIntact(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.AddItem(context.Background(), 1, nil, 1, dec("20.00"), 10))
	a, err := f.orch.Begin(context.Background(), f.store, "")
	require.NoError(t, err)

	got, err := f.orch.Confirm(context.Background(), a.Session.ID, "", payment.EventFailed)

	require.NoError(t, err)
	assert.Equal(t, StateFailed, got.State)
	assert.Equal(t, 0, f.orders.records)
	assert.Len(t, f.store.Snapshot().Items, 1)
}

func TestConfirmCancelLeavesCartIntact(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.AddItem(context.Background(), 1, nil, 1, dec("20.00"), 10))
	a, err := f.orch.Begin(context.Background(), f.store, "")
	require.NoError(t, err)

	got, err := f.orch.Confirm(context.Background(), a.Session.ID, "", payment.EventCancelled)

	require.NoError(t, err)
	assert.Equal(t, StateCancelled, got.State)
	assert.Len(t, f.store.Snapshot().Items, 1)
}

func TestConfirmSuccessOutlivesLateFailureDelivery(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.AddItem(context.Background(), 1, nil, 1, dec("20.00"), 10))
	a, err := f.orch.Begin(context.Background(), f.store, "")
	require.NoError(t, err)

	got, err := f.orch.Confirm(context.Background(), a.Session.ID, "pay_1", payment.EventCaptured)
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, got.State)

	// Processors retry and reorder deliveries; a settled attempt must not
	// be flipped by whatever arrives afterwards.
	for _, event := range []string{payment.EventFailed, payment.EventCancelled, payment.EventCaptured} {
		got, err := f.orch.Confirm(context.Background(), a.Session.ID, "pay_1", event)
		require.NoError(t, err)
		assert.Equal(t, StateSucceeded, got.State)
	}
	assert.Equal(t, 1, f.orders.records)
	assert.True(t, f.store.Snapshot().IsEmpty())
}

func TestConfirmFailureVerdictIsSticky(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.AddItem(context.Background(), 1, nil, 1, dec("20.00"), 10))
	a, err := f.orch.Begin(context.Background(), f.store, "")
	require.NoError(t, err)

	got, err := f.orch.Confirm(context.Background(), a.Session.ID, "", payment.EventFailed)
	require.NoError(t, err)
	require.Equal(t, StateFailed, got.State)

	got, err = f.orch.Confirm(context.Background(), a.Session.ID, "", payment.EventCancelled)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, got.State)
}

func TestConfirmCaptureSupersedesEarlierFailure(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.AddItem(context.Background(), 1, nil, 1, dec("20.00"), 10))
	a, err := f.orch.Begin(context.Background(), f.store, "")
	require.NoError(t, err)

	_, err = f.orch.Confirm(context.Background(), a.Session.ID, "", payment.EventFailed)
	require.NoError(t, err)

	// The funds moved regardless of which delivery landed first.
	got, err := f.orch.Confirm(context.Background(), a.Session.ID, "pay_1", payment.EventCaptured)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, got.State)
	assert.Equal(t, 1, f.orders.records)
	assert.True(t, f.store.Snapshot().IsEmpty())
}

func TestConcurrentConfirmsSettleOnce(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.AddItem(context.Background(), 1, nil, 1, dec("20.00"), 10))
	a, err := f.orch.Begin(context.Background(), f.store, "")
	require.NoError(t, err)

	events := []string{
		payment.EventCaptured, payment.EventFailed, payment.EventCaptured,
		payment.EventCancelled, payment.EventCaptured, payment.EventFailed,
	}
	var wg sync.WaitGroup
	for _, event := range events {
		wg.Add(1)
		go func(event string) {
			defer wg.Done()
			_, _ = f.orch.Confirm(context.Background(), a.Session.ID, "pay_1", event)
		}(event)
	}
	wg.Wait()

	got, err := f.orch.Confirm(context.Background(), a.Session.ID, "pay_1", payment.EventCaptured)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, got.State)
	assert.Equal(t, 1, f.orders.records, "one order however the deliveries interleave")
	assert.Equal(t, 1, f.payments.calls)
}

func TestConfirmUnknownSession(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.orch.Confirm(context.Background(), "sess_missing", "pay_1", payment.EventCaptured)

	assert.ErrorIs(t, err, ErrUnknownSession)
}
