package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/cloud-kitchen/metrics"
	"github.com/yeremiapane/cloud-kitchen/models"
)

var displayIDPattern = regexp.MustCompile(`^#ORD-\d{4}$`)

func TestSubmitCommitsHeaderAndLines(t *testing.T) {
	db := setupTestDB(t)
	items := seedMenuItems(t, db)
	store := NewGormOrderStore(db)
	svc := newTestCheckout(store, true)

	res := svc.Submit(context.Background(), CheckoutRequest{
		CustomerName: "Asha",
		GuestID:      "guest_1",
		Lines: []CheckoutLine{
			{MenuItemID: items[0].ID, Quantity: 2, UnitPrice: 100},
			{MenuItemID: items[1].ID, Quantity: 1, UnitPrice: 50},
		},
	})

	require.NoError(t, res.Err)
	assert.Equal(t, CheckoutCommitted, res.Outcome)
	assert.Regexp(t, displayIDPattern, res.DisplayID())
	assert.Equal(t, models.OrderStatusNew, res.Order.Status)
	assert.Equal(t, int64(250), res.Order.Subtotal)
	assert.Equal(t, int64(40), res.Order.DeliveryFee)
	assert.Equal(t, int64(13), res.Order.Tax)
	assert.Equal(t, int64(303), res.Order.TotalAmount)

	stored, err := store.GetOrder(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.True(t, stored.LinesCommitted)

	lines, err := store.GetOrderLines(context.Background(), res.Order.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Veg Biryani", lines[0].MenuItemName)
	assert.Equal(t, int64(100), lines[0].PriceAtTime)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestSubmitKeepsPriceSnapshot(t *testing.T) {
	db := setupTestDB(t)
	items := seedMenuItems(t, db)
	store := NewGormOrderStore(db)
	svc := newTestCheckout(store, true)

	// the cart captured 90 before the menu price changed to 100
	order := placeOrder(t, svc, CheckoutLine{MenuItemID: items[0].ID, Quantity: 1, UnitPrice: 90})

	lines, err := store.GetOrderLines(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(90), lines[0].PriceAtTime)
}

func TestSubmitRejectsInvalidCartWithoutWriting(t *testing.T) {
	db := setupTestDB(t)
	store := &flakyStore{GormOrderStore: NewGormOrderStore(db)}
	svc := newTestCheckout(store, true)

	tests := []struct {
		name  string
		lines []CheckoutLine
	}{
		{"empty cart", nil},
		{"zero quantity", []CheckoutLine{{MenuItemID: 1, Quantity: 0, UnitPrice: 10}}},
		{"free item", []CheckoutLine{{MenuItemID: 1, Quantity: 1, UnitPrice: 0}}},
		{"missing item", []CheckoutLine{{Quantity: 1, UnitPrice: 10}}},
		{"duplicate item", []CheckoutLine{{MenuItemID: 1, Quantity: 1, UnitPrice: 10}, {MenuItemID: 1, Quantity: 1, UnitPrice: 10}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.Submit(context.Background(), CheckoutRequest{IdempotencyKey: "k", Lines: tt.lines})
			assert.Equal(t, CheckoutAborted, res.Outcome)
			assert.True(t, models.IsValidationError(res.Err))
		})
	}

	create, findKey := store.calls()
	assert.Zero(t, create)
	assert.Zero(t, findKey)
	n, err := store.CountOrders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSubmitAtomicFailureLeavesNothing(t *testing.T) {
	db := setupTestDB(t)
	items := seedMenuItems(t, db)
	store := &flakyStore{GormOrderStore: NewGormOrderStore(db), failAtomic: errors.New("connection reset")}
	svc := newTestCheckout(store, true)

	res := svc.Submit(context.Background(), CheckoutRequest{Lines: []CheckoutLine{{MenuItemID: items[0].ID, Quantity: 1, UnitPrice: 100}}})

	assert.Equal(t, CheckoutAborted, res.Outcome)
	assert.True(t, models.IsWriteError(res.Err))
	assert.Nil(t, res.Order)
	n, err := store.CountOrders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSubmitTwoStepLineFailureIsFlaggedOrphan(t *testing.T) {
	db := setupTestDB(t)
	items := seedMenuItems(t, db)
	store := &flakyStore{GormOrderStore: NewGormOrderStore(db), failLines: errors.New("lines table locked")}
	svc := newTestCheckout(store, false)
	before := testutil.ToFloat64(metrics.CheckoutOutcomes.WithLabelValues(string(CheckoutHeaderOnlyOrphan)))

	res := svc.Submit(context.Background(), CheckoutRequest{
		IdempotencyKey: "attempt-1",
		Lines:          []CheckoutLine{{MenuItemID: items[0].ID, Quantity: 2, UnitPrice: 100}},
	})

	assert.Equal(t, CheckoutHeaderOnlyOrphan, res.Outcome)
	require.NotNil(t, res.Order)
	assert.True(t, models.IsWriteError(res.Err))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CheckoutOutcomes.WithLabelValues(string(CheckoutHeaderOnlyOrphan))))

	header, err := store.GetOrder(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.False(t, header.LinesCommitted)

	board, err := store.ListOrders(context.Background(), OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, board)
}

func TestSubmitRetryCompletesOrphan(t *testing.T) {
	db := setupTestDB(t)
	items := seedMenuItems(t, db)
	store := &flakyStore{GormOrderStore: NewGormOrderStore(db), failLines: errors.New("timeout")}
	svc := newTestCheckout(store, false)
	req := CheckoutRequest{
		IdempotencyKey: "attempt-2",
		Lines:          []CheckoutLine{{MenuItemID: items[2].ID, Quantity: 2, UnitPrice: 300}},
	}

	first := svc.Submit(context.Background(), req)
	require.Equal(t, CheckoutHeaderOnlyOrphan, first.Outcome)

	store.failLines = nil
	second := svc.Submit(context.Background(), req)

	require.NoError(t, second.Err)
	assert.Equal(t, CheckoutCommitted, second.Outcome)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, int64(630), second.Order.TotalAmount)

	n, err := store.CountOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	lines, err := store.CountOrderLines(context.Background(), second.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), lines)
}

func TestSubmitReplaysCommittedOrder(t *testing.T) {
	db := setupTestDB(t)
	items := seedMenuItems(t, db)
	store := NewGormOrderStore(db)
	svc := newTestCheckout(store, true)
	req := CheckoutRequest{
		IdempotencyKey: "attempt-3",
		Lines:          []CheckoutLine{{MenuItemID: items[1].ID, Quantity: 1, UnitPrice: 50}},
	}

	first := svc.Submit(context.Background(), req)
	second := svc.Submit(context.Background(), req)

	require.Equal(t, CheckoutCommitted, second.Outcome)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.DisplayID(), second.DisplayID())
	n, err := store.CountOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSubmitRetriesDisplayIDCollision(t *testing.T) {
	db := setupTestDB(t)
	items := seedMenuItems(t, db)
	store := &flakyStore{
		GormOrderStore: NewGormOrderStore(db),
		takenDisplay:   map[string]bool{"#ORD-4242": true},
	}
	ids := &fixedDisplayIDs{ids: []string{"#ORD-4242"}, rest: NewSequenceDisplayID(1000)}
	svc := NewCheckoutService(store, ids, true, time.Second)

	res := svc.Submit(context.Background(), CheckoutRequest{Lines: []CheckoutLine{{MenuItemID: items[0].ID, Quantity: 1, UnitPrice: 100}}})

	require.NoError(t, res.Err)
	assert.Equal(t, "#ORD-1001", res.DisplayID())
	assert.Equal(t, 1, store.duplicateIDs)
}

func TestSubmitGivesUpAfterRepeatedCollisions(t *testing.T) {
	db := setupTestDB(t)
	items := seedMenuItems(t, db)
	store := &flakyStore{
		GormOrderStore: NewGormOrderStore(db),
		takenDisplay:   map[string]bool{"#ORD-1111": true},
	}
	ids := &fixedDisplayIDs{ids: []string{"#ORD-1111", "#ORD-1111", "#ORD-1111"}, rest: NewSequenceDisplayID(0)}
	svc := NewCheckoutService(store, ids, true, time.Second)

	res := svc.Submit(context.Background(), CheckoutRequest{Lines: []CheckoutLine{{MenuItemID: items[0].ID, Quantity: 1, UnitPrice: 100}}})

	assert.Equal(t, CheckoutAborted, res.Outcome)
	assert.ErrorIs(t, res.Err, models.ErrDuplicateKey)
}

func TestSequenceDisplayIDSeedsFromStore(t *testing.T) {
	db := setupTestDB(t)
	items := seedMenuItems(t, db)
	store := NewGormOrderStore(db)
	placeOrder(t, newTestCheckout(store, true), CheckoutLine{MenuItemID: items[0].ID, Quantity: 1, UnitPrice: 100})

	gen, err := NewDisplayIDGenerator(context.Background(), "sequence", store)
	require.NoError(t, err)
	id, err := gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "#ORD-1002", id)

	_, err = NewDisplayIDGenerator(context.Background(), "uuid", store)
	assert.Error(t, err)
}

func TestRandomDisplayIDFormat(t *testing.T) {
	gen := NewRandomDisplayID()
	for i := 0; i < 200; i++ {
		id, err := gen.Next(context.Background())
		require.NoError(t, err)
		assert.Regexp(t, displayIDPattern, id)
	}
}

func TestSequenceDisplayIDResumesAfterFailedCheckouts(t *testing.T) {
	db := setupTestDB(t)
	items := seedMenuItems(t, db)
	store := &flakyStore{GormOrderStore: NewGormOrderStore(db), failAtomic: errors.New("database unavailable")}
	ctx := context.Background()
	line := CheckoutLine{MenuItemID: items[0].ID, Quantity: 1, UnitPrice: 100}

	gen, err := SeedSequenceDisplayID(ctx, store)
	require.NoError(t, err)
	svc := NewCheckoutService(store, gen, true, time.Second)
	for i := 0; i < 5; i++ {
		res := svc.Submit(ctx, CheckoutRequest{Lines: []CheckoutLine{line}})
		require.Equal(t, CheckoutAborted, res.Outcome)
	}
	store.failAtomic = nil
	var last string
	for i := 0; i < 5; i++ {
		last = placeOrder(t, svc, line).DisplayID
	}
	require.Equal(t, "#ORD-1010", last)

	restarted, err := SeedSequenceDisplayID(ctx, store)
	require.NoError(t, err)
	order := placeOrder(t, NewCheckoutService(store, restarted, true, time.Second), line)
	assert.Equal(t, "#ORD-1011", order.DisplayID)
}

func TestSequenceDisplayIDsShareOneStore(t *testing.T) {
	db := setupTestDB(t)
	items := seedMenuItems(t, db)
	store := NewGormOrderStore(db)
	ctx := context.Background()
	line := CheckoutLine{MenuItemID: items[0].ID, Quantity: 1, UnitPrice: 100}

	genA, err := SeedSequenceDisplayID(ctx, store)
	require.NoError(t, err)
	genB, err := SeedSequenceDisplayID(ctx, store)
	require.NoError(t, err)
	svcA := NewCheckoutService(store, genA, true, time.Second)
	svcB := NewCheckoutService(store, genB, true, time.Second)

	for i := 0; i < 4; i++ {
		placeOrder(t, svcA, line)
	}

	fromB := placeOrder(t, svcB, line)
	assert.Equal(t, "#ORD-1005", fromB.DisplayID)
	fromA := placeOrder(t, svcA, line)
	assert.Equal(t, "#ORD-1006", fromA.DisplayID)

	n, err := store.CountOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestResyncNeverMovesCounterBack(t *testing.T) {
	db := setupTestDB(t)
	items := seedMenuItems(t, db)
	store := NewGormOrderStore(db)
	placeOrder(t, newTestCheckout(store, true), CheckoutLine{MenuItemID: items[0].ID, Quantity: 1, UnitPrice: 100})

	gen := NewSequenceDisplayID(5000)
	gen.store = store
	require.NoError(t, gen.Resync(context.Background()))
	id, err := gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "#ORD-5001", id)
}

func TestSubmitRejectsUnknownMenuItem(t *testing.T) {
	db := setupTestDB(t)
	items := seedMenuItems(t, db)
	store := &flakyStore{GormOrderStore: NewGormOrderStore(db)}
	svc := newTestCheckout(store, true)

	res := svc.Submit(context.Background(), CheckoutRequest{Lines: []CheckoutLine{
		{MenuItemID: items[0].ID, Quantity: 1, UnitPrice: 100},
		{MenuItemID: 9999, Quantity: 1, UnitPrice: 100},
	}})

	assert.Equal(t, CheckoutAborted, res.Outcome)
	assert.ErrorIs(t, res.Err, models.ErrMenuItemNotFound)
	assert.Contains(t, res.Err.Error(), "9999")
	assert.Nil(t, res.Order)
	create, _ := store.calls()
	assert.Zero(t, create)
	n, err := store.CountOrders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
