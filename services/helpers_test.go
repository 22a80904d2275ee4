package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/cloud-kitchen/database"
	"github.com/yeremiapane/cloud-kitchen/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.OpenSQLiteMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedMenuItems(t *testing.T, db *gorm.DB) []models.MenuItem {
	items := []models.MenuItem{
		{Name: "Veg Biryani", Category: "biryani", Price: 100, Available: true},
		{Name: "Garlic Naan", Category: "breads", Price: 50, Available: true},
		{Name: "Family Thali", Category: "thali", Price: 300, Available: true},
	}
	require.NoError(t, db.Create(&items).Error)
	return items
}

// flakyStore wraps a real store and fails selected writes.
type flakyStore struct {
	*GormOrderStore

	mu           sync.Mutex
	failLines    error
	failHeader   error
	failAtomic   error
	failGet      error
	createCalls  int
	findKeyCalls int
	duplicateIDs int
	takenDisplay map[string]bool
}

func (f *flakyStore) CreateOrder(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	f.createCalls++
	err := f.failHeader
	f.mu.Unlock()
	if err != nil {
		return &models.WriteError{Op: "create order", Err: err}
	}
	if f.takenDisplay[order.DisplayID] {
		return &models.WriteError{Op: "create order", Err: errors.Join(models.ErrDuplicateKey, errors.New("UNIQUE constraint failed: orders.display_id"))}
	}
	return f.GormOrderStore.CreateOrder(ctx, order)
}

func (f *flakyStore) CreateOrderLines(ctx context.Context, lines []models.OrderLine) error {
	f.mu.Lock()
	err := f.failLines
	f.mu.Unlock()
	if err != nil {
		return &models.WriteError{Op: "create order lines", Err: err}
	}
	return f.GormOrderStore.CreateOrderLines(ctx, lines)
}

func (f *flakyStore) CreateOrderWithLines(ctx context.Context, order *models.Order, lines []models.OrderLine) error {
	f.mu.Lock()
	f.createCalls++
	err := f.failAtomic
	f.mu.Unlock()
	if err != nil {
		return &models.WriteError{Op: "create order", Err: err}
	}
	if f.takenDisplay[order.DisplayID] {
		f.mu.Lock()
		f.duplicateIDs++
		f.mu.Unlock()
		return &models.WriteError{Op: "create order", Err: errors.Join(models.ErrDuplicateKey, errors.New("UNIQUE constraint failed: orders.display_id"))}
	}
	return f.GormOrderStore.CreateOrderWithLines(ctx, order, lines)
}

func (f *flakyStore) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	f.mu.Lock()
	f.findKeyCalls++
	f.mu.Unlock()
	return f.GormOrderStore.FindByIdempotencyKey(ctx, key)
}

func (f *flakyStore) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	f.mu.Lock()
	err := f.failGet
	f.mu.Unlock()
	if err != nil {
		return nil, &models.ReadError{Op: "get order", Err: err}
	}
	return f.GormOrderStore.GetOrder(ctx, id)
}

func (f *flakyStore) setFailGet(err error) {
	f.mu.Lock()
	f.failGet = err
	f.mu.Unlock()
}

func (f *flakyStore) calls() (create, findKey int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.findKeyCalls
}

// fixedDisplayIDs hands out ids from a list, then falls back to a sequence.
type fixedDisplayIDs struct {
	mu   sync.Mutex
	ids  []string
	rest *SequenceDisplayID
}

func (g *fixedDisplayIDs) Next(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.ids) > 0 {
		id := g.ids[0]
		g.ids = g.ids[1:]
		return id, nil
	}
	return g.rest.Next(ctx)
}

func placeOrder(t *testing.T, svc *CheckoutService, lines ...CheckoutLine) *models.Order {
	res := svc.Submit(context.Background(), CheckoutRequest{CustomerName: "Asha", GuestID: "guest_1", Lines: lines})
	require.NoError(t, res.Err)
	require.Equal(t, CheckoutCommitted, res.Outcome)
	return res.Order
}

func newTestCheckout(store OrderStore, atomic bool) *CheckoutService {
	return NewCheckoutService(store, NewSequenceDisplayID(1000), atomic, 5*time.Second)
}
