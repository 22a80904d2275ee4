package cart

import (
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/pricing"
)

func menuItem(id uint, price int64) models.MenuItem {
	return models.MenuItem{ID: id, Name: "Item", Category: "mains", Price: price, Available: true}
}

func TestAddItemIncrementsExistingLine(t *testing.T) {
	store := NewStore(NewMemoryStorage())

	require.NoError(t, store.AddItem(menuItem(1, 100)))
	require.NoError(t, store.AddItem(menuItem(2, 50)))
	require.NoError(t, store.AddItem(menuItem(1, 100)))

	lines := store.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, uint(1), lines[0].MenuItemID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 1, lines[1].Quantity)
	assert.Equal(t, 3, store.TotalItems())
}

func TestAddItemKeepsPriceSnapshot(t *testing.T) {
	store := NewStore(NewMemoryStorage())

	require.NoError(t, store.AddItem(menuItem(1, 100)))
	require.NoError(t, store.AddItem(menuItem(1, 120)))

	assert.Equal(t, int64(100), store.Lines()[0].UnitPrice)
}

func TestAddItemRejectsInvalidItems(t *testing.T) {
	store := NewStore(NewMemoryStorage())

	err := store.AddItem(menuItem(1, 0))
	assert.True(t, models.IsValidationError(err))

	unavailable := menuItem(2, 90)
	unavailable.Available = false
	assert.ErrorIs(t, store.AddItem(unavailable), ErrItemUnavailable)

	assert.True(t, store.IsEmpty())
}

func TestRemoveItemDeletesLineAtZero(t *testing.T) {
	store := NewStore(NewMemoryStorage())
	require.NoError(t, store.AddItem(menuItem(1, 100)))
	require.NoError(t, store.AddItem(menuItem(1, 100)))

	require.NoError(t, store.RemoveItem(1))
	assert.Equal(t, 1, store.Quantity(1))

	require.NoError(t, store.RemoveItem(1))
	assert.Equal(t, 0, store.Quantity(1))
	assert.Empty(t, store.Lines())
}

func TestRemoveUnknownItemIsNoop(t *testing.T) {
	store := NewStore(NewMemoryStorage())
	require.NoError(t, store.AddItem(menuItem(1, 100)))
	before := store.Version()

	require.NoError(t, store.RemoveItem(99))
	require.NoError(t, store.DeleteItem(99))

	assert.Equal(t, before, store.Version())
	assert.Len(t, store.Lines(), 1)
}

func TestDeleteItemAndClear(t *testing.T) {
	store := NewStore(NewMemoryStorage())
	for i := 0; i < 3; i++ {
		require.NoError(t, store.AddItem(menuItem(1, 100)))
	}
	require.NoError(t, store.AddItem(menuItem(2, 40)))

	require.NoError(t, store.DeleteItem(1))
	assert.Equal(t, 0, store.Quantity(1))
	assert.Equal(t, 1, store.Quantity(2))

	require.NoError(t, store.Clear())
	assert.True(t, store.IsEmpty())
	assert.Equal(t, pricing.Breakdown{}, store.Totals())
}

func TestTotalsFollowPricing(t *testing.T) {
	store := NewStore(NewMemoryStorage())
	require.NoError(t, store.AddItem(menuItem(1, 100)))
	require.NoError(t, store.AddItem(menuItem(1, 100)))
	require.NoError(t, store.AddItem(menuItem(2, 50)))

	assert.Equal(t, pricing.Breakdown{Subtotal: 250, DeliveryFee: 40, Tax: 13, Total: 303}, store.Totals())
}

func TestQuantityNeverDropsBelowOne(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	store := NewStore(NewMemoryStorage())

	for step := 0; step < 2000; step++ {
		id := uint(rng.Intn(5) + 1)
		switch rng.Intn(4) {
		case 0, 1:
			require.NoError(t, store.AddItem(menuItem(id, int64(id)*10)))
		case 2:
			require.NoError(t, store.RemoveItem(id))
		case 3:
			require.NoError(t, store.DeleteItem(id))
		}

		seen := map[uint]bool{}
		for _, l := range store.Lines() {
			require.Greater(t, l.Quantity, 0)
			require.False(t, seen[l.MenuItemID], "duplicate line for %d", l.MenuItemID)
			seen[l.MenuItemID] = true
		}
	}
}

func TestReloadRestoresLines(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewStore(storage)
	require.NoError(t, store.AddItem(menuItem(3, 199)))
	require.NoError(t, store.AddItem(menuItem(1, 99)))
	require.NoError(t, store.AddItem(menuItem(3, 199)))

	reloaded := NewStore(storage)

	assert.Equal(t, store.Lines(), reloaded.Lines())
}

func TestBoltStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.db")
	storage, err := OpenBoltStorage(path)
	require.NoError(t, err)

	store := NewStore(storage)
	require.NoError(t, store.AddItem(menuItem(7, 249)))
	require.NoError(t, store.AddItem(menuItem(7, 249)))
	want := store.Lines()
	require.NoError(t, storage.Close())

	reopened, err := OpenBoltStorage(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, want, NewStore(reopened).Lines())
}

func TestBoltStorageGuestIDIsStable(t *testing.T) {
	storage, err := OpenBoltStorage(filepath.Join(t.TempDir(), "cart.db"))
	require.NoError(t, err)
	defer storage.Close()

	first, err := storage.GuestID()
	require.NoError(t, err)
	second, err := storage.GuestID()
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestUnreadableSlotStartsEmpty(t *testing.T) {
	storage := NewMemoryStorage()
	storage.SetRaw([]byte("{not json"))

	store := NewStore(storage)
	assert.True(t, store.IsEmpty())

	failing := NewMemoryStorage()
	failing.FailLoad = errors.New("disk gone")
	assert.True(t, NewStore(failing).IsEmpty())
}

func TestLoadSanitizesLines(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save([]Line{
		{MenuItemID: 1, UnitPrice: 100, Quantity: 2},
		{MenuItemID: 2, UnitPrice: 50, Quantity: 0},
		{MenuItemID: 1, UnitPrice: 100, Quantity: 1},
		{MenuItemID: 3, UnitPrice: 80, Quantity: -4},
	}))

	lines := NewStore(storage).Lines()

	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestSaveFailureKeepsMutation(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewStore(storage)
	storage.FailSave = errors.New("quota exceeded")

	err := store.AddItem(menuItem(1, 100))

	assert.True(t, models.IsWriteError(err))
	assert.Equal(t, 1, store.Quantity(1))
}
