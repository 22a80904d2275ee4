package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

const DisplayIDPrefix = "#ORD-"

// DisplayIDGenerator produces the customer-facing order reference. Uniqueness is finally
// enforced by the store's unique index; checkout retries on collision.
type DisplayIDGenerator interface {
	Next(ctx context.Context) (string, error)
}

// displayIDResyncer is implemented by generators that can skip past ids already in the store.
type displayIDResyncer interface {
	Resync(ctx context.Context) error
}

// displayIDFloor is the first number handed out on an empty store.
const displayIDFloor = 1000

// SequenceDisplayID numbers orders from a counter, so ids never repeat within one process.
// When built from a store it can catch up with numbers taken by other processes.
type SequenceDisplayID struct {
	counter atomic.Int64
	store   OrderStore
}

func NewSequenceDisplayID(last int64) *SequenceDisplayID {
	g := &SequenceDisplayID{}
	g.counter.Store(last)
	return g
}

// SeedSequenceDisplayID continues after the highest display number already stored.
func SeedSequenceDisplayID(ctx context.Context, store OrderStore) (*SequenceDisplayID, error) {
	g := NewSequenceDisplayID(displayIDFloor)
	g.store = store
	if err := g.Resync(ctx); err != nil {
		return nil, fmt.Errorf("seed display ids: %w", err)
	}
	return g, nil
}

// Resync moves the counter past the highest display number in the store. The counter
// never moves backwards. Without a store it does nothing.
func (g *SequenceDisplayID) Resync(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	n, err := g.store.MaxDisplayNumber(ctx)
	if err != nil {
		return err
	}
	for {
		cur := g.counter.Load()
		if n <= cur || g.counter.CompareAndSwap(cur, n) {
			return nil
		}
	}
}

func (g *SequenceDisplayID) Next(ctx context.Context) (string, error) {
	return fmt.Sprintf("%s%04d", DisplayIDPrefix, g.counter.Add(1)), nil
}

// RandomDisplayID is "#ORD-" followed by four random digits.
type RandomDisplayID struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomDisplayID() *RandomDisplayID {
	return &RandomDisplayID{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (g *RandomDisplayID) Next(ctx context.Context) (string, error) {
	g.mu.Lock()
	n := displayIDFloor + g.rnd.Intn(9000)
	g.mu.Unlock()
	return fmt.Sprintf("%s%d", DisplayIDPrefix, n), nil
}

// NewDisplayIDGenerator picks a generator by scheme name: "sequence" (default) or "random".
func NewDisplayIDGenerator(ctx context.Context, scheme string, store OrderStore) (DisplayIDGenerator, error) {
	switch scheme {
	case "", "sequence":
		return SeedSequenceDisplayID(ctx, store)
	case "random":
		return NewRandomDisplayID(), nil
	default:
		return nil, fmt.Errorf("unknown display id scheme %q", scheme)
	}
}
