package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yeremiapane/cloud-kitchen/metrics"
	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

const (
	TrackingPollInterval    = 10 * time.Second
	BoardPollInterval       = 15 * time.Second
	DefaultPollTimeout      = 5 * time.Second
	DefaultUnreachableAfter = 3
)

// OrderStatusObserver keeps a view of order status current.
type OrderStatusObserver interface {
	Start(ctx context.Context)
	Stop()
	Snapshot() Snapshot
}

// Snapshot is the latest known state. Orders is replaced wholesale on every successful fetch.
type Snapshot struct {
	Orders              []models.Order
	FetchedAt           time.Time
	NotFound            bool
	Unreachable         bool
	ConsecutiveFailures int
	LastError           error
}

// Order returns the tracked order for single-order observers.
func (s Snapshot) Order() *models.Order {
	if len(s.Orders) == 0 {
		return nil
	}
	o := s.Orders[0]
	return &o
}

type FetchFunc func(ctx context.Context) ([]models.Order, error)

type PollerOptions struct {
	Name             string
	Interval         time.Duration
	Timeout          time.Duration
	UnreachableAfter int
	// OnUpdate runs on the poller goroutine after a successful fetch, when the target
	// disappears, and when the backend first becomes unreachable.
	OnUpdate func(Snapshot)
}

type StatusPoller struct {
	name             string
	fetch            FetchFunc
	interval         time.Duration
	timeout          time.Duration
	unreachableAfter int
	onUpdate         func(Snapshot)

	mu       sync.Mutex
	snapshot Snapshot
	stopped  bool

	stopChan  chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewStatusPoller(fetch FetchFunc, opts PollerOptions) *StatusPoller {
	if opts.Interval <= 0 {
		opts.Interval = TrackingPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPollTimeout
	}
	if opts.UnreachableAfter <= 0 {
		opts.UnreachableAfter = DefaultUnreachableAfter
	}
	if opts.Name == "" {
		opts.Name = "status_poller"
	}
	return &StatusPoller{
		name:             opts.Name,
		fetch:            fetch,
		interval:         opts.Interval,
		timeout:          opts.Timeout,
		unreachableAfter: opts.UnreachableAfter,
		onUpdate:         opts.OnUpdate,
		stopChan:         make(chan struct{}),
	}
}

// Start fetches immediately and then on every tick until Stop, ctx cancellation or NotFound.
func (p *StatusPoller) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		go p.run(ctx)
	})
}

func (p *StatusPoller) run(ctx context.Context) {
	if !p.Poll(ctx) {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !p.Poll(ctx) {
				return
			}
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends polling. Fetches still in flight are discarded. Safe to call more than once.
func (p *StatusPoller) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		close(p.stopChan)
	})
}

func (p *StatusPoller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copySnapshot()
}

func (p *StatusPoller) copySnapshot() Snapshot {
	snap := p.snapshot
	if p.snapshot.Orders != nil {
		snap.Orders = make([]models.Order, len(p.snapshot.Orders))
		copy(snap.Orders, p.snapshot.Orders)
	}
	return snap
}

// Poll runs one fetch and applies it. It reports whether polling should continue.
func (p *StatusPoller) Poll(ctx context.Context) bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	orders, err := p.fetch(fetchCtx)
	cancel()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}

	notify := false
	switch {
	case err == nil:
		if orders == nil {
			orders = []models.Order{}
		}
		p.snapshot = Snapshot{Orders: orders, FetchedAt: time.Now()}
		notify = true
	case errors.Is(err, models.ErrOrderNotFound):
		p.snapshot = Snapshot{NotFound: true, FetchedAt: time.Now(), LastError: err}
		notify = true
	default:
		p.snapshot.ConsecutiveFailures++
		p.snapshot.LastError = err
		if !p.snapshot.Unreachable && p.snapshot.ConsecutiveFailures >= p.unreachableAfter {
			p.snapshot.Unreachable = true
			notify = true
			utils.ErrorLogger.Printf("%s: backend unreachable after %d attempts: %v", p.name, p.snapshot.ConsecutiveFailures, err)
		}
		metrics.PollFailures.WithLabelValues(p.name).Inc()
	}
	snap := p.copySnapshot()
	p.mu.Unlock()

	if notify && p.onUpdate != nil {
		p.onUpdate(snap)
	}
	return !snap.NotFound
}

// NewOrderTracker follows a single order, stopping once the order no longer exists.
func NewOrderTracker(get func(ctx context.Context, orderID uint) (*models.Order, error), orderID uint, opts PollerOptions) *StatusPoller {
	if opts.Interval <= 0 {
		opts.Interval = TrackingPollInterval
	}
	if opts.Name == "" {
		opts.Name = "order_tracker"
	}
	return NewStatusPoller(func(ctx context.Context) ([]models.Order, error) {
		order, err := get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return []models.Order{*order}, nil
	}, opts)
}

// NewBoardWatcher follows every committed order in the given statuses, with lines.
func NewBoardWatcher(list func(ctx context.Context, filter OrderFilter) ([]models.Order, error), statuses []models.OrderStatus, opts PollerOptions) *StatusPoller {
	if opts.Interval <= 0 {
		opts.Interval = BoardPollInterval
	}
	if opts.Name == "" {
		opts.Name = "board_watcher"
	}
	filter := OrderFilter{Statuses: statuses, WithLines: true}
	return NewStatusPoller(func(ctx context.Context) ([]models.Order, error) {
		return list(ctx, filter)
	}, opts)
}
