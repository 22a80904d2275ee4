package services

import (
	"sync"

	"github.com/yeremiapane/cloud-kitchen/metrics"
	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

const DefaultNotifyQueueSize = 256

// StatusNotifier is told about every accepted status change. Delivery is best-effort;
// implementations must not block for long.
type StatusNotifier interface {
	OrderStatusChanged(order models.Order, from models.OrderStatus)
}

// Notifiers fans one change out to several notifiers in order.
type Notifiers []StatusNotifier

func (n Notifiers) OrderStatusChanged(order models.Order, from models.OrderStatus) {
	for _, notifier := range n {
		if notifier != nil {
			notifier.OrderStatusChanged(order, from)
		}
	}
}

type NotifierFunc func(order models.Order, from models.OrderStatus)

func (f NotifierFunc) OrderStatusChanged(order models.Order, from models.OrderStatus) {
	f(order, from)
}

type statusEvent struct {
	order models.Order
	from  models.OrderStatus
}

// AsyncNotifier queues status changes and delivers them to next from one goroutine,
// in the order they were accepted. Changes arriving while the queue is full are dropped.
type AsyncNotifier struct {
	next  StatusNotifier
	queue chan statusEvent
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsyncNotifier(next StatusNotifier, size int) *AsyncNotifier {
	if size <= 0 {
		size = DefaultNotifyQueueSize
	}
	a := &AsyncNotifier{
		next:  next,
		queue: make(chan statusEvent, size),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncNotifier) run() {
	defer close(a.done)
	for ev := range a.queue {
		a.next.OrderStatusChanged(ev.order, ev.from)
	}
}

func (a *AsyncNotifier) OrderStatusChanged(order models.Order, from models.OrderStatus) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- statusEvent{order: order, from: from}:
	default:
		metrics.NotificationsDropped.Inc()
		utils.ErrorLogger.Printf("Dropping status event for order %s: notify queue full", order.DisplayID)
	}
}

// Close stops accepting changes and waits until the queued ones are delivered.
func (a *AsyncNotifier) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}
