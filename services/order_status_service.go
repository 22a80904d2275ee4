package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yeremiapane/cloud-kitchen/metrics"
	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

// OrderStatusService moves orders through the kitchen pipeline.
type OrderStatusService struct {
	store    OrderStore
	notifier StatusNotifier
	timeout  time.Duration
}

func NewOrderStatusService(store OrderStore, notifier StatusNotifier, timeout time.Duration) *OrderStatusService {
	return &OrderStatusService{
		store:    store,
		notifier: notifier,
		timeout:  timeout,
	}
}

func (s *OrderStatusService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func reject(reason string, err error) error {
	metrics.RejectedTransitions.WithLabelValues(reason).Inc()
	return err
}

// Advance sets the order to `to`, which must be the immediate successor of its current status.
// Repeating a transition that already happened is a no-op and returns the current order.
func (s *OrderStatusService) Advance(ctx context.Context, orderID uint, to models.OrderStatus, role string) (*models.Order, error) {
	if !to.Valid() {
		return nil, reject("unknown_status", fmt.Errorf("%w: unknown status %q", models.ErrInvalidTransition, to))
	}
	from, ok := to.Previous()
	if !ok {
		return nil, reject("initial_status", fmt.Errorf("%w: orders enter %s only at checkout", models.ErrInvalidTransition, to))
	}
	if !models.RoleMayTransition(role, to) {
		return nil, reject("forbidden", fmt.Errorf("%w: %s cannot move orders to %s", models.ErrForbiddenTransition, role, to))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	applied, err := s.store.UpdateOrderStatus(ctx, orderID, from, to, role)
	if err != nil {
		utils.ErrorLogger.Printf("Error updating order %d to %s: %v", orderID, to, err)
		return nil, err
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !applied {
		switch {
		case !order.LinesCommitted:
			return nil, reject("uncommitted", fmt.Errorf("%w: order %s has no committed lines", models.ErrInvalidTransition, order.DisplayID))
		case order.Status == to:
			return order, nil
		default:
			return order, reject("out_of_sequence", fmt.Errorf("%w: order %s is %s, cannot move to %s",
				models.ErrInvalidTransition, order.DisplayID, order.Status, to))
		}
	}

	metrics.StatusTransitions.WithLabelValues(string(from), string(to)).Inc()
	utils.InfoLogger.Printf("Order %s moved %s -> %s by %s", order.DisplayID, from, to, role)
	if s.notifier != nil {
		s.notifier.OrderStatusChanged(*order, from)
	}
	return order, nil
}

// AdvanceNext moves the order one step forward from wherever it is now.
func (s *OrderStatusService) AdvanceNext(ctx context.Context, orderID uint, role string) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	next, ok := order.Status.Next()
	if !ok {
		return order, reject("terminal", fmt.Errorf("%w: order %s is already %s", models.ErrInvalidTransition, order.DisplayID, order.Status))
	}
	return s.Advance(ctx, orderID, next, role)
}

// IsTransitionError reports whether err is a refused status change rather than a store failure.
func IsTransitionError(err error) bool {
	return errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, models.ErrForbiddenTransition)
}
