package storefront

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/cloud-kitchen/cart"
	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/services"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

// Submitter places an order. Both *Client and *services.CheckoutService satisfy it.
type Submitter interface {
	Submit(ctx context.Context, req services.CheckoutRequest) services.CheckoutResult
}

// Session is one customer's storefront: their cart plus checkout.
type Session struct {
	Cart         *cart.Store
	GuestID      string
	CustomerName string

	submitter Submitter

	mu             sync.Mutex
	pendingKey     string
	pendingVersion uint64
}

func NewSession(store *cart.Store, submitter Submitter, guestID, customerName string) *Session {
	return &Session{
		Cart:         store,
		GuestID:      guestID,
		CustomerName: customerName,
		submitter:    submitter,
	}
}

// idempotencyKey reuses the pending key while the cart is unchanged since the last attempt.
func (s *Session) idempotencyKey() string {
	version := s.Cart.Version()
	if s.pendingKey == "" || s.pendingVersion != version {
		s.pendingKey = uuid.NewString()
		s.pendingVersion = version
	}
	return s.pendingKey
}

// PendingKey is the key the next retry will reuse, or "" if none is pending.
func (s *Session) PendingKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingKey
}

// Checkout submits the cart. An empty cart never reaches the submitter. The cart is cleared
// only when the order is committed; any other outcome leaves it intact for a retry.
func (s *Session) Checkout(ctx context.Context) services.CheckoutResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.Cart.Lines()
	if len(lines) == 0 {
		return services.CheckoutResult{
			Outcome: services.CheckoutAborted,
			Err:     &models.ValidationError{Field: "cart", Message: "cart is empty"},
		}
	}

	req := services.CheckoutRequest{
		IdempotencyKey: s.idempotencyKey(),
		CustomerName:   strings.TrimSpace(s.CustomerName),
		GuestID:        s.GuestID,
		Lines:          make([]services.CheckoutLine, len(lines)),
	}
	for i, l := range lines {
		req.Lines[i] = services.CheckoutLine{
			MenuItemID: l.MenuItemID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
		}
	}

	res := s.submitter.Submit(ctx, req)
	fields := logrus.Fields{
		"outcome":         res.Outcome,
		"idempotency_key": req.IdempotencyKey,
		"display_id":      res.DisplayID(),
	}

	if res.Outcome != services.CheckoutCommitted {
		utils.ErrorLogger.WithFields(fields).Warnf("Checkout not committed: %v", res.Err)
		return res
	}

	s.pendingKey = ""
	if err := s.Cart.Clear(); err != nil {
		utils.ErrorLogger.WithFields(fields).Errorf("Order placed but cart could not be cleared: %v", err)
	}
	utils.InfoLogger.WithFields(fields).Info("Order placed")
	return res
}
