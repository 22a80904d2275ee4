package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yeremiapane/cloud-kitchen/metrics"
	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/pricing"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

// CheckoutOutcome tags how far a submission got.
type CheckoutOutcome string

const (
	CheckoutCommitted CheckoutOutcome = "committed"
	// CheckoutHeaderOnlyOrphan means the header was written but its lines were not.
	CheckoutHeaderOnlyOrphan CheckoutOutcome = "header_only_orphan"
	CheckoutAborted          CheckoutOutcome = "aborted"
)

const maxDisplayIDAttempts = 3

type CheckoutLine struct {
	MenuItemID uint  `json:"menu_item_id"`
	Quantity   int   `json:"quantity"`
	UnitPrice  int64 `json:"unit_price"`
}

type CheckoutRequest struct {
	IdempotencyKey string         `json:"idempotency_key"`
	CustomerName   string         `json:"customer_name"`
	GuestID        string         `json:"guest_id"`
	Lines          []CheckoutLine `json:"lines"`
}

type CheckoutResult struct {
	Outcome  CheckoutOutcome `json:"outcome"`
	Order    *models.Order   `json:"order,omitempty"`
	Replayed bool            `json:"replayed"`
	Err      error           `json:"-"`
}

func (r CheckoutResult) DisplayID() string {
	if r.Order == nil {
		return ""
	}
	return r.Order.DisplayID
}

type CheckoutService struct {
	store   OrderStore
	ids     DisplayIDGenerator
	atomic  bool
	timeout time.Duration
}

// NewCheckoutService writes header and lines in one transaction when atomic is true,
// otherwise as two separate writes.
func NewCheckoutService(store OrderStore, ids DisplayIDGenerator, atomic bool, timeout time.Duration) *CheckoutService {
	return &CheckoutService{
		store:   store,
		ids:     ids,
		atomic:  atomic,
		timeout: timeout,
	}
}

func validateCheckout(req CheckoutRequest) error {
	if len(req.Lines) == 0 {
		return &models.ValidationError{Field: "lines", Message: "cart is empty"}
	}
	seen := make(map[uint]bool, len(req.Lines))
	for i, l := range req.Lines {
		if l.MenuItemID == 0 {
			return &models.ValidationError{Field: fmt.Sprintf("lines[%d].menu_item_id", i), Message: "menu item is required"}
		}
		if seen[l.MenuItemID] {
			return &models.ValidationError{Field: fmt.Sprintf("lines[%d].menu_item_id", i), Message: "duplicate menu item"}
		}
		seen[l.MenuItemID] = true
		if l.Quantity < 1 {
			return &models.ValidationError{Field: fmt.Sprintf("lines[%d].quantity", i), Message: "quantity must be at least 1"}
		}
		if l.UnitPrice <= 0 {
			return &models.ValidationError{Field: fmt.Sprintf("lines[%d].unit_price", i), Message: "unit price must be positive"}
		}
	}
	if len(req.IdempotencyKey) > 64 {
		return &models.ValidationError{Field: "idempotency_key", Message: "must be at most 64 characters"}
	}
	return nil
}

func buildLines(orderID uint, in []CheckoutLine) []models.OrderLine {
	lines := make([]models.OrderLine, len(in))
	for i, l := range in {
		lines[i] = models.OrderLine{
			OrderID:     orderID,
			MenuItemID:  l.MenuItemID,
			Quantity:    l.Quantity,
			PriceAtTime: l.UnitPrice,
		}
	}
	return lines
}

func pricingLines(in []CheckoutLine) []pricing.Line {
	out := make([]pricing.Line, len(in))
	for i, l := range in {
		out[i] = pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity}
	}
	return out
}

// Submit places an order. It never panics on store failures; the outcome says what was persisted.
func (s *CheckoutService) Submit(ctx context.Context, req CheckoutRequest) CheckoutResult {
	res := s.submit(ctx, req)
	metrics.CheckoutOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

func (s *CheckoutService) submit(ctx context.Context, req CheckoutRequest) CheckoutResult {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" {
		req.CustomerName = "Guest"
	}
	if err := validateCheckout(req); err != nil {
		return CheckoutResult{Outcome: CheckoutAborted, Err: err}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if req.IdempotencyKey != "" {
		existing, err := s.store.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return CheckoutResult{Outcome: CheckoutAborted, Err: err}
		}
		if existing != nil {
			return s.replay(ctx, existing, req)
		}
	}

	if err := s.checkMenuItems(ctx, req.Lines); err != nil {
		return CheckoutResult{Outcome: CheckoutAborted, Err: err}
	}

	breakdown := pricing.Compute(pricingLines(req.Lines))

	var lastErr error
	for attempt := 0; attempt < maxDisplayIDAttempts; attempt++ {
		displayID, err := s.ids.Next(ctx)
		if err != nil {
			return CheckoutResult{Outcome: CheckoutAborted, Err: fmt.Errorf("generate display id: %w", err)}
		}

		order := &models.Order{
			DisplayID:    displayID,
			CustomerName: req.CustomerName,
			GuestID:      req.GuestID,
			Status:       models.OrderStatusNew,
			Subtotal:     breakdown.Subtotal,
			DeliveryFee:  breakdown.DeliveryFee,
			Tax:          breakdown.Tax,
			TotalAmount:  breakdown.Total,
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			order.IdempotencyKey = &key
		}

		var res CheckoutResult
		if s.atomic {
			res, err = s.commitAtomic(ctx, order, req.Lines)
		} else {
			res, err = s.commitTwoStep(ctx, order, req.Lines)
		}
		if err == nil || !errors.Is(err, models.ErrDuplicateKey) {
			return res
		}

		// The key may have been taken by a concurrent retry of the same checkout.
		if req.IdempotencyKey != "" {
			if existing, findErr := s.store.FindByIdempotencyKey(ctx, req.IdempotencyKey); findErr == nil && existing != nil {
				return s.replay(ctx, existing, req)
			}
		}
		utils.InfoLogger.Printf("checkout: display id %s already taken, retrying", displayID)
		if r, ok := s.ids.(displayIDResyncer); ok {
			if syncErr := r.Resync(ctx); syncErr != nil {
				utils.ErrorLogger.Printf("checkout: resync display ids: %v", syncErr)
			}
		}
		lastErr = err
	}

	return CheckoutResult{Outcome: CheckoutAborted, Err: fmt.Errorf("could not allocate a display id: %w", lastErr)}
}

// checkMenuItems fails with ErrMenuItemNotFound when any line names an item the menu lacks.
func (s *CheckoutService) checkMenuItems(ctx context.Context, in []CheckoutLine) error {
	ids := make([]uint, len(in))
	for i, l := range in {
		ids[i] = l.MenuItemID
	}
	missing, err := s.store.MissingMenuItems(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", models.ErrMenuItemNotFound, missing)
	}
	return nil
}

func (s *CheckoutService) commitAtomic(ctx context.Context, order *models.Order, in []CheckoutLine) (CheckoutResult, error) {
	lines := buildLines(0, in)
	if err := s.store.CreateOrderWithLines(ctx, order, lines); err != nil {
		utils.ErrorLogger.Printf("checkout: order not saved: %v", err)
		return CheckoutResult{Outcome: CheckoutAborted, Err: err}, err
	}
	order.Lines = lines
	utils.InfoLogger.Printf("checkout: order %s committed with %d lines, total %d", order.DisplayID, len(lines), order.TotalAmount)
	return CheckoutResult{Outcome: CheckoutCommitted, Order: order}, nil
}

func (s *CheckoutService) commitTwoStep(ctx context.Context, order *models.Order, in []CheckoutLine) (CheckoutResult, error) {
	if err := s.store.CreateOrder(ctx, order); err != nil {
		utils.ErrorLogger.Printf("checkout: order header not saved: %v", err)
		return CheckoutResult{Outcome: CheckoutAborted, Err: err}, err
	}
	return s.completeLines(ctx, order, in), nil
}

// completeLines writes the lines of an existing header and marks it committed.
func (s *CheckoutService) completeLines(ctx context.Context, order *models.Order, in []CheckoutLine) CheckoutResult {
	lines := buildLines(order.ID, in)
	if err := s.store.CreateOrderLines(ctx, lines); err != nil {
		utils.ErrorLogger.WithField("display_id", order.DisplayID).
			Errorf("checkout: order header saved without lines: %v", err)
		return CheckoutResult{Outcome: CheckoutHeaderOnlyOrphan, Order: order, Err: err}
	}
	if err := s.store.MarkLinesCommitted(ctx, order.ID); err != nil {
		// lines are stored; the reconciler will flip the flag
		utils.ErrorLogger.Printf("checkout: order %s lines stored but not flagged: %v", order.DisplayID, err)
	} else {
		order.LinesCommitted = true
	}
	order.Lines = lines
	utils.InfoLogger.Printf("checkout: order %s committed with %d lines, total %d", order.DisplayID, len(lines), order.TotalAmount)
	return CheckoutResult{Outcome: CheckoutCommitted, Order: order}
}

func (s *CheckoutService) replay(ctx context.Context, existing *models.Order, req CheckoutRequest) CheckoutResult {
	if existing.LinesCommitted {
		return CheckoutResult{Outcome: CheckoutCommitted, Order: existing, Replayed: true}
	}

	n, err := s.store.CountOrderLines(ctx, existing.ID)
	if err != nil {
		return CheckoutResult{Outcome: CheckoutHeaderOnlyOrphan, Order: existing, Err: err}
	}
	if n > 0 {
		if err := s.store.MarkLinesCommitted(ctx, existing.ID); err != nil {
			return CheckoutResult{Outcome: CheckoutHeaderOnlyOrphan, Order: existing, Err: err}
		}
		existing.LinesCommitted = true
		return CheckoutResult{Outcome: CheckoutCommitted, Order: existing, Replayed: true}
	}

	if err := s.checkMenuItems(ctx, req.Lines); err != nil {
		return CheckoutResult{Outcome: CheckoutHeaderOnlyOrphan, Order: existing, Err: err}
	}
	utils.InfoLogger.Printf("checkout: completing orphaned order %s", existing.DisplayID)
	res := s.completeLines(ctx, existing, req.Lines)
	res.Replayed = true
	return res
}
