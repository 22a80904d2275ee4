package models

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus is the kitchen pipeline position of an order.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusCooking   OrderStatus = "cooking"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusDelivered OrderStatus = "delivered"
)

// orderStatusSequence is the only path an order may take, one step at a time.
var orderStatusSequence = []OrderStatus{
	OrderStatusNew,
	OrderStatusCooking,
	OrderStatusReady,
	OrderStatusDelivered,
}

// Operator roles allowed to move orders along the pipeline.
const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleDelivery = "delivery"
)

// ParseOrderStatus normalizes s and rejects anything outside the pipeline.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown order status %q", s)}
	}
	return status, nil
}

// OrderStatuses returns the pipeline in order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatusSequence))
	copy(out, orderStatusSequence)
	return out
}

// ActiveOrderStatuses are the statuses shown on the kitchen board and the customer's "active" tab.
func ActiveOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusNew, OrderStatusCooking, OrderStatusReady}
}

// Index returns the position of s in the pipeline, or -1.
func (s OrderStatus) Index() int {
	for i, st := range orderStatusSequence {
		if st == s {
			return i
		}
	}
	return -1
}

func (s OrderStatus) Valid() bool {
	return s.Index() >= 0
}

// Next returns the status immediately after s.
func (s OrderStatus) Next() (OrderStatus, bool) {
	i := s.Index()
	if i < 0 || i == len(orderStatusSequence)-1 {
		return "", false
	}
	return orderStatusSequence[i+1], true
}

// Previous returns the status immediately before s.
func (s OrderStatus) Previous() (OrderStatus, bool) {
	i := s.Index()
	if i <= 0 {
		return "", false
	}
	return orderStatusSequence[i-1], true
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered
}

func (s OrderStatus) IsActive() bool {
	return s.Valid() && !s.IsTerminal()
}

// CanTransitionTo reports whether to is exactly one step forward from s.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	next, ok := s.Next()
	return ok && next == to
}

// RoleMayTransition checks the operator role against the destination status.
// Riders only hand orders over; kitchen staff and admins run the whole pipeline.
func RoleMayTransition(role string, to OrderStatus) bool {
	switch role {
	case RoleAdmin, RoleStaff:
		return true
	case RoleDelivery:
		return to == OrderStatusDelivered
	default:
		return false
	}
}

type Order struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	DisplayID        string      `gorm:"type:varchar(32);uniqueIndex;not null" json:"display_id"`
	CustomerName     string      `gorm:"type:varchar(100);not null" json:"customer_name"`
	GuestID          string      `gorm:"type:varchar(64);index" json:"guest_id,omitempty"`
	Status           OrderStatus `gorm:"type:varchar(20);not null;default:'new';index" json:"status"`
	Subtotal         int64       `gorm:"not null" json:"subtotal"`
	DeliveryFee      int64       `gorm:"not null" json:"delivery_fee"`
	Tax              int64       `gorm:"not null" json:"tax"`
	TotalAmount      int64       `gorm:"not null" json:"total_amount"`
	IdempotencyKey   *string     `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	LinesCommitted   bool        `gorm:"not null;index" json:"-"`
	CookingStartedAt *time.Time  `json:"cooking_started_at,omitempty"`
	ReadyAt          *time.Time  `json:"ready_at,omitempty"`
	DeliveredAt      *time.Time  `json:"delivered_at,omitempty"`
	CreatedAt        time.Time   `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"not null" json:"updated_at"`
	Lines            []OrderLine `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"lines,omitempty"`
}

// StepIndex is the position of the order in the tracking timeline.
func (o *Order) StepIndex() int {
	return o.Status.Index()
}

// ItemCount sums line quantities; only meaningful when Lines is loaded.
func (o *Order) ItemCount() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}
