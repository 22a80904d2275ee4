package models

import (
	"time"
)

// OrderLine is written once at checkout. PriceAtTime is the cart's price snapshot and is
// never recomputed from the live menu.
type OrderLine struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OrderID     uint      `gorm:"not null;index" json:"order_id"`
	MenuItemID  uint      `gorm:"not null;index" json:"menu_item_id"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	PriceAtTime int64     `gorm:"not null" json:"price_at_time"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (l OrderLine) LineTotal() int64 {
	return l.PriceAtTime * int64(l.Quantity)
}

// OrderLineView joins a line with the menu display fields for presentation.
type OrderLineView struct {
	ID            uint      `json:"id"`
	OrderID       uint      `json:"order_id"`
	MenuItemID    uint      `json:"menu_item_id"`
	Quantity      int       `json:"quantity"`
	PriceAtTime   int64     `json:"price_at_time"`
	CreatedAt     time.Time `json:"created_at"`
	MenuItemName  string    `json:"menu_item_name"`
	MenuItemImage string    `json:"menu_item_image,omitempty"`
}

func (v OrderLineView) LineTotal() int64 {
	return v.PriceAtTime * int64(v.Quantity)
}

// OrderStatusLog records every accepted status transition.
type OrderStatusLog struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	OrderID    uint        `gorm:"not null;index" json:"order_id"`
	FromStatus OrderStatus `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   OrderStatus `gorm:"type:varchar(20);not null" json:"to_status"`
	ChangedBy  string      `gorm:"type:varchar(50);not null" json:"changed_by"`
	ChangedAt  time.Time   `gorm:"not null" json:"changed_at"`
}
