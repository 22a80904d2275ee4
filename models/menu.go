package models

import "time"

// MenuItem is a catalog entry. Price is in whole rupees.
type MenuItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"type:varchar(50);not null;index" json:"category"`
	ImageURL    string    `gorm:"type:varchar(255)" json:"image_url"`
	Price       int64     `gorm:"not null" json:"price"`
	Available   bool      `gorm:"not null" json:"available"`
	Veg         bool      `gorm:"not null" json:"veg"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

// Validate checks the fields an operator must supply when creating or editing an item.
func (m *MenuItem) Validate() error {
	if m.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if m.Category == "" {
		return &ValidationError{Field: "category", Message: "category is required"}
	}
	if m.Price <= 0 {
		return &ValidationError{Field: "price", Message: "price must be positive"}
	}
	return nil
}
