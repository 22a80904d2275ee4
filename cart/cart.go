// Package cart holds a customer's in-progress order on the client side.
package cart

import (
	"errors"
	"fmt"
	"sync"

	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/pricing"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

var ErrItemUnavailable = errors.New("menu item is not available")

// Line is one menu item in the cart. Name and UnitPrice are snapshots taken when the item
// was first added.
type Line struct {
	MenuItemID uint   `json:"menu_item_id"`
	Name       string `json:"name"`
	ImageURL   string `json:"image_url,omitempty"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
}

func (l Line) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Storage persists the full line list. Implementations need not be safe for concurrent use.
type Storage interface {
	Load() ([]Line, error)
	Save(lines []Line) error
}

// Store is the session cart. Every mutation is written through to Storage.
type Store struct {
	mu      sync.Mutex
	lines   []Line
	storage Storage
	version uint64
}

// NewStore loads the previous session's lines. A slot that cannot be read yields an empty cart.
func NewStore(storage Storage) *Store {
	s := &Store{storage: storage}
	lines, err := storage.Load()
	if err != nil {
		utils.ErrorLogger.Printf("cart: discarding unreadable saved cart: %v", err)
		return s
	}
	s.lines = sanitize(lines)
	return s
}

// sanitize drops non-positive quantities and merges duplicate ids, keeping first-seen order.
func sanitize(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	index := make(map[uint]int, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 || l.UnitPrice <= 0 {
			continue
		}
		if i, ok := index[l.MenuItemID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.MenuItemID] = len(out)
		out = append(out, l)
	}
	return out
}

func (s *Store) find(menuItemID uint) int {
	for i, l := range s.lines {
		if l.MenuItemID == menuItemID {
			return i
		}
	}
	return -1
}

// persist must be called with mu held.
func (s *Store) persist() error {
	s.version++
	snapshot := make([]Line, len(s.lines))
	copy(snapshot, s.lines)
	if err := s.storage.Save(snapshot); err != nil {
		utils.ErrorLogger.Printf("cart: failed to save cart: %v", err)
		return &models.WriteError{Op: "save cart", Err: err}
	}
	return nil
}

// AddItem increments the item's line or appends a new one at quantity 1.
func (s *Store) AddItem(item models.MenuItem) error {
	if item.Price <= 0 {
		return &models.ValidationError{Field: "price", Message: fmt.Sprintf("menu item %d has no valid price", item.ID)}
	}
	if !item.Available {
		return fmt.Errorf("%w: %s", ErrItemUnavailable, item.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.find(item.ID); i >= 0 {
		s.lines[i].Quantity++
	} else {
		s.lines = append(s.lines, Line{
			MenuItemID: item.ID,
			Name:       item.Name,
			ImageURL:   item.ImageURL,
			UnitPrice:  item.Price,
			Quantity:   1,
		})
	}
	return s.persist()
}

// RemoveItem takes one unit off the line, deleting it at zero. Unknown ids are ignored.
func (s *Store) RemoveItem(menuItemID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(menuItemID)
	if i < 0 {
		return nil
	}
	if s.lines[i].Quantity > 1 {
		s.lines[i].Quantity--
	} else {
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	}
	return s.persist()
}

// DeleteItem drops the whole line. Unknown ids are ignored.
func (s *Store) DeleteItem(menuItemID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(menuItemID)
	if i < 0 {
		return nil
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	return s.persist()
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	return s.persist()
}

func (s *Store) Quantity(menuItemID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.find(menuItemID); i >= 0 {
		return s.lines[i].Quantity
	}
	return 0
}

// Lines returns a copy in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

func (s *Store) Totals() pricing.Breakdown {
	return pricing.Compute(PricingLines(s.Lines()))
}

// Version changes on every mutation, successful save or not.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func PricingLines(lines []Line) []pricing.Line {
	out := make([]pricing.Line, len(lines))
	for i, l := range lines {
		out[i] = pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity}
	}
	return out
}
