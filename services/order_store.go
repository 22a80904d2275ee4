package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yeremiapane/cloud-kitchen/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderStore is the persistence boundary for orders and their lines.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderLines(ctx context.Context, lines []models.OrderLine) error
	CreateOrderWithLines(ctx context.Context, order *models.Order, lines []models.OrderLine) error
	MarkLinesCommitted(ctx context.Context, orderID uint) error
	GetOrder(ctx context.Context, orderID uint) (*models.Order, error)
	GetOrderByDisplayID(ctx context.Context, displayID string) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uint, from, to models.OrderStatus, changedBy string) (bool, error)
	GetOrderLines(ctx context.Context, orderID uint) ([]models.OrderLineView, error)
	CountOrderLines(ctx context.Context, orderID uint) (int64, error)
	ListOrphans(ctx context.Context, createdBefore time.Time) ([]models.Order, error)
	DeleteOrder(ctx context.Context, orderID uint) error
	CountOrders(ctx context.Context) (int64, error)
	MaxDisplayNumber(ctx context.Context) (int64, error)
	MissingMenuItems(ctx context.Context, ids []uint) ([]uint, error)
	StatusCounts(ctx context.Context) (map[models.OrderStatus]int64, error)
	Sales(ctx context.Context, since time.Time) (SalesSummary, error)
}

// SalesSummary counts committed orders and their billed total.
type SalesSummary struct {
	Orders  int64 `json:"orders"`
	Revenue int64 `json:"revenue"`
}

// OrderFilter narrows ListOrders. Zero values mean no restriction; orders whose lines
// were never committed are always excluded.
type OrderFilter struct {
	Statuses  []models.OrderStatus
	GuestID   string
	Limit     int
	WithLines bool
}

type GormOrderStore struct {
	DB *gorm.DB
}

func NewGormOrderStore(db *gorm.DB) *GormOrderStore {
	return &GormOrderStore{DB: db}
}

func writeError(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = errors.Join(models.ErrDuplicateKey, err)
	}
	return &models.WriteError{Op: op, Err: err}
}

func readError(op string, err error) error {
	return &models.ReadError{Op: op, Err: err}
}

func (s *GormOrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := s.DB.WithContext(ctx).Omit(clause.Associations).Create(order).Error; err != nil {
		order.ID = 0
		return writeError("create order", err)
	}
	return nil
}

func (s *GormOrderStore) CreateOrderLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	if err := s.DB.WithContext(ctx).Create(&lines).Error; err != nil {
		return writeError("create order lines", err)
	}
	return nil
}

// CreateOrderWithLines writes the header and every line in one transaction.
func (s *GormOrderStore) CreateOrderWithLines(ctx context.Context, order *models.Order, lines []models.OrderLine) error {
	tx := s.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return writeError("begin checkout", tx.Error)
	}

	order.LinesCommitted = true
	if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
		tx.Rollback()
		order.ID = 0
		order.LinesCommitted = false
		return writeError("create order", err)
	}

	for i := range lines {
		lines[i].OrderID = order.ID
	}
	if err := tx.Create(&lines).Error; err != nil {
		tx.Rollback()
		order.ID = 0
		order.LinesCommitted = false
		return writeError("create order lines", err)
	}

	if err := tx.Commit().Error; err != nil {
		order.ID = 0
		order.LinesCommitted = false
		return writeError("commit checkout", err)
	}
	return nil
}

func (s *GormOrderStore) MarkLinesCommitted(ctx context.Context, orderID uint) error {
	err := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("lines_committed", true).Error
	if err != nil {
		return writeError("mark lines committed", err)
	}
	return nil
}

func (s *GormOrderStore) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrOrderNotFound
		}
		return nil, readError("get order", err)
	}
	return &order, nil
}

func (s *GormOrderStore) GetOrderByDisplayID(ctx context.Context, displayID string) (*models.Order, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).Where("display_id = ?", displayID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrOrderNotFound
		}
		return nil, readError("get order by display id", err)
	}
	return &order, nil
}

// FindByIdempotencyKey returns nil, nil when no order carries the key.
func (s *GormOrderStore) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var orders []models.Order
	if err := s.DB.WithContext(ctx).Where("idempotency_key = ?", key).Limit(1).Find(&orders).Error; err != nil {
		return nil, readError("find order by idempotency key", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

func (s *GormOrderStore) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	query := s.DB.WithContext(ctx).Where("lines_committed = ?", true)
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.GuestID != "" {
		query = query.Where("guest_id = ?", filter.GuestID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.WithLines {
		query = query.Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_lines.id ASC")
		})
	}

	orders := []models.Order{}
	if err := query.Order("created_at DESC").Order("id DESC").Find(&orders).Error; err != nil {
		return nil, readError("list orders", err)
	}
	return orders, nil
}

// UpdateOrderStatus moves an order from exactly `from` to `to` and logs the change in the
// same transaction. It reports false when no committed order was at `from`.
func (s *GormOrderStore) UpdateOrderStatus(ctx context.Context, orderID uint, from, to models.OrderStatus, changedBy string) (bool, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": now,
	}
	switch to {
	case models.OrderStatusCooking:
		updates["cooking_started_at"] = now
	case models.OrderStatusReady:
		updates["ready_at"] = now
	case models.OrderStatusDelivered:
		updates["delivered_at"] = now
	}

	tx := s.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return false, writeError("begin status update", tx.Error)
	}

	result := tx.Model(&models.Order{}).
		Where("id = ? AND status = ? AND lines_committed = ?", orderID, from, true).
		Updates(updates)
	if result.Error != nil {
		tx.Rollback()
		return false, writeError("update order status", result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return false, nil
	}

	logEntry := models.OrderStatusLog{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  changedBy,
		ChangedAt:  now,
	}
	if err := tx.Create(&logEntry).Error; err != nil {
		tx.Rollback()
		return false, writeError("log status change", err)
	}

	if err := tx.Commit().Error; err != nil {
		return false, writeError("commit status update", err)
	}
	return true, nil
}

func (s *GormOrderStore) GetOrderLines(ctx context.Context, orderID uint) ([]models.OrderLineView, error) {
	lines := []models.OrderLineView{}
	err := s.DB.WithContext(ctx).Table("order_lines").
		Select(`order_lines.id, order_lines.order_id, order_lines.menu_item_id, order_lines.quantity,
			order_lines.price_at_time, order_lines.created_at,
			COALESCE(menu_items.name, '') AS menu_item_name,
			COALESCE(menu_items.image_url, '') AS menu_item_image`).
		Joins("LEFT JOIN menu_items ON menu_items.id = order_lines.menu_item_id").
		Where("order_lines.order_id = ?", orderID).
		Order("order_lines.id ASC").
		Scan(&lines).Error
	if err != nil {
		return nil, readError("get order lines", err)
	}
	return lines, nil
}

func (s *GormOrderStore) CountOrderLines(ctx context.Context, orderID uint) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.OrderLine{}).Where("order_id = ?", orderID).Count(&n).Error; err != nil {
		return 0, readError("count order lines", err)
	}
	return n, nil
}

// ListOrphans returns headers whose lines were never confirmed, oldest first.
func (s *GormOrderStore) ListOrphans(ctx context.Context, createdBefore time.Time) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.DB.WithContext(ctx).
		Where("lines_committed = ? AND created_at < ?", false, createdBefore).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, readError("list orphaned orders", err)
	}
	return orders, nil
}

// DeleteOrder removes the order, its lines and its status history.
func (s *GormOrderStore) DeleteOrder(ctx context.Context, orderID uint) error {
	tx := s.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return writeError("begin delete order", tx.Error)
	}
	if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderLine{}).Error; err != nil {
		tx.Rollback()
		return writeError("delete order lines", err)
	}
	if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderStatusLog{}).Error; err != nil {
		tx.Rollback()
		return writeError("delete order status log", err)
	}
	if err := tx.Delete(&models.Order{}, orderID).Error; err != nil {
		tx.Rollback()
		return writeError("delete order", err)
	}
	if err := tx.Commit().Error; err != nil {
		return writeError("commit delete order", err)
	}
	return nil
}

func (s *GormOrderStore) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Order{}).Count(&n).Error; err != nil {
		return 0, readError("count orders", err)
	}
	return n, nil
}

// MaxDisplayNumber returns the highest numeric suffix among stored display ids, or 0.
// Suffixes carry no leading zeros past four digits, so the longest then greatest id wins.
func (s *GormOrderStore) MaxDisplayNumber(ctx context.Context) (int64, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("display_id LIKE ?", DisplayIDPrefix+"%").
		Order("LENGTH(display_id) DESC, display_id DESC").
		Limit(1).
		Pluck("display_id", &ids).Error
	if err != nil {
		return 0, readError("max display number", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(ids[0], DisplayIDPrefix), 10, 64)
	if err != nil {
		return 0, readError("max display number", fmt.Errorf("display id %q: %w", ids[0], err))
	}
	return n, nil
}

// MissingMenuItems returns the ids, in input order, that have no menu row.
func (s *GormOrderStore) MissingMenuItems(ctx context.Context, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []uint
	if err := s.DB.WithContext(ctx).Model(&models.MenuItem{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, readError("look up menu items", err)
	}
	known := make(map[uint]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	var missing []uint
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (s *GormOrderStore) StatusCounts(ctx context.Context) (map[models.OrderStatus]int64, error) {
	var rows []struct {
		Status models.OrderStatus
		Count  int64
	}
	err := s.DB.WithContext(ctx).Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Where("lines_committed = ?", true).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, readError("count orders by status", err)
	}

	counts := make(map[models.OrderStatus]int64, len(rows))
	for _, st := range models.OrderStatuses() {
		counts[st] = 0
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// Sales sums committed orders created at or after since. A zero since covers all orders.
func (s *GormOrderStore) Sales(ctx context.Context, since time.Time) (SalesSummary, error) {
	var summary SalesSummary
	query := s.DB.WithContext(ctx).Model(&models.Order{}).
		Select("COUNT(*) AS orders, COALESCE(SUM(total_amount), 0) AS revenue").
		Where("lines_committed = ?", true)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	if err := query.Scan(&summary).Error; err != nil {
		return SalesSummary{}, readError("sum sales", err)
	}
	return summary, nil
}
