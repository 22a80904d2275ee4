// Package messaging publishes order status events to RabbitMQ.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

const publishTimeout = 10 * time.Second

// StatusEvent is the message body for every accepted status change.
type StatusEvent struct {
	OrderID      uint               `json:"order_id"`
	DisplayID    string             `json:"display_id"`
	CustomerName string             `json:"customer_name"`
	GuestID      string             `json:"guest_id,omitempty"`
	OldStatus    models.OrderStatus `json:"old_status"`
	NewStatus    models.OrderStatus `json:"new_status"`
	TotalAmount  int64              `json:"total_amount"`
	ChangedAt    time.Time          `json:"changed_at"`
}

func NewStatusEvent(order models.Order, from models.OrderStatus) StatusEvent {
	return StatusEvent{
		OrderID:      order.ID,
		DisplayID:    order.DisplayID,
		CustomerName: order.CustomerName,
		GuestID:      order.GuestID,
		OldStatus:    from,
		NewStatus:    order.Status,
		TotalAmount:  order.TotalAmount,
		ChangedAt:    order.UpdatedAt,
	}
}

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	mu       sync.Mutex
}

// Dial connects and declares a durable fanout exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	utils.InfoLogger.Printf("Publishing order status events to exchange %s", exchange)
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func newPublisher(ch channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

func (p *Publisher) PublishStatus(ctx context.Context, event StatusEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// OrderStatusChanged publishes best-effort; failures are logged only.
func (p *Publisher) OrderStatusChanged(order models.Order, from models.OrderStatus) {
	if err := p.PublishStatus(context.Background(), NewStatusEvent(order, from)); err != nil {
		utils.ErrorLogger.Printf("Error publishing status of order %s: %v", order.DisplayID, err)
	}
}

func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
