// Package events publishes booking and payment lifecycle events to a
// RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/joshua-takyi/tourbook/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher routes each event by its type, e.g. "booking.cancelled".
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

type payload struct {
	Type       models.EventType `json:"type"`
	BookingID  string           `json:"bookingId,omitempty"`
	PackageID  string           `json:"packageId,omitempty"`
	Email      string           `json:"email,omitempty"`
	Amount     float64          `json:"amount,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
}

func (p *Publisher) Publish(ctx context.Context, ev models.LifecycleEvent) error {
	body, err := json.Marshal(payload{
		Type:       ev.Type,
		BookingID:  ev.BookingID,
		PackageID:  ev.PackageID,
		Email:      ev.Email,
		Amount:     ev.Amount,
		OccurredAt: ev.OccurredAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, string(ev.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt.UTC(),
		MessageId:    ev.BookingID,
		Body:         body,
	})
}

func (p *Publisher) Close() error {
	var err error
	if p.ch != nil {
		err = multierr.Append(err, p.ch.Close())
	}
	if p.conn != nil {
		err = multierr.Append(err, p.conn.Close())
	}
	return err
}
