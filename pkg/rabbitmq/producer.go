/**
 * @description
 * This package provides a simple producer for publishing booking events to
 * RabbitMQ. It declares the destination topic exchange on demand and reopens
 * the channel once when a declare or publish fails.
 *
 * @dependencies
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/skyconnect/booking-web/internal/domain"
)

// RoutingKeyCancellationConfirmed is used for events emitted after a verified cancellation.
const RoutingKeyCancellationConfirmed = "booking.cancellation.confirmed"

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	PublishCancellationConfirmed(ctx context.Context, event domain.CancellationConfirmedEvent) error
	Close()
}

// EventProducer holds the RabbitMQ connection and channel for publishing messages.
type EventProducer struct {
	exchange string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// EventProducerFallback is a no-op publisher used when RabbitMQ is unavailable at startup.
type EventProducerFallback struct{}

func (p *EventProducerFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	logrus.WithFields(logrus.Fields{
		"component":   "rabbitmq_producer",
		"mode":        "fallback",
		"exchange":    exchange,
		"routing_key": routingKey,
	}).Warn("publish skipped")
	return nil
}

func (p *EventProducerFallback) PublishCancellationConfirmed(ctx context.Context, event domain.CancellationConfirmedEvent) error {
	logrus.WithFields(logrus.Fields{
		"component":  "rabbitmq_producer",
		"mode":       "fallback",
		"booking_id": event.BookingID,
	}).Warn("cancellation event publish skipped")
	return nil
}

func (p *EventProducerFallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	// stray characters before the scheme come from badly quoted env files
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer dials RabbitMQ and opens a channel. Events go to exchange
// unless Publish is given another one.
func NewEventProducer(amqpURL, exchange string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if strings.TrimSpace(exchange) == "" {
		exchange = "booking_events"
	}
	return &EventProducer{exchange: exchange, conn: conn, channel: ch}, nil
}

// Publish sends body as JSON to exchange with routingKey.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		logrus.WithFields(logrus.Fields{"component": "rabbitmq_producer", "exchange": exchange, "routing_key": routingKey}).
			WithError(err).Error("json marshal failed")
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         jsonBody,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.declareAndPublish(ctx, exchange, routingKey, msg)
	if err == nil {
		return nil
	}
	logrus.WithFields(logrus.Fields{"component": "rabbitmq_producer", "exchange": exchange, "routing_key": routingKey}).
		WithError(err).Warn("publish failed; reopening channel")

	if p.conn == nil || p.conn.IsClosed() {
		return err
	}
	if err := p.reopenChannelLocked(); err != nil {
		return err
	}
	return p.declareAndPublish(ctx, exchange, routingKey, msg)
}

// reopenChannelLocked swaps in a fresh channel and closes the previous one.
// p.mu must be held.
func (p *EventProducer) reopenChannelLocked() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	p.channel = ch
	return nil
}

func (p *EventProducer) declareAndPublish(ctx context.Context, exchange, routingKey string, msg amqp091.Publishing) error {
	if err := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
}

// PublishCancellationConfirmed publishes a confirmed cancellation to the booking events exchange.
func (p *EventProducer) PublishCancellationConfirmed(ctx context.Context, event domain.CancellationConfirmedEvent) error {
	return p.Publish(ctx, p.exchange, RoutingKeyCancellationConfirmed, event)
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
