// Package amqpsink publishes oneclick status updates to a RabbitMQ queue.
package amqpsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	oneclick "github.com/branched-services/go-oneclick"
)

// DefaultQueue is used when Config.Queue is empty.
const DefaultQueue = "oneclick.status"

// Config describes the RabbitMQ connection.
type Config struct {
	URL     string
	Queue   string
	Durable bool
}

// Channel is the subset of amqp.Channel the sink uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Sink is a oneclick.Sink writing JSON-encoded statuses to a queue through
// the default exchange.
type Sink struct {
	ch     Channel
	queue  string
	closer func() error
}

var _ oneclick.Sink = (*Sink)(nil)

// New wraps an existing channel.
func New(ch Channel, queue string) *Sink {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Sink{ch: ch, queue: queue}
}

// Dial connects to RabbitMQ and declares the queue.
func Dial(cfg Config) (*Sink, error) {
	if cfg.URL == "" {
		return nil, errors.New("amqpsink: url is required")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqpsink: connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqpsink: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, cfg.Durable, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqpsink: declare queue %s: %w", queue, err)
	}

	s := New(ch, queue)
	s.closer = func() error {
		return errors.Join(ch.Close(), conn.Close())
	}
	return s, nil
}

// Queue returns the routing key statuses are published with.
func (s *Sink) Queue() string {
	return s.queue
}

// Publish encodes status as JSON and publishes it.
func (s *Sink) Publish(ctx context.Context, status oneclick.Status) error {
	body, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("amqpsink: encode status: %w", err)
	}
	msg := amqp.Publishing{
		ContentType: "application/json",
		Type:        string(status.Stage),
		Timestamp:   status.Time,
		Body:        body,
	}
	if status.BatchID != uuid.Nil {
		msg.CorrelationId = status.BatchID.String()
	}
	if err := s.ch.PublishWithContext(ctx, "", s.queue, false, false, msg); err != nil {
		return fmt.Errorf("amqpsink: publish: %w", err)
	}
	return nil
}

// Close releases the connection opened by Dial.
func (s *Sink) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}
