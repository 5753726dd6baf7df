// Package redissink publishes oneclick status updates on a Redis pub/sub channel.
package redissink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	oneclick "github.com/branched-services/go-oneclick"
)

// DefaultChannel is used when Config.Channel is empty.
const DefaultChannel = "oneclick:status"

// Config describes the Redis connection.
type Config struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

// Publisher is the subset of redis.Client the sink uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Sink is a oneclick.Sink writing JSON-encoded statuses to a channel.
type Sink struct {
	pub     Publisher
	channel string
	closer  func() error
}

var _ oneclick.Sink = (*Sink)(nil)

// New wraps an existing publisher.
func New(pub Publisher, channel string) *Sink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Sink{pub: pub, channel: channel}
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Address == "" {
		return nil, errors.New("redissink: address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redissink: connect %s: %w", cfg.Address, err)
	}
	s := New(client, cfg.Channel)
	s.closer = client.Close
	return s, nil
}

// Channel returns the pub/sub channel statuses are published on.
func (s *Sink) Channel() string {
	return s.channel
}

// Publish encodes status as JSON and publishes it.
func (s *Sink) Publish(ctx context.Context, status oneclick.Status) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("redissink: encode status: %w", err)
	}
	if err := s.pub.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("redissink: publish: %w", err)
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
