// Package events publishes settlement events on Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	EventInvoiceCreated = "invoice.created"
	EventInvoiceFailed  = "invoice.failed"

	channelPrefix = "settlement:events:"
	ChannelAll    = channelPrefix + "all"
)

type SettlementEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	OrderNumber   string    `json:"order_number"`
	InvoiceStatus string    `json:"invoice_status"`
	InvoiceNo     string    `json:"invoice_no,omitempty"`
	Total         string    `json:"total"`
	Timestamp     time.Time `json:"timestamp"`
}

// Channel returns the type-specific channel for an event type.
func Channel(eventType string) string {
	return channelPrefix + eventType
}

type Publisher struct {
	redis *redis.Client
}

func NewPublisher(redisClient *redis.Client) *Publisher {
	return &Publisher{redis: redisClient}
}

// Publish sends the event to its type channel and to the catch-all channel.
func (p *Publisher) Publish(ctx context.Context, event SettlementEvent) error {
	if p == nil || p.redis == nil {
		return nil
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.redis.Publish(ctx, Channel(event.EventType), eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if err := p.redis.Publish(ctx, ChannelAll, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish to all channel: %w", err)
	}

	return nil
}
