package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/goccy/go-json"
)

// Event is a domain event published as a JSON message.
type Event struct {
	Type string
	// Key becomes the event_key attribute so consumers can deduplicate.
	Key     string
	Payload any
}

type messagePublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// EventPublisher serialises events onto a single topic.
type EventPublisher struct {
	pub messagePublisher
}

// NewEventPublisher wraps a topic publisher.
func NewEventPublisher(pub *pubsub.Publisher) *EventPublisher {
	if pub == nil {
		return &EventPublisher{}
	}
	return &EventPublisher{pub: pub}
}

// Publish sends event and waits for the server id.
func (p *EventPublisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.pub == nil {
		return errors.New("event publisher not configured")
	}
	if strings.TrimSpace(event.Type) == "" {
		return errors.New("event type is required")
	}
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event.Type, err)
	}
	res := p.pub.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type": event.Type,
			"event_key":  event.Key,
		},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publishing %s event: %w", event.Type, err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *EventPublisher) Stop() {
	if p == nil {
		return
	}
	if stopper, ok := p.pub.(interface{ Stop() }); ok {
		stopper.Stop()
	}
}
