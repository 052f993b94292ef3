// Package pubsub publishes events to a Google Cloud Pub/Sub topic. All event
// kinds share one topic; the event name travels in the "event" attribute.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// EventAttribute is the message attribute holding the event name.
const EventAttribute = "event"

// Publisher wraps a Pub/Sub topic handle.
type Publisher struct {
	topic *pubsub.Topic
}

// New creates a Publisher for the provided topic.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// Connect opens a client for projectID and returns a Publisher bound to
// topicID along with the client, which the caller must close.
func Connect(ctx context.Context, projectID, topicID string) (*Publisher, *pubsub.Client, error) {
	if projectID == "" || topicID == "" {
		return nil, nil, errors.New("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return New(client.Topic(topicID)), client, nil
}

// Publish marshals the payload to JSON and blocks until the server acknowledges it.
func (p *Publisher) Publish(ctx context.Context, event string, payload any) (string, error) {
	if p.topic == nil {
		return "", errors.New("pubsub topic is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{EventAttribute: event},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", event, err)
	}
	return id, nil
}

// Close flushes pending messages.
func (p *Publisher) Close() {
	if p.topic != nil {
		p.topic.Stop()
	}
}
