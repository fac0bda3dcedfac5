// Package posthog forwards events to PostHog through the official Go SDK.
package posthog

import (
	"context"
	"fmt"

	ph "github.com/posthog/posthog-go"

	"sitepulse/internal/emitter"
)

// Enqueuer is the part of the PostHog client the back-end needs.
type Enqueuer interface {
	Enqueue(ph.Message) error
}

// Backend hands messages to the SDK's batching queue. Enqueue does not block
// on the network, so calls return as soon as the message is queued.
type Backend struct {
	client Enqueuer
}

func New(client Enqueuer) *Backend {
	return &Backend{client: client}
}

// NewClient builds a PostHog SDK client. personalAPIKey enables local flag
// evaluation and may be empty.
func NewClient(apiKey, endpoint, personalAPIKey string) (ph.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("posthog api key is required")
	}
	cfg := ph.Config{Endpoint: endpoint}
	if personalAPIKey != "" {
		cfg.PersonalApiKey = personalAPIKey
	}
	return ph.NewWithConfig(apiKey, cfg)
}

func (b *Backend) Name() string { return "posthog" }

func (b *Backend) Capture(_ context.Context, event emitter.Event) error {
	props := ph.NewProperties()
	for k, v := range event.Properties {
		props.Set(k, v)
	}
	if url, ok := event.Properties["url"]; ok {
		props.Set("$current_url", url)
	}
	props.Set("$insert_id", event.ID)
	return b.client.Enqueue(ph.Capture{
		DistinctId: event.DistinctID,
		Event:      event.Name,
		Timestamp:  event.Timestamp,
		Properties: props,
	})
}

func (b *Backend) Identify(_ context.Context, distinctID string, props emitter.Props) error {
	return b.client.Enqueue(ph.Identify{
		DistinctId: distinctID,
		Properties: ph.Properties(props),
	})
}

// Reset is a no-op: PostHog keeps no server-side handle for the anonymous
// identity, and the emitter already rotated the distinct ID.
func (b *Backend) Reset(context.Context) error {
	return nil
}

func (b *Backend) SetUserProperties(_ context.Context, distinctID string, props emitter.Props) error {
	return b.client.Enqueue(ph.Capture{
		DistinctId: distinctID,
		Event:      "$set",
		Properties: ph.NewProperties().Set("$set", map[string]any(props)),
	})
}
