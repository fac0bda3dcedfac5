// Package emitter forwards tracked events to every configured analytics
// back-end, provided the visitor has granted the analytics category.
package emitter

import (
	"context"
	"time"
)

// Props are event or person properties. Values must be JSON-serializable.
type Props map[string]any

// Clone returns a shallow copy; a nil receiver yields an empty map.
func (p Props) Clone() Props {
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Event is a tracked occurrence after enrichment.
type Event struct {
	ID         string    `json:"event_id"`
	Name       string    `json:"event"`
	DistinctID string    `json:"distinct_id"`
	Timestamp  time.Time `json:"timestamp"`
	Properties Props     `json:"properties"`
}

//go:generate mockgen -source=event.go -destination=mocks/backend-mocks.go -package=mocks Backend

// Backend is a third-party analytics sink. Implementations may block, fail or
// panic; the dispatcher contains all three.
type Backend interface {
	Name() string
	Capture(ctx context.Context, event Event) error
	Identify(ctx context.Context, distinctID string, props Props) error
	// Reset drops any identity the back-end associated with the previous visitor.
	Reset(ctx context.Context) error
	SetUserProperties(ctx context.Context, distinctID string, props Props) error
}
