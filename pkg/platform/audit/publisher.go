package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Publisher writes audit events synchronously with fail-closed semantics for
// compliance events: if the write fails, the caller's operation must fail.
// Operations events are best-effort and never return an error.
type Publisher struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit validates and persists an event.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event requires Action")
	}
	if event.VisitorID == "" {
		return fmt.Errorf("audit event requires VisitorID")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	event.Category = event.Action.Category()

	if err := p.store.Append(ctx, event); err != nil {
		if event.Category != CategoryCompliance {
			if p.logger != nil {
				p.logger.DebugContext(ctx, "ops audit dropped", "action", event.Action, "error", err)
			}
			return nil
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", event.Action,
				"visitor_id", event.VisitorID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}
	return nil
}

// List returns the events recorded for a visitor.
func (p *Publisher) List(ctx context.Context, visitorID string) ([]Event, error) {
	return p.store.ListByVisitor(ctx, visitorID)
}
