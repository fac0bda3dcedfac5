package emitter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sitepulse/internal/browser"
	"sitepulse/internal/consent/models"
)

// ConsentGate answers whether a category is granted right now.
type ConsentGate interface {
	HasCategory(ctx context.Context, c models.Category) bool
}

// Emitter is one page session's tracking handle. The analytics grant is read
// from the gate on every call; nothing about consent is cached here.
type Emitter struct {
	dispatcher *Dispatcher
	gate       ConsentGate
	location   func() browser.Location
	device     Device
	now        func() time.Time
	newID      func() string

	mu         sync.Mutex
	distinctID string
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithDistinctID sets the initial anonymous identity.
func WithDistinctID(id string) Option {
	return func(e *Emitter) {
		e.distinctID = id
	}
}

// WithLocation supplies the current URL and title for enrichment.
func WithLocation(fn func() browser.Location) Option {
	return func(e *Emitter) {
		e.location = fn
	}
}

func WithDevice(d Device) Option {
	return func(e *Emitter) {
		e.device = d
	}
}

// WithClock sets the event timestamp source. Sessions pass the page clock.
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) {
		e.now = now
	}
}

// WithIDGenerator overrides UUID generation for event and distinct IDs.
func WithIDGenerator(fn func() string) Option {
	return func(e *Emitter) {
		e.newID = fn
	}
}

func New(d *Dispatcher, gate ConsentGate, opts ...Option) *Emitter {
	e := &Emitter{
		dispatcher: d,
		gate:       gate,
		location:   func() browser.Location { return browser.Location{} },
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.distinctID == "" {
		e.distinctID = e.newID()
	}
	return e
}

// DistinctID is the identity events are currently attributed to.
func (e *Emitter) DistinctID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.distinctID
}

// Allowed reports whether analytics is granted at this moment.
func (e *Emitter) Allowed(ctx context.Context) bool {
	return e.gate.HasCategory(ctx, models.CategoryAnalytics)
}

func (e *Emitter) allow(ctx context.Context, op, name string) bool {
	if e.Allowed(ctx) {
		return true
	}
	e.dispatcher.metrics.IncrementSuppressed(op)
	if e.dispatcher.devMode {
		e.dispatcher.logger.DebugContext(ctx, "tracking suppressed without analytics consent",
			"operation", op,
			"event", name,
		)
	}
	return false
}

// Track enriches and forwards an event to every back-end. Without analytics
// consent it does nothing.
func (e *Emitter) Track(ctx context.Context, name string, props Props) {
	name = strings.TrimSpace(name)
	if name == "" || !e.allow(ctx, opCapture, name) {
		return
	}

	now := e.now().UTC()
	loc := e.location()
	id := e.newID()

	enriched := props.Clone()
	e.device.apply(enriched)
	enriched["url"] = loc.URL
	enriched["title"] = loc.Title
	enriched["timestamp"] = now.Format(time.RFC3339Nano)
	enriched["event_id"] = id

	e.dispatcher.capture(ctx, Event{
		ID:         id,
		Name:       name,
		DistinctID: e.DistinctID(),
		Timestamp:  now,
		Properties: enriched,
	})
}

// Identify attributes subsequent events to userID.
func (e *Emitter) Identify(ctx context.Context, userID string, props Props) {
	userID = strings.TrimSpace(userID)
	if userID == "" || !e.allow(ctx, opIdentify, "") {
		return
	}
	e.mu.Lock()
	e.distinctID = userID
	e.mu.Unlock()
	e.dispatcher.identify(ctx, userID, props.Clone())
}

// Reset forgets the identified user and starts a fresh anonymous identity.
func (e *Emitter) Reset(ctx context.Context) {
	if !e.allow(ctx, opReset, "") {
		return
	}
	e.mu.Lock()
	e.distinctID = e.newID()
	e.mu.Unlock()
	e.dispatcher.reset(ctx)
}

// SetUserProperties updates person-level properties for the current identity.
func (e *Emitter) SetUserProperties(ctx context.Context, props Props) {
	if len(props) == 0 || !e.allow(ctx, opSetUserProperties, "") {
		return
	}
	e.dispatcher.setUserProperties(ctx, e.DistinctID(), props.Clone())
}
