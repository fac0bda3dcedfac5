// Package memory is an in-process back-end that records every call.
package memory

import (
	"context"
	"sync"

	"sitepulse/internal/emitter"
)

// Call is one recorded back-end invocation.
type Call struct {
	Op         string        `json:"op"`
	Event      emitter.Event `json:"event,omitempty"`
	DistinctID string        `json:"distinct_id,omitempty"`
	Props      emitter.Props `json:"props,omitempty"`
}

// Backend keeps calls in memory. Safe for concurrent use.
type Backend struct {
	name string

	mu    sync.Mutex
	calls []Call
	err   error
}

func New(name string) *Backend {
	if name == "" {
		name = "memory"
	}
	return &Backend{name: name}
}

func (b *Backend) Name() string { return b.name }

// FailWith makes every subsequent call return err. Nil restores success.
func (b *Backend) FailWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func (b *Backend) record(c Call) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.calls = append(b.calls, c)
	return nil
}

func (b *Backend) Capture(_ context.Context, event emitter.Event) error {
	return b.record(Call{Op: "capture", Event: event, DistinctID: event.DistinctID})
}

func (b *Backend) Identify(_ context.Context, distinctID string, props emitter.Props) error {
	return b.record(Call{Op: "identify", DistinctID: distinctID, Props: props})
}

func (b *Backend) Reset(context.Context) error {
	return b.record(Call{Op: "reset"})
}

func (b *Backend) SetUserProperties(_ context.Context, distinctID string, props emitter.Props) error {
	return b.record(Call{Op: "set_user_properties", DistinctID: distinctID, Props: props})
}

// Calls returns a copy of everything recorded so far.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Events returns the captured events in order.
func (b *Backend) Events() []emitter.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []emitter.Event
	for _, c := range b.calls {
		if c.Op == "capture" {
			out = append(out, c.Event)
		}
	}
	return out
}

// Named returns captured events with the given name.
func (b *Backend) Named(name string) []emitter.Event {
	var out []emitter.Event
	for _, ev := range b.Events() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Clear drops all recorded calls.
func (b *Backend) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}
