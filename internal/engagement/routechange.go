package engagement

import (
	"context"
	"time"

	"sitepulse/internal/emitter"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// RouteChangeTracker measures how long each path was shown before the next
// one. The first path is recorded silently. Only the path counts, so
// query-only updates are not navigation.
type RouteChangeTracker struct {
	clock     Clock
	emitter   Emitter
	path      string
	startedAt time.Time
	seen      bool
}

func NewRouteChangeTracker(clock Clock, em Emitter) *RouteChangeTracker {
	return &RouteChangeTracker{clock: clock, emitter: em}
}

// Path is the currently recorded path.
func (t *RouteChangeTracker) Path() string { return t.path }

// Observe records path and reports whether a route_change was emitted.
func (t *RouteChangeTracker) Observe(ctx context.Context, path string) bool {
	now := t.clock.Now()
	if !t.seen {
		t.seen = true
		t.path = path
		t.startedAt = now
		return false
	}
	if path == t.path {
		return false
	}
	duration := now.Sub(t.startedAt)
	if duration < 0 {
		duration = 0
	}
	t.emitter.Track(ctx, EventRouteChange, emitter.Props{
		"from":        t.path,
		"to":          path,
		"duration_ms": duration.Milliseconds(),
	})
	t.path = path
	t.startedAt = now
	return true
}
