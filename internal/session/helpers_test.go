package session

import (
	"context"
	"sync"
	"time"

	"sitepulse/internal/browser"
	"sitepulse/internal/consent/models"
	"sitepulse/internal/emitter"
	"sitepulse/internal/emitter/backends/memory"
	"sitepulse/pkg/testutil"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// gate is a consent view whose analytics grant can be flipped mid-session.
type gate struct {
	mu        sync.Mutex
	analytics bool
	reads     int
}

func (g *gate) HasCategory(_ context.Context, c models.Category) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reads++
	if c == models.CategoryEssential {
		return true
	}
	return c == models.CategoryAnalytics && g.analytics
}

func (g *gate) set(analytics bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.analytics = analytics
}

func newSession(g Consent, opts ...Option) (*Session, *memory.Backend) {
	backend := memory.New("memory")
	d := emitter.NewDispatcher([]emitter.Backend{backend}, emitter.WithLogger(testutil.DiscardLogger()))
	opts = append([]Option{WithStart(t0), WithLogger(testutil.DiscardLogger())}, opts...)
	return New("sess-1", "visitor-1", g, d, opts...), backend
}

func at(d time.Duration) time.Time { return t0.Add(d) }

func navigate(d time.Duration, url string) Signal {
	return Signal{Type: SignalNavigate, At: at(d), URL: url, Title: "Sitepulse"}
}

// scroll builds a scroll signal on a 2000px document with a 1000px viewport,
// so top maps to percent as top/10.
func scroll(d time.Duration, top float64) Signal {
	return Signal{Type: SignalScroll, At: at(d), Viewport: &browser.Viewport{
		ScrollTop: top, ScrollHeight: 2000, ViewportHeight: 1000,
	}}
}

func interact(d time.Duration) Signal {
	return Signal{Type: SignalInteraction, At: at(d), Event: browser.EventPointerMove}
}

func unload(d time.Duration) Signal {
	return Signal{Type: SignalUnload, At: at(d)}
}

func names(events []emitter.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Name)
	}
	return out
}

func depths(events []emitter.Event) []any {
	out := make([]any, 0, len(events))
	for _, e := range events {
		out = append(out, e.Properties["depth"])
	}
	return out
}
