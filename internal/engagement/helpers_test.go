package engagement

import (
	"context"
	"time"

	"sitepulse/internal/browser"
	"sitepulse/internal/emitter"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type tracked struct {
	name  string
	props emitter.Props
}

type recorder struct {
	events []tracked
}

func (r *recorder) Track(_ context.Context, name string, props emitter.Props) {
	r.events = append(r.events, tracked{name: name, props: props})
}

func (r *recorder) named(name string) []tracked {
	var out []tracked
	for _, e := range r.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

// scrollTo sets the viewport and runs the scroll listener plus the frame it
// schedules, the way the browser would within one frame.
func scrollTo(ctx context.Context, p *browser.Page, top, height, viewport float64) {
	p.SetViewport(browser.Viewport{ScrollTop: top, ScrollHeight: height, ViewportHeight: viewport})
	p.Dispatch(ctx, browser.Event{Type: browser.EventScroll})
	p.Frame(ctx)
}
