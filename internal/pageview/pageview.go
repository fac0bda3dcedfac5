// Package pageview emits one page_view per distinct route, including the
// first route a session observes.
package pageview

import (
	"context"
	"net/url"
	"strings"

	"sitepulse/internal/emitter"
)

// EventPageView is the event name emitted on every distinct route.
const EventPageView = "page_view"

var utmParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content"}

// Emitter sends tracked events.
type Emitter interface {
	Track(ctx context.Context, name string, props emitter.Props)
}

// Route is the router's already-normalized view of the current location.
// Query is the raw query string without "?", Hash is without "#".
type Route struct {
	Path  string
	Query string
	Hash  string
}

// State is the tracker state.
type State int

const (
	StateIdle State = iota
	StateTracked
)

func (s State) String() string {
	if s == StateTracked {
		return "tracked"
	}
	return "idle"
}

type options struct {
	includeQuery bool
	includeUTM   bool
	ignoreHash   bool
}

// Option configures a Tracker.
type Option func(*options)

// WithQuery makes the query string part of the route identity and attaches it
// to the event.
func WithQuery() Option {
	return func(o *options) { o.includeQuery = true }
}

// WithoutUTM stops attaching utm_* campaign parameters.
func WithoutUTM() Option {
	return func(o *options) { o.includeUTM = false }
}

// WithHash makes hash changes count as navigation.
func WithHash() Option {
	return func(o *options) { o.ignoreHash = false }
}

// Tracker is not safe for concurrent use; a session drives it from its own lock.
type Tracker struct {
	emitter Emitter
	opts    options
	state   State
	tracked string
}

func New(em Emitter, opts ...Option) *Tracker {
	o := options{includeUTM: true, ignoreHash: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &Tracker{emitter: em, opts: o}
}

func (t *Tracker) State() State { return t.state }

// Current returns the route key of the last emitted page view.
func (t *Tracker) Current() string { return t.tracked }

func (t *Tracker) key(r Route) string {
	k := r.Path
	if t.opts.includeQuery && r.Query != "" {
		k += "?" + r.Query
	}
	if !t.opts.ignoreHash && r.Hash != "" {
		k += "#" + r.Hash
	}
	return k
}

// Observe is called on every render with the current route. It emits a
// page_view and returns true only when the route differs from the tracked one.
func (t *Tracker) Observe(ctx context.Context, r Route) bool {
	r.Path = strings.TrimSpace(r.Path)
	if r.Path == "" {
		r.Path = "/"
	}
	k := t.key(r)
	if t.state == StateTracked && k == t.tracked {
		return false
	}

	props := emitter.Props{"path": r.Path}
	if t.opts.includeQuery && r.Query != "" {
		props["query"] = r.Query
	}
	if !t.opts.ignoreHash && r.Hash != "" {
		props["hash"] = r.Hash
	}
	if t.opts.includeUTM && r.Query != "" {
		if values, err := url.ParseQuery(r.Query); err == nil {
			for _, p := range utmParams {
				if v := values.Get(p); v != "" {
					props[p] = v
				}
			}
		}
	}
	if t.state == StateTracked {
		props["previous_path"] = t.tracked
	}

	t.emitter.Track(ctx, EventPageView, props)
	t.state = StateTracked
	t.tracked = k
	return true
}
