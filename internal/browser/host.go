// Package browser models the browser capabilities the trackers depend on:
// event listeners, intervals, animation frames, the clock, scroll geometry,
// page visibility and the current location.
//
// All callbacks registered on a Host run synchronously on the host's single
// logical thread. Trackers never spawn goroutines; they own the subscriptions
// they register and release them on Stop.
package browser

import (
	"context"
	"time"
)

// EventType names a DOM-level event a tracker can listen to.
type EventType string

const (
	EventScroll           EventType = "scroll"
	EventPointerMove      EventType = "pointermove"
	EventPointerDown      EventType = "pointerdown"
	EventKeyDown          EventType = "keydown"
	EventTouchStart       EventType = "touchstart"
	EventClick            EventType = "click"
	EventVisibilityChange EventType = "visibilitychange"
	EventBeforeUnload     EventType = "beforeunload"
	EventPopState         EventType = "popstate"
)

// InteractionEvents are the events that count as user activity.
var InteractionEvents = []EventType{
	EventPointerMove,
	EventPointerDown,
	EventKeyDown,
	EventScroll,
	EventTouchStart,
}

// IsInteraction reports whether t is one of InteractionEvents.
func IsInteraction(t EventType) bool {
	for _, it := range InteractionEvents {
		if it == t {
			return true
		}
	}
	return false
}

// Target describes the element a click landed on.
type Target struct {
	// Href is the link destination; empty for buttons.
	Href string `json:"href,omitempty" yaml:"href,omitempty"`
	// Label is the element's tracking label (data-track attribute or text).
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	// Tag is the element tag name, e.g. "a" or "button".
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty"`
}

// Event is delivered to listeners.
type Event struct {
	Type   EventType
	At     time.Time
	Target *Target
}

// Viewport is the scroll geometry of the document.
type Viewport struct {
	ScrollTop      float64 `json:"scroll_top" yaml:"scroll_top"`
	ScrollHeight   float64 `json:"scroll_height" yaml:"scroll_height"`
	ViewportHeight float64 `json:"viewport_height" yaml:"viewport_height"`
}

// Location is the current document location as supplied by the router.
type Location struct {
	URL   string
	Path  string
	Query string
	Hash  string
	Title string
}

// Listener handles a dispatched event.
type Listener func(ctx context.Context, ev Event)

// TimerFunc runs on an interval tick or an animation frame.
type TimerFunc func(ctx context.Context)

// Host is the capability surface trackers are written against.
type Host interface {
	AddEventListener(t EventType, fn Listener) (remove func())
	SetInterval(every time.Duration, fn TimerFunc) (clear func())
	RequestAnimationFrame(fn TimerFunc) (cancel func())
	Now() time.Time
	Viewport() Viewport
	Visible() bool
	Location() Location
}
