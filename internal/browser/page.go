package browser

import (
	"context"
	"time"
)

// minInterval keeps a zero or negative interval from spinning AdvanceTo forever.
const minInterval = time.Millisecond

type listener struct {
	fn      Listener
	removed bool
}

type interval struct {
	seq     uint64
	every   time.Duration
	next    time.Time
	fn      TimerFunc
	cleared bool
}

type frame struct {
	fn        TimerFunc
	cancelled bool
}

// Page is a Host driven by explicit input: a virtual clock that only moves on
// AdvanceTo, events delivered through Dispatch and animation frames flushed by
// Frame. It reproduces the browser's single-threaded callback semantics.
//
// Page is not safe for concurrent use; the owning session serializes access.
type Page struct {
	now       time.Time
	viewport  Viewport
	visible   bool
	location  Location
	listeners map[EventType][]*listener
	intervals []*interval
	frames    []*frame
	seq       uint64
}

// NewPage creates a visible page whose clock starts at start.
func NewPage(start time.Time) *Page {
	return &Page{
		now:       start,
		visible:   true,
		listeners: make(map[EventType][]*listener),
	}
}

var _ Host = (*Page)(nil)

func (p *Page) AddEventListener(t EventType, fn Listener) func() {
	l := &listener{fn: fn}
	p.listeners[t] = append(p.listeners[t], l)
	return func() {
		if l.removed {
			return
		}
		l.removed = true
		kept := p.listeners[t][:0]
		for _, other := range p.listeners[t] {
			if other != l {
				kept = append(kept, other)
			}
		}
		p.listeners[t] = kept
	}
}

func (p *Page) SetInterval(every time.Duration, fn TimerFunc) func() {
	if every < minInterval {
		every = minInterval
	}
	p.seq++
	iv := &interval{seq: p.seq, every: every, next: p.now.Add(every), fn: fn}
	p.intervals = append(p.intervals, iv)
	return func() {
		if iv.cleared {
			return
		}
		iv.cleared = true
		kept := p.intervals[:0]
		for _, other := range p.intervals {
			if other != iv {
				kept = append(kept, other)
			}
		}
		p.intervals = kept
	}
}

func (p *Page) RequestAnimationFrame(fn TimerFunc) func() {
	f := &frame{fn: fn}
	p.frames = append(p.frames, f)
	return func() { f.cancelled = true }
}

func (p *Page) Now() time.Time         { return p.now }
func (p *Page) Viewport() Viewport     { return p.viewport }
func (p *Page) Visible() bool          { return p.visible }
func (p *Page) Location() Location     { return p.location }
func (p *Page) SetViewport(v Viewport) { p.viewport = v }
func (p *Page) SetVisible(v bool)      { p.visible = v }
func (p *Page) Navigate(loc Location)  { p.location = loc }

// Dispatch delivers ev to the listeners registered for its type at the time of
// the call, in registration order. A listener removed by an earlier listener in
// the same dispatch is skipped. A zero ev.At is stamped with the current time.
func (p *Page) Dispatch(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = p.now
	}
	snapshot := append([]*listener(nil), p.listeners[ev.Type]...)
	for _, l := range snapshot {
		if l.removed {
			continue
		}
		l.fn(ctx, ev)
	}
}

// AdvanceTo moves the clock forward to t, firing every interval that comes due
// on the way in time order (ties in registration order). An interval whose
// period elapsed several times fires once per period. Moving backwards is a
// no-op.
func (p *Page) AdvanceTo(ctx context.Context, t time.Time) {
	for {
		iv := p.nextDue(t)
		if iv == nil {
			break
		}
		p.now = iv.next
		iv.next = iv.next.Add(iv.every)
		iv.fn(ctx)
	}
	if t.After(p.now) {
		p.now = t
	}
}

func (p *Page) nextDue(limit time.Time) *interval {
	var due *interval
	for _, iv := range p.intervals {
		if iv.cleared || iv.next.After(limit) {
			continue
		}
		if due == nil || iv.next.Before(due.next) || (iv.next.Equal(due.next) && iv.seq < due.seq) {
			due = iv
		}
	}
	return due
}

// Frame runs the animation-frame callbacks queued before the call. Callbacks
// requested while the frame runs are deferred to the next frame.
func (p *Page) Frame(ctx context.Context) {
	queued := p.frames
	p.frames = nil
	for _, f := range queued {
		if !f.cancelled {
			f.fn(ctx)
		}
	}
}

// ListenerCount returns the number of listeners registered for t.
func (p *Page) ListenerCount(t EventType) int {
	return len(p.listeners[t])
}

// TotalListeners returns the number of listeners across all event types.
func (p *Page) TotalListeners() int {
	n := 0
	for _, ls := range p.listeners {
		n += len(ls)
	}
	return n
}

// IntervalCount returns the number of active intervals.
func (p *Page) IntervalCount() int {
	return len(p.intervals)
}

// PendingFrames returns the number of queued, non-cancelled frame callbacks.
func (p *Page) PendingFrames() int {
	n := 0
	for _, f := range p.frames {
		if !f.cancelled {
			n++
		}
	}
	return n
}
