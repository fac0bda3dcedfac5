package engagement

import (
	"context"
	"math"
	"slices"

	"sitepulse/internal/browser"
	"sitepulse/internal/emitter"
)

// DefaultScrollThresholds are the depth milestones in percent.
var DefaultScrollThresholds = []int{25, 50, 75, 100}

// ScrollPercent returns how far down the document the viewport is, in whole
// percent. A document that does not overflow the viewport counts as fully
// viewed. Overscroll past either end is clamped to [0, 100].
func ScrollPercent(v browser.Viewport) int {
	scrollable := v.ScrollHeight - v.ViewportHeight
	if scrollable <= 0 || math.IsNaN(scrollable) {
		return 100
	}
	top := v.ScrollTop
	if top <= 0 || math.IsNaN(top) {
		return 0
	}
	pct := math.Round(top / scrollable * 100)
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// ScrollTracker emits scroll_depth once per threshold per page lifetime.
// Scroll events are coalesced into at most one depth check per animation frame.
type ScrollTracker struct {
	host       browser.Host
	emitter    Emitter
	thresholds []int
	fired      map[int]bool
	maxDepth   int
	scrolled   bool
	finalSent  bool
	stopped    bool
	pending    func()
	subs       browser.Subscriptions
}

// ScrollOption configures a ScrollTracker.
type ScrollOption func(*ScrollTracker)

// WithThresholds replaces the default milestones. Values outside [0, 100] are
// dropped; the rest are deduplicated and sorted.
func WithThresholds(thresholds ...int) ScrollOption {
	return func(t *ScrollTracker) {
		var kept []int
		for _, th := range thresholds {
			if th >= 0 && th <= 100 {
				kept = append(kept, th)
			}
		}
		slices.Sort(kept)
		t.thresholds = slices.Compact(kept)
	}
}

func NewScrollTracker(host browser.Host, em Emitter, opts ...ScrollOption) *ScrollTracker {
	t := &ScrollTracker{
		host:       host,
		emitter:    em,
		thresholds: slices.Clone(DefaultScrollThresholds),
		fired:      make(map[int]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *ScrollTracker) Start() {
	t.subs.Add(t.host.AddEventListener(browser.EventScroll, t.onScroll))
	t.subs.Add(t.host.AddEventListener(browser.EventBeforeUnload, t.onUnload))
}

// Stop detaches every listener and cancels a pending frame.
func (t *ScrollTracker) Stop() {
	t.stopped = true
	t.subs.Release()
	if t.pending != nil {
		t.pending()
		t.pending = nil
	}
}

// MaxDepth is the deepest percentage seen this page lifetime.
func (t *ScrollTracker) MaxDepth() int { return t.maxDepth }

// Fired reports whether the threshold was emitted.
func (t *ScrollTracker) Fired(threshold int) bool { return t.fired[threshold] }

func (t *ScrollTracker) onScroll(context.Context, browser.Event) {
	if t.stopped {
		return
	}
	t.scrolled = true
	if t.pending != nil {
		return
	}
	t.pending = t.host.RequestAnimationFrame(t.check)
}

func (t *ScrollTracker) check(ctx context.Context) {
	t.pending = nil
	if t.stopped {
		return
	}
	pct := ScrollPercent(t.host.Viewport())
	if pct > t.maxDepth {
		t.maxDepth = pct
	}
	for _, th := range t.thresholds {
		if t.fired[th] || pct < th {
			continue
		}
		t.fired[th] = true
		t.emitter.Track(ctx, EventScrollDepth, emitter.Props{
			"depth":     th,
			"max_depth": t.maxDepth,
		})
	}
}

func (t *ScrollTracker) onUnload(ctx context.Context, _ browser.Event) {
	if t.stopped || !t.scrolled || t.finalSent {
		return
	}
	if t.pending != nil {
		t.pending()
		t.check(ctx)
	}
	t.finalSent = true
	t.emitter.Track(ctx, EventScrollFinalDepth, emitter.Props{"max_depth": t.maxDepth})
}
