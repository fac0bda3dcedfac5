package engagement

import (
	"context"
	"math"
	"time"

	"sitepulse/internal/browser"
	"sitepulse/internal/emitter"
)

const (
	DefaultCheckInterval       = time.Second
	DefaultInactivityThreshold = 5 * time.Second
	DefaultReportInterval      = 30 * time.Second
)

// ActivityState is the active-time tracker state.
type ActivityState int

const (
	StateActive ActivityState = iota
	StateInactive
)

func (s ActivityState) String() string {
	if s == StateInactive {
		return "inactive"
	}
	return "active"
}

// ActiveTimeTracker accrues the time a visitor is actually engaged with the
// page. Time accrues while Active; more than the inactivity threshold without
// interaction, or the tab being hidden, makes the tracker Inactive.
type ActiveTimeTracker struct {
	host        browser.Host
	emitter     Emitter
	checkEvery  time.Duration
	idleAfter   time.Duration
	reportEvery time.Duration

	state        ActivityState
	startedAt    time.Time
	lastActivity time.Time
	lastAccrual  time.Time
	active       time.Duration
	reported     int
	finalSent    bool
	stopped      bool
	subs         browser.Subscriptions
}

// ActiveOption configures an ActiveTimeTracker.
type ActiveOption func(*ActiveTimeTracker)

func WithCheckInterval(d time.Duration) ActiveOption {
	return func(t *ActiveTimeTracker) {
		if d > 0 {
			t.checkEvery = d
		}
	}
}

func WithInactivityThreshold(d time.Duration) ActiveOption {
	return func(t *ActiveTimeTracker) {
		if d > 0 {
			t.idleAfter = d
		}
	}
}

func WithReportInterval(d time.Duration) ActiveOption {
	return func(t *ActiveTimeTracker) {
		if d > 0 {
			t.reportEvery = d
		}
	}
}

func NewActiveTimeTracker(host browser.Host, em Emitter, opts ...ActiveOption) *ActiveTimeTracker {
	t := &ActiveTimeTracker{
		host:        host,
		emitter:     em,
		checkEvery:  DefaultCheckInterval,
		idleAfter:   DefaultInactivityThreshold,
		reportEvery: DefaultReportInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins in Active state at the host's current time.
func (t *ActiveTimeTracker) Start() {
	now := t.host.Now()
	t.state = StateActive
	t.startedAt = now
	t.lastActivity = now
	t.lastAccrual = now

	for _, et := range browser.InteractionEvents {
		t.subs.Add(t.host.AddEventListener(et, t.onActivity))
	}
	t.subs.Add(t.host.AddEventListener(browser.EventVisibilityChange, t.onVisibility))
	t.subs.Add(t.host.AddEventListener(browser.EventBeforeUnload, t.onUnload))
	t.subs.Add(t.host.SetInterval(t.checkEvery, t.check))
	t.subs.Add(t.host.SetInterval(t.reportEvery, t.report))
}

func (t *ActiveTimeTracker) Stop() {
	t.stopped = true
	t.subs.Release()
}

func (t *ActiveTimeTracker) State() ActivityState { return t.state }

// ActiveTime is the accrued active time so far.
func (t *ActiveTimeTracker) ActiveTime() time.Duration { return t.active }

func (t *ActiveTimeTracker) accrue(now time.Time) {
	if d := now.Sub(t.lastAccrual); d > 0 {
		t.active += d
	}
	if now.After(t.lastAccrual) {
		t.lastAccrual = now
	}
}

func (t *ActiveTimeTracker) onActivity(context.Context, browser.Event) {
	if t.stopped {
		return
	}
	now := t.host.Now()
	t.lastActivity = now
	// a hidden tab stays Inactive until it is visible again
	if t.state == StateInactive && t.host.Visible() {
		t.state = StateActive
		t.lastAccrual = now
	}
}

func (t *ActiveTimeTracker) onVisibility(context.Context, browser.Event) {
	if t.stopped {
		return
	}
	now := t.host.Now()
	if !t.host.Visible() {
		if t.state == StateActive {
			t.accrue(now)
		}
		t.state = StateInactive
		return
	}
	if t.state == StateActive {
		t.accrue(now)
	} else {
		t.state = StateActive
		t.lastAccrual = now
	}
	t.lastActivity = now
}

func (t *ActiveTimeTracker) check(context.Context) {
	if t.stopped || t.state != StateActive {
		return
	}
	now := t.host.Now()
	t.accrue(now)
	if now.Sub(t.lastActivity) > t.idleAfter {
		t.state = StateInactive
	}
}

func (t *ActiveTimeTracker) report(ctx context.Context) {
	if t.stopped {
		return
	}
	if t.state == StateActive {
		t.accrue(t.host.Now())
	}
	secs := wholeSeconds(t.active)
	if secs <= t.reported {
		return
	}
	t.reported = secs
	t.emitter.Track(ctx, EventUserEngagement, t.props())
}

func (t *ActiveTimeTracker) onUnload(ctx context.Context, _ browser.Event) {
	if t.stopped || t.finalSent {
		return
	}
	if t.state == StateActive {
		t.accrue(t.host.Now())
	}
	if t.active <= 0 {
		return
	}
	t.finalSent = true
	t.emitter.Track(ctx, EventUserEngagementFinal, t.props())
}

func (t *ActiveTimeTracker) props() emitter.Props {
	total := t.host.Now().Sub(t.startedAt)
	return emitter.Props{
		"active_seconds":   wholeSeconds(t.active),
		"total_seconds":    wholeSeconds(total),
		"engagement_ratio": EngagementRatio(t.active, total),
	}
}

// EngagementRatio is active time as a whole percentage of total time. It may
// exceed 100 when clocks disagree; a non-positive total yields 100 if any
// active time exists and 0 otherwise.
func EngagementRatio(active, total time.Duration) int {
	if active <= 0 {
		return 0
	}
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(active) / float64(total) * 100))
}

func wholeSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds()))
}
