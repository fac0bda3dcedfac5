// Package session runs the consent-gated trackers for one visitor page
// session. Signals posted by the beacon drive a simulated browser page whose
// clock follows the signal timestamps; all tracker callbacks of a session run
// under the session lock.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sitepulse/internal/browser"
	"sitepulse/internal/consent/models"
	"sitepulse/internal/emitter"
	"sitepulse/internal/engagement"
	"sitepulse/internal/flags"
	"sitepulse/internal/pageview"
	"sitepulse/pkg/platform/sentinel"
)

// DefaultMaxGap bounds how far one signal may move the page clock.
const DefaultMaxGap = 30 * time.Minute

// Consent is the visitor's consent, read on every tracking attempt.
type Consent interface {
	HasCategory(ctx context.Context, c models.Category) bool
}

// Session is one page session. It is safe for concurrent use; calls are
// serialized.
type Session struct {
	id        string
	visitorID string
	consent   Consent
	logger    *slog.Logger
	counter   signalCounter
	maxGap    time.Duration

	pageViewOpts []pageview.Option
	scrollOpts   []engagement.ScrollOption
	activeOpts   []engagement.ActiveOption

	mu        sync.Mutex
	page      *browser.Page
	emitter   *emitter.Emitter
	pageviews *pageview.Tracker
	routes    *engagement.RouteChangeTracker
	flags     *flags.Evaluator
	scroll    *engagement.ScrollTracker
	active    *engagement.ActiveTimeTracker
	links     *engagement.LinkTracker
	started   bool
	closed    bool
}

type signalCounter interface {
	IncrementSignal(signalType string)
}

type nopCounter struct{}

func (nopCounter) IncrementSignal(string) {}

// Option configures a Session.
type Option func(*settings)

type settings struct {
	start        time.Time
	distinctID   string
	device       emitter.Device
	idGen        func() string
	flagClient   flags.Client
	flagOpts     []flags.Option
	pageViewOpts []pageview.Option
	scrollOpts   []engagement.ScrollOption
	activeOpts   []engagement.ActiveOption
	maxGap       time.Duration
	logger       *slog.Logger
	counter      signalCounter
}

// WithStart sets the page clock's initial time. Defaults to the wall clock.
func WithStart(t time.Time) Option {
	return func(s *settings) {
		s.start = t
	}
}

func WithDistinctID(id string) Option {
	return func(s *settings) {
		s.distinctID = id
	}
}

// WithDevice attaches User-Agent derived device fields to every event.
func WithDevice(d emitter.Device) Option {
	return func(s *settings) {
		s.device = d
	}
}

// WithIDGenerator overrides event and anonymous ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *settings) {
		s.idGen = fn
	}
}

// WithFlags enables the feature-flag evaluator for the session.
func WithFlags(client flags.Client, opts ...flags.Option) Option {
	return func(s *settings) {
		s.flagClient = client
		s.flagOpts = append(s.flagOpts, opts...)
	}
}

func WithPageViewOptions(opts ...pageview.Option) Option {
	return func(s *settings) {
		s.pageViewOpts = append(s.pageViewOpts, opts...)
	}
}

func WithScrollOptions(opts ...engagement.ScrollOption) Option {
	return func(s *settings) {
		s.scrollOpts = append(s.scrollOpts, opts...)
	}
}

func WithActiveOptions(opts ...engagement.ActiveOption) Option {
	return func(s *settings) {
		s.activeOpts = append(s.activeOpts, opts...)
	}
}

// WithMaxGap caps how far a single signal advances the page clock. Longer
// gaps are compressed to the cap.
func WithMaxGap(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.maxGap = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

func withCounter(c signalCounter) Option {
	return func(s *settings) {
		if c != nil {
			s.counter = c
		}
	}
}

// New creates a session bound to one visitor's consent. Events go through d.
func New(id, visitorID string, consent Consent, d *emitter.Dispatcher, opts ...Option) *Session {
	cfg := settings{
		start:   time.Now(),
		maxGap:  DefaultMaxGap,
		logger:  slog.Default(),
		counter: nopCounter{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		id:           id,
		visitorID:    visitorID,
		consent:      consent,
		logger:       cfg.logger,
		counter:      cfg.counter,
		maxGap:       cfg.maxGap,
		pageViewOpts: cfg.pageViewOpts,
		scrollOpts:   cfg.scrollOpts,
		activeOpts:   cfg.activeOpts,
		page:         browser.NewPage(cfg.start),
	}

	emOpts := []emitter.Option{
		emitter.WithDistinctID(cfg.distinctID),
		emitter.WithLocation(s.page.Location),
		emitter.WithClock(s.page.Now),
		emitter.WithDevice(cfg.device),
	}
	if cfg.idGen != nil {
		emOpts = append(emOpts, emitter.WithIDGenerator(cfg.idGen))
	}
	s.emitter = emitter.New(d, consent, emOpts...)
	s.pageviews = pageview.New(s.emitter, cfg.pageViewOpts...)
	s.routes = engagement.NewRouteChangeTracker(s.page, s.emitter)
	if cfg.flagClient != nil {
		s.flags = flags.New(cfg.flagClient, consent, s.emitter.DistinctID, cfg.flagOpts...)
	}
	return s
}

func (s *Session) ID() string        { return s.id }
func (s *Session) VisitorID() string { return s.visitorID }

// DistinctID is the identity events are attributed to.
func (s *Session) DistinctID() string { return s.emitter.DistinctID() }

// Now is the page clock.
func (s *Session) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.Now()
}

// Path is the current page path; empty before the first navigation.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.Location().Path
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Start begins flag polling. Apply calls it on first use.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked(ctx)
}

func (s *Session) startLocked(ctx context.Context) {
	if s.started {
		return
	}
	s.started = true
	if s.flags != nil {
		s.flags.Start(ctx, s.page)
	}
}

// Apply processes a batch in timestamp order. For each signal the page clock
// advances to the signal time, firing due intervals, the signal is applied and
// pending animation frames run. Timestamps earlier than the page clock are
// treated as now. An unload signal closes the session; later signals in the
// batch are dropped. It returns the number of signals applied.
func (s *Session) Apply(ctx context.Context, signals []Signal) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, sentinel.ErrClosed
	}
	s.startLocked(ctx)

	applied := 0
	for _, sig := range ordered(signals) {
		s.advanceLocked(ctx, sig.At)
		s.applyLocked(ctx, sig)
		s.page.Frame(ctx)
		s.counter.IncrementSignal(string(sig.Type))
		applied++
		if sig.Type == SignalUnload {
			s.closeLocked()
			break
		}
	}
	return applied, nil
}

func (s *Session) advanceLocked(ctx context.Context, at time.Time) {
	now := s.page.Now()
	if at.IsZero() || !at.After(now) {
		return
	}
	if at.Sub(now) > s.maxGap {
		at = now.Add(s.maxGap)
	}
	s.page.AdvanceTo(ctx, at)
}

func (s *Session) applyLocked(ctx context.Context, sig Signal) {
	switch sig.Type {
	case SignalNavigate:
		s.navigateLocked(ctx, sig)
	case SignalScroll:
		s.page.SetViewport(*sig.Viewport)
		s.page.Dispatch(ctx, browser.Event{Type: browser.EventScroll})
	case SignalInteraction:
		s.page.Dispatch(ctx, browser.Event{Type: sig.Event})
	case SignalVisibility:
		s.page.SetVisible(*sig.Visible)
		s.page.Dispatch(ctx, browser.Event{Type: browser.EventVisibilityChange})
	case SignalClick:
		target := *sig.Target
		s.page.Dispatch(ctx, browser.Event{Type: browser.EventClick, Target: &target})
	case SignalUnload:
		s.page.Dispatch(ctx, browser.Event{Type: browser.EventBeforeUnload})
	case SignalIdentify:
		s.emitter.Identify(ctx, sig.UserID, sig.Properties)
	case SignalReset:
		s.emitter.Reset(ctx)
	case SignalSetProperties:
		s.emitter.SetUserProperties(ctx, sig.Properties)
	default:
		s.logger.DebugContext(ctx, "signal ignored", "session_id", s.id, "type", sig.Type)
	}
}

// navigateLocked updates the location and, on a path change, ends the
// previous page lifetime: per-page trackers are stopped and recreated with
// empty state.
func (s *Session) navigateLocked(ctx context.Context, sig Signal) {
	loc, err := ParseLocation(sig.URL, sig.Title)
	if err != nil {
		s.logger.DebugContext(ctx, "navigate signal ignored", "session_id", s.id, "error", err)
		return
	}
	newPage := loc.Path != s.page.Location().Path || s.scroll == nil
	s.page.Navigate(loc)

	if newPage {
		s.stopPageTrackersLocked()
		s.scroll = engagement.NewScrollTracker(s.page, s.emitter, s.scrollOpts...)
		s.active = engagement.NewActiveTimeTracker(s.page, s.emitter, s.activeOpts...)
		s.links = engagement.NewLinkTracker(s.page, s.emitter)
		s.scroll.Start()
		s.active.Start()
		s.links.Start()
	}

	s.pageviews.Observe(ctx, pageview.Route{Path: loc.Path, Query: loc.Query, Hash: loc.Hash})
	s.routes.Observe(ctx, loc.Path)
}

func (s *Session) stopPageTrackersLocked() {
	if s.scroll != nil {
		s.scroll.Stop()
	}
	if s.active != nil {
		s.active.Stop()
	}
	if s.links != nil {
		s.links.Stop()
	}
}

// Close stops every tracker and the flag poller. It does not emit unload
// events; the beacon's unload signal does that. Closing twice is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.stopPageTrackersLocked()
	if s.flags != nil {
		s.flags.Stop()
	}
}

// Flags resolves feature flags from the session's cache. Without a flag
// client every key is unresolved.
func (s *Session) Flags(ctx context.Context, keys []string) map[string]flags.Value {
	if s.flags == nil {
		return map[string]flags.Value{}
	}
	return s.flags.GetMany(ctx, keys)
}

// Listeners reports the live listener and interval counts on the page.
func (s *Session) Listeners() (listeners, intervals int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.TotalListeners(), s.page.IntervalCount()
}
