package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"sitepulse/internal/consent/models"
	"sitepulse/internal/emitter"
	"sitepulse/internal/flags"
	"sitepulse/internal/session/metrics"
	dErrors "sitepulse/pkg/domain-errors"
	"sitepulse/pkg/platform/audit"
	"sitepulse/pkg/platform/sentinel"
	"sitepulse/pkg/requestcontext"
)

const (
	DefaultIdleTTL       = 30 * time.Minute
	DefaultSweepInterval = time.Minute
	DefaultMaxSessions   = 10000
	maxIDLength          = 128
)

// ConsentSource returns the consent view for a visitor in a region.
type ConsentSource func(visitorID string, region models.Region) Consent

// AuditPublisher records session lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Result reports what a batch did.
type Result struct {
	Applied int  `json:"applied"`
	Closed  bool `json:"closed"`
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Manager holds live sessions by ID. Sessions are created on their first
// signal batch and evicted after an idle TTL.
type Manager struct {
	dispatcher  *emitter.Dispatcher
	consent     ConsentSource
	auditor     AuditPublisher
	idleTTL     time.Duration
	sweepEvery  time.Duration
	maxSessions int
	sessionOpts []Option
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithIdleTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

func WithSweepInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.sweepEvery = d
		}
	}
}

func WithMaxSessions(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// WithSessionOptions are applied to every session the manager creates.
func WithSessionOptions(opts ...Option) ManagerOption {
	return func(m *Manager) {
		m.sessionOpts = append(m.sessionOpts, opts...)
	}
}

func WithAuditor(a AuditPublisher) ManagerOption {
	return func(m *Manager) {
		m.auditor = a
	}
}

func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithClock sets the wall clock used for idle tracking.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(d *emitter.Dispatcher, consent ConsentSource, opts ...ManagerOption) *Manager {
	m := &Manager{
		dispatcher:  d,
		consent:     consent,
		idleTTL:     DefaultIdleTTL,
		sweepEvery:  DefaultSweepInterval,
		maxSessions: DefaultMaxSessions,
		logger:      slog.Default(),
		now:         time.Now,
		sessions:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func validateID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if len(id) > maxIDLength {
		return dErrors.New(dErrors.CodeValidation, field+" is too long")
	}
	return nil
}

// Apply validates the batch and applies it to the session, creating the
// session on first use. Region and device come from the request context.
func (m *Manager) Apply(ctx context.Context, sessionID, visitorID string, signals []Signal) (Result, error) {
	if err := validateID("session id", sessionID); err != nil {
		m.metrics.IncrementRejected("validation")
		return Result{}, err
	}
	if err := validateID("visitor_id", visitorID); err != nil {
		m.metrics.IncrementRejected("validation")
		return Result{}, err
	}
	if err := ValidateBatch(signals); err != nil {
		m.metrics.IncrementRejected("validation")
		return Result{}, err
	}

	s, err := m.acquire(ctx, sessionID, visitorID, signals)
	if err != nil {
		return Result{}, err
	}

	started := time.Now()
	n, err := s.Apply(ctx, signals)
	m.metrics.ObserveApply(time.Since(started).Seconds())
	if errors.Is(err, sentinel.ErrClosed) {
		m.remove(sessionID, s, "")
		return Result{}, dErrors.New(dErrors.CodeConflict, "session is closed")
	}
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply signals")
	}

	res := Result{Applied: n, Closed: s.Closed()}
	if res.Closed {
		m.remove(sessionID, s, "unload")
		m.logger.InfoContext(ctx, "session closed by unload",
			"session_id", sessionID,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return res, nil
}

func (m *Manager) acquire(ctx context.Context, sessionID, visitorID string, signals []Signal) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[sessionID]; ok {
		if e.session.VisitorID() != visitorID {
			m.metrics.IncrementRejected("visitor_mismatch")
			return nil, dErrors.New(dErrors.CodeConflict, "session belongs to another visitor")
		}
		e.lastSeen = m.now()
		return e.session, nil
	}
	if len(m.sessions) >= m.maxSessions {
		m.metrics.IncrementRejected("capacity")
		return nil, dErrors.New(dErrors.CodeUnavailable, "session capacity reached")
	}

	start := m.now()
	if first := ordered(signals)[0].At; !first.IsZero() {
		start = first
	}
	region := models.RegionFromCountry(requestcontext.Country(ctx))
	opts := append([]Option{
		WithStart(start),
		WithDevice(emitter.ParseDevice(requestcontext.UserAgent(ctx))),
		WithLogger(m.logger),
		withCounter(m.metrics),
	}, m.sessionOpts...)

	s := New(sessionID, visitorID, m.consent(visitorID, region), m.dispatcher, opts...)
	m.sessions[sessionID] = &entry{session: s, lastSeen: m.now()}
	m.metrics.SessionOpened()
	m.logger.DebugContext(ctx, "session opened",
		"session_id", sessionID,
		"region", region,
		"request_id", requestcontext.RequestID(ctx),
	)
	return s, nil
}

// remove drops s from the map if it is still the entry for id. An empty
// reason skips the closed metric.
func (m *Manager) remove(id string, s *Session, reason string) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok && e.session == s {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if ok && e.session == s && reason != "" {
		m.metrics.SessionClosed(reason)
	}
}

// Get returns a live session.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return e.session, true
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops a session at the client's request.
func (m *Manager) Close(ctx context.Context, sessionID string) error {
	s, ok := m.Get(sessionID)
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	s.Close()
	m.remove(sessionID, s, "client")
	m.logger.InfoContext(ctx, "session closed",
		"session_id", sessionID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// Flags resolves flags for a live session.
func (m *Manager) Flags(ctx context.Context, sessionID string, keys []string) (map[string]flags.Value, error) {
	s, ok := m.Get(sessionID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	m.touch(sessionID)
	return s.Flags(ctx, keys), nil
}

func (m *Manager) touch(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[sessionID]; ok {
		e.lastSeen = m.now()
	}
}

// Sweep closes sessions idle longer than the TTL and returns how many were
// evicted.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()
	var idle []*Session

	m.mu.Lock()
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) > m.idleTTL {
			idle = append(idle, e.session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
		m.metrics.SessionClosed("idle")
		m.auditEviction(ctx, s)
	}
	if len(idle) > 0 {
		m.logger.InfoContext(ctx, "idle sessions evicted", "count", len(idle))
	}
	return len(idle)
}

func (m *Manager) auditEviction(ctx context.Context, s *Session) {
	if m.auditor == nil {
		return
	}
	// operations events are best-effort; Emit only fails for compliance
	_ = m.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionSessionEvicted,
		VisitorID: s.VisitorID(),
		Decision:  "idle",
	})
}

// Run sweeps on every interval until ctx is cancelled, then closes every
// remaining session.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Shutdown(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Shutdown closes all sessions.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, e := range m.sessions {
		all = append(all, e.session)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
		m.metrics.SessionClosed("shutdown")
	}
	m.logger.InfoContext(ctx, "sessions closed on shutdown", "count", len(all))
}

// Summary describes a live session for operators.
type Summary struct {
	ID         string    `json:"id"`
	VisitorID  string    `json:"visitor_id"`
	DistinctID string    `json:"distinct_id"`
	Path       string    `json:"path"`
	PageTime   time.Time `json:"page_time"`
	LastSeen   time.Time `json:"last_seen"`
}

// Snapshot lists live sessions, most recently active first.
func (m *Manager) Snapshot() []Summary {
	m.mu.Lock()
	entries := make([]entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, *e)
	}
	m.mu.Unlock()

	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		out = append(out, Summary{
			ID:         e.session.ID(),
			VisitorID:  e.session.VisitorID(),
			DistinctID: e.session.DistinctID(),
			Path:       e.session.Path(),
			PageTime:   e.session.Now(),
			LastSeen:   e.lastSeen,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}
