package flags

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sitepulse/internal/browser"
	"sitepulse/internal/consent/models"
	"sitepulse/internal/flags/metrics"
)

const defaultRefreshTimeout = 5 * time.Second

// ConsentGate answers whether a category is granted right now.
type ConsentGate interface {
	HasCategory(ctx context.Context, c models.Category) bool
}

// Evaluator resolves flags for one session. Every key asked for is watched
// and refreshed on each poll.
type Evaluator struct {
	client         Client
	gate           ConsentGate
	distinctID     func() string
	cache          *Cache
	pollEvery      time.Duration
	refreshTimeout time.Duration
	syncRefresh    bool
	logger         *slog.Logger
	metrics        *metrics.Metrics
	now            func() time.Time

	mu      sync.Mutex
	watched map[string]struct{}
	subs    browser.Subscriptions

	inflight atomic.Bool
	wg       sync.WaitGroup
}

// Option configures an Evaluator.
type Option func(*Evaluator)

func WithPollInterval(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.pollEvery = d
		}
	}
}

// WithKeys pre-registers keys to fetch on Start.
func WithKeys(keys ...string) Option {
	return func(e *Evaluator) {
		for _, k := range keys {
			e.watch(k)
		}
	}
}

// WithCache shares a cache between evaluators.
func WithCache(c *Cache) Option {
	return func(e *Evaluator) {
		e.cache = c
	}
}

// WithSyncRefresh runs polls inline on the host's callback instead of in a
// background goroutine. Used where the caller needs deterministic ordering.
func WithSyncRefresh() Option {
	return func(e *Evaluator) {
		e.syncRefresh = true
	}
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.refreshTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

func New(client Client, gate ConsentGate, distinctID func() string, opts ...Option) *Evaluator {
	e := &Evaluator{
		client:         client,
		gate:           gate,
		distinctID:     distinctID,
		cache:          NewCache(),
		pollEvery:      DefaultPollInterval,
		refreshTimeout: defaultRefreshTimeout,
		logger:         slog.Default(),
		now:            time.Now,
		watched:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) watch(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	e.mu.Lock()
	e.watched[key] = struct{}{}
	e.mu.Unlock()
	return key
}

// Watched returns the watched keys, sorted.
func (e *Evaluator) Watched() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]string, 0, len(e.watched))
	for k := range e.watched {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e *Evaluator) lookup(ctx context.Context, key string) (Value, bool) {
	key = e.watch(key)
	if key == "" {
		return Value{}, false
	}
	if !e.gate.HasCategory(ctx, models.CategoryAnalytics) {
		e.metrics.IncrementEvaluation("no_consent")
		return Value{}, false
	}
	if !e.client.Loaded() {
		e.metrics.IncrementEvaluation("not_loaded")
		return Value{}, false
	}
	v, ok := e.cache.Get(key)
	if !ok {
		e.metrics.IncrementEvaluation("unresolved")
		return Value{}, false
	}
	e.metrics.IncrementEvaluation("resolved")
	return v, true
}

// IsEnabled returns the cached flag state, or fallback when consent is
// missing, the client has not loaded, or the flag is not resolved yet.
func (e *Evaluator) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	v, ok := e.lookup(ctx, key)
	if !ok {
		return fallback
	}
	return v.Enabled
}

// GetVariant returns the cached value; ok is false while unresolved.
func (e *Evaluator) GetVariant(ctx context.Context, key string) (Value, bool) {
	return e.lookup(ctx, key)
}

// GetMany resolves several keys. Unresolved keys are absent from the result.
func (e *Evaluator) GetMany(ctx context.Context, keys []string) map[string]Value {
	out := make(map[string]Value, len(keys))
	for _, k := range keys {
		if v, ok := e.lookup(ctx, k); ok {
			out[strings.TrimSpace(k)] = v
		}
	}
	return out
}

// Start refreshes once and then on every poll interval of host.
func (e *Evaluator) Start(ctx context.Context, host browser.Host) {
	e.poll(ctx)
	e.subs.Add(host.SetInterval(e.pollEvery, e.poll))
}

// Stop clears the poll interval and waits for an in-flight refresh.
func (e *Evaluator) Stop() {
	e.subs.Release()
	e.wg.Wait()
}

func (e *Evaluator) poll(ctx context.Context) {
	if e.syncRefresh {
		e.Refresh(ctx)
		return
	}
	if !e.inflight.CompareAndSwap(false, true) {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.inflight.Store(false)
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.refreshTimeout)
		defer cancel()
		e.Refresh(rctx)
	}()
}

// Refresh fetches every watched key. Without analytics consent the remote is
// not contacted. Fetch errors keep the previous value.
func (e *Evaluator) Refresh(ctx context.Context) {
	if !e.gate.HasCategory(ctx, models.CategoryAnalytics) {
		return
	}
	id := e.distinctID()
	for _, key := range e.Watched() {
		if ctx.Err() != nil {
			return
		}
		raw, err := e.client.GetFeatureFlag(ctx, key, id)
		if err != nil {
			e.metrics.IncrementRefreshError()
			e.logger.DebugContext(ctx, "flag refresh failed", "flag", key, "error", err)
			continue
		}
		if raw == nil {
			e.cache.Delete(key)
			continue
		}
		v, err := ValueOf(raw)
		if err != nil {
			e.metrics.IncrementRefreshError()
			e.logger.DebugContext(ctx, "flag value ignored", "flag", key, "error", err)
			continue
		}
		e.cache.Set(key, v, e.now())
	}
}
