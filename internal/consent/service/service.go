package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sitepulse/internal/consent/metrics"
	"sitepulse/internal/consent/models"
	dErrors "sitepulse/pkg/domain-errors"
	audit "sitepulse/pkg/platform/audit"
	"sitepulse/pkg/platform/sentinel"
	"sitepulse/pkg/requestcontext"
)

// RecordStore is a per-visitor key/value namespace.
type RecordStore interface {
	Get(ctx context.Context, visitorID, key string) ([]byte, error)
	Set(ctx context.Context, visitorID, key string, value []byte) error
	Remove(ctx context.Context, visitorID, key string) error
}

// AuditPublisher records consent decisions for compliance.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service reads and writes consent decisions. Reads never fail: anything
// short of a valid stored decision is reported as undecided.
type Service struct {
	store   RecordStore
	auditor AuditPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures the Service.
type Option func(*Service)

func WithAuditor(a AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the decision timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store RecordStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the visitor's consent state. The region is taken from the
// request's edge country and only labels the result.
func (s *Service) Get(ctx context.Context, visitorID string) models.State {
	return s.get(ctx, visitorID, models.RegionFromCountry(requestcontext.Country(ctx)))
}

func (s *Service) get(ctx context.Context, visitorID string, region models.Region) models.State {
	raw, err := s.store.Get(ctx, visitorID, models.RecordKey)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementReadFailure("unavailable")
			s.logger.WarnContext(ctx, "consent read failed, treating as undecided",
				"visitor_id", visitorID,
				"error", err,
			)
		}
		return models.Undecided(region)
	}
	state, err := models.DecodeRecord(raw, region)
	if err != nil {
		s.metrics.IncrementReadFailure("corrupt")
		s.logger.WarnContext(ctx, "corrupt consent record, treating as undecided",
			"visitor_id", visitorID,
			"error", err,
		)
		return models.Undecided(region)
	}
	return state
}

// HasCategory reports whether the visitor granted c. Storage is read on every
// call so a change made elsewhere applies immediately.
func (s *Service) HasCategory(ctx context.Context, visitorID string, c models.Category) bool {
	if c == models.CategoryEssential {
		return true
	}
	return s.Get(ctx, visitorID).Granted(c)
}

// Set records an explicit decision. The compliance audit is written first; if
// it fails, the decision is not persisted.
func (s *Service) Set(ctx context.Context, visitorID string, choices models.Choices) (models.State, error) {
	if strings.TrimSpace(visitorID) == "" {
		return models.State{}, dErrors.New(dErrors.CodeValidation, "visitor id is required")
	}
	decidedAt := s.now().UTC()
	raw, err := models.EncodeRecord(choices, decidedAt)
	if err != nil {
		return models.State{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode consent")
	}

	if err := s.emitAudit(ctx, visitorID, audit.ActionConsentDecided,
		fmt.Sprintf("analytics=%t,marketing=%t", choices.Analytics, choices.Marketing)); err != nil {
		return models.State{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record consent decision")
	}
	if err := s.store.Set(ctx, visitorID, models.RecordKey, raw); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist consent",
			"visitor_id", visitorID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return models.State{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist consent")
	}
	s.metrics.IncrementDecision(choices.Analytics, choices.Marketing)

	region := models.RegionFromCountry(requestcontext.Country(ctx))
	state := models.Undecided(region)
	state.Categories[models.CategoryAnalytics] = choices.Analytics
	state.Categories[models.CategoryMarketing] = choices.Marketing
	state.DecidedAt = &decidedAt
	return state, nil
}

// Clear removes the decision so the banner is shown again.
func (s *Service) Clear(ctx context.Context, visitorID string) error {
	if strings.TrimSpace(visitorID) == "" {
		return dErrors.New(dErrors.CodeValidation, "visitor id is required")
	}
	if err := s.emitAudit(ctx, visitorID, audit.ActionConsentCleared, "cleared"); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record consent withdrawal")
	}
	if err := s.store.Remove(ctx, visitorID, models.RecordKey); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to clear consent")
	}
	s.metrics.IncrementClear()
	return nil
}

func (s *Service) emitAudit(ctx context.Context, visitorID string, action audit.Action, decision string) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		VisitorID: visitorID,
		Action:    action,
		Decision:  decision,
		Region:    string(models.RegionFromCountry(requestcontext.Country(ctx))),
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
	})
}

// ForVisitor returns the consent view a page session holds.
func (s *Service) ForVisitor(visitorID string, region models.Region) *Store {
	return &Store{svc: s, visitorID: visitorID, region: region}
}
