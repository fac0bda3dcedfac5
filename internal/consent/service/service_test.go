package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"sitepulse/internal/consent/models"
	"sitepulse/internal/consent/store"
	dErrors "sitepulse/pkg/domain-errors"
	audit "sitepulse/pkg/platform/audit"
	auditmemory "sitepulse/pkg/platform/audit/store/memory"
	"sitepulse/pkg/platform/sentinel"
	"sitepulse/pkg/requestcontext"
	"sitepulse/pkg/testutil"
)

type brokenStore struct {
	err error
}

func (b brokenStore) Get(context.Context, string, string) ([]byte, error) { return nil, b.err }
func (b brokenStore) Set(context.Context, string, string, []byte) error   { return b.err }
func (b brokenStore) Remove(context.Context, string, string) error        { return b.err }

type failingAudit struct{}

func (failingAudit) Emit(context.Context, audit.Event) error { return errors.New("audit down") }

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	records *store.InMemoryStore
	audits  *auditmemory.InMemoryStore
	svc     *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithCountry(context.Background(), "FR")
	s.now = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	s.records = store.NewInMemoryStore()
	s.audits = auditmemory.NewInMemoryStore()
	s.svc = New(s.records,
		WithAuditor(audit.NewPublisher(s.audits)),
		WithLogger(testutil.DiscardLogger()),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *ServiceSuite) TestRoundTrip() {
	s.Run("set then get preserves categories and decision time", func() {
		state, err := s.svc.Set(s.ctx, "visitor-1", models.Choices{Analytics: true, Marketing: false})
		s.Require().NoError(err)
		s.Require().NotNil(state.DecidedAt)

		got := s.svc.Get(s.ctx, "visitor-1")
		s.Require().True(got.Decided())
		s.True(s.now.Equal(*got.DecidedAt))
		s.True(got.Granted(models.CategoryAnalytics))
		s.False(got.Granted(models.CategoryMarketing))
		s.True(got.Granted(models.CategoryEssential))
		s.Equal(models.RegionEEA, got.Region)
	})

	s.Run("decision is audited", func() {
		events, err := s.audits.ListByVisitor(s.ctx, "visitor-1")
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionConsentDecided, events[0].Action)
		s.Equal("analytics=true,marketing=false", events[0].Decision)
		s.Equal("eea", events[0].Region)
	})
}

func (s *ServiceSuite) TestUndecidedFallbacks() {
	s.Run("missing record is undecided", func() {
		got := s.svc.Get(s.ctx, "nobody")
		s.False(got.Decided())
		s.False(s.svc.HasCategory(s.ctx, "nobody", models.CategoryAnalytics))
		s.True(s.svc.HasCategory(s.ctx, "nobody", models.CategoryEssential))
	})

	s.Run("corrupt record is undecided", func() {
		s.Require().NoError(s.records.Set(s.ctx, "visitor-2", models.RecordKey, []byte("{not json")))
		got := s.svc.Get(s.ctx, "visitor-2")
		s.False(got.Decided())
		s.False(got.Granted(models.CategoryAnalytics))
	})

	s.Run("record without decidedAt is undecided", func() {
		s.Require().NoError(s.records.Set(s.ctx, "visitor-3", models.RecordKey, []byte(`{"analytics":true}`)))
		s.False(s.svc.HasCategory(s.ctx, "visitor-3", models.CategoryAnalytics))
	})

	s.Run("storage outage is undecided", func() {
		svc := New(brokenStore{err: sentinel.ErrUnavailable}, WithLogger(testutil.DiscardLogger()))
		got := svc.Get(s.ctx, "visitor-1")
		s.False(got.Decided())
		s.False(svc.HasCategory(s.ctx, "visitor-1", models.CategoryAnalytics))
	})
}

func (s *ServiceSuite) TestSetErrors() {
	s.Run("empty visitor id is a validation error", func() {
		_, err := s.svc.Set(s.ctx, "  ", models.AcceptAll())
		s.True(dErrors.Is(err, dErrors.CodeValidation))
	})

	s.Run("storage outage surfaces as unavailable", func() {
		svc := New(brokenStore{err: sentinel.ErrUnavailable}, WithLogger(testutil.DiscardLogger()))
		_, err := svc.Set(s.ctx, "visitor-1", models.AcceptAll())
		s.True(dErrors.Is(err, dErrors.CodeUnavailable))
		s.ErrorIs(err, sentinel.ErrUnavailable)
	})

	s.Run("audit failure blocks persistence", func() {
		svc := New(s.records, WithAuditor(failingAudit{}), WithLogger(testutil.DiscardLogger()))
		_, err := svc.Set(s.ctx, "visitor-9", models.AcceptAll())
		s.True(dErrors.Is(err, dErrors.CodeInternal))
		s.False(svc.Get(s.ctx, "visitor-9").Decided())
	})
}

func (s *ServiceSuite) TestClear() {
	_, err := s.svc.Set(s.ctx, "visitor-1", models.AcceptAll())
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Clear(s.ctx, "visitor-1"))
	s.False(s.svc.Get(s.ctx, "visitor-1").Decided())

	events, err := s.audits.ListByVisitor(s.ctx, "visitor-1")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.ActionConsentCleared, events[1].Action)
}

func TestVisitorStore(t *testing.T) {
	ctx := context.Background()
	svc := New(store.NewInMemoryStore(), WithLogger(testutil.DiscardLogger()))
	view := svc.ForVisitor("visitor-1", models.RegionOther)

	testutil.Given(t, "a visitor who has not decided", func(t *testing.T) {
		testutil.Then(t, "the banner is prompted and analytics is denied", func(t *testing.T) {
			assert.True(t, view.ShouldPrompt(ctx))
			assert.False(t, view.HasCategory(ctx, models.CategoryAnalytics))
			assert.True(t, view.HasCategory(ctx, models.CategoryEssential))
		})
	})

	testutil.When(t, "the visitor accepts analytics only", func(t *testing.T) {
		state, err := view.SetConsent(ctx, models.Choices{Analytics: true})
		require.NoError(t, err)
		assert.Equal(t, models.RegionOther, state.Region)

		testutil.Then(t, "analytics is granted without re-prompting", func(t *testing.T) {
			assert.False(t, view.ShouldPrompt(ctx))
			assert.True(t, view.HasCategory(ctx, models.CategoryAnalytics))
			assert.False(t, view.HasCategory(ctx, models.CategoryMarketing))
		})
	})

	testutil.When(t, "the decision changes through another view", func(t *testing.T) {
		other := svc.ForVisitor("visitor-1", models.RegionOther)
		_, err := other.SetConsent(ctx, models.EssentialOnly())
		require.NoError(t, err)

		testutil.Then(t, "the first view sees it on the next check", func(t *testing.T) {
			assert.False(t, view.HasCategory(ctx, models.CategoryAnalytics))
		})
	})

	testutil.When(t, "preferences are reopened", func(t *testing.T) {
		require.NoError(t, view.Clear(ctx))

		testutil.Then(t, "the banner is prompted again", func(t *testing.T) {
			assert.True(t, view.ShouldPrompt(ctx))
		})
	})
}
