package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"

	"sitepulse/internal/consent/models"
	consentService "sitepulse/internal/consent/service"
	consentStore "sitepulse/internal/consent/store"
	"sitepulse/internal/emitter"
	"sitepulse/internal/emitter/backends/memory"
	"sitepulse/internal/pageview"
	"sitepulse/internal/session/metrics"
	dErrors "sitepulse/pkg/domain-errors"
	"sitepulse/pkg/platform/audit"
	auditmemory "sitepulse/pkg/platform/audit/store/memory"
	"sitepulse/pkg/requestcontext"
	"sitepulse/pkg/testutil"
)

type ManagerSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	backend  *memory.Backend
	consent  *consentService.Service
	auditLog *auditmemory.InMemoryStore
	metrics  *metrics.Metrics
	manager  *Manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = requestcontext.WithCountry(context.Background(), "DE")
	s.now = t0
	s.backend = memory.New("memory")
	s.consent = consentService.New(consentStore.NewInMemoryStore(), consentService.WithLogger(testutil.DiscardLogger()))
	s.auditLog = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())

	d := emitter.NewDispatcher([]emitter.Backend{s.backend}, emitter.WithLogger(testutil.DiscardLogger()))
	s.manager = NewManager(d,
		func(visitorID string, region models.Region) Consent {
			return s.consent.ForVisitor(visitorID, region)
		},
		WithIdleTTL(10*time.Minute),
		WithMaxSessions(2),
		WithAuditor(audit.NewPublisher(s.auditLog)),
		WithMetrics(s.metrics),
		WithManagerLogger(testutil.DiscardLogger()),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *ManagerSuite) grant(visitorID string) {
	_, err := s.consent.Set(s.ctx, visitorID, models.AcceptAll())
	s.Require().NoError(err)
}

func (s *ManagerSuite) TestCreatesSessionOnFirstBatch() {
	s.grant("visitor-1")

	res, err := s.manager.Apply(s.ctx, "sess-1", "visitor-1", []Signal{navigate(0, "/"), navigate(time.Second, "/docs")})
	s.Require().NoError(err)
	s.Equal(Result{Applied: 2}, res)
	s.Equal(1, s.manager.Len())

	sess, ok := s.manager.Get("sess-1")
	s.Require().True(ok)
	s.True(sess.Now().Equal(at(time.Second)), "page clock starts at the first signal")
	s.Len(s.backend.Named(pageview.EventPageView), 2)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Active))
	s.Equal(2.0, promtest.ToFloat64(s.metrics.Signals.WithLabelValues("navigate")))
}

func (s *ManagerSuite) TestUndecidedVisitorIsNotTracked() {
	_, err := s.manager.Apply(s.ctx, "sess-1", "visitor-1", []Signal{navigate(0, "/"), scroll(time.Second, 1000)})
	s.Require().NoError(err)
	s.Empty(s.backend.Calls())

	s.grant("visitor-1")
	_, err = s.manager.Apply(s.ctx, "sess-1", "visitor-1", []Signal{navigate(2*time.Second, "/pricing")})
	s.Require().NoError(err)
	s.Len(s.backend.Named(pageview.EventPageView), 1, "consent takes effect on the next event")
}

func (s *ManagerSuite) TestRejectsInvalidInput() {
	s.Run("missing visitor", func() {
		_, err := s.manager.Apply(s.ctx, "sess-1", " ", []Signal{navigate(0, "/")})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("bad signal", func() {
		_, err := s.manager.Apply(s.ctx, "sess-1", "visitor-1", []Signal{{Type: SignalScroll}})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Zero(s.manager.Len(), "invalid batches never create a session")
	s.Equal(2.0, promtest.ToFloat64(s.metrics.Rejected.WithLabelValues("validation")))
}

func (s *ManagerSuite) TestSessionBelongsToOneVisitor() {
	_, err := s.manager.Apply(s.ctx, "sess-1", "visitor-1", []Signal{navigate(0, "/")})
	s.Require().NoError(err)

	_, err = s.manager.Apply(s.ctx, "sess-1", "visitor-2", []Signal{navigate(time.Second, "/")})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ManagerSuite) TestCapacity() {
	for _, id := range []string{"a", "b"} {
		_, err := s.manager.Apply(s.ctx, id, "visitor-1", []Signal{navigate(0, "/")})
		s.Require().NoError(err)
	}
	_, err := s.manager.Apply(s.ctx, "c", "visitor-1", []Signal{navigate(0, "/")})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ManagerSuite) TestUnloadRemovesSession() {
	s.grant("visitor-1")
	res, err := s.manager.Apply(s.ctx, "sess-1", "visitor-1", []Signal{navigate(0, "/"), unload(5 * time.Second)})
	s.Require().NoError(err)
	s.True(res.Closed)
	s.Zero(s.manager.Len())
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Closed.WithLabelValues("unload")))

	res, err = s.manager.Apply(s.ctx, "sess-1", "visitor-1", []Signal{navigate(6*time.Second, "/")})
	s.Require().NoError(err)
	s.False(res.Closed, "a new session starts under the same id")
}

func (s *ManagerSuite) TestClose() {
	err := s.manager.Close(s.ctx, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.manager.Apply(s.ctx, "sess-1", "visitor-1", []Signal{navigate(0, "/")})
	s.Require().NoError(err)
	sess, _ := s.manager.Get("sess-1")

	s.Require().NoError(s.manager.Close(s.ctx, "sess-1"))
	s.True(sess.Closed())
	s.Zero(s.manager.Len())
}

func (s *ManagerSuite) TestFlags() {
	_, err := s.manager.Flags(s.ctx, "missing", []string{"beta"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.manager.Apply(s.ctx, "sess-1", "visitor-1", []Signal{navigate(0, "/")})
	s.Require().NoError(err)
	got, err := s.manager.Flags(s.ctx, "sess-1", []string{"beta"})
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *ManagerSuite) TestSweepEvictsIdleSessions() {
	_, err := s.manager.Apply(s.ctx, "old", "visitor-1", []Signal{navigate(0, "/")})
	s.Require().NoError(err)
	s.now = s.now.Add(8 * time.Minute)
	_, err = s.manager.Apply(s.ctx, "fresh", "visitor-2", []Signal{navigate(0, "/")})
	s.Require().NoError(err)

	s.now = s.now.Add(5 * time.Minute)
	s.Equal(1, s.manager.Sweep(s.ctx))

	_, ok := s.manager.Get("old")
	s.False(ok)
	_, ok = s.manager.Get("fresh")
	s.True(ok)

	events, err := s.auditLog.ListByVisitor(s.ctx, "visitor-1")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionSessionEvicted, events[0].Action)
	s.Equal(audit.CategoryOperations, events[0].Category)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Closed.WithLabelValues("idle")))
}

func (s *ManagerSuite) TestActivityKeepsSessionAlive() {
	_, err := s.manager.Apply(s.ctx, "sess-1", "visitor-1", []Signal{navigate(0, "/")})
	s.Require().NoError(err)

	s.now = s.now.Add(9 * time.Minute)
	_, err = s.manager.Flags(s.ctx, "sess-1", nil)
	s.Require().NoError(err)
	s.now = s.now.Add(9 * time.Minute)

	s.Zero(s.manager.Sweep(s.ctx))
}

func TestManagerRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := emitter.NewDispatcher([]emitter.Backend{memory.New("memory")})
	m := NewManager(d,
		func(string, models.Region) Consent { return &gate{analytics: true} },
		WithSweepInterval(time.Millisecond),
		WithManagerLogger(testutil.DiscardLogger()),
	)
	_, err := m.Apply(context.Background(), "sess-1", "visitor-1", []Signal{navigate(0, "/")})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = m.Run(ctx)
	}()
	cancel()
	wg.Wait()

	if m.Len() != 0 {
		t.Fatalf("expected all sessions closed on shutdown, got %d", m.Len())
	}
}

func (s *ManagerSuite) TestSnapshot() {
	_, err := s.manager.Apply(s.ctx, "a", "visitor-1", []Signal{navigate(0, "/docs")})
	s.Require().NoError(err)
	s.now = s.now.Add(time.Minute)
	_, err = s.manager.Apply(s.ctx, "b", "visitor-2", []Signal{navigate(0, "/")})
	s.Require().NoError(err)

	got := s.manager.Snapshot()
	s.Require().Len(got, 2)
	s.Equal("b", got[0].ID)
	s.Equal("a", got[1].ID)
	s.Equal("/docs", got[1].Path)
	s.Equal("visitor-1", got[1].VisitorID)
}
