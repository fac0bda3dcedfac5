package flags

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"

	"sitepulse/internal/browser"
	"sitepulse/internal/consent/models"
	"sitepulse/pkg/testutil"
)

type stubGate struct{ analytics bool }

func (g *stubGate) HasCategory(_ context.Context, c models.Category) bool {
	return c == models.CategoryEssential || (c == models.CategoryAnalytics && g.analytics)
}

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type EvaluatorSuite struct {
	suite.Suite
	ctx    context.Context
	client *StaticClient
	gate   *stubGate
	eval   *Evaluator
}

func TestEvaluatorSuite(t *testing.T) {
	suite.Run(t, new(EvaluatorSuite))
}

func (s *EvaluatorSuite) SetupTest() {
	s.ctx = context.Background()
	s.client = NewStaticClient(map[string]any{"x": false, "beta": true, "hero": "variant-b"})
	s.gate = &stubGate{analytics: true}
	s.eval = New(s.client, s.gate, func() string { return "anon-1" },
		WithSyncRefresh(), WithLogger(testutil.DiscardLogger()))
}

func (s *EvaluatorSuite) TestConsentDeniedReturnsFallbackWithoutRemote() {
	s.gate.analytics = false

	s.True(s.eval.IsEnabled(s.ctx, "x", true))
	s.False(s.eval.IsEnabled(s.ctx, "beta", false))
	s.eval.Refresh(s.ctx)

	s.Zero(s.client.Calls(), "remote client is never contacted without consent")
	_, ok := s.eval.GetVariant(s.ctx, "hero")
	s.False(ok)
}

func (s *EvaluatorSuite) TestNotLoadedReturnsFallback() {
	s.client.SetLoaded(false)
	s.eval.IsEnabled(s.ctx, "x", true)
	s.eval.Refresh(s.ctx)

	s.True(s.eval.IsEnabled(s.ctx, "x", true), "fallback until the client loads")

	s.client.SetLoaded(true)
	s.False(s.eval.IsEnabled(s.ctx, "x", true))
}

func (s *EvaluatorSuite) TestLookupNeverCallsRemote() {
	s.True(s.eval.IsEnabled(s.ctx, "beta", true), "unresolved key returns fallback")
	s.Zero(s.client.Calls())

	s.eval.Refresh(s.ctx)
	s.Equal(1, s.client.Calls())
	s.True(s.eval.IsEnabled(s.ctx, "beta", false))
	s.Equal(1, s.client.Calls())
}

func (s *EvaluatorSuite) TestGetVariantAndMany() {
	s.eval.GetMany(s.ctx, []string{"beta", "hero", "missing", " "})
	s.eval.Refresh(s.ctx)

	v, ok := s.eval.GetVariant(s.ctx, "hero")
	s.Require().True(ok)
	s.Equal("variant-b", v.Any())
	s.True(v.Enabled)

	many := s.eval.GetMany(s.ctx, []string{"beta", "hero", "missing"})
	s.Len(many, 2)
	s.Equal(true, many["beta"].Any())
	s.NotContains(many, "missing")

	raw, err := json.Marshal(many)
	s.Require().NoError(err)
	s.JSONEq(`{"beta":true,"hero":"variant-b"}`, string(raw))
}

func (s *EvaluatorSuite) TestRefreshKeepsValueOnError() {
	s.eval.IsEnabled(s.ctx, "beta", false)
	s.eval.Refresh(s.ctx)

	s.client.FailWith(errors.New("flag service down"))
	s.eval.Refresh(s.ctx)
	s.True(s.eval.IsEnabled(s.ctx, "beta", false))
}

func (s *EvaluatorSuite) TestRemovedFlagIsDropped() {
	s.eval.IsEnabled(s.ctx, "beta", false)
	s.eval.Refresh(s.ctx)

	s.client.Set("beta", nil)
	s.eval.Refresh(s.ctx)
	s.True(s.eval.IsEnabled(s.ctx, "beta", true))
}

func (s *EvaluatorSuite) TestPollingPicksUpChangesAndStops() {
	page := browser.NewPage(t0)
	eval := New(s.client, s.gate, func() string { return "anon-1" },
		WithKeys("beta"), WithSyncRefresh(), WithPollInterval(30*time.Second))

	eval.Start(s.ctx, page)
	s.True(eval.IsEnabled(s.ctx, "beta", false), "refreshed on start")
	s.Equal(1, page.IntervalCount())

	s.client.Set("beta", false)
	page.AdvanceTo(s.ctx, t0.Add(30*time.Second))
	s.False(eval.IsEnabled(s.ctx, "beta", true))

	eval.Stop()
	s.Zero(page.IntervalCount())

	calls := s.client.Calls()
	page.AdvanceTo(s.ctx, t0.Add(5*time.Minute))
	s.Equal(calls, s.client.Calls(), "no polling after Stop")
}

func TestAsyncRefresh(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	client := NewStaticClient(map[string]any{"beta": true})
	eval := New(client, &stubGate{analytics: true}, func() string { return "anon-1" }, WithKeys("beta"))
	page := browser.NewPage(t0)

	eval.Start(ctx, page)
	eval.Stop()

	assert.True(t, eval.IsEnabled(ctx, "beta", false))
}

func TestValueOf(t *testing.T) {
	v, err := ValueOf(true)
	require.NoError(t, err)
	assert.Equal(t, Value{Enabled: true}, v)

	v, err = ValueOf("control")
	require.NoError(t, err)
	assert.Equal(t, Value{Enabled: true, Variant: "control"}, v)

	v, err = ValueOf("")
	require.NoError(t, err)
	assert.False(t, v.Enabled)

	_, err = ValueOf(42)
	assert.Error(t, err)
}
