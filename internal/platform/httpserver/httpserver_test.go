package httpserver

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"

	"sitepulse/pkg/testutil"
)

func TestHealthz(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	broken := func(context.Context) error { return errors.New("connection refused") }

	t.Run("all checks pass", func(t *testing.T) {
		r := chi.NewRouter()
		RegisterOps(r, prometheus.NewRegistry(), map[string]HealthCheck{"redis": healthy})

		rr := testutil.Serve(r, testutil.JSONRequest(t, http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"OK","checks":{"redis":"ok"}}`, rr.Body.String())
	})

	t.Run("a failing check", func(t *testing.T) {
		r := chi.NewRouter()
		RegisterOps(r, prometheus.NewRegistry(), map[string]HealthCheck{"redis": healthy, "postgres": broken})

		rr := testutil.Serve(r, testutil.JSONRequest(t, http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		body := testutil.Decode[map[string]any](t, rr)
		assert.Equal(t, "connection refused", body["checks"].(map[string]any)["postgres"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{Name: "sitepulse_test_total", Help: "test"}).Inc()

	r := chi.NewRouter()
	RegisterOps(r, reg, nil)

	rr := testutil.Serve(r, testutil.JSONRequest(t, http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "sitepulse_test_total 1")
}
