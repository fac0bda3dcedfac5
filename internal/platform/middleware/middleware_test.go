package middleware

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/internal/platform/logger"
	"sitepulse/internal/platform/metrics"
	"sitepulse/pkg/platform/httputil"
	"sitepulse/pkg/requestcontext"
	"sitepulse/pkg/testutil"
)

func TestRequestID(t *testing.T) {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"id": requestcontext.RequestID(r.Context())})
	})

	t.Run("generated when absent", func(t *testing.T) {
		rr := testutil.Serve(r, testutil.JSONRequest(t, http.MethodGet, "/", nil))
		id := rr.Header().Get(RequestIDHeader)
		require.NotEmpty(t, id)
		assert.Equal(t, id, testutil.Decode[map[string]string](t, rr)["id"])
	})

	t.Run("caller supplied id is kept", func(t *testing.T) {
		req := testutil.JSONRequest(t, http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rr := testutil.Serve(r, req)
		assert.Equal(t, "req-123", rr.Header().Get(RequestIDHeader))
	})

	t.Run("oversized id is replaced", func(t *testing.T) {
		req := testutil.JSONRequest(t, http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 100))
		rr := testutil.Serve(r, req)
		assert.Len(t, rr.Header().Get(RequestIDHeader), 36)
	})
}

func TestRecovery(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(Recovery(testutil.DiscardLogger(), m))
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rr := testutil.Serve(r, testutil.JSONRequest(t, http.MethodGet, "/boom", nil))

	testutil.AssertError(t, rr, http.StatusInternalServerError, "internal_error")
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Panics))
}

func TestObserve(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(RequestID, Observe(logger.NewWithWriter(&buf, "json", "info"), m))
	r.Get("/v1/sessions/{sessionID}/flags", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	testutil.Serve(r, testutil.JSONRequest(t, http.MethodGet, "/v1/sessions/abc/flags", nil))

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Requests.WithLabelValues("/v1/sessions/{sessionID}/flags", "GET", "418")))
	assert.Contains(t, buf.String(), `"route":"/v1/sessions/{sessionID}/flags"`)
	assert.Contains(t, buf.String(), `"status":418`)
}
