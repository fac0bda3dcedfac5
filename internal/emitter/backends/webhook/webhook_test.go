package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"sitepulse/internal/emitter"
	"sitepulse/pkg/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type receiver struct {
	mu       sync.Mutex
	payloads []Payload
	secrets  []string
	status   int
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var p Payload
	if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	r.payloads = append(r.payloads, p)
	r.secrets = append(r.secrets, req.Header.Get("X-Sitepulse-Secret"))
	status := r.status
	r.mu.Unlock()
	if status == 0 {
		status = http.StatusAccepted
	}
	w.WriteHeader(status)
}

func TestDeliversQueuedPayloadsInOrder(t *testing.T) {
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	b := New(srv.URL,
		WithHTTPClient(srv.Client()),
		WithHeader("X-Sitepulse-Secret", "s3cret"),
		WithLogger(testutil.DiscardLogger()),
	)
	ctx := context.Background()
	require.NoError(t, b.Capture(ctx, emitter.Event{Name: "contact_click", DistinctID: "anon-1"}))
	require.NoError(t, b.Identify(ctx, "user-1", emitter.Props{"plan": "pro"}))
	b.Close()

	rcv.mu.Lock()
	defer rcv.mu.Unlock()
	require.Len(t, rcv.payloads, 2)
	assert.Equal(t, "capture", rcv.payloads[0].Type)
	assert.Equal(t, "contact_click", rcv.payloads[0].Event.Name)
	assert.Equal(t, "identify", rcv.payloads[1].Type)
	assert.Equal(t, []string{"s3cret", "s3cret"}, rcv.secrets)
	assert.Zero(t, b.Failed())
}

func TestRejectedDeliveryIsCountedNotReturned(t *testing.T) {
	rcv := &receiver{status: http.StatusInternalServerError}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	b := New(srv.URL, WithHTTPClient(srv.Client()), WithLogger(testutil.DiscardLogger()))
	require.NoError(t, b.Reset(context.Background()))
	b.Close()

	assert.Equal(t, int64(1), b.Failed())
}

func TestUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b := New(url, WithLogger(testutil.DiscardLogger()))
	require.NoError(t, b.SetUserProperties(context.Background(), "user-1", emitter.Props{"a": 1}))
	b.Close()

	assert.Equal(t, int64(1), b.Failed())
	assert.Error(t, b.Capture(context.Background(), emitter.Event{Name: "late"}), "closed backend rejects calls")
}
