// Package webhook forwards events as JSON POSTs to a configured endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"sitepulse/internal/emitter"
)

const (
	defaultQueueSize = 1024
	defaultTimeout   = 5 * time.Second
)

// Payload is the body of every request.
type Payload struct {
	Type       string         `json:"type"`
	DistinctID string         `json:"distinct_id,omitempty"`
	Event      *emitter.Event `json:"event,omitempty"`
	Props      emitter.Props  `json:"props,omitempty"`
}

// Backend queues payloads and posts them from a single worker goroutine, so
// slow endpoints never hold up a session. There is no retry.
type Backend struct {
	url     string
	client  *http.Client
	headers http.Header
	logger  *slog.Logger

	queue     chan Payload
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
	failed    atomic.Int64
}

// Option configures the Backend.
type Option func(*Backend)

func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) {
		b.client = c
	}
}

// WithHeader adds a header to every request, e.g. a shared secret.
func WithHeader(key, value string) Option {
	return func(b *Backend) {
		b.headers.Set(key, value)
	}
}

func WithQueueSize(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.queue = make(chan Payload, n)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// New starts the delivery worker. Call Close to stop it.
func New(url string, opts ...Option) *Backend {
	b := &Backend{
		url:     url,
		client:  &http.Client{Timeout: defaultTimeout},
		headers: make(http.Header),
		logger:  slog.Default(),
		queue:   make(chan Payload, defaultQueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.run()
	return b
}

func (b *Backend) Name() string { return "webhook" }

func (b *Backend) Capture(_ context.Context, event emitter.Event) error {
	ev := event
	return b.enqueue(Payload{Type: "capture", DistinctID: event.DistinctID, Event: &ev})
}

func (b *Backend) Identify(_ context.Context, distinctID string, props emitter.Props) error {
	return b.enqueue(Payload{Type: "identify", DistinctID: distinctID, Props: props})
}

func (b *Backend) Reset(context.Context) error {
	return b.enqueue(Payload{Type: "reset"})
}

func (b *Backend) SetUserProperties(_ context.Context, distinctID string, props emitter.Props) error {
	return b.enqueue(Payload{Type: "set_user_properties", DistinctID: distinctID, Props: props})
}

func (b *Backend) enqueue(p Payload) error {
	select {
	case <-b.done:
		return fmt.Errorf("webhook backend closed")
	default:
	}
	select {
	case b.queue <- p:
	default:
		b.dropped.Add(1)
	}
	return nil
}

// Dropped counts payloads discarded because the queue was full.
func (b *Backend) Dropped() int64 { return b.dropped.Load() }

// Failed counts deliveries that errored or got a non-2xx response.
func (b *Backend) Failed() int64 { return b.failed.Load() }

// Close delivers what is already queued, then stops the worker.
func (b *Backend) Close() {
	b.closeOnce.Do(func() { close(b.done) })
	<-b.stopped
}

func (b *Backend) run() {
	defer close(b.stopped)
	for {
		select {
		case p := <-b.queue:
			b.deliver(p)
		case <-b.done:
			for {
				select {
				case p := <-b.queue:
					b.deliver(p)
				default:
					return
				}
			}
		}
	}
}

func (b *Backend) deliver(p Payload) {
	body, err := json.Marshal(p)
	if err != nil {
		b.failed.Add(1)
		b.logger.Warn("webhook payload encode failed", "type", p.Type, "error", err)
		return
	}
	req, err := http.NewRequest(http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		b.failed.Add(1)
		b.logger.Warn("webhook request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range b.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := b.client.Do(req)
	if err != nil {
		b.failed.Add(1)
		b.logger.Warn("webhook delivery failed", "type", p.Type, "error", err)
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b.failed.Add(1)
		b.logger.Warn("webhook endpoint rejected payload", "type", p.Type, "status", resp.StatusCode)
	}
}
