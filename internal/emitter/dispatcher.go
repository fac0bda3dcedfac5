package emitter

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sitepulse/internal/emitter/metrics"
	"sitepulse/pkg/platform/circuit"
)

const (
	opCapture           = "capture"
	opIdentify          = "identify"
	opReset             = "reset"
	opSetUserProperties = "set_user_properties"
)

type guardedBackend struct {
	backend Backend
	breaker *circuit.Breaker
}

// Dispatcher owns the configured back-ends and is shared by every session.
// Each back-end call is isolated: an error or panic in one is counted, logged
// and dropped, and never reaches the caller or the other back-ends.
type Dispatcher struct {
	backends    []*guardedBackend
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	breakerOpts []circuit.Option
	devMode     bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}

// WithBreakerOptions tunes the per-back-end circuit breakers.
func WithBreakerOptions(opts ...circuit.Option) DispatcherOption {
	return func(d *Dispatcher) {
		d.breakerOpts = append(d.breakerOpts, opts...)
	}
}

// WithDevMode logs consent suppression and back-end failures at warn level.
// Outside dev mode both are only visible in metrics.
func WithDevMode(dev bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.devMode = dev
	}
}

func NewDispatcher(backends []Backend, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		logger: slog.Default(),
		tracer: otel.Tracer("sitepulse/emitter"),
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, b := range backends {
		if b == nil {
			continue
		}
		d.backends = append(d.backends, &guardedBackend{
			backend: b,
			breaker: circuit.New(b.Name(), d.breakerOpts...),
		})
	}
	return d
}

// Backends lists the configured back-end names in dispatch order.
func (d *Dispatcher) Backends() []string {
	names := make([]string, 0, len(d.backends))
	for _, g := range d.backends {
		names = append(names, g.backend.Name())
	}
	return names
}

func (d *Dispatcher) capture(ctx context.Context, event Event) {
	d.metrics.IncrementTracked(event.Name)
	d.each(ctx, opCapture, func(ctx context.Context, b Backend) error {
		return b.Capture(ctx, event)
	})
}

func (d *Dispatcher) identify(ctx context.Context, distinctID string, props Props) {
	d.each(ctx, opIdentify, func(ctx context.Context, b Backend) error {
		return b.Identify(ctx, distinctID, props)
	})
}

func (d *Dispatcher) reset(ctx context.Context) {
	d.each(ctx, opReset, func(ctx context.Context, b Backend) error {
		return b.Reset(ctx)
	})
}

func (d *Dispatcher) setUserProperties(ctx context.Context, distinctID string, props Props) {
	d.each(ctx, opSetUserProperties, func(ctx context.Context, b Backend) error {
		return b.SetUserProperties(ctx, distinctID, props)
	})
}

func (d *Dispatcher) each(ctx context.Context, op string, call func(context.Context, Backend) error) {
	for _, g := range d.backends {
		d.invoke(ctx, g, op, call)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, g *guardedBackend, op string, call func(context.Context, Backend) error) {
	name := g.backend.Name()
	if !g.breaker.Allow() {
		d.metrics.IncrementBackendSkipped(name)
		return
	}

	ctx, span := d.tracer.Start(ctx, "emitter."+op, trace.WithAttributes(
		attribute.String("backend", name),
	))
	defer span.End()

	err, panicked := safeCall(ctx, g.backend, call)
	if err == nil {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			d.metrics.SetBreakerOpen(name, false)
			d.logger.InfoContext(ctx, "backend recovered", "backend", name)
		}
		return
	}

	kind := "error"
	if panicked {
		kind = "panic"
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	d.metrics.IncrementBackendFailure(name, op, kind)
	if d.devMode {
		d.logger.WarnContext(ctx, "backend call failed",
			"backend", name,
			"operation", op,
			"kind", kind,
			"error", err,
		)
	}
	if _, change := g.breaker.RecordFailure(); change.Opened {
		d.metrics.SetBreakerOpen(name, true)
		d.logger.WarnContext(ctx, "backend circuit opened, skipping until probe succeeds",
			"backend", name,
			"last_error", err,
		)
	}
}

func safeCall(ctx context.Context, b Backend, call func(context.Context, Backend) error) (err error, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
			panicked = true
		}
	}()
	return call(ctx, b), false
}
