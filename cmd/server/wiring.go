package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	consentService "sitepulse/internal/consent/service"
	consentStore "sitepulse/internal/consent/store"
	"sitepulse/internal/emitter"
	"sitepulse/internal/emitter/backends/clickhouse"
	"sitepulse/internal/emitter/backends/kafka"
	"sitepulse/internal/emitter/backends/posthog"
	"sitepulse/internal/emitter/backends/webhook"
	emitterMetrics "sitepulse/internal/emitter/metrics"
	"sitepulse/internal/flags"
	flagposthog "sitepulse/internal/flags/adapters/posthog"
	flagMetrics "sitepulse/internal/flags/metrics"
	"sitepulse/internal/platform/config"
	"sitepulse/internal/platform/httpserver"
	"sitepulse/internal/platform/postgres"
	"sitepulse/internal/platform/redis"
	"sitepulse/pkg/platform/circuit"
)

const (
	kafkaClientID    = "sitepulse"
	kafkaPartitions  = 3
	kafkaReplication = 1
)

func openConsentStore(ctx context.Context, cfg config.Config, cleanup *cleanups) (consentService.RecordStore, map[string]httpserver.HealthCheck, error) {
	checks := map[string]httpserver.HealthCheck{}
	switch cfg.Consent.Store {
	case config.StoreRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		if client == nil {
			return nil, nil, fmt.Errorf("consent store %q requires a redis url", cfg.Consent.Store)
		}
		cleanup.add(client.Close)
		checks["redis"] = client.Health
		return consentStore.NewRedis(client.Client, consentStore.WithRetention(cfg.Consent.Retention)), checks, nil

	case config.StorePostgres:
		pool, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if pool == nil {
			return nil, nil, fmt.Errorf("consent store %q requires a postgres dsn", cfg.Consent.Store)
		}
		cleanup.add(func() error { pool.Close(); return nil })
		checks["postgres"] = pool.Ping
		store := consentStore.NewPostgres(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		return store, checks, nil

	case config.StoreSQLite:
		store, err := consentStore.OpenSQLite(ctx, cfg.Consent.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		cleanup.add(store.Close)
		return store, checks, nil

	default:
		return consentStore.NewInMemoryStore(), checks, nil
	}
}

// openBackends connects every configured back-end. The PostHog client also
// serves feature flags; it is nil when PostHog is not configured.
func openBackends(ctx context.Context, cfg config.Config, reg prometheus.Registerer, log *slog.Logger, cleanup *cleanups) (*emitter.Dispatcher, flags.Client, error) {
	b := cfg.Backends
	var (
		backends   []emitter.Backend
		flagClient flags.Client
	)

	if b.PostHogAPIKey != "" {
		client, err := posthog.NewClient(b.PostHogAPIKey, b.PostHogEndpoint, b.PostHogPersonalAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("posthog: %w", err)
		}
		cleanup.add(client.Close)
		backends = append(backends, posthog.New(client))
		flagClient = flagposthog.New(client)
	}

	if len(b.KafkaBrokers) > 0 {
		client, err := kafka.Dial(b.KafkaBrokers, kafkaClientID)
		if err != nil {
			return nil, nil, err
		}
		cleanup.add(func() error { client.Close(); return nil })
		if err := kafka.EnsureTopic(ctx, client, b.KafkaTopic, kafkaPartitions, kafkaReplication); err != nil {
			return nil, nil, err
		}
		backends = append(backends, kafka.New(client, b.KafkaTopic, kafka.WithLogger(log)))
	}

	if b.ClickHouseDSN != "" {
		writer, conn, err := clickhouse.Open(ctx, b.ClickHouseDSN, b.ClickHouseTable, clickhouse.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		cleanup.add(conn.Close)
		cleanup.add(func() error { writer.Close(); return nil })
		backends = append(backends, writer)
	}

	if b.WebhookURL != "" {
		opts := []webhook.Option{webhook.WithLogger(log)}
		if b.WebhookToken != "" {
			opts = append(opts, webhook.WithHeader("Authorization", "Bearer "+b.WebhookToken))
		}
		hook := webhook.New(b.WebhookURL, opts...)
		cleanup.add(func() error { hook.Close(); return nil })
		backends = append(backends, hook)
	}

	if len(backends) == 0 {
		log.Warn("no analytics back-end configured; events are dropped after consent checks")
	}

	d := emitter.NewDispatcher(backends,
		emitter.WithLogger(log),
		emitter.WithMetrics(emitterMetrics.New(reg)),
		emitter.WithTracer(otel.Tracer("sitepulse/emitter")),
		emitter.WithBreakerOptions(
			circuit.WithFailureThreshold(b.BreakerFailures),
			circuit.WithCooldown(b.BreakerCooldown),
		),
		emitter.WithDevMode(cfg.Server.DevMode()),
	)
	return d, flagClient, nil
}

func flagOptions(cfg config.Config, reg prometheus.Registerer, log *slog.Logger) []flags.Option {
	return []flags.Option{
		flags.WithKeys(cfg.Flags.Keys...),
		flags.WithPollInterval(cfg.Flags.PollInterval),
		flags.WithRefreshTimeout(5 * time.Second),
		flags.WithLogger(log),
		flags.WithMetrics(flagMetrics.New(reg)),
	}
}
