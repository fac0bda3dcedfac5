package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"sitepulse/internal/admin"
	consentHandler "sitepulse/internal/consent/handler"
	consentMetrics "sitepulse/internal/consent/metrics"
	"sitepulse/internal/consent/models"
	consentService "sitepulse/internal/consent/service"
	"sitepulse/internal/ingest"
	"sitepulse/internal/platform/config"
	"sitepulse/internal/platform/httpserver"
	"sitepulse/internal/platform/logger"
	platformMetrics "sitepulse/internal/platform/metrics"
	"sitepulse/internal/platform/middleware"
	"sitepulse/internal/session"
	sessionMetrics "sitepulse/internal/session/metrics"
	"sitepulse/pkg/platform/audit"
	auditmemory "sitepulse/pkg/platform/audit/store/memory"
	"sitepulse/pkg/platform/middleware/metadata"
	"sitepulse/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("sitepulse stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var cleanup cleanups
	defer cleanup.run(log)

	records, checks, err := openConsentStore(ctx, cfg, &cleanup)
	if err != nil {
		return err
	}

	auditor := audit.NewPublisher(auditmemory.NewInMemoryStore(), audit.WithLogger(log))
	consent := consentService.New(records,
		consentService.WithAuditor(auditor),
		consentService.WithMetrics(consentMetrics.New(reg)),
		consentService.WithLogger(log),
	)

	dispatcher, flagClient, err := openBackends(ctx, cfg, reg, log, &cleanup)
	if err != nil {
		return err
	}

	sessionOpts := []session.Option{session.WithMaxGap(cfg.Sessions.MaxGap)}
	if flagClient != nil {
		sessionOpts = append(sessionOpts, session.WithFlags(flagClient, flagOptions(cfg, reg, log)...))
	}
	manager := session.NewManager(dispatcher,
		func(visitorID string, region models.Region) session.Consent {
			return consent.ForVisitor(visitorID, region)
		},
		session.WithIdleTTL(cfg.Sessions.IdleTTL),
		session.WithMaxSessions(cfg.Sessions.MaxSessions),
		session.WithAuditor(auditor),
		session.WithMetrics(sessionMetrics.New(reg)),
		session.WithManagerLogger(log),
		session.WithSessionOptions(sessionOpts...),
	)

	httpMetrics := platformMetrics.New(reg)
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recovery(log, httpMetrics),
		metadata.ClientMetadata,
		requesttime.Middleware,
		middleware.Observe(log, httpMetrics),
	)
	consentHandler.New(consent, log).Register(r)
	ingest.New(manager, log).Register(r)
	if cfg.Server.AdminToken != "" {
		admin.New(manager, auditor, cfg.Server.AdminToken, log).Register(r)
	}
	httpserver.RegisterOps(r, reg, checks)

	srv := httpserver.New(cfg.Server.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting sitepulse", "addr", cfg.Server.Addr, "env", cfg.Server.Env, "backends", dispatcher.Backends())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return manager.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// cleanups closes opened resources in reverse order.
type cleanups []func() error

func (c *cleanups) add(fn func() error) {
	*c = append(*c, fn)
}

func (c cleanups) run(log *slog.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			log.Warn("cleanup failed", "error", err)
		}
	}
}
