package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"branchrate/internal/audit"
	branchhandler "branchrate/internal/branch/handler"
	"branchrate/internal/branch/directory"
	branchmetrics "branchrate/internal/branch/metrics"
	"branchrate/internal/branch/models"
	"branchrate/internal/branch/store"
	"branchrate/internal/platform/config"
	"branchrate/internal/platform/httpserver"
	"branchrate/internal/platform/logger"
	"branchrate/internal/platform/metrics"
	"branchrate/internal/platform/postgres"
	platformredis "branchrate/internal/platform/redis"
	"branchrate/internal/propagation"
	ratehandler "branchrate/internal/propagation/handler"
	"branchrate/internal/ratelimit"
	sessionhandler "branchrate/internal/session/handler"
	"branchrate/internal/session/service"
	sessionstore "branchrate/internal/session/store"
	"branchrate/internal/session/token"
	httptransport "branchrate/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("branchrate exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.New(reg)
	branchMetrics := branchmetrics.New(reg)

	checks := map[string]httptransport.HealthCheck{}
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	branches, err := openBranchStore(ctx, cfg, branchMetrics, checks, &closers)
	if err != nil {
		return err
	}
	if err := seed(ctx, cfg, branches, log); err != nil {
		return err
	}

	dir := directory.New(branches, directory.WithLogger(log), directory.WithMetrics(branchMetrics))
	if err := dir.Refresh(ctx); err != nil {
		log.Warn("initial directory load failed", "error", err)
	}
	checks["directory"] = func(context.Context) error { return dir.Err() }

	sinks, err := auditSinks(cfg.Audit, log, &closers)
	if err != nil {
		return err
	}
	publisher := audit.NewPublisher(sinks...)
	queue := audit.NewQueue(0)
	worker := audit.NewWorker(publisher, queue, log)

	engine, err := propagation.New(dir, branches,
		propagation.WithLogger(log),
		propagation.WithMetrics(propagation.NewMetrics(reg)),
		propagation.WithAudit(queue),
		propagation.WithWriteTimeout(cfg.WriteTimeout),
	)
	if err != nil {
		return err
	}

	sessions, err := openSessionStore(ctx, cfg.Redis, checks, &closers)
	if err != nil {
		return err
	}
	sessionService, err := service.New(sessions, dir, token.NewService(cfg.SessionKey, "branchrate", "branchrate-admin"),
		service.WithTTL(cfg.SessionTTL),
		service.WithLogger(log),
		service.WithAudit(queue),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:     log,
		Metrics:    httpMetrics,
		Gatherer:   reg,
		Sessions:   sessionService,
		AdminToken: cfg.AdminToken,
		Checks:     checks,
		Limiter:    ratelimit.New(cfg.RateLimitPerMinute, log),
		SessionHandler: sessionhandler.New(sessionService, dir,
			sessionhandler.WithLogger(log),
			sessionhandler.WithMetrics(httpMetrics),
			sessionhandler.WithLogoutHook(func(sessionID string) { engine.DiscardSession(sessionID) }),
		),
		BranchHandler: branchhandler.New(branches, dir, log),
		RateHandler:   ratehandler.New(engine, log),
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpserver.Run(gctx, srv, log) })
	g.Go(func() error { return worker.Run(gctx) })
	if cfg.RefreshInterval > 0 {
		g.Go(func() error {
			if err := dir.RunRefreshLoop(gctx, cfg.RefreshInterval); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	err = g.Wait()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func openBranchStore(ctx context.Context, cfg config.Server, m *branchmetrics.Metrics, checks map[string]httptransport.HealthCheck, closers *[]func()) (store.Store, error) {
	switch cfg.BranchStore {
	case config.StoreMemory:
		return store.NewInMemory(store.WithMetrics(m)), nil
	case config.StorePostgres:
		pool, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, pool.Close)
		checks["postgres"] = pool.Ping
		pg := store.NewPostgres(pool, store.WithMetrics(m))
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure branch schema: %w", err)
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown BRANCH_STORE %q", cfg.BranchStore)
	}
}

func seed(ctx context.Context, cfg config.Server, branches store.Store, log *slog.Logger) error {
	var (
		data []models.Branch
		err  error
	)
	if cfg.SeedFile != "" {
		f, ferr := os.Open(cfg.SeedFile)
		if ferr != nil {
			return fmt.Errorf("open seed file: %w", ferr)
		}
		defer f.Close()
		data, err = store.LoadSeed(f)
	} else {
		data, err = store.DefaultSeed()
	}
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}
	n, err := store.SeedIfEmpty(ctx, branches, data)
	if err != nil {
		return fmt.Errorf("seed branches: %w", err)
	}
	if n > 0 {
		log.Info("seeded branch store", "branches", n)
	}
	return nil
}

func openSessionStore(ctx context.Context, cfg config.RedisConfig, checks map[string]httptransport.HealthCheck, closers *[]func()) (sessionstore.Store, error) {
	client, err := platformredis.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return sessionstore.NewInMemory(), nil
	}
	*closers = append(*closers, func() { _ = client.Close() })
	checks["redis"] = client.Health
	return sessionstore.NewRedis(client.Client), nil
}

func auditSinks(cfg config.AuditConfig, log *slog.Logger, closers *[]func()) ([]audit.Sink, error) {
	sinks := []audit.Sink{audit.NewLogSink(log)}
	if len(cfg.KafkaBrokers) > 0 {
		k, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka audit sink: %w", err)
		}
		*closers = append(*closers, k.Close)
		sinks = append(sinks, k)
	}
	if cfg.AMQPURL != "" {
		a, err := audit.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, fmt.Errorf("amqp audit sink: %w", err)
		}
		*closers = append(*closers, func() { _ = a.Close() })
		sinks = append(sinks, a)
	}
	return sinks, nil
}
