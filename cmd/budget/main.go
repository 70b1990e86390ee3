package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/backend"
	"budget/internal/cache"
	"budget/internal/cli"
	"budget/internal/config"
	apphttp "budget/internal/http"
	"budget/internal/log"
	"budget/internal/metrics"
	"budget/internal/services"
	"budget/internal/session"
)

// startupTimeout bounds the first readiness probe of the ledger backend.
const startupTimeout = 5 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	if err := run(cfg, logger); err != nil {
		logger.Error("Budget server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, cancel := cli.ShutdownContext(context.Background(), logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	probeCtx, probeCancel := context.WithTimeout(ctx, startupTimeout)
	if err := result.Ready(probeCtx); err != nil {
		logger.Warn("Ledger backend not ready at startup", log.FieldError, err)
	}
	probeCancel()

	m := metrics.New()
	registry := session.NewRegistry(result.Stores, cfg.SessionMax, cfg.SessionTTL,
		logger.WithComponent(log.ComponentSession).Logger,
		session.WithActiveGauge(func(active int) { m.ActiveSessions.Set(float64(active)) }),
	)
	svc := services.NewBudgetService(registry, result.Publisher, m, logger, cfg.Currency)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Metrics:            m,
		Logger:             logger,
		Ready:              apphttp.ReadyFunc(result.Ready),
	})
	srv.MaxHeaderBytes = 1 << 16

	sweeper := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	sweeper.Register(registry.Cleaner())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting budget server",
			"port", cfg.Port,
			"ledger_backend", cfg.LedgerBackend,
			"events_backend", cfg.EventsBackend,
			"currency", cfg.Currency)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sweeper.StartCleanup(cfg.SessionSweepInterval)
		<-gctx.Done()
		sweeper.Stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	})

	return g.Wait()
}
