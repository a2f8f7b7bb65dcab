package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/lead-crm/cmd/mainconfig"
	"github.com/wolfman30/lead-crm/internal/api/router"
	"github.com/wolfman30/lead-crm/internal/app/bootstrap"
	"github.com/wolfman30/lead-crm/internal/auth"
	appconfig "github.com/wolfman30/lead-crm/internal/config"
	httpmiddleware "github.com/wolfman30/lead-crm/internal/http/middleware"
	"github.com/wolfman30/lead-crm/internal/leads"
	"github.com/wolfman30/lead-crm/internal/observability/metrics"
	"github.com/wolfman30/lead-crm/pkg/logging"
)

func main() {
	// Missing .env is fine outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting lead-crm API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
	)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := buildServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		cleanup()
		os.Exit(1)
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		cleanup()
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers lead metrics on a private registry alongside the Go
// runtime collectors and returns the /metrics handler.
func setupMetrics() (http.Handler, *metrics.LeadMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewLeadMetrics(reg)
}

// buildServer wires storage, integrations and routes. The returned cleanup
// is idempotent and releases every resource acquired here.
func buildServer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*http.Server, func(), error) {
	var closers []func()
	done := false
	cleanup := func() {
		if done {
			return
		}
		done = true
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*http.Server, func(), error) {
		cleanup()
		return nil, nil, err
	}

	var loadAWS bootstrap.AWSConfigLoader
	if bootstrap.NeedsAWS(cfg) {
		loadAWS = mainconfig.Loader(cfg)
	}

	store, closeStore, err := bootstrap.BuildLeadStore(ctx, cfg, loadAWS, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeStore)

	metricsHandler, leadMetrics := setupMetrics()
	opts := []leads.ServiceOption{leads.WithMetrics(leadMetrics)}

	notifier, err := bootstrap.BuildNotifier(ctx, cfg, loadAWS, logger)
	if err != nil {
		return fail(err)
	}
	if notifier != nil {
		opts = append(opts, leads.WithNotifier(notifier))
	}

	archiver, err := bootstrap.BuildArchiver(ctx, cfg, loadAWS, logger)
	if err != nil {
		return fail(err)
	}
	if archiver != nil {
		opts = append(opts, leads.WithArchiver(archiver))
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
	}
	guard := bootstrap.BuildSubmissionGuard(redisClient, cfg, logger)

	authenticator, err := auth.NewAuthenticator(auth.Config{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Secret:   cfg.AdminJWTSecret,
		TTL:      cfg.AdminTokenTTL,
	})
	if err != nil {
		return fail(err)
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.SubmitRatePerSecond, cfg.SubmitRateBurst)
	sweepDone := make(chan struct{})
	go limiter.Run(sweepDone)
	closers = append(closers, func() { close(sweepDone) })

	service := leads.NewLeadService(store, logger, opts...)
	routerCfg := &router.Config{
		Logger:             logger,
		LeadsHandler:       leads.NewHandler(service, guard, logger),
		AuthHandler:        auth.NewHandler(authenticator, logger),
		Verifier:           authenticator,
		SubmitLimiter:      limiter,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	if pinger, ok := store.(router.Pinger); ok {
		routerCfg.HealthChecker = pinger
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, cleanup, nil
}
