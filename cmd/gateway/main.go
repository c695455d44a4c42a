// Command gateway runs the internal gateway fronting the platform's
// serverless handlers.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/assistdeck/gateway/internal/audit"
	"github.com/assistdeck/gateway/internal/authguard"
	"github.com/assistdeck/gateway/internal/config"
	"github.com/assistdeck/gateway/internal/gateway"
	"github.com/assistdeck/gateway/internal/logging"
	"github.com/assistdeck/gateway/internal/metrics"
	"github.com/assistdeck/gateway/internal/ratelimit"
	"github.com/assistdeck/gateway/internal/router"
	"github.com/assistdeck/gateway/internal/rules"
	"github.com/assistdeck/gateway/internal/schemaguard"
	"github.com/assistdeck/gateway/internal/trust"
	"github.com/assistdeck/gateway/internal/worker"
	"github.com/assistdeck/gateway/supabase/client"
)

func main() {
	// Best effort: a missing .env just means real environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.New("gateway", "info", "json").WithError(err).Error("configuration invalid")
		os.Exit(1)
	}

	logger := logging.New("gateway", cfg.LogLevel, cfg.LogFormat)
	if cfg.TestingMode {
		logger.Warn("TESTING_MODE enabled: auth, rate limiting and schema protection are bypassed")
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("gateway exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	pool := worker.NewPool(4, 1024, logger)

	// Supabase backs the audit store and the trust registry where
	// configured; otherwise everything stays in memory.
	var sb *client.Client
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		var err error
		sb, err = client.New(client.Config{URL: cfg.SupabaseURL, ServiceKey: cfg.SupabaseServiceKey})
		if err != nil {
			return err
		}
	}

	registry, err := buildRegistry(ctx, cfg, sb, logger)
	if err != nil {
		return err
	}

	var auditStore audit.Store
	if sb != nil {
		auditStore = audit.NewSupabaseStore(sb)
	} else {
		logger.Warn("supabase not configured, audit records held in memory only")
		auditStore = audit.NewMemoryStore(1000)
	}
	auditor := audit.NewLogger(auditStore, pool, logger)

	counterStore, closeStore, err := buildCounterStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	table, err := rules.NewTable(cfg.ExtraRules)
	if err != nil {
		return err
	}

	var validator schemaguard.Validator
	var fixer schemaguard.Fixer
	if cfg.SchemaManagerURL != "" {
		sc := schemaguard.NewHTTPClient(schemaguard.HTTPClientConfig{
			BaseURL:    cfg.SchemaManagerURL,
			Credential: cfg.ServiceCredential,
		})
		validator, fixer = sc, sc
	}

	routes := router.NewTable(cfg.DownstreamTimeout)
	for target, u := range cfg.Targets {
		routes.Register(target, NewHTTPHandler(target, u, cfg.ServiceCredential))
	}
	logger.WithFields(map[string]interface{}{
		"targets": len(cfg.Targets),
		"sources": registry.Len(),
		"rules":   table.Len(),
	}).Info("routing table built")

	gw := gateway.New(
		gateway.Config{TestingMode: cfg.TestingMode},
		authguard.New(authguard.Config{
			TestingMode:       cfg.TestingMode,
			ServiceCredential: cfg.ServiceCredential,
			SharedSecret:      cfg.SharedSecret,
		}, registry, logger),
		ratelimit.NewLimiter(counterStore, registry, logger),
		schemaguard.New(schemaguard.Config{TestingMode: cfg.TestingMode}, table, validator, fixer, pool, logger),
		routes,
		registry,
		auditor,
		m,
		logger,
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           NewServer(gw, m, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{"addr": cfg.ListenAddr}).Info("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("server shutdown incomplete")
	}

	// Drain queued audit writes before exit.
	pool.Close()
	logger.Info("gateway stopped")
	return nil
}

func buildRegistry(ctx context.Context, cfg *config.Config, sb *client.Client, logger *logging.Logger) (*trust.Registry, error) {
	sources := cfg.TrustedSources
	if sb != nil {
		loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		remote, err := trust.LoadSources(loadCtx, sb)
		if err != nil {
			// Config-file sources still apply; the gap is visible in logs.
			logger.WithError(err).Warn("loading trusted sources from supabase failed")
		} else {
			sources = append(sources, remote...)
		}
	}
	return trust.NewRegistry(sources, cfg.TierLimits), nil
}

func buildCounterStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (ratelimit.CounterStore, func(), error) {
	if cfg.RedisAddr == "" {
		store := ratelimit.NewMemoryStore()
		store.StartSweep(time.Minute, 5*time.Minute)
		logger.Info("rate limit counters held in memory")
		return store, store.Close, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	store := ratelimit.NewRedisStore(rdb)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		rdb.Close()
		return nil, nil, err
	}

	logger.WithFields(map[string]interface{}{"addr": cfg.RedisAddr}).Info("rate limit counters in redis")
	return store, func() { _ = rdb.Close() }, nil
}
