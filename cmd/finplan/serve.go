package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpgo/finplan/internal/api"
	"github.com/rpgo/finplan/internal/calculation"
	"github.com/rpgo/finplan/internal/config"
	"github.com/rpgo/finplan/internal/observability"
	"github.com/rpgo/finplan/internal/resilience"
	"github.com/rpgo/finplan/internal/service"
	"github.com/rpgo/finplan/internal/store"
	"github.com/rpgo/finplan/internal/store/postgres"
	"github.com/rpgo/finplan/internal/store/supabase"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the projection HTTP API",
		Long:  "Serves projections over HTTP. Settings come from the environment (PORT, PLAN_SOURCE, SUPABASE_URL, DATABASE_URL, ...).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// --- Load .env file (for local development) ---
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, config.Load())
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("plan_source", cfg.PlanSource),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.String("default_withdrawal_policy", cfg.DefaultWithdrawalPolicy),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "finplan")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Engine ---
	engine := calculation.NewProjectionEngine()
	engine.SetLogger(logger.Sugar())
	cached := calculation.NewCachedEngine(engine, cfg.CacheTTL, metrics)
	defer cached.Close()

	// --- Plan source ---
	source, closeSource, err := newPlanSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	planner := service.NewPlanner(source, cached, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(planner, metrics, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// --- Graceful shutdown ---
	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// newPlanSource builds the stored-plan backend selected by PLAN_SOURCE.
// A nil source leaves only the inline endpoints available.
func newPlanSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.PlanSource, func(), error) {
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	bulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)
	defaults := store.Defaults{
		WithdrawalPolicy: cfg.DefaultWithdrawalPolicy,
		DeathAge:         cfg.DefaultDeathAge,
	}

	switch cfg.PlanSource {
	case config.SourceSupabase:
		if cfg.SupabaseURL == "" {
			logger.Warn("plan source: SUPABASE_URL not set, stored-plan routes unavailable")
			return nil, func() {}, nil
		}
		logger.Info("using Supabase as plan source", zap.String("supabase_url", cfg.SupabaseURL))
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		return store.NewLoader(client, bulkhead, defaults), func() {}, nil

	case config.SourcePostgres:
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		logger.Info("using Postgres as plan source")
		return store.NewLoader(pg, bulkhead, defaults), pg.Close, nil

	case config.SourceNone, "":
		logger.Info("no plan source configured, stored-plan routes unavailable")
		return nil, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown PLAN_SOURCE %q", cfg.PlanSource)
	}
}
