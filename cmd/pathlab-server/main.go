package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/pathlab/pathlab/internal/config"
	"github.com/pathlab/pathlab/internal/domain/billing"
	"github.com/pathlab/pathlab/internal/domain/catalog"
	"github.com/pathlab/pathlab/internal/domain/dashboard"
	"github.com/pathlab/pathlab/internal/domain/diagnostics"
	"github.com/pathlab/pathlab/internal/domain/identity"
	"github.com/pathlab/pathlab/internal/platform/auth"
	"github.com/pathlab/pathlab/internal/platform/cache"
	"github.com/pathlab/pathlab/internal/platform/db"
	"github.com/pathlab/pathlab/internal/platform/metrics"
	"github.com/pathlab/pathlab/internal/platform/middleware"
	"github.com/pathlab/pathlab/internal/platform/notification"
)

const (
	serviceName       = "pathlab"
	notifyWorkers     = 4
	notifyQueueSize   = 256
	poolStatsInterval = 15 * time.Second
)

func main() {
	// Money is rendered as a JSON number.
	decimal.MarshalJSONWithoutQuotes = true

	rootCmd := &cobra.Command{
		Use:   "pathlab-server",
		Short: "Diagnostic lab order management API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func openMigrator(ctx context.Context, cmd *cobra.Command) (*db.Migrator, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.MigrationsDir
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, os.DirFS(dir)), pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}
	cmd.PersistentFlags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, pool, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, pool, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
				}
				if s.AppliedAt != nil {
					appliedAt = s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// authMiddleware verifies bearer tokens. In development, requests without a
// token act as the seeded administrator.
func authMiddleware(cfg *config.Config) (echo.MiddlewareFunc, error) {
	var verify echo.MiddlewareFunc
	if cfg.AuthIssuer != "" || cfg.AuthSigningKey != "" {
		verify = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	}
	if !cfg.IsDev() {
		if verify == nil {
			return nil, fmt.Errorf("no token verification configured")
		}
		return verify, nil
	}
	devUser, err := uuid.Parse(cfg.DevUserID)
	if err != nil {
		return nil, fmt.Errorf("invalid DEV_USER_ID %q: %w", cfg.DevUserID, err)
	}
	return auth.DevAuthMiddleware(devUser, verify), nil
}

func newEmailSender(cfg *config.Config, logger zerolog.Logger) notification.EmailSender {
	if cfg.NotifyWebhookURL == "" {
		return notification.NewLogSender(logger)
	}
	return notification.NewWebhookSender(cfg.NotifyWebhookURL, cfg.NotifyFrom, logger)
}

// newKVStore connects to Redis when configured and falls back to a no-op
// store otherwise or when Redis is unreachable.
func newKVStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.KVStore, func()) {
	if cfg.RedisURL == "" {
		return cache.Noop{}, func() {}
	}
	client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, dashboard cache disabled")
		return cache.Noop{}, func() {}
	}
	logger.Info().Msg("connected to redis")
	return cache.NewRedisStore(client, serviceName+":"), func() { client.Close() }
}

// newEcho builds the server with global middleware and infrastructure
// routes. Domain routes are registered on the returned /api/v1 group.
func newEcho(cfg *config.Config, logger zerolog.Logger, collector *metrics.Collector, authMW echo.MiddlewareFunc) (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	if collector != nil {
		e.Use(middleware.Metrics(collector))
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	if collector != nil {
		e.GET("/metrics", echo.WrapHandler(collector.Handler()))
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	api := e.Group("/api/v1", authMW, middleware.RateLimit(rateLimitCfg))
	return e, api
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger = newLogger(cfg.Env)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.NewCollector(serviceName)
	}

	kv, closeKV := newKVStore(ctx, cfg, logger)
	defer closeKV()

	notifier := notification.NewNotifier(newEmailSender(cfg, logger), logger,
		notifyWorkers, notifyQueueSize, notification.WithMetrics(collector))
	defer notifier.Close()

	authMW, err := authMiddleware(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure authentication")
	}

	e, api := newEcho(cfg, logger, collector, authMW)
	e.GET("/health/db", db.HealthHandler(pool))

	txm := db.NewTxManager(pool)

	// Catalog
	catalogSvc := catalog.NewService(catalog.NewTestRepoPG(pool), txm)
	catalog.NewHandler(catalogSvc).RegisterRoutes(api)

	// Patients and staff
	identitySvc := identity.NewService(identity.NewPatientRepoPG(pool), identity.NewUserRepoPG(pool), txm)
	identitySvc.SetNotifier(notifier, cfg.PortalBaseURL)
	identity.NewHandler(identitySvc).RegisterRoutes(api)

	// Billing
	billingSvc := billing.NewService(billing.NewPaymentRepoPG(pool), txm)
	billingSvc.SetMetrics(collector)
	billing.NewHandler(billingSvc).RegisterRoutes(api)

	// Orders, samples and results
	diagSvc := diagnostics.NewService(
		diagnostics.NewOrderRepoPG(pool),
		diagnostics.NewOrderTestRepoPG(pool),
		diagnostics.NewSampleRepoPG(pool),
		diagnostics.NewResultRepoPG(pool),
		txm,
		identitySvc, identitySvc, catalogSvc, billingSvc,
	)
	diagSvc.SetNotifier(notifier, cfg.PortalBaseURL)
	diagSvc.SetStrictSampleTransitions(cfg.SampleStrictTransitions)
	diagSvc.SetMetrics(collector)
	diagnostics.NewHandler(diagSvc).RegisterRoutes(api)

	// Dashboard
	dashSvc := dashboard.NewService(dashboard.NewRepoPG(pool), txm)
	dashSvc.SetCache(kv, cfg.DashboardCacheTTL)
	dashSvc.SetMetrics(collector)
	dashSvc.SetLogger(logger)
	dashboard.NewHandler(dashSvc).RegisterRoutes(api)

	stopStats := make(chan struct{})
	defer close(stopStats)
	if collector != nil {
		go observePool(collector, pool, stopStats)
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func observePool(c *metrics.Collector, pool *pgxpool.Pool, stop <-chan struct{}) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	for {
		c.ObservePool(pool)
		select {
		case <-ticker.C:
		case <-stop:
			return
		}
	}
}
