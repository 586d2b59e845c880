package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/caltrack/caltrack/cmd/caltrack/cli"
	"github.com/caltrack/caltrack/internal/app"
	"github.com/caltrack/caltrack/internal/audit"
	"github.com/caltrack/caltrack/internal/auth"
	"github.com/caltrack/caltrack/internal/meals"
	"github.com/caltrack/caltrack/internal/observability"
	"github.com/caltrack/caltrack/internal/platform/cache"
	"github.com/caltrack/caltrack/internal/platform/db"
	"github.com/caltrack/caltrack/internal/shared"
	"github.com/caltrack/caltrack/internal/users"
	"github.com/caltrack/caltrack/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobsCommand(ctx, cfg, os.Args[2:]))
	}

	dbpool, err := db.Connect(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, ApplicationName: "caltrack-api"})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if err := db.EnsureSchema(ctx, dbpool); err != nil {
		logger.Error("ensure schema", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.Connect(ctx, cfg.RedisAddr)
	summaryClient := redisClient
	if err != nil {
		logger.Warn("redis unavailable, summary cache disabled", slog.Any("error", err))
		summaryClient = nil
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("init token manager", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	summaryCache := cache.NewJSONCache(summaryClient, "caltrack:summary", cfg.SummaryCacheTTL, cache.WithLogger(logger))
	mealsService := meals.NewService(meals.NewRepository(dbpool), summaryCache,
		meals.WithLogger(logger),
		meals.WithSummaryDays(cfg.SummaryWarmupDays),
	)
	usersService := users.NewService(users.NewRepository(dbpool),
		users.WithAudit(shared.NewAuditLogger(dbpool)),
		users.WithSummaryInvalidator(mealsService),
		users.WithLogger(logger),
	)
	authService := auth.NewService(auth.NewRepository(dbpool), tokens)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("asynq inspector close", slog.Any("error", err))
		}
	}()

	router, err := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Authenticator:  auth.NewAuthenticator(tokens, logger),
		AuthHandler:    auth.NewHandler(logger, authService),
		UsersHandler:   users.NewHandler(logger, usersService),
		MealsHandler:   meals.NewHandler(logger, mealsService),
		JobHandler:     jobs.NewHandler(inspector, jobClient, cfg.SummaryWarmupDays, logger),
		AuditHandler:   audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool))),
		Metrics:        metrics,
		RequestLogging: !cfg.IsProduction(),
	})
	if err != nil {
		logger.Error("build router", slog.Any("error", err))
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runJobsCommand handles `caltrack jobs trigger|stats`.
func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) int {
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr, cfg.SummaryWarmupDays)
	defer jobsCLI.Close()
	return jobsCLI.Run(ctx, args, os.Stdout, os.Stderr)
}

