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

	"receptionist-platform/internal/assistants"
	"receptionist-platform/internal/auth"
	"receptionist-platform/internal/bookings"
	"receptionist-platform/internal/calls"
	"receptionist-platform/internal/config"
	"receptionist-platform/internal/httpapi"
	"receptionist-platform/internal/invocations"
	"receptionist-platform/internal/reporting"
	"receptionist-platform/internal/sms"
	"receptionist-platform/internal/tools"
	"receptionist-platform/internal/usage"
	"receptionist-platform/internal/webhook"
	"receptionist-platform/pkg/logger"
	"receptionist-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// usageRecorder adapts the usage meter to the lifecycle handler's
// fire-and-forget notification interface.
type usageRecorder struct {
	svc *usage.Service
}

func (u usageRecorder) RecordCallUsage(ctx context.Context, tenantID string, durationSeconds int, callID string) error {
	_, err := u.svc.RecordCallUsage(ctx, tenantID, durationSeconds, callID)
	return err
}

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Services, wired bottom-up.
	registry := assistants.NewRegistry(assistants.NewPostgresRepo(db), assistants.NewRedisCache(rdb))
	bookingSvc := bookings.NewService(bookings.NewPostgresRepo(db))
	invocationSvc := invocations.NewService(invocations.NewPostgresRepo(db))
	usageSvc := usage.NewService(usage.NewPostgresStore(db), usage.DefaultVariants).
		WithMarker(usage.NewRedisMarker(rdb))
	callSvc := calls.NewService(calls.NewPostgresRepo(db), bookingSvc, usageRecorder{usageSvc})
	reportSvc := reporting.NewService(reporting.NewPostgresRepo(db))

	webhookRouter := webhook.NewRouter(cfg.Vapi.WebhookSecret, cfg.Vapi.DefaultTenantID, registry, callSvc)
	dispatcher := tools.NewDispatcher(cfg.Vapi.ToolSecret, cfg.Vapi.DefaultTenantID, registry,
		bookingSvc, invocationSvc, sms.NoopSender{})

	handlers := httpapi.Handlers{
		Auth:       authManager,
		Usage:      usageSvc,
		Reports:    reportSvc,
		Bookings:   bookingSvc,
		Assistants: registry,
		UpgradeURL: cfg.Trial.UpgradeURL,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	deps := routeDeps{
		db:          db,
		rdb:         rdb,
		webhook:     webhookRouter,
		tools:       dispatcher,
		handlers:    handlers,
		authMW:      auth.RequireAccessToken(authManager),
		usageSecret: cfg.Trial.APISecret,
	}
	registerRoutes(r, deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
