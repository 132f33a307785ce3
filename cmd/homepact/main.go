package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/homepact/homepact/internal/agreement"
	"github.com/homepact/homepact/internal/app"
	"github.com/homepact/homepact/internal/custody"
	"github.com/homepact/homepact/internal/platform/cache"
	"github.com/homepact/homepact/internal/platform/db"
	"github.com/homepact/homepact/internal/proposal"
	"github.com/homepact/homepact/internal/renewal"
	"github.com/homepact/homepact/internal/shared"
	"github.com/homepact/homepact/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	notifier := shared.NewNotifier(pool, queueClient, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	custodyRepo := custody.NewRepository(pool)

	agreementRepo := agreement.NewRepository(pool)
	activeCache := agreement.NewActiveCache(redisClient, cfg.ActiveCacheTTL, logger)
	agreementService := agreement.NewService(agreementRepo, auditLogger, activeCache, logger)
	agreementHandler := agreement.NewHandler(logger, agreementService)

	proposalRepo := proposal.NewRepository(pool)
	escalationSink := proposal.NewGuardianEscalationSink(custodyRepo, notifier)
	tracker := proposal.NewTracker(proposalRepo, escalationSink, idempotencyStore, cfg.EscalationThreshold, logger)
	proposalService := proposal.NewService(proposalRepo, custodyRepo, agreementService, tracker, notifier, auditLogger, cfg.ProposalTTL, logger)
	proposalHandler := proposal.NewHandler(logger, proposalService)

	renewalRepo := renewal.NewRepository(pool)
	renewalService := renewal.NewService(renewalRepo, agreementService, notifier, auditLogger, logger)
	renewalHandler := renewal.NewHandler(logger, renewalService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AgreementHandler: agreementHandler,
		ProposalHandler:  proposalHandler,
		RenewalHandler:   renewalHandler,
		JobHandler:       jobHandler,
		Audit:            auditLogger,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
