package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/homepact/homepact/internal/agreement"
	"github.com/homepact/homepact/internal/app"
	"github.com/homepact/homepact/internal/custody"
	"github.com/homepact/homepact/internal/platform/db"
	"github.com/homepact/homepact/internal/proposal"
	"github.com/homepact/homepact/internal/shared"
	"github.com/homepact/homepact/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
	agreementService := agreement.NewService(agreementRepo, auditLogger, nil, logger)

	proposalRepo := proposal.NewRepository(pool)
	escalationSink := proposal.NewGuardianEscalationSink(custodyRepo, notifier)
	tracker := proposal.NewTracker(proposalRepo, escalationSink, idempotencyStore, cfg.EscalationThreshold, logger)
	proposalService := proposal.NewService(proposalRepo, custodyRepo, agreementService, tracker, notifier, auditLogger, cfg.ProposalTTL, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeNotifyDeliver, Handler: jobs.HandleNotifyDeliver(pool, logger)},
			{Type: jobs.TaskTypeProposalSweep, Handler: jobs.HandleProposalSweep(proposalService, logger)},
			{Type: jobs.TaskTypeSweepAll, Handler: jobs.HandleSweepAll(proposalService, logger)},
			{Type: jobs.TaskTypeIdempotencyCleanup, Handler: jobs.HandleIdempotencyCleanup(idempotencyStore, cfg.IdempotencyRetention, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SweepCron, Task: jobs.NewSweepAllTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.CleanupCron, Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
