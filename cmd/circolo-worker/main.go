package main

import (
	"context"
	"errors"
	"time"

	"circolo/internal/cli"
	applog "circolo/internal/log"
	"circolo/internal/sequence"
	"circolo/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentWorker)
	logger.Info("Starting circolo-worker",
		"backend", cfg.DBBackend,
		"events", cfg.EventsBackend,
		"audit_interval", cfg.AuditInterval.String(),
		applog.FieldSeasonID, cfg.AuditSeasonID)

	store, ev := cli.InitBackend(context.Background(), logger, cfg)

	allocator := sequence.NewAllocator(store.Store, cfg.TesseraFloor)
	auditWorker := worker.NewAuditWorker(allocator, ev.Publisher, cfg.AuditSeasonID)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := ev.Cleanup(); err != nil {
			logger.Error("Failed to close events backend", applog.FieldError, err)
		}
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close store", applog.FieldError, err)
		}
	})

	// catch up on anything that happened while the worker was down
	if _, err := auditWorker.AuditNow(ctx); err != nil {
		logger.Error("Startup audit failed", applog.FieldError, err)
	}

	if ev.Consumer != nil {
		go func() {
			err := ev.Consumer.ConsumeAuditRequests(ctx, auditWorker.HandleAuditRequest)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Audit request consumption stopped", applog.FieldError, err)
			}
		}()
	} else {
		logger.Info("No AMQP broker configured, audit requests are not consumed")
	}

	if cfg.AuditInterval > 0 {
		go auditWorker.RunPeriodic(ctx, cfg.AuditInterval)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
