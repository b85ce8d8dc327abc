package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"circolo/internal/adapters"
	"circolo/internal/cache"
	"circolo/internal/cli"
	"circolo/internal/core"
	"circolo/internal/export/sheets"
	apphttp "circolo/internal/http"
	applog "circolo/internal/log"
	"circolo/internal/sequence"
	"circolo/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp)
	logger.Info("Starting circolo", "backend", cfg.DBBackend, "events", cfg.EventsBackend)

	ctx := context.Background()
	store, ev := cli.InitBackend(ctx, logger, cfg)

	reference := cache.NewLRUCache[int, []core.LedgerEntry](cfg.ReferenceCacheSize, cfg.ReferenceCacheTTL)
	caches := cache.NewManager()
	caches.Register(reference)

	ledgerSvc := services.NewLedgerService(
		adapters.NewSources(store.Store, cfg.SourceTimeout),
		store.Store,
		reference)
	numberingSvc := services.NewNumberingService(
		sequence.NewAllocator(store.Store, cfg.TesseraFloor),
		store.Store,
		ev.Publisher,
		ev.Requester)

	deps := apphttp.Deps{
		Ledger:             ledgerSvc,
		Numbering:          numberingSvc,
		Store:              store.Store,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}
	if cfg.SheetsEnabled() {
		creds, err := sheets.Credentials(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
		if err == nil {
			var client *sheets.Client
			client, err = sheets.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, creds)
			if err == nil {
				deps.Sheets = client
			}
		}
		if err != nil {
			// the rest of the API does not depend on the spreadsheet
			logger.Warn("Google Sheets export disabled", applog.FieldError, err)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := ev.Cleanup(); err != nil {
			logger.Error("Failed to close event publisher", applog.FieldError, err)
		}
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close store", applog.FieldError, err)
		}
	})

	go caches.Run(runCtx, 10*time.Minute)

	logger.Info("HTTP server listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Server stopped gracefully")
}
