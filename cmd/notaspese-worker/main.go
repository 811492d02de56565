package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"notaspese/internal/amqp"
	"notaspese/internal/audit"
	"notaspese/internal/audit/sheets"
	"notaspese/internal/config"
	"notaspese/internal/log"
	"notaspese/internal/storage"
	"notaspese/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Setup("info").Error("load configuration", "error", err)
		os.Exit(1)
	}
	logger := log.Setup(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The worker writes the trail, it never emits events of its own.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, audit.NopRecorder{})
	if err != nil {
		logger.Error("open repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()
	repo.SetTimeout(cfg.StorageTimeout)

	var sheet worker.RowAppender
	if cfg.SheetsEnabled() {
		sink, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
		})
		if err != nil {
			logger.Error("initialize sheets sink", "error", err)
			os.Exit(1)
		}
		sheet = sink
		logger.Info("mirroring audit trail to spreadsheet",
			"spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("connect audit bus", "error", err, "url", cfg.AMQPURL)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewAuditWorker(repo, sheet)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("worker started", "queue", cfg.AMQPQueue)
		return client.ConsumeAuditEvents(ctx, func(ev audit.Event) error {
			return w.HandleEvent(ctx, ev)
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
