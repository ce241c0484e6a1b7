package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"tesoreria/internal/amqp"
	"tesoreria/internal/cli"
	"tesoreria/internal/export"
	applog "tesoreria/internal/log"
	"tesoreria/internal/sheets"
	gsheet "tesoreria/internal/sheets/google"
	memsheet "tesoreria/internal/sheets/memory"
	"tesoreria/internal/storage"
	"tesoreria/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker))
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentWorker)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open SQLite store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var writer sheets.ReportWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to create Google Sheets client", "error", err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Exporting report to Google Sheets", "sheet", cfg.GoogleSheetName)
	} else {
		writer = memsheet.New(cfg.GoogleSheetName)
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, report sheet is kept in memory")
	}

	var sink export.Sink
	switch {
	case cfg.ExportBucket != "":
		gcs, err := export.NewGCSSink(ctx, cfg.ExportBucket, "reports/")
		if err != nil {
			logger.Error("Failed to create GCS sink", "error", err, "bucket", cfg.ExportBucket)
			os.Exit(1)
		}
		defer gcs.Close()
		sink = gcs
	case cfg.ExportDir != "":
		sink = export.FileSink{Dir: cfg.ExportDir}
	}

	format, err := export.ParseFormat(cfg.ExportFormat)
	if err != nil {
		logger.Error("Invalid export format", "error", err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewExportWorker(repo, writer, sink, format, cfg.Currency)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// A failed startup export only means the sheet stays stale until
		// the next closing
		if err := w.StartupExport(gctx); err != nil {
			logger.Warn("Startup export failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		return client.ConsumeDayClosed(gctx, w.HandleDayClosed)
	})

	logger.Info("Export worker started",
		"queue", cfg.AMQPQueue,
		"format", string(format),
		"sink", sink != nil)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Export worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Export worker stopped gracefully")
}
