package worker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"tesoreria/internal/amqp"
	"tesoreria/internal/core"
	"tesoreria/internal/export"
	"tesoreria/internal/report"
	"tesoreria/internal/sheets"
)

// Loader reads the persisted movements.
type Loader interface {
	LoadAll(ctx context.Context) ([]core.Movement, error)
}

// ExportWorker regenerates the cash report from the store whenever a day is
// closed and writes it to the report sheet, plus an optional document sink.
type ExportWorker struct {
	store    Loader
	sheets   sheets.ReportWriter
	sink     export.Sink
	format   export.Format
	currency string
}

// NewExportWorker creates a worker. sink may be nil.
func NewExportWorker(store Loader, writer sheets.ReportWriter, sink export.Sink, format export.Format, currency string) *ExportWorker {
	if format == "" {
		format = export.FormatMarkdown
	}
	if currency == "" {
		currency = export.DefaultCurrency
	}
	return &ExportWorker{
		store:    store,
		sheets:   writer,
		sink:     sink,
		format:   format,
		currency: currency,
	}
}

// HandleDayClosed processes a single day closed message from AMQP
func (w *ExportWorker) HandleDayClosed(ctx context.Context, msg *amqp.DayClosedMessage) error {
	slog.InfoContext(ctx, "Processing day closed message",
		"component", "worker",
		"date", msg.Date.String(),
		"outcome", msg.Outcome,
		"timestamp", msg.Timestamp)

	if err := w.Export(ctx); err != nil {
		return fmt.Errorf("export after closing %s: %w", msg.Date, err)
	}
	return nil
}

// StartupExport refreshes the sheet once at worker startup, recovering from
// messages missed while the worker was down.
func (w *ExportWorker) StartupExport(ctx context.Context) error {
	slog.InfoContext(ctx, "Running startup export", "component", "worker")
	return w.Export(ctx)
}

// Export writes the full, unfiltered report. An empty store is not an error.
func (w *ExportWorker) Export(ctx context.Context) error {
	movements, err := w.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load movements: %w", err)
	}

	rep := report.Generate(movements, report.Filter{})
	if rep.Empty() {
		slog.InfoContext(ctx, "No movements to export", "component", "worker")
		return nil
	}

	ref, err := w.sheets.WriteReport(ctx, rep)
	if err != nil {
		return fmt.Errorf("write report to sheets: %w", err)
	}

	slog.InfoContext(ctx, "Report written to sheets",
		"component", "worker",
		"sheets_ref", ref,
		"days", rep.Summary.Days,
		"final_balance", rep.Summary.FinalBalance.String())

	if w.sink != nil {
		// A failed upload does not requeue the message. The next closing
		// uploads again.
		if err := w.storeDocument(ctx, rep, core.TotalsOf(movements)); err != nil {
			slog.ErrorContext(ctx, "Failed to store report document",
				"component", "worker",
				"format", string(w.format),
				"error", err)
		}
	}
	return nil
}

func (w *ExportWorker) storeDocument(ctx context.Context, rep report.Report, totals core.Totals) error {
	var buf bytes.Buffer
	err := export.Render(&buf, w.format, export.Document{
		Report:   rep,
		Totals:   totals,
		Currency: w.currency,
	})
	if err != nil {
		return err
	}
	_, err = w.sink.Put(ctx, export.FileName(w.format, rep), w.format.ContentType(), buf.Bytes())
	return err
}
