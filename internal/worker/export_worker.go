// Package worker consumes ledger events and keeps the spreadsheet artifact
// current without a request in flight.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"custody/internal/amqp"
)

// Exporter regenerates the workbook artifact.
type Exporter interface {
	Export(ctx context.Context) (string, error)
}

// ExportWorker re-exports the transaction spreadsheet whenever the ledger
// changes, so the artifact on disk always reflects the committed state.
type ExportWorker struct {
	exporter Exporter
}

func NewExportWorker(exporter Exporter) *ExportWorker {
	return &ExportWorker{exporter: exporter}
}

// HandleLedgerEvent processes a single ledger event message. A failed export
// returns the error so the delivery is requeued; unknown events are dropped.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	switch msg.Event {
	case amqp.EventTransactionRecorded, amqp.EventLedgerReset:
	default:
		slog.WarnContext(ctx, "Skipping unknown ledger event", "event", msg.Event)
		return nil
	}

	slog.InfoContext(ctx, "Processing ledger event",
		"event", msg.Event,
		"transaction_id", msg.TransactionID)

	path, err := w.exporter.Export(ctx)
	if err != nil {
		return fmt.Errorf("refresh export: %w", err)
	}

	slog.InfoContext(ctx, "Export refreshed", "event", msg.Event, "path", path)
	return nil
}
