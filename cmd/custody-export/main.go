// custody-export writes the transaction spreadsheet without starting the web
// server, for cron jobs and backups. It also audits stored balances against
// the transaction log and reports any drift.
package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"

	"custody/internal/config"
	appexport "custody/internal/export"
	"custody/internal/ledger"
	applog "custody/internal/log"
	"custody/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentExport)
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	engine := ledger.NewEngine(repo, nil)
	drifts, err := engine.Audit(ctx)
	if err != nil {
		logger.Error("Balance audit failed", applog.FieldError, err)
		os.Exit(1)
	}
	for _, d := range drifts {
		logger.Warn("Balance drift detected",
			applog.FieldAccountID, d.AccountID,
			"stored_cents", d.StoredCents,
			"recomputed_cents", d.RecomputedCents)
	}
	if len(drifts) > 0 {
		logger.Warn("Ledger is inconsistent", applog.FieldCount, len(drifts))
	}

	path, err := appexport.NewExporter(repo, cfg.ExportPath).Export(ctx)
	if err != nil {
		logger.Error("Export failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Export written", applog.FieldFilePath, path)
}
