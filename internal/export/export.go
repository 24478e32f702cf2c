// Package export renders the transaction history to a downloadable
// spreadsheet.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"custody/internal/core"
)

// TransactionLister is the read surface the exporter consumes.
type TransactionLister interface {
	ListTransactions(ctx context.Context) ([]core.TransactionView, error)
}

const sheetName = "Transactions"

// Column order is fixed; consumers of the artifact rely on it.
var columns = []string{"Date", "Type", "Description", "Amount", "From Account", "To Account", "File Path"}

// Document properties are pinned so the same ledger state always yields
// byte-identical workbook content.
var fixedDocProps = excelize.DocProperties{
	Creator:        "custody",
	Created:        "2006-01-02T15:04:05Z",
	Modified:       "2006-01-02T15:04:05Z",
	LastModifiedBy: "custody",
}

// Exporter writes the joined transaction view to an .xlsx workbook at a
// well-known path.
type Exporter struct {
	lister TransactionLister
	path   string
}

func NewExporter(lister TransactionLister, path string) *Exporter {
	return &Exporter{lister: lister, path: path}
}

// Path returns the location the workbook is written to.
func (e *Exporter) Path() string {
	return e.path
}

// Export writes one row per transaction in store-join order and returns the
// artifact path.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	views, err := e.lister.ListTransactions(ctx)
	if err != nil {
		return "", fmt.Errorf("list transactions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetDocProps(&fixedDocProps); err != nil {
		return "", fmt.Errorf("set workbook properties: %w", err)
	}

	for col, name := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
	}

	for i, v := range views {
		values := []any{
			v.Date.String(),
			string(v.Type),
			v.Description,
			v.Amount.Float64(),
			v.FromAccount,
			v.ToAccount,
			v.FilePath,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return "", fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return "", fmt.Errorf("write row %d: %w", i+1, err)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(e.path), 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	if err := f.SaveAs(e.path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	slog.InfoContext(ctx, "Transactions exported", "path", e.path, "rows", len(views))

	return e.path, nil
}
