package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"custody/internal/core"
)

type fakeLister struct {
	views []core.TransactionView
	err   error
}

func (f fakeLister) ListTransactions(ctx context.Context) ([]core.TransactionView, error) {
	return f.views, f.err
}

func sampleViews() []core.TransactionView {
	return []core.TransactionView{
		{
			ID:          1,
			Date:        core.NewDate(2025, 2, 14),
			Type:        core.Transfer,
			Description: "weekly float",
			Amount:      core.Money{Cents: 20000},
			FromAccount: "Safe",
			ToAccount:   "Bank",
			FilePath:    "uploads/receipt.pdf",
		},
		{
			ID:          2,
			Date:        core.NewDate(2025, 2, 15),
			Type:        core.Expense,
			Amount:      core.Money{Cents: 3050},
			FromAccount: "Bank",
		},
	}
}

func TestExportColumnsAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.xlsx")
	exporter := NewExporter(fakeLister{views: sampleViews()}, path)

	got, err := exporter.Export(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if got != path {
		t.Fatalf("path = %q, want %q", got, path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Transactions")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (header + 2)", len(rows))
	}

	wantHeader := []string{"Date", "Type", "Description", "Amount", "From Account", "To Account", "File Path"}
	for i, name := range wantHeader {
		if rows[0][i] != name {
			t.Fatalf("header %d = %q, want %q", i, rows[0][i], name)
		}
	}

	first := rows[1]
	if first[0] != "2025-02-14" || first[1] != "TRANSFER" || first[2] != "weekly float" {
		t.Fatalf("first row = %v", first)
	}
	if first[3] != "200" {
		t.Fatalf("amount cell = %q", first[3])
	}
	if first[4] != "Safe" || first[5] != "Bank" || first[6] != "uploads/receipt.pdf" {
		t.Fatalf("first row accounts/file = %v", first)
	}

	second := rows[2]
	if second[1] != "EXPENSE" || second[3] != "30.5" {
		t.Fatalf("second row = %v", second)
	}
}

func TestExportDeterministic(t *testing.T) {
	dir := t.TempDir()
	lister := fakeLister{views: sampleViews()}

	read := func(name string) []byte {
		t.Helper()
		path := filepath.Join(dir, name)
		if _, err := NewExporter(lister, path).Export(context.Background()); err != nil {
			t.Fatalf("export %s: %v", name, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return data
	}

	first := read("a.xlsx")
	second := read("b.xlsx")
	if !bytes.Equal(first, second) {
		t.Fatalf("successive exports of the same state differ (%d vs %d bytes)", len(first), len(second))
	}
}

func TestExportEmptyLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.xlsx")
	if _, err := NewExporter(fakeLister{}, path).Export(context.Background()); err != nil {
		t.Fatalf("export empty: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Transactions")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(rows))
	}
}

func TestExportListerError(t *testing.T) {
	wantErr := errors.New("db gone")
	path := filepath.Join(t.TempDir(), "transactions.xlsx")
	if _, err := NewExporter(fakeLister{err: wantErr}, path).Export(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected lister error, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("artifact written despite error")
	}
}
