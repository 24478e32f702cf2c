package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"custody/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable store for accounts and transactions.
// Balance mutations only happen inside RecordTransaction, together with the
// transaction row they belong to.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Single connection: serializes writers and guarantees that reads issued
	// after a commit observe it.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateAccount inserts a new account. A name collision with an existing
// account returns core.ErrDuplicateName and leaves the table unchanged.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, name string, initial core.Money) (core.Account, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Account{}, fmt.Errorf("begin create account: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE name = ?)`, name,
	).Scan(&exists); err != nil {
		return core.Account{}, fmt.Errorf("check account name: %w", err)
	}
	if exists {
		return core.Account{}, core.ErrDuplicateName
	}

	// The opening balance is kept alongside the running one so balances can
	// always be re-derived from the transaction log.
	res, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (name, balance_cents, opening_cents) VALUES (?, ?, ?)`,
		name, initial.Cents, initial.Cents)
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Account{}, fmt.Errorf("commit create account: %w", err)
	}

	slog.InfoContext(ctx, "Account created", "id", id, "name", name, "balance_cents", initial.Cents)

	return core.Account{ID: id, Name: name, Balance: initial}, nil
}

// ListAccounts returns all accounts in insertion order.
func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, balance_cents FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Balance.Cents); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// RecordTransaction appends the transaction row and applies the given balance
// deltas in a single database transaction. A delta against a nonexistent
// account returns core.ErrAccountNotFound and nothing persists.
func (r *SQLiteRepository) RecordTransaction(ctx context.Context, t core.Transaction, deltas []core.Delta) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin record transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (date, type, description, amount_cents, from_account_id, to_account_id, file_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Date.String(), string(t.Type), t.Description, t.Amount.Cents,
		nullableID(t.FromAccountID), nullableID(t.ToAccountID), nullableText(t.FilePath))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction insert id: %w", err)
	}

	for _, d := range deltas {
		res, err := tx.ExecContext(ctx,
			`UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ?`,
			d.Cents, d.AccountID)
		if err != nil {
			return 0, fmt.Errorf("update balance: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("update balance rows: %w", err)
		}
		if affected == 0 {
			return 0, fmt.Errorf("update balance for account %d: %w", d.AccountID, core.ErrAccountNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit record transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"id", id,
		"type", string(t.Type),
		"amount_cents", t.Amount.Cents,
		"deltas", len(deltas))

	return id, nil
}

// ListTransactions returns all transactions with account references resolved
// to names, in insertion order. Missing references resolve to empty names.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.TransactionView, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.date, t.type, COALESCE(t.description, ''), t.amount_cents,
		        COALESCE(a1.name, ''), COALESCE(a2.name, ''), COALESCE(t.file_path, '')
		 FROM transactions t
		 LEFT JOIN accounts a1 ON t.from_account_id = a1.id
		 LEFT JOIN accounts a2 ON t.to_account_id = a2.id
		 ORDER BY t.id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var views []core.TransactionView
	for rows.Next() {
		var (
			v       core.TransactionView
			rawDate string
			rawType string
		)
		if err := rows.Scan(&v.ID, &rawDate, &rawType, &v.Description, &v.Amount.Cents,
			&v.FromAccount, &v.ToAccount, &v.FilePath); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		d, err := core.ParseDate(rawDate)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", rawDate, err)
		}
		v.Date = d
		v.Type = core.TransactionType(rawType)
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return views, nil
}

// ClearAll deletes every account and transaction and resets the autoincrement
// counters so identifiers start again from 1.
func (r *SQLiteRepository) ClearAll(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear all: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("delete accounts: %w", err)
	}
	// sqlite_sequence only exists after the first AUTOINCREMENT insert.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sqlite_sequence WHERE name IN ('accounts', 'transactions')`); err != nil &&
		!strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("reset sequences: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear all: %w", err)
	}

	slog.InfoContext(ctx, "Ledger cleared")
	return nil
}

// RecomputeBalances re-derives every account balance from its opening amount
// plus the signed deltas in the transaction log, without reading the stored
// running balances. Used by the audit operation.
func (r *SQLiteRepository) RecomputeBalances(ctx context.Context) (map[int64]int64, error) {
	balances := make(map[int64]int64)

	rows, err := r.db.QueryContext(ctx, `SELECT id, opening_cents FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("query account openings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, opening int64
		if err := rows.Scan(&id, &opening); err != nil {
			return nil, fmt.Errorf("scan account opening: %w", err)
		}
		balances[id] = opening
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account ids: %w", err)
	}

	txRows, err := r.db.QueryContext(ctx,
		`SELECT amount_cents, from_account_id, to_account_id FROM transactions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query transaction log: %w", err)
	}
	defer txRows.Close()
	for txRows.Next() {
		var (
			cents    int64
			from, to sql.NullInt64
		)
		if err := txRows.Scan(&cents, &from, &to); err != nil {
			return nil, fmt.Errorf("scan transaction log: %w", err)
		}
		if to.Valid {
			balances[to.Int64] += cents
		}
		if from.Valid {
			balances[from.Int64] -= cents
		}
	}
	if err := txRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction log: %w", err)
	}

	return balances, nil
}

// StoredBalances returns the balances as currently persisted, keyed by
// account id.
func (r *SQLiteRepository) StoredBalances(ctx context.Context) (map[int64]int64, error) {
	accounts, err := r.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	balances := make(map[int64]int64, len(accounts))
	for _, a := range accounts {
		balances[a.ID] = a.Balance.Cents
	}
	return balances, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func nullableText(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
