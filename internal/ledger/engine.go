// Package ledger holds the balance-mutation logic of the custody tracker.
// The engine is the only component that changes account balances; every
// change goes through ApplyTransaction and persists atomically with the
// transaction that caused it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"custody/internal/core"
)

type Engine struct {
	store  Store
	events EventPublisher
}

// NewEngine wires the engine to its store. events may be nil, in which case
// no notifications are published.
func NewEngine(store Store, events EventPublisher) *Engine {
	return &Engine{store: store, events: events}
}

// TransactionInput carries the caller-supplied fields of a new transaction.
// FilePath, when set, must already point at a stored attachment.
type TransactionInput struct {
	Date          core.Date
	Type          core.TransactionType
	Description   string
	Amount        core.Money
	FromAccountID *int64
	ToAccountID   *int64
	FilePath      string
}

// ApplyTransaction validates the input, computes the balance effect for the
// declared type and records both in one atomic unit. With neither account
// reference set the transaction is recorded with no balance effect.
func (e *Engine) ApplyTransaction(ctx context.Context, in TransactionInput) (int64, error) {
	t := core.Transaction{
		Date:          in.Date,
		Type:          in.Type,
		Description:   strings.TrimSpace(in.Description),
		Amount:        in.Amount,
		FromAccountID: in.FromAccountID,
		ToAccountID:   in.ToAccountID,
		FilePath:      in.FilePath,
	}
	if err := t.Validate(); err != nil {
		return 0, err
	}

	id, err := e.store.RecordTransaction(ctx, t, t.Deltas())
	if err != nil {
		return 0, fmt.Errorf("record transaction: %w", err)
	}

	if e.events != nil {
		if err := e.events.PublishTransactionRecorded(ctx, id, string(t.Type), t.Amount.Cents); err != nil {
			// The ledger write already committed; the event stream is advisory.
			slog.ErrorContext(ctx, "Failed to publish transaction event", "id", id, "error", err)
		}
	}

	return id, nil
}

// CreateAccount validates and creates a named account with its opening
// balance. Name collisions surface core.ErrDuplicateName.
func (e *Engine) CreateAccount(ctx context.Context, name string, initial core.Money) (core.Account, error) {
	name = strings.TrimSpace(name)
	if err := core.ValidateAccountName(name); err != nil {
		return core.Account{}, err
	}
	if initial.Cents < 0 {
		return core.Account{}, core.ErrInvalidAmount
	}
	account, err := e.store.CreateAccount(ctx, name, initial)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateName) {
			return core.Account{}, err
		}
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// ListAccounts returns all accounts in creation order.
func (e *Engine) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return e.store.ListAccounts(ctx)
}

// ListTransactions returns the joined transaction history for display and
// export.
func (e *Engine) ListTransactions(ctx context.Context) ([]core.TransactionView, error) {
	return e.store.ListTransactions(ctx)
}

// Reset clears all ledger state. Confirmation gating happens in the session
// layer; by the time this runs the destruction is decided.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	if e.events != nil {
		if err := e.events.PublishLedgerReset(ctx); err != nil {
			slog.ErrorContext(ctx, "Failed to publish reset event", "error", err)
		}
	}
	return nil
}

// Drift reports an account whose stored balance disagrees with the balance
// re-derived from its opening amount and the transaction log.
type Drift struct {
	AccountID       int64
	StoredCents     int64
	RecomputedCents int64
}

// Audit compares stored balances against an independent recomputation from
// the transaction log. An empty result means the ledger is internally
// consistent.
func (e *Engine) Audit(ctx context.Context) ([]Drift, error) {
	stored, err := e.store.StoredBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("read stored balances: %w", err)
	}
	recomputed, err := e.store.RecomputeBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("recompute balances: %w", err)
	}

	var drifts []Drift
	for id, cents := range stored {
		if rc := recomputed[id]; rc != cents {
			drifts = append(drifts, Drift{AccountID: id, StoredCents: cents, RecomputedCents: rc})
		}
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].AccountID < drifts[j].AccountID })
	return drifts, nil
}
