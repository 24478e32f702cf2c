package ledger

import (
	"context"

	"custody/internal/core"
)

// Ports for outbound adapters.
type (
	// Store is the persistence surface the engine drives. RecordTransaction
	// must apply the row insert and every delta as one all-or-nothing unit.
	Store interface {
		CreateAccount(ctx context.Context, name string, initial core.Money) (core.Account, error)
		ListAccounts(ctx context.Context) ([]core.Account, error)
		RecordTransaction(ctx context.Context, t core.Transaction, deltas []core.Delta) (int64, error)
		ListTransactions(ctx context.Context) ([]core.TransactionView, error)
		ClearAll(ctx context.Context) error
		RecomputeBalances(ctx context.Context) (map[int64]int64, error)
		StoredBalances(ctx context.Context) (map[int64]int64, error)
	}

	// EventPublisher receives advisory notifications after ledger mutations.
	// Publish failures never fail the mutation.
	EventPublisher interface {
		PublishTransactionRecorded(ctx context.Context, id int64, txType string, amountCents int64) error
		PublishLedgerReset(ctx context.Context) error
	}
)
