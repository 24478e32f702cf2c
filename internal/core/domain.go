package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Deposit  TransactionType = "DEPOSIT"
	Expense  TransactionType = "EXPENSE"
	Transfer TransactionType = "TRANSFER"
)

type (
	// TransactionType is the closed set of ledger movement kinds.
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Account is a named balance-holding entity (a safe, a bank account).
	Account struct {
		ID      int64
		Name    string
		Balance Money
	}

	// Transaction is a typed ledger event. FromAccountID and ToAccountID are
	// optional references; the semantic sign of Amount is implied by Type.
	Transaction struct {
		ID            int64
		Date          Date
		Type          TransactionType
		Description   string
		Amount        Money
		FromAccountID *int64
		ToAccountID   *int64
		FilePath      string
	}

	// TransactionView is a transaction with account references resolved to
	// names for display and export. Empty names mean no reference.
	TransactionView struct {
		ID          int64
		Date        Date
		Type        TransactionType
		Description string
		Amount      Money
		FromAccount string
		ToAccount   string
		FilePath    string
	}

	// Delta is a signed balance change against a single account.
	Delta struct {
		AccountID int64
		Cents     int64
	}
)

var (
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrEmptyName       = errors.New("empty account name")
	ErrDuplicateName   = errors.New("account name already exists")
	ErrAccountNotFound = errors.New("account not found")
)

// ParseTransactionType validates a raw type value against the closed set.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (t TransactionType) Valid() bool {
	switch t {
	case Deposit, Expense, Transfer:
		return true
	}
	return false
}

// NewDate creates a Date from year, month, day. Time-of-day is always zero.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String renders the date in the YYYY-MM-DD form it is stored in.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

// Deltas computes the balance effect of the transaction: credit the to side,
// debit the from side, each only when present. The rule is identical for all
// three types, matching the system this ledger replaces; EXPENSE with a to
// account therefore credits it. Flagged with stakeholders, kept as-is.
func (t Transaction) Deltas() []Delta {
	var ds []Delta
	if t.ToAccountID != nil {
		ds = append(ds, Delta{AccountID: *t.ToAccountID, Cents: t.Amount.Cents})
	}
	if t.FromAccountID != nil {
		ds = append(ds, Delta{AccountID: *t.FromAccountID, Cents: -t.Amount.Cents})
	}
	return ds
}

// ValidateAccountName checks a trimmed account name for creation.
func ValidateAccountName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > 100 {
		return errors.New("account name too long (max 100 characters)")
	}
	return nil
}
