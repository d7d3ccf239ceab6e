package backend

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stepanyanprod-creator/finance-bot/internal/core"
)

// Store is the persistence contract for one ledger partition per user:
// the append-only transaction log, the keyed balance aggregates, the named
// accounts and the ordered rule list. Implementations report missing rows
// and accounts with the core sentinel errors.
//
// The store never touches aggregates on its own: the log is the source of
// truth and the ledger service keeps the derived state consistent.
type Store interface {
	// Transaction log. Rows are addressed positionally; n is the 1-based
	// distance from the end (n=1 is the last row).
	AppendTransaction(ctx context.Context, userID int64, tx core.Transaction) (int, error)
	ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error)
	CountTransactions(ctx context.Context, userID int64) (int, error)
	TransactionFromEnd(ctx context.Context, userID int64, n int) (core.Transaction, error)
	ReplaceTransactionFromEnd(ctx context.Context, userID int64, n int, tx core.Transaction) error
	DeleteLastTransaction(ctx context.Context, userID int64) (core.Transaction, bool, error)

	// Balance aggregates, keyed "CUR" or "CATEGORY@CUR". AddToBalances
	// creates keys on first write.
	Balances(ctx context.Context, userID int64) (map[string]decimal.Decimal, error)
	SetBalances(ctx context.Context, userID int64, balances map[string]decimal.Decimal) error
	AddToBalances(ctx context.Context, userID int64, deltas []core.Delta) error

	// Accounts, keyed by name.
	Accounts(ctx context.Context, userID int64) (map[string]core.Account, error)
	Account(ctx context.Context, userID int64, name string) (core.Account, bool, error)
	CreateAccount(ctx context.Context, userID int64, acc core.Account) error
	SetAccountAmount(ctx context.Context, userID int64, name string, amount decimal.Decimal) error
	AddToAccount(ctx context.Context, userID int64, name string, delta decimal.Decimal) error
	SetAccountCurrency(ctx context.Context, userID int64, name, currency string) error
	DeleteAccount(ctx context.Context, userID int64, name string) error

	// Rules, stored as one ordered list per user.
	Rules(ctx context.Context, userID int64) ([]core.Rule, error)
	SaveRules(ctx context.Context, userID int64, list []core.Rule) error

	Close() error
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
