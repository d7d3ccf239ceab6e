package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stepanyanprod-creator/finance-bot/internal/core"
	"github.com/stepanyanprod-creator/finance-bot/internal/log"
)

// CreateAccount registers a named money holder with a starting amount.
func (l *Ledger) CreateAccount(ctx context.Context, userID int64, name, currency string, amount decimal.Decimal) (core.Account, error) {
	unlock := l.lockUser(userID)
	defer unlock()

	name = strings.TrimSpace(name)
	if !core.ValidAccountName(name) {
		return core.Account{}, fmt.Errorf("account name %q: %w", name, core.ErrInvalidRecord)
	}
	currency = core.NormalizeCurrency(currency)
	if err := core.ValidateCurrency(currency); err != nil {
		return core.Account{}, err
	}

	acc := core.Account{Name: name, Currency: currency, Amount: amount}
	if err := l.store.CreateAccount(ctx, userID, acc); err != nil {
		return core.Account{}, err
	}

	l.logger.Info("account created",
		log.FieldUserID, userID,
		log.FieldAccount, name,
		log.FieldCurrency, currency,
		log.FieldAmount, amount.String())
	return acc, nil
}

// Account returns one account by name.
func (l *Ledger) Account(ctx context.Context, userID int64, name string) (core.Account, error) {
	acc, ok, err := l.store.Account(ctx, userID, strings.TrimSpace(name))
	if err != nil {
		return core.Account{}, err
	}
	if !ok {
		return core.Account{}, core.ErrNoSuchAccount
	}
	return acc, nil
}

// Accounts returns all accounts sorted by name.
func (l *Ledger) Accounts(ctx context.Context, userID int64) ([]core.Account, error) {
	m, err := l.store.Accounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]core.Account, 0, len(m))
	for _, acc := range m {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AccountsByCurrency returns the accounts held in one currency, sorted by name.
func (l *Ledger) AccountsByCurrency(ctx context.Context, userID int64, currency string) ([]core.Account, error) {
	currency = core.NormalizeCurrency(currency)
	all, err := l.Accounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, acc := range all {
		if acc.Currency == currency {
			out = append(out, acc)
		}
	}
	return out, nil
}

// SetAccountAmount overwrites an account's stored amount.
func (l *Ledger) SetAccountAmount(ctx context.Context, userID int64, name string, amount decimal.Decimal) error {
	unlock := l.lockUser(userID)
	defer unlock()
	return l.store.SetAccountAmount(ctx, userID, strings.TrimSpace(name), amount)
}

// SetAccountCurrency changes an account's currency code. The stored amount is
// kept as-is; no conversion happens.
func (l *Ledger) SetAccountCurrency(ctx context.Context, userID int64, name, currency string) error {
	unlock := l.lockUser(userID)
	defer unlock()

	currency = core.NormalizeCurrency(currency)
	if err := core.ValidateCurrency(currency); err != nil {
		return err
	}
	return l.store.SetAccountCurrency(ctx, userID, strings.TrimSpace(name), currency)
}

// DeleteAccount removes an account. Log rows referencing it stay untouched.
func (l *Ledger) DeleteAccount(ctx context.Context, userID int64, name string) error {
	unlock := l.lockUser(userID)
	defer unlock()

	if err := l.store.DeleteAccount(ctx, userID, strings.TrimSpace(name)); err != nil {
		return err
	}
	l.logger.Info("account deleted", log.FieldUserID, userID, log.FieldAccount, name)
	return nil
}

// TransferResult holds the two legs written for one transfer.
type TransferResult struct {
	Group string           `json:"group"`
	Out   core.Transaction `json:"-"`
	In    core.Transaction `json:"-"`
}

// Transfer moves money between two accounts by writing two log rows sharing
// a transfer group: a negative leg on the source account and a positive leg
// on the destination. For same-currency transfers amountTo defaults to
// amountFrom and must equal it when given; cross-currency transfers require
// an explicit amountTo. Legs never touch the income/expense aggregates.
func (l *Ledger) Transfer(ctx context.Context, userID int64, from, to string, amountFrom decimal.Decimal, amountTo *decimal.Decimal, date string) (TransferResult, error) {
	unlock := l.lockUser(userID)
	defer unlock()

	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == to {
		return TransferResult{}, core.ErrSameAccount
	}
	if !amountFrom.IsPositive() {
		return TransferResult{}, core.ErrInvalidAmount
	}

	src, ok, err := l.store.Account(ctx, userID, from)
	if err != nil {
		return TransferResult{}, err
	}
	if !ok {
		return TransferResult{}, fmt.Errorf("source %q: %w", from, core.ErrNoSuchAccount)
	}
	dst, ok, err := l.store.Account(ctx, userID, to)
	if err != nil {
		return TransferResult{}, err
	}
	if !ok {
		return TransferResult{}, fmt.Errorf("destination %q: %w", to, core.ErrNoSuchAccount)
	}

	if src.Amount.LessThan(amountFrom) {
		return TransferResult{}, core.ErrInsufficientFunds
	}

	var credited decimal.Decimal
	if src.Currency == dst.Currency {
		credited = amountFrom
		if amountTo != nil && !amountTo.Equal(amountFrom) {
			return TransferResult{}, fmt.Errorf("same-currency transfer amounts differ: %w", core.ErrInvalidAmount)
		}
	} else {
		if amountTo == nil {
			return TransferResult{}, fmt.Errorf("cross-currency transfer needs a destination amount: %w", core.ErrInvalidAmount)
		}
		if !amountTo.IsPositive() {
			return TransferResult{}, core.ErrInvalidAmount
		}
		credited = *amountTo
	}

	if date == "" {
		date = time.Now().Format(core.DateLayout)
	}
	group := uuid.NewString()

	out := core.Transaction{
		Date:          date,
		Merchant:      "Transfer to " + to,
		Total:         amountFrom.Neg(),
		Currency:      src.Currency,
		PaymentMethod: from,
		Source:        core.SourceTransfer,
		TransferGroup: group,
	}
	in := core.Transaction{
		Date:          date,
		Merchant:      "Transfer from " + from,
		Total:         credited,
		Currency:      dst.Currency,
		PaymentMethod: to,
		Source:        core.SourceTransfer,
		TransferGroup: group,
	}

	// The legs land in separate store transactions; a failure between them
	// leaves the out leg in the log, where UndoLast can remove it and
	// RebuildBalances recovers the aggregates.
	for _, leg := range []core.Transaction{out, in} {
		if _, err := l.store.AppendTransaction(ctx, userID, leg); err != nil {
			return TransferResult{}, fmt.Errorf("append transfer leg: %w", err)
		}
		leg := leg
		if err := l.applyDeltas(ctx, userID, nil, &leg); err != nil {
			return TransferResult{}, err
		}
	}

	l.logger.Info("transfer recorded",
		log.FieldUserID, userID,
		log.FieldFromAccount, from,
		log.FieldToAccount, to,
		log.FieldAmount, amountFrom.String(),
		log.FieldCurrency, src.Currency,
		log.FieldTransferGroup, group)
	l.publish(ctx, eventFor(EventTransfer, userID, 0, out))
	return TransferResult{Group: group, Out: out, In: in}, nil
}

// FormatAccount renders an account's amount with its currency symbol.
func FormatAccount(acc core.Account) string {
	return acc.Name + ": " + core.FormatAmount(acc.Amount, acc.Currency)
}
