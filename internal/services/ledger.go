// Package services implements the ledger engine: the append-only transaction
// log, the balance aggregates derived from it, named accounts, transfers and
// categorization rules. All mutations go through Ledger, which serializes
// writes per user and keeps aggregates consistent with the log by reversing
// the superseded row and applying its replacement.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stepanyanprod-creator/finance-bot/internal/backend"
	"github.com/stepanyanprod-creator/finance-bot/internal/core"
	"github.com/stepanyanprod-creator/finance-bot/internal/log"
	"github.com/stepanyanprod-creator/finance-bot/internal/rules"
)

// Ledger is the write path of the finance log. Reads go straight to the
// store; writes take the per-user lock so the log mutation and the aggregate
// update land together.
type Ledger struct {
	store     backend.Store
	logger    *log.Logger
	publisher Publisher

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
}

// NewLedger creates the ledger service. publisher may be nil, in which case
// no events are emitted.
func NewLedger(store backend.Store, logger *log.Logger, publisher Publisher) *Ledger {
	return &Ledger{
		store:     store,
		logger:    logger.WithComponent(log.ComponentLedger),
		publisher: publisher,
		userLocks: make(map[int64]*sync.Mutex),
	}
}

// lockUser serializes mutations for one user. Returns the unlock func.
func (l *Ledger) lockUser(userID int64) func() {
	l.mu.Lock()
	m, ok := l.userLocks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.userLocks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (l *Ledger) publish(ctx context.Context, ev Event) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, ev); err != nil {
		l.logger.Warn("publish ledger event failed",
			log.FieldError, err.Error(),
			log.FieldUserID, ev.UserID,
			log.FieldOperation, ev.Kind)
	}
}

func eventFor(kind string, userID int64, seq int, t core.Transaction) Event {
	return Event{
		Kind:          kind,
		UserID:        userID,
		Seq:           seq,
		Date:          t.Date,
		Merchant:      t.Merchant,
		Total:         t.Total.String(),
		Currency:      t.Currency,
		Category:      t.Category,
		Account:       t.PaymentMethod,
		Source:        t.Source,
		TransferGroup: t.TransferGroup,
	}
}

// applyDeltas brings the aggregates in line with one log mutation: reverse
// the superseded row, apply its replacement. Account deltas that reference a
// missing account are skipped with a warning; the log stays the source of
// truth and RebuildBalances can recover the aggregates later.
func (l *Ledger) applyDeltas(ctx context.Context, userID int64, old, updated *core.Transaction) error {
	if deltas := core.RebalanceBalances(old, updated); len(deltas) > 0 {
		if err := l.store.AddToBalances(ctx, userID, deltas); err != nil {
			return fmt.Errorf("update balances: %w", err)
		}
	}
	for _, d := range core.RebalanceAccounts(old, updated) {
		_, exists, err := l.store.Account(ctx, userID, d.Key)
		if err != nil {
			return fmt.Errorf("look up account %q: %w", d.Key, err)
		}
		if !exists {
			l.logger.Warn("skipping delta for unknown account",
				log.FieldUserID, userID,
				log.FieldAccount, d.Key)
			continue
		}
		if err := l.store.AddToAccount(ctx, userID, d.Key, d.Amount); err != nil {
			return fmt.Errorf("update account %q: %w", d.Key, err)
		}
	}
	return nil
}

// Append normalizes a candidate, resolves its category and appends it to the
// log, updating the aggregates. Returns the stored row and its sequence
// number. A candidate category outside the taxonomy is dropped, not rejected;
// categorization is best-effort, the row itself always lands.
func (l *Ledger) Append(ctx context.Context, userID int64, c core.Candidate, source string) (core.Transaction, int, error) {
	unlock := l.lockUser(userID)
	defer unlock()

	if source == "" {
		source = core.SourceManual
	}
	if c.Date == "" {
		c.Date = time.Now().Format(core.DateLayout)
	}
	c.Currency = core.NormalizeCurrency(c.Currency)

	category, err := l.resolveCategory(ctx, userID, c)
	if err != nil {
		return core.Transaction{}, 0, err
	}

	t := core.Transaction{
		Date:          c.Date,
		Merchant:      strings.TrimSpace(c.Merchant),
		Total:         c.Total,
		Currency:      c.Currency,
		Category:      category,
		PaymentMethod: strings.TrimSpace(c.PaymentMethod),
		Source:        source,
		Notes:         strings.TrimSpace(c.Notes),
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, 0, fmt.Errorf("validate transaction: %w", err)
	}

	seq, err := l.store.AppendTransaction(ctx, userID, t)
	if err != nil {
		return core.Transaction{}, 0, fmt.Errorf("append transaction: %w", err)
	}
	if err := l.applyDeltas(ctx, userID, nil, &t); err != nil {
		return core.Transaction{}, 0, err
	}

	l.logger.Info("transaction appended",
		log.FieldUserID, userID,
		log.FieldSeq, seq,
		log.FieldMerchant, t.Merchant,
		log.FieldAmount, t.Total.String(),
		log.FieldCurrency, t.Currency,
		log.FieldCategory, t.Category,
		log.FieldSource, t.Source)
	l.publish(ctx, eventFor(EventAppended, userID, seq, t))
	return t, seq, nil
}

// resolveCategory picks the row category: an explicit candidate category is
// validated against the taxonomy for the total's sign, otherwise the user's
// rules are consulted, then the keyword fallback. An explicit category that
// fails validation is dropped with a warning.
func (l *Ledger) resolveCategory(ctx context.Context, userID int64, c core.Candidate) (string, error) {
	if c.Category != "" {
		if name, ok := core.NormalizeCategoryForTotal(c.Category, c.Total); ok {
			return name, nil
		}
		l.logger.Warn("dropping category outside taxonomy",
			log.FieldUserID, userID,
			log.FieldCategory, c.Category,
			log.FieldAmount, c.Total.String())
	}
	list, err := l.store.Rules(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load rules: %w", err)
	}
	if name, ok := rules.Resolve(c, list); ok {
		return name, nil
	}
	if name, ok := core.SuggestCategory(c); ok {
		return name, nil
	}
	return "", nil
}

// Transactions returns the full log for a user, oldest first.
func (l *Ledger) Transactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	return l.store.ListTransactions(ctx, userID)
}

// Recent returns the last n rows, oldest first. n larger than the log
// returns the whole log.
func (l *Ledger) Recent(ctx context.Context, userID int64, n int) ([]core.Transaction, error) {
	all, err := l.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if n <= 0 || n >= len(all) {
		return all, nil
	}
	return all[len(all)-n:], nil
}

// TransactionFromEnd returns the n-th row counting from the end, 1-based.
func (l *Ledger) TransactionFromEnd(ctx context.Context, userID int64, n int) (core.Transaction, error) {
	return l.store.TransactionFromEnd(ctx, userID, n)
}

// UndoLast removes the newest row and reverses its aggregate contribution.
// Returns the removed row; ok is false when the log is empty. Undoing one
// leg of a transfer reverses only that leg.
func (l *Ledger) UndoLast(ctx context.Context, userID int64) (core.Transaction, bool, error) {
	unlock := l.lockUser(userID)
	defer unlock()

	removed, ok, err := l.store.DeleteLastTransaction(ctx, userID)
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("delete last transaction: %w", err)
	}
	if !ok {
		return core.Transaction{}, false, nil
	}
	if err := l.applyDeltas(ctx, userID, &removed, nil); err != nil {
		return core.Transaction{}, false, err
	}

	l.logger.Info("transaction undone",
		log.FieldUserID, userID,
		log.FieldMerchant, removed.Merchant,
		log.FieldAmount, removed.Total.String())
	l.publish(ctx, eventFor(EventUndone, userID, 0, removed))
	return removed, true, nil
}

// EditFromEnd applies a partial update to the n-th row from the end, 1-based,
// and rebalances the aggregates. Unlike Append, an explicit category that
// fails taxonomy validation is rejected, since the caller named it on purpose.
func (l *Ledger) EditFromEnd(ctx context.Context, userID int64, n int, ch core.FieldChanges) (core.Transaction, error) {
	unlock := l.lockUser(userID)
	defer unlock()

	old, err := l.store.TransactionFromEnd(ctx, userID, n)
	if err != nil {
		return core.Transaction{}, err
	}

	updated, err := applyChanges(old, ch)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := updated.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate edited transaction: %w", err)
	}

	if err := l.store.ReplaceTransactionFromEnd(ctx, userID, n, updated); err != nil {
		return core.Transaction{}, fmt.Errorf("replace transaction: %w", err)
	}
	if err := l.applyDeltas(ctx, userID, &old, &updated); err != nil {
		return core.Transaction{}, err
	}

	l.logger.Info("transaction edited",
		log.FieldUserID, userID,
		log.FieldMerchant, updated.Merchant,
		log.FieldAmount, updated.Total.String(),
		log.FieldCurrency, updated.Currency)
	l.publish(ctx, eventFor(EventEdited, userID, 0, updated))
	return updated, nil
}

// EditLast edits the newest row.
func (l *Ledger) EditLast(ctx context.Context, userID int64, ch core.FieldChanges) (core.Transaction, error) {
	return l.EditFromEnd(ctx, userID, 1, ch)
}

func applyChanges(t core.Transaction, ch core.FieldChanges) (core.Transaction, error) {
	if ch.Date != nil {
		t.Date = strings.TrimSpace(*ch.Date)
	}
	if ch.Merchant != nil {
		t.Merchant = strings.TrimSpace(*ch.Merchant)
	}
	if ch.Total != nil {
		total, err := core.ParseAmount(*ch.Total)
		if err != nil {
			return core.Transaction{}, err
		}
		t.Total = total
	}
	if ch.Currency != nil {
		t.Currency = core.NormalizeCurrency(*ch.Currency)
	}
	if ch.Category != nil {
		raw := strings.TrimSpace(*ch.Category)
		if raw == "" {
			t.Category = ""
		} else {
			name, ok := core.NormalizeCategoryForTotal(raw, t.Total)
			if !ok {
				return core.Transaction{}, core.ErrInvalidCategory
			}
			t.Category = name
		}
	} else if t.Category != "" {
		// A total edit can flip the sign. The carried-over category must
		// belong to the taxonomy for the new sign; it was not named in this
		// edit, so it drops instead of failing the edit.
		if name, ok := core.NormalizeCategoryForTotal(t.Category, t.Total); ok {
			t.Category = name
		} else {
			t.Category = ""
		}
	}
	if ch.PaymentMethod != nil {
		t.PaymentMethod = strings.TrimSpace(*ch.PaymentMethod)
	}
	if ch.Notes != nil {
		t.Notes = strings.TrimSpace(*ch.Notes)
	}
	return t, nil
}

// Balances returns the stored aggregates for a user.
func (l *Ledger) Balances(ctx context.Context, userID int64) (map[string]decimal.Decimal, error) {
	return l.store.Balances(ctx, userID)
}

// SetBalances overwrites the aggregates wholesale.
func (l *Ledger) SetBalances(ctx context.Context, userID int64, balances map[string]decimal.Decimal) error {
	unlock := l.lockUser(userID)
	defer unlock()
	return l.store.SetBalances(ctx, userID, balances)
}

// RebuildBalances recomputes the aggregates from the full log and stores the
// result, discarding whatever was there. Recovery path for aggregate drift.
func (l *Ledger) RebuildBalances(ctx context.Context, userID int64) (map[string]decimal.Decimal, error) {
	unlock := l.lockUser(userID)
	defer unlock()

	all, err := l.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	balances := make(map[string]decimal.Decimal)
	for i := range all {
		for _, d := range core.RebalanceBalances(nil, &all[i]) {
			balances[d.Key] = balances[d.Key].Add(d.Amount)
		}
	}
	if err := l.store.SetBalances(ctx, userID, balances); err != nil {
		return nil, fmt.Errorf("store rebuilt balances: %w", err)
	}

	l.logger.Info("balances rebuilt",
		log.FieldUserID, userID,
		"keys", len(balances),
		"rows", len(all))
	return balances, nil
}

// Overview summarizes one calendar month: income and expense magnitudes per
// currency, signed totals per category key. Transfer legs are excluded.
type Overview struct {
	Year       int                        `json:"year"`
	Month      time.Month                 `json:"month"`
	Income     map[string]decimal.Decimal `json:"income"`
	Expense    map[string]decimal.Decimal `json:"expense"`
	Net        map[string]decimal.Decimal `json:"net"`
	ByCategory map[string]decimal.Decimal `json:"by_category"`
	Rows       int                        `json:"rows"`
}

// MonthOverview aggregates the log for the given month.
func (l *Ledger) MonthOverview(ctx context.Context, userID int64, year int, month time.Month) (Overview, error) {
	all, err := l.store.ListTransactions(ctx, userID)
	if err != nil {
		return Overview{}, fmt.Errorf("list transactions: %w", err)
	}

	ov := Overview{
		Year:       year,
		Month:      month,
		Income:     make(map[string]decimal.Decimal),
		Expense:    make(map[string]decimal.Decimal),
		Net:        make(map[string]decimal.Decimal),
		ByCategory: make(map[string]decimal.Decimal),
	}
	for _, t := range all {
		if t.IsTransfer() {
			continue
		}
		day, err := time.Parse(core.DateLayout, t.Date)
		if err != nil || day.Year() != year || day.Month() != month {
			continue
		}
		ov.Rows++
		cur := t.Currency
		ov.Net[cur] = ov.Net[cur].Add(t.Total)
		if t.Total.IsNegative() {
			ov.Expense[cur] = ov.Expense[cur].Add(t.Total.Abs())
		} else if t.Total.IsPositive() {
			ov.Income[cur] = ov.Income[cur].Add(t.Total)
		}
		if t.Category != "" {
			key := core.BalanceKey(t.Category, cur)
			ov.ByCategory[key] = ov.ByCategory[key].Add(t.Total)
		}
	}
	return ov, nil
}
