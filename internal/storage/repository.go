// Package storage persists per-user ledger state in SQLite. Each mutation
// runs in its own transaction; the ledger service serializes mutations per
// user on top of this, so read-modify-write sequences never interleave.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/stepanyanprod-creator/finance-bot/internal/core"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func parseStoredAmount(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		// Corrupt cell: fall back to zero rather than failing the read.
		return decimal.Zero
	}
	return d
}

const txColumns = "date, merchant, total, currency, category, payment_method, source, notes, transfer_group"

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var tx core.Transaction
	var total string
	err := row.Scan(&tx.Date, &tx.Merchant, &total, &tx.Currency, &tx.Category,
		&tx.PaymentMethod, &tx.Source, &tx.Notes, &tx.TransferGroup)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Total = parseStoredAmount(total)
	return tx, nil
}

func (s *SQLiteStore) AppendTransaction(ctx context.Context, userID int64, tx core.Transaction) (int, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer dbtx.Rollback()

	var seq int
	err = dbtx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM transactions WHERE user_id = ?`, userID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}

	_, err = dbtx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, seq, `+txColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, seq, tx.Date, tx.Merchant, tx.Total.String(), tx.Currency,
		tx.Category, tx.PaymentMethod, tx.Source, tx.Notes, tx.TransferGroup)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	if err := dbtx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return seq, nil
}

func (s *SQLiteStore) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountTransactions(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// seqFromEnd resolves the 1-based from-end index to a seq value.
func (s *SQLiteStore) seqFromEnd(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, userID int64, n int) (int, error) {
	if n <= 0 {
		return 0, core.ErrNoSuchRecord
	}
	var seq int
	err := q.QueryRowContext(ctx,
		`SELECT seq FROM transactions WHERE user_id = ? ORDER BY seq DESC LIMIT 1 OFFSET ?`,
		userID, n-1).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrNoSuchRecord
	}
	if err != nil {
		return 0, fmt.Errorf("resolve seq: %w", err)
	}
	return seq, nil
}

func (s *SQLiteStore) TransactionFromEnd(ctx context.Context, userID int64, n int) (core.Transaction, error) {
	seq, err := s.seqFromEnd(ctx, s.db, userID, n)
	if err != nil {
		return core.Transaction{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? AND seq = ?`, userID, seq)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNoSuchRecord
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("read transaction: %w", err)
	}
	return tx, nil
}

func (s *SQLiteStore) ReplaceTransactionFromEnd(ctx context.Context, userID int64, n int, tx core.Transaction) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer dbtx.Rollback()

	seq, err := s.seqFromEnd(ctx, dbtx, userID, n)
	if err != nil {
		return err
	}

	_, err = dbtx.ExecContext(ctx,
		`UPDATE transactions
		 SET date = ?, merchant = ?, total = ?, currency = ?, category = ?,
		     payment_method = ?, source = ?, notes = ?, transfer_group = ?
		 WHERE user_id = ? AND seq = ?`,
		tx.Date, tx.Merchant, tx.Total.String(), tx.Currency, tx.Category,
		tx.PaymentMethod, tx.Source, tx.Notes, tx.TransferGroup, userID, seq)
	if err != nil {
		return fmt.Errorf("replace transaction: %w", err)
	}

	return dbtx.Commit()
}

func (s *SQLiteStore) DeleteLastTransaction(ctx context.Context, userID int64) (core.Transaction, bool, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("begin delete: %w", err)
	}
	defer dbtx.Rollback()

	seq, err := s.seqFromEnd(ctx, dbtx, userID, 1)
	if errors.Is(err, core.ErrNoSuchRecord) {
		return core.Transaction{}, false, nil
	}
	if err != nil {
		return core.Transaction{}, false, err
	}

	row := dbtx.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? AND seq = ?`, userID, seq)
	tx, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("read last transaction: %w", err)
	}

	_, err = dbtx.ExecContext(ctx,
		`DELETE FROM transactions WHERE user_id = ? AND seq = ?`, userID, seq)
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("delete transaction: %w", err)
	}

	if err := dbtx.Commit(); err != nil {
		return core.Transaction{}, false, err
	}
	return tx, true, nil
}

func (s *SQLiteStore) Balances(ctx context.Context, userID int64) (map[string]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, amount FROM balances WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("read balances: %w", err)
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var key, amount string
		if err := rows.Scan(&key, &amount); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out[key] = parseStoredAmount(amount)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetBalances(ctx context.Context, userID int64, balances map[string]decimal.Decimal) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set balances: %w", err)
	}
	defer dbtx.Rollback()

	if _, err := dbtx.ExecContext(ctx, `DELETE FROM balances WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear balances: %w", err)
	}
	for key, amount := range balances {
		_, err := dbtx.ExecContext(ctx,
			`INSERT INTO balances (user_id, key, amount) VALUES (?, ?, ?)`,
			userID, key, amount.String())
		if err != nil {
			return fmt.Errorf("write balance %s: %w", key, err)
		}
	}
	return dbtx.Commit()
}

func (s *SQLiteStore) AddToBalances(ctx context.Context, userID int64, deltas []core.Delta) error {
	if len(deltas) == 0 {
		return nil
	}
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add balances: %w", err)
	}
	defer dbtx.Rollback()

	for _, d := range deltas {
		var raw string
		current := decimal.Zero
		err := dbtx.QueryRowContext(ctx,
			`SELECT amount FROM balances WHERE user_id = ? AND key = ?`,
			userID, d.Key).Scan(&raw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// key created on first write
		case err != nil:
			return fmt.Errorf("read balance %s: %w", d.Key, err)
		default:
			current = parseStoredAmount(raw)
		}

		next := current.Add(d.Amount)
		_, err = dbtx.ExecContext(ctx,
			`INSERT INTO balances (user_id, key, amount) VALUES (?, ?, ?)
			 ON CONFLICT (user_id, key) DO UPDATE SET amount = excluded.amount`,
			userID, d.Key, next.String())
		if err != nil {
			return fmt.Errorf("write balance %s: %w", d.Key, err)
		}
	}
	return dbtx.Commit()
}

func (s *SQLiteStore) Accounts(ctx context.Context, userID int64) (map[string]core.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, currency, amount FROM accounts WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("read accounts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]core.Account)
	for rows.Next() {
		var acc core.Account
		var amount string
		if err := rows.Scan(&acc.Name, &acc.Currency, &amount); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		acc.Amount = parseStoredAmount(amount)
		out[acc.Name] = acc
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Account(ctx context.Context, userID int64, name string) (core.Account, bool, error) {
	var acc core.Account
	var amount string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, currency, amount FROM accounts WHERE user_id = ? AND name = ?`,
		userID, name).Scan(&acc.Name, &acc.Currency, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, false, nil
	}
	if err != nil {
		return core.Account{}, false, fmt.Errorf("read account: %w", err)
	}
	acc.Amount = parseStoredAmount(amount)
	return acc, true, nil
}

func (s *SQLiteStore) CreateAccount(ctx context.Context, userID int64, acc core.Account) error {
	_, exists, err := s.Account(ctx, userID, acc.Name)
	if err != nil {
		return err
	}
	if exists {
		return core.ErrDuplicateAccount
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, currency, amount) VALUES (?, ?, ?, ?)`,
		userID, acc.Name, acc.Currency, acc.Amount.String())
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *SQLiteStore) updateAccount(ctx context.Context, userID int64, name, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update account %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNoSuchAccount
	}
	return nil
}

func (s *SQLiteStore) SetAccountAmount(ctx context.Context, userID int64, name string, amount decimal.Decimal) error {
	return s.updateAccount(ctx, userID, name,
		`UPDATE accounts SET amount = ? WHERE user_id = ? AND name = ?`,
		amount.String(), userID, name)
}

func (s *SQLiteStore) AddToAccount(ctx context.Context, userID int64, name string, delta decimal.Decimal) error {
	acc, exists, err := s.Account(ctx, userID, name)
	if err != nil {
		return err
	}
	if !exists {
		return core.ErrNoSuchAccount
	}
	return s.SetAccountAmount(ctx, userID, name, acc.Amount.Add(delta))
}

func (s *SQLiteStore) SetAccountCurrency(ctx context.Context, userID int64, name, currency string) error {
	return s.updateAccount(ctx, userID, name,
		`UPDATE accounts SET currency = ? WHERE user_id = ? AND name = ?`,
		currency, userID, name)
}

func (s *SQLiteStore) DeleteAccount(ctx context.Context, userID int64, name string) error {
	return s.updateAccount(ctx, userID, name,
		`DELETE FROM accounts WHERE user_id = ? AND name = ?`,
		userID, name)
}

func (s *SQLiteStore) Rules(ctx context.Context, userID int64) ([]core.Rule, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM rules WHERE user_id = ?`, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	var list []core.Rule
	if err := json.Unmarshal([]byte(doc), &list); err != nil {
		// Corrupt document: start from an empty rule list.
		return nil, nil
	}
	return list, nil
}

func (s *SQLiteStore) SaveRules(ctx context.Context, userID int64, list []core.Rule) error {
	if list == nil {
		list = []core.Rule{}
	}
	doc, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rules (user_id, doc) VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET doc = excluded.doc`,
		userID, string(doc))
	if err != nil {
		return fmt.Errorf("save rules: %w", err)
	}
	return nil
}
