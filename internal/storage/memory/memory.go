// Package memory is an in-process Store used by tests and by the memory
// backend. Semantics mirror the SQLite store exactly, including the sentinel
// errors for missing rows and accounts.
package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/stepanyanprod-creator/finance-bot/internal/core"
)

type userState struct {
	log      []core.Transaction
	balances map[string]decimal.Decimal
	accounts map[string]core.Account
	rules    []core.Rule
}

type Store struct {
	mu    sync.Mutex
	users map[int64]*userState
}

func New() *Store {
	return &Store{users: make(map[int64]*userState)}
}

func (s *Store) user(userID int64) *userState {
	u, ok := s.users[userID]
	if !ok {
		u = &userState{
			balances: make(map[string]decimal.Decimal),
			accounts: make(map[string]core.Account),
		}
		s.users[userID] = u
	}
	return u
}

func (s *Store) AppendTransaction(_ context.Context, userID int64, tx core.Transaction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	u.log = append(u.log, tx)
	return len(u.log), nil
}

func (s *Store) ListTransactions(_ context.Context, userID int64) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	out := make([]core.Transaction, len(u.log))
	copy(out, u.log)
	return out, nil
}

func (s *Store) CountTransactions(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.user(userID).log), nil
}

func (s *Store) TransactionFromEnd(_ context.Context, userID int64, n int) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	if n <= 0 || n > len(u.log) {
		return core.Transaction{}, core.ErrNoSuchRecord
	}
	return u.log[len(u.log)-n], nil
}

func (s *Store) ReplaceTransactionFromEnd(_ context.Context, userID int64, n int, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	if n <= 0 || n > len(u.log) {
		return core.ErrNoSuchRecord
	}
	u.log[len(u.log)-n] = tx
	return nil
}

func (s *Store) DeleteLastTransaction(_ context.Context, userID int64) (core.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	if len(u.log) == 0 {
		return core.Transaction{}, false, nil
	}
	last := u.log[len(u.log)-1]
	u.log = u.log[:len(u.log)-1]
	return last, true, nil
}

func (s *Store) Balances(_ context.Context, userID int64) (map[string]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	out := make(map[string]decimal.Decimal, len(u.balances))
	for k, v := range u.balances {
		out[k] = v
	}
	return out, nil
}

func (s *Store) SetBalances(_ context.Context, userID int64, balances map[string]decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	u.balances = make(map[string]decimal.Decimal, len(balances))
	for k, v := range balances {
		u.balances[k] = v
	}
	return nil
}

func (s *Store) AddToBalances(_ context.Context, userID int64, deltas []core.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	for _, d := range deltas {
		current, ok := u.balances[d.Key]
		if !ok {
			current = decimal.Zero
		}
		u.balances[d.Key] = current.Add(d.Amount)
	}
	return nil
}

func (s *Store) Accounts(_ context.Context, userID int64) (map[string]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	out := make(map[string]core.Account, len(u.accounts))
	for k, v := range u.accounts {
		out[k] = v
	}
	return out, nil
}

func (s *Store) Account(_ context.Context, userID int64, name string) (core.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.user(userID).accounts[name]
	return acc, ok, nil
}

func (s *Store) CreateAccount(_ context.Context, userID int64, acc core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	if _, exists := u.accounts[acc.Name]; exists {
		return core.ErrDuplicateAccount
	}
	u.accounts[acc.Name] = acc
	return nil
}

func (s *Store) SetAccountAmount(_ context.Context, userID int64, name string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	acc, exists := u.accounts[name]
	if !exists {
		return core.ErrNoSuchAccount
	}
	acc.Amount = amount
	u.accounts[name] = acc
	return nil
}

func (s *Store) AddToAccount(_ context.Context, userID int64, name string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	acc, exists := u.accounts[name]
	if !exists {
		return core.ErrNoSuchAccount
	}
	acc.Amount = acc.Amount.Add(delta)
	u.accounts[name] = acc
	return nil
}

func (s *Store) SetAccountCurrency(_ context.Context, userID int64, name, currency string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	acc, exists := u.accounts[name]
	if !exists {
		return core.ErrNoSuchAccount
	}
	acc.Currency = currency
	u.accounts[name] = acc
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, userID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	if _, exists := u.accounts[name]; !exists {
		return core.ErrNoSuchAccount
	}
	delete(u.accounts, name)
	return nil
}

func (s *Store) Rules(_ context.Context, userID int64) ([]core.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	out := make([]core.Rule, len(u.rules))
	copy(out, u.rules)
	return out, nil
}

func (s *Store) SaveRules(_ context.Context, userID int64, list []core.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	u.rules = make([]core.Rule, len(list))
	copy(u.rules, list)
	return nil
}

func (s *Store) Close() error { return nil }
