package core

import "github.com/shopspring/decimal"

// Delta is one signed mutation to apply to a keyed running total.
type Delta struct {
	Key    string
	Amount decimal.Decimal
}

// rowBalanceDeltas returns the aggregate deltas one log row contributes:
// the currency key, and the category@currency key when a category is set.
// Transfer legs contribute nothing — they are neither income nor expense.
func rowBalanceDeltas(t Transaction, sign decimal.Decimal) []Delta {
	if t.IsTransfer() || t.Currency == "" {
		return nil
	}
	amount := t.Total.Mul(sign)
	deltas := []Delta{{Key: BalanceKey("", t.Currency), Amount: amount}}
	if t.Category != "" {
		deltas = append(deltas, Delta{Key: BalanceKey(t.Category, t.Currency), Amount: amount})
	}
	return deltas
}

// rowAccountDelta returns the account delta of a row, if it references one.
func rowAccountDelta(t Transaction, sign decimal.Decimal) []Delta {
	if t.PaymentMethod == "" {
		return nil
	}
	return []Delta{{Key: t.PaymentMethod, Amount: t.Total.Mul(sign)}}
}

var (
	plusOne  = decimal.NewFromInt(1)
	minusOne = decimal.NewFromInt(-1)
)

// RebalanceBalances computes the aggregate deltas for a log mutation:
// reverse the superseded row, apply its replacement. Append passes old=nil,
// undo passes updated=nil.
func RebalanceBalances(old, updated *Transaction) []Delta {
	var deltas []Delta
	if old != nil {
		deltas = append(deltas, rowBalanceDeltas(*old, minusOne)...)
	}
	if updated != nil {
		deltas = append(deltas, rowBalanceDeltas(*updated, plusOne)...)
	}
	return deltas
}

// RebalanceAccounts computes the account deltas for a log mutation, keyed by
// account name. Same reverse-old/apply-new shape as RebalanceBalances.
func RebalanceAccounts(old, updated *Transaction) []Delta {
	var deltas []Delta
	if old != nil {
		deltas = append(deltas, rowAccountDelta(*old, minusOne)...)
	}
	if updated != nil {
		deltas = append(deltas, rowAccountDelta(*updated, plusOne)...)
	}
	return deltas
}
