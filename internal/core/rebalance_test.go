package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func row(total, category string) Transaction {
	return Transaction{
		Date:     "2024-03-15",
		Merchant: "REWE",
		Total:    decimal.RequireFromString(total),
		Currency: "EUR",
		Category: category,
	}
}

func deltasByKey(deltas []Delta) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for _, d := range deltas {
		prev, ok := out[d.Key]
		if !ok {
			prev = decimal.Zero
		}
		out[d.Key] = prev.Add(d.Amount)
	}
	return out
}

func TestRebalanceBalancesAppend(t *testing.T) {
	tx := row("-45.30", "Nutrition")
	got := deltasByKey(RebalanceBalances(nil, &tx))

	if !got["EUR"].Equal(decimal.RequireFromString("-45.30")) {
		t.Errorf("EUR delta = %s, want -45.30", got["EUR"])
	}
	if !got["Nutrition@EUR"].Equal(decimal.RequireFromString("-45.30")) {
		t.Errorf("Nutrition@EUR delta = %s, want -45.30", got["Nutrition@EUR"])
	}
}

func TestRebalanceBalancesEdit(t *testing.T) {
	old := row("-45.30", "Nutrition")
	updated := row("-50.00", "Nutrition")
	got := deltasByKey(RebalanceBalances(&old, &updated))

	want := decimal.RequireFromString("-4.70")
	if !got["EUR"].Equal(want) {
		t.Errorf("EUR net delta = %s, want %s", got["EUR"], want)
	}
	if !got["Nutrition@EUR"].Equal(want) {
		t.Errorf("Nutrition@EUR net delta = %s, want %s", got["Nutrition@EUR"], want)
	}
}

func TestRebalanceBalancesUndo(t *testing.T) {
	old := row("-45.30", "Nutrition")
	got := deltasByKey(RebalanceBalances(&old, nil))

	want := decimal.RequireFromString("45.30")
	if !got["EUR"].Equal(want) {
		t.Errorf("EUR delta = %s, want %s", got["EUR"], want)
	}
}

func TestRebalanceSkipsTransferLegs(t *testing.T) {
	leg := row("-100", "Banking")
	leg.Source = SourceTransfer
	leg.TransferGroup = "g1"
	leg.PaymentMethod = "Main"

	if got := RebalanceBalances(nil, &leg); len(got) != 0 {
		t.Errorf("transfer legs must not touch balance aggregates, got %v", got)
	}
	// accounts still move
	acc := deltasByKey(RebalanceAccounts(nil, &leg))
	if !acc["Main"].Equal(decimal.RequireFromString("-100")) {
		t.Errorf("Main account delta = %s, want -100", acc["Main"])
	}
}

func TestRebalanceAccountsMove(t *testing.T) {
	old := row("-45.30", "Nutrition")
	old.PaymentMethod = "Main"
	updated := old
	updated.PaymentMethod = "Savings"

	got := deltasByKey(RebalanceAccounts(&old, &updated))
	if !got["Main"].Equal(decimal.RequireFromString("45.30")) {
		t.Errorf("Main delta = %s, want 45.30", got["Main"])
	}
	if !got["Savings"].Equal(decimal.RequireFromString("-45.30")) {
		t.Errorf("Savings delta = %s, want -45.30", got["Savings"])
	}
}
