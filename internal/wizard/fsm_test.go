package wizard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stepanyanprod-creator/finance-bot/internal/core"
	"github.com/stepanyanprod-creator/finance-bot/internal/log"
	"github.com/stepanyanprod-creator/finance-bot/internal/services"
	"github.com/stepanyanprod-creator/finance-bot/internal/storage/memory"
)

const testUser int64 = 7

func newTestWizard(t *testing.T) (*Wizard, *services.Ledger) {
	t.Helper()
	logger := log.New(log.Config{
		Component: "test",
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
	ledger := services.NewLedger(memory.New(), logger, nil)
	return New(ledger, logger, 16, time.Minute), ledger
}

func feed(t *testing.T, w *Wizard, inputs ...string) Reply {
	t.Helper()
	var last Reply
	for _, in := range inputs {
		var err error
		last, err = w.Input(context.Background(), testUser, in)
		if err != nil {
			t.Fatalf("Input(%q): %v", in, err)
		}
	}
	return last
}

func TestWizardFullFlow(t *testing.T) {
	w, ledger := newTestWizard(t)
	ctx := context.Background()

	if _, err := ledger.CreateAccount(ctx, testUser, "Main", "EUR", decimal.NewFromInt(100)); err != nil {
		t.Fatal(err)
	}

	r := w.Start(testUser, KindExpense, "REWE")
	if r.Done || r.Prompt == "" {
		t.Fatalf("Start reply = %+v", r)
	}
	if !w.Active(testUser) {
		t.Fatal("session should be active after Start")
	}

	r = feed(t, w, "-45,30", "eur", "2026-08-01", "nutrition", "Main")
	if !r.Done {
		t.Fatalf("flow not done: %+v", r)
	}
	if r.Seq != 1 {
		t.Errorf("seq = %d, want 1", r.Seq)
	}
	if r.Transaction.Category != "Nutrition" {
		t.Errorf("category = %q, want Nutrition", r.Transaction.Category)
	}
	if !r.Transaction.Total.Equal(decimal.RequireFromString("-45.30")) {
		t.Errorf("total = %s, want -45.30", r.Transaction.Total)
	}
	if w.Active(testUser) {
		t.Error("session should be gone after commit")
	}

	acc, err := ledger.Account(ctx, testUser, "Main")
	if err != nil {
		t.Fatal(err)
	}
	if !acc.Amount.Equal(decimal.RequireFromString("54.70")) {
		t.Errorf("account = %s, want 54.70", acc.Amount)
	}
}

func TestWizardRepromptsOnInvalidInput(t *testing.T) {
	w, _ := newTestWizard(t)

	w.Start(testUser, KindExpense, "shop")
	r := feed(t, w, "not-a-number")
	if r.Done {
		t.Fatal("flow should not advance on bad amount")
	}
	r = feed(t, w, "0")
	if r.Done {
		t.Fatal("flow should not advance on zero amount")
	}
	r = feed(t, w, "-10", "euros")
	if r.Done {
		t.Fatal("flow should not advance on bad currency")
	}
	r = feed(t, w, "EUR", "01.08.2026")
	if r.Done {
		t.Fatal("flow should not advance on bad date")
	}
	// Income category on an expense amount is rejected for this step.
	r = feed(t, w, "2026-08-01", "Salary")
	if r.Done {
		t.Fatal("flow should not advance on category outside taxonomy")
	}
	r = feed(t, w, "skip", "skip")
	if !r.Done {
		t.Fatalf("flow should finish: %+v", r)
	}
}

func TestWizardSkipsResolveCategory(t *testing.T) {
	w, _ := newTestWizard(t)

	w.Start(testUser, KindExpense, "LIDL")
	r := feed(t, w, "-12.50", "EUR", "skip", "skip", "skip")
	if !r.Done {
		t.Fatalf("flow should finish: %+v", r)
	}
	if r.Transaction.Category != "Nutrition" {
		t.Errorf("category = %q, want Nutrition from merchant keyword", r.Transaction.Category)
	}
}

func TestWizardIncomeFlowFixesSign(t *testing.T) {
	w, _ := newTestWizard(t)

	w.Start(testUser, KindIncome, "Acme Payroll")
	// A minus typed by the user does not turn income into an expense.
	r := feed(t, w, "-3000", "EUR", "skip", "salary", "skip")
	if !r.Done {
		t.Fatalf("flow should finish: %+v", r)
	}
	if !r.Transaction.Total.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("total = %s, want 3000", r.Transaction.Total)
	}
	if r.Transaction.Category != "Salary" {
		t.Errorf("category = %q, want Salary", r.Transaction.Category)
	}
}

func TestWizardCancelAndNoSession(t *testing.T) {
	w, _ := newTestWizard(t)

	w.Start(testUser, KindExpense, "shop")
	w.Cancel(testUser)
	if w.Active(testUser) {
		t.Error("session should be gone after Cancel")
	}
	_, err := w.Input(context.Background(), testUser, "-10")
	if !errors.Is(err, core.ErrNoSuchRecord) {
		t.Errorf("err = %v, want ErrNoSuchRecord", err)
	}
}

func TestWizardAbandonedSessionExpires(t *testing.T) {
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	ledger := services.NewLedger(memory.New(), logger, nil)
	w := New(ledger, logger, 16, 10*time.Millisecond)

	w.Start(testUser, KindExpense, "shop")
	time.Sleep(20 * time.Millisecond)
	if w.Active(testUser) {
		t.Error("session should have expired")
	}
	// Nothing was written to the ledger.
	all, err := ledger.Transactions(context.Background(), testUser)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("log has %d rows, want 0", len(all))
	}
}

func TestWizardRestartReplacesSession(t *testing.T) {
	w, _ := newTestWizard(t)

	w.Start(testUser, KindExpense, "first")
	feed(t, w, "-10", "EUR")
	w.Start(testUser, KindExpense, "second")

	// The new session is back at the amount step.
	r := feed(t, w, "-20", "USD", "skip", "skip", "skip")
	if !r.Done {
		t.Fatalf("flow should finish: %+v", r)
	}
	if r.Transaction.Merchant != "second" {
		t.Errorf("merchant = %q, want second", r.Transaction.Merchant)
	}
	if r.Transaction.Currency != "USD" {
		t.Errorf("currency = %q, want USD", r.Transaction.Currency)
	}
}
