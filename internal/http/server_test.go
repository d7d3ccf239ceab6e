package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stepanyanprod-creator/finance-bot/internal/log"
	"github.com/stepanyanprod-creator/finance-bot/internal/services"
	"github.com/stepanyanprod-creator/finance-bot/internal/storage/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := log.New(log.Config{
		Component: "test",
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
	ledger := services.NewLedger(memory.New(), logger, nil)
	srv := NewServer(":0", ledger, logger, Options{RatePerMinute: 1000})
	t.Cleanup(func() { srv.janitor.Stop(); srv.rateLimiter.shutdown() })
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-User-ID", "42")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Server.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, rec.Code)
		}
	}
}

func TestMissingUserHeader(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAppendAndListTransactions(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/transactions", map[string]any{
		"date":     "2026-08-01",
		"merchant": "REWE",
		"total":    "-45.30",
		"currency": "EUR",
		"category": "Nutrition",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("append = %d: %s", rec.Code, rec.Body.String())
	}
	out := decodeResponse(t, rec)
	if out["seq"].(float64) != 1 {
		t.Errorf("seq = %v, want 1", out["seq"])
	}

	rec = doJSON(t, srv, http.MethodGet, "/transactions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	out = decodeResponse(t, rec)
	list := out["transactions"].([]any)
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	row := list[0].(map[string]any)
	if row["category"] != "Nutrition" || row["total"] != "-45.3" {
		t.Errorf("row = %v", row)
	}
}

func TestBalancesFlow(t *testing.T) {
	srv := newTestServer(t)

	doJSON(t, srv, http.MethodPost, "/transactions", map[string]any{
		"date": "2026-08-01", "merchant": "REWE", "total": "-45.30",
		"currency": "EUR", "category": "Nutrition",
	})

	rec := doJSON(t, srv, http.MethodGet, "/balances", nil)
	out := decodeResponse(t, rec)
	balances := out["balances"].(map[string]any)
	if balances["EUR"] != "-45.3" {
		t.Errorf("EUR = %v, want -45.3", balances["EUR"])
	}
	if balances["Nutrition@EUR"] != "-45.3" {
		t.Errorf("Nutrition@EUR = %v", balances["Nutrition@EUR"])
	}

	// Edit the row, the cache must not serve the stale aggregate.
	rec = doJSON(t, srv, http.MethodPatch, "/transactions/last", map[string]any{
		"total": "-50.00",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit = %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, srv, http.MethodGet, "/balances", nil)
	out = decodeResponse(t, rec)
	balances = out["balances"].(map[string]any)
	if balances["EUR"] != "-50" {
		t.Errorf("EUR after edit = %v, want -50", balances["EUR"])
	}

	// Undo removes the row and reverses the aggregates.
	rec = doJSON(t, srv, http.MethodDelete, "/transactions/last", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("undo = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodDelete, "/transactions/last", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("undo on empty log = %d, want 404", rec.Code)
	}
}

func TestAccountAndTransferEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/accounts", map[string]any{
		"name": "Main", "currency": "EUR", "amount": "1000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	// Duplicate is a conflict.
	rec = doJSON(t, srv, http.MethodPost, "/accounts", map[string]any{
		"name": "Main", "currency": "EUR",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate = %d, want 409", rec.Code)
	}

	doJSON(t, srv, http.MethodPost, "/accounts", map[string]any{
		"name": "Savings", "currency": "EUR",
	})

	rec = doJSON(t, srv, http.MethodPost, "/transfers", map[string]any{
		"from": "Main", "to": "Savings", "amount": "100", "date": "2026-08-20",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("transfer = %d: %s", rec.Code, rec.Body.String())
	}
	out := decodeResponse(t, rec)
	if out["group"] == "" {
		t.Error("transfer group missing")
	}

	rec = doJSON(t, srv, http.MethodGet, "/accounts?name=Savings", nil)
	out = decodeResponse(t, rec)
	acc := out["account"].(map[string]any)
	if acc["amount"] != "100" {
		t.Errorf("Savings = %v, want 100", acc["amount"])
	}

	// Domain rejections map to their statuses.
	rec = doJSON(t, srv, http.MethodPost, "/transfers", map[string]any{
		"from": "Main", "to": "Main", "amount": "10",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("same account = %d, want 409", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodPost, "/transfers", map[string]any{
		"from": "Savings", "to": "Main", "amount": "99999",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("insufficient funds = %d, want 422", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodPost, "/transfers", map[string]any{
		"from": "Ghost", "to": "Main", "amount": "10",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing account = %d, want 404", rec.Code)
	}
}

func TestRulesEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/rules", map[string]any{
		"category": "nutrition",
		"match":    map[string]any{"merchant_contains": []string{"rewe"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add rule = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPost, "/rules", map[string]any{
		"category": "no-such", "match": map[string]any{},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid category = %d, want 422", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/rules/resolve", map[string]any{
		"date": "2026-08-01", "merchant": "REWE City", "total": "-10", "currency": "EUR",
	})
	out := decodeResponse(t, rec)
	if out["category"] != "Nutrition" || out["matched"] != true {
		t.Errorf("resolve = %v", out)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/rules?id=1", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodDelete, "/rules?id=1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete missing = %d, want 404", rec.Code)
	}
}

func TestOverviewEndpoint(t *testing.T) {
	srv := newTestServer(t)

	doJSON(t, srv, http.MethodPost, "/transactions", map[string]any{
		"date": "2026-08-01", "merchant": "REWE", "total": "-45.30",
		"currency": "EUR", "category": "Nutrition",
	})
	doJSON(t, srv, http.MethodPost, "/transactions", map[string]any{
		"date": "2026-08-15", "merchant": "Employer", "total": "3000",
		"currency": "EUR", "category": "Salary",
	})

	rec := doJSON(t, srv, http.MethodGet, "/overview?year=2026&month=8", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("overview = %d", rec.Code)
	}
	out := decodeResponse(t, rec)
	income := out["income"].(map[string]any)
	if income["EUR"] != "3000" {
		t.Errorf("income EUR = %v, want 3000", income["EUR"])
	}
	if out["rows"].(float64) != 2 {
		t.Errorf("rows = %v, want 2", out["rows"])
	}
}

func TestWizardEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/wizard", nil)
	if out := decodeResponse(t, rec); out["active"] != false {
		t.Errorf("active = %v, want false", out["active"])
	}

	rec = doJSON(t, srv, http.MethodPost, "/wizard", map[string]any{
		"kind": "expense", "merchant": "REWE",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start = %d: %s", rec.Code, rec.Body.String())
	}
	if out := decodeResponse(t, rec); out["prompt"] == "" || out["done"] != false {
		t.Errorf("start reply = %v", out)
	}

	rec = doJSON(t, srv, http.MethodPost, "/wizard", map[string]any{"kind": "loan"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad kind = %d, want 400", rec.Code)
	}

	for _, text := range []string{"45,30", "eur", "2026-08-01", "nutrition"} {
		rec = doJSON(t, srv, http.MethodPost, "/wizard/input", map[string]any{"text": text})
		if rec.Code != http.StatusOK {
			t.Fatalf("input %q = %d: %s", text, rec.Code, rec.Body.String())
		}
		if out := decodeResponse(t, rec); out["done"] != false {
			t.Fatalf("flow finished early on %q", text)
		}
	}
	rec = doJSON(t, srv, http.MethodPost, "/wizard/input", map[string]any{"text": "skip"})
	out := decodeResponse(t, rec)
	if out["done"] != true {
		t.Fatalf("flow should be done: %v", out)
	}
	tx := out["transaction"].(map[string]any)
	if tx["total"] != "-45.3" || tx["category"] != "Nutrition" {
		t.Errorf("transaction = %v", tx)
	}

	// The committed row is visible in the log.
	rec = doJSON(t, srv, http.MethodGet, "/transactions", nil)
	var list []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("log has %d rows, want 1", len(list))
	}

	// Input without a session is a 404; cancel is idempotent.
	rec = doJSON(t, srv, http.MethodPost, "/wizard/input", map[string]any{"text": "10"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("input without session = %d, want 404", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodDelete, "/wizard", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("cancel = %d, want 204", rec.Code)
	}
}
