package http

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/stepanyanprod-creator/finance-bot/internal/core"
)

type createAccountRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Amount   string `json:"amount,omitempty"`
}

// handleAccounts serves the account set: GET lists (optionally filtered by
// currency or fetching one by name), POST creates, DELETE removes.
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeBadRequest(w, "missing or invalid X-User-ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
			acc, err := s.ledger.Account(r.Context(), uid, name)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"account": toAccountView(acc)})
			return
		}

		var (
			list []core.Account
			err  error
		)
		if cur := strings.TrimSpace(r.URL.Query().Get("currency")); cur != "" {
			list, err = s.ledger.AccountsByCurrency(r.Context(), uid, cur)
		} else {
			list, err = s.ledger.Accounts(r.Context(), uid)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		views := make([]accountView, len(list))
		for i, acc := range list {
			views[i] = toAccountView(acc)
		}
		writeJSON(w, http.StatusOK, map[string]any{"accounts": views})

	case http.MethodPost:
		var req createAccountRequest
		if err := decodeBody(r, &req); err != nil {
			writeBadRequest(w, "invalid request body: "+err.Error())
			return
		}
		amount := decimal.Zero
		if strings.TrimSpace(req.Amount) != "" {
			var err error
			amount, err = core.ParseAmount(req.Amount)
			if err != nil {
				writeError(w, err)
				return
			}
		}
		acc, err := s.ledger.CreateAccount(r.Context(), uid, req.Name, req.Currency, amount)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"account": toAccountView(acc)})

	case http.MethodDelete:
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			writeBadRequest(w, "name query parameter is required")
			return
		}
		if err := s.ledger.DeleteAccount(r.Context(), uid, name); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, "GET, POST, DELETE")
	}
}

type accountAmountRequest struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

// handleAccountAmount overwrites one account's stored amount.
func (s *Server) handleAccountAmount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	uid, ok := userID(r)
	if !ok {
		writeBadRequest(w, "missing or invalid X-User-ID")
		return
	}

	var req accountAmountRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ledger.SetAccountAmount(r.Context(), uid, req.Name, amount); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type accountCurrencyRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// handleAccountCurrency changes one account's currency code.
func (s *Server) handleAccountCurrency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	uid, ok := userID(r)
	if !ok {
		writeBadRequest(w, "missing or invalid X-User-ID")
		return
	}

	var req accountCurrencyRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := s.ledger.SetAccountCurrency(r.Context(), uid, req.Name, req.Currency); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transferRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Amount   string `json:"amount"`
	AmountTo string `json:"amount_to,omitempty"`
	Date     string `json:"date,omitempty"`
}

// handleTransfers moves money between accounts.
func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	uid, ok := userID(r)
	if !ok {
		writeBadRequest(w, "missing or invalid X-User-ID")
		return
	}

	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	var amountTo *decimal.Decimal
	if strings.TrimSpace(req.AmountTo) != "" {
		parsed, err := core.ParseAmount(req.AmountTo)
		if err != nil {
			writeError(w, err)
			return
		}
		amountTo = &parsed
	}

	res, err := s.ledger.Transfer(r.Context(), uid, req.From, req.To, amount, amountTo, req.Date)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateUser(uid)
	writeJSON(w, http.StatusCreated, map[string]any{
		"group": res.Group,
		"out":   toView(res.Out),
		"in":    toView(res.In),
	})
}
