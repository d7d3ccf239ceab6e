package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stepanyanprod-creator/finance-bot/internal/core"
)

// transactionView is the wire shape of one log row.
type transactionView struct {
	Date          string `json:"date"`
	Merchant      string `json:"merchant,omitempty"`
	Total         string `json:"total"`
	Currency      string `json:"currency"`
	Category      string `json:"category,omitempty"`
	Account       string `json:"account,omitempty"`
	Source        string `json:"source,omitempty"`
	Notes         string `json:"notes,omitempty"`
	TransferGroup string `json:"transfer_group,omitempty"`
	Display       string `json:"display,omitempty"`
}

func toView(t core.Transaction) transactionView {
	return transactionView{
		Date:          t.Date,
		Merchant:      t.Merchant,
		Total:         t.Total.String(),
		Currency:      t.Currency,
		Category:      t.Category,
		Account:       t.PaymentMethod,
		Source:        t.Source,
		Notes:         t.Notes,
		TransferGroup: t.TransferGroup,
		Display:       core.FormatAmount(t.Total, t.Currency),
	}
}

type accountView struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
	Display  string `json:"display"`
}

func toAccountView(a core.Account) accountView {
	return accountView{
		Name:     a.Name,
		Currency: a.Currency,
		Amount:   a.Amount.String(),
		Display:  core.FormatAmount(a.Amount, a.Currency),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinels to HTTP statuses: missing things are 404,
// conflicts 409, rejected input 422.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNoSuchRecord),
		errors.Is(err, core.ErrNoSuchAccount),
		errors.Is(err, core.ErrNoSuchRule):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateAccount),
		errors.Is(err, core.ErrSameAccount):
		status = http.StatusConflict
	case errors.Is(err, core.ErrInvalidRecord),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	w.WriteHeader(http.StatusMethodNotAllowed)
}

// userID extracts the acting user from the X-User-ID header or the user_id
// query parameter.
func userID(r *http.Request) (int64, bool) {
	v := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if v == "" {
		v = strings.TrimSpace(r.URL.Query().Get("user_id"))
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parseYearMonth extracts year and month from query parameters, defaulting
// to the current month.
func parseYearMonth(r *http.Request) (int, time.Month) {
	now := time.Now()
	year := now.Year()
	month := now.Month()

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			month = time.Month(m)
		}
	}
	return year, month
}
