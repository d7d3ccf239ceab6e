package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/stepanyanprod-creator/finance-bot/internal/core"
)

type appendRequest struct {
	core.Candidate
	Source string `json:"source,omitempty"`
}

// handleTransactions serves the log: GET lists recent rows, POST appends one.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeBadRequest(w, "missing or invalid X-User-ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		limit := 0
		if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeBadRequest(w, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		list, err := s.ledger.Recent(r.Context(), uid, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		views := make([]transactionView, len(list))
		for i, t := range list {
			views[i] = toView(t)
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": views})

	case http.MethodPost:
		var req appendRequest
		if err := decodeBody(r, &req); err != nil {
			writeBadRequest(w, "invalid request body: "+err.Error())
			return
		}
		tx, seq, err := s.ledger.Append(r.Context(), uid, req.Candidate, req.Source)
		if err != nil {
			writeError(w, err)
			return
		}
		s.invalidateUser(uid)
		writeJSON(w, http.StatusCreated, map[string]any{
			"seq":         seq,
			"transaction": toView(tx),
		})

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// handleLastTransaction addresses rows from the end of the log: GET reads,
// PATCH edits, DELETE undoes. The optional from_end query parameter selects
// older rows (1 = newest) for GET and PATCH.
func (s *Server) handleLastTransaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeBadRequest(w, "missing or invalid X-User-ID")
		return
	}

	fromEnd := 1
	if v := strings.TrimSpace(r.URL.Query().Get("from_end")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "from_end must be a positive integer")
			return
		}
		fromEnd = n
	}

	switch r.Method {
	case http.MethodGet:
		tx, err := s.ledger.TransactionFromEnd(r.Context(), uid, fromEnd)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transaction": toView(tx)})

	case http.MethodPatch:
		var changes core.FieldChanges
		if err := decodeBody(r, &changes); err != nil {
			writeBadRequest(w, "invalid request body: "+err.Error())
			return
		}
		tx, err := s.ledger.EditFromEnd(r.Context(), uid, fromEnd, changes)
		if err != nil {
			writeError(w, err)
			return
		}
		s.invalidateUser(uid)
		writeJSON(w, http.StatusOK, map[string]any{"transaction": toView(tx)})

	case http.MethodDelete:
		removed, found, err := s.ledger.UndoLast(r.Context(), uid)
		if err != nil {
			writeError(w, err)
			return
		}
		if !found {
			writeError(w, core.ErrNoSuchRecord)
			return
		}
		s.invalidateUser(uid)
		writeJSON(w, http.StatusOK, map[string]any{"removed": toView(removed)})

	default:
		methodNotAllowed(w, "GET, PATCH, DELETE")
	}
}

// handleBalances serves the aggregates: GET reads them (cached), PUT replaces
// them wholesale.
func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeBadRequest(w, "missing or invalid X-User-ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		key := balancesCacheKey(uid)
		balances, hit := s.balancesCache.Get(key)
		if !hit {
			var err error
			balances, err = s.ledger.Balances(r.Context(), uid)
			if err != nil {
				writeError(w, err)
				return
			}
			s.balancesCache.Set(key, balances)
		}
		out := make(map[string]string, len(balances))
		for k, v := range balances {
			out[k] = v.String()
		}
		writeJSON(w, http.StatusOK, map[string]any{"balances": out})

	case http.MethodPut:
		var req map[string]string
		if err := decodeBody(r, &req); err != nil {
			writeBadRequest(w, "invalid request body: "+err.Error())
			return
		}
		balances := make(map[string]decimal.Decimal, len(req))
		for k, v := range req {
			amount, err := core.ParseAmount(v)
			if err != nil {
				writeError(w, err)
				return
			}
			balances[k] = amount
		}
		if err := s.ledger.SetBalances(r.Context(), uid, balances); err != nil {
			writeError(w, err)
			return
		}
		s.invalidateUser(uid)
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, "GET, PUT")
	}
}

// handleRebuildBalances recomputes the aggregates from the log.
func (s *Server) handleRebuildBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	uid, ok := userID(r)
	if !ok {
		writeBadRequest(w, "missing or invalid X-User-ID")
		return
	}

	balances, err := s.ledger.RebuildBalances(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateUser(uid)
	out := make(map[string]string, len(balances))
	for k, v := range balances {
		out[k] = v.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"balances": out})
}

// handleOverview serves the month summary, cached per user and month.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	uid, ok := userID(r)
	if !ok {
		writeBadRequest(w, "missing or invalid X-User-ID")
		return
	}

	year, month := parseYearMonth(r)
	key := overviewCacheKey(uid, year, month)
	ov, hit := s.overviewCache.Get(key)
	if !hit {
		var err error
		ov, err = s.ledger.MonthOverview(r.Context(), uid, year, month)
		if err != nil {
			writeError(w, err)
			return
		}
		s.overviewCache.Set(key, ov)
	}
	writeJSON(w, http.StatusOK, ov)
}
