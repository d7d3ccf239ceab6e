package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/stepanyanprod-creator/finance-bot/internal/core"
)

type addRuleRequest struct {
	Category string         `json:"category"`
	Match    core.MatchSpec `json:"match"`
}

// handleRules serves the categorization rules: GET lists them in evaluation
// order, POST adds one, DELETE removes by id.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeBadRequest(w, "missing or invalid X-User-ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		list, err := s.ledger.Rules(r.Context(), uid)
		if err != nil {
			writeError(w, err)
			return
		}
		if list == nil {
			list = []core.Rule{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"rules": list})

	case http.MethodPost:
		var req addRuleRequest
		if err := decodeBody(r, &req); err != nil {
			writeBadRequest(w, "invalid request body: "+err.Error())
			return
		}
		rule, err := s.ledger.AddRule(r.Context(), uid, req.Category, req.Match)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"rule": rule})

	case http.MethodDelete:
		v := strings.TrimSpace(r.URL.Query().Get("id"))
		id, err := strconv.Atoi(v)
		if err != nil || id < 1 {
			writeBadRequest(w, "id must be a positive integer")
			return
		}
		if err := s.ledger.DeleteRule(r.Context(), uid, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, "GET, POST, DELETE")
	}
}

// handleResolveCategory reports which category the engine would assign a
// candidate, without writing anything.
func (s *Server) handleResolveCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	uid, ok := userID(r)
	if !ok {
		writeBadRequest(w, "missing or invalid X-User-ID")
		return
	}

	var c core.Candidate
	if err := decodeBody(r, &c); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	name, matched, err := s.ledger.ResolveCategory(r.Context(), uid, c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": name,
		"matched":  matched,
	})
}
