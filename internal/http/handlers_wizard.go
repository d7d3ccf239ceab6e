package http

import (
	"net/http"

	"github.com/stepanyanprod-creator/finance-bot/internal/wizard"
)

type startWizardRequest struct {
	Kind     string `json:"kind"`
	Merchant string `json:"merchant"`
}

type wizardInputRequest struct {
	Text string `json:"text"`
}

type wizardReplyView struct {
	Prompt      string           `json:"prompt,omitempty"`
	Done        bool             `json:"done"`
	Transaction *transactionView `json:"transaction,omitempty"`
	Seq         int              `json:"seq,omitempty"`
}

func toReplyView(r wizard.Reply) wizardReplyView {
	v := wizardReplyView{Prompt: r.Prompt, Done: r.Done, Seq: r.Seq}
	if r.Done {
		tx := toView(r.Transaction)
		v.Transaction = &tx
	}
	return v
}

// handleWizard manages the guided entry session: GET reports whether one is
// active, POST starts a fresh flow, DELETE cancels it.
func (s *Server) handleWizard(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeBadRequest(w, "missing or invalid user id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]bool{"active": s.wizard.Active(uid)})

	case http.MethodPost:
		var req startWizardRequest
		if err := decodeBody(r, &req); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}
		var kind wizard.Kind
		switch req.Kind {
		case "", "expense":
			kind = wizard.KindExpense
		case "income":
			kind = wizard.KindIncome
		default:
			writeBadRequest(w, "kind must be expense or income")
			return
		}
		reply := s.wizard.Start(uid, kind, req.Merchant)
		writeJSON(w, http.StatusCreated, toReplyView(reply))

	case http.MethodDelete:
		s.wizard.Cancel(uid)
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, "GET, POST, DELETE")
	}
}

// handleWizardInput feeds one chat message into the active session.
func (s *Server) handleWizardInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	uid, ok := userID(r)
	if !ok {
		writeBadRequest(w, "missing or invalid user id")
		return
	}

	var req wizardInputRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	reply, err := s.wizard.Input(r.Context(), uid, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	if reply.Done {
		s.invalidateUser(uid)
	}
	writeJSON(w, http.StatusOK, toReplyView(reply))
}
