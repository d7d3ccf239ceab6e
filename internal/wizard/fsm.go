// Package wizard implements the guided transaction entry flow as an explicit
// state machine. One session per user lives in an expiring cache; an
// abandoned session simply times out and nothing is written to the ledger
// until the final step commits.
package wizard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stepanyanprod-creator/finance-bot/internal/cache"
	"github.com/stepanyanprod-creator/finance-bot/internal/core"
	"github.com/stepanyanprod-creator/finance-bot/internal/log"
	"github.com/stepanyanprod-creator/finance-bot/internal/services"
)

// Step is one state of the entry flow.
type Step int

const (
	StepAmount Step = iota
	StepCurrency
	StepDate
	StepCategory
	StepAccount
)

func (s Step) String() string {
	switch s {
	case StepAmount:
		return "amount"
	case StepCurrency:
		return "currency"
	case StepDate:
		return "date"
	case StepCategory:
		return "category"
	case StepAccount:
		return "account"
	default:
		return "unknown"
	}
}

// Kind selects the expense or income flow. The kind owns the sign of the
// committed total, so users can type the amount with or without a minus.
type Kind int

const (
	KindExpense Kind = iota
	KindIncome
)

func (k Kind) String() string {
	if k == KindIncome {
		return "income"
	}
	return "expense"
}

// Session is one in-flight entry flow. It accumulates a candidate field by
// field and commits it as a single append at the end.
type Session struct {
	UserID    int64
	Kind      Kind
	Step      Step
	Candidate core.Candidate
}

// Reply is what the chat layer renders after each input.
type Reply struct {
	Prompt      string
	Done        bool
	Transaction core.Transaction
	Seq         int
}

const skipWord = "skip"

// Wizard drives entry sessions and commits finished ones to the ledger.
type Wizard struct {
	ledger   *services.Ledger
	sessions *cache.LRU[*Session]
	logger   *log.Logger
	ttl      time.Duration
}

// New creates a wizard holding at most capacity concurrent sessions, each
// expiring ttl after its last input.
func New(ledger *services.Ledger, logger *log.Logger, capacity int, ttl time.Duration) *Wizard {
	return &Wizard{
		ledger:   ledger,
		sessions: cache.NewLRU[*Session](capacity, ttl),
		logger:   logger.WithComponent(log.ComponentWizard),
		ttl:      ttl,
	}
}

func sessionKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Start opens a fresh session, replacing any in-flight one. The merchant is
// taken from the message that triggered the flow.
func (w *Wizard) Start(userID int64, kind Kind, merchant string) Reply {
	s := &Session{
		UserID: userID,
		Kind:   kind,
		Step:   StepAmount,
		Candidate: core.Candidate{
			Merchant: strings.TrimSpace(merchant),
		},
	}
	w.sessions.SetWithTTL(sessionKey(userID), s, w.ttl)
	w.logger.Debug("wizard session started",
		log.FieldUserID, userID,
		"kind", kind.String())
	return Reply{Prompt: s.prompt()}
}

// Active reports whether the user has an in-flight session.
func (w *Wizard) Active(userID int64) bool {
	_, ok := w.sessions.Get(sessionKey(userID))
	return ok
}

// Cancel discards the user's session without writing anything.
func (w *Wizard) Cancel(userID int64) {
	w.sessions.Delete(sessionKey(userID))
}

var prompts = map[Step]string{
	StepCurrency: "Enter the currency (3-letter code, e.g. EUR):",
	StepDate:     "Enter the date (YYYY-MM-DD) or 'skip' for today:",
	StepCategory: "Enter a category or 'skip' to auto-detect:",
	StepAccount:  "Enter the account to charge or 'skip':",
}

func (s *Session) prompt() string {
	if s.Step == StepAmount {
		if s.Kind == KindIncome {
			return "Enter the amount received (e.g. 1200):"
		}
		return "Enter the amount spent (e.g. 45.30):"
	}
	return prompts[s.Step]
}

// Input feeds one message into the session and advances the machine.
// Invalid input re-prompts for the same step; the session only moves forward.
// The final step commits the accumulated candidate to the ledger.
func (w *Wizard) Input(ctx context.Context, userID int64, text string) (Reply, error) {
	key := sessionKey(userID)
	s, ok := w.sessions.Get(key)
	if !ok {
		return Reply{}, core.ErrNoSuchRecord
	}

	text = strings.TrimSpace(text)
	switch s.Step {
	case StepAmount:
		total, err := core.ParseAmount(text)
		if err != nil || total.IsZero() {
			return Reply{Prompt: "That is not an amount. " + s.prompt()}, nil
		}
		// The flow kind owns the sign regardless of how the user typed it.
		if s.Kind == KindIncome {
			total = total.Abs()
		} else {
			total = total.Abs().Neg()
		}
		s.Candidate.Total = total
		s.Step = StepCurrency

	case StepCurrency:
		code := core.NormalizeCurrency(text)
		if err := core.ValidateCurrency(code); err != nil {
			return Reply{Prompt: "That is not a currency code. " + prompts[StepCurrency]}, nil
		}
		s.Candidate.Currency = code
		s.Step = StepDate

	case StepDate:
		if text == "" || strings.EqualFold(text, skipWord) || strings.EqualFold(text, "today") {
			s.Candidate.Date = time.Now().Format(core.DateLayout)
		} else {
			if _, err := time.Parse(core.DateLayout, text); err != nil {
				return Reply{Prompt: "Dates look like 2026-08-28. " + prompts[StepDate]}, nil
			}
			s.Candidate.Date = text
		}
		s.Step = StepCategory

	case StepCategory:
		if text != "" && !strings.EqualFold(text, skipWord) {
			name, ok := core.NormalizeCategoryForTotal(text, s.Candidate.Total)
			if !ok {
				return Reply{Prompt: "Unknown category for this amount. " + prompts[StepCategory]}, nil
			}
			s.Candidate.Category = name
		}
		s.Step = StepAccount

	case StepAccount:
		if text != "" && !strings.EqualFold(text, skipWord) {
			s.Candidate.PaymentMethod = text
		}
		return w.commit(ctx, s)

	default:
		w.sessions.Delete(key)
		return Reply{}, fmt.Errorf("wizard step %d: %w", s.Step, core.ErrInvalidRecord)
	}

	// Keep the session alive for another TTL window.
	w.sessions.SetWithTTL(key, s, w.ttl)
	return Reply{Prompt: s.prompt()}, nil
}

func (w *Wizard) commit(ctx context.Context, s *Session) (Reply, error) {
	tx, seq, err := w.ledger.Append(ctx, s.UserID, s.Candidate, core.SourceManual)
	if err != nil {
		return Reply{}, fmt.Errorf("commit wizard session: %w", err)
	}
	w.sessions.Delete(sessionKey(s.UserID))
	w.logger.Info("wizard session committed",
		log.FieldUserID, s.UserID,
		log.FieldSeq, seq,
		log.FieldAmount, tx.Total.String(),
		log.FieldCurrency, tx.Currency)
	return Reply{
		Prompt:      "Recorded " + core.FormatAmount(tx.Total, tx.Currency) + ".",
		Done:        true,
		Transaction: tx,
		Seq:         seq,
	}, nil
}
