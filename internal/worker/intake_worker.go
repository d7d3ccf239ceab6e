// Package worker runs the asynchronous intake path: candidates recognized
// from receipts, voice notes or import batches arrive over AMQP and are
// appended to the ledger.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/stepanyanprod-creator/finance-bot/internal/amqp"
	"github.com/stepanyanprod-creator/finance-bot/internal/core"
	"github.com/stepanyanprod-creator/finance-bot/internal/log"
	"github.com/stepanyanprod-creator/finance-bot/internal/services"
)

// IntakeWorker appends queued candidates to the ledger.
type IntakeWorker struct {
	ledger *services.Ledger
	logger *log.Logger
}

func NewIntakeWorker(ledger *services.Ledger, logger *log.Logger) *IntakeWorker {
	return &IntakeWorker{
		ledger: ledger,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleCandidate processes one intake message. Candidates that can never
// become valid rows are dropped with a warning so they do not poison the
// queue; transient errors propagate and the delivery is requeued.
func (w *IntakeWorker) HandleCandidate(ctx context.Context, msg *amqp.CandidateMessage) error {
	if msg.UserID <= 0 {
		w.logger.Warn("dropping candidate without user",
			log.FieldSource, msg.Source,
			log.FieldMerchant, msg.Candidate.Merchant)
		return nil
	}

	source := msg.Source
	if source == "" {
		source = core.SourceImport
	}

	tx, seq, err := w.ledger.Append(ctx, msg.UserID, msg.Candidate, source)
	if err != nil {
		if errors.Is(err, core.ErrInvalidRecord) || errors.Is(err, core.ErrInvalidAmount) {
			fields := log.NewFields().WithUser(msg.UserID).WithOperation(log.OpAppend).WithError(err)
			fields[log.FieldSource] = source
			w.logger.Warn("dropping candidate that cannot become a valid row", fields.ToSlice()...)
			return nil
		}
		return fmt.Errorf("append candidate: %w", err)
	}

	fields := log.NewFields().
		WithUser(msg.UserID).
		WithOperation(log.OpAppend).
		WithTransaction(tx.Merchant, tx.Total.String(), tx.Currency, tx.Category)
	fields[log.FieldSeq] = seq
	fields[log.FieldSource] = source
	w.logger.Info("candidate appended", fields.ToSlice()...)
	return nil
}
