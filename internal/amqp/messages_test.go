package amqp

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stepanyanprod-creator/finance-bot/internal/core"
)

func TestCandidateMessageRoundTrip(t *testing.T) {
	msg := NewCandidateMessage(42, core.SourcePhoto, core.Candidate{
		Date:     "2026-08-01",
		Merchant: "REWE",
		Total:    decimal.RequireFromString("-45.30"),
		Currency: "EUR",
		Items: []core.LineItem{
			{Name: "Milk", Qty: decimal.NewFromInt(2), Price: decimal.RequireFromString("1.19")},
		},
	})

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	got, err := CandidateMessageFromJSON(body)
	if err != nil {
		t.Fatalf("CandidateMessageFromJSON: %v", err)
	}

	if got.UserID != 42 || got.Source != core.SourcePhoto {
		t.Errorf("envelope = %d/%s", got.UserID, got.Source)
	}
	if got.Candidate.Merchant != "REWE" {
		t.Errorf("merchant = %q", got.Candidate.Merchant)
	}
	if !got.Candidate.Total.Equal(msg.Candidate.Total) {
		t.Errorf("total = %s, want %s", got.Candidate.Total, msg.Candidate.Total)
	}
	if len(got.Candidate.Items) != 1 || got.Candidate.Items[0].Name != "Milk" {
		t.Errorf("items = %+v", got.Candidate.Items)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp should survive the round trip")
	}
}

func TestCandidateMessageFromJSONInvalid(t *testing.T) {
	if _, err := CandidateMessageFromJSON([]byte("not json")); err == nil {
		t.Error("invalid JSON should fail to parse")
	}
}
