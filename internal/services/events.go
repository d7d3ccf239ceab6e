package services

import "context"

// Event kinds emitted after a successful log mutation.
const (
	EventAppended = "appended"
	EventEdited   = "edited"
	EventUndone   = "undone"
	EventTransfer = "transfer"
)

// Event describes one committed ledger mutation. Events are published
// best-effort after the local write: a broker outage never fails the write.
type Event struct {
	Kind          string `json:"kind"`
	UserID        int64  `json:"user_id"`
	Seq           int    `json:"seq,omitempty"`
	Date          string `json:"date,omitempty"`
	Merchant      string `json:"merchant,omitempty"`
	Total         string `json:"total,omitempty"`
	Currency      string `json:"currency,omitempty"`
	Category      string `json:"category,omitempty"`
	Account       string `json:"account,omitempty"`
	Source        string `json:"source,omitempty"`
	TransferGroup string `json:"transfer_group,omitempty"`
}

// Publisher delivers ledger events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}
