package amqp

import (
	"encoding/json"
	"time"

	"github.com/stepanyanprod-creator/finance-bot/internal/core"
)

// CandidateMessage carries one transaction proposal from the recognition
// layer (receipt photo, voice note, import batch) to the intake worker.
type CandidateMessage struct {
	UserID    int64          `json:"user_id"`
	Source    string         `json:"source"`
	Candidate core.Candidate `json:"candidate"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewCandidateMessage builds an intake message stamped with the current time.
func NewCandidateMessage(userID int64, source string, c core.Candidate) *CandidateMessage {
	return &CandidateMessage{
		UserID:    userID,
		Source:    source,
		Candidate: c,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *CandidateMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CandidateMessageFromJSON parses an intake message.
func CandidateMessageFromJSON(data []byte) (*CandidateMessage, error) {
	var msg CandidateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
