package amqp

import (
	"encoding/json"
	"time"
)

const (
	EventTransactionRecorded = "transaction_recorded"
	EventLedgerReset         = "ledger_reset"
)

// LedgerEventMessage notifies downstream consumers of a ledger mutation.
// It carries identifiers only; consumers read the full state from the store.
type LedgerEventMessage struct {
	Event         string    `json:"event"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	Type          string    `json:"type,omitempty"`
	AmountCents   int64     `json:"amount_cents,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionRecordedMessage builds the event published after a
// transaction commits.
func NewTransactionRecordedMessage(id int64, txType string, amountCents int64) *LedgerEventMessage {
	return &LedgerEventMessage{
		Event:         EventTransactionRecorded,
		TransactionID: id,
		Type:          txType,
		AmountCents:   amountCents,
		Timestamp:     time.Now(),
	}
}

// NewLedgerResetMessage builds the event published after a full reset.
func NewLedgerResetMessage() *LedgerEventMessage {
	return &LedgerEventMessage{
		Event:     EventLedgerReset,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON parses a message from JSON bytes.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
