package amqp

import (
	"encoding/json"
	"time"
)

// LedgerEventMessage notifies consumers that the ledger changed. It carries
// enough to know what happened and which months were touched; consumers read
// the full snapshot from the primary store themselves.
type LedgerEventMessage struct {
	Action    string    `json:"action"`
	ExpenseID string    `json:"expenseId"`
	GroupID   string    `json:"groupId,omitempty"`
	Months    []string  `json:"months"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEventMessage creates an event message stamped with the current time.
func NewLedgerEventMessage(action, expenseID, groupID string, months []string) *LedgerEventMessage {
	return &LedgerEventMessage{
		Action:    action,
		ExpenseID: expenseID,
		GroupID:   groupID,
		Months:    months,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
