package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// LedgerEntryMessage announces a line item that was written to a budget.
// Consumers re-read the budget from the database; the message only identifies it.
type LedgerEntryMessage struct {
	Kind        string    `json:"kind"`
	EntryID     int64     `json:"entryId"`
	BudgetID    int64     `json:"budgetId"`
	UserID      int64     `json:"userId"`
	AmountCents int64     `json:"amountCents"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewLedgerEntryMessage(kind string, entryID, budgetID, userID, amountCents int64) *LedgerEntryMessage {
	return &LedgerEntryMessage{
		Kind:        kind,
		EntryID:     entryID,
		BudgetID:    budgetID,
		UserID:      userID,
		AmountCents: amountCents,
		Timestamp:   time.Now().UTC(),
	}
}

func (m *LedgerEntryMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEntryMessageFromJSON decodes a message and rejects ones without a budget.
func LedgerEntryMessageFromJSON(data []byte) (*LedgerEntryMessage, error) {
	var msg LedgerEntryMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.BudgetID <= 0 {
		return nil, fmt.Errorf("ledger entry message without budget id")
	}
	return &msg, nil
}
