package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"tesoreria/internal/core"
)

// DayClosedMessage announces that the cash closing of a date was saved.
// Consumers reload the ledger from the store; the message carries only the
// closing's headline numbers.
type DayClosedMessage struct {
	Date      core.Date  `json:"date"`
	Outcome   string     `json:"outcome"`
	Incomes   int        `json:"incomes"`
	Expenses  int        `json:"expenses"`
	Income    core.Money `json:"income"`
	Expense   core.Money `json:"expense"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewDayClosedMessage creates a message stamped with the current time.
func NewDayClosedMessage(date core.Date, outcome string, incomes, expenses []core.Movement) *DayClosedMessage {
	return &DayClosedMessage{
		Date:      date,
		Outcome:   outcome,
		Incomes:   len(incomes),
		Expenses:  len(expenses),
		Income:    core.Sum(incomes),
		Expense:   core.Sum(expenses),
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DayClosedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DayClosedMessageFromJSON decodes and validates a message.
func DayClosedMessageFromJSON(data []byte) (*DayClosedMessage, error) {
	var msg DayClosedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Date.IsZero() {
		return nil, fmt.Errorf("day closed message: %w", core.ErrInvalidDate)
	}
	return &msg, nil
}
