package amqp

import (
	"encoding/json"
	"time"
)

// Message operations.
const (
	OpSync   = "sync"
	OpDelete = "delete"
)

// RecordSyncMessage tells the backup worker that a record changed.
// For OpSync it carries only table and id; the worker fetches the full
// record from storage. For OpDelete the record is already gone, so the
// fields needed to locate the backup row travel in the message itself.
type RecordSyncMessage struct {
	Op          string    `json:"op"`
	Table       string    `json:"table"`
	ID          string    `json:"id"`
	Description string    `json:"description,omitempty"`
	Date        string    `json:"date,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewSyncMessage creates a change notification for one record.
func NewSyncMessage(table, id string) *RecordSyncMessage {
	return &RecordSyncMessage{
		Op:        OpSync,
		Table:     table,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// NewDeleteMessage creates a deletion notification carrying enough data to
// find the backup row.
func NewDeleteMessage(table, id, description, date string, amountCents int64) *RecordSyncMessage {
	return &RecordSyncMessage{
		Op:          OpDelete,
		Table:       table,
		ID:          id,
		Description: description,
		Date:        date,
		AmountCents: amountCents,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *RecordSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordSyncMessageFromJSON parses a message from JSON bytes.
func RecordSyncMessageFromJSON(data []byte) (*RecordSyncMessage, error) {
	var msg RecordSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
