package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trackify/internal/core"
)

// reminderNamespace scopes the name-based message ids of reminder messages.
var reminderNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("trackify:reminders"))

// ReminderMessage is the wire form of a reminder handed to the notification
// service. Redeliveries of the same reminder carry the same ID.
type ReminderMessage struct {
	ID               string            `json:"id"`
	SubscriptionID   int64             `json:"subscription_id"`
	SubscriptionName string            `json:"subscription_name"`
	Kind             core.ReminderKind `json:"kind"`
	DaysUntil        int               `json:"days_until"`
	EventDate        string            `json:"event_date"`
	Timestamp        time.Time         `json:"timestamp"`
}

// MessageID derives the deterministic message id for a reminder.
func MessageID(ev core.ReminderEvent) string {
	return uuid.NewSHA1(reminderNamespace, []byte(ev.Key())).String()
}

// NewReminderMessage creates a message for ev stamped with now.
func NewReminderMessage(ev core.ReminderEvent, now time.Time) *ReminderMessage {
	return &ReminderMessage{
		ID:               MessageID(ev),
		SubscriptionID:   ev.SubscriptionID,
		SubscriptionName: ev.SubscriptionName,
		Kind:             ev.Kind,
		DaysUntil:        ev.DaysUntil,
		EventDate:        ev.EventDate.String(),
		Timestamp:        now.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Event converts the message back into a reminder event.
func (m *ReminderMessage) Event() (core.ReminderEvent, error) {
	date, err := core.ParseDate(m.EventDate)
	if err != nil {
		return core.ReminderEvent{}, fmt.Errorf("reminder %s: %w", m.ID, err)
	}
	return core.ReminderEvent{
		SubscriptionID:   m.SubscriptionID,
		SubscriptionName: m.SubscriptionName,
		Kind:             m.Kind,
		DaysUntil:        m.DaysUntil,
		EventDate:        date,
	}, nil
}

// ReminderMessageFromJSON creates a message from JSON bytes
func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
