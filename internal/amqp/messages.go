package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published on writes.
const (
	UserRegistered   = "user.registered"
	CategoryCreated  = "category.created"
	CategoryDeleted  = "category.deleted"
	ExpenseCreated   = "expense.created"
	ExpenseUpdated   = "expense.updated"
	ExpenseDeleted   = "expense.deleted"
	BudgetUpserted   = "budget.upserted"
	RecurringCreated = "recurring.created"
	RecurringDeleted = "recurring.deleted"
)

// Event is a lightweight domain event. It names the entity that changed;
// consumers that need the full record read it from the store.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType, userID, entityID string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event from JSON bytes
func EventFromJSON(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
