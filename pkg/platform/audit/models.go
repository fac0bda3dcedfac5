package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// consent decisions and their withdrawal.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging only.
	CategoryOperations EventCategory = "operations"
)

// Action names an audited action.
type Action string

const (
	ActionConsentDecided Action = "consent_decided"
	ActionConsentCleared Action = "consent_cleared"
	ActionSessionEvicted Action = "session_evicted"
)

var actionCategories = map[Action]EventCategory{
	ActionConsentDecided: CategoryCompliance,
	ActionConsentCleared: CategoryCompliance,
	ActionSessionEvicted: CategoryOperations,
}

// Category returns the EventCategory for this action.
// Unknown actions default to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is an audit record. Keep it transport-agnostic so stores can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	VisitorID string
	Action    Action
	// Decision summarizes the outcome, e.g. "analytics=true,marketing=false".
	Decision  string
	Region    string
	RequestID string
	ClientIP  string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByVisitor(ctx context.Context, visitorID string) ([]Event, error)
}
