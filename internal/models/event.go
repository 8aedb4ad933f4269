package models

import (
	"time"
)

type EventStatus string

const (
	EventDraft           EventStatus = "draft"
	EventPendingApproval EventStatus = "pending_approval"
	EventApproved        EventStatus = "approved"
	EventCancelled       EventStatus = "cancelled"
)

// Event is the locally mirrored view of an event owned by the events service.
// Price is in rupees; 0 means the event is free.
type Event struct {
	EventID            string      `json:"event_id"`
	Name               string      `json:"name"`
	Capacity           int         `json:"capacity"`
	Price              float64     `json:"price"`
	IsRegistrationOpen bool        `json:"is_registration_open"`
	Status             EventStatus `json:"status"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// IsFree reports whether registration requires no payment.
func (e *Event) IsFree() bool {
	return e.Price == 0
}

// FieldType values supported by the registration form builder.
const (
	FieldText   = "text"
	FieldSelect = "select"
)

// FormField is one custom question on an event's registration form.
// Disabled fields are kept for historical responses but excluded from
// validation of new registrations.
type FormField struct {
	FieldID   string   `json:"field_id"`
	EventID   string   `json:"event_id"`
	Label     string   `json:"label"`
	FieldType string   `json:"field_type"`
	Required  bool     `json:"required"`
	Options   []string `json:"options,omitempty"`
	Disabled  bool     `json:"disabled"`
}

// EventUpsert is the message the events service publishes when an event is
// created or updated. Consumed from Kafka to keep the local mirror current.
type EventUpsert struct {
	Type      string    `json:"type"`
	Event     *Event    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}
