package models

import (
	"time"
)

type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "PENDING"
	RegistrationConfirmed RegistrationStatus = "CONFIRMED"
	RegistrationCancelled RegistrationStatus = "CANCELLED"
)

// Registration holds one seat provisionally (PENDING) or finally (CONFIRMED).
// The entry code is the opaque token handed to the attendee for check-in.
type Registration struct {
	RegistrationID string             `json:"registration_id"`
	EventID        string             `json:"event_id"`
	UserID         string             `json:"user_id"`
	Status         RegistrationStatus `json:"status"`
	EntryCode      string             `json:"entry_code"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Answer is one response to a custom form field.
type Answer struct {
	FieldID string `json:"field_id" binding:"required"`
	Value   string `json:"value"`
}

// RegistrationResponse is a persisted answer tied to a registration.
type RegistrationResponse struct {
	RegistrationID string `json:"registration_id"`
	FieldID        string `json:"field_id"`
	Value          string `json:"value"`
}

// RegisterRequest is the payload for POST /api/v1/registrations.
type RegisterRequest struct {
	EventID string   `json:"event_id" binding:"required"`
	Answers []Answer `json:"answers"`
}

// RegisterResult is returned to the client after a registration attempt.
// For free events Free is true and the registration is already CONFIRMED;
// for paid events the client completes checkout with OrderID and PaymentKey.
type RegisterResult struct {
	Success        bool    `json:"success"`
	Free           bool    `json:"free,omitempty"`
	RegistrationID string  `json:"registration_id"`
	OrderID        string  `json:"order_id,omitempty"`
	PaymentKey     string  `json:"payment_key,omitempty"`
	Amount         float64 `json:"amount,omitempty"`
}

// CheckInRequest accepts either an entry code or a registration id.
type CheckInRequest struct {
	EntryCode      string `json:"entry_code"`
	RegistrationID string `json:"registration_id"`
}

// Attendance records a single check-in. One row per registration, never
// mutated or deleted.
type Attendance struct {
	AttendanceID   string    `json:"attendance_id"`
	RegistrationID string    `json:"registration_id"`
	CheckedInAt    time.Time `json:"checked_in_at"`
}

// RegistrationEvent is published to Kafka on lifecycle transitions.
type RegistrationEvent struct {
	Type           string        `json:"type"`
	RegistrationID string        `json:"registration_id"`
	Registration   *Registration `json:"registration,omitempty"`
	Payment        *Payment      `json:"payment,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}
