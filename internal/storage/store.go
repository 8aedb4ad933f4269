package storage

import (
	"context"
	"errors"

	"registration-gateway/internal/models"
)

// Domain errors surfaced by the store. Services and handlers match on these
// with errors.Is.
var (
	ErrEventNotFound        = errors.New("event not found")
	ErrRegistrationClosed   = errors.New("registration is closed")
	ErrCapacityExceeded     = errors.New("event capacity exceeded")
	ErrAlreadyRegistered    = errors.New("already registered for this event")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrInvalidState         = errors.New("registration is not in a confirmable state")
	ErrPaymentNotFound      = errors.New("payment not found")
)

// Store is the single source of truth for registration state. The two
// operations RegisterForEvent and ConfirmRegistration are atomic: concurrent
// callers must never over-subscribe an event or double-confirm a
// registration, and an implementation that cannot guarantee that inside one
// operation must not be used.
type Store interface {
	// Event catalog (mirrored from the events service).
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	UpsertEvent(ctx context.Context, event *models.Event) error
	ListFormFields(ctx context.Context, eventID string) ([]models.FormField, error)

	// RegisterForEvent atomically reserves one seat: it checks the
	// registration-open flag, the (event,user) uniqueness rule and the
	// capacity against non-cancelled registrations, then inserts a PENDING
	// registration and returns its id.
	RegisterForEvent(ctx context.Context, eventID, userID string) (string, error)

	// ConfirmRegistration atomically moves a PENDING registration to
	// CONFIRMED and its CREATED payment (if any) to SUCCESS. Confirming an
	// already-CONFIRMED registration is a no-op; a missing or CANCELLED one
	// fails with ErrInvalidState and mutates nothing.
	ConfirmRegistration(ctx context.Context, registrationID string) error

	GetRegistration(ctx context.Context, registrationID string) (*models.Registration, error)
	GetRegistrationByEntryCode(ctx context.Context, entryCode string) (*models.Registration, error)
	SaveResponses(ctx context.Context, responses []models.RegistrationResponse) error

	SavePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByRegistration(ctx context.Context, registrationID string) (*models.Payment, error)

	// RecordPaymentCapture stores the gateway's payment id on the
	// registration's payment once the gateway reports capture.
	RecordPaymentCapture(ctx context.Context, registrationID, gatewayPaymentID string) error
	SavePaymentConfirmation(ctx context.Context, conf *models.PaymentConfirmation) error

	// CreateAttendance records a check-in exactly once per registration.
	// The second return value is false when the registration was already
	// checked in, in which case the existing row is returned.
	CreateAttendance(ctx context.Context, registrationID string) (*models.Attendance, bool, error)
}
