package storage

import (
	"context"
	"sync"
	"time"

	"registration-gateway/internal/models"
	"registration-gateway/internal/utils"

	"github.com/google/uuid"
)

// InMemoryStore implements Store with a single mutex standing in for the
// database's row locks: both atomic operations run entirely under the lock,
// so it honours the same concurrency contract as the MySQL store. Used in
// tests and for local development without a database.
type InMemoryStore struct {
	mutex         sync.Mutex
	events        map[string]*models.Event
	fields        map[string][]models.FormField
	registrations map[string]*models.Registration
	responses     map[string][]models.RegistrationResponse
	payments      map[string]*models.Payment
	confirmations map[string]*models.PaymentConfirmation
	attendance    map[string]*models.Attendance
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events:        make(map[string]*models.Event),
		fields:        make(map[string][]models.FormField),
		registrations: make(map[string]*models.Registration),
		responses:     make(map[string][]models.RegistrationResponse),
		payments:      make(map[string]*models.Payment),
		confirmations: make(map[string]*models.PaymentConfirmation),
		attendance:    make(map[string]*models.Attendance),
	}
}

func (s *InMemoryStore) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	event, exists := s.events[eventID]
	if !exists {
		return nil, ErrEventNotFound
	}
	copied := *event
	return &copied, nil
}

func (s *InMemoryStore) UpsertEvent(ctx context.Context, event *models.Event) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := *event
	s.events[event.EventID] = &copied
	return nil
}

// SetFormFields seeds the form definition for an event. Test helper; the
// catalog consumer owns this in production.
func (s *InMemoryStore) SetFormFields(eventID string, fields []models.FormField) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.fields[eventID] = fields
}

func (s *InMemoryStore) ListFormFields(ctx context.Context, eventID string) ([]models.FormField, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]models.FormField(nil), s.fields[eventID]...), nil
}

func (s *InMemoryStore) RegisterForEvent(ctx context.Context, eventID, userID string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	event, exists := s.events[eventID]
	if !exists {
		return "", ErrEventNotFound
	}
	if !event.IsRegistrationOpen || event.Status != models.EventApproved {
		return "", ErrRegistrationClosed
	}

	live := 0
	for _, reg := range s.registrations {
		if reg.EventID != eventID || reg.Status == models.RegistrationCancelled {
			continue
		}
		if reg.UserID == userID {
			return "", ErrAlreadyRegistered
		}
		live++
	}
	if live >= event.Capacity {
		return "", ErrCapacityExceeded
	}

	now := time.Now().UTC()
	reg := &models.Registration{
		RegistrationID: uuid.New().String(),
		EventID:        eventID,
		UserID:         userID,
		Status:         models.RegistrationPending,
		EntryCode:      utils.GenerateEntryCode(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.registrations[reg.RegistrationID] = reg
	return reg.RegistrationID, nil
}

func (s *InMemoryStore) ConfirmRegistration(ctx context.Context, registrationID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	reg, exists := s.registrations[registrationID]
	if !exists {
		return ErrInvalidState
	}

	switch reg.Status {
	case models.RegistrationConfirmed:
		return nil
	case models.RegistrationCancelled:
		return ErrInvalidState
	}

	reg.Status = models.RegistrationConfirmed
	reg.UpdatedAt = time.Now().UTC()

	for _, payment := range s.payments {
		if payment.RegistrationID == registrationID && payment.Status == models.PaymentCreated {
			payment.Status = models.PaymentSuccess
			payment.UpdatedAt = reg.UpdatedAt
		}
	}

	return nil
}

// CancelRegistration flips a registration to CANCELLED. The admin flow that
// drives this lives outside the gateway; tests use it to exercise the
// finalizer's rejection path.
func (s *InMemoryStore) CancelRegistration(registrationID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if reg, exists := s.registrations[registrationID]; exists {
		reg.Status = models.RegistrationCancelled
		reg.UpdatedAt = time.Now().UTC()
	}
}

func (s *InMemoryStore) GetRegistration(ctx context.Context, registrationID string) (*models.Registration, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	reg, exists := s.registrations[registrationID]
	if !exists {
		return nil, ErrRegistrationNotFound
	}
	copied := *reg
	return &copied, nil
}

func (s *InMemoryStore) GetRegistrationByEntryCode(ctx context.Context, entryCode string) (*models.Registration, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, reg := range s.registrations {
		if reg.EntryCode == entryCode {
			copied := *reg
			return &copied, nil
		}
	}
	return nil, ErrRegistrationNotFound
}

func (s *InMemoryStore) SaveResponses(ctx context.Context, responses []models.RegistrationResponse) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, resp := range responses {
		s.responses[resp.RegistrationID] = append(s.responses[resp.RegistrationID], resp)
	}
	return nil
}

func (s *InMemoryStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := *payment
	s.payments[payment.PaymentID] = &copied
	return nil
}

func (s *InMemoryStore) GetPaymentByRegistration(ctx context.Context, registrationID string) (*models.Payment, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var latest *models.Payment
	for _, payment := range s.payments {
		if payment.RegistrationID != registrationID {
			continue
		}
		if latest == nil || payment.CreatedAt.After(latest.CreatedAt) {
			latest = payment
		}
	}
	if latest == nil {
		return nil, ErrPaymentNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *InMemoryStore) RecordPaymentCapture(ctx context.Context, registrationID, gatewayPaymentID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	found := false
	for _, payment := range s.payments {
		if payment.RegistrationID != registrationID {
			continue
		}
		found = true
		if payment.GatewayPaymentID == "" {
			payment.GatewayPaymentID = gatewayPaymentID
			payment.UpdatedAt = time.Now().UTC()
		}
	}
	if !found {
		return ErrPaymentNotFound
	}
	return nil
}

func (s *InMemoryStore) SavePaymentConfirmation(ctx context.Context, conf *models.PaymentConfirmation) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := *conf
	s.confirmations[conf.ConfirmationID] = &copied
	return nil
}

// ConfirmationCount reports recorded webhook audit rows for a registration.
// Test helper.
func (s *InMemoryStore) ConfirmationCount(registrationID string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	count := 0
	for _, conf := range s.confirmations {
		if conf.RegistrationID == registrationID {
			count++
		}
	}
	return count
}

func (s *InMemoryStore) CreateAttendance(ctx context.Context, registrationID string) (*models.Attendance, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if existing, exists := s.attendance[registrationID]; exists {
		copied := *existing
		return &copied, false, nil
	}

	att := &models.Attendance{
		AttendanceID:   uuid.New().String(),
		RegistrationID: registrationID,
		CheckedInAt:    time.Now().UTC(),
	}
	s.attendance[registrationID] = att
	copied := *att
	return &copied, true, nil
}
