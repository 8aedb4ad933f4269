package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"registration-gateway/internal/kafka"
	"registration-gateway/internal/logger"
	"registration-gateway/internal/models"
	"registration-gateway/internal/storage"
	"registration-gateway/internal/utils"

	"github.com/google/uuid"
)

var ErrNotConfirmed = errors.New("registration is not confirmed")

// ValidationError reports a registration request rejected by the eligibility
// gate. Safe to surface verbatim to the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PaymentGateway is the slice of the gateway service the workflow needs.
type PaymentGateway interface {
	CreateOrder(amountPaise int64, receipt, registrationID string) (string, error)
	Key() string
}

// RegistrationService runs the registration and confirmation workflow. All
// shared state lives in the store; the service itself holds nothing mutable,
// so concurrent requests only contend inside the store's atomic operations.
type RegistrationService struct {
	store    storage.Store
	gateway  PaymentGateway
	producer *kafka.Producer
	log      *logger.Logger
}

func NewRegistrationService(store storage.Store, gateway PaymentGateway, producer *kafka.Producer, log *logger.Logger) *RegistrationService {
	return &RegistrationService{
		store:    store,
		gateway:  gateway,
		producer: producer,
		log:      log,
	}
}

// Register runs the full registration attempt for one user: eligibility
// gate, atomic reservation, then either inline confirmation (free events) or
// a payment intent (paid events). If a later step fails the registration
// stays PENDING so the user can retry payment without re-registering.
func (s *RegistrationService) Register(ctx context.Context, userID string, req *models.RegisterRequest) (*models.RegisterResult, error) {
	s.log.LogRegistration("ATTEMPT", req.EventID, fmt.Sprintf("User %s registering for event %s", userID, req.EventID))

	event, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	fields, err := s.store.ListFormFields(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load form fields: %w", err)
	}
	if err := validateAnswers(fields, req.Answers); err != nil {
		s.log.LogRegistration("REJECTED", req.EventID, "Eligibility gate: "+err.Error())
		return nil, err
	}

	registrationID, err := s.store.RegisterForEvent(ctx, req.EventID, userID)
	if err != nil {
		s.log.LogRegistration("REJECTED", req.EventID, fmt.Sprintf("Reservation failed for user %s: %v", userID, err))
		return nil, err
	}
	s.log.LogRegistration("RESERVED", registrationID, "Seat reserved in PENDING state")

	if len(req.Answers) > 0 {
		responses := make([]models.RegistrationResponse, 0, len(req.Answers))
		for _, answer := range req.Answers {
			responses = append(responses, models.RegistrationResponse{
				RegistrationID: registrationID,
				FieldID:        answer.FieldID,
				Value:          answer.Value,
			})
		}
		if err := s.store.SaveResponses(ctx, responses); err != nil {
			// The seat stays reserved; responses are supporting data.
			s.log.Error("REGISTRATION", fmt.Sprintf("Failed to save responses for %s: %v", registrationID, err))
		}
	}

	if event.IsFree() {
		if err := s.Finalize(ctx, registrationID); err != nil {
			return nil, err
		}
		s.log.LogRegistration("CONFIRMED", registrationID, "Free event, confirmed synchronously")
		return &models.RegisterResult{
			Success:        true,
			Free:           true,
			RegistrationID: registrationID,
		}, nil
	}

	return s.CreatePaymentIntent(ctx, registrationID, event.Price)
}

// CreatePaymentIntent opens a gateway order for a PENDING registration and
// records the CREATED payment row. A registration that already carries a
// CREATED payment gets the existing order back instead of a duplicate one,
// which covers the common retry-after-timeout case.
func (s *RegistrationService) CreatePaymentIntent(ctx context.Context, registrationID string, price float64) (*models.RegisterResult, error) {
	if existing, err := s.store.GetPaymentByRegistration(ctx, registrationID); err == nil && existing.Status == models.PaymentCreated {
		s.log.LogPayment("REUSE", existing.PaymentID, fmt.Sprintf("Returning existing order %s for registration %s", existing.GatewayOrderID, registrationID))
		return &models.RegisterResult{
			Success:        true,
			RegistrationID: registrationID,
			OrderID:        existing.GatewayOrderID,
			PaymentKey:     s.gateway.Key(),
			Amount:         existing.Amount,
		}, nil
	}

	amountPaise := int64(price * 100)
	orderID, err := s.gateway.CreateOrder(amountPaise, utils.GenerateReceiptID(registrationID), registrationID)
	if err != nil {
		// Registration stays PENDING; the client can retry payment.
		return nil, err
	}

	now := time.Now().UTC()
	payment := &models.Payment{
		PaymentID:      uuid.New().String(),
		RegistrationID: registrationID,
		GatewayOrderID: orderID,
		Amount:         price,
		Status:         models.PaymentCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.SavePayment(ctx, payment); err != nil {
		return nil, err
	}

	s.log.LogPayment("INTENT", payment.PaymentID, fmt.Sprintf("Payment intent created for registration %s, order %s", registrationID, orderID))
	return &models.RegisterResult{
		Success:        true,
		RegistrationID: registrationID,
		OrderID:        orderID,
		PaymentKey:     s.gateway.Key(),
		Amount:         price,
	}, nil
}

// Finalize moves a registration to CONFIRMED exactly once. Safe to call
// repeatedly: the store operation is idempotent and lifecycle events are only
// published on the transition, not on replays.
func (s *RegistrationService) Finalize(ctx context.Context, registrationID string) error {
	before, err := s.store.GetRegistration(ctx, registrationID)
	if err != nil {
		if errors.Is(err, storage.ErrRegistrationNotFound) {
			return storage.ErrInvalidState
		}
		return err
	}
	alreadyConfirmed := before.Status == models.RegistrationConfirmed

	if err := s.store.ConfirmRegistration(ctx, registrationID); err != nil {
		return err
	}

	if alreadyConfirmed {
		s.log.LogRegistration("REPLAY", registrationID, "Finalize replay, state already CONFIRMED")
		return nil
	}

	s.publishLifecycleEvent("registration.confirmed", registrationID, nil)
	if payment, err := s.store.GetPaymentByRegistration(ctx, registrationID); err == nil {
		s.publishLifecycleEvent("payment.success", registrationID, payment)
	}
	return nil
}

// ConfirmPaymentCapture handles an authenticated webhook delivery: the raw
// confirmation is recorded as an audit row first, then the registration is
// finalized. The audit write happens even when finalization is later
// rejected, so the money trail survives a cancelled registration.
func (s *RegistrationService) ConfirmPaymentCapture(ctx context.Context, entity *models.WebhookPaymentEntity, signature string) error {
	registrationID := entity.RegistrationID()

	conf := &models.PaymentConfirmation{
		ConfirmationID:   uuid.New().String(),
		RegistrationID:   registrationID,
		GatewayOrderID:   entity.OrderID,
		GatewayPaymentID: entity.ID,
		Signature:        signature,
		Amount:           float64(entity.Amount) / 100,
		ReceivedAt:       time.Now().UTC(),
	}
	if err := s.store.SavePaymentConfirmation(ctx, conf); err != nil {
		return err
	}

	if err := s.store.RecordPaymentCapture(ctx, registrationID, entity.ID); err != nil && !errors.Is(err, storage.ErrPaymentNotFound) {
		return err
	}

	return s.Finalize(ctx, registrationID)
}

// GetRegistration returns the registration plus its payment, if one exists,
// for status polling.
func (s *RegistrationService) GetRegistration(ctx context.Context, registrationID string) (*models.Registration, *models.Payment, error) {
	reg, err := s.store.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, nil, err
	}
	payment, err := s.store.GetPaymentByRegistration(ctx, registrationID)
	if err != nil {
		if errors.Is(err, storage.ErrPaymentNotFound) {
			return reg, nil, nil
		}
		return nil, nil, err
	}
	return reg, payment, nil
}

// CheckIn resolves a CONFIRMED registration by entry code or id and records
// attendance. Idempotent: a repeated check-in returns the original row.
func (s *RegistrationService) CheckIn(ctx context.Context, req *models.CheckInRequest) (*models.Attendance, bool, error) {
	var reg *models.Registration
	var err error

	switch {
	case req.EntryCode != "":
		reg, err = s.store.GetRegistrationByEntryCode(ctx, strings.TrimSpace(req.EntryCode))
	case req.RegistrationID != "":
		reg, err = s.store.GetRegistration(ctx, req.RegistrationID)
	default:
		return nil, false, &ValidationError{Message: "entry_code or registration_id is required"}
	}
	if err != nil {
		return nil, false, err
	}

	if reg.Status != models.RegistrationConfirmed {
		s.log.LogSecurity("CHECKIN_DENIED", fmt.Sprintf("Registration %s is %s, not CONFIRMED", reg.RegistrationID, reg.Status))
		return nil, false, ErrNotConfirmed
	}

	att, created, err := s.store.CreateAttendance(ctx, reg.RegistrationID)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.LogRegistration("CHECKIN", reg.RegistrationID, "Attendance recorded")
		s.publishLifecycleEvent("attendance.checked_in", reg.RegistrationID, nil)
	}
	return att, created, nil
}

// ProcessCatalogEvent applies an event create/update published by the events
// service to the local mirror. Wired as the Kafka catalog consumer handler.
func (s *RegistrationService) ProcessCatalogEvent(upsert *models.EventUpsert) error {
	if upsert.Event == nil {
		return fmt.Errorf("catalog event %s carries no event payload", upsert.Type)
	}

	s.log.LogKafka("CATALOG", "event-catalog", fmt.Sprintf("Applying %s for event %s", upsert.Type, upsert.Event.EventID))

	if err := s.store.UpsertEvent(context.Background(), upsert.Event); err != nil {
		return fmt.Errorf("failed to apply catalog event: %w", err)
	}
	return nil
}

// validateAnswers is the eligibility gate over the event's active form
// fields. Disabled fields are skipped entirely; required fields need a
// non-empty answer; answers to select fields must match a configured option.
func validateAnswers(fields []models.FormField, answers []models.Answer) error {
	byField := make(map[string]string, len(answers))
	for _, answer := range answers {
		byField[answer.FieldID] = answer.Value
	}

	for _, field := range fields {
		if field.Disabled {
			continue
		}

		value, answered := byField[field.FieldID]
		if field.Required && (!answered || strings.TrimSpace(value) == "") {
			return &ValidationError{Field: field.Label, Message: "missing required field response"}
		}

		if answered && field.FieldType == models.FieldSelect && len(field.Options) > 0 {
			if !containsOption(field.Options, value) {
				return &ValidationError{Field: field.Label, Message: "invalid option selected"}
			}
		}
	}
	return nil
}

func containsOption(options []string, value string) bool {
	for _, option := range options {
		if option == value {
			return true
		}
	}
	return false
}

func (s *RegistrationService) publishLifecycleEvent(eventType, registrationID string, payment *models.Payment) {
	event := &models.RegistrationEvent{
		Type:           eventType,
		RegistrationID: registrationID,
		Payment:        payment,
		Timestamp:      time.Now().UTC(),
	}

	if err := s.producer.PublishRegistrationEvent(event); err != nil {
		// Confirmation already committed; the event stream is best-effort.
		s.log.Error("KAFKA", fmt.Sprintf("Failed to publish %s for registration %s: %v", eventType, registrationID, err))
	}
}
