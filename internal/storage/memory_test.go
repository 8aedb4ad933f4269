package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registration-gateway/internal/models"
	"registration-gateway/internal/storage"
)

func seedStoreEvent(t *testing.T, store *storage.InMemoryStore, eventID string, capacity int) {
	t.Helper()

	now := time.Now().UTC()
	require.NoError(t, store.UpsertEvent(context.Background(), &models.Event{
		EventID:            eventID,
		Name:               "Store Test Event",
		Capacity:           capacity,
		Price:              100,
		IsRegistrationOpen: true,
		Status:             models.EventApproved,
		CreatedAt:          now,
		UpdatedAt:          now,
	}))
}

func TestRegisterForEvent_PendingSeatsHoldCapacity(t *testing.T) {
	store := storage.NewInMemoryStore()
	seedStoreEvent(t, store, "evt-1", 2)
	ctx := context.Background()

	// Two PENDING reservations fill the event; nobody is CONFIRMED yet.
	_, err := store.RegisterForEvent(ctx, "evt-1", "user-1")
	require.NoError(t, err)
	_, err = store.RegisterForEvent(ctx, "evt-1", "user-2")
	require.NoError(t, err)

	_, err = store.RegisterForEvent(ctx, "evt-1", "user-3")
	assert.ErrorIs(t, err, storage.ErrCapacityExceeded)
}

func TestRegisterForEvent_CancelledSeatIsFreed(t *testing.T) {
	store := storage.NewInMemoryStore()
	seedStoreEvent(t, store, "evt-1", 1)
	ctx := context.Background()

	regID, err := store.RegisterForEvent(ctx, "evt-1", "user-1")
	require.NoError(t, err)

	_, err = store.RegisterForEvent(ctx, "evt-1", "user-2")
	require.ErrorIs(t, err, storage.ErrCapacityExceeded)

	store.CancelRegistration(regID)

	_, err = store.RegisterForEvent(ctx, "evt-1", "user-2")
	assert.NoError(t, err, "cancelling releases the seat")
}

func TestRegisterForEvent_RejectsUnapprovedEvent(t *testing.T) {
	store := storage.NewInMemoryStore()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.UpsertEvent(ctx, &models.Event{
		EventID:            "evt-draft",
		Capacity:           10,
		IsRegistrationOpen: true,
		Status:             models.EventDraft,
		CreatedAt:          now,
		UpdatedAt:          now,
	}))

	_, err := store.RegisterForEvent(ctx, "evt-draft", "user-1")
	assert.ErrorIs(t, err, storage.ErrRegistrationClosed)
}

func TestConfirmRegistration_Transitions(t *testing.T) {
	store := storage.NewInMemoryStore()
	seedStoreEvent(t, store, "evt-1", 10)
	ctx := context.Background()

	regID, err := store.RegisterForEvent(ctx, "evt-1", "user-1")
	require.NoError(t, err)

	require.NoError(t, store.ConfirmRegistration(ctx, regID))
	require.NoError(t, store.ConfirmRegistration(ctx, regID), "confirming twice is a no-op")

	assert.ErrorIs(t, store.ConfirmRegistration(ctx, "reg-missing"), storage.ErrInvalidState)

	store.CancelRegistration(regID)
	assert.ErrorIs(t, store.ConfirmRegistration(ctx, regID), storage.ErrInvalidState)
}

func TestConfirmRegistration_PromotesCreatedPayment(t *testing.T) {
	store := storage.NewInMemoryStore()
	seedStoreEvent(t, store, "evt-1", 10)
	ctx := context.Background()

	regID, err := store.RegisterForEvent(ctx, "evt-1", "user-1")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, store.SavePayment(ctx, &models.Payment{
		PaymentID:      "pmt-1",
		RegistrationID: regID,
		GatewayOrderID: "order_1",
		Amount:         100,
		Status:         models.PaymentCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}))

	require.NoError(t, store.ConfirmRegistration(ctx, regID))

	payment, err := store.GetPaymentByRegistration(ctx, regID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, payment.Status)
}

func TestGetRegistrationByEntryCode(t *testing.T) {
	store := storage.NewInMemoryStore()
	seedStoreEvent(t, store, "evt-1", 10)
	ctx := context.Background()

	regID, err := store.RegisterForEvent(ctx, "evt-1", "user-1")
	require.NoError(t, err)

	reg, err := store.GetRegistration(ctx, regID)
	require.NoError(t, err)
	require.NotEmpty(t, reg.EntryCode)

	found, err := store.GetRegistrationByEntryCode(ctx, reg.EntryCode)
	require.NoError(t, err)
	assert.Equal(t, regID, found.RegistrationID)

	_, err = store.GetRegistrationByEntryCode(ctx, "EVT-NOPE")
	assert.ErrorIs(t, err, storage.ErrRegistrationNotFound)
}

func TestCreateAttendance_Idempotent(t *testing.T) {
	store := storage.NewInMemoryStore()
	ctx := context.Background()

	first, created, err := store.CreateAttendance(ctx, "reg-1")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := store.CreateAttendance(ctx, "reg-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.AttendanceID, second.AttendanceID)
	assert.Equal(t, first.CheckedInAt, second.CheckedInAt)
}

func TestRecordPaymentCapture(t *testing.T) {
	store := storage.NewInMemoryStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.RecordPaymentCapture(ctx, "reg-1", "pay_1"), storage.ErrPaymentNotFound)

	now := time.Now().UTC()
	require.NoError(t, store.SavePayment(ctx, &models.Payment{
		PaymentID:      "pmt-1",
		RegistrationID: "reg-1",
		GatewayOrderID: "order_1",
		Status:         models.PaymentCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}))

	require.NoError(t, store.RecordPaymentCapture(ctx, "reg-1", "pay_1"))

	// A replay with a different id does not overwrite the recorded capture.
	require.NoError(t, store.RecordPaymentCapture(ctx, "reg-1", "pay_other"))

	payment, err := store.GetPaymentByRegistration(ctx, "reg-1")
	require.NoError(t, err)
	assert.Equal(t, "pay_1", payment.GatewayPaymentID)
}
