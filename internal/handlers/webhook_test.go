package handlers_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registration-gateway/internal/config"
	"registration-gateway/internal/handlers"
	"registration-gateway/internal/kafka"
	"registration-gateway/internal/logger"
	"registration-gateway/internal/models"
	"registration-gateway/internal/services"
	"registration-gateway/internal/storage"
)

const testWebhookSecret = "whsec_handler_test"

type stubGateway struct {
	orders int
}

func (g *stubGateway) CreateOrder(amountPaise int64, receipt, registrationID string) (string, error) {
	g.orders++
	return fmt.Sprintf("order_stub_%d", g.orders), nil
}

func (g *stubGateway) Key() string { return "rzp_test_key" }

// stubDeduper mimics the Redis SetNX guard with a plain map.
type stubDeduper struct {
	seen map[string]bool
}

func newStubDeduper() *stubDeduper {
	return &stubDeduper{seen: make(map[string]bool)}
}

func (d *stubDeduper) MarkDelivery(paymentID string) (bool, error) {
	if d.seen[paymentID] {
		return false, nil
	}
	d.seen[paymentID] = true
	return true, nil
}

func (d *stubDeduper) ClearDelivery(paymentID string) error {
	delete(d.seen, paymentID)
	return nil
}

type webhookFixture struct {
	router *gin.Engine
	store  *storage.InMemoryStore
	svc    *services.RegistrationService
	dedupe *stubDeduper
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewLogger()
	producer, err := kafka.NewProducer(nil, true, log)
	require.NoError(t, err)

	store := storage.NewInMemoryStore()
	svc := services.NewRegistrationService(store, &stubGateway{}, producer, log)

	razorpaySvc, err := services.NewRazorpayService(config.RazorpayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     "test_secret",
		WebhookSecret: testWebhookSecret,
	}, log)
	require.NoError(t, err)

	dedupe := newStubDeduper()
	handler := handlers.NewWebhookHandler(razorpaySvc, svc, dedupe, log)

	router := gin.New()
	router.POST("/api/v1/payments/webhook", handler.HandlePaymentWebhook)

	return &webhookFixture{router: router, store: store, svc: svc, dedupe: dedupe}
}

func (f *webhookFixture) seedPaidRegistration(t *testing.T, eventID string) *models.RegisterResult {
	t.Helper()

	now := time.Now().UTC()
	require.NoError(t, f.store.UpsertEvent(testCtx(), &models.Event{
		EventID:            eventID,
		Name:               "Hackathon",
		Capacity:           50,
		Price:              499,
		IsRegistrationOpen: true,
		Status:             models.EventApproved,
		CreatedAt:          now,
		UpdatedAt:          now,
	}))

	result, err := f.svc.Register(testCtx(), "user-1", &models.RegisterRequest{EventID: eventID})
	require.NoError(t, err)
	return result
}

func capturePayload(t *testing.T, paymentID, orderID, registrationID string, amountPaise int64) []byte {
	t.Helper()

	var payload models.WebhookPayload
	payload.Event = "payment.captured"
	payload.Payload.Payment.Entity = models.WebhookPaymentEntity{
		ID:      paymentID,
		OrderID: orderID,
		Amount:  amountPaise,
		Notes:   map[string]string{"registration_id": registrationID},
	}

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func testCtx() context.Context {
	return context.Background()
}

func signWebhook(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(f *webhookFixture, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(handlers.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestWebhook_MissingSignature(t *testing.T) {
	f := newWebhookFixture(t)
	body := capturePayload(t, "pay_1", "order_1", "reg-1", 49900)

	w := postWebhook(f, body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	f := newWebhookFixture(t)
	body := capturePayload(t, "pay_1", "order_1", "reg-1", 49900)

	w := postWebhook(f, body, "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhook_MalformedPayload(t *testing.T) {
	f := newWebhookFixture(t)
	body := []byte("not json")

	w := postWebhook(f, body, signWebhook(body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_MissingRegistrationID(t *testing.T) {
	f := newWebhookFixture(t)
	body := capturePayload(t, "pay_1", "order_1", "", 49900)

	w := postWebhook(f, body, signWebhook(body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_ConfirmsRegistration(t *testing.T) {
	f := newWebhookFixture(t)
	result := f.seedPaidRegistration(t, "evt-wh-1")

	body := capturePayload(t, "pay_OK1", result.OrderID, result.RegistrationID, 49900)
	w := postWebhook(f, body, signWebhook(body))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["received"])
	assert.Equal(t, true, resp["applied"])

	reg, err := f.store.GetRegistration(testCtx(), result.RegistrationID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationConfirmed, reg.Status)

	payment, err := f.store.GetPaymentByRegistration(testCtx(), result.RegistrationID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, payment.Status)
	assert.Equal(t, "pay_OK1", payment.GatewayPaymentID)
}

func TestWebhook_ReplayShortCircuits(t *testing.T) {
	f := newWebhookFixture(t)
	result := f.seedPaidRegistration(t, "evt-wh-2")

	body := capturePayload(t, "pay_DUP", result.OrderID, result.RegistrationID, 49900)
	signature := signWebhook(body)

	first := postWebhook(f, body, signature)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, 1, f.store.ConfirmationCount(result.RegistrationID))

	second := postWebhook(f, body, signature)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, f.store.ConfirmationCount(result.RegistrationID), "deduped replay must not write a second audit row")

	reg, err := f.store.GetRegistration(testCtx(), result.RegistrationID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationConfirmed, reg.Status)
}

func TestWebhook_CancelledRegistrationAcknowledgedNotApplied(t *testing.T) {
	f := newWebhookFixture(t)
	result := f.seedPaidRegistration(t, "evt-wh-3")
	f.store.CancelRegistration(result.RegistrationID)

	body := capturePayload(t, "pay_LATE", result.OrderID, result.RegistrationID, 49900)
	w := postWebhook(f, body, signWebhook(body))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["received"])
	assert.Equal(t, false, resp["applied"])

	// The money trail is still recorded even though nothing was confirmed.
	assert.Equal(t, 1, f.store.ConfirmationCount(result.RegistrationID))

	reg, err := f.store.GetRegistration(testCtx(), result.RegistrationID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationCancelled, reg.Status)
}
