package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registration-gateway/internal/handlers"
	"registration-gateway/internal/kafka"
	"registration-gateway/internal/logger"
	"registration-gateway/internal/models"
	"registration-gateway/internal/services"
	"registration-gateway/internal/storage"
)

type apiFixture struct {
	router *gin.Engine
	store  *storage.InMemoryStore
	svc    *services.RegistrationService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewLogger()
	producer, err := kafka.NewProducer(nil, true, log)
	require.NoError(t, err)

	store := storage.NewInMemoryStore()
	svc := services.NewRegistrationService(store, &stubGateway{}, producer, log)
	handler := handlers.NewRegistrationHandler(svc)

	router := gin.New()
	api := router.Group("/api/v1")
	api.POST("/registrations", handler.Register)
	api.GET("/registrations/:id", handler.GetRegistration)
	api.POST("/checkin", handler.CheckIn)

	return &apiFixture{router: router, store: store, svc: svc}
}

func (f *apiFixture) seedEvent(t *testing.T, eventID string, capacity int, price float64, open bool) {
	t.Helper()

	now := time.Now().UTC()
	require.NoError(t, f.store.UpsertEvent(testCtx(), &models.Event{
		EventID:            eventID,
		Name:               "Cultural Fest",
		Capacity:           capacity,
		Price:              price,
		IsRegistrationOpen: open,
		Status:             models.EventApproved,
		CreatedAt:          now,
		UpdatedAt:          now,
	}))
}

func (f *apiFixture) post(path, userID string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRegisterEndpoint_RequiresUserHeader(t *testing.T) {
	f := newAPIFixture(t)

	w := f.post("/api/v1/registrations", "", models.RegisterRequest{EventID: "evt-1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterEndpoint_RequiresEventID(t *testing.T) {
	f := newAPIFixture(t)

	w := f.post("/api/v1/registrations", "user-1", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterEndpoint_FreeEvent(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEvent(t, "evt-api-free", 10, 0, true)

	w := f.post("/api/v1/registrations", "user-1", models.RegisterRequest{EventID: "evt-api-free"})
	require.Equal(t, http.StatusOK, w.Code)

	var result models.RegisterResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.True(t, result.Free)
	assert.NotEmpty(t, result.RegistrationID)
}

func TestRegisterEndpoint_PaidEvent(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEvent(t, "evt-api-paid", 10, 199, true)

	w := f.post("/api/v1/registrations", "user-1", models.RegisterRequest{EventID: "evt-api-paid"})
	require.Equal(t, http.StatusOK, w.Code)

	var result models.RegisterResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Free)
	assert.NotEmpty(t, result.OrderID)
	assert.Equal(t, "rzp_test_key", result.PaymentKey)
	assert.Equal(t, 199.0, result.Amount)
}

func TestRegisterEndpoint_ErrorMapping(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEvent(t, "evt-api-closed", 10, 0, false)
	f.seedEvent(t, "evt-api-full", 1, 0, true)

	require.Equal(t, http.StatusOK, f.post("/api/v1/registrations", "user-1", models.RegisterRequest{EventID: "evt-api-full"}).Code)

	cases := []struct {
		name    string
		userID  string
		eventID string
		status  int
	}{
		{"unknown event", "user-2", "evt-api-missing", http.StatusNotFound},
		{"closed event", "user-2", "evt-api-closed", http.StatusForbidden},
		{"full event", "user-2", "evt-api-full", http.StatusConflict},
		{"duplicate registration", "user-1", "evt-api-full", http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.post("/api/v1/registrations", tc.userID, models.RegisterRequest{EventID: tc.eventID})
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestGetRegistrationEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEvent(t, "evt-api-poll", 10, 250, true)

	created := f.post("/api/v1/registrations", "user-1", models.RegisterRequest{EventID: "evt-api-poll"})
	require.Equal(t, http.StatusOK, created.Code)

	var result models.RegisterResult
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &result))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/registrations/"+result.RegistrationID, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Registration models.Registration `json:"registration"`
			Payment      *models.Payment     `json:"payment"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.RegistrationPending, resp.Data.Registration.Status)
	require.NotNil(t, resp.Data.Payment)
	assert.Equal(t, models.PaymentCreated, resp.Data.Payment.Status)

	missing := httptest.NewRequest(http.MethodGet, "/api/v1/registrations/reg-missing", nil)
	wm := httptest.NewRecorder()
	f.router.ServeHTTP(wm, missing)
	assert.Equal(t, http.StatusNotFound, wm.Code)
}

func TestCheckInEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEvent(t, "evt-api-door", 10, 0, true)

	created := f.post("/api/v1/registrations", "user-1", models.RegisterRequest{EventID: "evt-api-door"})
	require.Equal(t, http.StatusOK, created.Code)

	var result models.RegisterResult
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &result))

	first := f.post("/api/v1/checkin", "", models.CheckInRequest{RegistrationID: result.RegistrationID})
	assert.Equal(t, http.StatusOK, first.Code)

	// Second scan is acknowledged, not duplicated.
	second := f.post("/api/v1/checkin", "", models.CheckInRequest{RegistrationID: result.RegistrationID})
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "Already checked in")

	missing := f.post("/api/v1/checkin", "", models.CheckInRequest{RegistrationID: "reg-missing"})
	assert.Equal(t, http.StatusNotFound, missing.Code)

	empty := f.post("/api/v1/checkin", "", models.CheckInRequest{})
	assert.Equal(t, http.StatusBadRequest, empty.Code)
}
