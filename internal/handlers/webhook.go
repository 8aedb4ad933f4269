package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"registration-gateway/internal/logger"
	"registration-gateway/internal/models"
	"registration-gateway/internal/services"
	"registration-gateway/internal/storage"
	"registration-gateway/internal/utils"
)

// SignatureHeader carries the gateway's hex HMAC digest of the raw body.
const SignatureHeader = "x-signature"

// WebhookDeduper short-circuits obvious webhook redeliveries. Best-effort;
// the store-side finalizer stays idempotent regardless.
type WebhookDeduper interface {
	MarkDelivery(paymentID string) (bool, error)
	ClearDelivery(paymentID string) error
}

type WebhookHandler struct {
	razorpayService     *services.RazorpayService
	registrationService *services.RegistrationService
	dedupe              WebhookDeduper
	log                 *logger.Logger
}

func NewWebhookHandler(razorpayService *services.RazorpayService, registrationService *services.RegistrationService, dedupe WebhookDeduper, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		razorpayService:     razorpayService,
		registrationService: registrationService,
		dedupe:              dedupe,
		log:                 log,
	}
}

// HandlePaymentWebhook processes payment-captured deliveries. Signature
// verification happens on the raw bytes before anything is parsed; the
// payload is only trusted after that.
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Failed to read request body", ""))
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if signature == "" {
		h.log.LogSecurity("WEBHOOK_NO_SIGNATURE", fmt.Sprintf("Unsigned webhook from %s", c.ClientIP()))
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Missing signature", ""))
		return
	}

	if err := h.razorpayService.VerifyWebhookSignature(body, signature); err != nil {
		h.log.LogSecurity("WEBHOOK_BAD_SIGNATURE", fmt.Sprintf("Signature mismatch from %s", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Invalid signature", ""))
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid webhook payload", ""))
		return
	}

	entity := payload.Payload.Payment.Entity
	if entity.RegistrationID() == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Missing registration id", ""))
		return
	}

	if h.dedupe != nil && entity.ID != "" {
		first, err := h.dedupe.MarkDelivery(entity.ID)
		if err == nil && !first {
			h.log.LogPayment("WEBHOOK_REPLAY", entity.ID, "Duplicate delivery, already processed")
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
	}

	if err := h.registrationService.ConfirmPaymentCapture(c.Request.Context(), &entity, signature); err != nil {
		if errors.Is(err, storage.ErrInvalidState) {
			// Cancelled or unknown registration: the confirmation audit row
			// is already recorded and redelivery cannot change the outcome.
			h.log.LogSecurity("WEBHOOK_STATE_REJECT", fmt.Sprintf("Capture %s rejected: registration not confirmable", entity.ID))
			c.JSON(http.StatusOK, gin.H{"received": true, "applied": false})
			return
		}

		if h.dedupe != nil && entity.ID != "" {
			_ = h.dedupe.ClearDelivery(entity.ID)
		}
		h.log.Error("WEBHOOK", fmt.Sprintf("Failed to process capture %s: %v", entity.ID, err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to process payment", ""))
		return
	}

	h.log.LogPayment("WEBHOOK_APPLIED", entity.ID, fmt.Sprintf("Registration %s confirmed via webhook", entity.RegistrationID()))
	c.JSON(http.StatusOK, gin.H{"received": true, "applied": true})
}
