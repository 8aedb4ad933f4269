package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"registration-gateway/internal/config"
	"registration-gateway/internal/logger"

	razorpay "github.com/razorpay/razorpay-go"
)

var (
	ErrGatewayInitFailed = errors.New("failed to initialize payment gateway client")
	ErrOrderCreateFailed = errors.New("payment gateway order creation failed")
	ErrMissingSignature  = errors.New("missing webhook signature")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
)

// RazorpayService wraps the gateway SDK for order creation and owns webhook
// signature verification. The key secret and webhook secret are held here and
// never logged or returned.
type RazorpayService struct {
	client        *razorpay.Client
	keyID         string
	webhookSecret string
	log           *logger.Logger
}

func NewRazorpayService(cfg config.RazorpayConfig, log *logger.Logger) (*RazorpayService, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		log.Error("RAZORPAY", "RAZORPAY_KEY_ID / RAZORPAY_KEY_SECRET not set")
		return nil, ErrGatewayInitFailed
	}
	if cfg.WebhookSecret == "" {
		log.Warn("RAZORPAY", "RAZORPAY_WEBHOOK_SECRET not set, webhook deliveries will be rejected")
	}

	client := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)

	log.Info("RAZORPAY", "Razorpay client initialized successfully")
	return &RazorpayService{
		client:        client,
		keyID:         cfg.KeyID,
		webhookSecret: cfg.WebhookSecret,
		log:           log,
	}, nil
}

// Key returns the public key id the browser checkout needs. Safe to expose.
func (s *RazorpayService) Key() string {
	return s.keyID
}

// CreateOrder opens a gateway order for amountPaise (minor currency units)
// and tags it with the registration id so the webhook can route the capture
// back. Not idempotent against caller retries; callers reuse an existing
// CREATED payment before calling this.
func (s *RazorpayService) CreateOrder(amountPaise int64, receipt, registrationID string) (string, error) {
	data := map[string]interface{}{
		"amount":   amountPaise,
		"currency": "INR",
		"receipt":  receipt,
		"notes": map[string]interface{}{
			"registration_id": registrationID,
		},
	}

	order, err := s.client.Order.Create(data, nil)
	if err != nil {
		s.log.Error("RAZORPAY", fmt.Sprintf("Order creation failed for registration %s: %v", registrationID, err))
		return "", fmt.Errorf("%w: %v", ErrOrderCreateFailed, err)
	}

	orderID, ok := order["id"].(string)
	if !ok || orderID == "" {
		s.log.Error("RAZORPAY", "Order response missing id field")
		return "", ErrOrderCreateFailed
	}

	s.log.LogPayment("ORDER_CREATED", orderID, fmt.Sprintf("Gateway order opened for registration %s (%d paise)", registrationID, amountPaise))
	return orderID, nil
}

// VerifyWebhookSignature checks the claimed signature against an
// HMAC-SHA256 of the raw body under the webhook secret. The comparison is
// constant-time. Fails closed: an empty signature or an unset secret rejects.
func (s *RazorpayService) VerifyWebhookSignature(body []byte, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	if s.webhookSecret == "" {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
