package models

import (
	"time"
)

type PaymentStatus string

const (
	PaymentCreated PaymentStatus = "CREATED"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Payment is the pending or captured charge for one registration.
// GatewayPaymentID stays empty until the gateway reports capture.
type Payment struct {
	PaymentID        string        `json:"payment_id"`
	RegistrationID   string        `json:"registration_id"`
	GatewayOrderID   string        `json:"gateway_order_id"`
	GatewayPaymentID string        `json:"gateway_payment_id,omitempty"`
	Amount           float64       `json:"amount"`
	Status           PaymentStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// PaymentConfirmation is the durable audit row written for every accepted
// webhook delivery, before the registration is finalized. Amount is in
// rupees (the gateway reports paise).
type PaymentConfirmation struct {
	ConfirmationID   string    `json:"confirmation_id"`
	RegistrationID   string    `json:"registration_id"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	Signature        string    `json:"signature"`
	Amount           float64   `json:"amount"`
	ReceivedAt       time.Time `json:"received_at"`
}
