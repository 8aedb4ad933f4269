package models

// WebhookPayload mirrors the gateway's payment.captured delivery. Only the
// fields this service reads are declared; the raw body is what gets signed,
// so it is stored verbatim in the confirmation audit row.
type WebhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity WebhookPaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// WebhookPaymentEntity is the captured payment inside a webhook delivery.
// Amount is in paise. Notes carries the registration id the order was
// created with.
type WebhookPaymentEntity struct {
	ID      string            `json:"id"`
	OrderID string            `json:"order_id"`
	Amount  int64             `json:"amount"`
	Notes   map[string]string `json:"notes"`
}

// RegistrationID returns the registration reference from the order notes,
// or "" when the delivery carries none.
func (e *WebhookPaymentEntity) RegistrationID() string {
	if e.Notes == nil {
		return ""
	}
	return e.Notes["registration_id"]
}
