package types

import (
	"encoding/json"
	"time"
)

// WebhookEvent represents a webhook event to be delivered
type WebhookEvent struct {
	ID            string          `json:"id"`
	EventName     string          `json:"event_name"`
	TenantID      string          `json:"tenant_id"`
	EnvironmentID string          `json:"environment_id"`
	UserID        string          `json:"user_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// cart payment event names
const (
	WebhookEventCartPaymentCreated   = "cart_payment.created"
	WebhookEventCartPaymentUpdated   = "cart_payment.updated"
	WebhookEventCartPaymentCancelled = "cart_payment.cancelled"
)

// payment intent event names
const (
	WebhookEventPaymentIntentCaptured = "payment_intent.captured"
	WebhookEventPaymentIntentFailed   = "payment_intent.failed"
)
