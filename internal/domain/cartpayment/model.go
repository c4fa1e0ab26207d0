package cartpayment

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/types"
)

// CartPayment is the top-level client-facing record for one intent to charge.
// Amount is the current total; it moves with adjustments while original_total
// on the legacy consumer charge stays fixed.
type CartPayment struct {
	ID              string          `db:"id" json:"id"`
	PayerID         string          `db:"payer_id" json:"payer_id"`
	PaymentMethodID string          `db:"payment_method_id" json:"payment_method_id"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Currency        string          `db:"currency" json:"currency"`
	Country         string          `db:"country" json:"country"`
	// DelayCapture routes the intent through manual capture and the sweeper
	DelayCapture              bool                 `db:"delay_capture" json:"delay_capture"`
	CorrelationIDs            types.CorrelationIDs `db:"correlation_ids" json:"correlation_ids"`
	ClientDescription         *string              `db:"client_description" json:"client_description,omitempty"`
	PayerStatementDescription *string              `db:"payer_statement_description" json:"payer_statement_description,omitempty"`
	SplitPayment              *types.SplitPayment  `db:"split_payment" json:"split_payment,omitempty"`
	LegacyPayment             *types.LegacyPayment `db:"legacy_payment" json:"legacy_payment,omitempty"`
	Metadata                  types.Metadata       `db:"metadata" json:"metadata,omitempty"`
	DeletedAt                 *time.Time           `db:"deleted_at" json:"deleted_at,omitempty"`

	types.BaseModel
}

// Validate validates the cart payment
func (c *CartPayment) Validate() error {
	if c.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must not be negative").
			Mark(ierr.ErrCartPaymentAmountInvalid)
	}
	if c.PayerID == "" {
		return ierr.NewError("invalid payer id").
			WithHint("Payer id is required").
			Mark(ierr.ErrValidation)
	}
	if c.PaymentMethodID == "" {
		return ierr.NewError("invalid payment method id").
			WithHint("Payment method id is required").
			Mark(ierr.ErrValidation)
	}
	if c.Currency == "" {
		return ierr.NewError("invalid currency").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentIntent is the domain-level record of a single authorize-capture
// cycle. Amount is the domain remaining amount; amount_received is what the
// provider captured and never decreases after capture.
type PaymentIntent struct {
	ID               string              `db:"id" json:"id"`
	CartPaymentID    string              `db:"cart_payment_id" json:"cart_payment_id"`
	IdempotencyKey   string              `db:"idempotency_key" json:"idempotency_key"`
	Amount           decimal.Decimal     `db:"amount" json:"amount"`
	AmountCapturable decimal.Decimal     `db:"amount_capturable" json:"amount_capturable"`
	AmountReceived   decimal.Decimal     `db:"amount_received" json:"amount_received"`
	Currency         string              `db:"currency" json:"currency"`
	Country          string              `db:"country" json:"country"`
	CaptureMethod    types.CaptureMethod `db:"capture_method" json:"capture_method"`
	IntentStatus     types.PaymentIntentStatus `db:"intent_status" json:"intent_status"`
	// LegacyConsumerChargeID ties the intent to its legacy projection
	LegacyConsumerChargeID int64      `db:"legacy_consumer_charge_id" json:"legacy_consumer_charge_id"`
	StatementDescriptor    *string    `db:"statement_descriptor" json:"statement_descriptor,omitempty"`
	CaptureAfter           *time.Time `db:"capture_after" json:"capture_after,omitempty"`
	CapturedAt             *time.Time `db:"captured_at" json:"captured_at,omitempty"`
	CancelledAt            *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`

	types.BaseModel
}

// PgpPaymentIntent mirrors the provider's view of a payment intent.
// ResourceID stays null until the provider submission succeeds.
type PgpPaymentIntent struct {
	ID               string          `db:"id" json:"id"`
	PaymentIntentID  string          `db:"payment_intent_id" json:"payment_intent_id"`
	IdempotencyKey   string          `db:"idempotency_key" json:"idempotency_key"`
	ResourceID       *string         `db:"resource_id" json:"resource_id,omitempty"`
	ChargeResourceID *string         `db:"charge_resource_id" json:"charge_resource_id,omitempty"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	AmountCapturable decimal.Decimal `db:"amount_capturable" json:"amount_capturable"`
	AmountReceived   decimal.Decimal `db:"amount_received" json:"amount_received"`
	Currency         string          `db:"currency" json:"currency"`
	IntentStatus     types.PaymentIntentStatus `db:"intent_status" json:"intent_status"`
	ErrorCode        *string         `db:"error_code" json:"error_code,omitempty"`
	ErrorMessage     *string         `db:"error_message" json:"error_message,omitempty"`

	types.BaseModel
}

// AdjustmentHistory is an append-only audit row for every amount change on a
// payment intent
type AdjustmentHistory struct {
	ID              string          `db:"id" json:"id"`
	PaymentIntentID string          `db:"payment_intent_id" json:"payment_intent_id"`
	IdempotencyKey  string          `db:"idempotency_key" json:"idempotency_key"`
	AmountOriginal  decimal.Decimal `db:"amount_original" json:"amount_original"`
	AmountDelta     decimal.Decimal `db:"amount_delta" json:"amount_delta"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`

	types.BaseModel
}

// Refund records money returned against a captured intent
type Refund struct {
	ID              string             `db:"id" json:"id"`
	PaymentIntentID string             `db:"payment_intent_id" json:"payment_intent_id"`
	IdempotencyKey  string             `db:"idempotency_key" json:"idempotency_key"`
	Amount          decimal.Decimal    `db:"amount" json:"amount"`
	RefundStatus    types.RefundStatus `db:"refund_status" json:"refund_status"`
	Reason          *string            `db:"reason" json:"reason,omitempty"`

	types.BaseModel
}

// PgpRefund mirrors the provider's view of a refund
type PgpRefund struct {
	ID              string             `db:"id" json:"id"`
	RefundID        string             `db:"refund_id" json:"refund_id"`
	PaymentIntentID string             `db:"payment_intent_id" json:"payment_intent_id"`
	ResourceID      *string            `db:"resource_id" json:"resource_id,omitempty"`
	Amount          decimal.Decimal    `db:"amount" json:"amount"`
	RefundStatus    types.RefundStatus `db:"refund_status" json:"refund_status"`

	types.BaseModel
}
