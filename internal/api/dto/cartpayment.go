package dto

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cartpay/cartpay/internal/domain/cartpayment"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/types"
)

// CreateCartPaymentRequest represents a request to create a cart payment
type CreateCartPaymentRequest struct {
	IdempotencyKey            string                `json:"idempotency_key" binding:"required"`
	PayerID                   string                `json:"payer_id" binding:"required"`
	PaymentMethodID           string                `json:"payment_method_id" binding:"required"`
	Amount                    decimal.Decimal       `json:"amount" binding:"required"`
	Currency                  string                `json:"currency" binding:"required"`
	Country                   string                `json:"country" binding:"required"`
	DelayCapture              *bool                 `json:"delay_capture,omitempty"`
	CorrelationIDs            *types.CorrelationIDs `json:"correlation_ids,omitempty"`
	ClientDescription         *string               `json:"client_description,omitempty"`
	PayerStatementDescription *string               `json:"payer_statement_description,omitempty"`
	SplitPayment              *types.SplitPayment   `json:"split_payment,omitempty"`
	Metadata                  types.Metadata        `json:"metadata,omitempty"`
}

func (r *CreateCartPaymentRequest) Validate() error {
	if r.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must not be negative").
			Mark(ierr.ErrCartPaymentAmountInvalid)
	}
	if r.IdempotencyKey == "" {
		return ierr.NewError("missing idempotency key").
			WithHint("Idempotency key is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ToCartPayment converts a create request to a cart payment
func (r *CreateCartPaymentRequest) ToCartPayment(ctx context.Context) *cartpayment.CartPayment {
	cp := &cartpayment.CartPayment{
		ID:                        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CART_PAYMENT),
		PayerID:                   r.PayerID,
		PaymentMethodID:           r.PaymentMethodID,
		Amount:                    r.Amount,
		Currency:                  strings.ToLower(r.Currency),
		Country:                   r.Country,
		ClientDescription:         r.ClientDescription,
		PayerStatementDescription: r.PayerStatementDescription,
		SplitPayment:              r.SplitPayment,
		Metadata:                  r.Metadata,
		BaseModel:                 types.GetDefaultBaseModel(ctx),
	}
	if r.CorrelationIDs != nil {
		cp.CorrelationIDs = *r.CorrelationIDs
	}
	if r.DelayCapture != nil {
		cp.DelayCapture = *r.DelayCapture
	}
	return cp
}

// LegacyCreateCartPaymentRequest represents the legacy create flow carrying
// consumer and card identifiers from older clients
type LegacyCreateCartPaymentRequest struct {
	IdempotencyKey            string                `json:"idempotency_key" binding:"required"`
	Amount                    decimal.Decimal       `json:"amount" binding:"required"`
	Currency                  string                `json:"currency" binding:"required"`
	PaymentCountry            string                `json:"payment_country" binding:"required"`
	PayerCountry              string                `json:"payer_country,omitempty"`
	LegacyPayment             types.LegacyPayment   `json:"legacy_payment" binding:"required"`
	DelayCapture              *bool                 `json:"delay_capture,omitempty"`
	CorrelationIDs            *types.CorrelationIDs `json:"correlation_ids,omitempty"`
	ClientDescription         *string               `json:"client_description,omitempty"`
	PayerStatementDescription *string               `json:"payer_statement_description,omitempty"`
	Metadata                  types.Metadata        `json:"metadata,omitempty"`
}

func (r *LegacyCreateCartPaymentRequest) Validate() error {
	if r.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must not be negative").
			Mark(ierr.ErrCartPaymentAmountInvalid)
	}
	if r.LegacyPayment.ConsumerID == 0 {
		return ierr.NewError("missing consumer id").
			WithHint("Legacy payment requires a consumer id").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// UpdateCartPaymentRequest represents an adjustment to an existing cart
// payment. Amount is the new total, not a delta.
type UpdateCartPaymentRequest struct {
	IdempotencyKey    string              `json:"idempotency_key" binding:"required"`
	PayerID           string              `json:"payer_id" binding:"required"`
	Amount            decimal.Decimal     `json:"amount"`
	ClientDescription *string             `json:"client_description,omitempty"`
	SplitPayment      *types.SplitPayment `json:"split_payment,omitempty"`
}

// UpdateLegacyChargeRequest adjusts a cart payment addressed by its legacy
// consumer charge id. AmountDelta is added to the current total.
type UpdateLegacyChargeRequest struct {
	IdempotencyKey        string              `json:"idempotency_key" binding:"required"`
	AmountDelta           decimal.Decimal     `json:"amount_delta"`
	ClientDescription     *string             `json:"client_description,omitempty"`
	AdditionalPaymentInfo types.Metadata      `json:"additional_payment_info,omitempty"`
	SplitPayment          *types.SplitPayment `json:"split_payment,omitempty"`
}

// CartPaymentResponse represents a cart payment response
type CartPaymentResponse struct {
	ID                        string                   `json:"id"`
	PayerID                   string                   `json:"payer_id"`
	PaymentMethodID           string                   `json:"payment_method_id"`
	Amount                    decimal.Decimal          `json:"amount"`
	Currency                  string                   `json:"currency"`
	Country                   string                   `json:"country"`
	DelayCapture              bool                     `json:"delay_capture"`
	CorrelationIDs            types.CorrelationIDs     `json:"correlation_ids"`
	ClientDescription         *string                  `json:"client_description,omitempty"`
	PayerStatementDescription *string                  `json:"payer_statement_description,omitempty"`
	SplitPayment              *types.SplitPayment      `json:"split_payment,omitempty"`
	LegacyPayment             *types.LegacyPayment     `json:"legacy_payment,omitempty"`
	Metadata                  types.Metadata           `json:"metadata,omitempty"`
	DeletedAt                 *time.Time               `json:"deleted_at,omitempty"`
	PaymentIntents            []*PaymentIntentResponse `json:"payment_intents,omitempty"`
	CreatedAt                 time.Time                `json:"created_at"`
	UpdatedAt                 time.Time                `json:"updated_at"`
}

// PaymentIntentResponse represents a payment intent on a cart payment
// response
type PaymentIntentResponse struct {
	ID               string                    `json:"id"`
	Amount           decimal.Decimal           `json:"amount"`
	AmountCapturable decimal.Decimal           `json:"amount_capturable"`
	AmountReceived   decimal.Decimal           `json:"amount_received"`
	Currency         string                    `json:"currency"`
	CaptureMethod    types.CaptureMethod       `json:"capture_method"`
	IntentStatus     types.PaymentIntentStatus `json:"status"`
	CaptureAfter     *time.Time                `json:"capture_after,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
}

// NewCartPaymentResponse creates a cart payment response from the domain
// record and its intents
func NewCartPaymentResponse(cp *cartpayment.CartPayment, intents []*cartpayment.PaymentIntent) *CartPaymentResponse {
	resp := &CartPaymentResponse{
		ID:                        cp.ID,
		PayerID:                   cp.PayerID,
		PaymentMethodID:           cp.PaymentMethodID,
		Amount:                    cp.Amount,
		Currency:                  cp.Currency,
		Country:                   cp.Country,
		DelayCapture:              cp.DelayCapture,
		CorrelationIDs:            cp.CorrelationIDs,
		ClientDescription:         cp.ClientDescription,
		PayerStatementDescription: cp.PayerStatementDescription,
		SplitPayment:              cp.SplitPayment,
		LegacyPayment:             cp.LegacyPayment,
		Metadata:                  cp.Metadata,
		DeletedAt:                 cp.DeletedAt,
		CreatedAt:                 cp.CreatedAt,
		UpdatedAt:                 cp.UpdatedAt,
	}

	for _, intent := range intents {
		resp.PaymentIntents = append(resp.PaymentIntents, NewPaymentIntentResponse(intent))
	}
	return resp
}

// NewPaymentIntentResponse creates a payment intent response
func NewPaymentIntentResponse(intent *cartpayment.PaymentIntent) *PaymentIntentResponse {
	return &PaymentIntentResponse{
		ID:               intent.ID,
		Amount:           intent.Amount,
		AmountCapturable: intent.AmountCapturable,
		AmountReceived:   intent.AmountReceived,
		Currency:         intent.Currency,
		CaptureMethod:    intent.CaptureMethod,
		IntentStatus:     intent.IntentStatus,
		CaptureAfter:     intent.CaptureAfter,
		CreatedAt:        intent.CreatedAt,
	}
}
