package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/cartpay/cartpay/internal/types"
)

// Gateway abstracts the payment service provider. All amounts are in the
// currency's minor unit.
type Gateway interface {
	// CreatePaymentIntent authorizes (and for AUTO capture, captures) a new
	// intent at the provider
	CreatePaymentIntent(ctx context.Context, req *CreateIntentRequest) (*ProviderIntent, error)
	// CapturePaymentIntent captures a previously authorized intent
	CapturePaymentIntent(ctx context.Context, req *CaptureIntentRequest) (*ProviderIntent, error)
	// CancelPaymentIntent cancels an authorized, uncaptured intent
	CancelPaymentIntent(ctx context.Context, req *CancelIntentRequest) (*ProviderIntent, error)
	// RefundCharge refunds part or all of a captured intent
	RefundCharge(ctx context.Context, req *RefundRequest) (*ProviderRefund, error)
	// SetCommandoMode toggles commando mode at runtime. While enabled,
	// outbound provider calls are skipped and results are provisional.
	SetCommandoMode(enabled bool)
	// CommandoMode reports whether commando mode is enabled
	CommandoMode() bool
}

// CreateIntentRequest carries everything the provider needs to authorize a
// cart charge
type CreateIntentRequest struct {
	Amount                  decimal.Decimal
	Currency                string
	CustomerResourceID      string
	PaymentMethodResourceID string
	CaptureMethod           types.CaptureMethod
	IdempotencyKey          string
	StatementDescriptor     string
	Description             string
	Metadata                map[string]string
	Split                   *types.SplitPayment
}

type CaptureIntentRequest struct {
	ResourceID      string
	AmountToCapture decimal.Decimal
	IdempotencyKey  string
}

type CancelIntentRequest struct {
	ResourceID string
	Reason     string
}

type RefundRequest struct {
	IntentResourceID string
	Amount           decimal.Decimal
	Reason           string
	IdempotencyKey   string
}

// ProviderIntent is the provider's view of a payment intent, normalized onto
// the local status vocabulary
type ProviderIntent struct {
	ResourceID       string
	ChargeResourceID string
	Status           types.PaymentIntentStatus
	Amount           decimal.Decimal
	AmountCapturable decimal.Decimal
	AmountReceived   decimal.Decimal
	Currency         string
	// Provisional is set when the result was produced in commando mode
	// without a provider round trip
	Provisional bool
}

// ProviderRefund is the provider's view of a refund
type ProviderRefund struct {
	ResourceID string
	Status     types.RefundStatus
	Amount     decimal.Decimal
}
