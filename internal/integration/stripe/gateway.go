package stripe

import (
	"context"
	"net/http"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"

	"github.com/cartpay/cartpay/internal/config"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/gateway"
	"github.com/cartpay/cartpay/internal/logger"
	"github.com/cartpay/cartpay/internal/types"
)

// Gateway implements the PSP gateway on Stripe payment intents. Commando mode
// is held on the gateway value and guarded by a mutex so it can be flipped at
// runtime while calls are in flight.
type Gateway struct {
	client *Client
	cfg    *config.Configuration
	logger *logger.Logger

	mu       sync.RWMutex
	commando bool
}

// NewGateway creates a Stripe-backed gateway. Commando mode is seeded from
// payment.psp_commando.
func NewGateway(client *Client, cfg *config.Configuration, logger *logger.Logger) gateway.Gateway {
	return &Gateway{
		client:   client,
		cfg:      cfg,
		logger:   logger,
		commando: cfg.Payment.PSPCommando,
	}
}

func (g *Gateway) SetCommandoMode(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.commando != enabled {
		g.logger.Warnw("commando mode changed", "enabled", enabled)
	}
	g.commando = enabled
}

func (g *Gateway) CommandoMode() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.commando
}

func (g *Gateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.cfg.Stripe.CallTimeout)
}

// CreatePaymentIntent authorizes a new intent at Stripe. In commando mode no
// call is made and a provisional intent is returned in the state a successful
// authorization would have produced.
func (g *Gateway) CreatePaymentIntent(ctx context.Context, req *gateway.CreateIntentRequest) (*gateway.ProviderIntent, error) {
	if g.CommandoMode() {
		g.logger.Warnw("commando mode: skipping provider create",
			"idempotency_key", req.IdempotencyKey,
			"amount", req.Amount.String())
		return provisionalIntent(req), nil
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(req.Amount.IntPart()),
		Currency:      stripe.String(req.Currency),
		Customer:      stripe.String(req.CustomerResourceID),
		PaymentMethod: stripe.String(req.PaymentMethodResourceID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
		Metadata:      req.Metadata,
	}
	params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	params.AddExpand("latest_charge")

	if req.CaptureMethod == types.CaptureMethodManual {
		params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	}
	if req.StatementDescriptor != "" {
		params.StatementDescriptorSuffix = stripe.String(req.StatementDescriptor)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.Split != nil {
		params.TransferData = &stripe.PaymentIntentCreateTransferDataParams{
			Destination: stripe.String(req.Split.PayoutAccountID),
		}
		if req.Split.ApplicationFeeAmount.IsPositive() {
			params.ApplicationFeeAmount = stripe.Int64(req.Split.ApplicationFeeAmount.IntPart())
		}
	}

	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	intent, err := g.client.Get().V1PaymentIntents.Create(callCtx, params)
	if err != nil {
		return nil, g.mapProviderError(err, "create payment intent")
	}

	return fromStripeIntent(intent)
}

// CapturePaymentIntent captures a previously authorized intent
func (g *Gateway) CapturePaymentIntent(ctx context.Context, req *gateway.CaptureIntentRequest) (*gateway.ProviderIntent, error) {
	if g.CommandoMode() {
		g.logger.Warnw("commando mode: skipping provider capture",
			"resource_id", req.ResourceID)
		return &gateway.ProviderIntent{
			ResourceID:     req.ResourceID,
			Status:         types.PaymentIntentStatusSucceeded,
			Amount:         req.AmountToCapture,
			AmountReceived: req.AmountToCapture,
			Provisional:    true,
		}, nil
	}

	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(req.AmountToCapture.IntPart()),
	}
	params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	params.AddExpand("latest_charge")

	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	intent, err := g.client.Get().V1PaymentIntents.Capture(callCtx, req.ResourceID, params)
	if err != nil {
		return nil, g.mapProviderError(err, "capture payment intent")
	}

	return fromStripeIntent(intent)
}

// CancelPaymentIntent cancels an authorized, uncaptured intent
func (g *Gateway) CancelPaymentIntent(ctx context.Context, req *gateway.CancelIntentRequest) (*gateway.ProviderIntent, error) {
	if g.CommandoMode() {
		g.logger.Warnw("commando mode: skipping provider cancel",
			"resource_id", req.ResourceID)
		return &gateway.ProviderIntent{
			ResourceID:  req.ResourceID,
			Status:      types.PaymentIntentStatusCancelled,
			Provisional: true,
		}, nil
	}

	params := &stripe.PaymentIntentCancelParams{}
	if req.Reason != "" {
		params.CancellationReason = stripe.String(req.Reason)
	}

	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	intent, err := g.client.Get().V1PaymentIntents.Cancel(callCtx, req.ResourceID, params)
	if err != nil {
		return nil, g.mapProviderError(err, "cancel payment intent")
	}

	return fromStripeIntent(intent)
}

// RefundCharge refunds part or all of a captured intent
func (g *Gateway) RefundCharge(ctx context.Context, req *gateway.RefundRequest) (*gateway.ProviderRefund, error) {
	if g.CommandoMode() {
		g.logger.Warnw("commando mode: skipping provider refund",
			"resource_id", req.IntentResourceID,
			"amount", req.Amount.String())
		return &gateway.ProviderRefund{
			Status: types.RefundStatusProcessing,
			Amount: req.Amount,
		}, nil
	}

	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(req.IntentResourceID),
		Amount:        stripe.Int64(req.Amount.IntPart()),
	}
	params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	if req.Reason != "" {
		params.Reason = stripe.String(req.Reason)
	}

	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	refund, err := g.client.Get().V1Refunds.Create(callCtx, params)
	if err != nil {
		return nil, g.mapProviderError(err, "refund charge")
	}

	return &gateway.ProviderRefund{
		ResourceID: refund.ID,
		Status:     fromStripeRefundStatus(refund.Status),
		Amount:     decimal.NewFromInt(refund.Amount),
	}, nil
}

// provisionalIntent builds the intent a successful authorization would have
// produced, without a resource id
func provisionalIntent(req *gateway.CreateIntentRequest) *gateway.ProviderIntent {
	intent := &gateway.ProviderIntent{
		Status:      types.PaymentIntentStatusSucceeded,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Provisional: true,
	}
	if req.CaptureMethod == types.CaptureMethodManual {
		intent.Status = types.PaymentIntentStatusRequiresCapture
		intent.AmountCapturable = req.Amount
	} else {
		intent.AmountReceived = req.Amount
	}
	return intent
}

func fromStripeIntent(intent *stripe.PaymentIntent) (*gateway.ProviderIntent, error) {
	status, ok := fromStripeIntentStatus(intent.Status)
	if !ok {
		return nil, ierr.NewError("unexpected payment intent status from provider").
			WithHint("Payment provider returned an unexpected result").
			WithReportableDetails(map[string]any{
				"resource_id": intent.ID,
				"status":      string(intent.Status),
			}).
			Mark(ierr.ErrProvider)
	}

	result := &gateway.ProviderIntent{
		ResourceID:       intent.ID,
		Status:           status,
		Amount:           decimal.NewFromInt(intent.Amount),
		AmountCapturable: decimal.NewFromInt(intent.AmountCapturable),
		AmountReceived:   decimal.NewFromInt(intent.AmountReceived),
		Currency:         string(intent.Currency),
	}
	if intent.LatestCharge != nil {
		result.ChargeResourceID = intent.LatestCharge.ID
	}
	return result, nil
}

func fromStripeIntentStatus(status stripe.PaymentIntentStatus) (types.PaymentIntentStatus, bool) {
	switch status {
	case stripe.PaymentIntentStatusRequiresCapture:
		return types.PaymentIntentStatusRequiresCapture, true
	case stripe.PaymentIntentStatusSucceeded:
		return types.PaymentIntentStatusSucceeded, true
	case stripe.PaymentIntentStatusCanceled:
		return types.PaymentIntentStatusCancelled, true
	default:
		return "", false
	}
}

func fromStripeRefundStatus(status stripe.RefundStatus) types.RefundStatus {
	switch status {
	case stripe.RefundStatusSucceeded:
		return types.RefundStatusSucceeded
	case stripe.RefundStatusPending:
		return types.RefundStatusProcessing
	default:
		return types.RefundStatusFailed
	}
}

// mapProviderError folds Stripe errors into the payment error taxonomy.
// Transport failures and provider 5xx map to PROVIDER_UNAVAILABLE; rate limits
// map to PROVIDER_ERROR marked retryable; declines and bad requests map to
// PROVIDER_ERROR.
func (g *Gateway) mapProviderError(err error, op string) error {
	stripeErr, ok := err.(*stripe.Error)
	if !ok {
		// Transport-level failure: timeout, connection reset, DNS
		return ierr.WithError(err).
			WithHintf("Payment provider unreachable during %s", op).
			Mark(ierr.ErrProviderUnavailable)
	}

	g.logger.Errorw("provider call failed",
		"operation", op,
		"stripe_error_type", string(stripeErr.Type),
		"stripe_error_code", string(stripeErr.Code),
		"http_status", stripeErr.HTTPStatusCode)

	details := map[string]any{
		"provider_error_code": string(stripeErr.Code),
		"provider_error_type": string(stripeErr.Type),
	}

	if stripeErr.Code == stripe.ErrorCodeRateLimit || stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
		return ierr.WithError(err).
			WithHintf("Payment provider rate limited %s", op).
			WithReportableDetails(details).
			Retryable().
			Mark(ierr.ErrProvider)
	}

	if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
		return ierr.WithError(err).
			WithHintf("Payment provider unavailable during %s", op).
			WithReportableDetails(details).
			Mark(ierr.ErrProviderUnavailable)
	}

	return ierr.WithError(err).
		WithHintf("Payment provider rejected %s", op).
		WithReportableDetails(details).
		Mark(ierr.ErrProvider)
}
