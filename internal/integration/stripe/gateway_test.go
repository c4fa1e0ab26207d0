package stripe

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartpay/cartpay/internal/config"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/gateway"
	"github.com/cartpay/cartpay/internal/logger"
	"github.com/cartpay/cartpay/internal/types"
)

func newTestGateway(t *testing.T, commando bool) *Gateway {
	t.Helper()

	cfg := config.GetDefaultConfig()
	cfg.Stripe.SecretKey = "sk_test_key"
	cfg.Payment.PSPCommando = commando

	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)

	client, err := NewClient(cfg, log)
	require.NoError(t, err)

	return NewGateway(client, cfg, log).(*Gateway)
}

func TestNewClientRequiresSecretKey(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Stripe.SecretKey = ""

	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)

	_, err = NewClient(cfg, log)
	assert.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestCommandoModeToggle(t *testing.T) {
	g := newTestGateway(t, false)
	assert.False(t, g.CommandoMode())

	g.SetCommandoMode(true)
	assert.True(t, g.CommandoMode())

	g.SetCommandoMode(false)
	assert.False(t, g.CommandoMode())
}

func TestCommandoModeSeededFromConfig(t *testing.T) {
	assert.True(t, newTestGateway(t, true).CommandoMode())
}

func TestCommandoCreateManualCapture(t *testing.T) {
	g := newTestGateway(t, true)

	intent, err := g.CreatePaymentIntent(context.Background(), &gateway.CreateIntentRequest{
		IdempotencyKey: "key-1",
		Amount:         decimal.NewFromInt(100),
		Currency:       "usd",
		CaptureMethod:  types.CaptureMethodManual,
	})
	require.NoError(t, err)

	assert.True(t, intent.Provisional)
	assert.Empty(t, intent.ResourceID)
	assert.Equal(t, types.PaymentIntentStatusRequiresCapture, intent.Status)
	assert.True(t, intent.AmountCapturable.Equal(decimal.NewFromInt(100)))
	assert.True(t, intent.AmountReceived.IsZero())
}

func TestCommandoCreateAutoCapture(t *testing.T) {
	g := newTestGateway(t, true)

	intent, err := g.CreatePaymentIntent(context.Background(), &gateway.CreateIntentRequest{
		IdempotencyKey: "key-1",
		Amount:         decimal.NewFromInt(100),
		Currency:       "usd",
		CaptureMethod:  types.CaptureMethodAuto,
	})
	require.NoError(t, err)

	assert.True(t, intent.Provisional)
	assert.Equal(t, types.PaymentIntentStatusSucceeded, intent.Status)
	assert.True(t, intent.AmountReceived.Equal(decimal.NewFromInt(100)))
	assert.True(t, intent.AmountCapturable.IsZero())
}

func TestCommandoCapture(t *testing.T) {
	g := newTestGateway(t, true)

	intent, err := g.CapturePaymentIntent(context.Background(), &gateway.CaptureIntentRequest{
		ResourceID:      "pi_123",
		AmountToCapture: decimal.NewFromInt(80),
		IdempotencyKey:  "key-1",
	})
	require.NoError(t, err)

	assert.True(t, intent.Provisional)
	assert.Equal(t, "pi_123", intent.ResourceID)
	assert.Equal(t, types.PaymentIntentStatusSucceeded, intent.Status)
	assert.True(t, intent.AmountReceived.Equal(decimal.NewFromInt(80)))
}

func TestCommandoCancel(t *testing.T) {
	g := newTestGateway(t, true)

	intent, err := g.CancelPaymentIntent(context.Background(), &gateway.CancelIntentRequest{
		ResourceID: "pi_123",
		Reason:     "requested_by_customer",
	})
	require.NoError(t, err)

	assert.True(t, intent.Provisional)
	assert.Equal(t, types.PaymentIntentStatusCancelled, intent.Status)
}

func TestCommandoRefundStaysProcessing(t *testing.T) {
	g := newTestGateway(t, true)

	refund, err := g.RefundCharge(context.Background(), &gateway.RefundRequest{
		IntentResourceID: "pi_123",
		Amount:           decimal.NewFromInt(30),
		IdempotencyKey:   "key-1",
	})
	require.NoError(t, err)

	// Commando refunds carry no resource id and stay processing until a later
	// call settles them
	assert.Equal(t, types.RefundStatusProcessing, refund.Status)
	assert.Empty(t, refund.ResourceID)
	assert.True(t, refund.Amount.Equal(decimal.NewFromInt(30)))
}
