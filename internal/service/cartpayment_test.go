package service

import (
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/cartpay/cartpay/internal/domain/cartpayment"
	"github.com/cartpay/cartpay/internal/types"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		name    string
		intent  *cartpayment.PaymentIntent
		pgps    []*cartpayment.PgpPaymentIntent
		refunds []*cartpayment.Refund
		want    types.IntentPhase
	}{
		{
			name:   "init with no provider resource is new",
			intent: &cartpayment.PaymentIntent{IntentStatus: types.PaymentIntentStatusInit},
			pgps:   []*cartpayment.PgpPaymentIntent{{}},
			want:   types.IntentPhaseNew,
		},
		{
			name:   "init with a provider resource is in flight",
			intent: &cartpayment.PaymentIntent{IntentStatus: types.PaymentIntentStatusInit},
			pgps: []*cartpayment.PgpPaymentIntent{
				{ResourceID: lo.ToPtr("pi_test_1")},
			},
			want: types.IntentPhaseInFlightToProvider,
		},
		{
			name:   "requires capture is awaiting capture",
			intent: &cartpayment.PaymentIntent{IntentStatus: types.PaymentIntentStatusRequiresCapture},
			want:   types.IntentPhaseAuthorizedAwaitingCapture,
		},
		{
			name: "succeeded with no refunds is captured",
			intent: &cartpayment.PaymentIntent{
				IntentStatus: types.PaymentIntentStatusSucceeded,
				Amount:       decimal.NewFromInt(100),
			},
			want: types.IntentPhaseCaptured,
		},
		{
			name: "succeeded with refunds and remaining amount is partially refunded",
			intent: &cartpayment.PaymentIntent{
				IntentStatus: types.PaymentIntentStatusSucceeded,
				Amount:       decimal.NewFromInt(60),
			},
			refunds: []*cartpayment.Refund{{Amount: decimal.NewFromInt(40)}},
			want:    types.IntentPhasePartiallyRefunded,
		},
		{
			name: "succeeded with refunds and zero amount is fully refunded",
			intent: &cartpayment.PaymentIntent{
				IntentStatus: types.PaymentIntentStatusSucceeded,
				Amount:       decimal.Zero,
			},
			refunds: []*cartpayment.Refund{{Amount: decimal.NewFromInt(100)}},
			want:    types.IntentPhaseFullyRefunded,
		},
		{
			name:   "cancelled maps to cancelled",
			intent: &cartpayment.PaymentIntent{IntentStatus: types.PaymentIntentStatusCancelled},
			want:   types.IntentPhaseCancelled,
		},
		{
			name:   "failed maps to failed",
			intent: &cartpayment.PaymentIntent{IntentStatus: types.PaymentIntentStatusFailed},
			want:   types.IntentPhaseFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyIntent(tt.intent, tt.pgps, tt.refunds))
		})
	}
}
