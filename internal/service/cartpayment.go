package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/cartpay/cartpay/internal/domain/cartpayment"
	"github.com/cartpay/cartpay/internal/domain/payer"
	"github.com/cartpay/cartpay/internal/domain/paymentmethod"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/gateway"
	"github.com/cartpay/cartpay/internal/types"
)

// CartPaymentService owns the domain view of cart payments: lookups, the
// single provider submission point, and the idempotent state-apply helpers
// the processor drives after each provider call.
type CartPaymentService interface {
	GetCartPaymentByID(ctx context.Context, id string) (*cartpayment.CartPayment, *types.LegacyPayment, error)
	GetPaymentIntentsForCartPayment(ctx context.Context, cartPaymentID string) ([]*cartpayment.PaymentIntent, error)
	FindPgpPaymentIntents(ctx context.Context, paymentIntentID string) ([]*cartpayment.PgpPaymentIntent, error)
	GetPaymentIntentForIdempotencyKey(ctx context.Context, cartPaymentID, key string) (*cartpayment.PaymentIntent, error)

	// CreateIntentPair persists a fresh INIT intent and its provider mirror
	CreateIntentPair(ctx context.Context, cp *cartpayment.CartPayment, key string, amount decimal.Decimal, legacyConsumerChargeID int64) (*cartpayment.PaymentIntent, *cartpayment.PgpPaymentIntent, error)

	// SubmitPaymentToProvider is the single place that calls the PSP gateway
	// for create/authorize
	SubmitPaymentToProvider(ctx context.Context, cp *cartpayment.CartPayment, intent *cartpayment.PaymentIntent, p *payer.Payer, pm *paymentmethod.PaymentMethod) (*gateway.ProviderIntent, error)

	UpdateStateAfterProviderSubmission(ctx context.Context, intent *cartpayment.PaymentIntent, pgp *cartpayment.PgpPaymentIntent, provider *gateway.ProviderIntent) error
	UpdateStateAfterProviderError(ctx context.Context, intent *cartpayment.PaymentIntent, pgp *cartpayment.PgpPaymentIntent, provErr error) error
	UpdateStateAfterCapture(ctx context.Context, intent *cartpayment.PaymentIntent, pgp *cartpayment.PgpPaymentIntent, provider *gateway.ProviderIntent) error
	UpdateStateAfterCancel(ctx context.Context, intent *cartpayment.PaymentIntent, pgp *cartpayment.PgpPaymentIntent) error
}

type cartPaymentService struct {
	ServiceParams
}

func NewCartPaymentService(params ServiceParams) CartPaymentService {
	return &cartPaymentService{ServiceParams: params}
}

func (s *cartPaymentService) GetCartPaymentByID(ctx context.Context, id string) (*cartpayment.CartPayment, *types.LegacyPayment, error) {
	cp, err := s.CartPaymentRepo.GetCartPaymentByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return cp, cp.LegacyPayment, nil
}

func (s *cartPaymentService) GetPaymentIntentsForCartPayment(ctx context.Context, cartPaymentID string) ([]*cartpayment.PaymentIntent, error) {
	return s.CartPaymentRepo.ListPaymentIntents(ctx, cartPaymentID)
}

func (s *cartPaymentService) FindPgpPaymentIntents(ctx context.Context, paymentIntentID string) ([]*cartpayment.PgpPaymentIntent, error) {
	return s.CartPaymentRepo.ListPgpPaymentIntents(ctx, paymentIntentID)
}

func (s *cartPaymentService) GetPaymentIntentForIdempotencyKey(ctx context.Context, cartPaymentID, key string) (*cartpayment.PaymentIntent, error) {
	return s.CartPaymentRepo.GetPaymentIntentForIdempotencyKey(ctx, cartPaymentID, key)
}

// CreateIntentPair persists the INIT intent and its provider mirror. Both
// rows carry the idempotency key so replays trip the uniqueness index.
func (s *cartPaymentService) CreateIntentPair(ctx context.Context, cp *cartpayment.CartPayment, key string, amount decimal.Decimal, legacyConsumerChargeID int64) (*cartpayment.PaymentIntent, *cartpayment.PgpPaymentIntent, error) {
	captureMethod := types.CaptureMethodAuto
	var captureAfter *time.Time
	if cp.DelayCapture {
		captureMethod = types.CaptureMethodManual
		captureAfter = lo.ToPtr(time.Now().UTC().Add(s.Config.Payment.DefaultCaptureAfter))
	}

	intent := &cartpayment.PaymentIntent{
		ID:                     types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_INTENT),
		CartPaymentID:          cp.ID,
		IdempotencyKey:         key,
		Amount:                 amount,
		Currency:               cp.Currency,
		Country:                cp.Country,
		CaptureMethod:          captureMethod,
		IntentStatus:           types.PaymentIntentStatusInit,
		LegacyConsumerChargeID: legacyConsumerChargeID,
		StatementDescriptor:    cp.PayerStatementDescription,
		CaptureAfter:           captureAfter,
		BaseModel:              types.GetDefaultBaseModel(ctx),
	}

	pgp := &cartpayment.PgpPaymentIntent{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PGP_PAYMENT_INTENT),
		PaymentIntentID: intent.ID,
		IdempotencyKey:  key,
		Amount:          amount,
		Currency:        cp.Currency,
		IntentStatus:    types.PaymentIntentStatusInit,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.CartPaymentRepo.CreatePaymentIntent(ctx, intent); err != nil {
			return err
		}
		return s.CartPaymentRepo.CreatePgpPaymentIntent(ctx, pgp)
	})
	if err != nil {
		return nil, nil, err
	}
	return intent, pgp, nil
}

func (s *cartPaymentService) SubmitPaymentToProvider(ctx context.Context, cp *cartpayment.CartPayment, intent *cartpayment.PaymentIntent, p *payer.Payer, pm *paymentmethod.PaymentMethod) (*gateway.ProviderIntent, error) {
	req := &gateway.CreateIntentRequest{
		Amount:                  intent.Amount,
		Currency:                intent.Currency,
		CustomerResourceID:      p.ProviderCustomerID,
		PaymentMethodResourceID: pm.ProviderResourceID,
		CaptureMethod:           intent.CaptureMethod,
		IdempotencyKey:          intent.IdempotencyKey,
		StatementDescriptor:     types.FromNillableString(cp.PayerStatementDescription),
		Description:             types.FromNillableString(cp.ClientDescription),
		Metadata: map[string]string{
			"cart_payment_id":   cp.ID,
			"payment_intent_id": intent.ID,
			"reference_id":      cp.CorrelationIDs.ReferenceID,
			"reference_type":    cp.CorrelationIDs.ReferenceType,
		},
		Split: cp.SplitPayment,
	}

	s.Logger.Infow("submitting payment to provider",
		"cart_payment_id", cp.ID,
		"payment_intent_id", intent.ID,
		"amount", intent.Amount.String(),
		"capture_method", intent.CaptureMethod,
	)

	return s.Gateway.CreatePaymentIntent(ctx, req)
}

// UpdateStateAfterProviderSubmission stamps the provider's result onto both
// mirrors. Safe to re-apply: a replay writes the same values again.
func (s *cartPaymentService) UpdateStateAfterProviderSubmission(ctx context.Context, intent *cartpayment.PaymentIntent, pgp *cartpayment.PgpPaymentIntent, provider *gateway.ProviderIntent) error {
	intent.IntentStatus = provider.Status
	intent.AmountCapturable = provider.AmountCapturable
	intent.AmountReceived = provider.AmountReceived

	pgp.IntentStatus = provider.Status
	pgp.Amount = provider.Amount
	pgp.AmountCapturable = provider.AmountCapturable
	pgp.AmountReceived = provider.AmountReceived
	if provider.ResourceID != "" {
		pgp.ResourceID = lo.ToPtr(provider.ResourceID)
	}
	if provider.ChargeResourceID != "" {
		pgp.ChargeResourceID = lo.ToPtr(provider.ChargeResourceID)
	}

	// Commando results carry no resource id; reconciliation reattaches it
	if provider.Provisional {
		s.Logger.Warnw("recording provisional provider acceptance",
			"payment_intent_id", intent.ID)
	}

	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.CartPaymentRepo.UpdatePaymentIntent(ctx, intent); err != nil {
			return err
		}
		return s.CartPaymentRepo.UpdatePgpPaymentIntent(ctx, pgp)
	})
}

func (s *cartPaymentService) UpdateStateAfterProviderError(ctx context.Context, intent *cartpayment.PaymentIntent, pgp *cartpayment.PgpPaymentIntent, provErr error) error {
	intent.IntentStatus = types.PaymentIntentStatusFailed

	pgp.IntentStatus = types.PaymentIntentStatusFailed
	pgp.ErrorCode = lo.ToPtr(ierr.CodeFromErr(provErr))
	pgp.ErrorMessage = lo.ToPtr(provErr.Error())

	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.CartPaymentRepo.UpdatePaymentIntent(ctx, intent); err != nil {
			return err
		}
		return s.CartPaymentRepo.UpdatePgpPaymentIntent(ctx, pgp)
	})
}

// UpdateStateAfterCapture moves both mirrors to SUCCEEDED. The received
// amount is the capturable amount at capture time; capturable drops to zero.
func (s *cartPaymentService) UpdateStateAfterCapture(ctx context.Context, intent *cartpayment.PaymentIntent, pgp *cartpayment.PgpPaymentIntent, provider *gateway.ProviderIntent) error {
	now := time.Now().UTC()

	intent.IntentStatus = types.PaymentIntentStatusSucceeded
	intent.AmountReceived = intent.AmountCapturable
	intent.AmountCapturable = decimal.Zero
	intent.CapturedAt = &now

	pgp.IntentStatus = types.PaymentIntentStatusSucceeded
	pgp.AmountReceived = provider.AmountReceived
	pgp.AmountCapturable = decimal.Zero
	if provider.ChargeResourceID != "" {
		pgp.ChargeResourceID = lo.ToPtr(provider.ChargeResourceID)
	}

	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.CartPaymentRepo.UpdatePaymentIntent(ctx, intent); err != nil {
			return err
		}
		return s.CartPaymentRepo.UpdatePgpPaymentIntent(ctx, pgp)
	})
}

func (s *cartPaymentService) UpdateStateAfterCancel(ctx context.Context, intent *cartpayment.PaymentIntent, pgp *cartpayment.PgpPaymentIntent) error {
	now := time.Now().UTC()

	intent.IntentStatus = types.PaymentIntentStatusCancelled
	intent.Amount = decimal.Zero
	intent.AmountCapturable = decimal.Zero
	intent.CancelledAt = &now

	pgp.IntentStatus = types.PaymentIntentStatusCancelled
	pgp.Amount = decimal.Zero
	pgp.AmountCapturable = decimal.Zero

	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.CartPaymentRepo.UpdatePaymentIntent(ctx, intent); err != nil {
			return err
		}
		return s.CartPaymentRepo.UpdatePgpPaymentIntent(ctx, pgp)
	})
}

// ClassifyIntent derives what must happen next for an intent. It is a pure
// function of the intent, its provider mirrors, and its refunds.
func ClassifyIntent(intent *cartpayment.PaymentIntent, pgps []*cartpayment.PgpPaymentIntent, refunds []*cartpayment.Refund) types.IntentPhase {
	switch intent.IntentStatus {
	case types.PaymentIntentStatusInit:
		for _, pgp := range pgps {
			if pgp.ResourceID != nil {
				return types.IntentPhaseInFlightToProvider
			}
		}
		return types.IntentPhaseNew
	case types.PaymentIntentStatusRequiresCapture:
		return types.IntentPhaseAuthorizedAwaitingCapture
	case types.PaymentIntentStatusSucceeded:
		if len(refunds) == 0 {
			return types.IntentPhaseCaptured
		}
		if intent.Amount.IsZero() {
			return types.IntentPhaseFullyRefunded
		}
		return types.IntentPhasePartiallyRefunded
	case types.PaymentIntentStatusCancelled:
		return types.IntentPhaseCancelled
	default:
		return types.IntentPhaseFailed
	}
}
