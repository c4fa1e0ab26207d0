package service

import (
	"context"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/cartpay/cartpay/internal/domain/cartpayment"
	"github.com/cartpay/cartpay/internal/domain/legacycharge"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/gateway"
	"github.com/cartpay/cartpay/internal/types"
)

// LegacyPaymentService mirrors the payment lifecycle onto the legacy
// consumer-charge and stripe-charge tables older clients still read.
type LegacyPaymentService interface {
	// FindExistingPaymentCharge returns the pre-existing charge pair for an
	// idempotency key, or (nil, nil, nil) when no prior attempt created it.
	// Callers treat a hit as "this step has already been performed".
	FindExistingPaymentCharge(ctx context.Context, consumerChargeID int64, key string) (*legacycharge.ConsumerCharge, *legacycharge.StripeCharge, error)

	// CreateConsumerCharge projects a new cart payment onto the legacy
	// tables. original_total is fixed here and never changes.
	CreateConsumerCharge(ctx context.Context, cp *cartpayment.CartPayment, key string, consumerID int64, countryID int) (*legacycharge.ConsumerCharge, error)

	// CreateStripeCharge appends a pending stripe charge row for a new
	// payment intent under an existing consumer charge
	CreateStripeCharge(ctx context.Context, charge *legacycharge.ConsumerCharge, key string, amount decimal.Decimal, cardID *int64, description *string) (*legacycharge.StripeCharge, error)

	// UpdateStateAfterProviderSubmission stamps the provider's charge
	// resource id and status onto the stripe charge row
	UpdateStateAfterProviderSubmission(ctx context.Context, charge *legacycharge.StripeCharge, provider *gateway.ProviderIntent) error
	UpdateStateAfterProviderError(ctx context.Context, charge *legacycharge.StripeCharge, provErr error) error

	// UpdateChargeAmount mirrors an in-place intent amount change
	UpdateChargeAmount(ctx context.Context, charge *legacycharge.StripeCharge, amount decimal.Decimal) error
	// AddRefundToCharge accumulates amount_refunded across refunds
	AddRefundToCharge(ctx context.Context, charge *legacycharge.StripeCharge, refundAmount decimal.Decimal) error
	MarkChargeSucceeded(ctx context.Context, charge *legacycharge.StripeCharge) error
	MarkChargeCancelled(ctx context.Context, charge *legacycharge.StripeCharge) error

	GetConsumerCharge(ctx context.Context, id int64) (*legacycharge.ConsumerCharge, error)
	GetStripeChargeForIntent(ctx context.Context, intent *cartpayment.PaymentIntent) (*legacycharge.StripeCharge, error)
}

type legacyPaymentService struct {
	ServiceParams
}

func NewLegacyPaymentService(params ServiceParams) LegacyPaymentService {
	return &legacyPaymentService{ServiceParams: params}
}

func (s *legacyPaymentService) FindExistingPaymentCharge(ctx context.Context, consumerChargeID int64, key string) (*legacycharge.ConsumerCharge, *legacycharge.StripeCharge, error) {
	stripeCharge, err := s.LegacyChargeRepo.FindChargeByIdempotencyKey(ctx, consumerChargeID, key)
	if err != nil {
		return nil, nil, err
	}
	if stripeCharge == nil {
		return nil, nil, nil
	}

	consumerCharge, err := s.LegacyChargeRepo.GetConsumerCharge(ctx, consumerChargeID)
	if err != nil {
		return nil, nil, err
	}
	return consumerCharge, stripeCharge, nil
}

func (s *legacyPaymentService) CreateConsumerCharge(ctx context.Context, cp *cartpayment.CartPayment, key string, consumerID int64, countryID int) (*legacycharge.ConsumerCharge, error) {
	charge := &legacycharge.ConsumerCharge{
		CartPaymentID:  cp.ID,
		ConsumerID:     consumerID,
		CountryID:      countryID,
		OriginalTotal:  cp.Amount,
		Currency:       cp.Currency,
		IdempotencyKey: key,
		CreatedAt:      cp.CreatedAt,
		TenantID:       types.GetTenantID(ctx),
	}

	if err := s.LegacyChargeRepo.CreateConsumerCharge(ctx, charge); err != nil {
		return nil, err
	}
	return charge, nil
}

func (s *legacyPaymentService) CreateStripeCharge(ctx context.Context, charge *legacycharge.ConsumerCharge, key string, amount decimal.Decimal, cardID *int64, description *string) (*legacycharge.StripeCharge, error) {
	stripeCharge := &legacycharge.StripeCharge{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_STRIPE_CHARGE),
		ConsumerChargeID: charge.ID,
		IdempotencyKey:   key,
		Amount:           amount,
		AmountRefunded:   decimal.Zero,
		Currency:         charge.Currency,
		ChargeStatus:     types.LegacyChargeStatusPending,
		CardID:           cardID,
		Description:      description,
		BaseModel:        types.GetDefaultBaseModel(ctx),
	}

	if err := s.LegacyChargeRepo.CreateStripeCharge(ctx, stripeCharge); err != nil {
		return nil, err
	}
	return stripeCharge, nil
}

func (s *legacyPaymentService) UpdateStateAfterProviderSubmission(ctx context.Context, charge *legacycharge.StripeCharge, provider *gateway.ProviderIntent) error {
	charge.ChargeStatus = types.LegacyChargeStatusSucceeded
	if provider.ChargeResourceID != "" {
		charge.ChargeResourceID = lo.ToPtr(provider.ChargeResourceID)
	}
	return s.LegacyChargeRepo.UpdateStripeCharge(ctx, charge)
}

func (s *legacyPaymentService) UpdateStateAfterProviderError(ctx context.Context, charge *legacycharge.StripeCharge, provErr error) error {
	charge.ChargeStatus = types.LegacyChargeStatusFailed
	charge.ErrorCode = lo.ToPtr(ierr.CodeFromErr(provErr))
	charge.ErrorDescription = lo.ToPtr(provErr.Error())
	return s.LegacyChargeRepo.UpdateStripeCharge(ctx, charge)
}

func (s *legacyPaymentService) UpdateChargeAmount(ctx context.Context, charge *legacycharge.StripeCharge, amount decimal.Decimal) error {
	charge.Amount = amount
	return s.LegacyChargeRepo.UpdateStripeCharge(ctx, charge)
}

func (s *legacyPaymentService) AddRefundToCharge(ctx context.Context, charge *legacycharge.StripeCharge, refundAmount decimal.Decimal) error {
	charge.AmountRefunded = charge.AmountRefunded.Add(refundAmount)
	return s.LegacyChargeRepo.UpdateStripeCharge(ctx, charge)
}

func (s *legacyPaymentService) MarkChargeSucceeded(ctx context.Context, charge *legacycharge.StripeCharge) error {
	charge.ChargeStatus = types.LegacyChargeStatusSucceeded
	return s.LegacyChargeRepo.UpdateStripeCharge(ctx, charge)
}

func (s *legacyPaymentService) MarkChargeCancelled(ctx context.Context, charge *legacycharge.StripeCharge) error {
	charge.ChargeStatus = types.LegacyChargeStatusCancelled
	return s.LegacyChargeRepo.UpdateStripeCharge(ctx, charge)
}

func (s *legacyPaymentService) GetConsumerCharge(ctx context.Context, id int64) (*legacycharge.ConsumerCharge, error) {
	return s.LegacyChargeRepo.GetConsumerCharge(ctx, id)
}

// GetStripeChargeForIntent finds the stripe charge row created alongside a
// payment intent; the pair shares an idempotency key.
func (s *legacyPaymentService) GetStripeChargeForIntent(ctx context.Context, intent *cartpayment.PaymentIntent) (*legacycharge.StripeCharge, error) {
	charge, err := s.LegacyChargeRepo.FindChargeByIdempotencyKey(ctx, intent.LegacyConsumerChargeID, intent.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if charge == nil {
		return nil, ierr.NewError("stripe charge not found for intent").
			WithHintf("No legacy charge row exists for intent %s", intent.ID).
			Mark(ierr.ErrNotFound)
	}
	return charge, nil
}
