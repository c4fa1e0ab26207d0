package service

import (
	"context"
	"time"

	"github.com/cartpay/cartpay/internal/cache"
	"github.com/cartpay/cartpay/internal/domain/paymentmethod"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/types"
)

// PaymentMethodService resolves charge instruments and enforces that a method
// belongs to the payer using it
type PaymentMethodService interface {
	// GetPaymentMethodForPayer fails with PAYMENT_METHOD_PAYER_MISMATCH when
	// the method exists but belongs to a different payer
	GetPaymentMethodForPayer(ctx context.Context, id, payerID string) (*paymentmethod.PaymentMethod, error)
	GetPaymentMethodByLegacyCardID(ctx context.Context, cardID int64, payerID string) (*paymentmethod.PaymentMethod, error)
}

type paymentMethodService struct {
	ServiceParams
}

func NewPaymentMethodService(params ServiceParams) PaymentMethodService {
	return &paymentMethodService{ServiceParams: params}
}

const paymentMethodCacheTTL = 5 * time.Minute

func (s *paymentMethodService) GetPaymentMethodForPayer(ctx context.Context, id, payerID string) (*paymentmethod.PaymentMethod, error) {
	key := cache.GenerateKey(cache.PrefixPaymentMethod, types.GetTenantID(ctx), "id", id)

	var pm *paymentmethod.PaymentMethod
	if cached, found := s.Cache.Get(ctx, key); found {
		if cachedPM, ok := cached.(*paymentmethod.PaymentMethod); ok {
			pm = cachedPM
		}
	}

	if pm == nil {
		var err error
		pm, err = s.PaymentMethodRepo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		s.Cache.Set(ctx, key, pm, paymentMethodCacheTTL)
	}

	return s.checkOwnership(pm, payerID)
}

func (s *paymentMethodService) GetPaymentMethodByLegacyCardID(ctx context.Context, cardID int64, payerID string) (*paymentmethod.PaymentMethod, error) {
	key := cache.GenerateKey(cache.PrefixPaymentMethod, types.GetTenantID(ctx), "card", cardID)

	var pm *paymentmethod.PaymentMethod
	if cached, found := s.Cache.Get(ctx, key); found {
		if cachedPM, ok := cached.(*paymentmethod.PaymentMethod); ok {
			pm = cachedPM
		}
	}

	if pm == nil {
		var err error
		pm, err = s.PaymentMethodRepo.GetByLegacyCardID(ctx, cardID)
		if err != nil {
			return nil, err
		}
		s.Cache.Set(ctx, key, pm, paymentMethodCacheTTL)
	}

	return s.checkOwnership(pm, payerID)
}

func (s *paymentMethodService) checkOwnership(pm *paymentmethod.PaymentMethod, payerID string) (*paymentmethod.PaymentMethod, error) {
	if pm.PayerID != payerID {
		return nil, ierr.NewError("payment method does not belong to payer").
			WithHint("The payment method belongs to a different payer").
			WithReportableDetails(map[string]any{
				"payment_method_id": pm.ID,
				"payer_id":          payerID,
			}).
			Mark(ierr.ErrPaymentMethodMismatch)
	}
	return pm, nil
}
