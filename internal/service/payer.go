package service

import (
	"context"
	"time"

	"github.com/cartpay/cartpay/internal/cache"
	"github.com/cartpay/cartpay/internal/domain/payer"
	"github.com/cartpay/cartpay/internal/types"
)

// PayerService resolves payers for the processor. Lookups are cached; payers
// change rarely and every payment resolves one.
type PayerService interface {
	GetPayer(ctx context.Context, id string) (*payer.Payer, error)
	GetPayerByLegacyConsumerID(ctx context.Context, consumerID int64) (*payer.Payer, error)
}

type payerService struct {
	ServiceParams
}

func NewPayerService(params ServiceParams) PayerService {
	return &payerService{ServiceParams: params}
}

const payerCacheTTL = 5 * time.Minute

func (s *payerService) GetPayer(ctx context.Context, id string) (*payer.Payer, error) {
	key := cache.GenerateKey(cache.PrefixPayer, types.GetTenantID(ctx), "id", id)
	if cached, found := s.Cache.Get(ctx, key); found {
		if p, ok := cached.(*payer.Payer); ok {
			return p, nil
		}
	}

	p, err := s.PayerRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.Cache.Set(ctx, key, p, payerCacheTTL)
	return p, nil
}

func (s *payerService) GetPayerByLegacyConsumerID(ctx context.Context, consumerID int64) (*payer.Payer, error) {
	key := cache.GenerateKey(cache.PrefixPayer, types.GetTenantID(ctx), "consumer", consumerID)
	if cached, found := s.Cache.Get(ctx, key); found {
		if p, ok := cached.(*payer.Payer); ok {
			return p, nil
		}
	}

	p, err := s.PayerRepo.GetByLegacyConsumerID(ctx, consumerID)
	if err != nil {
		return nil, err
	}

	s.Cache.Set(ctx, key, p, payerCacheTTL)
	return p, nil
}
