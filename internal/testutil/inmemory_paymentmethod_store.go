package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/cartpay/cartpay/internal/domain/paymentmethod"
	ierr "github.com/cartpay/cartpay/internal/errors"
)

var _ paymentmethod.Repository = (*InMemoryPaymentMethodStore)(nil)

type InMemoryPaymentMethodStore struct {
	mu      sync.RWMutex
	methods map[string]*paymentmethod.PaymentMethod
}

func NewInMemoryPaymentMethodStore() *InMemoryPaymentMethodStore {
	s := &InMemoryPaymentMethodStore{}
	s.Clear()
	return s
}

func (s *InMemoryPaymentMethodStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods = make(map[string]*paymentmethod.PaymentMethod)
}

func (s *InMemoryPaymentMethodStore) Create(ctx context.Context, pm *paymentmethod.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *pm
	s.methods[pm.ID] = &copied
	return nil
}

func (s *InMemoryPaymentMethodStore) Get(ctx context.Context, id string) (*paymentmethod.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pm, ok := s.methods[id]
	if !ok {
		return nil, ierr.NewError("payment method not found").
			WithHintf("Payment method %s does not exist", id).
			Mark(ierr.ErrPaymentMethodNotFound)
	}
	copied := *pm
	return &copied, nil
}

func (s *InMemoryPaymentMethodStore) GetByLegacyCardID(ctx context.Context, cardID int64) (*paymentmethod.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pm := range s.methods {
		if pm.LegacyCardID != nil && *pm.LegacyCardID == cardID {
			copied := *pm
			return &copied, nil
		}
	}
	return nil, ierr.NewError("payment method not found").
		WithHintf("No payment method exists for card %d", cardID).
		Mark(ierr.ErrPaymentMethodNotFound)
}

func (s *InMemoryPaymentMethodStore) ListByPayer(ctx context.Context, payerID string) ([]*paymentmethod.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*paymentmethod.PaymentMethod
	for _, pm := range s.methods {
		if pm.PayerID == payerID {
			copied := *pm
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
