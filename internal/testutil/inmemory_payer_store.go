package testutil

import (
	"context"
	"sync"

	"github.com/cartpay/cartpay/internal/domain/payer"
	ierr "github.com/cartpay/cartpay/internal/errors"
)

var _ payer.Repository = (*InMemoryPayerStore)(nil)

type InMemoryPayerStore struct {
	mu     sync.RWMutex
	payers map[string]*payer.Payer
}

func NewInMemoryPayerStore() *InMemoryPayerStore {
	s := &InMemoryPayerStore{}
	s.Clear()
	return s
}

func (s *InMemoryPayerStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payers = make(map[string]*payer.Payer)
}

func (s *InMemoryPayerStore) Create(ctx context.Context, p *payer.Payer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *p
	s.payers[p.ID] = &copied
	return nil
}

func (s *InMemoryPayerStore) Get(ctx context.Context, id string) (*payer.Payer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payers[id]
	if !ok {
		return nil, ierr.NewError("payer not found").
			WithHintf("Payer %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	copied := *p
	return &copied, nil
}

func (s *InMemoryPayerStore) GetByLegacyConsumerID(ctx context.Context, consumerID int64) (*payer.Payer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payers {
		if p.LegacyConsumerID == consumerID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, ierr.NewError("payer not found").
		WithHintf("No payer exists for consumer %d", consumerID).
		Mark(ierr.ErrNotFound)
}
