package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cartpay/cartpay/internal/domain/legacycharge"
	ierr "github.com/cartpay/cartpay/internal/errors"
)

var _ legacycharge.Repository = (*InMemoryLegacyChargeStore)(nil)

// InMemoryLegacyChargeStore mimics the postgres repository, including the
// sequence-assigned consumer charge id and the unique index on
// (consumer_id, idempotency_key).
type InMemoryLegacyChargeStore struct {
	mu              sync.RWMutex
	nextID          int64
	consumerCharges map[int64]*legacycharge.ConsumerCharge
	stripeCharges   map[string]*legacycharge.StripeCharge
}

func NewInMemoryLegacyChargeStore() *InMemoryLegacyChargeStore {
	s := &InMemoryLegacyChargeStore{}
	s.Clear()
	return s
}

func (s *InMemoryLegacyChargeStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = 1
	s.consumerCharges = make(map[int64]*legacycharge.ConsumerCharge)
	s.stripeCharges = make(map[string]*legacycharge.StripeCharge)
}

func (s *InMemoryLegacyChargeStore) CreateConsumerCharge(ctx context.Context, charge *legacycharge.ConsumerCharge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.consumerCharges {
		if existing.ConsumerID == charge.ConsumerID && existing.IdempotencyKey == charge.IdempotencyKey {
			return ierr.NewError("duplicate idempotency key").
				WithHint("A consumer charge with this idempotency key already exists").
				Mark(ierr.ErrAlreadyExists)
		}
	}
	charge.ID = s.nextID
	s.nextID++
	copied := *charge
	s.consumerCharges[charge.ID] = &copied
	return nil
}

func (s *InMemoryLegacyChargeStore) GetConsumerCharge(ctx context.Context, id int64) (*legacycharge.ConsumerCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	charge, ok := s.consumerCharges[id]
	if !ok {
		return nil, ierr.NewError("consumer charge not found").
			WithHintf("Consumer charge %d does not exist", id).
			Mark(ierr.ErrCartPaymentNotFound)
	}
	copied := *charge
	return &copied, nil
}

func (s *InMemoryLegacyChargeStore) GetConsumerChargeByCartPaymentID(ctx context.Context, cartPaymentID string) (*legacycharge.ConsumerCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, charge := range s.consumerCharges {
		if charge.CartPaymentID == cartPaymentID {
			copied := *charge
			return &copied, nil
		}
	}
	return nil, ierr.NewError("consumer charge not found").
		WithHintf("No consumer charge exists for cart payment %s", cartPaymentID).
		Mark(ierr.ErrCartPaymentNotFound)
}

func (s *InMemoryLegacyChargeStore) CreateStripeCharge(ctx context.Context, charge *legacycharge.StripeCharge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.stripeCharges {
		if existing.ConsumerChargeID == charge.ConsumerChargeID && existing.IdempotencyKey == charge.IdempotencyKey {
			return ierr.NewError("duplicate idempotency key").
				WithHint("A stripe charge with this idempotency key already exists").
				Mark(ierr.ErrAlreadyExists)
		}
	}
	copied := *charge
	s.stripeCharges[charge.ID] = &copied
	return nil
}

func (s *InMemoryLegacyChargeStore) UpdateStripeCharge(ctx context.Context, charge *legacycharge.StripeCharge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stripeCharges[charge.ID]; !ok {
		return ierr.NewError("stripe charge not found").
			WithHintf("Stripe charge %s does not exist", charge.ID).
			Mark(ierr.ErrNotFound)
	}
	copied := *charge
	copied.UpdatedAt = time.Now().UTC()
	s.stripeCharges[charge.ID] = &copied
	return nil
}

func (s *InMemoryLegacyChargeStore) FindChargeByIdempotencyKey(ctx context.Context, consumerChargeID int64, key string) (*legacycharge.StripeCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, charge := range s.stripeCharges {
		if charge.ConsumerChargeID == consumerChargeID && charge.IdempotencyKey == key {
			copied := *charge
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *InMemoryLegacyChargeStore) ListStripeCharges(ctx context.Context, consumerChargeID int64) ([]*legacycharge.StripeCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*legacycharge.StripeCharge
	for _, charge := range s.stripeCharges {
		if charge.ConsumerChargeID == consumerChargeID {
			copied := *charge
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
