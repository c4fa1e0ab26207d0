package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cartpay/cartpay/internal/domain/cartpayment"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/types"
)

var _ cartpayment.Repository = (*InMemoryCartPaymentStore)(nil)

// InMemoryCartPaymentStore mimics the postgres repository, including the
// unique index on (cart_payment_id, idempotency_key) for payment intents.
type InMemoryCartPaymentStore struct {
	mu           sync.RWMutex
	cartPayments map[string]*cartpayment.CartPayment
	intents      map[string]*cartpayment.PaymentIntent
	pgpIntents   map[string]*cartpayment.PgpPaymentIntent
	adjustments  map[string]*cartpayment.AdjustmentHistory
	refunds      map[string]*cartpayment.Refund
	pgpRefunds   map[string]*cartpayment.PgpRefund
	lockCalls    int
}

func NewInMemoryCartPaymentStore() *InMemoryCartPaymentStore {
	s := &InMemoryCartPaymentStore{}
	s.Clear()
	return s
}

func (s *InMemoryCartPaymentStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartPayments = make(map[string]*cartpayment.CartPayment)
	s.intents = make(map[string]*cartpayment.PaymentIntent)
	s.pgpIntents = make(map[string]*cartpayment.PgpPaymentIntent)
	s.adjustments = make(map[string]*cartpayment.AdjustmentHistory)
	s.refunds = make(map[string]*cartpayment.Refund)
	s.pgpRefunds = make(map[string]*cartpayment.PgpRefund)
	s.lockCalls = 0
}

func (s *InMemoryCartPaymentStore) CreateCartPayment(ctx context.Context, cp *cartpayment.CartPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cartPayments[cp.ID]; ok {
		return ierr.NewError("cart payment already exists").
			WithHint("A cart payment with this id already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	copied := *cp
	s.cartPayments[cp.ID] = &copied
	return nil
}

func (s *InMemoryCartPaymentStore) GetCartPaymentByID(ctx context.Context, id string) (*cartpayment.CartPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.cartPayments[id]
	if !ok {
		return nil, ierr.NewError("cart payment not found").
			WithHintf("Cart payment %s does not exist", id).
			Mark(ierr.ErrCartPaymentNotFound)
	}
	copied := *cp
	return &copied, nil
}

func (s *InMemoryCartPaymentStore) GetCartPaymentByIDForUpdate(ctx context.Context, id string) (*cartpayment.CartPayment, error) {
	s.mu.Lock()
	s.lockCalls++
	s.mu.Unlock()
	return s.GetCartPaymentByID(ctx, id)
}

// LockCalls reports how many times a mutator took the cart payment row lock
func (s *InMemoryCartPaymentStore) LockCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lockCalls
}

func (s *InMemoryCartPaymentStore) UpdateCartPayment(ctx context.Context, cp *cartpayment.CartPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cartPayments[cp.ID]; !ok {
		return ierr.NewError("cart payment not found").
			WithHintf("Cart payment %s does not exist", cp.ID).
			Mark(ierr.ErrCartPaymentNotFound)
	}
	copied := *cp
	copied.UpdatedAt = time.Now().UTC()
	s.cartPayments[cp.ID] = &copied
	return nil
}

func (s *InMemoryCartPaymentStore) CreatePaymentIntent(ctx context.Context, intent *cartpayment.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.intents {
		if existing.CartPaymentID == intent.CartPaymentID && existing.IdempotencyKey == intent.IdempotencyKey {
			return ierr.NewError("duplicate idempotency key").
				WithHint("A payment intent with this idempotency key already exists").
				Mark(ierr.ErrAlreadyExists)
		}
	}
	copied := *intent
	s.intents[intent.ID] = &copied
	return nil
}

func (s *InMemoryCartPaymentStore) UpdatePaymentIntent(ctx context.Context, intent *cartpayment.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intents[intent.ID]; !ok {
		return ierr.NewError("payment intent not found").
			WithHintf("Payment intent %s does not exist", intent.ID).
			Mark(ierr.ErrNotFound)
	}
	copied := *intent
	copied.UpdatedAt = time.Now().UTC()
	s.intents[intent.ID] = &copied
	return nil
}

func (s *InMemoryCartPaymentStore) GetPaymentIntent(ctx context.Context, id string) (*cartpayment.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	intent, ok := s.intents[id]
	if !ok {
		return nil, ierr.NewError("payment intent not found").
			WithHintf("Payment intent %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	copied := *intent
	return &copied, nil
}

func (s *InMemoryCartPaymentStore) ListPaymentIntents(ctx context.Context, cartPaymentID string) ([]*cartpayment.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*cartpayment.PaymentIntent
	for _, intent := range s.intents {
		if intent.CartPaymentID == cartPaymentID {
			copied := *intent
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryCartPaymentStore) GetPaymentIntentForIdempotencyKey(ctx context.Context, cartPaymentID, key string) (*cartpayment.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, intent := range s.intents {
		if intent.CartPaymentID == cartPaymentID && intent.IdempotencyKey == key {
			copied := *intent
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *InMemoryCartPaymentStore) GetPaymentIntentByPayerAndKey(ctx context.Context, payerID, key string) (*cartpayment.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, intent := range s.intents {
		if intent.IdempotencyKey != key {
			continue
		}
		cp, ok := s.cartPayments[intent.CartPaymentID]
		if ok && cp.PayerID == payerID {
			copied := *intent
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *InMemoryCartPaymentStore) FindIntentsRequiringCaptureBeforeCutoff(ctx context.Context, cutoff time.Time) (cartpayment.IntentCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []*cartpayment.PaymentIntent
	for _, intent := range s.intents {
		if intent.IntentStatus != types.PaymentIntentStatusRequiresCapture {
			continue
		}
		if intent.CaptureAfter == nil || intent.CaptureAfter.After(cutoff) {
			continue
		}
		copied := *intent
		due = append(due, &copied)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CaptureAfter.Before(*due[j].CaptureAfter) })
	return &sliceIntentCursor{intents: due}, nil
}

type sliceIntentCursor struct {
	intents []*cartpayment.PaymentIntent
	pos     int
}

func (c *sliceIntentCursor) Next(ctx context.Context) (*cartpayment.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.pos >= len(c.intents) {
		return nil, nil
	}
	intent := c.intents[c.pos]
	c.pos++
	return intent, nil
}

func (c *sliceIntentCursor) Close() error {
	return nil
}

func (s *InMemoryCartPaymentStore) CreatePgpPaymentIntent(ctx context.Context, pgp *cartpayment.PgpPaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *pgp
	s.pgpIntents[pgp.ID] = &copied
	return nil
}

func (s *InMemoryCartPaymentStore) UpdatePgpPaymentIntent(ctx context.Context, pgp *cartpayment.PgpPaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pgpIntents[pgp.ID]; !ok {
		return ierr.NewError("pgp payment intent not found").
			WithHintf("Pgp payment intent %s does not exist", pgp.ID).
			Mark(ierr.ErrNotFound)
	}
	copied := *pgp
	copied.UpdatedAt = time.Now().UTC()
	s.pgpIntents[pgp.ID] = &copied
	return nil
}

func (s *InMemoryCartPaymentStore) ListPgpPaymentIntents(ctx context.Context, paymentIntentID string) ([]*cartpayment.PgpPaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*cartpayment.PgpPaymentIntent
	for _, pgp := range s.pgpIntents {
		if pgp.PaymentIntentID == paymentIntentID {
			copied := *pgp
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryCartPaymentStore) CreateAdjustmentHistory(ctx context.Context, adj *cartpayment.AdjustmentHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.adjustments {
		if existing.PaymentIntentID == adj.PaymentIntentID && existing.IdempotencyKey == adj.IdempotencyKey {
			return ierr.NewError("duplicate idempotency key").
				WithHint("An adjustment with this idempotency key already exists").
				Mark(ierr.ErrAlreadyExists)
		}
	}
	copied := *adj
	s.adjustments[adj.ID] = &copied
	return nil
}

func (s *InMemoryCartPaymentStore) GetAdjustmentHistoryForIdempotencyKey(ctx context.Context, paymentIntentID, key string) (*cartpayment.AdjustmentHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, adj := range s.adjustments {
		if adj.PaymentIntentID == paymentIntentID && adj.IdempotencyKey == key {
			copied := *adj
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *InMemoryCartPaymentStore) CreateRefund(ctx context.Context, refund *cartpayment.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.refunds {
		if existing.PaymentIntentID == refund.PaymentIntentID && existing.IdempotencyKey == refund.IdempotencyKey {
			return ierr.NewError("duplicate idempotency key").
				WithHint("A refund with this idempotency key already exists").
				Mark(ierr.ErrAlreadyExists)
		}
	}
	copied := *refund
	s.refunds[refund.ID] = &copied
	return nil
}

func (s *InMemoryCartPaymentStore) UpdateRefund(ctx context.Context, refund *cartpayment.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refunds[refund.ID]; !ok {
		return ierr.NewError("refund not found").
			WithHintf("Refund %s does not exist", refund.ID).
			Mark(ierr.ErrNotFound)
	}
	copied := *refund
	copied.UpdatedAt = time.Now().UTC()
	s.refunds[refund.ID] = &copied
	return nil
}

func (s *InMemoryCartPaymentStore) GetRefundForIdempotencyKey(ctx context.Context, paymentIntentID, key string) (*cartpayment.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, refund := range s.refunds {
		if refund.PaymentIntentID == paymentIntentID && refund.IdempotencyKey == key {
			copied := *refund
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *InMemoryCartPaymentStore) ListRefunds(ctx context.Context, paymentIntentID string) ([]*cartpayment.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*cartpayment.Refund
	for _, refund := range s.refunds {
		if refund.PaymentIntentID == paymentIntentID {
			copied := *refund
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryCartPaymentStore) CreatePgpRefund(ctx context.Context, pgpRefund *cartpayment.PgpRefund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *pgpRefund
	s.pgpRefunds[pgpRefund.ID] = &copied
	return nil
}

func (s *InMemoryCartPaymentStore) UpdatePgpRefund(ctx context.Context, pgpRefund *cartpayment.PgpRefund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pgpRefunds[pgpRefund.ID]; !ok {
		return ierr.NewError("pgp refund not found").
			WithHintf("Pgp refund %s does not exist", pgpRefund.ID).
			Mark(ierr.ErrNotFound)
	}
	copied := *pgpRefund
	copied.UpdatedAt = time.Now().UTC()
	s.pgpRefunds[pgpRefund.ID] = &copied
	return nil
}

func (s *InMemoryCartPaymentStore) GetPgpRefundByRefundID(ctx context.Context, refundID string) (*cartpayment.PgpRefund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pgpRefund := range s.pgpRefunds {
		if pgpRefund.RefundID == refundID {
			copied := *pgpRefund
			return &copied, nil
		}
	}
	return nil, nil
}
