package cartpayment

import (
	"context"
	"time"
)

// Repository defines the interface for cart payment persistence
type Repository interface {
	// Cart payment operations
	CreateCartPayment(ctx context.Context, cp *CartPayment) error
	GetCartPaymentByID(ctx context.Context, id string) (*CartPayment, error)
	// GetCartPaymentByIDForUpdate locks the cart payment row for the
	// duration of the surrounding transaction. All mutations of one cart
	// payment serialize through this lock.
	GetCartPaymentByIDForUpdate(ctx context.Context, id string) (*CartPayment, error)
	UpdateCartPayment(ctx context.Context, cp *CartPayment) error

	// Payment intent operations
	CreatePaymentIntent(ctx context.Context, intent *PaymentIntent) error
	UpdatePaymentIntent(ctx context.Context, intent *PaymentIntent) error
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
	// ListPaymentIntents returns a cart payment's intents ordered by
	// creation time
	ListPaymentIntents(ctx context.Context, cartPaymentID string) ([]*PaymentIntent, error)
	GetPaymentIntentForIdempotencyKey(ctx context.Context, cartPaymentID, key string) (*PaymentIntent, error)
	// GetPaymentIntentByPayerAndKey is the cross-cart idempotency probe for
	// create_payment replays
	GetPaymentIntentByPayerAndKey(ctx context.Context, payerID, key string) (*PaymentIntent, error)
	// FindIntentsRequiringCaptureBeforeCutoff streams intents in
	// REQUIRES_CAPTURE whose capture_after has passed. The cursor is finite
	// and not restartable within a run.
	FindIntentsRequiringCaptureBeforeCutoff(ctx context.Context, cutoff time.Time) (IntentCursor, error)

	// Pgp payment intent operations
	CreatePgpPaymentIntent(ctx context.Context, pgp *PgpPaymentIntent) error
	UpdatePgpPaymentIntent(ctx context.Context, pgp *PgpPaymentIntent) error
	ListPgpPaymentIntents(ctx context.Context, paymentIntentID string) ([]*PgpPaymentIntent, error)

	// Adjustment history operations
	CreateAdjustmentHistory(ctx context.Context, adj *AdjustmentHistory) error
	GetAdjustmentHistoryForIdempotencyKey(ctx context.Context, paymentIntentID, key string) (*AdjustmentHistory, error)

	// Refund operations
	CreateRefund(ctx context.Context, refund *Refund) error
	UpdateRefund(ctx context.Context, refund *Refund) error
	GetRefundForIdempotencyKey(ctx context.Context, paymentIntentID, key string) (*Refund, error)
	ListRefunds(ctx context.Context, paymentIntentID string) ([]*Refund, error)
	CreatePgpRefund(ctx context.Context, pgpRefund *PgpRefund) error
	UpdatePgpRefund(ctx context.Context, pgpRefund *PgpRefund) error
	GetPgpRefundByRefundID(ctx context.Context, refundID string) (*PgpRefund, error)
}

// IntentCursor is a lazy stream over payment intents. Next returns (nil, nil)
// once the stream is exhausted.
type IntentCursor interface {
	Next(ctx context.Context) (*PaymentIntent, error)
	Close() error
}
