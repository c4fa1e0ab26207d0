package legacycharge

import (
	"context"
)

// Repository defines the interface for legacy charge persistence
type Repository interface {
	// CreateConsumerCharge persists the consumer charge and fills its
	// sequence-assigned integer id
	CreateConsumerCharge(ctx context.Context, charge *ConsumerCharge) error
	GetConsumerCharge(ctx context.Context, id int64) (*ConsumerCharge, error)
	GetConsumerChargeByCartPaymentID(ctx context.Context, cartPaymentID string) (*ConsumerCharge, error)

	CreateStripeCharge(ctx context.Context, charge *StripeCharge) error
	UpdateStripeCharge(ctx context.Context, charge *StripeCharge) error
	// FindChargeByIdempotencyKey detects a prior attempt's stripe charge row
	FindChargeByIdempotencyKey(ctx context.Context, consumerChargeID int64, key string) (*StripeCharge, error)
	// ListStripeCharges returns a consumer charge's stripe charges ordered
	// by creation time
	ListStripeCharges(ctx context.Context, consumerChargeID int64) ([]*StripeCharge, error)
}
