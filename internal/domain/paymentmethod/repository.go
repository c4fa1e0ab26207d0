package paymentmethod

import (
	"context"
)

// Repository defines the interface for payment method persistence
type Repository interface {
	Create(ctx context.Context, pm *PaymentMethod) error
	Get(ctx context.Context, id string) (*PaymentMethod, error)
	GetByLegacyCardID(ctx context.Context, cardID int64) (*PaymentMethod, error)
	ListByPayer(ctx context.Context, payerID string) ([]*PaymentMethod, error)
}
