package payer

import (
	"context"
)

// Repository defines the interface for payer persistence
type Repository interface {
	Create(ctx context.Context, p *Payer) error
	Get(ctx context.Context, id string) (*Payer, error)
	GetByLegacyConsumerID(ctx context.Context, consumerID int64) (*Payer, error)
}
