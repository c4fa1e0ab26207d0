package payer

import (
	"github.com/cartpay/cartpay/internal/types"
)

// Payer is the account money is charged from. ProviderCustomerID is the PSP
// customer handle; LegacyConsumerID is how older clients refer to the payer.
type Payer struct {
	ID                 string  `db:"id" json:"id"`
	Email              *string `db:"email" json:"email,omitempty"`
	Country            string  `db:"country" json:"country"`
	ProviderCustomerID string  `db:"provider_customer_id" json:"provider_customer_id"`
	LegacyConsumerID   int64   `db:"legacy_consumer_id" json:"legacy_consumer_id"`

	types.BaseModel
}
