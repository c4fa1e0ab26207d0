package paymentmethod

import (
	"github.com/cartpay/cartpay/internal/types"
)

// PaymentMethod is a stored charge instrument. ProviderResourceID is the
// PSP-side handle submitted on intent creation.
type PaymentMethod struct {
	ID                 string  `db:"id" json:"id"`
	PayerID            string  `db:"payer_id" json:"payer_id"`
	ProviderResourceID string  `db:"provider_resource_id" json:"provider_resource_id"`
	LegacyCardID       *int64  `db:"legacy_card_id" json:"legacy_card_id,omitempty"`
	CardLast4          *string `db:"card_last4" json:"card_last4,omitempty"`
	CardBrand          *string `db:"card_brand" json:"card_brand,omitempty"`

	types.BaseModel
}
