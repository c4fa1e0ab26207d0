package legacycharge

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cartpay/cartpay/internal/types"
)

// ConsumerCharge is the legacy projection of a cart payment. Older clients key
// on its integer id. OriginalTotal is set to the cart amount at creation and
// never changes, no matter how the payment is adjusted later.
type ConsumerCharge struct {
	ID            int64           `db:"id" json:"id"`
	CartPaymentID string          `db:"cart_payment_id" json:"cart_payment_id"`
	ConsumerID    int64           `db:"consumer_id" json:"consumer_id"`
	CountryID     int             `db:"country_id" json:"country_id"`
	OriginalTotal decimal.Decimal `db:"original_total" json:"original_total"`
	Currency      string          `db:"currency" json:"currency"`
	IdempotencyKey string         `db:"idempotency_key" json:"idempotency_key"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	TenantID      string          `db:"tenant_id" json:"tenant_id"`
}

// StripeCharge is the legacy per-attempt charge row under a consumer charge.
// Amount tracks the intent's remaining amount; AmountRefunded accumulates
// across refunds.
type StripeCharge struct {
	ID               string                   `db:"id" json:"id"`
	ConsumerChargeID int64                    `db:"consumer_charge_id" json:"consumer_charge_id"`
	IdempotencyKey   string                   `db:"idempotency_key" json:"idempotency_key"`
	Amount           decimal.Decimal          `db:"amount" json:"amount"`
	AmountRefunded   decimal.Decimal          `db:"amount_refunded" json:"amount_refunded"`
	Currency         string                   `db:"currency" json:"currency"`
	ChargeStatus     types.LegacyChargeStatus `db:"charge_status" json:"charge_status"`
	ChargeResourceID *string                  `db:"charge_resource_id" json:"charge_resource_id,omitempty"`
	CardID           *int64                   `db:"card_id" json:"card_id,omitempty"`
	Description      *string                  `db:"description" json:"description,omitempty"`
	ErrorCode        *string                  `db:"error_code" json:"error_code,omitempty"`
	ErrorDescription *string                  `db:"error_description" json:"error_description,omitempty"`

	types.BaseModel
}
