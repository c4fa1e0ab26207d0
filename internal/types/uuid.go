package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex cp_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_CART_PAYMENT       = "cp"
	UUID_PREFIX_PAYMENT_INTENT     = "pi"
	UUID_PREFIX_PGP_PAYMENT_INTENT = "pgpi"
	UUID_PREFIX_ADJUSTMENT         = "adj"
	UUID_PREFIX_REFUND             = "ref"
	UUID_PREFIX_PGP_REFUND         = "pgpref"
	UUID_PREFIX_STRIPE_CHARGE      = "charge"
	UUID_PREFIX_PAYER              = "payer"
	UUID_PREFIX_PAYMENT_METHOD     = "pm"

	UUID_PREFIX_WEBHOOK_EVENT = "webhook"
)
