package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// PaymentIntentStatus represents the lifecycle status of a payment intent.
// The same values are mirrored onto the provider-side intent record so the
// two can be compared directly.
type PaymentIntentStatus string

const (
	PaymentIntentStatusInit            PaymentIntentStatus = "INIT"
	PaymentIntentStatusRequiresCapture PaymentIntentStatus = "REQUIRES_CAPTURE"
	PaymentIntentStatusSucceeded       PaymentIntentStatus = "SUCCEEDED"
	PaymentIntentStatusCancelled       PaymentIntentStatus = "CANCELLED"
	PaymentIntentStatusFailed          PaymentIntentStatus = "FAILED"
)

func (s PaymentIntentStatus) String() string {
	return string(s)
}

func (s PaymentIntentStatus) Validate() error {
	allowed := []PaymentIntentStatus{
		PaymentIntentStatusInit,
		PaymentIntentStatusRequiresCapture,
		PaymentIntentStatusSucceeded,
		PaymentIntentStatusCancelled,
		PaymentIntentStatusFailed,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid payment intent status: %s", s)
	}
	return nil
}

// IsTerminal reports whether no further status transition is possible.
// A SUCCEEDED intent can still change amount fields through refunds.
func (s PaymentIntentStatus) IsTerminal() bool {
	return s == PaymentIntentStatusSucceeded ||
		s == PaymentIntentStatusCancelled ||
		s == PaymentIntentStatusFailed
}

// CaptureMethod controls when the provider captures an authorized intent
type CaptureMethod string

const (
	CaptureMethodAuto   CaptureMethod = "AUTO"
	CaptureMethodManual CaptureMethod = "MANUAL"
)

func (m CaptureMethod) String() string {
	return string(m)
}

func (m CaptureMethod) Validate() error {
	allowed := []CaptureMethod{CaptureMethodAuto, CaptureMethodManual}
	if !lo.Contains(allowed, m) {
		return fmt.Errorf("invalid capture method: %s", m)
	}
	return nil
}

// IntentPhase is the derived classification of a payment intent. It is a pure
// function of the intent status, its provider mirror, the amount fields and
// the presence of refunds, and is the single source of truth for what must
// happen next.
type IntentPhase string

const (
	IntentPhaseNew                       IntentPhase = "NEW"
	IntentPhaseInFlightToProvider        IntentPhase = "IN_FLIGHT_TO_PROVIDER"
	IntentPhaseAuthorizedAwaitingCapture IntentPhase = "AUTHORIZED_AWAITING_CAPTURE"
	IntentPhaseCaptured                  IntentPhase = "CAPTURED"
	IntentPhasePartiallyRefunded         IntentPhase = "PARTIALLY_REFUNDED"
	IntentPhaseFullyRefunded             IntentPhase = "FULLY_REFUNDED"
	IntentPhaseCancelled                 IntentPhase = "CANCELLED"
	IntentPhaseFailed                    IntentPhase = "FAILED"
)

func (p IntentPhase) String() string {
	return string(p)
}

// RefundStatus represents the status of a refund
type RefundStatus string

const (
	RefundStatusProcessing RefundStatus = "PROCESSING"
	RefundStatusSucceeded  RefundStatus = "SUCCEEDED"
	RefundStatusFailed     RefundStatus = "FAILED"
)

func (s RefundStatus) String() string {
	return string(s)
}

func (s RefundStatus) Validate() error {
	allowed := []RefundStatus{
		RefundStatusProcessing,
		RefundStatusSucceeded,
		RefundStatusFailed,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid refund status: %s", s)
	}
	return nil
}

// LegacyChargeStatus represents the status of a legacy stripe charge row
type LegacyChargeStatus string

const (
	LegacyChargeStatusPending   LegacyChargeStatus = "PENDING"
	LegacyChargeStatusSucceeded LegacyChargeStatus = "SUCCEEDED"
	LegacyChargeStatusFailed    LegacyChargeStatus = "FAILED"
	LegacyChargeStatusCancelled LegacyChargeStatus = "CANCELLED"
)

func (s LegacyChargeStatus) String() string {
	return string(s)
}

func (s LegacyChargeStatus) Validate() error {
	allowed := []LegacyChargeStatus{
		LegacyChargeStatusPending,
		LegacyChargeStatusSucceeded,
		LegacyChargeStatusFailed,
		LegacyChargeStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid legacy charge status: %s", s)
	}
	return nil
}

// CorrelationIDs carries the client's reference to the order this payment is
// for. Stored as JSONB on the cart payment.
type CorrelationIDs struct {
	ReferenceID   string `json:"reference_id"`
	ReferenceType string `json:"reference_type"`
}

// Scan implements the sql.Scanner interface for CorrelationIDs
func (c *CorrelationIDs) Scan(value interface{}) error {
	if value == nil {
		*c = CorrelationIDs{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}
	return json.Unmarshal(bytes, c)
}

// Value implements the driver.Valuer interface for CorrelationIDs
func (c CorrelationIDs) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// SplitPayment describes an optional payout split: the connected account that
// receives the funds and the application fee retained on the platform.
type SplitPayment struct {
	PayoutAccountID      string          `json:"payout_account_id"`
	ApplicationFeeAmount decimal.Decimal `json:"application_fee_amount"`
}

// Scan implements the sql.Scanner interface for SplitPayment
func (s *SplitPayment) Scan(value interface{}) error {
	if value == nil {
		*s = SplitPayment{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for SplitPayment
func (s SplitPayment) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// LegacyPayment carries the identifiers older clients still key their charge
// records on: the consumer, its country, and the raw provider customer/card
// handles. Stored as JSONB on the cart payment and echoed back on the legacy
// create flow.
type LegacyPayment struct {
	ConsumerID            int64    `json:"consumer_id"`
	CountryID             int      `json:"country_id"`
	StripeCardID          int64    `json:"stripe_card_id,omitempty"`
	StripeCustomerID      string   `json:"stripe_customer_id,omitempty"`
	StripeCardResourceID  string   `json:"stripe_card_resource_id,omitempty"`
	AdditionalPaymentInfo Metadata `json:"additional_payment_info,omitempty"`
}

// Scan implements the sql.Scanner interface for LegacyPayment
func (l *LegacyPayment) Scan(value interface{}) error {
	if value == nil {
		*l = LegacyPayment{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}
	return json.Unmarshal(bytes, l)
}

// Value implements the driver.Valuer interface for LegacyPayment
func (l LegacyPayment) Value() (driver.Value, error) {
	return json.Marshal(l)
}
