package postgres

import (
	"context"
	"time"

	"github.com/cartpay/cartpay/internal/domain/legacycharge"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/logger"
	"github.com/cartpay/cartpay/internal/postgres"
	"github.com/cartpay/cartpay/internal/types"
)

type legacyChargeRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewLegacyChargeRepository(db *postgres.DB, logger *logger.Logger) legacycharge.Repository {
	return &legacyChargeRepository{db: db, logger: logger}
}

// CreateConsumerCharge inserts the consumer charge and fills the
// sequence-assigned integer id
func (r *legacyChargeRepository) CreateConsumerCharge(ctx context.Context, charge *legacycharge.ConsumerCharge) error {
	query := `
		INSERT INTO legacy_consumer_charges (
			cart_payment_id, consumer_id, country_id, original_total,
			currency, idempotency_key, created_at, tenant_id
		) VALUES (
			:cart_payment_id, :consumer_id, :country_id, :original_total,
			:currency, :idempotency_key, :created_at, :tenant_id
		) RETURNING id`

	stmt, err := r.db.GetQuerier(ctx).PrepareNamed(query)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create consumer charge").
			Mark(ierr.ErrDatabase)
	}
	defer stmt.Close()

	if err := stmt.GetContext(ctx, &charge.ID, charge); err != nil {
		return markWriteErr(err, "Failed to create consumer charge")
	}

	r.logger.Debugw("created consumer charge",
		"consumer_charge_id", charge.ID,
		"cart_payment_id", charge.CartPaymentID,
	)
	return nil
}

func (r *legacyChargeRepository) GetConsumerCharge(ctx context.Context, id int64) (*legacycharge.ConsumerCharge, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM legacy_consumer_charges
		 WHERE id = :id AND tenant_id = :tenant_id`,
		map[string]interface{}{
			"id":        id,
			"tenant_id": types.GetTenantID(ctx),
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get consumer charge").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("consumer charge not found").
			WithHintf("Charge %d was not found", id).
			Mark(ierr.ErrCartPaymentNotFound)
	}

	var charge legacycharge.ConsumerCharge
	if err := rows.StructScan(&charge); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan consumer charge").
			Mark(ierr.ErrDatabase)
	}
	return &charge, nil
}

func (r *legacyChargeRepository) GetConsumerChargeByCartPaymentID(ctx context.Context, cartPaymentID string) (*legacycharge.ConsumerCharge, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM legacy_consumer_charges
		 WHERE cart_payment_id = :cart_payment_id AND tenant_id = :tenant_id
		 ORDER BY created_at ASC LIMIT 1`,
		map[string]interface{}{
			"cart_payment_id": cartPaymentID,
			"tenant_id":       types.GetTenantID(ctx),
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get consumer charge").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("consumer charge not found").
			WithHintf("No charge exists for cart payment %s", cartPaymentID).
			Mark(ierr.ErrCartPaymentNotFound)
	}

	var charge legacycharge.ConsumerCharge
	if err := rows.StructScan(&charge); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan consumer charge").
			Mark(ierr.ErrDatabase)
	}
	return &charge, nil
}

func (r *legacyChargeRepository) CreateStripeCharge(ctx context.Context, charge *legacycharge.StripeCharge) error {
	query := `
		INSERT INTO legacy_stripe_charges (
			id, consumer_charge_id, idempotency_key, amount, amount_refunded,
			currency, charge_status, charge_resource_id, card_id, description,
			error_code, error_description,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :consumer_charge_id, :idempotency_key, :amount, :amount_refunded,
			:currency, :charge_status, :charge_resource_id, :card_id, :description,
			:error_code, :error_description,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.NamedExecContext(ctx, query, charge); err != nil {
		return markWriteErr(err, "A stripe charge already exists for this idempotency key")
	}
	return nil
}

func (r *legacyChargeRepository) UpdateStripeCharge(ctx context.Context, charge *legacycharge.StripeCharge) error {
	charge.UpdatedAt = time.Now().UTC()
	charge.UpdatedBy = types.GetUserID(ctx)

	query := `
		UPDATE legacy_stripe_charges SET
			amount = :amount,
			amount_refunded = :amount_refunded,
			charge_status = :charge_status,
			charge_resource_id = :charge_resource_id,
			description = :description,
			error_code = :error_code,
			error_description = :error_description,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	if _, err := r.db.NamedExecContext(ctx, query, charge); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update stripe charge").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// FindChargeByIdempotencyKey returns (nil, nil) on a miss
func (r *legacyChargeRepository) FindChargeByIdempotencyKey(ctx context.Context, consumerChargeID int64, key string) (*legacycharge.StripeCharge, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM legacy_stripe_charges
		 WHERE consumer_charge_id = :consumer_charge_id AND idempotency_key = :idempotency_key
		   AND tenant_id = :tenant_id`,
		map[string]interface{}{
			"consumer_charge_id": consumerChargeID,
			"idempotency_key":    key,
			"tenant_id":          types.GetTenantID(ctx),
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to find stripe charge").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}

	var charge legacycharge.StripeCharge
	if err := rows.StructScan(&charge); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan stripe charge").
			Mark(ierr.ErrDatabase)
	}
	return &charge, nil
}

func (r *legacyChargeRepository) ListStripeCharges(ctx context.Context, consumerChargeID int64) ([]*legacycharge.StripeCharge, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM legacy_stripe_charges
		 WHERE consumer_charge_id = :consumer_charge_id AND tenant_id = :tenant_id
		 ORDER BY created_at ASC`,
		map[string]interface{}{
			"consumer_charge_id": consumerChargeID,
			"tenant_id":          types.GetTenantID(ctx),
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list stripe charges").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var charges []*legacycharge.StripeCharge
	for rows.Next() {
		var charge legacycharge.StripeCharge
		if err := rows.StructScan(&charge); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan stripe charge").
				Mark(ierr.ErrDatabase)
		}
		charges = append(charges, &charge)
	}
	return charges, nil
}
