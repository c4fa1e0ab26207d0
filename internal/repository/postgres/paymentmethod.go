package postgres

import (
	"context"

	"github.com/cartpay/cartpay/internal/domain/paymentmethod"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/logger"
	"github.com/cartpay/cartpay/internal/postgres"
	"github.com/cartpay/cartpay/internal/types"
)

type paymentMethodRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPaymentMethodRepository(db *postgres.DB, logger *logger.Logger) paymentmethod.Repository {
	return &paymentMethodRepository{db: db, logger: logger}
}

func (r *paymentMethodRepository) Create(ctx context.Context, pm *paymentmethod.PaymentMethod) error {
	query := `
		INSERT INTO payment_methods (
			id, payer_id, provider_resource_id, legacy_card_id, card_last4, card_brand,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :payer_id, :provider_resource_id, :legacy_card_id, :card_last4, :card_brand,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.NamedExecContext(ctx, query, pm); err != nil {
		return markWriteErr(err, "Failed to create payment method")
	}
	return nil
}

func (r *paymentMethodRepository) Get(ctx context.Context, id string) (*paymentmethod.PaymentMethod, error) {
	return r.getPaymentMethod(ctx,
		`SELECT * FROM payment_methods WHERE id = :id AND tenant_id = :tenant_id AND status = :status`,
		map[string]interface{}{
			"id":        id,
			"tenant_id": types.GetTenantID(ctx),
			"status":    types.StatusPublished,
		})
}

func (r *paymentMethodRepository) GetByLegacyCardID(ctx context.Context, cardID int64) (*paymentmethod.PaymentMethod, error) {
	return r.getPaymentMethod(ctx,
		`SELECT * FROM payment_methods WHERE legacy_card_id = :legacy_card_id AND tenant_id = :tenant_id AND status = :status`,
		map[string]interface{}{
			"legacy_card_id": cardID,
			"tenant_id":      types.GetTenantID(ctx),
			"status":         types.StatusPublished,
		})
}

func (r *paymentMethodRepository) getPaymentMethod(ctx context.Context, query string, params map[string]interface{}) (*paymentmethod.PaymentMethod, error) {
	rows, err := r.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment method").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("payment method not found").
			WithHint("No payment method exists for the given identifier").
			Mark(ierr.ErrPaymentMethodNotFound)
	}

	var pm paymentmethod.PaymentMethod
	if err := rows.StructScan(&pm); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan payment method").
			Mark(ierr.ErrDatabase)
	}
	return &pm, nil
}

func (r *paymentMethodRepository) ListByPayer(ctx context.Context, payerID string) ([]*paymentmethod.PaymentMethod, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM payment_methods
		 WHERE payer_id = :payer_id AND tenant_id = :tenant_id AND status = :status
		 ORDER BY created_at ASC`,
		map[string]interface{}{
			"payer_id":  payerID,
			"tenant_id": types.GetTenantID(ctx),
			"status":    types.StatusPublished,
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list payment methods").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var methods []*paymentmethod.PaymentMethod
	for rows.Next() {
		var pm paymentmethod.PaymentMethod
		if err := rows.StructScan(&pm); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan payment method").
				Mark(ierr.ErrDatabase)
		}
		methods = append(methods, &pm)
	}
	return methods, nil
}
