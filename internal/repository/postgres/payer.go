package postgres

import (
	"context"

	"github.com/cartpay/cartpay/internal/domain/payer"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/logger"
	"github.com/cartpay/cartpay/internal/postgres"
	"github.com/cartpay/cartpay/internal/types"
)

type payerRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPayerRepository(db *postgres.DB, logger *logger.Logger) payer.Repository {
	return &payerRepository{db: db, logger: logger}
}

func (r *payerRepository) Create(ctx context.Context, p *payer.Payer) error {
	query := `
		INSERT INTO payers (
			id, email, country, provider_customer_id, legacy_consumer_id,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :email, :country, :provider_customer_id, :legacy_consumer_id,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return markWriteErr(err, "Failed to create payer")
	}
	return nil
}

func (r *payerRepository) Get(ctx context.Context, id string) (*payer.Payer, error) {
	return r.getPayer(ctx,
		`SELECT * FROM payers WHERE id = :id AND tenant_id = :tenant_id AND status = :status`,
		map[string]interface{}{
			"id":        id,
			"tenant_id": types.GetTenantID(ctx),
			"status":    types.StatusPublished,
		})
}

func (r *payerRepository) GetByLegacyConsumerID(ctx context.Context, consumerID int64) (*payer.Payer, error) {
	return r.getPayer(ctx,
		`SELECT * FROM payers WHERE legacy_consumer_id = :legacy_consumer_id AND tenant_id = :tenant_id AND status = :status`,
		map[string]interface{}{
			"legacy_consumer_id": consumerID,
			"tenant_id":          types.GetTenantID(ctx),
			"status":             types.StatusPublished,
		})
}

func (r *payerRepository) getPayer(ctx context.Context, query string, params map[string]interface{}) (*payer.Payer, error) {
	rows, err := r.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get payer").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("payer not found").
			WithHint("No payer exists for the given identifier").
			Mark(ierr.ErrNotFound)
	}

	var p payer.Payer
	if err := rows.StructScan(&p); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan payer").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}
