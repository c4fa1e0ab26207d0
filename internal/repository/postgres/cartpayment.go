package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cartpay/cartpay/internal/domain/cartpayment"
	ierr "github.com/cartpay/cartpay/internal/errors"
	"github.com/cartpay/cartpay/internal/logger"
	"github.com/cartpay/cartpay/internal/postgres"
	"github.com/cartpay/cartpay/internal/types"
)

type cartPaymentRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewCartPaymentRepository(db *postgres.DB, logger *logger.Logger) cartpayment.Repository {
	return &cartPaymentRepository{db: db, logger: logger}
}

func (r *cartPaymentRepository) CreateCartPayment(ctx context.Context, cp *cartpayment.CartPayment) error {
	query := `
		INSERT INTO cart_payments (
			id, payer_id, payment_method_id, amount, currency, country,
			delay_capture, correlation_ids, client_description,
			payer_statement_description, split_payment, legacy_payment,
			metadata, deleted_at,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :payer_id, :payment_method_id, :amount, :currency, :country,
			:delay_capture, :correlation_ids, :client_description,
			:payer_statement_description, :split_payment, :legacy_payment,
			:metadata, :deleted_at,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating cart payment",
		"cart_payment_id", cp.ID,
		"payer_id", cp.PayerID,
	)

	if _, err := r.db.NamedExecContext(ctx, query, cp); err != nil {
		return markWriteErr(err, "Failed to create cart payment")
	}
	return nil
}

func (r *cartPaymentRepository) GetCartPaymentByID(ctx context.Context, id string) (*cartpayment.CartPayment, error) {
	return r.getCartPayment(ctx, id, false)
}

func (r *cartPaymentRepository) GetCartPaymentByIDForUpdate(ctx context.Context, id string) (*cartpayment.CartPayment, error) {
	return r.getCartPayment(ctx, id, true)
}

func (r *cartPaymentRepository) getCartPayment(ctx context.Context, id string, forUpdate bool) (*cartpayment.CartPayment, error) {
	query := `
		SELECT * FROM cart_payments
		WHERE id = :id AND tenant_id = :tenant_id AND status = :status`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"id":        id,
		"tenant_id": types.GetTenantID(ctx),
		"status":    types.StatusPublished,
	})
	if err != nil {
		if forUpdate && isLockConflict(err) {
			return nil, ierr.WithError(err).
				WithHint("The cart payment is being updated concurrently").
				Mark(ierr.ErrCartPaymentUpdateConflict)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get cart payment").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("cart payment not found").
			WithHintf("Cart payment %s was not found", id).
			Mark(ierr.ErrCartPaymentNotFound)
	}

	var cp cartpayment.CartPayment
	if err := rows.StructScan(&cp); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan cart payment").
			Mark(ierr.ErrDatabase)
	}
	return &cp, nil
}

func (r *cartPaymentRepository) UpdateCartPayment(ctx context.Context, cp *cartpayment.CartPayment) error {
	cp.UpdatedAt = time.Now().UTC()
	cp.UpdatedBy = types.GetUserID(ctx)

	query := `
		UPDATE cart_payments SET
			amount = :amount,
			client_description = :client_description,
			split_payment = :split_payment,
			metadata = :metadata,
			deleted_at = :deleted_at,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	if _, err := r.db.NamedExecContext(ctx, query, cp); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update cart payment").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *cartPaymentRepository) CreatePaymentIntent(ctx context.Context, intent *cartpayment.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (
			id, cart_payment_id, idempotency_key, amount, amount_capturable,
			amount_received, currency, country, capture_method, intent_status,
			legacy_consumer_charge_id, statement_descriptor, capture_after,
			captured_at, cancelled_at,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :cart_payment_id, :idempotency_key, :amount, :amount_capturable,
			:amount_received, :currency, :country, :capture_method, :intent_status,
			:legacy_consumer_charge_id, :statement_descriptor, :capture_after,
			:captured_at, :cancelled_at,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating payment intent",
		"payment_intent_id", intent.ID,
		"cart_payment_id", intent.CartPaymentID,
		"idempotency_key", intent.IdempotencyKey,
	)

	if _, err := r.db.NamedExecContext(ctx, query, intent); err != nil {
		return markWriteErr(err, "A payment intent already exists for this idempotency key")
	}
	return nil
}

func (r *cartPaymentRepository) UpdatePaymentIntent(ctx context.Context, intent *cartpayment.PaymentIntent) error {
	intent.UpdatedAt = time.Now().UTC()
	intent.UpdatedBy = types.GetUserID(ctx)

	query := `
		UPDATE payment_intents SET
			amount = :amount,
			amount_capturable = :amount_capturable,
			amount_received = :amount_received,
			intent_status = :intent_status,
			capture_after = :capture_after,
			captured_at = :captured_at,
			cancelled_at = :cancelled_at,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	if _, err := r.db.NamedExecContext(ctx, query, intent); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update payment intent").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *cartPaymentRepository) GetPaymentIntent(ctx context.Context, id string) (*cartpayment.PaymentIntent, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM payment_intents WHERE id = :id AND tenant_id = :tenant_id`,
		map[string]interface{}{
			"id":        id,
			"tenant_id": types.GetTenantID(ctx),
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment intent").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("payment intent not found").
			WithHintf("Payment intent %s was not found", id).
			Mark(ierr.ErrNotFound)
	}

	var intent cartpayment.PaymentIntent
	if err := rows.StructScan(&intent); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan payment intent").
			Mark(ierr.ErrDatabase)
	}
	return &intent, nil
}

func (r *cartPaymentRepository) ListPaymentIntents(ctx context.Context, cartPaymentID string) ([]*cartpayment.PaymentIntent, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM payment_intents
		 WHERE cart_payment_id = :cart_payment_id AND tenant_id = :tenant_id
		 ORDER BY created_at ASC`,
		map[string]interface{}{
			"cart_payment_id": cartPaymentID,
			"tenant_id":       types.GetTenantID(ctx),
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list payment intents").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var intents []*cartpayment.PaymentIntent
	for rows.Next() {
		var intent cartpayment.PaymentIntent
		if err := rows.StructScan(&intent); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan payment intent").
				Mark(ierr.ErrDatabase)
		}
		intents = append(intents, &intent)
	}
	return intents, nil
}

// GetPaymentIntentForIdempotencyKey returns (nil, nil) when no intent carries
// the key under this cart payment
func (r *cartPaymentRepository) GetPaymentIntentForIdempotencyKey(ctx context.Context, cartPaymentID, key string) (*cartpayment.PaymentIntent, error) {
	return r.findIntent(ctx,
		`SELECT * FROM payment_intents
		 WHERE cart_payment_id = :cart_payment_id AND idempotency_key = :idempotency_key
		   AND tenant_id = :tenant_id`,
		map[string]interface{}{
			"cart_payment_id": cartPaymentID,
			"idempotency_key": key,
			"tenant_id":       types.GetTenantID(ctx),
		})
}

// GetPaymentIntentByPayerAndKey probes across cart payments for a prior
// create attempt by the same payer and key. Returns (nil, nil) on a miss.
func (r *cartPaymentRepository) GetPaymentIntentByPayerAndKey(ctx context.Context, payerID, key string) (*cartpayment.PaymentIntent, error) {
	return r.findIntent(ctx,
		`SELECT pi.* FROM payment_intents pi
		 JOIN cart_payments cp ON cp.id = pi.cart_payment_id
		 WHERE cp.payer_id = :payer_id AND pi.idempotency_key = :idempotency_key
		   AND pi.tenant_id = :tenant_id`,
		map[string]interface{}{
			"payer_id":        payerID,
			"idempotency_key": key,
			"tenant_id":       types.GetTenantID(ctx),
		})
}

func (r *cartPaymentRepository) findIntent(ctx context.Context, query string, params map[string]interface{}) (*cartpayment.PaymentIntent, error) {
	rows, err := r.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to find payment intent").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}

	var intent cartpayment.PaymentIntent
	if err := rows.StructScan(&intent); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan payment intent").
			Mark(ierr.ErrDatabase)
	}
	return &intent, nil
}

func (r *cartPaymentRepository) FindIntentsRequiringCaptureBeforeCutoff(ctx context.Context, cutoff time.Time) (cartpayment.IntentCursor, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM payment_intents
		 WHERE intent_status = :intent_status
		   AND capture_after IS NOT NULL AND capture_after <= :cutoff
		   AND tenant_id = :tenant_id
		 ORDER BY capture_after ASC`,
		map[string]interface{}{
			"intent_status": types.PaymentIntentStatusRequiresCapture,
			"cutoff":        cutoff,
			"tenant_id":     types.GetTenantID(ctx),
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to query intents requiring capture").
			Mark(ierr.ErrDatabase)
	}
	return &intentCursor{rows: rows}, nil
}

// intentCursor streams intents off an open sqlx.Rows. One row is decoded per
// Next call so the sweeper can pause between items.
type intentCursor struct {
	rows *sqlx.Rows
}

func (c *intentCursor) Next(ctx context.Context) (*cartpayment.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Intent stream failed").
				Mark(ierr.ErrDatabase)
		}
		return nil, nil
	}

	var intent cartpayment.PaymentIntent
	if err := c.rows.StructScan(&intent); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan payment intent").
			Mark(ierr.ErrDatabase)
	}
	return &intent, nil
}

func (c *intentCursor) Close() error {
	return c.rows.Close()
}

func (r *cartPaymentRepository) CreatePgpPaymentIntent(ctx context.Context, pgp *cartpayment.PgpPaymentIntent) error {
	query := `
		INSERT INTO pgp_payment_intents (
			id, payment_intent_id, idempotency_key, resource_id,
			charge_resource_id, amount, amount_capturable, amount_received,
			currency, intent_status, error_code, error_message,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :payment_intent_id, :idempotency_key, :resource_id,
			:charge_resource_id, :amount, :amount_capturable, :amount_received,
			:currency, :intent_status, :error_code, :error_message,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.NamedExecContext(ctx, query, pgp); err != nil {
		return markWriteErr(err, "Failed to create pgp payment intent")
	}
	return nil
}

func (r *cartPaymentRepository) UpdatePgpPaymentIntent(ctx context.Context, pgp *cartpayment.PgpPaymentIntent) error {
	pgp.UpdatedAt = time.Now().UTC()
	pgp.UpdatedBy = types.GetUserID(ctx)

	query := `
		UPDATE pgp_payment_intents SET
			resource_id = :resource_id,
			charge_resource_id = :charge_resource_id,
			amount = :amount,
			amount_capturable = :amount_capturable,
			amount_received = :amount_received,
			intent_status = :intent_status,
			error_code = :error_code,
			error_message = :error_message,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	if _, err := r.db.NamedExecContext(ctx, query, pgp); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update pgp payment intent").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *cartPaymentRepository) ListPgpPaymentIntents(ctx context.Context, paymentIntentID string) ([]*cartpayment.PgpPaymentIntent, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM pgp_payment_intents
		 WHERE payment_intent_id = :payment_intent_id AND tenant_id = :tenant_id
		 ORDER BY created_at ASC`,
		map[string]interface{}{
			"payment_intent_id": paymentIntentID,
			"tenant_id":         types.GetTenantID(ctx),
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list pgp payment intents").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var pgps []*cartpayment.PgpPaymentIntent
	for rows.Next() {
		var pgp cartpayment.PgpPaymentIntent
		if err := rows.StructScan(&pgp); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan pgp payment intent").
				Mark(ierr.ErrDatabase)
		}
		pgps = append(pgps, &pgp)
	}
	return pgps, nil
}

func (r *cartPaymentRepository) CreateAdjustmentHistory(ctx context.Context, adj *cartpayment.AdjustmentHistory) error {
	query := `
		INSERT INTO payment_intent_adjustment_history (
			id, payment_intent_id, idempotency_key, amount_original,
			amount_delta, amount,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :payment_intent_id, :idempotency_key, :amount_original,
			:amount_delta, :amount,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.NamedExecContext(ctx, query, adj); err != nil {
		return markWriteErr(err, "An adjustment already exists for this idempotency key")
	}
	return nil
}

// GetAdjustmentHistoryForIdempotencyKey returns (nil, nil) on a miss
func (r *cartPaymentRepository) GetAdjustmentHistoryForIdempotencyKey(ctx context.Context, paymentIntentID, key string) (*cartpayment.AdjustmentHistory, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM payment_intent_adjustment_history
		 WHERE payment_intent_id = :payment_intent_id AND idempotency_key = :idempotency_key
		   AND tenant_id = :tenant_id`,
		map[string]interface{}{
			"payment_intent_id": paymentIntentID,
			"idempotency_key":   key,
			"tenant_id":         types.GetTenantID(ctx),
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to find adjustment history").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}

	var adj cartpayment.AdjustmentHistory
	if err := rows.StructScan(&adj); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan adjustment history").
			Mark(ierr.ErrDatabase)
	}
	return &adj, nil
}

func (r *cartPaymentRepository) CreateRefund(ctx context.Context, refund *cartpayment.Refund) error {
	query := `
		INSERT INTO refunds (
			id, payment_intent_id, idempotency_key, amount, refund_status, reason,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :payment_intent_id, :idempotency_key, :amount, :refund_status, :reason,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.NamedExecContext(ctx, query, refund); err != nil {
		return markWriteErr(err, "A refund already exists for this idempotency key")
	}
	return nil
}

func (r *cartPaymentRepository) UpdateRefund(ctx context.Context, refund *cartpayment.Refund) error {
	refund.UpdatedAt = time.Now().UTC()
	refund.UpdatedBy = types.GetUserID(ctx)

	query := `
		UPDATE refunds SET
			refund_status = :refund_status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	if _, err := r.db.NamedExecContext(ctx, query, refund); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update refund").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// GetRefundForIdempotencyKey returns (nil, nil) on a miss
func (r *cartPaymentRepository) GetRefundForIdempotencyKey(ctx context.Context, paymentIntentID, key string) (*cartpayment.Refund, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM refunds
		 WHERE payment_intent_id = :payment_intent_id AND idempotency_key = :idempotency_key
		   AND tenant_id = :tenant_id`,
		map[string]interface{}{
			"payment_intent_id": paymentIntentID,
			"idempotency_key":   key,
			"tenant_id":         types.GetTenantID(ctx),
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to find refund").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}

	var refund cartpayment.Refund
	if err := rows.StructScan(&refund); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan refund").
			Mark(ierr.ErrDatabase)
	}
	return &refund, nil
}

func (r *cartPaymentRepository) ListRefunds(ctx context.Context, paymentIntentID string) ([]*cartpayment.Refund, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM refunds
		 WHERE payment_intent_id = :payment_intent_id AND tenant_id = :tenant_id
		 ORDER BY created_at ASC`,
		map[string]interface{}{
			"payment_intent_id": paymentIntentID,
			"tenant_id":         types.GetTenantID(ctx),
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list refunds").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var refunds []*cartpayment.Refund
	for rows.Next() {
		var refund cartpayment.Refund
		if err := rows.StructScan(&refund); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan refund").
				Mark(ierr.ErrDatabase)
		}
		refunds = append(refunds, &refund)
	}
	return refunds, nil
}

func (r *cartPaymentRepository) CreatePgpRefund(ctx context.Context, pgpRefund *cartpayment.PgpRefund) error {
	query := `
		INSERT INTO pgp_refunds (
			id, refund_id, payment_intent_id, resource_id, amount, refund_status,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :refund_id, :payment_intent_id, :resource_id, :amount, :refund_status,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.NamedExecContext(ctx, query, pgpRefund); err != nil {
		return markWriteErr(err, "Failed to create pgp refund")
	}
	return nil
}

func (r *cartPaymentRepository) UpdatePgpRefund(ctx context.Context, pgpRefund *cartpayment.PgpRefund) error {
	pgpRefund.UpdatedAt = time.Now().UTC()
	pgpRefund.UpdatedBy = types.GetUserID(ctx)

	query := `
		UPDATE pgp_refunds SET
			resource_id = :resource_id,
			refund_status = :refund_status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	if _, err := r.db.NamedExecContext(ctx, query, pgpRefund); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update pgp refund").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// GetPgpRefundByRefundID returns (nil, nil) on a miss
func (r *cartPaymentRepository) GetPgpRefundByRefundID(ctx context.Context, refundID string) (*cartpayment.PgpRefund, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM pgp_refunds
		 WHERE refund_id = :refund_id AND tenant_id = :tenant_id`,
		map[string]interface{}{
			"refund_id": refundID,
			"tenant_id": types.GetTenantID(ctx),
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to find pgp refund").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}

	var pgpRefund cartpayment.PgpRefund
	if err := rows.StructScan(&pgpRefund); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan pgp refund").
			Mark(ierr.ErrDatabase)
	}
	return &pgpRefund, nil
}
