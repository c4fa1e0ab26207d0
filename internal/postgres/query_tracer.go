package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cartpay/cartpay/internal/logger"
)

// TracedQuerier wraps a Querier and logs every query with its duration. The
// txID is set when the querier runs inside a transaction.
type TracedQuerier struct {
	q      Querier
	logger *logger.Logger
	txID   string
}

// NewTracedQuerier creates a new traced querier
func NewTracedQuerier(q Querier, logger *logger.Logger, txID string) *TracedQuerier {
	return &TracedQuerier{q: q, logger: logger, txID: txID}
}

func (t *TracedQuerier) trace(query string, start time.Time, err error) {
	fields := []interface{}{
		"duration_ms", time.Since(start).Milliseconds(),
		"query", query,
	}
	if t.txID != "" {
		fields = append(fields, "tx_id", t.txID)
	}
	if err != nil {
		fields = append(fields, "error", err.Error())
		t.logger.Errorw("database query failed", fields...)
		return
	}
	t.logger.Debugw("database query completed", fields...)
}

func (t *TracedQuerier) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	res, err := t.q.ExecContext(ctx, query, args...)
	t.trace(query, start, err)
	return res, err
}

func (t *TracedQuerier) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := t.q.QueryContext(ctx, query, args...)
	t.trace(query, start, err)
	return rows, err
}

func (t *TracedQuerier) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	start := time.Now()
	row := t.q.QueryRowContext(ctx, query, args...)
	t.trace(query, start, nil)
	return row
}

func (t *TracedQuerier) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	start := time.Now()
	err := t.q.GetContext(ctx, dest, query, args...)
	t.trace(query, start, err)
	return err
}

func (t *TracedQuerier) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	start := time.Now()
	err := t.q.SelectContext(ctx, dest, query, args...)
	t.trace(query, start, err)
	return err
}

func (t *TracedQuerier) NamedExec(query string, arg interface{}) (sql.Result, error) {
	start := time.Now()
	res, err := t.q.NamedExec(query, arg)
	t.trace(query, start, err)
	return res, err
}

func (t *TracedQuerier) NamedQuery(query string, arg interface{}) (*sqlx.Rows, error) {
	start := time.Now()
	rows, err := t.q.NamedQuery(query, arg)
	t.trace(query, start, err)
	return rows, err
}

func (t *TracedQuerier) PrepareNamed(query string) (*sqlx.NamedStmt, error) {
	return t.q.PrepareNamed(query)
}

func (t *TracedQuerier) Preparex(query string) (*sqlx.Stmt, error) {
	return t.q.Preparex(query)
}
