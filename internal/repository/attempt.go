package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-papertrade/internal/models"
)

const attemptSchema = `
CREATE TABLE IF NOT EXISTS order_attempts (
	id           BIGSERIAL     PRIMARY KEY,
	order_id     UUID          NOT NULL UNIQUE,
	trading_day  DATE          NOT NULL,
	kind         TEXT          NOT NULL,
	asset_id     BIGINT        NOT NULL,
	asset_name   TEXT          NOT NULL DEFAULT '',
	quantity     INTEGER       NOT NULL,
	unit_price   NUMERIC(18,4) NOT NULL,
	total        NUMERIC(18,4) NOT NULL,
	portfolio_id BIGINT        NOT NULL,
	outcome      TEXT          NOT NULL,
	message      TEXT          NOT NULL DEFAULT '',
	opened_at    TIMESTAMPTZ   NOT NULL,
	resolved_at  TIMESTAMPTZ   NOT NULL,
	created_at   TIMESTAMPTZ   NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS order_attempts_day_idx ON order_attempts (trading_day, outcome);
`

const attemptColumns = `id, order_id::text, trading_day, kind, asset_id, asset_name, quantity,
	unit_price::text, total::text, portfolio_id, outcome, message, opened_at, resolved_at, created_at`

// OutcomeCompleted is the outcome value counted against the daily limit.
const OutcomeCompleted = "completed"

type AttemptRepo struct {
	pool *pgxpool.Pool
}

func NewAttemptRepo(pool *pgxpool.Pool) *AttemptRepo {
	return &AttemptRepo{pool: pool}
}

// EnsureSchema creates the journal table when missing.
func (r *AttemptRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, attemptSchema); err != nil {
		return fmt.Errorf("create order_attempts: %w", err)
	}
	return nil
}

func (r *AttemptRepo) Record(ctx context.Context, a *models.OrderAttempt) (*models.OrderAttempt, error) {
	resolved := a.ResolvedAt
	if resolved.IsZero() {
		resolved = time.Now()
	}
	opened := a.OpenedAt
	if opened.IsZero() {
		opened = resolved
	}
	orderID := a.OrderID
	if orderID == uuid.Nil {
		orderID = uuid.New()
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO order_attempts
		 (order_id, trading_day, kind, asset_id, asset_name, quantity,
		  unit_price, total, portfolio_id, outcome, message, opened_at, resolved_at)
		 VALUES ($1::uuid,$2::date,$3,$4,$5,$6,$7::numeric,$8::numeric,$9,$10,$11,$12,$13)
		 RETURNING `+attemptColumns,
		orderID.String(), TradingDay(resolved), a.Kind.String(), a.AssetID, a.AssetName, a.Quantity,
		a.UnitPrice.String(), a.Total.String(), a.PortfolioID, a.Outcome, a.Message, opened, resolved,
	)
	return scanAttempt(row)
}

// Save implements Recorder.
func (r *AttemptRepo) Save(ctx context.Context, a models.OrderAttempt) error {
	_, err := r.Record(ctx, &a)
	return err
}

// Recent returns the most recent attempts, newest first.
func (r *AttemptRepo) Recent(ctx context.Context, limit int) ([]models.OrderAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM order_attempts ORDER BY resolved_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttempts(rows)
}

// GetByDay returns the attempts resolved on a trading day, oldest first.
func (r *AttemptRepo) GetByDay(ctx context.Context, tradingDay string) ([]models.OrderAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM order_attempts WHERE trading_day = $1::date ORDER BY resolved_at ASC`,
		tradingDay,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttempts(rows)
}

// CountToday counts orders completed during the current trading day.
func (r *AttemptRepo) CountToday(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_attempts WHERE trading_day = $1::date AND outcome = $2`,
		TradingDayNow(), OutcomeCompleted,
	).Scan(&count)
	return count, err
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanAttempt(row scannable) (*models.OrderAttempt, error) {
	var (
		a                models.OrderAttempt
		orderID, kind    string
		unitPrice, total string
		day              time.Time
	)
	err := row.Scan(
		&a.ID, &orderID, &day, &kind, &a.AssetID, &a.AssetName, &a.Quantity,
		&unitPrice, &total, &a.PortfolioID, &a.Outcome, &a.Message,
		&a.OpenedAt, &a.ResolvedAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if a.OrderID, err = uuid.Parse(orderID); err != nil {
		return nil, fmt.Errorf("order_id: %w", err)
	}
	if a.Kind, err = models.ParseTransactionKind(kind); err != nil {
		return nil, err
	}
	if a.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return nil, fmt.Errorf("unit_price: %w", err)
	}
	if a.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("total: %w", err)
	}
	a.TradingDay = day.Format("2006-01-02")
	return &a, nil
}

func collectAttempts(rows rowsIter) ([]models.OrderAttempt, error) {
	var out []models.OrderAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
