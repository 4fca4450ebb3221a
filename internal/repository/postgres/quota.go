package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"echowatch/internal/domain/quota"
	pkgerrors "echowatch/pkg/errors"
)

// Compile-time check
var _ quota.Repository = (*QuotaRepository)(nil)

// QuotaRepository implements quota.Repository using sqlx.
// The ledger is a single row per billing period; AddUsage increments the
// current period atomically so concurrent recorders never lose calls.
type QuotaRepository struct {
	db *sqlx.DB
}

// NewQuotaRepository creates a new quota repository
func NewQuotaRepository(db *sqlx.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// GetState retrieves the ledger for the current billing period
func (r *QuotaRepository) GetState(ctx context.Context) (*quota.State, error) {
	query := `
		SELECT monthly_limit, monthly_usage, period_start, period_end
		FROM quota_ledger
		ORDER BY period_start DESC
		LIMIT 1`

	var state quota.State
	err := r.db.GetContext(ctx, &state, query)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.Wrap(pkgerrors.ErrNotFound, "no quota ledger for current period")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get quota state")
	}

	return &state, nil
}

// AddUsage increments monthly usage for the current period
func (r *QuotaRepository) AddUsage(ctx context.Context, calls int) error {
	query := `
		UPDATE quota_ledger
		SET monthly_usage = monthly_usage + $1, updated_at = NOW()
		WHERE period_start = (SELECT MAX(period_start) FROM quota_ledger)`

	result, err := r.db.ExecContext(ctx, query, calls)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to add quota usage")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check quota update")
	}
	if rows == 0 {
		return pkgerrors.Wrap(pkgerrors.ErrNotFound, "no quota ledger for current period")
	}

	return nil
}

// ResetPeriod starts a new billing period with zero usage, carrying the
// monthly limit forward from the previous period
func (r *QuotaRepository) ResetPeriod(ctx context.Context, start, end time.Time) error {
	query := `
		INSERT INTO quota_ledger (monthly_limit, monthly_usage, period_start, period_end, updated_at)
		SELECT monthly_limit, 0, $1, $2, NOW()
		FROM quota_ledger
		ORDER BY period_start DESC
		LIMIT 1`

	result, err := r.db.ExecContext(ctx, query, start, end)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to reset quota period")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check period reset")
	}
	if rows == 0 {
		return pkgerrors.Wrap(pkgerrors.ErrNotFound, "no previous quota ledger to carry limit from")
	}

	return nil
}

// InitPeriod creates the first ledger row for deployments with no history
func (r *QuotaRepository) InitPeriod(ctx context.Context, limit int, start, end time.Time) error {
	query := `
		INSERT INTO quota_ledger (monthly_limit, monthly_usage, period_start, period_end, updated_at)
		VALUES ($1, 0, $2, $3, NOW())
		ON CONFLICT (period_start) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, limit, start, end)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to init quota period")
	}

	return nil
}
