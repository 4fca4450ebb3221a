package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"echowatch/internal/domain/keyword"
	pkgerrors "echowatch/pkg/errors"
)

// Compile-time check
var _ keyword.Repository = (*KeywordRepository)(nil)

// KeywordRepository implements keyword.Repository using sqlx
type KeywordRepository struct {
	db *sqlx.DB
}

// NewKeywordRepository creates a new keyword repository
func NewKeywordRepository(db *sqlx.DB) *KeywordRepository {
	return &KeywordRepository{db: db}
}

// GetStat retrieves the stat row for a keyword
func (r *KeywordRepository) GetStat(ctx context.Context, kw string) (*keyword.Stat, error) {
	query := `
		SELECT keyword, tweets_seen, tweets_relevant, tweets_skipped, api_calls_attributed, updated_at
		FROM keyword_stats
		WHERE keyword = $1`

	var stat keyword.Stat
	err := r.db.GetContext(ctx, &stat, query, kw)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "keyword stat %q", kw)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get keyword stat")
	}

	return &stat, nil
}

// ListStats retrieves all tracked keyword stats
func (r *KeywordRepository) ListStats(ctx context.Context) ([]keyword.Stat, error) {
	query := `
		SELECT keyword, tweets_seen, tweets_relevant, tweets_skipped, api_calls_attributed, updated_at
		FROM keyword_stats
		ORDER BY keyword`

	var stats []keyword.Stat
	if err := r.db.SelectContext(ctx, &stats, query); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list keyword stats")
	}

	return stats, nil
}

// UpsertStat creates or replaces a keyword's stat row
func (r *KeywordRepository) UpsertStat(ctx context.Context, stat *keyword.Stat) error {
	query := `
		INSERT INTO keyword_stats (
			keyword, tweets_seen, tweets_relevant, tweets_skipped, api_calls_attributed, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (keyword) DO UPDATE SET
			tweets_seen = EXCLUDED.tweets_seen,
			tweets_relevant = EXCLUDED.tweets_relevant,
			tweets_skipped = EXCLUDED.tweets_skipped,
			api_calls_attributed = EXCLUDED.api_calls_attributed,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		stat.Keyword, stat.TweetsSeen, stat.TweetsRelevant,
		stat.TweetsSkipped, stat.APICallsAttributed, stat.UpdatedAt,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to upsert keyword stat")
	}

	return nil
}

// DeleteStat removes one keyword's stats, weight, and trend buckets
func (r *KeywordRepository) DeleteStat(ctx context.Context, kw string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to begin delete tx")
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM keyword_trend_buckets WHERE keyword = $1`,
		`DELETE FROM keyword_weights WHERE keyword = $1`,
		`DELETE FROM keyword_stats WHERE keyword = $1`,
	} {
		if _, err := tx.ExecContext(ctx, query, kw); err != nil {
			return pkgerrors.Wrap(err, "failed to delete keyword stat")
		}
	}

	return tx.Commit()
}

// DeleteAllStats removes every keyword's stats, weights, and trend buckets
func (r *KeywordRepository) DeleteAllStats(ctx context.Context) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to begin delete tx")
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM keyword_trend_buckets`,
		`DELETE FROM keyword_weights`,
		`DELETE FROM keyword_stats`,
	} {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return pkgerrors.Wrap(err, "failed to delete keyword stats")
		}
	}

	return tx.Commit()
}

// GetWeight retrieves the learned weight for a keyword
func (r *KeywordRepository) GetWeight(ctx context.Context, kw string) (*keyword.LearnedWeight, error) {
	query := `
		SELECT keyword, weight, updated_at
		FROM keyword_weights
		WHERE keyword = $1`

	var weight keyword.LearnedWeight
	err := r.db.GetContext(ctx, &weight, query, kw)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "keyword weight %q", kw)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get keyword weight")
	}

	return &weight, nil
}

// ListWeights retrieves all learned weights
func (r *KeywordRepository) ListWeights(ctx context.Context) ([]keyword.LearnedWeight, error) {
	query := `
		SELECT keyword, weight, updated_at
		FROM keyword_weights
		ORDER BY keyword`

	var weights []keyword.LearnedWeight
	if err := r.db.SelectContext(ctx, &weights, query); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list keyword weights")
	}

	return weights, nil
}

// UpsertWeight creates or replaces a keyword's learned weight
func (r *KeywordRepository) UpsertWeight(ctx context.Context, weight *keyword.LearnedWeight) error {
	query := `
		INSERT INTO keyword_weights (keyword, weight, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (keyword) DO UPDATE SET
			weight = EXCLUDED.weight,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query, weight.Keyword, weight.Weight, weight.UpdatedAt)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to upsert keyword weight")
	}

	return nil
}

// IncrementTrendBucket adds one observation to a keyword's daily bucket
func (r *KeywordRepository) IncrementTrendBucket(ctx context.Context, kw string, day time.Time, relevant bool) error {
	relevantInc := 0
	if relevant {
		relevantInc = 1
	}

	query := `
		INSERT INTO keyword_trend_buckets (keyword, day, seen, relevant)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (keyword, day) DO UPDATE SET
			seen = keyword_trend_buckets.seen + 1,
			relevant = keyword_trend_buckets.relevant + $3`

	_, err := r.db.ExecContext(ctx, query, kw, day, relevantInc)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to increment trend bucket")
	}

	return nil
}

// GetTrendBuckets retrieves a keyword's daily buckets since the given day
func (r *KeywordRepository) GetTrendBuckets(ctx context.Context, kw string, since time.Time) ([]keyword.TrendBucket, error) {
	query := `
		SELECT keyword, day, seen, relevant
		FROM keyword_trend_buckets
		WHERE keyword = $1 AND day >= $2
		ORDER BY day ASC`

	var buckets []keyword.TrendBucket
	if err := r.db.SelectContext(ctx, &buckets, query, kw, since); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get trend buckets")
	}

	return buckets, nil
}
