package keyword

import (
	"context"
	"time"
)

// Repository defines the interface for keyword effectiveness persistence (Postgres)
type Repository interface {
	// GetStat returns the stat row for a keyword, or errors.ErrNotFound
	GetStat(ctx context.Context, keyword string) (*Stat, error)

	// ListStats returns all tracked keyword stats
	ListStats(ctx context.Context) ([]Stat, error)

	// UpsertStat creates or replaces a keyword's stat row
	UpsertStat(ctx context.Context, stat *Stat) error

	// DeleteStat removes one keyword's stats and trend buckets
	DeleteStat(ctx context.Context, keyword string) error

	// DeleteAllStats removes every keyword's stats and trend buckets
	DeleteAllStats(ctx context.Context) error

	// GetWeight returns the learned weight for a keyword, or errors.ErrNotFound
	GetWeight(ctx context.Context, keyword string) (*LearnedWeight, error)

	// ListWeights returns all learned weights
	ListWeights(ctx context.Context) ([]LearnedWeight, error)

	// UpsertWeight creates or replaces a keyword's learned weight
	UpsertWeight(ctx context.Context, weight *LearnedWeight) error

	// IncrementTrendBucket adds one observation to a keyword's daily bucket
	IncrementTrendBucket(ctx context.Context, keyword string, day time.Time, relevant bool) error

	// GetTrendBuckets returns a keyword's daily buckets since the given day,
	// ordered oldest first
	GetTrendBuckets(ctx context.Context, keyword string, since time.Time) ([]TrendBucket, error)
}
