package quota

import (
	"context"
	"time"
)

// Repository defines the interface for quota ledger persistence (Postgres)
type Repository interface {
	// GetState returns the ledger for the current billing period
	GetState(ctx context.Context) (*State, error)

	// AddUsage increments monthly usage by the given number of API calls
	AddUsage(ctx context.Context, calls int) error

	// ResetPeriod starts a new billing period with zero usage
	ResetPeriod(ctx context.Context, start, end time.Time) error
}

// EventWriter records per-call usage events for analytics (ClickHouse)
type EventWriter interface {
	Store(ctx context.Context, event *UsageEvent) error
}
