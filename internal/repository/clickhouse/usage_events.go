package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"echowatch/internal/domain/quota"
	"echowatch/pkg/clickhouse"
	"echowatch/pkg/errors"
	"echowatch/pkg/logger"
)

// Compile-time check
var _ quota.EventWriter = (*UsageEventRepository)(nil)

// UsageEventRepository batch-writes search API usage events to ClickHouse.
// Events are append-only analytics; the authoritative quota counter lives
// in Postgres.
type UsageEventRepository struct {
	conn        driver.Conn
	batchWriter *clickhouse.BatchWriter
}

// NewUsageEventRepository creates a new usage event repository with batch writer
func NewUsageEventRepository(conn driver.Conn) *UsageEventRepository {
	repo := &UsageEventRepository{conn: conn}

	repo.batchWriter = clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig{
		FlushFunc:    repo.flushBatch,
		TableName:    "search_usage_events",
		MaxBatchSize: 200,
		MaxAge:       5 * time.Second,
	})

	return repo
}

// Start begins the background flush loop
func (r *UsageEventRepository) Start(ctx context.Context) {
	r.batchWriter.Start(ctx)
}

// Stop gracefully shuts down the batch writer
func (r *UsageEventRepository) Stop(ctx context.Context) error {
	return r.batchWriter.Stop(ctx)
}

// Store buffers a usage event for the next batch insert
func (r *UsageEventRepository) Store(ctx context.Context, event *quota.UsageEvent) error {
	return r.batchWriter.Add(ctx, event)
}

func (r *UsageEventRepository) flushBatch(ctx context.Context, batch []interface{}) error {
	if len(batch) == 0 {
		return nil
	}

	log := logger.Get().With("component", "usage_events_batch")

	query := `
		INSERT INTO search_usage_events (
			event_id, timestamp, keyword, query, api_calls, tweets_found, cache_hit
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	stmt, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}
	defer stmt.Close()

	valid := 0
	for _, item := range batch {
		event, ok := item.(*quota.UsageEvent)
		if !ok {
			log.Warnf("Skipping invalid item type: %T", item)
			continue
		}

		err := stmt.Append(
			event.EventID, event.Timestamp, event.Keyword,
			event.Query, event.APICalls, event.TweetsFound, event.CacheHit,
		)
		if err != nil {
			return errors.Wrap(err, "failed to append to batch")
		}
		valid++
	}

	if err := stmt.Send(); err != nil {
		return errors.Wrap(err, "failed to send batch")
	}

	log.Debugf("Batch inserted %d usage events", valid)
	return nil
}
