package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"echowatch/internal/adapters/redis"
	"echowatch/internal/domain/searchcache"
	pkgerrors "echowatch/pkg/errors"
	"echowatch/pkg/logger"
)

// Compile-time check
var _ searchcache.Repository = (*SearchCacheRepository)(nil)

const (
	entryKeyPrefix = "searchcache:entry:"
	indexKey       = "searchcache:keywords"
)

// SearchCacheRepository implements searchcache.Repository on Redis.
// Each keyword's entry is one JSON value; an index set tracks known keywords
// so listing does not require SCAN. Entries carry no TTL: freshness is
// decided at read time and stale entries are removed by the cleanup pass.
type SearchCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewSearchCacheRepository creates a new search cache repository
func NewSearchCacheRepository(client *redis.Client) *SearchCacheRepository {
	return &SearchCacheRepository{
		client: client,
		log:    logger.Get().With("component", "search_cache_repo"),
	}
}

// Get retrieves the entry for a keyword
func (r *SearchCacheRepository) Get(ctx context.Context, kw string) (*searchcache.Entry, error) {
	var entry searchcache.Entry
	err := r.client.Get(ctx, entryKeyPrefix+kw, &entry)
	if err == goredis.Nil {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "cache entry %q", kw)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCacheUnavailable, err.Error())
	}

	return &entry, nil
}

// Save creates or replaces the entry for a keyword
func (r *SearchCacheRepository) Save(ctx context.Context, entry *searchcache.Entry) error {
	if err := r.client.Set(ctx, entryKeyPrefix+entry.Keyword, entry, 0); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCacheUnavailable, err.Error())
	}
	if err := r.client.SAdd(ctx, indexKey, entry.Keyword); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCacheUnavailable, err.Error())
	}

	return nil
}

// Delete removes entries for the given keywords. Each entry's value is
// deleted before its index member, so a concurrent read sees either the
// full entry or a miss.
func (r *SearchCacheRepository) Delete(ctx context.Context, keywords ...string) error {
	for _, kw := range keywords {
		if err := r.client.Delete(ctx, entryKeyPrefix+kw); err != nil {
			return pkgerrors.Wrap(pkgerrors.ErrCacheUnavailable, err.Error())
		}
		if err := r.client.SRem(ctx, indexKey, kw); err != nil {
			return pkgerrors.Wrap(pkgerrors.ErrCacheUnavailable, err.Error())
		}
	}

	return nil
}

// List retrieves all cache entries
func (r *SearchCacheRepository) List(ctx context.Context) ([]searchcache.Entry, error) {
	keywords, err := r.client.SMembers(ctx, indexKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCacheUnavailable, err.Error())
	}

	entries := make([]searchcache.Entry, 0, len(keywords))
	for _, kw := range keywords {
		entry, err := r.Get(ctx, kw)
		if err != nil {
			// Entry deleted between SMembers and Get, or index drift
			if pkgerrors.Is(err, pkgerrors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		entries = append(entries, *entry)
	}

	return entries, nil
}
