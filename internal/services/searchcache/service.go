package searchcache

import (
	"context"
	"time"

	"echowatch/internal/domain/searchcache"
	pkgerrors "echowatch/pkg/errors"
	"echowatch/pkg/logger"
)

// Config contains configuration for the search result cache
type Config struct {
	FreshnessWindow time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{FreshnessWindow: searchcache.DefaultFreshnessWindow}
}

// CacheCheck is the result of a freshness lookup for one keyword
type CacheCheck struct {
	Cached   bool     `json:"cached"`
	TweetIDs []string `json:"tweet_ids,omitempty"`
	HoursOld float64  `json:"hours_old,omitempty"`
}

// Stats summarizes cache contents over a trailing window
type Stats struct {
	UniqueKeywords     int `json:"unique_keywords"`
	TotalSearches      int `json:"total_searches"`
	TotalTweetsCached  int `json:"total_tweets_cached"`
	ActiveCacheEntries int `json:"active_cache_entries"`
	ActiveCachedTweets int `json:"active_cached_tweets"`
}

// Service is the time-windowed search result cache. A fresh entry lets the
// planner skip a metered search call entirely.
type Service struct {
	repo   searchcache.Repository
	config Config
	log    *logger.Logger
	now    func() time.Time
}

// NewService creates a new search cache service
func NewService(repo searchcache.Repository, config Config) *Service {
	if config.FreshnessWindow <= 0 {
		config.FreshnessWindow = searchcache.DefaultFreshnessWindow
	}

	return &Service{
		repo:   repo,
		config: config,
		log:    logger.Get().With("component", "search_cache"),
		now:    time.Now,
	}
}

// FreshnessWindow returns the configured freshness window
func (s *Service) FreshnessWindow() time.Duration {
	return s.config.FreshnessWindow
}

// CheckKeywordCache looks up a keyword's cached results. maxAge of zero
// means the configured freshness window. Store failures fail open: the
// caller sees a miss and proceeds to a real search.
func (s *Service) CheckKeywordCache(ctx context.Context, kw string, maxAge time.Duration) *CacheCheck {
	if maxAge <= 0 {
		maxAge = s.config.FreshnessWindow
	}

	entry, err := s.repo.Get(ctx, kw)
	if err != nil {
		if !pkgerrors.Is(err, pkgerrors.ErrNotFound) {
			s.log.Warn("Cache read failed, treating as miss", "keyword", kw, "error", err)
		}
		return &CacheCheck{Cached: false}
	}

	age := entry.Age(s.now())
	if age >= maxAge {
		return &CacheCheck{Cached: false, HoursOld: age.Hours()}
	}

	return &CacheCheck{
		Cached:   true,
		TweetIDs: entry.TweetIDs,
		HoursOld: age.Hours(),
	}
}

// SaveSearchResults stores a keyword's search results with a fresh
// timestamp, replacing any previous entry. Returns false on storage
// failure; a lost cache write only costs a future redundant API call, so
// callers proceed as though uncached.
func (s *Service) SaveSearchResults(ctx context.Context, kw string, tweetIDs []string, params searchcache.Params, apiCallsUsed int) bool {
	entry := &searchcache.Entry{
		Keyword:      kw,
		TweetIDs:     tweetIDs,
		SearchParams: params,
		APICallsUsed: apiCallsUsed,
		CachedAt:     s.now(),
	}

	if err := s.repo.Save(ctx, entry); err != nil {
		s.log.Warn("Cache write failed, results not cached", "keyword", kw, "error", err)
		return false
	}

	return true
}

// GetCacheStatistics reports cache contents for entries created within the
// trailing number of days
func (s *Service) GetCacheStatistics(ctx context.Context, days int) (*Stats, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list cache entries")
	}

	now := s.now()
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	stats := &Stats{}
	for i := range entries {
		entry := &entries[i]
		if entry.CachedAt.Before(cutoff) {
			continue
		}

		stats.UniqueKeywords++
		stats.TotalSearches++
		stats.TotalTweetsCached += len(entry.TweetIDs)

		if entry.Fresh(now, s.config.FreshnessWindow) {
			stats.ActiveCacheEntries++
			stats.ActiveCachedTweets += len(entry.TweetIDs)
		}
	}

	return stats, nil
}

// CleanupExpiredCache purges entries older than the freshness window.
// Idempotent, and safe to run concurrently with reads: per-entry deletion is
// atomic, so a read mid-purge sees a plain miss.
func (s *Service) CleanupExpiredCache(ctx context.Context) (int, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to list cache entries")
	}

	now := s.now()
	stale := make([]string, 0)
	for i := range entries {
		if !entries[i].Fresh(now, s.config.FreshnessWindow) {
			stale = append(stale, entries[i].Keyword)
		}
	}

	if len(stale) == 0 {
		return 0, nil
	}

	if err := s.repo.Delete(ctx, stale...); err != nil {
		return 0, pkgerrors.Wrap(err, "failed to purge stale cache entries")
	}

	s.log.Info("Purged stale cache entries", "count", len(stale))
	return len(stale), nil
}
