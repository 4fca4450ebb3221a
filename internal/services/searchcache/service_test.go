package searchcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echowatch/internal/domain/searchcache"
	pkgerrors "echowatch/pkg/errors"
)

// In-memory cache store for testing
type fakeRepo struct {
	entries map[string]*searchcache.Entry

	getErr    error
	saveErr   error
	listErr   error
	deleteErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{entries: make(map[string]*searchcache.Entry)}
}

func (f *fakeRepo) Get(ctx context.Context, kw string) (*searchcache.Entry, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	entry, ok := f.entries[kw]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

func (f *fakeRepo) Save(ctx context.Context, entry *searchcache.Entry) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	copied := *entry
	f.entries[entry.Keyword] = &copied
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, keywords ...string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for _, kw := range keywords {
		delete(f.entries, kw)
	}
	return nil
}

func (f *fakeRepo) List(ctx context.Context) ([]searchcache.Entry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]searchcache.Entry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, *e)
	}
	return out, nil
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(repo *fakeRepo) *Service {
	svc := NewService(repo, DefaultConfig())
	svc.now = func() time.Time { return testNow }
	return svc
}

func cachedEntry(kw string, age time.Duration, tweetIDs ...string) *searchcache.Entry {
	return &searchcache.Entry{
		Keyword:  kw,
		TweetIDs: tweetIDs,
		CachedAt: testNow.Add(-age),
	}
}

func TestCheckKeywordCache_Hit(t *testing.T) {
	repo := newFakeRepo()
	repo.entries["ai podcast"] = cachedEntry("ai podcast", 10*time.Hour, "t1", "t2")
	svc := newTestService(repo)

	check := svc.CheckKeywordCache(context.Background(), "ai podcast", 0)

	assert.True(t, check.Cached)
	assert.Equal(t, []string{"t1", "t2"}, check.TweetIDs)
	assert.InDelta(t, 10.0, check.HoursOld, 0.001)
}

func TestCheckKeywordCache_Miss(t *testing.T) {
	svc := newTestService(newFakeRepo())

	check := svc.CheckKeywordCache(context.Background(), "unknown", 0)
	assert.False(t, check.Cached)
}

func TestCheckKeywordCache_StaleEntryIsMiss(t *testing.T) {
	repo := newFakeRepo()
	repo.entries["old"] = cachedEntry("old", 97*time.Hour, "t1")
	svc := newTestService(repo)

	check := svc.CheckKeywordCache(context.Background(), "old", 0)
	assert.False(t, check.Cached)
}

func TestCheckKeywordCache_FreshnessBoundary(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	// One second inside the window is a hit
	repo.entries["edge"] = cachedEntry("edge", searchcache.DefaultFreshnessWindow-time.Second, "t1")
	assert.True(t, svc.CheckKeywordCache(context.Background(), "edge", 0).Cached)

	// Exactly at the window is a miss
	repo.entries["edge"] = cachedEntry("edge", searchcache.DefaultFreshnessWindow, "t1")
	assert.False(t, svc.CheckKeywordCache(context.Background(), "edge", 0).Cached)
}

func TestCheckKeywordCache_CustomMaxAge(t *testing.T) {
	repo := newFakeRepo()
	repo.entries["ai podcast"] = cachedEntry("ai podcast", 10*time.Hour, "t1")
	svc := newTestService(repo)

	// Fresh under the default window but stale under a tighter one
	assert.True(t, svc.CheckKeywordCache(context.Background(), "ai podcast", 24*time.Hour).Cached)
	assert.False(t, svc.CheckKeywordCache(context.Background(), "ai podcast", 6*time.Hour).Cached)
}

func TestCheckKeywordCache_FailsOpen(t *testing.T) {
	repo := newFakeRepo()
	repo.getErr = pkgerrors.ErrCacheUnavailable
	svc := newTestService(repo)

	// A broken store must degrade to a miss, not block searching
	check := svc.CheckKeywordCache(context.Background(), "ai podcast", 0)
	assert.False(t, check.Cached)
}

func TestSaveSearchResults(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	params := searchcache.Params{Query: "ai podcast -is:retweet lang:en", MaxResults: 100, Pages: 2}
	ok := svc.SaveSearchResults(context.Background(), "ai podcast", []string{"t1", "t2"}, params, 2)

	assert.True(t, ok)
	entry := repo.entries["ai podcast"]
	require.NotNil(t, entry)
	assert.Equal(t, []string{"t1", "t2"}, entry.TweetIDs)
	assert.Equal(t, 2, entry.APICallsUsed)
	assert.Equal(t, testNow, entry.CachedAt)
}

func TestSaveSearchResults_ReplacesPreviousEntry(t *testing.T) {
	repo := newFakeRepo()
	repo.entries["ai podcast"] = cachedEntry("ai podcast", 90*time.Hour, "stale")
	svc := newTestService(repo)

	ok := svc.SaveSearchResults(context.Background(), "ai podcast", []string{"fresh"}, searchcache.Params{}, 1)

	assert.True(t, ok)
	assert.Equal(t, []string{"fresh"}, repo.entries["ai podcast"].TweetIDs)
	assert.Equal(t, testNow, repo.entries["ai podcast"].CachedAt)
}

func TestSaveSearchResults_WriteFailureIsNonFatal(t *testing.T) {
	repo := newFakeRepo()
	repo.saveErr = pkgerrors.ErrCacheUnavailable
	svc := newTestService(repo)

	ok := svc.SaveSearchResults(context.Background(), "ai podcast", []string{"t1"}, searchcache.Params{}, 1)
	assert.False(t, ok)
}

func TestGetCacheStatistics(t *testing.T) {
	repo := newFakeRepo()
	repo.entries["fresh"] = cachedEntry("fresh", 10*time.Hour, "t1", "t2")
	repo.entries["stale"] = cachedEntry("stale", 100*time.Hour, "t3")
	repo.entries["ancient"] = cachedEntry("ancient", 10*24*time.Hour, "t4")
	svc := newTestService(repo)

	stats, err := svc.GetCacheStatistics(context.Background(), 7)
	require.NoError(t, err)

	// "ancient" falls outside the 7-day window entirely
	assert.Equal(t, 2, stats.UniqueKeywords)
	assert.Equal(t, 3, stats.TotalTweetsCached)

	// Only "fresh" is still inside the freshness window
	assert.Equal(t, 1, stats.ActiveCacheEntries)
	assert.Equal(t, 2, stats.ActiveCachedTweets)
}

func TestCleanupExpiredCache(t *testing.T) {
	repo := newFakeRepo()
	repo.entries["fresh"] = cachedEntry("fresh", 10*time.Hour, "t1")
	repo.entries["stale1"] = cachedEntry("stale1", 100*time.Hour, "t2")
	repo.entries["stale2"] = cachedEntry("stale2", 200*time.Hour, "t3")
	svc := newTestService(repo)

	purged, err := svc.CleanupExpiredCache(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, purged)
	assert.Contains(t, repo.entries, "fresh")
	assert.NotContains(t, repo.entries, "stale1")
	assert.NotContains(t, repo.entries, "stale2")
}

func TestCleanupExpiredCache_Idempotent(t *testing.T) {
	repo := newFakeRepo()
	repo.entries["stale"] = cachedEntry("stale", 100*time.Hour, "t1")
	svc := newTestService(repo)

	purged, err := svc.CleanupExpiredCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	purged, err = svc.CleanupExpiredCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, purged)
}
