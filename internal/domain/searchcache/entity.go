package searchcache

import (
	"time"
)

// DefaultFreshnessWindow is how long cached search results stay valid.
// Result sets for a fixed keyword overlap heavily over a few days, so
// re-searching inside this window buys almost no new signal.
const DefaultFreshnessWindow = 96 * time.Hour

// Params is a snapshot of the query parameters used for a search
type Params struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
	Pages      int    `json:"pages"`
}

// Entry is a cached search result set for one keyword.
// TweetIDs preserve retrieval order.
type Entry struct {
	Keyword      string    `json:"keyword"`
	TweetIDs     []string  `json:"tweet_ids"`
	SearchParams Params    `json:"search_params"`
	APICallsUsed int       `json:"api_calls_used"`
	CachedAt     time.Time `json:"cached_at"`
}

// Age returns how old the entry is at the given time
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CachedAt)
}

// Fresh reports whether the entry is still inside the freshness window.
// Staleness is purely a function of elapsed time.
func (e *Entry) Fresh(now time.Time, window time.Duration) bool {
	return e.Age(now) < window
}
