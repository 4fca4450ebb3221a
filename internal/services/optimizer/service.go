package optimizer

import (
	"context"
	"fmt"
	"sort"

	"echowatch/internal/services/searchcache"
	"echowatch/pkg/logger"
)

// Weight bands for phase assignment. Ordering by weight is preserved across
// band boundaries, so phases always run best keywords first.
const (
	highBandFloor   = 0.8
	mediumBandFloor = 0.4
)

// Config contains configuration for the search optimizer
type Config struct {
	PageSize               int // results per search page (provider max 100)
	TargetTweetsPerKeyword int
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		PageSize:               100,
		TargetTweetsPerKeyword: 100,
	}
}

// KeywordWeight pairs a keyword with its learned priority weight
type KeywordWeight struct {
	Keyword string  `json:"keyword"`
	Weight  float64 `json:"weight"`
}

// Phase is one contiguous priority tier of a search plan
type Phase struct {
	Name            string   `json:"name"`
	Keywords        []string `json:"keywords"`
	Queries         int      `json:"queries"`
	APICallEstimate int      `json:"api_call_estimate"`
}

// Plan is a phased, quota-bounded search schedule for a keyword list
type Plan struct {
	Phases              []Phase         `json:"phases"`
	KeywordsToSearch    []KeywordWeight `json:"keywords_to_search"`
	CachedKeywords      []string        `json:"cached_keywords"`
	SkippedKeywords     []KeywordWeight `json:"skipped_keywords"`
	SkipAllAPICalls     bool            `json:"skip_all_api_calls"`
	TotalOptimizedCalls int             `json:"total_optimized_calls"`
	NaiveTotalCalls     int             `json:"naive_total_calls"`
	SavingsPercentage   float64         `json:"savings_percentage"`
	Recommendations     []string        `json:"recommendations"`
}

// Service builds phased search plans that spend quota on the highest-weight
// keywords first
type Service struct {
	cache  *searchcache.Service
	config Config
	log    *logger.Logger
}

// NewService creates a new search optimizer
func NewService(cache *searchcache.Service, config Config) *Service {
	if config.PageSize <= 0 {
		config.PageSize = DefaultConfig().PageSize
	}
	if config.TargetTweetsPerKeyword <= 0 {
		config.TargetTweetsPerKeyword = DefaultConfig().TargetTweetsPerKeyword
	}

	return &Service{
		cache:  cache,
		config: config,
		log:    logger.Get().With("component", "search_optimizer"),
	}
}

// CallsPerKeyword returns the API call estimate for searching one keyword
func (s *Service) CallsPerKeyword() int {
	pages := (s.config.TargetTweetsPerKeyword + s.config.PageSize - 1) / s.config.PageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}

// OptimizeSearchPlan produces a phased search plan for the given keywords
// under the given quota budget. forceRefresh bypasses the cache partition:
// every keyword is searched regardless of freshness.
//
// The plan searches keywords in weight-descending order (stable on input
// order for ties) and stops the moment cumulative cost would exceed the
// budget; the lowest-weight remainder is surfaced as skipped.
func (s *Service) OptimizeSearchPlan(ctx context.Context, keywords []KeywordWeight, quotaLimit int, forceRefresh bool) *Plan {
	plan := &Plan{
		Phases:           []Phase{},
		KeywordsToSearch: []KeywordWeight{},
		CachedKeywords:   []string{},
		SkippedKeywords:  []KeywordWeight{},
		Recommendations:  []string{},
	}

	callsPerKeyword := s.CallsPerKeyword()
	plan.NaiveTotalCalls = len(keywords) * callsPerKeyword

	if len(keywords) == 0 {
		return plan
	}

	// Partition by cache freshness, clamping malformed input weights into
	// [0, 1] rather than rejecting them
	toSearch := make([]KeywordWeight, 0, len(keywords))
	for _, kw := range keywords {
		kw.Weight = clampInputWeight(kw.Weight)

		if !forceRefresh {
			if check := s.cache.CheckKeywordCache(ctx, kw.Keyword, 0); check.Cached {
				plan.CachedKeywords = append(plan.CachedKeywords, kw.Keyword)
				continue
			}
		}
		toSearch = append(toSearch, kw)
	}

	if len(toSearch) == 0 {
		plan.SkipAllAPICalls = true
		plan.SavingsPercentage = savings(plan.NaiveTotalCalls, 0)
		return plan
	}

	sort.SliceStable(toSearch, func(i, j int) bool {
		return toSearch[i].Weight > toSearch[j].Weight
	})

	// Walk in priority order, cutting off at the quota budget
	cumulative := 0
	cut := len(toSearch)
	for i := range toSearch {
		if cumulative+callsPerKeyword > quotaLimit {
			cut = i
			break
		}
		cumulative += callsPerKeyword
	}

	plan.KeywordsToSearch = toSearch[:cut]
	plan.TotalOptimizedCalls = cumulative

	for _, skipped := range toSearch[cut:] {
		plan.SkippedKeywords = append(plan.SkippedKeywords, skipped)
		plan.Recommendations = append(plan.Recommendations, fmt.Sprintf(
			"skipped %q due to quota (weight %.2f)", skipped.Keyword, skipped.Weight,
		))
	}

	plan.Phases = s.buildPhases(plan.KeywordsToSearch, callsPerKeyword)
	plan.SavingsPercentage = savings(plan.NaiveTotalCalls, plan.TotalOptimizedCalls)

	s.log.Debug("Search plan built",
		"keywords", len(keywords),
		"cached", len(plan.CachedKeywords),
		"to_search", len(plan.KeywordsToSearch),
		"skipped", len(plan.SkippedKeywords),
		"calls", plan.TotalOptimizedCalls,
		"savings_pct", plan.SavingsPercentage,
	)

	return plan
}

// buildPhases groups the (already weight-sorted) keywords into weight bands:
// high ≥ 0.8, medium 0.4–0.8, low < 0.4. Empty bands are omitted.
func (s *Service) buildPhases(keywords []KeywordWeight, callsPerKeyword int) []Phase {
	bands := []struct {
		name  string
		match func(w float64) bool
	}{
		{"high_priority", func(w float64) bool { return w >= highBandFloor }},
		{"medium_priority", func(w float64) bool { return w >= mediumBandFloor && w < highBandFloor }},
		{"low_priority", func(w float64) bool { return w < mediumBandFloor }},
	}

	phases := make([]Phase, 0, len(bands))
	for _, band := range bands {
		phase := Phase{Name: band.name}
		for _, kw := range keywords {
			if band.match(kw.Weight) {
				phase.Keywords = append(phase.Keywords, kw.Keyword)
			}
		}
		if len(phase.Keywords) == 0 {
			continue
		}
		phase.Queries = len(phase.Keywords)
		phase.APICallEstimate = len(phase.Keywords) * callsPerKeyword
		phases = append(phases, phase)
	}

	return phases
}

// savings computes the percentage saved versus searching every keyword
// independently with no cache and no cutoff. Guarded for the empty plan.
func savings(naive, optimized int) float64 {
	if naive <= 0 {
		return 0
	}
	return float64(naive-optimized) / float64(naive) * 100
}

// clampInputWeight forces an input weight into [0, 1]. Malformed learned
// weights degrade gracefully instead of halting planning.
func clampInputWeight(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}
