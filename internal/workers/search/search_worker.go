package search

import (
	"context"

	"echowatch/internal/adapters/twitter"
	"echowatch/internal/domain/searchcache"
	"echowatch/internal/metrics"
	keywordsvc "echowatch/internal/services/keyword"
	"echowatch/internal/services/optimizer"
	quotasvc "echowatch/internal/services/quota"
	"echowatch/internal/workers"
	pkgerrors "echowatch/pkg/errors"
)

// Config contains configuration for the search worker
type Config struct {
	Keywords               []string
	TargetTweetsPerKeyword int
	PageSize               int
	ForceRefresh           bool
}

// Worker runs the periodic keyword search cycle: it weighs the configured
// keywords, builds a quota-bounded plan, executes the plan phase by phase,
// and feeds usage back into the ledger and the effectiveness tracker.
type Worker struct {
	*workers.BaseWorker

	twitter   *twitter.Client
	quota     *quotasvc.Service
	optimizer *optimizer.Service
	learner   *keywordsvc.Learner
	tracker   *keywordsvc.Tracker
	cache     CacheSaver
	config    Config
}

// CacheSaver stores search results for later freshness checks
type CacheSaver interface {
	SaveSearchResults(ctx context.Context, kw string, tweetIDs []string, params searchcache.Params, apiCallsUsed int) bool
}

// NewWorker creates a new search worker
func NewWorker(
	twitterClient *twitter.Client,
	quotaService *quotasvc.Service,
	optimizerService *optimizer.Service,
	learner *keywordsvc.Learner,
	tracker *keywordsvc.Tracker,
	cache CacheSaver,
	config Config,
	base *workers.BaseWorker,
) *Worker {
	return &Worker{
		BaseWorker: base,
		twitter:    twitterClient,
		quota:      quotaService,
		optimizer:  optimizerService,
		learner:    learner,
		tracker:    tracker,
		cache:      cache,
		config:     config,
	}
}

// Run executes one search cycle
func (w *Worker) Run(ctx context.Context) error {
	if len(w.config.Keywords) == 0 {
		w.Log().Debug("No keywords configured, skipping search cycle")
		return nil
	}

	remaining := w.quota.GetRemainingQuota(ctx)
	metrics.QuotaRemaining.Set(float64(remaining))
	if remaining <= 0 {
		w.Log().Warn("Monthly quota exhausted, skipping search cycle")
		return nil
	}

	weighted := make([]optimizer.KeywordWeight, 0, len(w.config.Keywords))
	for _, kw := range w.config.Keywords {
		weighted = append(weighted, optimizer.KeywordWeight{
			Keyword: kw,
			Weight:  w.learner.WeightFor(ctx, kw),
		})
	}

	plan := w.optimizer.OptimizeSearchPlan(ctx, weighted, remaining, w.config.ForceRefresh)

	for _, cached := range plan.CachedKeywords {
		metrics.RecordCacheLookup(true)
		// Cache hits still count toward effectiveness analytics
		if err := w.quota.RecordUsage(ctx, cached, "", 0, 0, true); err != nil {
			w.Log().Warn("Failed to record cache hit", "keyword", cached, "error", err)
		}
	}

	if plan.SkipAllAPICalls {
		w.Log().Info("All keywords served from cache",
			"cached", len(plan.CachedKeywords),
			"savings_pct", plan.SavingsPercentage,
		)
		return nil
	}

	for _, rec := range plan.Recommendations {
		w.Log().Info("Planner recommendation", "recommendation", rec)
	}

	var firstErr error
	searched := 0
	for _, phase := range plan.Phases {
		w.Log().Info("Executing search phase",
			"phase", phase.Name,
			"keywords", len(phase.Keywords),
			"estimated_calls", phase.APICallEstimate,
		)

		for _, kw := range phase.Keywords {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := w.searchKeyword(ctx, kw); err != nil {
				if pkgerrors.Is(err, pkgerrors.ErrRateLimitExceeded) {
					// Search rate limits reset on their own schedule; the
					// next scheduled cycle picks up where this one stopped
					w.Log().Warn("Search rate limited, ending cycle early", "keyword", kw)
					return nil
				}
				w.Log().Error("Keyword search failed", "keyword", kw, "error", err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			searched++
		}
	}

	metrics.QuotaRemaining.Set(float64(w.quota.GetRemainingQuota(ctx)))

	w.Log().Info("Search cycle complete",
		"searched", searched,
		"cached", len(plan.CachedKeywords),
		"skipped", len(plan.SkippedKeywords),
		"savings_pct", plan.SavingsPercentage,
	)

	return firstErr
}

// searchKeyword runs one metered search and records its cost. Usage is
// recorded for the calls actually made even when the search errors midway.
func (w *Worker) searchKeyword(ctx context.Context, kw string) error {
	metrics.RecordCacheLookup(false)

	query := twitter.BuildQuery(kw)
	result, searchErr := w.twitter.SearchRecent(ctx, query, w.config.TargetTweetsPerKeyword, w.config.PageSize)

	if result != nil && result.APICalls > 0 {
		metrics.RecordSearch(kw, result.APICalls, len(result.TweetIDs))

		if err := w.quota.RecordUsage(ctx, kw, query, result.APICalls, len(result.TweetIDs), false); err != nil {
			w.Log().Error("Failed to record quota usage", "keyword", kw, "error", err)
		}
		if err := w.tracker.AttributeCalls(ctx, kw, result.APICalls); err != nil {
			w.Log().Warn("Failed to attribute API calls", "keyword", kw, "error", err)
		}
	}

	if searchErr != nil {
		return searchErr
	}

	params := searchcache.Params{
		Query:      query,
		MaxResults: w.config.TargetTweetsPerKeyword,
		Pages:      result.APICalls,
	}
	w.cache.SaveSearchResults(ctx, kw, result.TweetIDs, params, result.APICalls)

	return nil
}
