package quota

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"echowatch/internal/domain/quota"
	pkgerrors "echowatch/pkg/errors"
	"echowatch/pkg/logger"
)

// Usage thresholds at which the ledger warns. Warnings never block searches.
const (
	warnThresholdPct     = 70
	criticalThresholdPct = 90
)

// Config contains configuration for the quota ledger
type Config struct {
	PageSize int // results per search page (provider max 100)
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{PageSize: 100}
}

// Service is the quota ledger: it tracks cumulative search API calls against
// the monthly budget and projects exhaustion
type Service struct {
	repo   quota.Repository
	events quota.EventWriter // optional analytics sink, may be nil
	config Config
	log    *logger.Logger
	now    func() time.Time
}

// NewService creates a new quota ledger service
func NewService(repo quota.Repository, events quota.EventWriter, config Config) *Service {
	if config.PageSize <= 0 {
		config.PageSize = DefaultConfig().PageSize
	}

	return &Service{
		repo:   repo,
		events: events,
		config: config,
		log:    logger.Get().With("component", "quota_ledger"),
		now:    time.Now,
	}
}

// GetRemainingQuota returns the unspent monthly budget, floored at zero.
// If the ledger state cannot be read it fails closed and reports zero
// remaining: an unreadable counter must never permit unlimited calls.
func (s *Service) GetRemainingQuota(ctx context.Context) int {
	state, err := s.repo.GetState(ctx)
	if err != nil {
		s.log.Error("Quota state unavailable, failing closed", "error", err)
		return 0
	}

	return state.Remaining()
}

// EstimateSearchCost projects the API call cost of searching numKeywords
// keywords for tweetsPerKeyword tweets each
func (s *Service) EstimateSearchCost(ctx context.Context, numKeywords, tweetsPerKeyword int) *quota.CostEstimate {
	pagesPerQuery := pagesFor(tweetsPerKeyword, s.config.PageSize)
	totalCalls := numKeywords * pagesPerQuery
	remaining := s.GetRemainingQuota(ctx)

	percentage := 0.0
	if remaining > 0 {
		percentage = float64(totalCalls) / float64(remaining) * 100
	} else if totalCalls > 0 {
		percentage = 100
	}

	remainingAfter := remaining - totalCalls
	if remainingAfter < 0 {
		remainingAfter = 0
	}

	return &quota.CostEstimate{
		QueriesNeeded:         numKeywords,
		PagesPerQuery:         pagesPerQuery,
		TotalAPICalls:         totalCalls,
		PercentageOfRemaining: percentage,
		CanAfford:             totalCalls <= remaining,
		RemainingAfter:        remainingAfter,
	}
}

// RecordUsage appends consumed API calls to the ledger and emits an
// analytics event. Threshold crossings are logged as warnings but never
// block the caller.
func (s *Service) RecordUsage(ctx context.Context, keyword, query string, apiCalls, tweetsFound int, cacheHit bool) error {
	if apiCalls > 0 {
		if err := s.repo.AddUsage(ctx, apiCalls); err != nil {
			return pkgerrors.Wrap(err, "failed to record quota usage")
		}
	}

	if state, err := s.repo.GetState(ctx); err == nil {
		pct := state.UsagePercentage()
		switch {
		case pct >= criticalThresholdPct:
			s.log.Warn("Monthly quota critically high",
				"usage", state.MonthlyUsage,
				"limit", state.MonthlyLimit,
				"percentage", pct,
			)
		case pct >= warnThresholdPct:
			s.log.Warn("Monthly quota above warning threshold",
				"usage", state.MonthlyUsage,
				"limit", state.MonthlyLimit,
				"percentage", pct,
			)
		}
	}

	if s.events != nil {
		event := &quota.UsageEvent{
			EventID:     uuid.New(),
			Timestamp:   s.now(),
			Keyword:     keyword,
			Query:       query,
			APICalls:    apiCalls,
			TweetsFound: tweetsFound,
			CacheHit:    cacheHit,
		}
		if err := s.events.Store(ctx, event); err != nil {
			// Analytics loss is non-fatal; the Postgres ledger is authoritative
			s.log.Warn("Failed to store usage event", "error", err)
		}
	}

	return nil
}

// GetUsageStats returns the full quota report with exhaustion projections
func (s *Service) GetUsageStats(ctx context.Context) (*quota.Stats, error) {
	state, err := s.repo.GetState(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrQuotaUnavailable, err.Error())
	}

	now := s.now()
	remaining := state.Remaining()

	daysElapsed := now.Sub(state.PeriodStart).Hours() / 24
	if daysElapsed < 1 {
		daysElapsed = 1
	}
	dailyAverage := float64(state.MonthlyUsage) / daysElapsed

	periodDays := state.PeriodEnd.Sub(state.PeriodStart).Hours() / 24
	projectedMonthly := dailyAverage * periodDays

	daysRemaining := state.PeriodEnd.Sub(now).Hours() / 24
	if daysRemaining < 1 {
		daysRemaining = 1
	}

	stats := &quota.Stats{
		MonthlyLimit:          state.MonthlyLimit,
		MonthlyUsage:          state.MonthlyUsage,
		MonthlyRemaining:      remaining,
		MonthlyPercentage:     state.UsagePercentage(),
		DailyAverage:          dailyAverage,
		ProjectedMonthly:      projectedMonthly,
		RecommendedDailyLimit: float64(remaining) / daysRemaining,
	}

	if dailyAverage > 0 {
		stats.DaysUntilExhausted = float64(remaining) / dailyAverage
		exhaustion := now.Add(time.Duration(stats.DaysUntilExhausted * 24 * float64(time.Hour)))
		stats.ExhaustionDate = &exhaustion
	} else {
		stats.DaysUntilExhausted = math.Inf(1)
	}

	return stats, nil
}

// ResetPeriod starts a new billing period (external trigger, e.g. the first
// search after the provider's billing rollover)
func (s *Service) ResetPeriod(ctx context.Context, start, end time.Time) error {
	if err := s.repo.ResetPeriod(ctx, start, end); err != nil {
		return pkgerrors.Wrap(err, "failed to reset billing period")
	}

	s.log.Info("Billing period reset", "start", start, "end", end)
	return nil
}

// pagesFor computes pages needed per query: ceil(tweets / pageSize), min 1
func pagesFor(tweets, pageSize int) int {
	if tweets <= 0 {
		return 1
	}
	pages := (tweets + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}
