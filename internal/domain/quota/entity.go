package quota

import (
	"time"

	"github.com/google/uuid"
)

// State is the quota ledger for the current billing period.
// MonthlyUsage only ever increases within a period; it is reset when the
// billing period rolls over (external trigger).
type State struct {
	MonthlyLimit int       `db:"monthly_limit"`
	MonthlyUsage int       `db:"monthly_usage"`
	PeriodStart  time.Time `db:"period_start"`
	PeriodEnd    time.Time `db:"period_end"`
}

// Remaining returns the unspent portion of the monthly budget, floored at 0.
// Usage can exceed the limit when the provider double-counts calls.
func (s *State) Remaining() int {
	remaining := s.MonthlyLimit - s.MonthlyUsage
	if remaining < 0 {
		return 0
	}
	return remaining
}

// UsagePercentage returns how much of the monthly budget has been spent
func (s *State) UsagePercentage() float64 {
	if s.MonthlyLimit <= 0 {
		return 0
	}
	return float64(s.MonthlyUsage) / float64(s.MonthlyLimit) * 100
}

// CostEstimate describes the projected cost of a search run
type CostEstimate struct {
	QueriesNeeded         int     `json:"queries_needed"`
	PagesPerQuery         int     `json:"pages_per_query"`
	TotalAPICalls         int     `json:"total_api_calls"`
	PercentageOfRemaining float64 `json:"percentage_of_remaining"`
	CanAfford             bool    `json:"can_afford"`
	RemainingAfter        int     `json:"remaining_after"`
}

// Stats is the full quota report exposed to the API layer.
// DaysUntilExhausted is +Inf when there is no usage yet; ExhaustionDate is
// nil in that case.
type Stats struct {
	MonthlyLimit          int        `json:"monthly_limit"`
	MonthlyUsage          int        `json:"monthly_usage"`
	MonthlyRemaining      int        `json:"monthly_remaining"`
	MonthlyPercentage     float64    `json:"monthly_percentage"`
	DailyAverage          float64    `json:"daily_average"`
	ProjectedMonthly      float64    `json:"projected_monthly"`
	DaysUntilExhausted    float64    `json:"days_until_exhausted,omitempty"`
	ExhaustionDate        *time.Time `json:"exhaustion_date,omitempty"`
	RecommendedDailyLimit float64    `json:"recommended_daily_limit"`
}

// UsageEvent is a single search API call record (for ClickHouse analytics)
type UsageEvent struct {
	EventID     uuid.UUID `ch:"event_id"`
	Timestamp   time.Time `ch:"timestamp"`
	Keyword     string    `ch:"keyword"`
	Query       string    `ch:"query"`
	APICalls    int       `ch:"api_calls"`
	TweetsFound int       `ch:"tweets_found"`
	CacheHit    bool      `ch:"cache_hit"`
}
