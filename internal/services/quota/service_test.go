package quota

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echowatch/internal/domain/quota"
	pkgerrors "echowatch/pkg/errors"
)

// In-memory ledger for testing
type fakeRepo struct {
	state    *quota.State
	getErr   error
	addErr   error
	addCalls []int
}

func (f *fakeRepo) GetState(ctx context.Context) (*quota.State, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.state, nil
}

func (f *fakeRepo) AddUsage(ctx context.Context, calls int) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.addCalls = append(f.addCalls, calls)
	f.state.MonthlyUsage += calls
	return nil
}

func (f *fakeRepo) ResetPeriod(ctx context.Context, start, end time.Time) error {
	f.state = &quota.State{
		MonthlyLimit: f.state.MonthlyLimit,
		PeriodStart:  start,
		PeriodEnd:    end,
	}
	return nil
}

type fakeEventWriter struct {
	events []*quota.UsageEvent
	err    error
}

func (f *fakeEventWriter) Store(ctx context.Context, event *quota.UsageEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func newTestService(repo *fakeRepo, events quota.EventWriter) *Service {
	svc := NewService(repo, events, DefaultConfig())
	return svc
}

func periodState(limit, usage int) *quota.State {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &quota.State{
		MonthlyLimit: limit,
		MonthlyUsage: usage,
		PeriodStart:  start,
		PeriodEnd:    start.AddDate(0, 1, 0),
	}
}

func TestGetRemainingQuota(t *testing.T) {
	repo := &fakeRepo{state: periodState(10000, 3500)}
	svc := newTestService(repo, nil)

	assert.Equal(t, 6500, svc.GetRemainingQuota(context.Background()))
}

func TestGetRemainingQuota_FlooredAtZero(t *testing.T) {
	// Provider-side double counting can push usage past the limit
	repo := &fakeRepo{state: periodState(10000, 10250)}
	svc := newTestService(repo, nil)

	assert.Equal(t, 0, svc.GetRemainingQuota(context.Background()))
}

func TestGetRemainingQuota_FailsClosed(t *testing.T) {
	repo := &fakeRepo{state: periodState(10000, 0), getErr: pkgerrors.ErrUnavailable}
	svc := newTestService(repo, nil)

	// An unreadable ledger must never look like unlimited budget
	assert.Equal(t, 0, svc.GetRemainingQuota(context.Background()))
}

func TestEstimateSearchCost(t *testing.T) {
	repo := &fakeRepo{state: periodState(10000, 9000)}
	svc := newTestService(repo, nil)

	estimate := svc.EstimateSearchCost(context.Background(), 20, 100)

	assert.Equal(t, 20, estimate.QueriesNeeded)
	assert.Equal(t, 1, estimate.PagesPerQuery)
	assert.Equal(t, 20, estimate.TotalAPICalls)
	assert.True(t, estimate.CanAfford)
	assert.Equal(t, 980, estimate.RemainingAfter)
	assert.InDelta(t, 2.0, estimate.PercentageOfRemaining, 0.001)
}

func TestEstimateSearchCost_MultiplePages(t *testing.T) {
	repo := &fakeRepo{state: periodState(10000, 0)}
	svc := newTestService(repo, nil)

	// 250 tweets at 100 per page needs 3 pages
	estimate := svc.EstimateSearchCost(context.Background(), 10, 250)

	assert.Equal(t, 3, estimate.PagesPerQuery)
	assert.Equal(t, 30, estimate.TotalAPICalls)
}

func TestEstimateSearchCost_CannotAfford(t *testing.T) {
	repo := &fakeRepo{state: periodState(10000, 9990)}
	svc := newTestService(repo, nil)

	estimate := svc.EstimateSearchCost(context.Background(), 20, 100)

	assert.False(t, estimate.CanAfford)
	assert.Equal(t, 0, estimate.RemainingAfter)
}

func TestEstimateSearchCost_ExhaustedQuota(t *testing.T) {
	repo := &fakeRepo{state: periodState(10000, 10000)}
	svc := newTestService(repo, nil)

	estimate := svc.EstimateSearchCost(context.Background(), 5, 100)

	assert.False(t, estimate.CanAfford)
	assert.InDelta(t, 100.0, estimate.PercentageOfRemaining, 0.001)
}

func TestRecordUsage(t *testing.T) {
	repo := &fakeRepo{state: periodState(10000, 0)}
	events := &fakeEventWriter{}
	svc := newTestService(repo, events)

	err := svc.RecordUsage(context.Background(), "ai podcast", "ai podcast -is:retweet lang:en", 3, 250, false)
	require.NoError(t, err)

	assert.Equal(t, []int{3}, repo.addCalls)
	require.Len(t, events.events, 1)
	assert.Equal(t, "ai podcast", events.events[0].Keyword)
	assert.Equal(t, 3, events.events[0].APICalls)
	assert.False(t, events.events[0].CacheHit)
}

func TestRecordUsage_CacheHitSkipsLedger(t *testing.T) {
	repo := &fakeRepo{state: periodState(10000, 0)}
	events := &fakeEventWriter{}
	svc := newTestService(repo, events)

	err := svc.RecordUsage(context.Background(), "ai podcast", "", 0, 0, true)
	require.NoError(t, err)

	// Zero calls never touch the ledger but still produce an analytics event
	assert.Empty(t, repo.addCalls)
	require.Len(t, events.events, 1)
	assert.True(t, events.events[0].CacheHit)
}

func TestRecordUsage_EventWriterFailureIsNonFatal(t *testing.T) {
	repo := &fakeRepo{state: periodState(10000, 0)}
	events := &fakeEventWriter{err: pkgerrors.ErrInternal}
	svc := newTestService(repo, events)

	err := svc.RecordUsage(context.Background(), "ai podcast", "q", 2, 100, false)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, repo.addCalls)
}

func TestRecordUsage_LedgerFailureIsFatal(t *testing.T) {
	repo := &fakeRepo{state: periodState(10000, 0), addErr: pkgerrors.ErrUnavailable}
	svc := newTestService(repo, nil)

	err := svc.RecordUsage(context.Background(), "ai podcast", "q", 2, 100, false)
	assert.Error(t, err)
}

func TestGetUsageStats(t *testing.T) {
	repo := &fakeRepo{state: periodState(10000, 3000)}
	svc := newTestService(repo, nil)

	// 10 days into a 30-day period
	svc.now = func() time.Time { return repo.state.PeriodStart.AddDate(0, 0, 10) }

	stats, err := svc.GetUsageStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10000, stats.MonthlyLimit)
	assert.Equal(t, 3000, stats.MonthlyUsage)
	assert.Equal(t, 7000, stats.MonthlyRemaining)
	assert.InDelta(t, 30.0, stats.MonthlyPercentage, 0.001)
	assert.InDelta(t, 300.0, stats.DailyAverage, 0.001)
	assert.InDelta(t, 9000.0, stats.ProjectedMonthly, 0.001)

	// 7000 remaining at 300/day
	assert.InDelta(t, 23.333, stats.DaysUntilExhausted, 0.01)
	require.NotNil(t, stats.ExhaustionDate)
	assert.InDelta(t, 350.0, stats.RecommendedDailyLimit, 0.001)
}

func TestGetUsageStats_NoUsageYet(t *testing.T) {
	repo := &fakeRepo{state: periodState(10000, 0)}
	svc := newTestService(repo, nil)
	svc.now = func() time.Time { return repo.state.PeriodStart.AddDate(0, 0, 5) }

	stats, err := svc.GetUsageStats(context.Background())
	require.NoError(t, err)

	assert.True(t, math.IsInf(stats.DaysUntilExhausted, 1))
	assert.Nil(t, stats.ExhaustionDate)
}

func TestGetUsageStats_UnavailableLedger(t *testing.T) {
	repo := &fakeRepo{state: periodState(10000, 0), getErr: pkgerrors.ErrUnavailable}
	svc := newTestService(repo, nil)

	_, err := svc.GetUsageStats(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrQuotaUnavailable))
}

func TestResetPeriod(t *testing.T) {
	repo := &fakeRepo{state: periodState(10000, 8000)}
	svc := newTestService(repo, nil)

	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	err := svc.ResetPeriod(context.Background(), start, start.AddDate(0, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, 0, repo.state.MonthlyUsage)
	assert.Equal(t, 10000, repo.state.MonthlyLimit)
	assert.Equal(t, start, repo.state.PeriodStart)
}
