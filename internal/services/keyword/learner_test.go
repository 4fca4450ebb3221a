package keyword

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echowatch/internal/domain/keyword"
)

func newTestLearner(repo *fakeRepo) *Learner {
	return NewLearner(repo, DefaultLearnerConfig())
}

func TestUpdateWeight_FirstObservation(t *testing.T) {
	repo := newFakeRepo()
	repo.stats["ai podcast"] = &keyword.Stat{Keyword: "ai podcast", TweetsSeen: 10, TweetsRelevant: 9}
	learner := newTestLearner(repo)

	require.NoError(t, learner.UpdateWeight(context.Background(), "ai podcast"))

	// rate = 1/(1+10/10) = 0.5, weight = 0.5 + 0.5*(0.9-0.5) = 0.7
	w := repo.weights["ai podcast"]
	require.NotNil(t, w)
	assert.InDelta(t, 0.7, w.Weight, 0.0001)
}

func TestUpdateWeight_ConvergesTowardSuccessRate(t *testing.T) {
	repo := newFakeRepo()
	learner := newTestLearner(repo)
	ctx := context.Background()

	// Consistently perfect keyword: weight should climb toward 1.0
	for seen := 1; seen <= 200; seen++ {
		repo.stats["winner"] = &keyword.Stat{Keyword: "winner", TweetsSeen: seen, TweetsRelevant: seen}
		require.NoError(t, learner.UpdateWeight(ctx, "winner"))
	}

	assert.Greater(t, repo.weights["winner"].Weight, 0.9)
	assert.LessOrEqual(t, repo.weights["winner"].Weight, keyword.MaxWeight)
}

func TestUpdateWeight_ClampedAtFloor(t *testing.T) {
	repo := newFakeRepo()
	learner := newTestLearner(repo)
	ctx := context.Background()

	// Keyword that never converts: weight drops but never below the floor
	for seen := 1; seen <= 200; seen++ {
		repo.stats["loser"] = &keyword.Stat{Keyword: "loser", TweetsSeen: seen, TweetsRelevant: 0}
		require.NoError(t, learner.UpdateWeight(ctx, "loser"))
	}

	assert.GreaterOrEqual(t, repo.weights["loser"].Weight, keyword.MinWeight)
	assert.Less(t, repo.weights["loser"].Weight, 0.1)
}

func TestUpdateWeight_LearningRateDecays(t *testing.T) {
	repo := newFakeRepo()
	learner := newTestLearner(repo)
	ctx := context.Background()

	// Small sample moves the weight a lot
	repo.stats["fresh"] = &keyword.Stat{Keyword: "fresh", TweetsSeen: 2, TweetsRelevant: 2}
	require.NoError(t, learner.UpdateWeight(ctx, "fresh"))
	freshDelta := repo.weights["fresh"].Weight - keyword.DefaultWeight

	// Large sample barely moves it
	repo.stats["settled"] = &keyword.Stat{Keyword: "settled", TweetsSeen: 500, TweetsRelevant: 500}
	require.NoError(t, learner.UpdateWeight(ctx, "settled"))
	settledDelta := repo.weights["settled"].Weight - keyword.DefaultWeight

	assert.Greater(t, freshDelta, settledDelta)
}

func TestUpdateWeight_NoObservationsIsNoop(t *testing.T) {
	repo := newFakeRepo()
	learner := newTestLearner(repo)

	require.NoError(t, learner.UpdateWeight(context.Background(), "unseen"))
	assert.Empty(t, repo.weights)
}

func TestWeightFor_DefaultWhenUnlearned(t *testing.T) {
	learner := newTestLearner(newFakeRepo())

	assert.Equal(t, keyword.DefaultWeight, learner.WeightFor(context.Background(), "new keyword"))
}

func TestWeightFor_ReclampsStoredWeight(t *testing.T) {
	repo := newFakeRepo()
	repo.weights["bad row"] = &keyword.LearnedWeight{Keyword: "bad row", Weight: 1.7}
	learner := newTestLearner(repo)

	assert.Equal(t, keyword.MaxWeight, learner.WeightFor(context.Background(), "bad row"))
}

func TestGetKeywordRecommendations_Tiers(t *testing.T) {
	repo := newFakeRepo()
	repo.stats["star"] = &keyword.Stat{Keyword: "star", TweetsSeen: 20, TweetsRelevant: 16}
	repo.stats["dud"] = &keyword.Stat{Keyword: "dud", TweetsSeen: 20, TweetsRelevant: 2, APICallsAttributed: 8}
	repo.stats["sparse"] = &keyword.Stat{Keyword: "sparse", TweetsSeen: 3, TweetsRelevant: 3}
	learner := newTestLearner(repo)

	recs, err := learner.GetKeywordRecommendations(context.Background())
	require.NoError(t, err)

	require.Len(t, recs.HighPerformers, 1)
	assert.Equal(t, "star", recs.HighPerformers[0].Keyword)

	require.Len(t, recs.LowPerformers, 1)
	assert.Equal(t, "dud", recs.LowPerformers[0].Keyword)
	assert.Equal(t, 6, recs.LowPerformers[0].APIWaste)

	// Below the minimum sample size, judged by neither tier
	assert.Contains(t, recs.NeedsExploration, "sparse")
	assert.Equal(t, 3, recs.TotalLearned)
	assert.NotEmpty(t, recs.Recommendations)
}

func TestGetKeywordRecommendations_MidRateSingleBucketNeedsExploration(t *testing.T) {
	repo := newFakeRepo()
	repo.stats["middling"] = &keyword.Stat{Keyword: "middling", TweetsSeen: 10, TweetsRelevant: 4}
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	repo.buckets["middling"] = []keyword.TrendBucket{
		{Keyword: "middling", Day: day, Seen: 10, Relevant: 4},
	}
	learner := newTestLearner(repo)
	learner.now = func() time.Time { return day.AddDate(0, 0, 1) }

	recs, err := learner.GetKeywordRecommendations(context.Background())
	require.NoError(t, err)

	// 40% rate is neither high nor low, and one bucket is not a trend
	assert.Contains(t, recs.NeedsExploration, "middling")
	assert.Empty(t, recs.HighPerformers)
	assert.Empty(t, recs.LowPerformers)
}

func TestGetKeywordRecommendations_RisingStars(t *testing.T) {
	repo := newFakeRepo()
	// 30% historically, but the recent window runs hot
	repo.stats["riser"] = &keyword.Stat{Keyword: "riser", TweetsSeen: 100, TweetsRelevant: 30}
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo.buckets["riser"] = []keyword.TrendBucket{
		{Keyword: "riser", Day: now.AddDate(0, 0, -2), Seen: 10, Relevant: 6},
		{Keyword: "riser", Day: now.AddDate(0, 0, -1), Seen: 10, Relevant: 8},
	}
	learner := newTestLearner(repo)
	learner.now = func() time.Time { return now }

	recs, err := learner.GetKeywordRecommendations(context.Background())
	require.NoError(t, err)

	require.Len(t, recs.RisingStars, 1)
	star := recs.RisingStars[0]
	assert.Equal(t, "riser", star.Keyword)
	assert.InDelta(t, 0.7, star.RecentRate, 0.0001)
	assert.InDelta(t, 0.3, star.HistoricalRate, 0.0001)
	assert.InDelta(t, 0.4, star.Trend, 0.0001)
}

func TestGetKeywordRecommendations_FlatTrendIsNotRising(t *testing.T) {
	repo := newFakeRepo()
	repo.stats["flat"] = &keyword.Stat{Keyword: "flat", TweetsSeen: 40, TweetsRelevant: 20}
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo.buckets["flat"] = []keyword.TrendBucket{
		{Keyword: "flat", Day: now.AddDate(0, 0, -2), Seen: 10, Relevant: 5},
		{Keyword: "flat", Day: now.AddDate(0, 0, -1), Seen: 10, Relevant: 5},
	}
	learner := newTestLearner(repo)
	learner.now = func() time.Time { return now }

	recs, err := learner.GetKeywordRecommendations(context.Background())
	require.NoError(t, err)

	assert.Empty(t, recs.RisingStars)
}

func TestGetKeywordRecommendations_OrderedBySuccessRate(t *testing.T) {
	repo := newFakeRepo()
	repo.stats["good"] = &keyword.Stat{Keyword: "good", TweetsSeen: 10, TweetsRelevant: 7}
	repo.stats["great"] = &keyword.Stat{Keyword: "great", TweetsSeen: 10, TweetsRelevant: 9}
	repo.stats["worse"] = &keyword.Stat{Keyword: "worse", TweetsSeen: 10, TweetsRelevant: 1}
	repo.stats["worst"] = &keyword.Stat{Keyword: "worst", TweetsSeen: 10, TweetsRelevant: 0}
	learner := newTestLearner(repo)

	recs, err := learner.GetKeywordRecommendations(context.Background())
	require.NoError(t, err)

	require.Len(t, recs.HighPerformers, 2)
	assert.Equal(t, "great", recs.HighPerformers[0].Keyword)
	assert.Equal(t, "good", recs.HighPerformers[1].Keyword)

	require.Len(t, recs.LowPerformers, 2)
	assert.Equal(t, "worst", recs.LowPerformers[0].Keyword)
	assert.Equal(t, "worse", recs.LowPerformers[1].Keyword)
}
