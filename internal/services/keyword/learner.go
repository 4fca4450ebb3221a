package keyword

import (
	"context"
	"fmt"
	"sort"
	"time"

	"echowatch/internal/domain/keyword"
	pkgerrors "echowatch/pkg/errors"
	"echowatch/pkg/logger"
)

// LearnerConfig contains configuration for the keyword learner
type LearnerConfig struct {
	// MinimumSampleSize is the tweet count below which a keyword cannot be
	// judged and lands in needs_exploration
	MinimumSampleSize int

	// DecayConstant controls how fast the learning rate shrinks with sample
	// size: rate = 1 / (1 + seen/decay). Early data moves the weight quickly;
	// later data stabilizes it.
	DecayConstant float64

	// HighPerformerRate and LowPerformerRate are the success-rate cutoffs for
	// the performance tiers
	HighPerformerRate float64
	LowPerformerRate  float64

	// TrendWindow is how far back the rising-star comparison looks
	TrendWindow time.Duration
}

// DefaultLearnerConfig returns default configuration
func DefaultLearnerConfig() LearnerConfig {
	return LearnerConfig{
		MinimumSampleSize: 5,
		DecayConstant:     10,
		HighPerformerRate: 0.6,
		LowPerformerRate:  0.2,
		TrendWindow:       7 * 24 * time.Hour,
	}
}

// Learner maintains smoothed per-keyword weights and produces tiered
// recommendations. Keyword relevance drifts over a show's lifetime; the
// decaying-rate EMA keeps weights tracking current hit rates without
// oscillating on single outlier tweets.
type Learner struct {
	repo   keyword.Repository
	config LearnerConfig
	log    *logger.Logger
	now    func() time.Time
}

// NewLearner creates a new keyword learner
func NewLearner(repo keyword.Repository, config LearnerConfig) *Learner {
	if config.MinimumSampleSize <= 0 {
		config.MinimumSampleSize = DefaultLearnerConfig().MinimumSampleSize
	}
	if config.DecayConstant <= 0 {
		config.DecayConstant = DefaultLearnerConfig().DecayConstant
	}
	if config.TrendWindow <= 0 {
		config.TrendWindow = DefaultLearnerConfig().TrendWindow
	}

	return &Learner{
		repo:   repo,
		config: config,
		log:    logger.Get().With("component", "keyword_learner"),
		now:    time.Now,
	}
}

// UpdateWeight moves a keyword's learned weight toward its observed success
// rate. The learning rate decays as the sample grows, so the weight
// converges instead of oscillating. The result is clamped to [0.05, 1.0].
func (l *Learner) UpdateWeight(ctx context.Context, kw string) error {
	stat, err := l.repo.GetStat(ctx, kw)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrNotFound) {
			return nil // no observations yet, nothing to learn from
		}
		return pkgerrors.Wrap(err, "failed to load keyword stat")
	}

	oldWeight := keyword.DefaultWeight
	if existing, err := l.repo.GetWeight(ctx, kw); err == nil {
		oldWeight = existing.Weight
	} else if !pkgerrors.Is(err, pkgerrors.ErrNotFound) {
		return pkgerrors.Wrap(err, "failed to load keyword weight")
	}

	learningRate := 1.0 / (1.0 + float64(stat.TweetsSeen)/l.config.DecayConstant)
	newWeight := oldWeight + learningRate*(stat.SuccessRate()-oldWeight)
	newWeight = keyword.ClampWeight(newWeight)

	err = l.repo.UpsertWeight(ctx, &keyword.LearnedWeight{
		Keyword:   kw,
		Weight:    newWeight,
		UpdatedAt: l.now(),
	})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to save keyword weight")
	}

	l.log.Debug("Keyword weight updated",
		"keyword", kw,
		"old", oldWeight,
		"new", newWeight,
		"success_rate", stat.SuccessRate(),
		"learning_rate", learningRate,
	)

	return nil
}

// WeightFor returns the learned weight for a keyword, or the neutral default
// for keywords with no history. Stored weights are re-clamped on read so a
// malformed row degrades gracefully instead of halting planning.
func (l *Learner) WeightFor(ctx context.Context, kw string) float64 {
	weight, err := l.repo.GetWeight(ctx, kw)
	if err != nil {
		if !pkgerrors.Is(err, pkgerrors.ErrNotFound) {
			l.log.Warn("Failed to load keyword weight, using default", "keyword", kw, "error", err)
		}
		return keyword.DefaultWeight
	}

	return keyword.ClampWeight(weight.Weight)
}

// GetKeywordRecommendations produces the tiered keyword report:
// high performers, low performers, rising stars, and keywords that still
// need exploration
func (l *Learner) GetKeywordRecommendations(ctx context.Context) (*Recommendations, error) {
	stats, err := l.repo.ListStats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list keyword stats")
	}

	recs := &Recommendations{
		HighPerformers:   []PerformerEntry{},
		LowPerformers:    []PerformerEntry{},
		RisingStars:      []RisingStar{},
		NeedsExploration: []string{},
		Recommendations:  []string{},
		TotalLearned:     len(stats),
	}

	since := l.now().Add(-l.config.TrendWindow)

	for i := range stats {
		stat := &stats[i]

		if stat.TweetsSeen < l.config.MinimumSampleSize {
			recs.NeedsExploration = append(recs.NeedsExploration, stat.Keyword)
			continue
		}

		rate := stat.SuccessRate()
		star, buckets, ok := l.risingStar(ctx, stat, since)

		switch {
		case rate >= l.config.HighPerformerRate:
			recs.HighPerformers = append(recs.HighPerformers, PerformerEntry{
				Keyword:     stat.Keyword,
				SuccessRate: rate,
				TweetsSeen:  stat.TweetsSeen,
			})
		case rate < l.config.LowPerformerRate:
			recs.LowPerformers = append(recs.LowPerformers, PerformerEntry{
				Keyword:     stat.Keyword,
				SuccessRate: rate,
				TweetsSeen:  stat.TweetsSeen,
				APIWaste:    stat.APIWaste(),
			})
		case buckets < 2:
			// Mid-rate keyword with a single observation bucket: no trend
			// can be computed yet, so it still counts as unexplored
			recs.NeedsExploration = append(recs.NeedsExploration, stat.Keyword)
		}

		if ok {
			recs.RisingStars = append(recs.RisingStars, star)
		}
	}

	// High performers best first, low performers worst first
	sort.SliceStable(recs.HighPerformers, func(i, j int) bool {
		return recs.HighPerformers[i].SuccessRate > recs.HighPerformers[j].SuccessRate
	})
	sort.SliceStable(recs.LowPerformers, func(i, j int) bool {
		return recs.LowPerformers[i].SuccessRate < recs.LowPerformers[j].SuccessRate
	})
	sort.SliceStable(recs.RisingStars, func(i, j int) bool {
		return recs.RisingStars[i].Trend > recs.RisingStars[j].Trend
	})

	for _, low := range recs.LowPerformers {
		recs.Recommendations = append(recs.Recommendations, fmt.Sprintf(
			"%q converts poorly (%.0f%% over %d tweets, %d wasted calls); consider retiring it",
			low.Keyword, low.SuccessRate*100, low.TweetsSeen, low.APIWaste,
		))
	}
	for _, kw := range recs.NeedsExploration {
		recs.Recommendations = append(recs.Recommendations, fmt.Sprintf(
			"%q has too little data to judge; keep searching it", kw,
		))
	}

	return recs, nil
}

// risingStar reports whether a keyword's recent-window success rate exceeds
// its historical average, along with how many daily buckets the window held.
// At least two buckets are required; with fewer there is no trend to compute.
func (l *Learner) risingStar(ctx context.Context, stat *keyword.Stat, since time.Time) (RisingStar, int, bool) {
	buckets, err := l.repo.GetTrendBuckets(ctx, stat.Keyword, since)
	if err != nil {
		l.log.Warn("Failed to load trend buckets", "keyword", stat.Keyword, "error", err)
		return RisingStar{}, 0, false
	}
	if len(buckets) < 2 {
		return RisingStar{}, len(buckets), false
	}

	var seen, relevant int
	for i := range buckets {
		seen += buckets[i].Seen
		relevant += buckets[i].Relevant
	}
	if seen == 0 {
		return RisingStar{}, len(buckets), false
	}

	recentRate := float64(relevant) / float64(seen)
	historical := stat.SuccessRate()
	trend := recentRate - historical
	if trend <= 0 {
		return RisingStar{}, len(buckets), false
	}

	return RisingStar{
		Keyword:        stat.Keyword,
		RecentRate:     recentRate,
		HistoricalRate: historical,
		Trend:          trend,
	}, len(buckets), true
}
