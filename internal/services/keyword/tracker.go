package keyword

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"echowatch/internal/domain/keyword"
	pkgerrors "echowatch/pkg/errors"
	"echowatch/pkg/logger"
)

// Efficiency below this percentage triggers pruning recommendations
const lowEfficiencyThresholdPct = 50

// Tracker records per-keyword classification outcomes and attributes API
// spend. Attribution is whole-call at the call level: a search's calls are
// attributed to its keyword when the search runs, not fractionally per tweet.
type Tracker struct {
	repo keyword.Repository
	log  *logger.Logger
	now  func() time.Time
}

// NewTracker creates a new keyword effectiveness tracker
func NewTracker(repo keyword.Repository) *Tracker {
	return &Tracker{
		repo: repo,
		log:  logger.Get().With("component", "keyword_tracker"),
		now:  time.Now,
	}
}

// RecordClassification records one classifier verdict for a tweet found via
// the given keyword. The keyword's stat row is created on first sight.
func (t *Tracker) RecordClassification(ctx context.Context, kw string, relevant bool) error {
	stat, err := t.repo.GetStat(ctx, kw)
	if err != nil {
		if !pkgerrors.Is(err, pkgerrors.ErrNotFound) {
			return pkgerrors.Wrap(err, "failed to load keyword stat")
		}
		stat = &keyword.Stat{Keyword: kw}
	}

	stat.TweetsSeen++
	if relevant {
		stat.TweetsRelevant++
	} else {
		stat.TweetsSkipped++
	}
	stat.UpdatedAt = t.now()

	if err := t.repo.UpsertStat(ctx, stat); err != nil {
		return pkgerrors.Wrap(err, "failed to save keyword stat")
	}

	day := t.now().UTC().Truncate(24 * time.Hour)
	if err := t.repo.IncrementTrendBucket(ctx, kw, day, relevant); err != nil {
		return pkgerrors.Wrap(err, "failed to record trend bucket")
	}

	return nil
}

// AttributeCalls attributes search API calls to a keyword. Called once per
// real search, with that search's whole call count.
func (t *Tracker) AttributeCalls(ctx context.Context, kw string, calls int) error {
	if calls <= 0 {
		return nil
	}

	stat, err := t.repo.GetStat(ctx, kw)
	if err != nil {
		if !pkgerrors.Is(err, pkgerrors.ErrNotFound) {
			return pkgerrors.Wrap(err, "failed to load keyword stat")
		}
		stat = &keyword.Stat{Keyword: kw}
	}

	stat.APICallsAttributed += calls
	stat.UpdatedAt = t.now()

	if err := t.repo.UpsertStat(ctx, stat); err != nil {
		return pkgerrors.Wrap(err, "failed to save keyword stat")
	}

	return nil
}

// GetAPIWasteReport summarizes how much of the attributed API spend produced
// relevant tweets. When overall efficiency drops below 50% it recommends
// pruning the bottom quartile of keywords by success rate.
func (t *Tracker) GetAPIWasteReport(ctx context.Context) (*WasteReport, error) {
	stats, err := t.repo.ListStats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list keyword stats")
	}

	report := &WasteReport{
		Keywords:        make([]WasteEntry, 0, len(stats)),
		Recommendations: []string{},
	}

	for i := range stats {
		stat := &stats[i]
		report.Summary.TotalKeywords++
		report.Summary.TotalTweetsClassified += stat.TweetsSeen
		report.Summary.TotalRelevant += stat.TweetsRelevant
		report.Summary.TotalSkipped += stat.TweetsSkipped
		report.Summary.TotalAPICalls += stat.APICallsAttributed
		report.Summary.TotalWastedCalls += stat.APIWaste()

		report.Keywords = append(report.Keywords, WasteEntry{
			Keyword:     stat.Keyword,
			SuccessRate: stat.SuccessRate(),
			TweetsSeen:  stat.TweetsSeen,
			APIWaste:    stat.APIWaste(),
		})
	}

	if report.Summary.TotalTweetsClassified > 0 {
		report.Summary.EfficiencyPercentage =
			float64(report.Summary.TotalRelevant) / float64(report.Summary.TotalTweetsClassified) * 100
	}

	if report.Summary.EfficiencyPercentage < lowEfficiencyThresholdPct {
		report.Recommendations = t.pruningRecommendations(stats)
	}

	return report, nil
}

// pruningRecommendations suggests dropping the bottom quartile of keywords
// by success rate, worst first
func (t *Tracker) pruningRecommendations(stats []keyword.Stat) []string {
	classified := make([]keyword.Stat, 0, len(stats))
	for _, stat := range stats {
		if stat.TweetsSeen > 0 {
			classified = append(classified, stat)
		}
	}
	if len(classified) == 0 {
		return []string{}
	}

	sort.SliceStable(classified, func(i, j int) bool {
		return classified[i].SuccessRate() < classified[j].SuccessRate()
	})

	quartile := int(math.Ceil(float64(len(classified)) / 4))
	recommendations := make([]string, 0, quartile)
	for _, stat := range classified[:quartile] {
		recommendations = append(recommendations, fmt.Sprintf(
			"consider pruning %q: %.0f%% success rate, %d wasted API calls",
			stat.Keyword, stat.SuccessRate()*100, stat.APIWaste(),
		))
	}

	return recommendations
}

// ResetLearning clears stats for one keyword, or all keywords when kw is
// empty. Destructive and irreversible; callers confirm intent upstream.
func (t *Tracker) ResetLearning(ctx context.Context, kw string) error {
	if kw == "" {
		if err := t.repo.DeleteAllStats(ctx); err != nil {
			return pkgerrors.Wrap(err, "failed to reset all keyword learning")
		}
		t.log.Warn("All keyword learning data reset")
		return nil
	}

	if err := t.repo.DeleteStat(ctx, kw); err != nil {
		return pkgerrors.Wrap(err, "failed to reset keyword learning")
	}
	t.log.Warn("Keyword learning data reset", "keyword", kw)
	return nil
}
