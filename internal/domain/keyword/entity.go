package keyword

import (
	"time"
)

// Weight bounds for learned keyword weights.
// The floor keeps a keyword from being permanently zeroed out; the default
// applies to keywords with no history yet.
const (
	MinWeight     = 0.05
	MaxWeight     = 1.0
	DefaultWeight = 0.5
)

// Stat tracks how effective a keyword has been at finding relevant tweets
type Stat struct {
	Keyword            string    `db:"keyword"`
	TweetsSeen         int       `db:"tweets_seen"`
	TweetsRelevant     int       `db:"tweets_relevant"`
	TweetsSkipped      int       `db:"tweets_skipped"`
	APICallsAttributed int       `db:"api_calls_attributed"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// SuccessRate returns the fraction of seen tweets that were relevant
func (s *Stat) SuccessRate() float64 {
	if s.TweetsSeen <= 0 {
		return 0
	}
	return float64(s.TweetsRelevant) / float64(s.TweetsSeen)
}

// APIWaste returns attributed calls not justified by relevant tweets, clamped at 0
func (s *Stat) APIWaste() int {
	waste := s.APICallsAttributed - s.TweetsRelevant
	if waste < 0 {
		return 0
	}
	return waste
}

// LearnedWeight is the smoothed priority weight for a keyword
type LearnedWeight struct {
	Keyword   string    `db:"keyword"`
	Weight    float64   `db:"weight"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ClampWeight forces a weight into [MinWeight, MaxWeight]
func ClampWeight(w float64) float64 {
	if w < MinWeight {
		return MinWeight
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}

// TrendBucket is one day of classification observations for a keyword.
// Buckets let the learner compare a keyword's recent hit rate against its
// historical average.
type TrendBucket struct {
	Keyword  string    `db:"keyword"`
	Day      time.Time `db:"day"`
	Seen     int       `db:"seen"`
	Relevant int       `db:"relevant"`
}

// SuccessRate returns the bucket's relevant fraction
func (b *TrendBucket) SuccessRate() float64 {
	if b.Seen <= 0 {
		return 0
	}
	return float64(b.Relevant) / float64(b.Seen)
}
