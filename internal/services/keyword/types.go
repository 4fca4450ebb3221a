package keyword

// WasteSummary aggregates effectiveness across all tracked keywords
type WasteSummary struct {
	TotalKeywords         int     `json:"total_keywords"`
	TotalTweetsClassified int     `json:"total_tweets_classified"`
	TotalRelevant         int     `json:"total_relevant"`
	TotalSkipped          int     `json:"total_skipped"`
	TotalAPICalls         int     `json:"total_api_calls"`
	TotalWastedCalls      int     `json:"total_wasted_calls"`
	EfficiencyPercentage  float64 `json:"efficiency_percentage"`
}

// WasteEntry is one keyword's contribution to the waste report
type WasteEntry struct {
	Keyword     string  `json:"keyword"`
	SuccessRate float64 `json:"success_rate"`
	TweetsSeen  int     `json:"tweets_seen"`
	APIWaste    int     `json:"api_waste"`
}

// WasteReport is the output of the API waste analysis
type WasteReport struct {
	Summary         WasteSummary `json:"summary"`
	Keywords        []WasteEntry `json:"keywords"`
	Recommendations []string     `json:"recommendations"`
}

// PerformerEntry describes one keyword in a performance tier
type PerformerEntry struct {
	Keyword     string  `json:"keyword"`
	SuccessRate float64 `json:"success_rate"`
	TweetsSeen  int     `json:"tweets_seen"`
	APIWaste    int     `json:"api_waste,omitempty"`
}

// RisingStar is a keyword whose recent hit rate beats its historical average
type RisingStar struct {
	Keyword        string  `json:"keyword"`
	RecentRate     float64 `json:"recent_rate"`
	HistoricalRate float64 `json:"historical_rate"`
	Trend          float64 `json:"trend"`
}

// Recommendations is the tiered keyword report produced by the learner
type Recommendations struct {
	HighPerformers   []PerformerEntry `json:"high_performers"`
	LowPerformers    []PerformerEntry `json:"low_performers"`
	RisingStars      []RisingStar     `json:"rising_stars"`
	NeedsExploration []string         `json:"needs_exploration"`
	TotalLearned     int              `json:"total_learned"`
	Recommendations  []string         `json:"recommendations"`
}
