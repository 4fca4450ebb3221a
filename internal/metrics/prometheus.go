package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echowatch_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "echowatch_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	// Search metrics
	SearchAPICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echowatch_search_api_calls_total",
			Help: "Total number of metered search API calls",
		},
		[]string{"keyword"},
	)

	SearchTweetsFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echowatch_search_tweets_found_total",
			Help: "Total number of tweets retrieved by search",
		},
		[]string{"keyword"},
	)

	QuotaRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "echowatch_quota_remaining",
			Help: "Remaining monthly search API quota",
		},
	)

	// Cache metrics
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echowatch_cache_lookups_total",
			Help: "Total number of search cache lookups",
		},
		[]string{"result"}, // result: hit|miss
	)

	CacheEntriesPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "echowatch_cache_entries_purged_total",
			Help: "Total number of stale cache entries purged",
		},
	)

	// Posting metrics
	PostAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echowatch_post_attempts_total",
			Help: "Total number of reply posting attempts",
		},
		[]string{"outcome"}, // outcome: posted|rate_limited|duplicate|restricted|failed
	)

	RateLimitWaits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "echowatch_rate_limit_waits_total",
			Help: "Total number of rate-limit window waits during posting",
		},
	)

	// Consumer metrics
	ClassificationsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echowatch_classifications_consumed_total",
			Help: "Total number of classification verdicts consumed",
		},
		[]string{"status"}, // status: success|error
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)

	prometheus.MustRegister(SearchAPICalls)
	prometheus.MustRegister(SearchTweetsFound)
	prometheus.MustRegister(QuotaRemaining)

	prometheus.MustRegister(CacheLookups)
	prometheus.MustRegister(CacheEntriesPurged)

	prometheus.MustRegister(PostAttempts)
	prometheus.MustRegister(RateLimitWaits)

	prometheus.MustRegister(ClassificationsConsumed)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
}

// RecordSearch records one keyword search's API spend and yield
func RecordSearch(keyword string, apiCalls, tweetsFound int) {
	SearchAPICalls.WithLabelValues(keyword).Add(float64(apiCalls))
	SearchTweetsFound.WithLabelValues(keyword).Add(float64(tweetsFound))
}

// RecordCacheLookup records a cache hit or miss
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(result).Inc()
}

// RecordPostAttempt records one posting attempt outcome
func RecordPostAttempt(outcome string) {
	PostAttempts.WithLabelValues(outcome).Inc()
}
