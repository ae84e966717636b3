package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"tokenaudit/internal/engine/tokens"
)

var (
	// TokensByCategory is the token count per category and scope from the last run.
	TokensByCategory = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tokenaudit_tokens",
			Help: "Access tokens per category and scope in the last completed run",
		},
		[]string{"category", "scope"},
	)
	// RunsTotal counts monitoring runs by outcome (reported, suppressed, report_failed).
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenaudit_runs_total",
			Help: "Total number of monitoring runs",
		},
		[]string{"outcome"},
	)
	FetchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokenaudit_fetch_errors_total",
			Help: "GitLab API calls that failed and were treated as empty batches",
		},
	)
	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tokenaudit_last_run_timestamp_seconds",
			Help: "Unix time the last monitoring run finished",
		},
	)
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tokenaudit_run_duration_seconds",
			Help:    "Wall time of a monitoring run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
)

// ObserveRun publishes the per-scope breakdown of a finished run.
func ObserveRun(byScope map[tokens.Scope]tokens.Summary, outcome string, fetchErrors int, started, finished time.Time) {
	for _, scope := range tokens.Scopes {
		s := byScope[scope]
		label := scope.String()
		TokensByCategory.WithLabelValues(string(tokens.CategoryExpired), label).Set(float64(s.ExpiredCount))
		TokensByCategory.WithLabelValues(string(tokens.CategoryExpiringSoon), label).Set(float64(s.ExpiringCount))
		TokensByCategory.WithLabelValues(string(tokens.CategoryHealthy), label).Set(float64(s.HealthyCount))
		TokensByCategory.WithLabelValues(string(tokens.CategoryNoExpiration), label).Set(float64(s.PermanentCount))
	}

	RunsTotal.WithLabelValues(outcome).Inc()
	FetchErrorsTotal.Add(float64(fetchErrors))
	LastRunTimestamp.Set(float64(finished.Unix()))
	RunDuration.Observe(finished.Sub(started).Seconds())
}
