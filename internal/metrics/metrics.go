package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Task outcome counters, exported on /metrics.
var (
	ThemesMigrated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "addonhub",
		Name:      "themes_migrated_total",
		Help:      "Number of legacy themes migrated to static themes.",
	})

	DictionariesMigrated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "addonhub",
		Name:      "dictionaries_migrated_total",
		Help:      "Number of legacy dictionaries migrated to webextensions.",
	})

	AddonsFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "addonhub",
		Name:      "sensitive_data_flags_total",
		Help:      "Number of addons flagged for sensitive data access.",
	})

	TaskFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addonhub",
		Name:      "task_failures_total",
		Help:      "Number of failed task invocations by task name.",
	}, []string{"task"})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
