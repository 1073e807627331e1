package metrics

import "github.com/prometheus/client_golang/prometheus"

// Browser session Prometheus metrics.
var (
	BrowserFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecscope",
			Name:      "browser_fetches_total",
			Help:      "Total browser state fetches by slice and outcome",
		},
		[]string{"slice", "status"},
	)

	BrowserStaleDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecscope",
			Name:      "browser_stale_drops_total",
			Help:      "Responses discarded because a newer fetch superseded them",
		},
		[]string{"slice"},
	)

	BrowserSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vecscope",
			Name:      "browser_sessions_active",
			Help:      "Currently open browser sessions",
		},
	)
)

var browserMetricsRegistered bool

// RegisterBrowserMetrics registers Prometheus browser metrics. Must be called once from main.
func RegisterBrowserMetrics() {
	if browserMetricsRegistered {
		return
	}
	prometheus.MustRegister(BrowserFetchesTotal)
	prometheus.MustRegister(BrowserStaleDropsTotal)
	prometheus.MustRegister(BrowserSessionsActive)
	browserMetricsRegistered = true
}
