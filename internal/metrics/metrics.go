// Package metrics holds the dev server's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProxyRequestsTotal counts /api requests answered by the proxy target,
	// labelled by status class (2xx, 4xx, ...).
	ProxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devserver_proxy_requests_total",
		Help: "API requests forwarded to the proxy target, by response status class",
	}, []string{"class"})

	// ProxyErrorsTotal counts requests that could not be forwarded at all.
	ProxyErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devserver_proxy_errors_total",
		Help: "API requests that failed before a response was received from the proxy target",
	}, []string{"reason"})

	ProxyRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "devserver_proxy_request_duration_seconds",
		Help:    "Round-trip time of forwarded API requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// ProxyTargetUp is 1 while the last probe of the proxy target succeeded.
	ProxyTargetUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devserver_proxy_target_up",
		Help: "Whether the proxy target answered the last probe (1) or not (0)",
	})

	ConfigReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devserver_config_reloads_total",
		Help: "Configuration reloads triggered by env file changes, by result",
	}, []string{"result"})
)

// StatusClass maps an HTTP status code to its class label, e.g. 404 -> "4xx".
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}

// ObserveProxyResponse records one forwarded request.
func ObserveProxyResponse(code int, elapsed time.Duration) {
	ProxyRequestsTotal.WithLabelValues(StatusClass(code)).Inc()
	ProxyRequestDuration.Observe(elapsed.Seconds())
}

// SetTargetUp records the outcome of a proxy target probe.
func SetTargetUp(up bool) {
	if up {
		ProxyTargetUp.Set(1)
		return
	}
	ProxyTargetUp.Set(0)
}
