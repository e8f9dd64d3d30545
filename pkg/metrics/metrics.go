package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream documents fetched from the identity provider.
const (
	DocumentOpenIDConfiguration = "openid_configuration"
	DocumentJWKS                = "jwks"
)

var (
	upstreamFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "azure_login_upstream_fetches_total",
			Help: "Total number of identity provider document fetches",
		},
		[]string{"document", "result"},
	)

	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "azure_login_callbacks_total",
			Help: "Total number of login callbacks by outcome",
		},
		[]string{"result", "code"},
	)

	noncesPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "azure_login_nonces_purged_total",
			Help: "Total number of abandoned login nonces deleted",
		},
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "azure_login_rate_limited_total",
			Help: "Total number of login requests rejected by the rate limiter",
		},
		[]string{"path"},
	)
)

// ObserveFetch records one upstream fetch of document.
func ObserveFetch(document string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	upstreamFetchesTotal.WithLabelValues(document, result).Inc()
}

// ObserveLogin records a callback outcome. An empty code means success.
func ObserveLogin(code string) {
	if code == "" {
		loginsTotal.WithLabelValues("success", "").Inc()
		return
	}
	loginsTotal.WithLabelValues("failed", code).Inc()
}

// ObserveNoncePurge records nonces removed by a purge run.
func ObserveNoncePurge(count int64) {
	if count > 0 {
		noncesPurgedTotal.Add(float64(count))
	}
}

// ObserveRateLimited records a request rejected by the rate limiter.
func ObserveRateLimited(path string) {
	rateLimitedTotal.WithLabelValues(path).Inc()
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
