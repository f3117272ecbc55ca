package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CallAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcloud_call_attempts_total",
		Help: "Total number of vendor call attempts, including retries",
	}, []string{"target"})
	CallRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcloud_call_retries_total",
		Help: "Total number of retried vendor call attempts",
	}, []string{"target"})
	CallsExhausted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcloud_calls_exhausted_total",
		Help: "Total number of vendor calls that spent their retry budget",
	}, []string{"target"})
	CallsFatal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcloud_calls_fatal_total",
		Help: "Total number of vendor calls that failed permanently without retry",
	}, []string{"target"})
	// Attempt durations are observed per target with the permit held, i.e.
	// they exclude gate waits and backoff sleeps.
	CallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gcloud_call_duration_seconds",
		Help:    "Duration of individual vendor call attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"target"})

	OperationPolls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcloud_operation_polls_total",
		Help: "Total number of status polls issued for long-running operations",
	}, []string{"target"})
	OperationTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcloud_operation_timeouts_total",
		Help: "Total number of long-running operations that did not reach a terminal state in budget",
	}, []string{"target"})
	OperationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcloud_operation_failures_total",
		Help: "Total number of long-running operations that reported a terminal error",
	}, []string{"target"})

	ClientCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcloud_client_cache_hits_total",
		Help: "Total number of cluster client cache hits",
	}, []string{"cluster"})
	ClientCacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcloud_client_cache_misses_total",
		Help: "Total number of cluster client cache misses triggering a load",
	}, []string{"cluster"})
	ClientCacheEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcloud_client_cache_evictions_total",
		Help: "Total number of cluster clients evicted by the write-based expiry",
	}, []string{"cluster"})
	ClientCacheLoadFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcloud_client_cache_load_failures_total",
		Help: "Total number of failed cluster client loads",
	}, []string{"cluster"})
	TokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcloud_token_refreshes_total",
		Help: "Total number of access token refreshes performed on cache access",
	}, []string{"cluster"})
)

func init() {
	prometheus.MustRegister(CallAttempts)
	prometheus.MustRegister(CallRetries)
	prometheus.MustRegister(CallsExhausted)
	prometheus.MustRegister(CallsFatal)
	prometheus.MustRegister(CallDuration)
	prometheus.MustRegister(OperationPolls)
	prometheus.MustRegister(OperationTimeouts)
	prometheus.MustRegister(OperationFailures)
	prometheus.MustRegister(ClientCacheHits)
	prometheus.MustRegister(ClientCacheMisses)
	prometheus.MustRegister(ClientCacheEvictions)
	prometheus.MustRegister(ClientCacheLoadFailures)
	prometheus.MustRegister(TokenRefreshes)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
