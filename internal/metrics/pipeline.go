package metrics

import "github.com/prometheus/client_golang/prometheus"

// Translation pipeline Prometheus metrics.
var (
	IntentParsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "secoql",
			Name:      "intent_parses_total",
			Help:      "Total intent parses by source",
		},
		[]string{"source"}, // "model" / "heuristic"
	)

	ResolverDegradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "secoql",
			Name:      "resolver_degrades_total",
			Help:      "Total entity resolver degradations by reason",
		},
		[]string{"reason"}, // "unavailable" / "search_error" / "rerank_error"
	)

	ResultCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "secoql",
			Name:      "result_cache_total",
			Help:      "Result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	RemoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "secoql",
			Name:      "remote_requests_total",
			Help:      "Total open-data API requests",
		},
		[]string{"status"}, // "success" / "error"
	)

	RemoteRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "secoql",
			Name:      "remote_retries_total",
			Help:      "Total open-data API retries",
		},
	)

	RemoteRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "secoql",
			Name:      "remote_request_duration_seconds",
			Help:      "Open-data API request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "secoql",
			Name:      "embedding_requests_total",
			Help:      "Total embedding requests",
		},
		[]string{"model", "status"},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "secoql",
			Name:      "llm_requests_total",
			Help:      "Total language model requests",
		},
		[]string{"model", "status"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(IntentParsesTotal)
	prometheus.MustRegister(ResolverDegradesTotal)
	prometheus.MustRegister(ResultCacheTotal)
	prometheus.MustRegister(RemoteRequestsTotal)
	prometheus.MustRegister(RemoteRetriesTotal)
	prometheus.MustRegister(RemoteRequestDuration)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(LLMRequestsTotal)
	pipelineMetricsRegistered = true
}
