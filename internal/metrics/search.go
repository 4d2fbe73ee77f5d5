package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and ingestion Prometheus metrics.
var (
	SearchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recallsearch",
			Name:      "search_cache_total",
			Help:      "Search result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	IngestRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recallsearch",
			Name:      "ingest_records_total",
			Help:      "Ingested records by outcome",
		},
		[]string{"status"}, // "inserted" / "updated" / "error"
	)

	CacheEpoch = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "recallsearch",
			Name:      "cache_epoch",
			Help:      "Current cache invalidation epoch",
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchCacheTotal)
	prometheus.MustRegister(IngestRecordsTotal)
	prometheus.MustRegister(CacheEpoch)
	searchMetricsRegistered = true
}
