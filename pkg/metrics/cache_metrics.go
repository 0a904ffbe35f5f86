package metrics

import "github.com/prometheus/client_golang/prometheus"

const CacheMetricName = "sqlitrace_cache_size"

var CacheEntries = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: CacheMetricName,
		Help: "Entries per cache.",
	},
	[]string{"name", "type"},
)

const CacheRequestsMetricName = "sqlitrace_cache_requests_total"

var CacheRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: CacheRequestsMetricName,
		Help: "Cache lookups, by result.",
	},
	[]string{"name", "result"},
)
