package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crowdsecurity/go-cs-lib/version"

	"github.com/crowdsecurity/sqlitrace/pkg/campaign"
)

const (
	OriginCLI   = "cli"
	OriginAPI   = "api"
	OriginWatch = "watch"
)

const AnalysesMetricName = "sqlitrace_analyses_total"

var Analyses = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: AnalysesMetricName,
		Help: "Total analyses run.",
	},
	[]string{"origin"},
)

const RecordsScannedMetricName = "sqlitrace_records_scanned_total"

var RecordsScanned = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: RecordsScannedMetricName,
		Help: "Total records scanned against the signature catalog.",
	},
	[]string{"origin"},
)

const MatchedEventsMetricName = "sqlitrace_matched_events_total"

var MatchedEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: MatchedEventsMetricName,
		Help: "Total records matching a signature, by whether they came from the attacker.",
	},
	[]string{"origin", "attacker"},
)

const AnalysisDurationMetricName = "sqlitrace_analysis_duration_seconds"

var AnalysisDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    AnalysisDurationMetricName,
		Help:    "Time spent scanning records.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	},
	[]string{"origin"},
)

var Info = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name:        "sqlitrace_info",
		Help:        "Information about sqlitrace.",
		ConstLabels: prometheus.Labels{"version": version.String()},
	},
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{Analyses, RecordsScanned, MatchedEvents, AnalysisDuration, CacheEntries, CacheRequests, Info}
}

// Register adds the collectors to reg. Collectors that are already
// registered are not an error.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			are := prometheus.AlreadyRegisteredError{}
			if errors.As(err, &are) {
				continue
			}

			return err
		}
	}

	Info.Set(1)

	return nil
}

// Observe accounts for one analysis.
func Observe(origin string, c *campaign.Campaign, elapsed time.Duration) {
	Analyses.With(prometheus.Labels{"origin": origin}).Inc()
	RecordsScanned.With(prometheus.Labels{"origin": origin}).Add(float64(c.Stats.Scanned))
	MatchedEvents.With(prometheus.Labels{"origin": origin, "attacker": "true"}).Add(float64(c.Stats.Matched - c.Stats.Ignored))
	MatchedEvents.With(prometheus.Labels{"origin": origin, "attacker": "false"}).Add(float64(c.Stats.Ignored))
	AnalysisDuration.With(prometheus.Labels{"origin": origin}).Observe(elapsed.Seconds())
}
