package dispatch

import (
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "qcircuit"
	subsystem        = "dispatch"
)

var (
	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "calls_total",
			Help:      "Total number of façade dispatches",
		},
		[]string{"facade", "outcome"}, // outcome: ok, no_implementation, no_viable, declined, error
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Time taken by a façade dispatch including nested dispatches",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
		[]string{"facade"},
	)

	candidatesTried = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "candidates_tried_total",
			Help:      "Total number of candidate implementations invoked",
		},
		[]string{"facade"},
	)

	declinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "declines_total",
			Help:      "Total number of candidates that declined a call",
		},
		[]string{"facade"},
	)
)

// CallStat is the number of dispatches of one façade that ended with one outcome.
type CallStat struct {
	Facade  string
	Outcome string
	Count   float64
}

// CallStats reads the dispatch counters from g, sorted by façade then outcome.
func CallStats(g prometheus.Gatherer) ([]CallStat, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	name := prometheus.BuildFQName(metricsNamespace, subsystem, "calls_total")
	var stats []CallStat
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			s := CallStat{Count: m.GetCounter().GetValue()}
			for _, l := range m.GetLabel() {
				switch l.GetName() {
				case "facade":
					s.Facade = l.GetValue()
				case "outcome":
					s.Outcome = l.GetValue()
				}
			}
			stats = append(stats, s)
		}
	}
	slices.SortFunc(stats, func(a, b CallStat) int {
		if c := strings.Compare(a.Facade, b.Facade); c != 0 {
			return c
		}
		return strings.Compare(a.Outcome, b.Outcome)
	})
	return stats, nil
}
