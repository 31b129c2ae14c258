package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "council"

type Metrics struct {
	BlockNumber  prometheus.Gauge
	Proposals    *prometheus.GaugeVec
	PollErrors   *prometheus.CounterVec
	VotesIndexed prometheus.Counter
}

// NewMetrics creates the portal collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		BlockNumber: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "block_number",
			Help:      "Latest block number seen by the poll loop",
		}),
		Proposals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "proposals",
			Help:      "Number of curated proposals per status",
		}, []string{"status"}),
		PollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "poll_errors_total",
			Help:      "Errors while refreshing chain or snapshot state",
		}, []string{"source"}),
		VotesIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "votes_indexed_total",
			Help:      "Voted logs processed by the indexer",
		}),
	}

	for _, c := range []prometheus.Collector{m.BlockNumber, m.Proposals, m.PollErrors, m.VotesIndexed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeStatuses(views []ProposalView) {
	counts := map[ProposalStatus]int{
		StatusUnknown:  0,
		StatusActive:   0,
		StatusPassed:   0,
		StatusFailed:   0,
		StatusExecuted: 0,
	}
	for _, v := range views {
		counts[v.Status]++
	}
	for status, n := range counts {
		m.Proposals.WithLabelValues(status.String()).Set(float64(n))
	}
}
