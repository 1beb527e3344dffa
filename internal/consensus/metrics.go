package consensus

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the Prometheus collectors exposed by the consensus
// package (SPEC_FULL.md DOMAIN STACK). All are registered against the
// caller-supplied registerer so cmd/stratusd controls the process-wide
// registry.
type Metrics struct {
	BlockCommitDiff   prometheus.Gauge
	LastSentBlock     prometheus.Gauge
	AppendRejections  prometheus.Counter
	ElectionsStarted  prometheus.Counter
}

// NewMetrics constructs and registers the consensus metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlockCommitDiff: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stratus",
			Subsystem: "consensus",
			Name:      "block_commit_diff",
			Help:      "Difference between the incoming and previously stored block number on the last AppendBlockCommit call.",
		}),
		LastSentBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stratus",
			Subsystem: "consensus",
			Name:      "last_sent_block_number",
			Help:      "Block number most recently republished onto the broadcast bus by this leader.",
		}),
		AppendRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stratus",
			Subsystem: "consensus",
			Name:      "append_block_commit_rejections_total",
			Help:      "Count of AppendBlockCommit calls rejected for an invalid header.",
		}),
		ElectionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stratus",
			Subsystem: "consensus",
			Name:      "elections_started_total",
			Help:      "Count of elections this node has started as candidate.",
		}),
	}
	reg.MustRegister(m.BlockCommitDiff, m.LastSentBlock, m.AppendRejections, m.ElectionsStarted)
	return m
}
