package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConsensusCollector tracks the progress of the block verifier and the
// commit rule.
type ConsensusCollector struct {
	rejectedBlocks     *prometheus.CounterVec
	verifiedBlocks     prometheus.Counter
	committedSubDags   prometheus.Counter
	committedBlocks    prometheus.Counter
	skippedLeaders     prometheus.Counter
	lastCommittedRound prometheus.Gauge
	lastCommitSequence prometheus.Gauge
}

// NewConsensusCollector registers and returns the consensus collectors.
func NewConsensusCollector(registerer prometheus.Registerer) *ConsensusCollector {
	factory := promauto.With(registerer)
	return &ConsensusCollector{
		rejectedBlocks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemVerifier,
			Name:      "rejected_blocks_total",
			Help:      "number of blocks that failed verification, by reason",
		}, []string{"reason"}),
		verifiedBlocks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemVerifier,
			Name:      "verified_blocks_total",
			Help:      "number of blocks that passed verification",
		}),
		committedSubDags: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemCommitRule,
			Name:      "committed_sub_dags_total",
			Help:      "number of committed sub-DAGs",
		}),
		committedBlocks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemCommitRule,
			Name:      "committed_blocks_total",
			Help:      "number of blocks committed across all sub-DAGs",
		}),
		skippedLeaders: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemCommitRule,
			Name:      "skipped_leaders_total",
			Help:      "number of leader rounds skipped without a commit",
		}),
		lastCommittedRound: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemCommitRule,
			Name:      "last_committed_round",
			Help:      "round of the most recently committed leader",
		}),
		lastCommitSequence: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemCommitRule,
			Name:      "last_commit_sequence_number",
			Help:      "sequence number of the most recent commit",
		}),
	}
}

// BlockRejected records a verification failure with its reason label.
func (c *ConsensusCollector) BlockRejected(reason string) {
	c.rejectedBlocks.WithLabelValues(reason).Inc()
}

// BlockVerified records a block passing verification.
func (c *ConsensusCollector) BlockVerified() {
	c.verifiedBlocks.Inc()
}

// SubDagCommitted records one emitted commit and its size.
func (c *ConsensusCollector) SubDagCommitted(leaderRound uint64, sequenceNumber uint64, numBlocks int) {
	c.committedSubDags.Inc()
	c.committedBlocks.Add(float64(numBlocks))
	c.lastCommittedRound.Set(float64(leaderRound))
	c.lastCommitSequence.Set(float64(sequenceNumber))
}

// LeaderSkipped records a leader round passed over by the skip rule.
func (c *ConsensusCollector) LeaderSkipped() {
	c.skippedLeaders.Inc()
}
