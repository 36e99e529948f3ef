package verifier

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitbft/orbit-go/model/orbit"
	"github.com/orbitbft/orbit-go/module/metrics"
	"github.com/orbitbft/orbit-go/utils/unittest"
)

func TestMetricsVerifierPassesThrough(t *testing.T) {
	committee, keys := unittest.CommitteeFixture(4)
	registry := prometheus.NewRegistry()
	v := NewMetricsVerifier(
		NewSignedBlockVerifier(committee, testLimits(), txnSizeVerifier{}),
		metrics.NewConsensusCollector(registry),
	)

	valid := unittest.SignedBlockFixture(committee, keys, 0, 1, orbit.GenesisRefs(committee))
	require.NoError(t, v.Verify(valid))

	invalid := unittest.SignedBlockFixture(committee, keys, 0, 1, orbit.GenesisRefs(committee))
	invalid.Block.Epoch = 7
	err := v.Verify(invalid)
	require.True(t, orbit.IsWrongEpochError(err), err)

	// One verified and one rejected block show up in the registry.
	families, err := registry.Gather()
	require.NoError(t, err)
	counts := make(map[string]float64)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			counts[family.GetName()] += metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, counts["consensus_verifier_verified_blocks_total"])
	assert.Equal(t, 1.0, counts["consensus_verifier_rejected_blocks_total"])
}

func TestMetricsVerifierCheckAncestors(t *testing.T) {
	committee, keys := unittest.CommitteeFixture(4)
	v := NewMetricsVerifier(
		NewSignedBlockVerifier(committee, testLimits(), txnSizeVerifier{}),
		metrics.NewConsensusCollector(prometheus.NewRegistry()),
	)

	genesis := orbit.GenesisRefs(committee)
	ancestor := unittest.VerifiedBlockFixture(committee, keys, 1, 1, genesis)
	block := unittest.VerifiedBlockFixture(committee, keys, 1, 2, []orbit.BlockRef{ancestor.Ref()})

	require.NoError(t, v.CheckAncestors(block, []*orbit.VerifiedBlock{ancestor}))

	// A block claiming an earlier timestamp than its ancestors is rejected.
	block.Block.TimestampMs = ancestor.TimestampMs() - 1
	err := v.CheckAncestors(block, []*orbit.VerifiedBlock{ancestor})
	require.True(t, orbit.IsInvalidBlockTimestampError(err), err)
}
