package orbit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitbft/orbit-go/model/orbit"
	"github.com/orbitbft/orbit-go/utils/unittest"
)

func TestBlockSignVerify(t *testing.T) {
	committee, keys := unittest.CommitteeFixture(4)
	block := unittest.BlockFixture(committee, 1, 1, orbit.GenesisRefs(committee))

	signed, err := orbit.SignBlock(block, keys[1])
	require.NoError(t, err)
	require.NoError(t, signed.VerifySignature(committee))

	t.Run("tampered content fails", func(t *testing.T) {
		tampered := *signed
		tampered.Block.TimestampMs++
		err := tampered.VerifySignature(committee)
		require.Error(t, err)
		assert.True(t, orbit.IsSignatureVerificationError(err))
	})

	t.Run("empty signature is malformed", func(t *testing.T) {
		unsigned := *signed
		unsigned.Signature = nil
		err := unsigned.VerifySignature(committee)
		require.Error(t, err)
		assert.True(t, orbit.IsMalformedSignatureError(err))
	})

	t.Run("wrong key fails", func(t *testing.T) {
		other, err := orbit.SignBlock(block, keys[2])
		require.NoError(t, err)
		err = other.VerifySignature(committee)
		require.Error(t, err)
		assert.True(t, orbit.IsSignatureVerificationError(err))
	})
}

func TestVerifiedBlockDigest(t *testing.T) {
	committee, keys := unittest.CommitteeFixture(4)
	block := unittest.BlockFixture(committee, 0, 1, orbit.GenesisRefs(committee))
	signed, err := orbit.SignBlock(block, keys[0])
	require.NoError(t, err)

	first, err := orbit.NewVerifiedBlock(signed)
	require.NoError(t, err)
	second, err := orbit.NewVerifiedBlock(signed)
	require.NoError(t, err)

	// The digest is a pure function of the signed content.
	assert.Equal(t, first.Digest(), second.Digest())
	assert.Equal(t, first.Ref(), second.Ref())
	assert.Equal(t, orbit.Round(1), first.Ref().Round)
	assert.Equal(t, orbit.AuthorityIndex(0), first.Ref().Author)
}

func TestBlockRefOrdering(t *testing.T) {
	lowDigest := orbit.BlockRef{Round: 2, Author: 1, Digest: orbit.BlockDigest{0x01}}
	highDigest := orbit.BlockRef{Round: 2, Author: 1, Digest: orbit.BlockDigest{0x02}}
	laterAuthor := orbit.BlockRef{Round: 2, Author: 2, Digest: orbit.BlockDigest{0x01}}
	laterRound := orbit.BlockRef{Round: 3, Author: 0, Digest: orbit.BlockDigest{0x01}}

	assert.Equal(t, 0, lowDigest.Compare(lowDigest))
	assert.Equal(t, -1, lowDigest.Compare(highDigest))
	assert.Equal(t, 1, highDigest.Compare(lowDigest))
	assert.Equal(t, -1, highDigest.Compare(laterAuthor))
	assert.Equal(t, -1, laterAuthor.Compare(laterRound))
}

func TestGenesisBlocksDeterministic(t *testing.T) {
	committee, _ := unittest.CommitteeFixture(4)

	first := orbit.GenesisRefs(committee)
	second := orbit.GenesisRefs(committee)
	require.Len(t, first, 4)
	assert.Equal(t, first, second)

	for i, ref := range first {
		assert.Equal(t, orbit.GenesisRound, ref.Round)
		assert.Equal(t, orbit.AuthorityIndex(i), ref.Author)
	}

	blocks := orbit.GenesisBlocks(committee)
	for _, block := range blocks {
		assert.Empty(t, block.Ancestors())
		assert.Empty(t, block.Block.Transactions)
		assert.Empty(t, block.Signature)
	}
}
