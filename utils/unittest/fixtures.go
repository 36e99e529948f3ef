package unittest

import (
	crand "crypto/rand"
	"fmt"

	"github.com/onflow/flow-go/crypto"

	"github.com/orbitbft/orbit-go/model/orbit"
)

func SeedFixture(n int) []byte {
	var seed = make([]byte, n)
	_, _ = crand.Read(seed)
	return seed
}

func KeyFixture() crypto.PrivateKey {
	key, err := crypto.GeneratePrivateKey(crypto.ECDSAP256, SeedFixture(128))
	if err != nil {
		panic(err)
	}
	return key
}

func KeysFixture(n int) []crypto.PrivateKey {
	keys := make([]crypto.PrivateKey, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, KeyFixture())
	}
	return keys
}

// CommitteeFixture returns a committee of n equally staked authorities for
// epoch 0, along with their signing keys (indexed by authority).
func CommitteeFixture(n int) (*orbit.Committee, []crypto.PrivateKey) {
	return CommitteeFixtureWithStakes(makeStakes(n, 1))
}

// CommitteeFixtureWithStakes returns a committee with the given stake
// distribution, along with the authorities' signing keys.
func CommitteeFixtureWithStakes(stakes []orbit.Stake) (*orbit.Committee, []crypto.PrivateKey) {
	keys := KeysFixture(len(stakes))
	authorities := make([]orbit.Authority, 0, len(stakes))
	for i, stake := range stakes {
		authorities = append(authorities, orbit.Authority{
			Stake:     stake,
			PublicKey: keys[i].PublicKey(),
		})
	}
	committee, err := orbit.NewCommittee(0, authorities)
	if err != nil {
		panic(err)
	}
	return committee, keys
}

func makeStakes(n int, stake orbit.Stake) []orbit.Stake {
	stakes := make([]orbit.Stake, n)
	for i := range stakes {
		stakes[i] = stake
	}
	return stakes
}

func TransactionFixture() orbit.Transaction {
	return orbit.Transaction(SeedFixture(16))
}

func TransactionsFixture(n int) []orbit.Transaction {
	txs := make([]orbit.Transaction, 0, n)
	for i := 0; i < n; i++ {
		txs = append(txs, TransactionFixture())
	}
	return txs
}

// BlockFixture returns an unsigned block for the given author and round with
// the given ancestors. The timestamp scales with the round so ancestor
// timestamps are always monotonic in fixture DAGs.
func BlockFixture(committee *orbit.Committee, author orbit.AuthorityIndex, round orbit.Round, ancestors []orbit.BlockRef) orbit.Block {
	return orbit.Block{
		Epoch:        committee.Epoch(),
		Round:        round,
		Author:       author,
		Ancestors:    ancestors,
		Transactions: TransactionsFixture(2),
		TimestampMs:  uint64(round) * 1000,
	}
}

// SignedBlockFixture signs a fixture block with the author's key.
func SignedBlockFixture(committee *orbit.Committee, keys []crypto.PrivateKey, author orbit.AuthorityIndex, round orbit.Round, ancestors []orbit.BlockRef) *orbit.SignedBlock {
	block := BlockFixture(committee, author, round, ancestors)
	signed, err := orbit.SignBlock(block, keys[author])
	if err != nil {
		panic(err)
	}
	return signed
}

// VerifiedBlockFixture returns a fully signed and digest-carrying block.
func VerifiedBlockFixture(committee *orbit.Committee, keys []crypto.PrivateKey, author orbit.AuthorityIndex, round orbit.Round, ancestors []orbit.BlockRef) *orbit.VerifiedBlock {
	signed := SignedBlockFixture(committee, keys, author, round, ancestors)
	verified, err := orbit.NewVerifiedBlock(signed)
	if err != nil {
		panic(err)
	}
	return verified
}

// DagFixture builds a fully connected DAG from round 1 up to and including
// endRound: every authority produces one block per round referencing all
// blocks of the previous round (the genesis refs for round 1). It returns
// the blocks in round-then-author order and the refs of the final round.
func DagFixture(committee *orbit.Committee, keys []crypto.PrivateKey, endRound orbit.Round) ([]*orbit.VerifiedBlock, []orbit.BlockRef) {
	return DagFixtureFrom(committee, keys, 1, endRound, orbit.GenesisRefs(committee))
}

// DagFixtureFrom builds a fully connected DAG over rounds startRound up to
// and including endRound, anchored on the given parent refs.
func DagFixtureFrom(committee *orbit.Committee, keys []crypto.PrivateKey, startRound, endRound orbit.Round, parents []orbit.BlockRef) ([]*orbit.VerifiedBlock, []orbit.BlockRef) {
	if startRound == orbit.GenesisRound {
		panic(fmt.Sprintf("dag fixture cannot produce genesis round blocks (start %d)", startRound))
	}
	var blocks []*orbit.VerifiedBlock
	for round := startRound; round <= endRound; round++ {
		next := make([]orbit.BlockRef, 0, committee.Size())
		for author := 0; author < committee.Size(); author++ {
			block := VerifiedBlockFixture(committee, keys, orbit.AuthorityIndex(author), round, parents)
			blocks = append(blocks, block)
			next = append(next, block.Ref())
		}
		parents = next
	}
	return blocks, parents
}

// DagFixtureWithAuthors is like DagFixtureFrom but only the listed authors
// produce blocks each round, so fixture DAGs can model missing leaders or
// sub-quorum rounds.
func DagFixtureWithAuthors(committee *orbit.Committee, keys []crypto.PrivateKey, startRound, endRound orbit.Round, parents []orbit.BlockRef, authors []orbit.AuthorityIndex) ([]*orbit.VerifiedBlock, []orbit.BlockRef) {
	var blocks []*orbit.VerifiedBlock
	for round := startRound; round <= endRound; round++ {
		next := make([]orbit.BlockRef, 0, len(authors))
		for _, author := range authors {
			block := VerifiedBlockFixture(committee, keys, author, round, parents)
			blocks = append(blocks, block)
			next = append(next, block.Ref())
		}
		parents = next
	}
	return blocks, parents
}

// CheckpointFixture returns a checkpoint with the given sequence in epoch 0
// and a matching contents digest over the given transaction digests.
func CheckpointFixture(seq orbit.CheckpointSequenceNumber, digests ...orbit.TransactionDigest) (*orbit.Checkpoint, *orbit.CheckpointContents) {
	contents := &orbit.CheckpointContents{TransactionDigests: digests}
	checkpoint := &orbit.Checkpoint{
		Epoch:          0,
		SequenceNumber: seq,
		ContentDigest:  contents.Digest(),
		TimestampMs:    uint64(seq) * 1000,
	}
	return checkpoint, contents
}

// ExecutableTransactionFixture returns a transaction with the given payload
// and its consensus-assigned effects.
func ExecutableTransactionFixture() (*orbit.ExecutableTransaction, *orbit.TransactionEffects) {
	payload := SeedFixture(32)
	tx := &orbit.ExecutableTransaction{
		Digest:  orbit.Transaction(payload).Digest(),
		Payload: payload,
	}
	effects := &orbit.TransactionEffects{
		TransactionDigest: tx.Digest,
		GasUsed: orbit.GasCostSummary{
			ComputationCost: 100,
			StorageCost:     10,
		},
	}
	tx.ExpectedEffectsDigest = effects.Digest()
	return tx, effects
}
