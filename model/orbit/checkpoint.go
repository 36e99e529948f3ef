package orbit

import (
	"fmt"
)

// CheckpointSequenceNumber is the position of a checkpoint in the execution
// order. The highest-executed watermark advances over these one at a time.
type CheckpointSequenceNumber uint64

// GasCostSummary aggregates the gas accounting of a set of transactions.
type GasCostSummary struct {
	ComputationCost uint64
	StorageCost     uint64
	StorageRebate   uint64
}

// Add accumulates another summary into this one.
func (g *GasCostSummary) Add(other GasCostSummary) {
	g.ComputationCost += other.ComputationCost
	g.StorageCost += other.StorageCost
	g.StorageRebate += other.StorageRebate
}

// EpochTransition is the end-of-epoch descriptor carried by the final
// checkpoint of an epoch. It names the committee taking over.
type EpochTransition struct {
	NextEpoch Epoch
	// NextAuthorities is the canonical authority set of the next committee,
	// given as (stake, encoded public key) pairs.
	NextAuthorities []AuthorityDescriptor
}

// AuthorityDescriptor is the serializable form of an authority entry.
type AuthorityDescriptor struct {
	Stake            Stake
	EncodedPublicKey []byte
}

// Checkpoint is the execution-layer unit built from one committed sub-DAG.
// Checkpoints form a gapless sequence per epoch and are the granularity at
// which the executor tracks and persists progress.
type Checkpoint struct {
	Epoch          Epoch
	SequenceNumber CheckpointSequenceNumber
	// ContentDigest is the hash over the member transaction digests, in
	// order. It keys the checkpoint contents in storage.
	ContentDigest BlockDigest
	// TimestampMs is monotonically non-decreasing across the sequence and at
	// least the maximum of the constituent block timestamps.
	TimestampMs uint64
	GasSummary  GasCostSummary
	// EndOfEpoch is set only on the final checkpoint of an epoch.
	EndOfEpoch *EpochTransition
}

// IsLastCheckpointOfEpoch returns whether this checkpoint carries the
// next-committee descriptor.
func (c *Checkpoint) IsLastCheckpointOfEpoch() bool {
	return c.EndOfEpoch != nil
}

func (c *Checkpoint) String() string {
	return fmt.Sprintf("checkpoint %d (epoch %d)", c.SequenceNumber, c.Epoch)
}

// CheckpointContents is the ordered list of transaction digests a checkpoint
// consists of. Stored separately, keyed by the checkpoint's content digest.
type CheckpointContents struct {
	TransactionDigests []TransactionDigest
}

// Digest computes the content digest over the member transaction digests.
func (c *CheckpointContents) Digest() BlockDigest {
	data := make([]byte, 0, len(c.TransactionDigests)*DigestLength)
	for _, d := range c.TransactionDigests {
		data = append(data, d[:]...)
	}
	var digest BlockDigest
	copy(digest[:], computeHash(data))
	return digest
}
