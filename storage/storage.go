// Package storage defines the persistent-store interfaces of the consensus
// and execution core. Implementations live in storage/badger.
package storage

import (
	"github.com/orbitbft/orbit-go/model/orbit"
)

// Blocks is the append-only store of verified DAG vertices, indexed by ref
// and by (round, author). Vertices are only removed by garbage collection
// below a retained round. The consensus layer guarantees causal closure: a
// block is inserted only once all its ancestors are stored.
type Blocks interface {
	// Insert stores a verified block. Re-inserting the same ref is a no-op.
	Insert(block *orbit.VerifiedBlock) error

	// ByRef returns the block with the given ref.
	// Returns ErrNotFound if the block is not stored.
	ByRef(ref orbit.BlockRef) (*orbit.VerifiedBlock, error)

	// ByRound returns all stored blocks of the given round, in ascending
	// author order.
	ByRound(round orbit.Round) ([]*orbit.VerifiedBlock, error)

	// ByAuthorRound returns the stored block of the given authority and
	// round. Returns ErrNotFound if no such block is stored.
	ByAuthorRound(author orbit.AuthorityIndex, round orbit.Round) (*orbit.VerifiedBlock, error)

	// Contains returns whether a block with the given ref is stored.
	Contains(ref orbit.BlockRef) (bool, error)

	// PruneBelowRound removes all blocks with rounds strictly below the
	// given round. Genesis blocks (round 0) survive pruning only as part of
	// the fixed synthetic set reconstructed from the committee.
	PruneBelowRound(round orbit.Round) error
}

// Commits persists the commit rule's output: one record per commit plus the
// aggregated high-water state used to restore progress after a restart.
type Commits interface {
	// Insert atomically stores a commit record and the updated commit state.
	Insert(record *orbit.CommitRecord, state *orbit.CommitState) error

	// BySequenceNumber returns the commit record with the given sequence.
	// Returns ErrNotFound if no such commit exists.
	BySequenceNumber(seq orbit.CommitSequenceNumber) (*orbit.CommitRecord, error)

	// State returns the latest persisted commit state.
	// Returns ErrNotFound before the first commit.
	State() (*orbit.CommitState, error)
}

// Checkpoints persists checkpoints, their contents, and the two watermarks
// the executor relies on. The highest-executed watermark is the only state
// that must survive a crash for correct recovery.
type Checkpoints interface {
	// Insert stores a checkpoint and its contents.
	Insert(checkpoint *orbit.Checkpoint, contents *orbit.CheckpointContents) error

	// BySequenceNumber returns the checkpoint with the given sequence.
	// Returns ErrNotFound if the checkpoint has not been synced.
	BySequenceNumber(seq orbit.CheckpointSequenceNumber) (*orbit.Checkpoint, error)

	// ContentsByDigest returns the contents with the given content digest.
	// Returns ErrNotFound if not stored.
	ContentsByDigest(digest orbit.BlockDigest) (*orbit.CheckpointContents, error)

	// HighestSynced returns the sequence of the highest synced checkpoint.
	// Returns ErrNotFound before any checkpoint has been synced.
	HighestSynced() (orbit.CheckpointSequenceNumber, error)

	// UpdateHighestSynced advances the highest-synced watermark. Lower
	// values are ignored.
	UpdateHighestSynced(seq orbit.CheckpointSequenceNumber) error

	// HighestExecuted returns the highest executed checkpoint.
	// Returns ErrNotFound if no checkpoint has been executed yet.
	HighestExecuted() (*orbit.Checkpoint, error)

	// HighestExecutedSeq returns just the executed watermark sequence.
	// Returns ErrNotFound if no checkpoint has been executed yet.
	HighestExecutedSeq() (orbit.CheckpointSequenceNumber, error)

	// UpdateHighestExecuted advances the executed watermark to the given
	// checkpoint. The sequence must be exactly one above the stored
	// watermark (or 0 with no prior watermark); any gap panics, as it would
	// desynchronize this node from the network-agreed state.
	UpdateHighestExecuted(checkpoint *orbit.Checkpoint) error
}

// Transactions stores executable transactions and their consensus-agreed
// effects, plus the executed marks the executor uses for idempotency and
// fork detection.
type Transactions interface {
	// Insert stores a transaction together with its expected effects.
	Insert(tx *orbit.ExecutableTransaction, effects *orbit.TransactionEffects) error

	// ByDigest returns the transaction with the given digest.
	// Returns ErrNotFound if not stored.
	ByDigest(digest orbit.TransactionDigest) (*orbit.ExecutableTransaction, error)

	// EffectsByDigest returns the expected effects of the transaction with
	// the given digest. Returns ErrNotFound if not stored.
	EffectsByDigest(digest orbit.TransactionDigest) (*orbit.TransactionEffects, error)

	// ExecutedEffectsDigest returns the effects digest recorded when the
	// transaction was executed, or ok=false if it has not been executed.
	ExecutedEffectsDigest(digest orbit.TransactionDigest) (orbit.EffectsDigest, bool, error)

	// MarkExecuted records the effects digest produced by executing the
	// transaction.
	MarkExecuted(digest orbit.TransactionDigest, effects orbit.EffectsDigest) error
}

// ConsumerProgress persists a consumer's processed index.
type ConsumerProgress interface {
	// ProcessedIndex returns the persisted index.
	// Returns ErrNotFound if none was initialized.
	ProcessedIndex() (uint64, error)

	// InitProcessedIndex initializes the index. Returns ErrAlreadyExists if
	// already initialized.
	InitProcessedIndex(defaultIndex uint64) error

	// SetProcessedIndex updates the persisted index.
	SetProcessedIndex(processed uint64) error
}
