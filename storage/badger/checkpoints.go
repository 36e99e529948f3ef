package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/orbitbft/orbit-go/model/orbit"
	"github.com/orbitbft/orbit-go/storage"
	"github.com/orbitbft/orbit-go/storage/badger/operation"
)

// Checkpoints persists checkpoints, their contents, and the synced/executed
// watermarks. The executed watermark is the executor's sole crash-recovery
// anchor and is guarded against gaps.
type Checkpoints struct {
	db *badger.DB
}

func NewCheckpoints(db *badger.DB) *Checkpoints {
	return &Checkpoints{db: db}
}

// Insert stores a checkpoint and its contents. Re-inserting an already
// synced checkpoint is a no-op.
func (c *Checkpoints) Insert(checkpoint *orbit.Checkpoint, contents *orbit.CheckpointContents) error {
	err := c.db.Update(func(tx *badger.Txn) error {
		err := operation.InsertCheckpoint(checkpoint)(tx)
		if err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return nil
			}
			return fmt.Errorf("could not insert checkpoint %d: %w", checkpoint.SequenceNumber, err)
		}
		err = operation.InsertCheckpointContents(checkpoint.ContentDigest, contents)(tx)
		if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
			return fmt.Errorf("could not insert checkpoint contents: %w", err)
		}
		return nil
	})
	return err
}

// BySequenceNumber returns the checkpoint, or storage.ErrNotFound.
func (c *Checkpoints) BySequenceNumber(seq orbit.CheckpointSequenceNumber) (*orbit.Checkpoint, error) {
	var checkpoint orbit.Checkpoint
	err := c.db.View(operation.RetrieveCheckpoint(seq, &checkpoint))
	if err != nil {
		return nil, err
	}
	return &checkpoint, nil
}

// ContentsByDigest returns the contents, or storage.ErrNotFound.
func (c *Checkpoints) ContentsByDigest(digest orbit.BlockDigest) (*orbit.CheckpointContents, error) {
	var contents orbit.CheckpointContents
	err := c.db.View(operation.RetrieveCheckpointContents(digest, &contents))
	if err != nil {
		return nil, err
	}
	return &contents, nil
}

// HighestSynced returns the highest synced sequence, or storage.ErrNotFound.
func (c *Checkpoints) HighestSynced() (orbit.CheckpointSequenceNumber, error) {
	var seq orbit.CheckpointSequenceNumber
	err := c.db.View(operation.RetrieveHighestSyncedCheckpoint(&seq))
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// UpdateHighestSynced advances the synced watermark; lower values are
// ignored so out-of-order sync notifications cannot move it backwards.
func (c *Checkpoints) UpdateHighestSynced(seq orbit.CheckpointSequenceNumber) error {
	return c.db.Update(func(tx *badger.Txn) error {
		var current orbit.CheckpointSequenceNumber
		err := operation.RetrieveHighestSyncedCheckpoint(&current)(tx)
		if err == nil && current >= seq {
			return nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return operation.UpsertHighestSyncedCheckpoint(seq)(tx)
	})
}

// HighestExecuted returns the highest executed checkpoint, or
// storage.ErrNotFound if none has been executed.
func (c *Checkpoints) HighestExecuted() (*orbit.Checkpoint, error) {
	seq, err := c.HighestExecutedSeq()
	if err != nil {
		return nil, err
	}
	checkpoint, err := c.BySequenceNumber(seq)
	if err != nil {
		// The watermark always points at a stored checkpoint; a dangling
		// watermark means local state is corrupted beyond safe recovery.
		panic(fmt.Sprintf("highest executed checkpoint %d not found in store: %v", seq, err))
	}
	return checkpoint, nil
}

// HighestExecutedSeq returns the executed watermark, or storage.ErrNotFound.
func (c *Checkpoints) HighestExecutedSeq() (orbit.CheckpointSequenceNumber, error) {
	var seq orbit.CheckpointSequenceNumber
	err := c.db.View(operation.RetrieveHighestExecutedCheckpoint(&seq))
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// UpdateHighestExecuted advances the executed watermark to the given
// checkpoint. The sequence must extend the stored watermark by exactly 1
// (or be 0 with no prior watermark); a gap would mean the executor skipped
// a checkpoint and the node has desynchronized from the network, so it
// panics rather than persisting corrupted state.
func (c *Checkpoints) UpdateHighestExecuted(checkpoint *orbit.Checkpoint) error {
	seq := checkpoint.SequenceNumber
	return c.db.Update(func(tx *badger.Txn) error {
		var prev orbit.CheckpointSequenceNumber
		err := operation.RetrieveHighestExecutedCheckpoint(&prev)(tx)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			if seq != 0 {
				panic(fmt.Sprintf("executed watermark starts at %d, expected 0", seq))
			}
		} else if prev+1 != seq {
			panic(fmt.Sprintf("executed watermark gap: have %d, updating to %d", prev, seq))
		}
		return operation.UpsertHighestExecutedCheckpoint(seq)(tx)
	})
}

var _ storage.Checkpoints = (*Checkpoints)(nil)
