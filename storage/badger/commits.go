package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/orbitbft/orbit-go/model/orbit"
	"github.com/orbitbft/orbit-go/storage"
	"github.com/orbitbft/orbit-go/storage/badger/operation"
)

// Commits persists commit records and the commit rule's high-water state.
type Commits struct {
	db *badger.DB
}

func NewCommits(db *badger.DB) *Commits {
	return &Commits{db: db}
}

// Insert atomically stores the commit record and the updated commit state.
// Atomicity matters: a record without the matching state would replay the
// same blocks into a second commit after a restart.
func (c *Commits) Insert(record *orbit.CommitRecord, state *orbit.CommitState) error {
	err := c.db.Update(func(tx *badger.Txn) error {
		err := operation.InsertCommitRecord(record)(tx)
		if err != nil {
			return fmt.Errorf("could not insert commit record %d: %w", record.SequenceNumber, err)
		}
		err = operation.UpsertCommitState(state)(tx)
		if err != nil {
			return fmt.Errorf("could not update commit state: %w", err)
		}
		return nil
	})
	return err
}

// BySequenceNumber returns the commit record, or storage.ErrNotFound.
func (c *Commits) BySequenceNumber(seq orbit.CommitSequenceNumber) (*orbit.CommitRecord, error) {
	var record orbit.CommitRecord
	err := c.db.View(operation.RetrieveCommitRecord(seq, &record))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve commit %d: %w", seq, err)
	}
	return &record, nil
}

// State returns the latest commit state, or storage.ErrNotFound before the
// first commit.
func (c *Commits) State() (*orbit.CommitState, error) {
	var state orbit.CommitState
	err := c.db.View(operation.RetrieveCommitState(&state))
	if err != nil {
		return nil, err
	}
	return &state, nil
}

var _ storage.Commits = (*Commits)(nil)
