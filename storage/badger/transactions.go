package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/orbitbft/orbit-go/model/orbit"
	"github.com/orbitbft/orbit-go/storage"
	"github.com/orbitbft/orbit-go/storage/badger/operation"
)

// Transactions stores executable transactions, their consensus-agreed
// effects, and the executed marks used for idempotent re-execution.
type Transactions struct {
	db *badger.DB
}

func NewTransactions(db *badger.DB) *Transactions {
	return &Transactions{db: db}
}

// Insert stores a transaction with its expected effects in one transaction.
// Re-inserting an already synced transaction is a no-op.
func (t *Transactions) Insert(tx *orbit.ExecutableTransaction, effects *orbit.TransactionEffects) error {
	return t.db.Update(func(btx *badger.Txn) error {
		err := operation.InsertTransaction(tx)(btx)
		if err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return nil
			}
			return fmt.Errorf("could not insert transaction: %w", err)
		}
		err = operation.InsertTransactionEffects(tx.Digest, effects)(btx)
		if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
			return fmt.Errorf("could not insert transaction effects: %w", err)
		}
		return nil
	})
}

func (t *Transactions) ByDigest(digest orbit.TransactionDigest) (*orbit.ExecutableTransaction, error) {
	var tx orbit.ExecutableTransaction
	err := t.db.View(operation.RetrieveTransaction(digest, &tx))
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (t *Transactions) EffectsByDigest(digest orbit.TransactionDigest) (*orbit.TransactionEffects, error) {
	var effects orbit.TransactionEffects
	err := t.db.View(operation.RetrieveTransactionEffects(digest, &effects))
	if err != nil {
		return nil, err
	}
	return &effects, nil
}

// ExecutedEffectsDigest returns the effects digest recorded at execution
// time, with ok=false if the transaction has not been executed.
func (t *Transactions) ExecutedEffectsDigest(digest orbit.TransactionDigest) (orbit.EffectsDigest, bool, error) {
	var effects orbit.EffectsDigest
	err := t.db.View(operation.RetrieveExecutedEffectsDigest(digest, &effects))
	if errors.Is(err, storage.ErrNotFound) {
		return orbit.EffectsDigest{}, false, nil
	}
	if err != nil {
		return orbit.EffectsDigest{}, false, err
	}
	return effects, true, nil
}

// MarkExecuted records the effects digest produced by executing the
// transaction. Upsert, so crash-replayed executions overwrite with the
// same digest.
func (t *Transactions) MarkExecuted(digest orbit.TransactionDigest, effects orbit.EffectsDigest) error {
	return t.db.Update(operation.UpsertExecutedEffectsDigest(digest, effects))
}

var _ storage.Transactions = (*Transactions)(nil)
