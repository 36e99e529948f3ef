// Package badger implements the storage interfaces on BadgerDB. Values are
// encoded with msgpack and compressed with Snappy; keys are prefix-coded so
// that iteration order matches (round, author) order.
package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/orbitbft/orbit-go/model/orbit"
	"github.com/orbitbft/orbit-go/storage"
	"github.com/orbitbft/orbit-go/storage/badger/operation"
)

// Blocks is the persistent DAG vertex store. Reads of recently touched
// blocks are served from an LRU cache; appends are monotonic, so readers
// never observe torn state.
type Blocks struct {
	db    *badger.DB
	cache *lru.Cache // BlockRef -> *orbit.VerifiedBlock
}

// NewBlocks creates the block store with a read cache of the given size.
func NewBlocks(db *badger.DB, cacheSize int) (*Blocks, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create block cache: %w", err)
	}
	return &Blocks{db: db, cache: cache}, nil
}

// Insert stores a verified block. Re-inserting an existing ref is a no-op:
// verified blocks are content-addressed, so the payload cannot differ.
func (b *Blocks) Insert(block *orbit.VerifiedBlock) error {
	ref := block.Ref()
	err := b.db.Update(operation.InsertBlock(ref, &block.SignedBlock))
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("could not insert block %s: %w", ref, err)
	}
	b.cache.Add(ref, block)
	return nil
}

// ByRef returns the block with the given ref, or storage.ErrNotFound.
func (b *Blocks) ByRef(ref orbit.BlockRef) (*orbit.VerifiedBlock, error) {
	if cached, ok := b.cache.Get(ref); ok {
		return cached.(*orbit.VerifiedBlock), nil
	}

	var signed orbit.SignedBlock
	err := b.db.View(operation.RetrieveBlock(ref, &signed))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve block %s: %w", ref, err)
	}

	block, err := orbit.NewVerifiedBlock(&signed)
	if err != nil {
		return nil, fmt.Errorf("could not rebuild block %s: %w", ref, err)
	}
	if block.Digest() != ref.Digest {
		return nil, fmt.Errorf("stored block digest diverges for %s: %w", ref, storage.ErrDataMismatch)
	}
	b.cache.Add(ref, block)
	return block, nil
}

// ByRound returns all stored blocks of the round in ascending author order.
func (b *Blocks) ByRound(round orbit.Round) ([]*orbit.VerifiedBlock, error) {
	var blocks []*orbit.VerifiedBlock
	var signed orbit.SignedBlock
	err := b.db.View(operation.TraverseBlocksByRound(round,
		func() interface{} {
			signed = orbit.SignedBlock{}
			return &signed
		},
		func(key []byte) error {
			block, err := orbit.NewVerifiedBlock(&signed)
			if err != nil {
				return err
			}
			blocks = append(blocks, block)
			return nil
		},
	))
	if err != nil {
		return nil, fmt.Errorf("could not traverse round %d: %w", round, err)
	}
	return blocks, nil
}

// ByAuthorRound returns the block of the authority at the round, or
// storage.ErrNotFound.
func (b *Blocks) ByAuthorRound(author orbit.AuthorityIndex, round orbit.Round) (*orbit.VerifiedBlock, error) {
	var found *orbit.VerifiedBlock
	var signed orbit.SignedBlock
	err := b.db.View(operation.TraverseBlocksByAuthorRound(round, author,
		func() interface{} {
			signed = orbit.SignedBlock{}
			return &signed
		},
		func(key []byte) error {
			block, err := orbit.NewVerifiedBlock(&signed)
			if err != nil {
				return err
			}
			found = block
			return nil
		},
	))
	if err != nil {
		return nil, fmt.Errorf("could not traverse author %d round %d: %w", author, round, err)
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

// Contains returns whether a block with the given ref is stored.
func (b *Blocks) Contains(ref orbit.BlockRef) (bool, error) {
	if b.cache.Contains(ref) {
		return true, nil
	}
	var ok bool
	err := b.db.View(operation.CheckBlock(ref, &ok))
	if err != nil {
		return false, fmt.Errorf("could not check block %s: %w", ref, err)
	}
	return ok, nil
}

// PruneBelowRound removes all blocks with rounds in [1, round).
func (b *Blocks) PruneBelowRound(round orbit.Round) error {
	var keys [][]byte
	err := b.db.View(operation.BlockKeysBelowRound(round, &keys))
	if err != nil {
		return fmt.Errorf("could not collect prunable blocks: %w", err)
	}
	for _, key := range keys {
		key := key
		err = b.db.Update(func(tx *badger.Txn) error {
			return tx.Delete(key)
		})
		if err != nil {
			return fmt.Errorf("could not delete block: %w", err)
		}
	}
	for _, cached := range b.cache.Keys() {
		ref := cached.(orbit.BlockRef)
		if ref.Round > orbit.GenesisRound && ref.Round < round {
			b.cache.Remove(ref)
		}
	}
	return nil
}

var _ storage.Blocks = (*Blocks)(nil)
