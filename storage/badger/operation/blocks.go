package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/orbitbft/orbit-go/model/orbit"
)

func InsertBlock(ref orbit.BlockRef, block *orbit.SignedBlock) func(*badger.Txn) error {
	return insert(blockKey(ref), block)
}

func RetrieveBlock(ref orbit.BlockRef, block *orbit.SignedBlock) func(*badger.Txn) error {
	return retrieve(blockKey(ref), block)
}

func CheckBlock(ref orbit.BlockRef, exists_ *bool) func(*badger.Txn) error {
	return exists(blockKey(ref), exists_)
}

// TraverseBlocksByRound visits all stored blocks of the given round in
// ascending author order.
func TraverseBlocksByRound(round orbit.Round, create createFunc, handle handleFunc) func(*badger.Txn) error {
	return traverse(makePrefix(codeBlock, round), create, handle)
}

// TraverseBlocksByAuthorRound visits the stored blocks of one authority at
// one round (at most one post-verification; equivocation is rejected before
// storage).
func TraverseBlocksByAuthorRound(round orbit.Round, author orbit.AuthorityIndex, create createFunc, handle handleFunc) func(*badger.Txn) error {
	return traverse(makePrefix(codeBlock, round, author), create, handle)
}

// BlockKeysBelowRound collects the keys of all blocks in rounds [1, round).
// Keys are big-endian ordered, so a single forward scan over the block prefix
// can stop at the first key reaching the boundary round.
func BlockKeysBelowRound(round orbit.Round, keys *[][]byte) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		prefix := makePrefix(codeBlock)
		boundary := makePrefix(codeBlock, round)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := tx.NewIterator(opts)
		defer it.Close()

		start := makePrefix(codeBlock, orbit.Round(1))
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if string(key) >= string(boundary) {
				break
			}
			*keys = append(*keys, key)
		}
		return nil
	}
}

func blockKey(ref orbit.BlockRef) []byte {
	return makePrefix(codeBlock, ref.Round, ref.Author, ref.Digest)
}
