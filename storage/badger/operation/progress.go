package operation

import (
	"github.com/dgraph-io/badger/v2"
)

func InitProcessedIndex(consumer string, index uint64) func(*badger.Txn) error {
	return insert(makePrefix(codeConsumerProgress, consumer), index)
}

func SetProcessedIndex(consumer string, index uint64) func(*badger.Txn) error {
	return update(makePrefix(codeConsumerProgress, consumer), index)
}

func RetrieveProcessedIndex(consumer string, index *uint64) func(*badger.Txn) error {
	return retrieve(makePrefix(codeConsumerProgress, consumer), index)
}
