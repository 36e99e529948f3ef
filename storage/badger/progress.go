package badger

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/orbitbft/orbit-go/storage"
	"github.com/orbitbft/orbit-go/storage/badger/operation"
)

// ConsumerProgress persists one consumer's processed index, keyed by the
// consumer name.
type ConsumerProgress struct {
	db       *badger.DB
	consumer string
}

func NewConsumerProgress(db *badger.DB, consumer string) *ConsumerProgress {
	return &ConsumerProgress{
		db:       db,
		consumer: consumer,
	}
}

func (cp *ConsumerProgress) ProcessedIndex() (uint64, error) {
	var processed uint64
	err := cp.db.View(operation.RetrieveProcessedIndex(cp.consumer, &processed))
	if err != nil {
		return 0, err
	}
	return processed, nil
}

// InitProcessedIndex insert the default processed index to the storage layer, can only be done once.
// initialize for the second time will return storage.ErrAlreadyExists
func (cp *ConsumerProgress) InitProcessedIndex(defaultIndex uint64) error {
	return cp.db.Update(operation.InitProcessedIndex(cp.consumer, defaultIndex))
}

// SetProcessedIndex updates the processed index in the storage layer.
// It will fail if InitProcessedIndex was never called.
func (cp *ConsumerProgress) SetProcessedIndex(processed uint64) error {
	return cp.db.Update(operation.SetProcessedIndex(cp.consumer, processed))
}

var _ storage.ConsumerProgress = (*ConsumerProgress)(nil)
