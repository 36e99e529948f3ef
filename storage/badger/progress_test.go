package badger_test

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitbft/orbit-go/storage"
	bstorage "github.com/orbitbft/orbit-go/storage/badger"
	"github.com/orbitbft/orbit-go/utils/unittest"
)

func TestConsumerProgress(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		progress := bstorage.NewConsumerProgress(db, "test_consumer")

		_, err := progress.ProcessedIndex()
		require.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, progress.InitProcessedIndex(3))
		processed, err := progress.ProcessedIndex()
		require.NoError(t, err)
		assert.Equal(t, uint64(3), processed)

		require.ErrorIs(t, progress.InitProcessedIndex(5), storage.ErrAlreadyExists)

		require.NoError(t, progress.SetProcessedIndex(7))
		processed, err = progress.ProcessedIndex()
		require.NoError(t, err)
		assert.Equal(t, uint64(7), processed)
	})
}

// Two consumers over the same database keep independent indexes.
func TestConsumerProgressIsolation(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		first := bstorage.NewConsumerProgress(db, "first")
		second := bstorage.NewConsumerProgress(db, "second")

		require.NoError(t, first.InitProcessedIndex(1))
		require.NoError(t, second.InitProcessedIndex(10))
		require.NoError(t, first.SetProcessedIndex(2))

		processed, err := first.ProcessedIndex()
		require.NoError(t, err)
		assert.Equal(t, uint64(2), processed)

		processed, err = second.ProcessedIndex()
		require.NoError(t, err)
		assert.Equal(t, uint64(10), processed)
	})
}
