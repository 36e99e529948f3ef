package badger_test

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitbft/orbit-go/model/orbit"
	"github.com/orbitbft/orbit-go/storage"
	bstorage "github.com/orbitbft/orbit-go/storage/badger"
	"github.com/orbitbft/orbit-go/utils/unittest"
)

func TestCheckpointsInsertRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := bstorage.NewCheckpoints(db)

		tx, _ := unittest.ExecutableTransactionFixture()
		checkpoint, contents := unittest.CheckpointFixture(0, tx.Digest)

		_, err := store.BySequenceNumber(0)
		require.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, store.Insert(checkpoint, contents))

		retrieved, err := store.BySequenceNumber(0)
		require.NoError(t, err)
		assert.Equal(t, checkpoint, retrieved)

		restoredContents, err := store.ContentsByDigest(checkpoint.ContentDigest)
		require.NoError(t, err)
		assert.Equal(t, contents, restoredContents)

		// Checkpoints are content-addressed per sequence; re-insertion is a
		// no-op.
		require.NoError(t, store.Insert(checkpoint, contents))
	})
}

func TestCheckpointsSyncedWatermark(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := bstorage.NewCheckpoints(db)

		_, err := store.HighestSynced()
		require.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, store.UpdateHighestSynced(3))
		synced, err := store.HighestSynced()
		require.NoError(t, err)
		assert.Equal(t, orbit.CheckpointSequenceNumber(3), synced)

		// Out-of-order sync completions never regress the watermark.
		require.NoError(t, store.UpdateHighestSynced(1))
		synced, err = store.HighestSynced()
		require.NoError(t, err)
		assert.Equal(t, orbit.CheckpointSequenceNumber(3), synced)

		require.NoError(t, store.UpdateHighestSynced(5))
		synced, err = store.HighestSynced()
		require.NoError(t, err)
		assert.Equal(t, orbit.CheckpointSequenceNumber(5), synced)
	})
}

func TestCheckpointsExecutedWatermark(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := bstorage.NewCheckpoints(db)

		var checkpoints []*orbit.Checkpoint
		for seq := orbit.CheckpointSequenceNumber(0); seq <= 2; seq++ {
			tx, _ := unittest.ExecutableTransactionFixture()
			checkpoint, contents := unittest.CheckpointFixture(seq, tx.Digest)
			require.NoError(t, store.Insert(checkpoint, contents))
			checkpoints = append(checkpoints, checkpoint)
		}

		_, err := store.HighestExecuted()
		require.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, store.UpdateHighestExecuted(checkpoints[0]))
		require.NoError(t, store.UpdateHighestExecuted(checkpoints[1]))

		executed, err := store.HighestExecuted()
		require.NoError(t, err)
		assert.Equal(t, checkpoints[1], executed)

		seq, err := store.HighestExecutedSeq()
		require.NoError(t, err)
		assert.Equal(t, orbit.CheckpointSequenceNumber(1), seq)
	})
}

// The watermarks survive a process restart.
func TestCheckpointsWatermarksSurviveRestart(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		tx, _ := unittest.ExecutableTransactionFixture()
		checkpoint, contents := unittest.CheckpointFixture(0, tx.Digest)

		unittest.RunWithReopenableBadgerDB(t, dir, func(db *badger.DB) {
			store := bstorage.NewCheckpoints(db)
			require.NoError(t, store.Insert(checkpoint, contents))
			require.NoError(t, store.UpdateHighestSynced(0))
			require.NoError(t, store.UpdateHighestExecuted(checkpoint))
		})

		unittest.RunWithReopenableBadgerDB(t, dir, func(db *badger.DB) {
			store := bstorage.NewCheckpoints(db)

			synced, err := store.HighestSynced()
			require.NoError(t, err)
			assert.Equal(t, orbit.CheckpointSequenceNumber(0), synced)

			executed, err := store.HighestExecuted()
			require.NoError(t, err)
			assert.Equal(t, checkpoint, executed)
		})
	})
}

// Advancing the executed watermark past a gap would silently skip a
// checkpoint's transactions, so it is fatal.
func TestCheckpointsExecutedWatermarkGapPanics(t *testing.T) {
	t.Run("first update must be sequence 0", func(t *testing.T) {
		unittest.RunWithBadgerDB(t, func(db *badger.DB) {
			store := bstorage.NewCheckpoints(db)

			tx, _ := unittest.ExecutableTransactionFixture()
			checkpoint, contents := unittest.CheckpointFixture(3, tx.Digest)
			require.NoError(t, store.Insert(checkpoint, contents))

			require.Panics(t, func() {
				_ = store.UpdateHighestExecuted(checkpoint)
			})
		})
	})

	t.Run("update must advance by exactly one", func(t *testing.T) {
		unittest.RunWithBadgerDB(t, func(db *badger.DB) {
			store := bstorage.NewCheckpoints(db)

			var checkpoints []*orbit.Checkpoint
			for _, seq := range []orbit.CheckpointSequenceNumber{0, 2} {
				tx, _ := unittest.ExecutableTransactionFixture()
				checkpoint, contents := unittest.CheckpointFixture(seq, tx.Digest)
				require.NoError(t, store.Insert(checkpoint, contents))
				checkpoints = append(checkpoints, checkpoint)
			}

			require.NoError(t, store.UpdateHighestExecuted(checkpoints[0]))
			require.Panics(t, func() {
				_ = store.UpdateHighestExecuted(checkpoints[1])
			})
		})
	})
}
