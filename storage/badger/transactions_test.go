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

func TestTransactionsInsertRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := bstorage.NewTransactions(db)

		tx, effects := unittest.ExecutableTransactionFixture()

		_, err := store.ByDigest(tx.Digest)
		require.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, store.Insert(tx, effects))

		retrieved, err := store.ByDigest(tx.Digest)
		require.NoError(t, err)
		assert.Equal(t, tx, retrieved)

		retrievedEffects, err := store.EffectsByDigest(tx.Digest)
		require.NoError(t, err)
		assert.Equal(t, effects, retrievedEffects)

		// A transaction can be resolved into multiple checkpoints' builds;
		// re-insertion is a no-op.
		require.NoError(t, store.Insert(tx, effects))
	})
}

func TestTransactionsMarkExecuted(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := bstorage.NewTransactions(db)

		tx, effects := unittest.ExecutableTransactionFixture()
		require.NoError(t, store.Insert(tx, effects))

		_, ok, err := store.ExecutedEffectsDigest(tx.Digest)
		require.NoError(t, err)
		assert.False(t, ok)

		produced := effects.Digest()
		require.NoError(t, store.MarkExecuted(tx.Digest, produced))

		recorded, ok, err := store.ExecutedEffectsDigest(tx.Digest)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, produced, recorded)

		// Replay after a crash re-marks with the same digest.
		require.NoError(t, store.MarkExecuted(tx.Digest, produced))
	})
}

func TestTransactionsSharedVersionsRoundTrip(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := bstorage.NewTransactions(db)

		tx, effects := unittest.ExecutableTransactionFixture()
		effects.SharedVersions = map[orbit.ObjectID]uint64{
			{0x01}: 7,
			{0x02}: 12,
		}
		tx.SharedInputs = []orbit.ObjectID{{0x01}, {0x02}}
		tx.ExpectedEffectsDigest = effects.Digest()
		require.NoError(t, store.Insert(tx, effects))

		retrievedEffects, err := store.EffectsByDigest(tx.Digest)
		require.NoError(t, err)
		assert.Equal(t, effects.SharedVersions, retrievedEffects.SharedVersions)

		retrieved, err := store.ByDigest(tx.Digest)
		require.NoError(t, err)
		assert.True(t, retrieved.ContainsSharedObjects())
	})
}
