package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitbft/orbit-go/config"
	"github.com/orbitbft/orbit-go/model/orbit"
	"github.com/orbitbft/orbit-go/module/events"
	"github.com/orbitbft/orbit-go/module/metrics"
	bstorage "github.com/orbitbft/orbit-go/storage/badger"
	"github.com/orbitbft/orbit-go/utils/unittest"
)

// stubEngine executes by echoing back each transaction's expected effects
// digest. The first failEnqueues calls to Enqueue fail to exercise the
// retry path.
type stubEngine struct {
	mu           sync.Mutex
	failEnqueues int
	enqueueCalls int
	enqueued     map[orbit.TransactionDigest]struct{}
	locked       map[orbit.TransactionDigest]struct{}
	effects      map[orbit.TransactionDigest]orbit.EffectsDigest
}

func newStubEngine() *stubEngine {
	return &stubEngine{
		enqueued: make(map[orbit.TransactionDigest]struct{}),
		locked:   make(map[orbit.TransactionDigest]struct{}),
		effects:  make(map[orbit.TransactionDigest]orbit.EffectsDigest),
	}
}

func (s *stubEngine) Enqueue(transactions []*orbit.ExecutableTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueueCalls++
	if s.failEnqueues > 0 {
		s.failEnqueues--
		return errors.New("engine overloaded")
	}
	for _, tx := range transactions {
		s.enqueued[tx.Digest] = struct{}{}
		s.effects[tx.Digest] = tx.ExpectedEffectsDigest
	}
	return nil
}

func (s *stubEngine) NotifyReadEffects(ctx context.Context, digests []orbit.TransactionDigest) ([]orbit.EffectsDigest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	produced := make([]orbit.EffectsDigest, 0, len(digests))
	for _, digest := range digests {
		effects, ok := s.effects[digest]
		if !ok {
			return nil, ctx.Err()
		}
		produced = append(produced, effects)
	}
	return produced, nil
}

func (s *stubEngine) AcquireSharedLocksFromEffects(tx *orbit.ExecutableTransaction, effects *orbit.TransactionEffects) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked[tx.Digest] = struct{}{}
	return nil
}

func (s *stubEngine) wasEnqueued(digest orbit.TransactionDigest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.enqueued[digest]
	return ok
}

type executorHarness struct {
	executor     *CheckpointExecutor
	engine       *stubEngine
	checkpoints  *bstorage.Checkpoints
	transactions *bstorage.Transactions
	broadcast    *events.CheckpointBroadcast
}

func testExecutorConfig() config.ExecutorConfig {
	return config.ExecutorConfig{
		TasksPerCore:          2,
		LocalExecutionTimeout: time.Second,
		RetryDelay:            10 * time.Millisecond,
		SyncBufferSize:        16,
	}
}

func newExecutorHarness(t *testing.T, db *badger.DB) *executorHarness {
	engine := newStubEngine()
	checkpoints := bstorage.NewCheckpoints(db)
	transactions := bstorage.NewTransactions(db)
	broadcast := events.NewCheckpointBroadcast(16)
	executor := NewCheckpointExecutor(
		unittest.Logger(),
		testExecutorConfig(),
		checkpoints,
		transactions,
		engine,
		broadcast,
		metrics.NewExecutorCollector(prometheus.NewRegistry()),
	)
	return &executorHarness{
		executor:     executor,
		engine:       engine,
		checkpoints:  checkpoints,
		transactions: transactions,
		broadcast:    broadcast,
	}
}

// seedCheckpoint stores a checkpoint with the given number of transactions
// and marks it synced.
func (h *executorHarness) seedCheckpoint(t *testing.T, seq orbit.CheckpointSequenceNumber, numTxs int, final bool) (*orbit.Checkpoint, []*orbit.ExecutableTransaction) {
	txs := make([]*orbit.ExecutableTransaction, 0, numTxs)
	digests := make([]orbit.TransactionDigest, 0, numTxs)
	for i := 0; i < numTxs; i++ {
		tx, effects := unittest.ExecutableTransactionFixture()
		require.NoError(t, h.transactions.Insert(tx, effects))
		txs = append(txs, tx)
		digests = append(digests, tx.Digest)
	}
	checkpoint, contents := unittest.CheckpointFixture(seq, digests...)
	if final {
		checkpoint.EndOfEpoch = &orbit.EpochTransition{NextEpoch: 1}
	}
	require.NoError(t, h.checkpoints.Insert(checkpoint, contents))
	require.NoError(t, h.checkpoints.UpdateHighestSynced(seq))
	return checkpoint, txs
}

// runEpoch runs the executor in the background and returns its result
// channels.
func (h *executorHarness) runEpoch(ctx context.Context, committee *orbit.Committee) (<-chan *orbit.EpochTransition, <-chan error) {
	transitions := make(chan *orbit.EpochTransition, 1)
	errs := make(chan error, 1)
	go func() {
		transition, err := h.executor.RunEpoch(ctx, committee)
		transitions <- transition
		errs <- err
	}()
	return transitions, errs
}

func awaitTransition(t *testing.T, transitions <-chan *orbit.EpochTransition, errs <-chan error) *orbit.EpochTransition {
	select {
	case transition := <-transitions:
		require.NoError(t, <-errs)
		return transition
	case <-time.After(5 * time.Second):
		t.Fatal("executor did not finish the epoch in time")
		return nil
	}
}

func TestExecuteCheckpointSequence(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		harness := newExecutorHarness(t, db)
		committee, _ := unittest.CommitteeFixture(4)

		var allTxs []*orbit.ExecutableTransaction
		for seq := orbit.CheckpointSequenceNumber(0); seq <= 3; seq++ {
			_, txs := harness.seedCheckpoint(t, seq, 3, seq == 3)
			allTxs = append(allTxs, txs...)
		}

		transitions, errs := harness.runEpoch(context.Background(), committee)
		transition := awaitTransition(t, transitions, errs)
		require.NotNil(t, transition)
		assert.Equal(t, orbit.Epoch(1), transition.NextEpoch)

		executed, err := harness.checkpoints.HighestExecutedSeq()
		require.NoError(t, err)
		assert.Equal(t, orbit.CheckpointSequenceNumber(3), executed)

		for _, tx := range allTxs {
			assert.True(t, harness.engine.wasEnqueued(tx.Digest))
			recorded, ok, err := harness.transactions.ExecutedEffectsDigest(tx.Digest)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tx.ExpectedEffectsDigest, recorded)
		}

		// The transition is also emitted on the reconfiguration channel.
		select {
		case broadcast := <-harness.executor.ReconfigurationEvents():
			assert.Equal(t, transition, broadcast)
		default:
			t.Fatal("expected a reconfiguration event")
		}
	})
}

// An executor restarting with part of the epoch already executed must only
// schedule the checkpoints above the persisted watermark.
func TestExecutorResumesFromWatermark(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		harness := newExecutorHarness(t, db)
		committee, _ := unittest.CommitteeFixture(4)

		var checkpoints []*orbit.Checkpoint
		var txsBySeq [][]*orbit.ExecutableTransaction
		for seq := orbit.CheckpointSequenceNumber(0); seq <= 9; seq++ {
			checkpoint, txs := harness.seedCheckpoint(t, seq, 2, seq == 9)
			checkpoints = append(checkpoints, checkpoint)
			txsBySeq = append(txsBySeq, txs)
		}
		for seq := 0; seq <= 5; seq++ {
			require.NoError(t, harness.checkpoints.UpdateHighestExecuted(checkpoints[seq]))
		}

		transitions, errs := harness.runEpoch(context.Background(), committee)
		transition := awaitTransition(t, transitions, errs)
		require.NotNil(t, transition)

		executed, err := harness.checkpoints.HighestExecutedSeq()
		require.NoError(t, err)
		assert.Equal(t, orbit.CheckpointSequenceNumber(9), executed)

		for seq, txs := range txsBySeq {
			for _, tx := range txs {
				if seq <= 5 {
					assert.False(t, harness.engine.wasEnqueued(tx.Digest),
						"checkpoint %d was already executed", seq)
				} else {
					assert.True(t, harness.engine.wasEnqueued(tx.Digest))
				}
			}
		}
	})
}

func TestExecutorFollowsSyncBroadcast(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		harness := newExecutorHarness(t, db)
		committee, _ := unittest.CommitteeFixture(4)

		transitions, errs := harness.runEpoch(context.Background(), committee)

		// Nothing is synced yet; the executor waits on notifications.
		checkpoint0, _ := harness.seedCheckpoint(t, 0, 2, false)
		harness.broadcast.Publish(checkpoint0)
		checkpoint1, _ := harness.seedCheckpoint(t, 1, 2, true)
		harness.broadcast.Publish(checkpoint1)

		transition := awaitTransition(t, transitions, errs)
		require.NotNil(t, transition)
		assert.Equal(t, orbit.Epoch(1), transition.NextEpoch)

		executed, err := harness.checkpoints.HighestExecutedSeq()
		require.NoError(t, err)
		assert.Equal(t, orbit.CheckpointSequenceNumber(1), executed)
	})
}

// Dropped sync notifications must not stall the executor: the persisted
// synced watermark is re-read on the lagged signal.
func TestExecutorRecoversFromLaggedSync(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		engine := newStubEngine()
		checkpoints := bstorage.NewCheckpoints(db)
		transactions := bstorage.NewTransactions(db)
		broadcast := events.NewCheckpointBroadcast(1)
		executor := NewCheckpointExecutor(
			unittest.Logger(),
			testExecutorConfig(),
			checkpoints,
			transactions,
			engine,
			broadcast,
			metrics.NewExecutorCollector(prometheus.NewRegistry()),
		)
		harness := &executorHarness{
			executor:     executor,
			engine:       engine,
			checkpoints:  checkpoints,
			transactions: transactions,
			broadcast:    broadcast,
		}
		committee, _ := unittest.CommitteeFixture(4)

		// Publish faster than the single-slot buffer can hold, before the
		// executor starts draining.
		for seq := orbit.CheckpointSequenceNumber(0); seq <= 4; seq++ {
			checkpoint, _ := harness.seedCheckpoint(t, seq, 1, seq == 4)
			harness.broadcast.Publish(checkpoint)
		}

		transitions, errs := harness.runEpoch(context.Background(), committee)
		transition := awaitTransition(t, transitions, errs)
		require.NotNil(t, transition)

		executed, err := harness.checkpoints.HighestExecutedSeq()
		require.NoError(t, err)
		assert.Equal(t, orbit.CheckpointSequenceNumber(4), executed)
	})
}

func TestExecutorRetriesTransientFailures(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		harness := newExecutorHarness(t, db)
		harness.engine.failEnqueues = 2
		committee, _ := unittest.CommitteeFixture(4)

		harness.seedCheckpoint(t, 0, 2, true)

		transitions, errs := harness.runEpoch(context.Background(), committee)
		transition := awaitTransition(t, transitions, errs)
		require.NotNil(t, transition)

		harness.engine.mu.Lock()
		calls := harness.engine.enqueueCalls
		harness.engine.mu.Unlock()
		assert.GreaterOrEqual(t, calls, 3)
	})
}

func TestExecutorAcquiresSharedLocks(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		harness := newExecutorHarness(t, db)
		committee, _ := unittest.CommitteeFixture(4)

		tx, effects := unittest.ExecutableTransactionFixture()
		effects.SharedVersions = map[orbit.ObjectID]uint64{{0x01}: 7}
		tx.SharedInputs = []orbit.ObjectID{{0x01}}
		tx.ExpectedEffectsDigest = effects.Digest()
		require.NoError(t, harness.transactions.Insert(tx, effects))

		checkpoint, contents := unittest.CheckpointFixture(0, tx.Digest)
		checkpoint.EndOfEpoch = &orbit.EpochTransition{NextEpoch: 1}
		require.NoError(t, harness.checkpoints.Insert(checkpoint, contents))
		require.NoError(t, harness.checkpoints.UpdateHighestSynced(0))

		transitions, errs := harness.runEpoch(context.Background(), committee)
		require.NotNil(t, awaitTransition(t, transitions, errs))

		harness.engine.mu.Lock()
		_, locked := harness.engine.locked[tx.Digest]
		harness.engine.mu.Unlock()
		assert.True(t, locked)
	})
}

func TestExecutorCancellation(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		harness := newExecutorHarness(t, db)
		committee, _ := unittest.CommitteeFixture(4)

		ctx, cancel := context.WithCancel(context.Background())
		transitions, errs := harness.runEpoch(ctx, committee)
		cancel()

		unittest.RequireReturnsBefore(t, func() {
			transition := <-transitions
			assert.Nil(t, transition)
			assert.ErrorIs(t, <-errs, context.Canceled)
		}, time.Second)
	})
}

func TestHandleCrashRecovery(t *testing.T) {
	t.Run("empty store is a no-op", func(t *testing.T) {
		unittest.RunWithBadgerDB(t, func(db *badger.DB) {
			harness := newExecutorHarness(t, db)
			committee, _ := unittest.CommitteeFixture(4)

			require.NoError(t, harness.executor.HandleCrashRecovery(committee))
			select {
			case <-harness.executor.ReconfigurationEvents():
				t.Fatal("unexpected reconfiguration event")
			default:
			}
		})
	})

	t.Run("re-triggers after crash mid-reconfiguration", func(t *testing.T) {
		unittest.RunWithBadgerDB(t, func(db *badger.DB) {
			harness := newExecutorHarness(t, db)
			committee, _ := unittest.CommitteeFixture(4)

			checkpoint, _ := harness.seedCheckpoint(t, 0, 1, true)
			// Simulate the crash window: the final checkpoint executed, but
			// the node still runs the epoch it closed.
			require.NoError(t, harness.checkpoints.UpdateHighestExecuted(checkpoint))

			require.NoError(t, harness.executor.HandleCrashRecovery(committee))
			select {
			case transition := <-harness.executor.ReconfigurationEvents():
				assert.Equal(t, orbit.Epoch(1), transition.NextEpoch)
			default:
				t.Fatal("expected a reconfiguration event")
			}
		})
	})

	t.Run("no-op after completed reconfiguration", func(t *testing.T) {
		unittest.RunWithBadgerDB(t, func(db *badger.DB) {
			harness := newExecutorHarness(t, db)

			checkpoint, _ := harness.seedCheckpoint(t, 0, 1, true)
			require.NoError(t, harness.checkpoints.UpdateHighestExecuted(checkpoint))

			// After a clean handover the node runs the next epoch.
			keys := unittest.KeysFixture(4)
			authorities := make([]orbit.Authority, 0, len(keys))
			for _, key := range keys {
				authorities = append(authorities, orbit.Authority{Stake: 1, PublicKey: key.PublicKey()})
			}
			nextCommittee, err := orbit.NewCommittee(1, authorities)
			require.NoError(t, err)

			require.NoError(t, harness.executor.HandleCrashRecovery(nextCommittee))
			select {
			case <-harness.executor.ReconfigurationEvents():
				t.Fatal("unexpected reconfiguration event")
			default:
			}
		})
	})
}

// Re-executing a transaction whose recorded effects differ from the agreed
// effects means the local state has forked, which is fatal.
func TestExecutorPanicsOnForkedEffects(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		harness := newExecutorHarness(t, db)

		tx, effects := unittest.ExecutableTransactionFixture()
		require.NoError(t, harness.transactions.Insert(tx, effects))
		require.NoError(t, harness.transactions.MarkExecuted(tx.Digest, orbit.EffectsDigest{0xde, 0xad}))

		checkpoint, contents := unittest.CheckpointFixture(0, tx.Digest)
		require.NoError(t, harness.checkpoints.Insert(checkpoint, contents))
		require.NoError(t, harness.checkpoints.UpdateHighestSynced(0))

		require.Panics(t, func() {
			_ = harness.executor.executeCheckpointOnce(context.Background(), checkpoint)
		})
	})
}
