// Package executor drives transaction execution checkpoint by checkpoint:
// it schedules synced checkpoints onto a bounded task pool, drains their
// completions strictly in sequence order, advances the crash-recoverable
// highest-executed watermark, and hands over to the next committee at the
// end of an epoch.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/orbitbft/orbit-go/config"
	"github.com/orbitbft/orbit-go/model/orbit"
	"github.com/orbitbft/orbit-go/module"
	"github.com/orbitbft/orbit-go/module/events"
	"github.com/orbitbft/orbit-go/module/metrics"
	"github.com/orbitbft/orbit-go/module/queue"
	"github.com/orbitbft/orbit-go/storage"
)

// reconfigChannelCapacity leaves room for one late subscriber so the
// end-of-epoch broadcast never blocks the executor.
const reconfigChannelCapacity = 2

// CheckpointExecutor consumes the gapless checkpoint sequence. Multiple
// checkpoints execute concurrently, but the watermark only ever advances by
// exactly one: completions are buffered until their predecessors are done.
// The persisted watermark is the executor's only crash-recoverable state;
// everything else is rebuilt on restart.
type CheckpointExecutor struct {
	log          zerolog.Logger
	conf         config.ExecutorConfig
	checkpoints  storage.Checkpoints
	transactions storage.Transactions
	engine       module.ExecutionEngine
	sub          *events.CheckpointSubscription
	reconfig     chan *orbit.EpochTransition
	metrics      *metrics.ExecutorCollector
}

// NewCheckpointExecutor subscribes to the sync broadcast immediately, so a
// checkpoint published between construction and RunEpoch is not missed.
func NewCheckpointExecutor(
	log zerolog.Logger,
	conf config.ExecutorConfig,
	checkpoints storage.Checkpoints,
	transactions storage.Transactions,
	engine module.ExecutionEngine,
	broadcast *events.CheckpointBroadcast,
	collector *metrics.ExecutorCollector,
) *CheckpointExecutor {
	return &CheckpointExecutor{
		log:          log.With().Str("component", "checkpoint_executor").Logger(),
		conf:         conf,
		checkpoints:  checkpoints,
		transactions: transactions,
		engine:       engine,
		sub:          broadcast.Subscribe(),
		reconfig:     make(chan *orbit.EpochTransition, reconfigChannelCapacity),
		metrics:      collector,
	}
}

// ReconfigurationEvents delivers the next-epoch committee descriptor once
// the final checkpoint of an epoch has been executed. Subscribe before
// starting the executor.
func (e *CheckpointExecutor) ReconfigurationEvents() <-chan *orbit.EpochTransition {
	return e.reconfig
}

// HandleCrashRecovery covers the crash window between "final checkpoint of
// the epoch executed" and "reconfiguration completed": if the persisted
// highest-executed checkpoint closes the epoch the node is still on, the
// reconfiguration broadcast is re-triggered. After a clean handover the node
// is already on the next epoch and this is a no-op.
func (e *CheckpointExecutor) HandleCrashRecovery(committee *orbit.Committee) error {
	highest, err := e.checkpoints.HighestExecuted()
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read highest executed checkpoint: %w", err)
	}
	if highest.IsLastCheckpointOfEpoch() && highest.Epoch == committee.Epoch() {
		e.log.Info().
			Uint64("sequence", uint64(highest.SequenceNumber)).
			Uint64("epoch", uint64(highest.Epoch)).
			Msg("crash recovery: epoch already fully executed, re-triggering reconfiguration")
		e.broadcastReconfiguration(highest.EndOfEpoch)
	}
	return nil
}

// RunEpoch executes checkpoints of the committee's epoch until its final
// checkpoint completes, returning the next committee descriptor. It returns
// (nil, nil) when the sync broadcast shuts down with no epoch transition,
// and the context error on cancellation.
func (e *CheckpointExecutor) RunEpoch(ctx context.Context, committee *orbit.Committee) (*orbit.EpochTransition, error) {
	limit := e.conf.TasksPerCore * runtime.NumCPU()
	pool := workerpool.New(limit)
	defer pool.StopWait()

	// Resume from the persisted watermark: already-executed checkpoints are
	// not rescheduled.
	var nextToSchedule orbit.CheckpointSequenceNumber
	highestExecuted, err := e.checkpoints.HighestExecutedSeq()
	if err == nil {
		nextToSchedule = highestExecuted + 1
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("could not read executed watermark: %w", err)
	}

	highestSynced, haveSynced, err := e.readHighestSynced()
	if err != nil {
		return nil, err
	}

	sequencer := queue.NewSequencer(uint64(nextToSchedule))
	completions := make(chan *orbit.Checkpoint, limit)
	inFlight := 0
	endOfEpoch := false
	syncChannel := e.sub.Channel()

	e.log.Info().
		Uint64("next", uint64(nextToSchedule)).
		Uint64("epoch", uint64(committee.Epoch())).
		Msg("executor starting epoch")

	for {
		// Schedule synced checkpoints up to the pool's parallelism, stopping
		// at the epoch's final checkpoint.
		for !endOfEpoch && haveSynced && nextToSchedule <= highestSynced && inFlight < limit {
			checkpoint, err := e.checkpoints.BySequenceNumber(nextToSchedule)
			if err != nil {
				// The synced watermark always trails the stored sequence.
				return nil, fmt.Errorf("synced checkpoint %d not in store: %w", nextToSchedule, err)
			}
			if checkpoint.Epoch != committee.Epoch() {
				panic(fmt.Sprintf("checkpoint %d belongs to epoch %d, executor is on epoch %d",
					checkpoint.SequenceNumber, checkpoint.Epoch, committee.Epoch()))
			}
			if checkpoint.IsLastCheckpointOfEpoch() {
				endOfEpoch = true
			}
			pool.Submit(func() {
				if e.executeCheckpoint(ctx, checkpoint) {
					completions <- checkpoint
				}
			})
			e.metrics.CheckpointScheduled()
			nextToSchedule++
			inFlight++
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case checkpoint := <-completions:
			inFlight--
			sequencer.Push(uint64(checkpoint.SequenceNumber), checkpoint)
			for {
				result, ok := sequencer.Pop()
				if !ok {
					break
				}
				done := result.(*orbit.Checkpoint)
				// UpdateHighestExecuted panics on any sequence gap.
				err := e.checkpoints.UpdateHighestExecuted(done)
				if err != nil {
					return nil, fmt.Errorf("could not advance executed watermark to %d: %w", done.SequenceNumber, err)
				}
				e.log.Debug().
					Uint64("sequence", uint64(done.SequenceNumber)).
					Msg("checkpoint executed")
				if done.IsLastCheckpointOfEpoch() {
					e.log.Info().
						Uint64("sequence", uint64(done.SequenceNumber)).
						Uint64("next_epoch", uint64(done.EndOfEpoch.NextEpoch)).
						Msg("epoch fully executed")
					e.broadcastReconfiguration(done.EndOfEpoch)
					return done.EndOfEpoch, nil
				}
			}

		case synced, ok := <-syncChannel:
			if !ok {
				// Sync layer shut down. Finish what is in flight, then stop.
				syncChannel = nil
				if inFlight == 0 {
					return nil, nil
				}
				continue
			}
			if e.sub.TakeLagged() {
				// Notifications were dropped; the persisted watermark is
				// authoritative.
				e.metrics.SyncNotificationLagged()
				highestSynced, haveSynced, err = e.readHighestSynced()
				if err != nil {
					return nil, err
				}
				e.log.Warn().
					Uint64("highest_synced", uint64(highestSynced)).
					Msg("sync notifications lagged, re-read persisted watermark")
			} else if !haveSynced || synced.SequenceNumber > highestSynced {
				highestSynced = synced.SequenceNumber
				haveSynced = true
			}
		}

		if syncChannel == nil && inFlight == 0 && !endOfEpoch {
			return nil, nil
		}
	}
}

func (e *CheckpointExecutor) readHighestSynced() (orbit.CheckpointSequenceNumber, bool, error) {
	highest, err := e.checkpoints.HighestSynced()
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("could not read synced watermark: %w", err)
	}
	return highest, true, nil
}

// broadcastReconfiguration never blocks: the channel has slack for a late
// subscriber, and a full channel means the previous broadcast was never
// consumed, so another copy adds nothing.
func (e *CheckpointExecutor) broadcastReconfiguration(transition *orbit.EpochTransition) {
	e.metrics.ReconfigurationTriggered()
	select {
	case e.reconfig <- transition:
	default:
		e.log.Warn().Msg("reconfiguration channel full, dropping broadcast")
	}
}

// executeCheckpoint runs one checkpoint to durable completion, retrying
// transient failures at a fixed delay for as long as the context lives. It
// reports whether the checkpoint completed.
func (e *CheckpointExecutor) executeCheckpoint(ctx context.Context, checkpoint *orbit.Checkpoint) bool {
	start := time.Now()
	backoff := retry.NewConstant(e.conf.RetryDelay)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := e.executeCheckpointOnce(ctx, checkpoint)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			e.metrics.ExecutionRetried()
			e.log.Warn().
				Err(err).
				Uint64("sequence", uint64(checkpoint.SequenceNumber)).
				Msg("checkpoint execution failed, retrying")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		// Only context cancellation escapes the retry loop.
		return false
	}
	e.metrics.CheckpointExecuted(uint64(checkpoint.SequenceNumber), time.Since(start))
	return true
}

func (e *CheckpointExecutor) executeCheckpointOnce(ctx context.Context, checkpoint *orbit.Checkpoint) error {
	contents, err := e.checkpoints.ContentsByDigest(checkpoint.ContentDigest)
	if errors.Is(err, storage.ErrNotFound) {
		// A synced checkpoint always has its contents stored alongside it.
		panic(fmt.Sprintf("contents of synced checkpoint %d are missing", checkpoint.SequenceNumber))
	}
	if err != nil {
		return fmt.Errorf("could not load contents: %w", err)
	}

	var toExecute []*orbit.ExecutableTransaction
	var pending []orbit.TransactionDigest
	expected := make(map[orbit.TransactionDigest]orbit.EffectsDigest)
	for _, digest := range contents.TransactionDigests {
		tx, err := e.transactions.ByDigest(digest)
		if errors.Is(err, storage.ErrNotFound) {
			panic(fmt.Sprintf("transaction %s of checkpoint %d is missing", digest, checkpoint.SequenceNumber))
		}
		if err != nil {
			return fmt.Errorf("could not load transaction %s: %w", digest, err)
		}

		executed, ok, err := e.transactions.ExecutedEffectsDigest(digest)
		if err != nil {
			return fmt.Errorf("could not read executed effects of %s: %w", digest, err)
		}
		if ok {
			// Already executed, e.g. before a crash. Re-execution must have
			// produced identical effects or the local state has forked.
			if executed != tx.ExpectedEffectsDigest {
				panic(fmt.Sprintf("fork detected: transaction %s executed with effects %x, agreed effects %x",
					digest, executed, tx.ExpectedEffectsDigest))
			}
			continue
		}

		if tx.ContainsSharedObjects() {
			effects, err := e.transactions.EffectsByDigest(digest)
			if err != nil {
				return fmt.Errorf("could not load effects of shared transaction %s: %w", digest, err)
			}
			err = e.engine.AcquireSharedLocksFromEffects(tx, effects)
			if err != nil {
				return fmt.Errorf("could not acquire shared locks for %s: %w", digest, err)
			}
		}
		toExecute = append(toExecute, tx)
		pending = append(pending, digest)
		expected[digest] = tx.ExpectedEffectsDigest
	}
	if len(toExecute) == 0 {
		return nil
	}

	err = e.engine.Enqueue(toExecute)
	if err != nil {
		return fmt.Errorf("could not enqueue transactions: %w", err)
	}

	// Await durable effects. The local timeout only paces progress logging;
	// execution is given as long as it needs.
	for {
		waitCtx, cancel := context.WithTimeout(ctx, e.conf.LocalExecutionTimeout)
		produced, err := e.engine.NotifyReadEffects(waitCtx, pending)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				e.log.Warn().
					Uint64("sequence", uint64(checkpoint.SequenceNumber)).
					Int("transactions", len(pending)).
					Dur("waited", e.conf.LocalExecutionTimeout).
					Msg("still waiting for transaction effects")
				continue
			}
			return fmt.Errorf("could not read transaction effects: %w", err)
		}
		if len(produced) != len(pending) {
			return fmt.Errorf("effects count mismatch: %d transactions, %d effects", len(pending), len(produced))
		}
		for i, digest := range pending {
			if produced[i] != expected[digest] {
				panic(fmt.Sprintf("fork detected: transaction %s produced effects %x, agreed effects %x",
					digest, produced[i], expected[digest]))
			}
			err = e.transactions.MarkExecuted(digest, produced[i])
			if err != nil {
				return fmt.Errorf("could not mark %s executed: %w", digest, err)
			}
		}
		return nil
	}
}
