// Package checkpointing turns the commit rule's ordered output into the
// checkpoint sequence the executor consumes: one checkpoint per committed
// sub-DAG, with a content digest over the member transactions, rolled-up gas
// accounting, and the end-of-epoch descriptor on the epoch's final
// checkpoint.
package checkpointing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/orbitbft/orbit-go/model/orbit"
	"github.com/orbitbft/orbit-go/module"
	"github.com/orbitbft/orbit-go/module/component"
	"github.com/orbitbft/orbit-go/module/counters"
	"github.com/orbitbft/orbit-go/module/events"
	"github.com/orbitbft/orbit-go/module/irrecoverable"
	"github.com/orbitbft/orbit-go/module/metrics"
	"github.com/orbitbft/orbit-go/storage"
)

// DefaultConsumer is the consumer name under which the builder persists its
// processed commit sequence.
const DefaultConsumer = "checkpoint_builder"

// Builder consumes committed sub-DAGs and produces the gapless checkpoint
// sequence. Commit sequence numbers are 1-based while checkpoints are
// 0-based, so checkpoint N is built from commit N+1. The builder persists
// each checkpoint with its contents, advances the highest-synced watermark,
// and publishes on the sync broadcast the executor subscribes to.
type Builder struct {
	component.Component

	log          zerolog.Logger
	committee    *orbit.Committee
	commits      <-chan *orbit.CommittedSubDag
	checkpoints  storage.Checkpoints
	transactions storage.Transactions
	resolver     module.EffectsResolver
	broadcast    *events.CheckpointBroadcast
	metrics      *metrics.ExecutorCollector

	// processedCommit survives restarts so a replayed commit is detected and
	// skipped rather than rebuilt into a duplicate checkpoint.
	processedCommit *counters.PersistentStrictMonotonicCounter

	lastTimestampMs uint64
}

func NewBuilder(
	log zerolog.Logger,
	committee *orbit.Committee,
	commits <-chan *orbit.CommittedSubDag,
	checkpoints storage.Checkpoints,
	transactions storage.Transactions,
	resolver module.EffectsResolver,
	broadcast *events.CheckpointBroadcast,
	collector *metrics.ExecutorCollector,
	progress storage.ConsumerProgress,
) (*Builder, error) {
	processedCommit, err := counters.NewPersistentStrictMonotonicCounter(progress, 0)
	if err != nil {
		return nil, fmt.Errorf("could not initialize processed commit counter: %w", err)
	}

	b := &Builder{
		log:             log.With().Str("component", "checkpoint_builder").Logger(),
		committee:       committee,
		commits:         commits,
		checkpoints:     checkpoints,
		transactions:    transactions,
		resolver:        resolver,
		broadcast:       broadcast,
		metrics:         collector,
		processedCommit: processedCommit,
	}

	// Timestamps continue from the last built checkpoint.
	highest, err := checkpoints.HighestSynced()
	if err == nil {
		checkpoint, err := checkpoints.BySequenceNumber(highest)
		if err != nil {
			return nil, fmt.Errorf("could not load highest synced checkpoint %d: %w", highest, err)
		}
		b.lastTimestampMs = checkpoint.TimestampMs
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("could not read highest synced checkpoint: %w", err)
	}

	b.Component = component.NewComponentManagerBuilder().
		AddWorker(b.buildLoop).
		Build()
	return b, nil
}

func (b *Builder) buildLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	defer b.broadcast.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case commit, ok := <-b.commits:
			if !ok {
				return
			}
			if uint64(commit.SequenceNumber) <= b.processedCommit.Value() {
				b.log.Debug().
					Uint64("sequence", uint64(commit.SequenceNumber)).
					Msg("commit already built into a checkpoint, skipping")
				continue
			}
			checkpoint, err := b.buildCheckpoint(commit)
			if err != nil {
				ctx.Throw(fmt.Errorf("could not build checkpoint from commit %d: %w", commit.SequenceNumber, err))
				return
			}
			err = b.processedCommit.Set(uint64(commit.SequenceNumber))
			if err != nil {
				ctx.Throw(fmt.Errorf("could not advance processed commit counter: %w", err))
				return
			}
			b.broadcast.Publish(checkpoint)
			if checkpoint.IsLastCheckpointOfEpoch() {
				b.log.Info().
					Uint64("sequence", uint64(checkpoint.SequenceNumber)).
					Msg("built final checkpoint of the epoch")
			}
		}
	}
}

// buildCheckpoint persists the commit's transactions with their agreed
// effects, then the checkpoint and its contents, and advances the
// highest-synced watermark.
func (b *Builder) buildCheckpoint(commit *orbit.CommittedSubDag) (*orbit.Checkpoint, error) {
	seq := orbit.CheckpointSequenceNumber(commit.SequenceNumber - 1)

	var digests []orbit.TransactionDigest
	var gas orbit.GasCostSummary
	seen := make(map[orbit.TransactionDigest]struct{})
	maxBlockTimestamp := uint64(0)
	for _, block := range commit.Blocks {
		if ts := block.TimestampMs(); ts > maxBlockTimestamp {
			maxBlockTimestamp = ts
		}
		for _, payload := range block.Block.Transactions {
			digest := payload.Digest()
			if _, ok := seen[digest]; ok {
				continue
			}
			seen[digest] = struct{}{}
			digests = append(digests, digest)

			tx := &orbit.ExecutableTransaction{
				Digest:  digest,
				Payload: payload,
			}
			effects, err := b.resolver.ResolveEffects(tx)
			if err != nil {
				return nil, fmt.Errorf("could not resolve effects of %s: %w", digest, err)
			}
			tx.ExpectedEffectsDigest = effects.Digest()
			tx.SharedInputs = sharedInputs(effects)
			err = b.transactions.Insert(tx, effects)
			if err != nil {
				return nil, fmt.Errorf("could not persist transaction %s: %w", digest, err)
			}
			gas.Add(effects.GasUsed)
		}
	}

	timestamp := commit.TimestampMs
	if maxBlockTimestamp > timestamp {
		timestamp = maxBlockTimestamp
	}
	if b.lastTimestampMs > timestamp {
		timestamp = b.lastTimestampMs
	}

	contents := &orbit.CheckpointContents{TransactionDigests: digests}
	checkpoint := &orbit.Checkpoint{
		Epoch:          b.committee.Epoch(),
		SequenceNumber: seq,
		ContentDigest:  contents.Digest(),
		TimestampMs:    timestamp,
		GasSummary:     gas,
		EndOfEpoch:     commit.EpochTransition(),
	}

	err := b.checkpoints.Insert(checkpoint, contents)
	if err != nil {
		return nil, fmt.Errorf("could not persist checkpoint %d: %w", seq, err)
	}
	err = b.checkpoints.UpdateHighestSynced(seq)
	if err != nil {
		return nil, fmt.Errorf("could not advance highest synced watermark to %d: %w", seq, err)
	}

	b.lastTimestampMs = timestamp
	b.metrics.CheckpointSynced(uint64(seq))
	b.log.Info().
		Uint64("sequence", uint64(seq)).
		Int("transactions", len(digests)).
		Msg("checkpoint built")
	return checkpoint, nil
}

// sharedInputs lists the shared objects named by the agreed effects, in a
// deterministic order.
func sharedInputs(effects *orbit.TransactionEffects) []orbit.ObjectID {
	if len(effects.SharedVersions) == 0 {
		return nil
	}
	inputs := make([]orbit.ObjectID, 0, len(effects.SharedVersions))
	for id := range effects.SharedVersions {
		inputs = append(inputs, id)
	}
	sort.Slice(inputs, func(i, j int) bool {
		return string(inputs[i][:]) < string(inputs[j][:])
	})
	return inputs
}
