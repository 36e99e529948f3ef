package module

import (
	"context"

	"github.com/orbitbft/orbit-go/model/orbit"
)

// TransactionVerifier performs semantic validation of transaction payloads.
// The payload format is opaque to the consensus core; failures surface as
// InvalidTransactionError at the block verifier boundary.
type TransactionVerifier interface {
	// VerifyBatch validates a batch of transaction payloads. It returns a
	// (possibly aggregated) error if any payload is semantically invalid.
	VerifyBatch(batch [][]byte) error
}

// EffectsResolver supplies the network-agreed effects of a committed
// transaction: the gas accounting and shared-object versions every honest
// node must replay identically. How agreement is reached (certification,
// state sync) is outside the consensus core.
type EffectsResolver interface {
	// ResolveEffects returns the agreed effects of the transaction.
	ResolveEffects(tx *orbit.ExecutableTransaction) (*orbit.TransactionEffects, error)
}

// ExecutionEngine is the call contract of the transaction execution layer.
// The checkpoint executor only enqueues work and awaits durable effects; the
// engine owns scheduling, dependency resolution and persistence of effects.
type ExecutionEngine interface {
	// Enqueue submits transactions for execution. Transactions whose
	// dependencies are not yet available are held by the engine until they
	// become executable. Enqueue is idempotent for already-executed
	// transactions.
	Enqueue(transactions []*orbit.ExecutableTransaction) error

	// NotifyReadEffects blocks until every listed transaction has produced
	// durable effects, returning their digests in the same order. It returns
	// early with the context error on cancellation or deadline.
	NotifyReadEffects(ctx context.Context, digests []orbit.TransactionDigest) ([]orbit.EffectsDigest, error)

	// AcquireSharedLocksFromEffects assigns the shared-object versions
	// recorded in the previously agreed effects to the transaction, so that
	// replay deterministically observes the same inputs. Locks are scoped to
	// the transaction and released once its effects are durable.
	AcquireSharedLocksFromEffects(tx *orbit.ExecutableTransaction, effects *orbit.TransactionEffects) error
}
