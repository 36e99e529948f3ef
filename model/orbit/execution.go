package orbit

// ObjectID identifies an object a transaction reads or writes. Only shared
// objects matter to this core: they require lock acquisition before replay.
type ObjectID [DigestLength]byte

// EffectsDigest is the content hash of a transaction's execution effects.
type EffectsDigest [DigestLength]byte

// ExecutableTransaction is a transaction resolved from a checkpoint's
// contents, ready to be handed to the execution engine.
type ExecutableTransaction struct {
	Digest  TransactionDigest
	Payload Transaction
	// SharedInputs lists the shared objects the transaction touches. Empty
	// for owned-object transactions.
	SharedInputs []ObjectID
	// ExpectedEffectsDigest pins the effects this transaction must produce,
	// as agreed by consensus. Execution producing different effects means the
	// local node has forked.
	ExpectedEffectsDigest EffectsDigest
}

// ContainsSharedObjects returns whether the transaction touches any shared
// object and therefore needs version assignments before execution.
func (t *ExecutableTransaction) ContainsSharedObjects() bool {
	return len(t.SharedInputs) > 0
}

// TransactionEffects is the durable outcome of executing one transaction.
type TransactionEffects struct {
	TransactionDigest TransactionDigest
	GasUsed           GasCostSummary
	// SharedVersions records the versions assigned to the shared inputs,
	// used to re-acquire locks deterministically during checkpoint replay.
	SharedVersions map[ObjectID]uint64
}

// Digest returns the content hash of the effects.
func (e *TransactionEffects) Digest() EffectsDigest {
	enc, err := cborEncMode.Marshal(e)
	if err != nil {
		// Effects contain only fixed-size scalar fields and maps of them;
		// encoding cannot fail on well-formed values.
		panic(err)
	}
	var digest EffectsDigest
	copy(digest[:], computeHash(enc))
	return digest
}
