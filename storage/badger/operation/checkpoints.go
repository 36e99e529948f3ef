package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/orbitbft/orbit-go/model/orbit"
)

func InsertCheckpoint(checkpoint *orbit.Checkpoint) func(*badger.Txn) error {
	return insert(makePrefix(codeCheckpoint, checkpoint.SequenceNumber), checkpoint)
}

func RetrieveCheckpoint(seq orbit.CheckpointSequenceNumber, checkpoint *orbit.Checkpoint) func(*badger.Txn) error {
	return retrieve(makePrefix(codeCheckpoint, seq), checkpoint)
}

func InsertCheckpointContents(digest orbit.BlockDigest, contents *orbit.CheckpointContents) func(*badger.Txn) error {
	return insert(makePrefix(codeCheckpointContents, digest), contents)
}

func RetrieveCheckpointContents(digest orbit.BlockDigest, contents *orbit.CheckpointContents) func(*badger.Txn) error {
	return retrieve(makePrefix(codeCheckpointContents, digest), contents)
}

func UpsertHighestSyncedCheckpoint(seq orbit.CheckpointSequenceNumber) func(*badger.Txn) error {
	return upsert(makePrefix(codeHighestSynced), seq)
}

func RetrieveHighestSyncedCheckpoint(seq *orbit.CheckpointSequenceNumber) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHighestSynced), seq)
}

func UpsertHighestExecutedCheckpoint(seq orbit.CheckpointSequenceNumber) func(*badger.Txn) error {
	return upsert(makePrefix(codeHighestExecuted), seq)
}

func RetrieveHighestExecutedCheckpoint(seq *orbit.CheckpointSequenceNumber) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHighestExecuted), seq)
}
