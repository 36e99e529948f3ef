package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/orbitbft/orbit-go/model/orbit"
)

func InsertCommitRecord(record *orbit.CommitRecord) func(*badger.Txn) error {
	return insert(makePrefix(codeCommitRecord, record.SequenceNumber), record)
}

func RetrieveCommitRecord(seq orbit.CommitSequenceNumber, record *orbit.CommitRecord) func(*badger.Txn) error {
	return retrieve(makePrefix(codeCommitRecord, seq), record)
}

func UpsertCommitState(state *orbit.CommitState) func(*badger.Txn) error {
	return upsert(makePrefix(codeCommitState), state)
}

func RetrieveCommitState(state *orbit.CommitState) func(*badger.Txn) error {
	return retrieve(makePrefix(codeCommitState), state)
}
