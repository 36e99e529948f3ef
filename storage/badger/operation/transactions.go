package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/orbitbft/orbit-go/model/orbit"
)

func InsertTransaction(tx_ *orbit.ExecutableTransaction) func(*badger.Txn) error {
	return insert(makePrefix(codeTransaction, tx_.Digest), tx_)
}

func RetrieveTransaction(digest orbit.TransactionDigest, tx_ *orbit.ExecutableTransaction) func(*badger.Txn) error {
	return retrieve(makePrefix(codeTransaction, digest), tx_)
}

func InsertTransactionEffects(digest orbit.TransactionDigest, effects *orbit.TransactionEffects) func(*badger.Txn) error {
	return insert(makePrefix(codeTransactionEffects, digest), effects)
}

func RetrieveTransactionEffects(digest orbit.TransactionDigest, effects *orbit.TransactionEffects) func(*badger.Txn) error {
	return retrieve(makePrefix(codeTransactionEffects, digest), effects)
}

func UpsertExecutedEffectsDigest(digest orbit.TransactionDigest, effects orbit.EffectsDigest) func(*badger.Txn) error {
	return upsert(makePrefix(codeExecutedEffects, digest), effects)
}

func RetrieveExecutedEffectsDigest(digest orbit.TransactionDigest, effects *orbit.EffectsDigest) func(*badger.Txn) error {
	return retrieve(makePrefix(codeExecutedEffects, digest), effects)
}
