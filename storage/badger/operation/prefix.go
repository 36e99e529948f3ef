package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/orbitbft/orbit-go/model/orbit"
)

// Key prefixes. Each storage domain owns one code; keys are the code byte
// followed by the big-endian encodings of the remaining segments, so that
// iteration order matches numeric order.
const (
	codeBlock = 1 // (round, author, digest) -> signed block

	codeCommitRecord = 10 // sequence -> commit record
	codeCommitState  = 11 // -> latest commit state

	codeCheckpoint         = 20 // sequence -> checkpoint
	codeCheckpointContents = 21 // content digest -> contents
	codeHighestSynced      = 22 // -> sequence
	codeHighestExecuted    = 23 // -> sequence

	codeTransaction        = 30 // digest -> executable transaction
	codeTransactionEffects = 31 // digest -> expected effects
	codeExecutedEffects    = 32 // digest -> executed effects digest

	codeConsumerProgress = 40 // consumer name -> processed index
)

// makePrefix builds a key from a code byte and a sequence of fixed-width
// segments. Only types used as key segments are supported; anything else is
// a programming error and panics.
func makePrefix(code byte, segments ...interface{}) []byte {
	key := []byte{code}
	for _, segment := range segments {
		key = append(key, keySegment(segment)...)
	}
	return key
}

func keySegment(v interface{}) []byte {
	switch s := v.(type) {
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, s)
		return b
	case uint32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, s)
		return b
	case orbit.Round:
		return keySegment(uint32(s))
	case orbit.AuthorityIndex:
		return keySegment(uint32(s))
	case orbit.CommitSequenceNumber:
		return keySegment(uint64(s))
	case orbit.CheckpointSequenceNumber:
		return keySegment(uint64(s))
	case orbit.BlockDigest:
		return s[:]
	case orbit.TransactionDigest:
		return s[:]
	case string:
		return []byte(s)
	default:
		panic(fmt.Sprintf("unsupported key segment type %T", v))
	}
}
