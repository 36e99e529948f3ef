package operation

import (
	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/orbitbft/orbit-go/module/irrecoverable"
)

// encodeEntity encodes the given entity using msgpack and compresses the
// value with Snappy. Encoding failures indicate a programming error, so they
// surface as irrecoverable exceptions.
func encodeEntity(entity interface{}) ([]byte, error) {
	val, err := msgpack.Marshal(entity)
	if err != nil {
		return nil, irrecoverable.NewExceptionf("could not encode entity: %w", err)
	}
	return snappy.Encode(nil, val), nil
}

// decodeValue decompresses and decodes the given value into the given entity
// using msgpack.
func decodeValue(val []byte, entity interface{}) error {
	uncompressed, err := snappy.Decode(nil, val)
	if err != nil {
		return irrecoverable.NewExceptionf("could not uncompress value: %w", err)
	}
	err = msgpack.Unmarshal(uncompressed, entity)
	if err != nil {
		return irrecoverable.NewExceptionf("could not decode entity: %w", err)
	}
	return nil
}
