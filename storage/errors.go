package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	// Note: badger.ErrKeyNotFound never escapes the storage/badger package;
	// callers only ever see ErrNotFound.
	ErrNotFound = errors.New("key not found")

	// ErrAlreadyExists is returned when inserting under an existing key.
	ErrAlreadyExists = errors.New("key already exists")

	// ErrDataMismatch is returned when stored data differs from the data
	// being written under the same key.
	ErrDataMismatch = errors.New("data for key is different")

	// ErrLowerIndex is returned when setting a progress index that is not
	// strictly larger than the stored one.
	ErrLowerIndex = errors.New("index value is lower than stored value")
)
