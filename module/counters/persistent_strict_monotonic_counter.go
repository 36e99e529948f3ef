package counters

import (
	"errors"
	"fmt"

	"github.com/orbitbft/orbit-go/storage"
)

// PersistentStrictMonotonicCounter tracks consumer progress with a strict
// monotonic counter backed by persistent storage.
type PersistentStrictMonotonicCounter struct {
	consumerProgress storage.ConsumerProgress

	// used to reject values that are lower than the current value
	counter StrictMonotonicCounter
}

// NewPersistentStrictMonotonicCounter creates a new counter, initializing the
// storage entry with defaultIndex if none exists yet. The consumer progress
// and associated db entry must not be accessed outside of calls to the
// returned object, otherwise the state may become inconsistent.
//
// No errors are expected during normal operation.
func NewPersistentStrictMonotonicCounter(consumerProgress storage.ConsumerProgress, defaultIndex uint64) (*PersistentStrictMonotonicCounter, error) {
	m := &PersistentStrictMonotonicCounter{
		consumerProgress: consumerProgress,
	}

	// sync with storage for the processed index to ensure consistency
	value, err := m.consumerProgress.ProcessedIndex()
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("could not read consumer progress: %w", err)
		}
		err = m.consumerProgress.InitProcessedIndex(defaultIndex)
		if err != nil {
			return nil, fmt.Errorf("could not init consumer progress: %w", err)
		}
		value = defaultIndex
	}
	m.counter = NewMonotonicCounter(value)

	return m, nil
}

// Set sets the processed index, ensuring it is strictly monotonically
// increasing. Returns storage.ErrLowerIndex if the value is not larger than
// the stored one.
func (m *PersistentStrictMonotonicCounter) Set(processed uint64) error {
	if !m.counter.Set(processed) {
		return storage.ErrLowerIndex
	}
	return m.consumerProgress.SetProcessedIndex(processed)
}

// Value loads the current stored index.
func (m *PersistentStrictMonotonicCounter) Value() uint64 {
	return m.counter.Value()
}
