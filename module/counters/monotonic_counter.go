package counters

import "sync/atomic"

// StrictMonotonicCounter is a helper struct which implements a strict
// monotonic counter. It is implemented using atomic operations and doesn't
// allow to set a value which is lower or equal to the already stored one.
type StrictMonotonicCounter struct {
	atomicCounter uint64
}

// NewMonotonicCounter creates a new counter with the initial value.
func NewMonotonicCounter(initialValue uint64) StrictMonotonicCounter {
	return StrictMonotonicCounter{
		atomicCounter: initialValue,
	}
}

// Set updates the value of the counter if it is strictly larger than the
// already stored one. Returns true if the update was applied.
func (c *StrictMonotonicCounter) Set(processing uint64) bool {
	for {
		processed := c.Value()
		if processing <= processed {
			return false
		}
		if atomic.CompareAndSwapUint64(&c.atomicCounter, processed, processing) {
			return true
		}
	}
}

// Value returns the value of the counter.
func (c *StrictMonotonicCounter) Value() uint64 {
	return atomic.LoadUint64(&c.atomicCounter)
}

// Increment atomically increments the counter and returns the new value.
func (c *StrictMonotonicCounter) Increment() uint64 {
	for {
		current := c.Value()
		if atomic.CompareAndSwapUint64(&c.atomicCounter, current, current+1) {
			return current + 1
		}
	}
}
