// Package events provides in-process event distribution primitives.
package events

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/orbitbft/orbit-go/model/orbit"
)

// CheckpointBroadcast is a lossy broadcast of newly synced checkpoints. Each
// subscriber gets a bounded buffer; a subscriber that falls behind has
// notifications dropped and its lagged flag raised instead of blocking the
// publisher. Correctness never depends on delivery: consumers fall back to
// the persisted highest-synced watermark after a lag.
type CheckpointBroadcast struct {
	mu       sync.Mutex
	subs     map[*CheckpointSubscription]struct{}
	capacity int
	closed   bool
}

// NewCheckpointBroadcast creates a broadcast whose subscriptions buffer up to
// capacity undelivered checkpoints.
func NewCheckpointBroadcast(capacity int) *CheckpointBroadcast {
	return &CheckpointBroadcast{
		subs:     make(map[*CheckpointSubscription]struct{}),
		capacity: capacity,
	}
}

// Subscribe registers a new subscriber. Subscriptions opened after a publish
// do not see earlier checkpoints.
func (b *CheckpointBroadcast) Subscribe() *CheckpointSubscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &CheckpointSubscription{
		ch:        make(chan *orbit.Checkpoint, b.capacity),
		lagged:    atomic.NewBool(false),
		broadcast: b,
	}
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers the checkpoint to all subscribers without blocking. A
// subscriber with a full buffer is marked lagged and the notification is
// dropped for it.
func (b *CheckpointBroadcast) Publish(checkpoint *orbit.Checkpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		select {
		case sub.ch <- checkpoint:
		default:
			sub.lagged.Store(true)
		}
	}
}

// Close terminates the broadcast; all subscription channels are closed.
// Consumers treat the closed channel as clean shutdown.
func (b *CheckpointBroadcast) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}

func (b *CheckpointBroadcast) unsubscribe(sub *CheckpointSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// CheckpointSubscription is one subscriber's view of the broadcast.
type CheckpointSubscription struct {
	ch        chan *orbit.Checkpoint
	lagged    *atomic.Bool
	broadcast *CheckpointBroadcast
}

// Channel returns the channel checkpoints are delivered on. The channel is
// closed when the broadcast shuts down or the subscription is cancelled.
func (s *CheckpointSubscription) Channel() <-chan *orbit.Checkpoint {
	return s.ch
}

// TakeLagged reports whether notifications were dropped since the last call,
// clearing the flag. After a lag the consumer must re-read the authoritative
// persisted watermark rather than trust its cached view.
func (s *CheckpointSubscription) TakeLagged() bool {
	return s.lagged.Swap(false)
}

// Unsubscribe cancels the subscription and closes its channel.
func (s *CheckpointSubscription) Unsubscribe() {
	s.broadcast.unsubscribe(s)
}
