package module

// Notifier is a concurrency primitive for informing worker routines about the
// arrival of new work unit(s). Notifiers behave like channels in that they
// can be passed by value and still allow concurrent updates of the same
// internal state.
type Notifier struct {
	// Buffered channel with capacity 1. Sending a notification while one is
	// already pending is a no-op, so producers never block.
	notifier chan struct{}
}

// NewNotifier instantiates a Notifier.
func NewNotifier() Notifier {
	return Notifier{make(chan struct{}, 1)}
}

// Notify sends a notification, dropping it if one is already pending.
func (n Notifier) Notify() {
	select {
	case n.notifier <- struct{}{}:
	default:
	}
}

// Channel returns a channel for receiving notifications.
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}
