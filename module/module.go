package module

import (
	"errors"

	"github.com/orbitbft/orbit-go/module/irrecoverable"
)

// ErrMultipleStartup is thrown (via panic) when a component is started more
// than once.
var ErrMultipleStartup = errors.New("component may only be started once")

// Startable provides a mechanism to start a component, using a
// SignalerContext so the component can escalate irrecoverable errors.
type Startable interface {
	// Start starts the component. Any irrecoverable errors encountered while
	// the component is running should be thrown with the given context.
	Start(irrecoverable.SignalerContext)
}

// ReadyDoneAware provides easy interface to wait for component startup and
// shutdown.
type ReadyDoneAware interface {
	// Ready returns a channel that is closed when startup has completed.
	Ready() <-chan struct{}

	// Done returns a channel that is closed when shutdown has completed.
	Done() <-chan struct{}
}
