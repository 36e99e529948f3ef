package irrecoverable

import (
	"context"
	"fmt"
	"runtime"
)

// Signaler sends irrecoverable errors out to a supervising routine. It may
// only be used once; the first thrown error terminates the calling goroutine.
type Signaler struct {
	errors chan<- error
}

// NewSignaler returns a Signaler together with the channel the supervisor
// reads the error from.
func NewSignaler() (*Signaler, <-chan error) {
	errors := make(chan error, 1)
	return &Signaler{errors: errors}, errors
}

// Throw is a narrow drop-in replacement for panic or log.Fatal anywhere
// a routine is connected to the error channel. It never returns.
func (s *Signaler) Throw(err error) {
	s.errors <- err
	runtime.Goexit()
}

// SignalerContext is a constrained drop-in replacement for context.Context
// that additionally carries a Signaler for irrecoverable errors.
type SignalerContext interface {
	context.Context
	Throw(err error) // delegates to the signaler
	sealed()         // private, to constrain construction to WithSignaler
}

type signalerCtx struct {
	context.Context
	*Signaler
}

func (signalerCtx) sealed() {}

// WithSignaler derives a SignalerContext from the given context, returning it
// along with the channel irrecoverable errors are delivered on.
func WithSignaler(parent context.Context) (SignalerContext, <-chan error) {
	sig, errChan := NewSignaler()
	return &signalerCtx{parent, sig}, errChan
}

// Throw throws an irrecoverable error if ctx is a SignalerContext, and panics
// otherwise: a routine encountering an irrecoverable error without a
// supervisor wired in must not continue.
func Throw(ctx context.Context, err error) {
	signalerAbleContext, ok := ctx.(SignalerContext)
	if ok {
		signalerAbleContext.Throw(err)
	}
	panic(fmt.Sprintf("irrecoverable error signaler not found for context, please implement! Unhandled irrecoverable error: %v", err))
}

// exception wraps an unexpected error so that it no longer matches any
// sentinel via errors.Is: callers treating the original sentinel as benign
// must not mistake an exception for it.
type exception struct {
	err error
}

func (e exception) Error() string {
	return "exception! " + e.err.Error()
}

// NewExceptionf wraps the formatted error as an irrecoverable exception,
// stripping its type information.
func NewExceptionf(msg string, args ...interface{}) error {
	return exception{err: fmt.Errorf(msg, args...)}
}
