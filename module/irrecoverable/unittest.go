package irrecoverable

import (
	"context"
	"testing"
)

// MockSignalerContext is a SignalerContext for testing which fails the test
// on any thrown error.
type MockSignalerContext struct {
	context.Context
	t *testing.T
}

var _ SignalerContext = &MockSignalerContext{}

func (m MockSignalerContext) sealed() {}

// Throw fails the test immediately: in unit tests no irrecoverable error is
// expected.
func (m MockSignalerContext) Throw(err error) {
	m.t.Fatalf("mock signaler context received error: %v", err)
}

func NewMockSignalerContext(t *testing.T, ctx context.Context) *MockSignalerContext {
	return &MockSignalerContext{
		Context: ctx,
		t:       t,
	}
}
