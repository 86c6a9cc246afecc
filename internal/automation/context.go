package automation

import (
	"context"
	"time"
)

// valueOnlyContext keeps the parent's values but drops its deadline and
// cancellation signal.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that inherits values from ctx but is not canceled
// when ctx is. Scripts run detached: once admitted, a caller cannot preempt them.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
