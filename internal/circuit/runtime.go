package circuit

import (
	"context"

	"github.com/zjrosen/qcircuit/internal/dispatch"
)

// RuntimeClass is the root of every runtime class.
var RuntimeClass = dispatch.NewClass("Runtime", nil)

// Runtime decides how operations take effect. It is the first apply key.
type Runtime interface {
	dispatch.Classed
	AllocateParticle(ctx context.Context, dim int, name string) (Particle, error)
}

// Enterer is implemented by runtimes that bind extra state, such as a numeric backend,
// when they become current.
type Enterer interface {
	Enter(ctx context.Context) context.Context
}

type runtimeKey struct{}

// WithRuntime returns a child of ctx in which rt is the current runtime. The parent
// keeps its own runtime, so leaving the scope is dropping the child context.
func WithRuntime(ctx context.Context, rt Runtime) context.Context {
	if e, ok := rt.(Enterer); ok {
		ctx = e.Enter(ctx)
	}
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// RuntimeFrom returns the current runtime of ctx.
func RuntimeFrom(ctx context.Context) (Runtime, bool) {
	if ctx == nil {
		return nil, false
	}
	rt, ok := ctx.Value(runtimeKey{}).(Runtime)
	return rt, ok && rt != nil
}
