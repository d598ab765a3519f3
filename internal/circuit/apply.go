package circuit

import (
	"context"

	"github.com/pkg/errors"

	"github.com/zjrosen/qcircuit/internal/dispatch"
)

// ApplyImpl executes op on rt with args.
type ApplyImpl func(ctx context.Context, rt Runtime, op Operation, args ...any) (any, error)

var applyFacade = dispatch.NewFacade[ApplyImpl]("apply",
	[]dispatch.TagKey{
		dispatch.ClassKey("runtime_type"),
		dispatch.InstanceKey("runtime"),
		dispatch.ClassKey("operation_type"),
		dispatch.InstanceKey("operation"),
	},
	dispatch.WithMiddleware(dispatch.DefaultMiddleware()...),
)

// ApplyFacade exposes the apply façade, mainly to add middleware.
func ApplyFacade() *dispatch.Facade[ApplyImpl] {
	return applyFacade
}

// RegisterApply registers impl for a runtime and an operation. Each of rt and op may be
// nil (any), a class, or an instance.
func RegisterApply(rt, op any, impl ApplyImpl) {
	rc, ri := dispatch.Resolve(rt)
	oc, oi := dispatch.Resolve(op)
	applyFacade.Registry().Register(impl, rc, ri, oc, oi)
}

// MatchApply returns the apply implementations for rt and op, least specific first.
func MatchApply(rt, op any) []ApplyImpl {
	rc, ri := dispatch.Resolve(rt)
	oc, oi := dispatch.Resolve(op)
	return applyFacade.Registry().Match(rc, ri, oc, oi)
}

// Apply runs op on rt. rt is also made current in the context handed to the
// implementation, so nested invocations run on the same runtime.
func Apply(ctx context.Context, rt Runtime, op Operation, args ...any) (any, error) {
	if rt == nil {
		return nil, errors.Wrapf(ErrNoRuntime, "apply %s", Describe(op))
	}
	if cur, ok := RuntimeFrom(ctx); !ok || cur != rt {
		ctx = WithRuntime(ctx, rt)
	}

	rc, ri := dispatch.Resolve(rt)
	oc, oi := dispatch.Resolve(op)
	q := dispatch.Query{
		Context:   rt,
		Operation: op,
		Args:      len(args),
		Tags:      []any{rc, ri, oc, oi},
	}
	return applyFacade.Dispatch(ctx, q, func(ctx context.Context, impl ApplyImpl) (any, error) {
		return impl(ctx, rt, op, args...)
	})
}

// Invoke runs op on the current runtime of ctx.
func Invoke(ctx context.Context, op Operation, args ...any) (any, error) {
	rt, ok := RuntimeFrom(ctx)
	if !ok {
		return nil, errors.Wrapf(ErrNoRuntime, "invoke %s", Describe(op))
	}
	return Apply(ctx, rt, op, args...)
}

func init() {
	// Any runtime, any operation: run a Callable's own body, decline everything else.
	RegisterApply(nil, nil, func(ctx context.Context, rt Runtime, op Operation, args ...any) (any, error) {
		c, ok := op.(Callable)
		if !ok {
			return nil, dispatch.Decline("%s has no body of its own", Describe(op))
		}
		return c.Call(ctx, args...)
	})
}
