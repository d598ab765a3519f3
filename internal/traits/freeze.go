package traits

import (
	"context"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
)

// FreezeImpl returns the symbolic decomposition of op for args.
type FreezeImpl func(ctx context.Context, op circuit.Operation, args ...any) (circuit.Operation, error)

var freezeFacade = dispatch.NewFacade[FreezeImpl]("freeze",
	[]dispatch.TagKey{
		dispatch.ClassKey("operation_type"),
		dispatch.InstanceKey("operation"),
	},
	dispatch.WithMiddleware(dispatch.DefaultMiddleware()...),
)

func FreezeFacade() *dispatch.Facade[FreezeImpl] { return freezeFacade }

// RegisterFreeze registers impl for op, which is nil, a class or an instance.
func RegisterFreeze(op any, impl FreezeImpl) {
	oc, oi := dispatch.Resolve(op)
	freezeFacade.Registry().Register(impl, oc, oi)
}

// MatchFreeze returns the freeze implementations for op, least specific first.
func MatchFreeze(op any) []FreezeImpl {
	oc, oi := dispatch.Resolve(op)
	return freezeFacade.Registry().Match(oc, oi)
}

// Freeze decomposes op. Without args, placeholders come from the operation signature.
func Freeze(ctx context.Context, op circuit.Operation, args ...any) (circuit.Operation, error) {
	oc, oi := dispatch.Resolve(op)
	q := dispatch.Query{
		Operation: op,
		Args:      len(args),
		Tags:      []any{oc, oi},
	}
	res, err := freezeFacade.Dispatch(ctx, q, func(ctx context.Context, impl FreezeImpl) (any, error) {
		return impl(ctx, op, args...)
	})
	if err != nil {
		return nil, err
	}
	return res.(circuit.Operation), nil
}
