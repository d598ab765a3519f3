package passes

import (
	"context"
	"reflect"

	"github.com/pkg/errors"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
	"github.com/zjrosen/qcircuit/internal/log"
	"github.com/zjrosen/qcircuit/internal/operations"
	"github.com/zjrosen/qcircuit/internal/runtime/symbolic"
	"github.com/zjrosen/qcircuit/internal/structure"
	"github.com/zjrosen/qcircuit/internal/traits"
)

func init() {
	traits.RegisterCompile(FreezePassClass, nil, compileFreeze)
	traits.RegisterCompile(FreezePassClass, operations.SequentialClass, keep)
	traits.RegisterCompile(FreezePassClass, operations.RemappedClass, keep)

	traits.RegisterFreeze(nil, func(ctx context.Context, op circuit.Operation, args ...any) (circuit.Operation, error) {
		if len(args) == 0 {
			args = nil
		}
		return freeze(ctx, op, args, func(ctx context.Context, op circuit.Operation, args []any) (circuit.Operation, error) {
			return traits.Freeze(ctx, op, args...)
		})
	})
	traits.RegisterFreeze(operations.SequentialClass, func(_ context.Context, op circuit.Operation, _ ...any) (circuit.Operation, error) {
		return op, nil
	})
	traits.RegisterFreeze(operations.RemappedClass, func(_ context.Context, op circuit.Operation, _ ...any) (circuit.Operation, error) {
		return op, nil
	})
}

func keep(_ context.Context, _ traits.CompilePass, op circuit.Operation) (circuit.Operation, error) {
	return op, nil
}

func compileFreeze(ctx context.Context, pass traits.CompilePass, op circuit.Operation) (circuit.Operation, error) {
	p := pass.(*FreezePass)
	return freeze(ctx, op, p.Args, func(ctx context.Context, op circuit.Operation, args []any) (circuit.Operation, error) {
		return traits.Compile(ctx, &FreezePass{Args: args}, op)
	})
}

// Placeholders returns one symbolic qubit per parameter of op's signature. Operations
// without a signature get none.
func Placeholders(op circuit.Operation) ([]any, error) {
	s, ok := op.(circuit.Signer)
	if !ok {
		return []any{}, nil
	}
	sig := s.Signature()
	if err := sig.Traceable(); err != nil {
		return nil, errors.WithMessagef(err, "freeze %s", circuit.Describe(op))
	}
	out := make([]any, len(sig.Params))
	for i, name := range sig.Params {
		out[i] = symbolic.NewQubit(name)
	}
	return out, nil
}

type subFreeze func(ctx context.Context, op circuit.Operation, args []any) (circuit.Operation, error)

// freeze traces op on a symbolic runtime with args and turns the recorded calls into
// a Sequential. sub freezes each recorded call in turn.
func freeze(ctx context.Context, op circuit.Operation, args []any, sub subFreeze) (circuit.Operation, error) {
	if args == nil {
		var err error
		if args, err = Placeholders(op); err != nil {
			return nil, err
		}
	}

	impls := circuit.MatchApply(nil, op)
	if len(impls) == 0 {
		return op, nil
	}

	var calls []*symbolic.Call
	traced := false
	for i := len(impls) - 1; i >= 0; i-- {
		rt := symbolic.New()
		_, err := impls[i](circuit.WithRuntime(ctx, rt), rt, op, args...)
		if dispatch.IsDecline(err) {
			continue
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "trace %s", circuit.Describe(op))
		}
		calls, traced = rt.Calls(), true
		break
	}
	if !traced {
		return op, nil
	}
	if len(calls) == 1 && sameValue(calls[0].Op, op) && sameArgs(calls[0].Args, args) {
		return op, nil
	}

	steps := make([]circuit.Operation, 0, len(calls))
	for _, call := range calls {
		frozen, err := sub(ctx, call.Op, call.Args)
		if err != nil {
			return nil, err
		}
		indices, err := reindexArgs(args, call.Args)
		if err != nil {
			return nil, errors.WithMessagef(err, "freeze %s: call to %s", circuit.Describe(op), circuit.Describe(call.Op))
		}
		step, err := operations.NewRemappedByIndices("", frozen, indices...)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	log.Debug(log.CatCompile, "froze operation",
		"operation", circuit.Describe(op),
		"steps", len(steps))
	return operations.NewSequential(op.Name(), steps...), nil
}

// reindexArgs replaces every call argument by its position among outer. Arguments
// that are not outer arguments themselves are re-indexed item by item.
func reindexArgs(outer, callArgs []any) ([]any, error) {
	out := make([]any, len(callArgs))
	for i, a := range callArgs {
		idx, err := reindex(outer, a)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

func reindex(outer []any, v any) (any, error) {
	for i, a := range outer {
		if sameValue(a, v) {
			return i, nil
		}
	}
	items, ok := structure.Children(v, circuit.SystemAtoms)
	if !ok {
		return nil, errors.Wrapf(circuit.ErrMalformedOperation, "argument %s is not among the traced arguments", dispatch.Describe(v))
	}
	out := make(structure.Tuple, len(items))
	for i, item := range items {
		idx, err := reindex(outer, item)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	return ta == tb && ta.Comparable() && a == b
}

func sameArgs(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameValue(a[i], b[i]) {
			return false
		}
	}
	return true
}
