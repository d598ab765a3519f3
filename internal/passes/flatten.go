package passes

import (
	"context"

	"github.com/pkg/errors"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/log"
	"github.com/zjrosen/qcircuit/internal/operations"
	"github.com/zjrosen/qcircuit/internal/structure"
	"github.com/zjrosen/qcircuit/internal/traits"
)

func init() {
	traits.RegisterCompile(FlattenPassClass, nil, flattenLeaf)
	traits.RegisterCompile(FlattenPassClass, operations.SequentialClass, flattenSequential)
	traits.RegisterCompile(FlattenPassClass, operations.RemappedClass, flattenRemapped)
	traits.RegisterCompile(FlattenPassClass, operations.RemappedByIndicesClass, flattenRemappedByIndices)
	traits.RegisterCompile(FlattenPassClass, operations.ControlledClass, flattenControlled)
}

func flattenLeaf(ctx context.Context, pass traits.CompilePass, op circuit.Operation) (circuit.Operation, error) {
	p := pass.(*FlattenPass)
	frozen, err := traits.Compile(ctx, &FreezePass{Args: p.Args}, op)
	if err != nil {
		return nil, err
	}
	if frozen == op {
		return op, nil
	}
	return traits.Compile(ctx, p, frozen)
}

func flattenSequential(ctx context.Context, pass traits.CompilePass, op circuit.Operation) (circuit.Operation, error) {
	seq := op.(*operations.Sequential)
	steps := make([]circuit.Operation, 0, seq.Len())
	for _, step := range seq.Steps() {
		flat, err := traits.Compile(ctx, pass, step)
		switch {
		case errors.Is(err, circuit.ErrMalformedOperation):
			log.Warn(log.CatCompile, "keeping step that cannot be flattened",
				"sequential", circuit.Describe(op),
				"step", circuit.Describe(step),
				"error", err)
			steps = append(steps, step)
			continue
		case err != nil:
			return nil, err
		}
		steps = appendFlat(steps, flat)
	}
	return operations.NewSequential(seq.Name(), steps...), nil
}

func appendFlat(steps []circuit.Operation, op circuit.Operation) []circuit.Operation {
	if s, ok := op.(*operations.Sequential); ok {
		return append(steps, s.Steps()...)
	}
	return append(steps, op)
}

// flattenWrapped flattens the inner operation of w. When it becomes a Sequential the
// wrapper is spawned over each step and each result is flattened again.
func flattenWrapped(ctx context.Context, p *FlattenPass, w operations.Wrapper, respawn bool) (circuit.Operation, error) {
	inner, err := traits.Compile(ctx, &FlattenPass{Args: innerArgs(w, p.Args)}, w.Inner())
	if err != nil {
		return nil, err
	}
	seq, ok := inner.(*operations.Sequential)
	if !ok {
		if inner == w.Inner() {
			return w, nil
		}
		return w.Rebuild(inner), nil
	}
	steps := make([]circuit.Operation, 0, seq.Len())
	for _, step := range seq.Steps() {
		spawned := w.Spawn(step)
		if respawn {
			if spawned, err = traits.Compile(ctx, p, spawned); err != nil {
				return nil, err
			}
		}
		steps = appendFlat(steps, spawned)
	}
	return operations.NewSequential(w.Name(), steps...), nil
}

func flattenRemapped(ctx context.Context, pass traits.CompilePass, op circuit.Operation) (circuit.Operation, error) {
	return flattenWrapped(ctx, pass.(*FlattenPass), op.(operations.Remapped), true)
}

func flattenControlled(ctx context.Context, pass traits.CompilePass, op circuit.Operation) (circuit.Operation, error) {
	return flattenWrapped(ctx, pass.(*FlattenPass), op.(*operations.Controlled), false)
}

func flattenRemappedByIndices(ctx context.Context, pass traits.CompilePass, op circuit.Operation) (circuit.Operation, error) {
	outer := op.(*operations.RemappedByIndices)
	inner, ok := outer.Inner().(*operations.RemappedByIndices)
	if !ok {
		return flattenWrapped(ctx, pass.(*FlattenPass), outer, true)
	}
	merged, err := MergeIndices(outer, inner)
	if err != nil {
		return nil, err
	}
	return traits.Compile(ctx, pass, merged)
}

// MergeIndices collapses outer(inner(op)) into one RemappedByIndices over op. Leaf i
// of the inner index struct is replaced by the i-th entry of the outer one.
func MergeIndices(outer, inner *operations.RemappedByIndices) (*operations.RemappedByIndices, error) {
	top := outer.Indices()
	mapped, err := structure.MapErr(inner.Indices(), func(v any) (any, error) {
		i := v.(int)
		if i >= len(top) {
			return nil, errors.Wrapf(circuit.ErrShapeMismatch, "inner index %d with %d outer indices", i, len(top))
		}
		return top[i], nil
	}, structure.WithAtoms(structure.AtomType[int]()))
	if err != nil {
		return nil, err
	}
	return operations.NewRemappedByIndices(outer.Name(), inner.Inner(), mapped.(structure.Tuple)...)
}
