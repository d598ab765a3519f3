package operations

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
	"github.com/zjrosen/qcircuit/internal/structure"
)

var (
	RemappedClass          = dispatch.NewClass("Remapped", circuit.OperationClass)
	RemappedByIndicesClass = dispatch.NewClass("RemappedByIndices", RemappedClass)
	RemappedByLambdaClass  = dispatch.NewClass("RemappedByLambda", RemappedClass)
)

// Wrapper is an operation built around a single inner operation.
type Wrapper interface {
	circuit.Operation
	Inner() circuit.Operation
	// Spawn returns the same wrapper around op. The result is unnamed.
	Spawn(op circuit.Operation) circuit.Operation
	// Rebuild is Spawn keeping the wrapper's name.
	Rebuild(op circuit.Operation) circuit.Operation
}

// Remapped runs its inner operation on arguments derived from its own.
type Remapped interface {
	Wrapper
	// Remap maps the outer arguments to the inner ones.
	Remap(args ...any) (structure.Tuple, error)
}

var intAtoms = structure.WithAtoms(structure.AtomType[int]())

// RemappedByIndices selects inner arguments by position. Each leaf i of the index
// struct is replaced by the i-th outer argument; the nesting is kept.
type RemappedByIndices struct {
	circuit.Base
	inner   circuit.Operation
	indices structure.Tuple
}

// NewRemappedByIndices wraps op with an index struct made of ints and sequences of
// index structs.
func NewRemappedByIndices(name string, op circuit.Operation, indices ...any) (*RemappedByIndices, error) {
	frozen, err := structure.Freeze(structure.Tuple(indices), intAtoms, structure.Strict())
	if err != nil {
		return nil, errors.Wrap(err, "remap indices")
	}
	for v := range structure.Iterate(frozen, intAtoms) {
		if v.(int) < 0 {
			return nil, errors.Wrapf(circuit.ErrShapeMismatch, "negative index %d", v)
		}
	}
	return &RemappedByIndices{Base: circuit.NewBase(name), inner: op, indices: frozen.(structure.Tuple)}, nil
}

// On wraps op with literal indices. It panics on indices that are not ints or
// sequences of ints.
func On(op circuit.Operation, indices ...any) *RemappedByIndices {
	r, err := NewRemappedByIndices("", op, indices...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *RemappedByIndices) Class() *dispatch.Class   { return RemappedByIndicesClass }
func (r *RemappedByIndices) Inner() circuit.Operation { return r.inner }

// Indices returns the frozen index struct.
func (r *RemappedByIndices) Indices() structure.Tuple { return r.indices }

// FlatIndices returns the leaves of the index struct in order.
func (r *RemappedByIndices) FlatIndices() []int {
	var out []int
	for v := range structure.Iterate(r.indices, intAtoms) {
		out = append(out, v.(int))
	}
	return out
}

func (r *RemappedByIndices) Spawn(op circuit.Operation) circuit.Operation {
	return &RemappedByIndices{inner: op, indices: r.indices}
}

func (r *RemappedByIndices) Rebuild(op circuit.Operation) circuit.Operation {
	return &RemappedByIndices{Base: r.Base, inner: op, indices: r.indices}
}

func (r *RemappedByIndices) Remap(args ...any) (structure.Tuple, error) {
	mapped, err := structure.MapErr(r.indices, func(v any) (any, error) {
		i := v.(int)
		if i >= len(args) {
			return nil, errors.Wrapf(circuit.ErrShapeMismatch, "index %d with %d arguments", i, len(args))
		}
		return args[i], nil
	}, intAtoms)
	if err != nil {
		return nil, err
	}
	return mapped.(structure.Tuple), nil
}

func (r *RemappedByIndices) String() string {
	parts := make([]string, len(r.indices))
	for i, idx := range r.indices {
		parts[i] = formatIndex(idx)
	}
	return strings.Join(parts, ", ")
}

func formatIndex(v any) string {
	t, ok := v.(structure.Tuple)
	if !ok {
		return fmt.Sprint(v)
	}
	parts := make([]string, len(t))
	for i, c := range t {
		parts[i] = formatIndex(c)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// LambdaFunc maps outer arguments to the inner argument struct.
type LambdaFunc func(args ...any) (any, error)

// RemappedByLambda derives inner arguments with a function.
type RemappedByLambda struct {
	circuit.Base
	inner circuit.Operation
	fn    LambdaFunc
}

// NewRemappedByLambda wraps op with fn.
func NewRemappedByLambda(name string, op circuit.Operation, fn LambdaFunc) *RemappedByLambda {
	return &RemappedByLambda{Base: circuit.NewBase(name), inner: op, fn: fn}
}

// OnFunc wraps op with fn.
func OnFunc(op circuit.Operation, fn LambdaFunc) *RemappedByLambda {
	return NewRemappedByLambda("", op, fn)
}

func (r *RemappedByLambda) Class() *dispatch.Class   { return RemappedByLambdaClass }
func (r *RemappedByLambda) Inner() circuit.Operation { return r.inner }

func (r *RemappedByLambda) Spawn(op circuit.Operation) circuit.Operation {
	return &RemappedByLambda{inner: op, fn: r.fn}
}

func (r *RemappedByLambda) Rebuild(op circuit.Operation) circuit.Operation {
	return &RemappedByLambda{Base: r.Base, inner: op, fn: r.fn}
}

// Remap calls the function. A single system result becomes a one-element tuple.
func (r *RemappedByLambda) Remap(args ...any) (structure.Tuple, error) {
	res, err := r.fn(args...)
	if err != nil {
		return nil, err
	}
	if _, ok := res.(circuit.System); ok {
		return structure.Tuple{res}, nil
	}
	frozen, err := structure.Freeze(res, circuit.SystemAtoms)
	if err != nil {
		return nil, err
	}
	t, ok := frozen.(structure.Tuple)
	if !ok {
		return nil, errors.Errorf("remap function returned %T, want a system or a sequence", res)
	}
	return t, nil
}

func applyRemapped(ctx context.Context, _ circuit.Runtime, op circuit.Operation, args ...any) (any, error) {
	r := op.(Remapped)
	inner, err := r.Remap(args...)
	if err != nil {
		return nil, errors.WithMessagef(err, "remap for %s", circuit.Describe(r.Inner()))
	}
	return circuit.Invoke(ctx, r.Inner(), inner...)
}
