// Package operations holds the built-in operations: the Sequential, Remapped and
// Controlled combinators, matrix gates and measurements.
//
// Importing the package registers the runtime-agnostic apply implementations of the
// combinators. Gates and measurements have no behaviour of their own; runtimes
// register it.
package operations

import (
	"context"
	"slices"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
	"github.com/zjrosen/qcircuit/internal/structure"
)

// SequentialClass is the class of Sequential operations.
var SequentialClass = dispatch.NewClass("Sequential", circuit.OperationClass)

// Sequential runs its steps in order, each on the full argument list. Its result is
// the Tuple of step results.
type Sequential struct {
	circuit.Base
	steps []circuit.Operation
}

// NewSequential returns a Sequential named name.
func NewSequential(name string, steps ...circuit.Operation) *Sequential {
	return &Sequential{Base: circuit.NewBase(name), steps: slices.Clone(steps)}
}

// Seq returns an unnamed Sequential.
func Seq(steps ...circuit.Operation) *Sequential {
	return NewSequential("", steps...)
}

func (s *Sequential) Class() *dispatch.Class { return SequentialClass }
func (s *Sequential) Len() int               { return len(s.steps) }
func (s *Sequential) At(i int) circuit.Operation {
	return s.steps[i]
}

// Steps returns a copy of the step list.
func (s *Sequential) Steps() []circuit.Operation {
	return slices.Clone(s.steps)
}

// Slice returns steps [i, j) under the same name.
func (s *Sequential) Slice(i, j int) *Sequential {
	return NewSequential(s.Name(), s.steps[i:j]...)
}

// Concat appends ops. An unnamed Sequential operand contributes its steps; anything
// else is appended as one step.
func (s *Sequential) Concat(ops ...circuit.Operation) *Sequential {
	steps := slices.Clone(s.steps)
	for _, op := range ops {
		if o, ok := op.(*Sequential); ok && o.Name() == "" {
			steps = append(steps, o.steps...)
			continue
		}
		steps = append(steps, op)
	}
	return &Sequential{Base: s.Base, steps: steps}
}

// Prepend returns a Sequential with op as its first step.
func (s *Sequential) Prepend(op circuit.Operation) *Sequential {
	return &Sequential{Base: s.Base, steps: append([]circuit.Operation{op}, s.steps...)}
}

// Repeat returns a Sequential running s n times.
func (s *Sequential) Repeat(n int) *Sequential {
	steps := make([]circuit.Operation, max(n, 0))
	for i := range steps {
		steps[i] = s
	}
	return &Sequential{Base: s.Base, steps: steps}
}

func applySequential(ctx context.Context, _ circuit.Runtime, op circuit.Operation, args ...any) (any, error) {
	s := op.(*Sequential)
	results := make(structure.Tuple, len(s.steps))
	for i, step := range s.steps {
		res, err := circuit.Invoke(ctx, step, args...)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}
