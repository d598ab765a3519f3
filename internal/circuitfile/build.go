package circuitfile

import (
	"context"
	"fmt"
	"slices"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/operations"
	"github.com/zjrosen/qcircuit/internal/structure"
)

var builtinOps = map[string]circuit.Operation{
	"I":    operations.I,
	"X":    operations.X,
	"Y":    operations.Y,
	"Z":    operations.Z,
	"S":    operations.S,
	"T":    operations.T,
	"Sdg":  operations.Sdg,
	"Tdg":  operations.Tdg,
	"H":    operations.H,
	"NOT":  operations.NOT,
	"CX":   operations.CX,
	"CNOT": operations.CNOT,
	"CY":   operations.CY,
	"CZ":   operations.CZ,
	"M":    operations.M,
}

var rotations = map[string]func(theta float64) *operations.Rotation{
	"Rx":    operations.Rx,
	"Ry":    operations.Ry,
	"Rz":    operations.Rz,
	"Phase": operations.Phase,
}

func isBuiltinOp(name string) bool {
	_, gate := builtinOps[name]
	return gate || isRotation(name)
}

func isRotation(name string) bool {
	_, ok := rotations[name]
	return ok
}

// BuiltinOps returns the names usable in 'op' besides definitions, sorted.
func BuiltinOps() []string {
	names := make([]string, 0, len(builtinOps)+len(rotations))
	for n := range builtinOps {
		names = append(names, n)
	}
	for n := range rotations {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// boundStep is a step with its operation resolved, wrapped in Controlled when the step
// has controls, and its arguments turned into positions in the enclosing parameter list.
type boundStep struct {
	op      circuit.Operation
	on      []int
	control []int
	times   int
}

// Build turns f into a custom operation over its qubits. Each definition is built
// once and shared by the steps that use it.
func (f *File) Build() (*circuit.Custom, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	defs := make(map[string]circuit.Operation, len(f.Definitions))
	for _, d := range f.Definitions {
		custom, err := define(d.Name, d.Params, d.Steps, defs)
		if err != nil {
			return nil, fmt.Errorf("definition %s: %w", d.Name, err)
		}
		defs[d.Name] = custom
	}
	return define(f.Name, f.Qubits, f.Steps, defs)
}

func define(name string, params []string, steps []Step, defs map[string]circuit.Operation) (*circuit.Custom, error) {
	bound := make([]boundStep, len(steps))
	for i, s := range steps {
		op, err := resolveOp(s, defs)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if len(s.Control) > 0 {
			op = operations.C(op)
		}
		bound[i] = boundStep{
			op:      op,
			on:      positions(params, s.On),
			control: positions(params, s.Control),
			times:   s.Times(),
		}
	}
	return circuit.Define(name, params, func(ctx context.Context, args ...any) (any, error) {
		for _, s := range bound {
			for range s.times {
				if err := s.invoke(ctx, args); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	}), nil
}

func resolveOp(s Step, defs map[string]circuit.Operation) (circuit.Operation, error) {
	if op, ok := builtinOps[s.Op]; ok {
		return op, nil
	}
	if rot, ok := rotations[s.Op]; ok {
		return rot(*s.Theta), nil
	}
	if op, ok := defs[s.Op]; ok {
		return op, nil
	}
	return nil, fmt.Errorf("%w: unknown op %q", ErrInvalid, s.Op)
}

func positions(params, names []string) []int {
	out := make([]int, len(names))
	for i, n := range names {
		out[i] = slices.Index(params, n)
	}
	return out
}

func pick(args []any, idx []int) []any {
	out := make([]any, len(idx))
	for i, j := range idx {
		out[i] = args[j]
	}
	return out
}

// group passes a single system as itself and several as one tuple.
func group(systems []any) any {
	if len(systems) == 1 {
		return systems[0]
	}
	return structure.Tuple(systems)
}

func (s boundStep) invoke(ctx context.Context, args []any) error {
	targets := pick(args, s.on)
	if len(s.control) == 0 {
		_, err := circuit.Invoke(ctx, s.op, targets...)
		return err
	}
	_, err := circuit.Invoke(ctx, s.op, group(pick(args, s.control)), group(targets))
	return err
}
