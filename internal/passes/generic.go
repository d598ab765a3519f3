package passes

import (
	"context"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/operations"
	"github.com/zjrosen/qcircuit/internal/traits"
)

// Generic implementations for every pass: leaves are left alone and the combinators
// are rebuilt around their compiled parts. Unchanged parts keep the original operation.
func init() {
	traits.RegisterCompile(nil, nil, keep)
	traits.RegisterCompile(nil, operations.SequentialClass, compileSteps)
	traits.RegisterCompile(nil, operations.ControlledClass, compileInner)
	traits.RegisterCompile(nil, operations.RemappedClass, compileInner)
}

func compileSteps(ctx context.Context, pass traits.CompilePass, op circuit.Operation) (circuit.Operation, error) {
	seq := op.(*operations.Sequential)
	steps := seq.Steps()
	changed := false
	for i, step := range steps {
		c, err := traits.Compile(ctx, pass, step)
		if err != nil {
			return nil, err
		}
		if c != step {
			steps[i], changed = c, true
		}
	}
	if !changed {
		return op, nil
	}
	return operations.NewSequential(seq.Name(), steps...), nil
}

func compileInner(ctx context.Context, pass traits.CompilePass, op circuit.Operation) (circuit.Operation, error) {
	w := op.(operations.Wrapper)
	inner, err := traits.Compile(ctx, pass, w.Inner())
	if err != nil {
		return nil, err
	}
	if inner == w.Inner() {
		return op, nil
	}
	return w.Rebuild(inner), nil
}
