package statevector

import (
	"context"
	"slices"

	"github.com/pkg/errors"

	"github.com/zjrosen/qcircuit/internal/backend"
	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/operations"
	"github.com/zjrosen/qcircuit/internal/structure"
)

func init() {
	circuit.RegisterApply(RuntimeClass, operations.MatrixOperationClass, applyMatrix)
	circuit.RegisterApply(RuntimeClass, operations.ControlledClass, applyControlled)
	circuit.RegisterApply(RuntimeClass, operations.ProjectiveMeasurementClass, applyMeasurement)
	circuit.RegisterApply(RuntimeClass, operations.DesiredMeasurementClass, applyDesiredMeasurement)
	circuit.RegisterApply(RuntimeClass, operations.PureStatePreparationClass, applyPreparation)
}

func applyMatrix(_ context.Context, rt circuit.Runtime, op circuit.Operation, args ...any) (any, error) {
	r := rt.(*Runtime)
	m, ok := op.(operations.Matrixer)
	if !ok {
		return nil, errors.Errorf("%s has no matrix", circuit.Describe(op))
	}
	ps, err := r.particles(args...)
	if err != nil {
		return nil, err
	}
	spaces := spacesOf(ps)
	if d := backend.Dimension(spaces); d != m.Matrix().Rows() {
		return nil, errors.Wrapf(circuit.ErrShapeMismatch, "%s is %dx%d, targets span %d",
			circuit.Describe(op), m.Matrix().Rows(), m.Matrix().Cols(), d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.merge(ps)
	state, err := backend.ApplyOperator(h.state, m.Matrix(), spaces)
	if err != nil {
		return nil, err
	}
	h.state = state
	return nil, nil
}

// applyControlled runs the inner operation on the target and keeps its effect only on
// the branch where every control particle is |1⟩.
func applyControlled(ctx context.Context, rt circuit.Runtime, op circuit.Operation, args ...any) (any, error) {
	r := rt.(*Runtime)
	c := op.(*operations.Controlled)
	if len(args) != 2 {
		return nil, errors.Wrapf(circuit.ErrShapeMismatch, "controlled operation takes (control, target), got %d arguments", len(args))
	}
	control, err := r.particles(args[0])
	if err != nil {
		return nil, err
	}
	all, err := r.particles(args[0], args[1])
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	h := r.merge(all)
	off := h.state
	r.mu.Unlock()

	targetArgs := []any{args[1]}
	if _, ok := args[1].(circuit.System); !ok {
		if frozen, err := structure.Freeze(args[1], circuit.SystemAtoms); err == nil {
			if t, ok := frozen.(structure.Tuple); ok {
				targetArgs = t
			}
		}
	}
	if _, err := circuit.Invoke(ctx, c.Inner(), targetArgs...); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.merge(all) != h {
		return nil, errors.Wrap(circuit.ErrShapeMismatch, "controlled operation touched particles outside its control and target")
	}
	state, err := backend.Recombine(h.state, off, spacesOf(control))
	if err != nil {
		return nil, err
	}
	h.state = state
	return nil, nil
}

func applyMeasurement(_ context.Context, rt circuit.Runtime, _ circuit.Operation, args ...any) (any, error) {
	r := rt.(*Runtime)
	ps, err := r.particles(args...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.merge(ps)
	outcome, post, err := r.backend.Measure(h.state, spacesOf(ps))
	if err != nil {
		return nil, err
	}
	h.state = post
	return operations.MeasurementResult{
		Target: structure.Tuple(slices.Clone(args)),
		Values: outcome.Values,
		Prob:   outcome.Prob,
	}, nil
}

func applyDesiredMeasurement(_ context.Context, rt circuit.Runtime, op circuit.Operation, args ...any) (any, error) {
	r := rt.(*Runtime)
	d := op.(*operations.DesiredMeasurement)
	ps, err := r.particles(args...)
	if err != nil {
		return nil, err
	}
	values := d.Values()
	if len(values) != len(ps) {
		return nil, errors.Wrapf(circuit.ErrShapeMismatch, "%d desired values for %d particles", len(values), len(ps))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.merge(ps)
	prob, post, err := backend.Project(h.state, spacesOf(ps), values)
	if err != nil {
		return nil, err
	}
	h.state = post
	return prob, nil
}

func applyPreparation(_ context.Context, rt circuit.Runtime, op circuit.Operation, args ...any) (any, error) {
	r := rt.(*Runtime)
	prep := op.(*operations.PureStatePreparation)
	ps, err := r.particles(args...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range ps {
		if p.holder == nil {
			continue
		}
		for _, other := range p.holder.particles {
			if !slices.Contains(ps, other) {
				return nil, errors.Wrapf(circuit.ErrShapeMismatch, "%s is entangled with %s", p, other)
			}
		}
	}
	state, err := backend.NewPureState(spacesOf(ps), prep.Amplitudes())
	if err != nil {
		return nil, errors.Wrap(circuit.ErrShapeMismatch, err.Error())
	}
	h := &holder{state: state, particles: slices.Clone(ps)}
	for _, p := range ps {
		p.holder = h
	}
	return nil, nil
}
