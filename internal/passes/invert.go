package passes

import (
	"context"
	"slices"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
	"github.com/zjrosen/qcircuit/internal/operations"
	"github.com/zjrosen/qcircuit/internal/traits"
)

var InvertClass = dispatch.NewClass("Invert", traits.ConversionClass)

// Invert converts an operation into its inverse. Args are only needed for operations
// that must be frozen first.
type Invert struct {
	Args []any
}

func (*Invert) Class() *dispatch.Class { return InvertClass }

// Inverse returns the inverse of op.
func Inverse(ctx context.Context, op circuit.Operation) (circuit.Operation, error) {
	return traits.ConvertTo[circuit.Operation](ctx, &Invert{}, op)
}

func init() {
	for _, g := range []circuit.Operation{operations.I, operations.X, operations.Y, operations.Z, operations.H} {
		traits.RegisterConvert(InvertClass, g, constant(g))
	}
	for a, b := range map[circuit.Operation]circuit.Operation{
		operations.S: operations.Sdg,
		operations.T: operations.Tdg,
	} {
		traits.RegisterConvert(InvertClass, a, constant(b))
		traits.RegisterConvert(InvertClass, b, constant(a))
	}

	traits.RegisterConvert(InvertClass, nil, invertFrozen)
	traits.RegisterConvert(InvertClass, operations.MatrixOperationClass, invertMatrix)
	traits.RegisterConvert(InvertClass, operations.RotationClass, func(_ context.Context, _ traits.Conversion, op circuit.Operation) (any, error) {
		r := op.(*operations.Rotation)
		return r.WithTheta(-r.Theta()), nil
	})
	traits.RegisterConvert(InvertClass, operations.IdentityClass, func(_ context.Context, _ traits.Conversion, op circuit.Operation) (any, error) {
		return op, nil
	})
	traits.RegisterConvert(InvertClass, operations.SequentialClass, invertSequential)
	traits.RegisterConvert(InvertClass, operations.ControlledClass, invertWrapped)
	traits.RegisterConvert(InvertClass, operations.RemappedClass, invertWrapped)
}

func constant(op circuit.Operation) traits.ConvertImpl {
	return func(context.Context, traits.Conversion, circuit.Operation) (any, error) {
		return op, nil
	}
}

func daggerName(name string) string {
	if name == "" {
		return ""
	}
	return name + "†"
}

func invertMatrix(_ context.Context, _ traits.Conversion, op circuit.Operation) (any, error) {
	m := op.(*operations.MatrixOperation)
	if m.Qubits() >= 0 {
		return operations.NewQubitsMatrixOperation(daggerName(m.Name()), m.Matrix().Dagger())
	}
	return operations.NewMatrixOperation(daggerName(m.Name()), m.Matrix().Dagger())
}

func invertSequential(ctx context.Context, conv traits.Conversion, op circuit.Operation) (any, error) {
	seq := op.(*operations.Sequential)
	steps := seq.Steps()
	slices.Reverse(steps)
	for i, step := range steps {
		inv, err := traits.ConvertTo[circuit.Operation](ctx, conv, step)
		if err != nil {
			return nil, err
		}
		steps[i] = inv
	}
	return operations.NewSequential(daggerName(seq.Name()), steps...), nil
}

func invertWrapped(ctx context.Context, conv traits.Conversion, op circuit.Operation) (any, error) {
	w := op.(operations.Wrapper)
	inv, err := traits.ConvertTo[circuit.Operation](ctx, &Invert{Args: innerArgs(w, conv.(*Invert).Args)}, w.Inner())
	if err != nil {
		return nil, err
	}
	return w.Rebuild(inv), nil
}

// invertFrozen inverts the decomposition of op. Operations that do not decompose are
// declined.
func invertFrozen(ctx context.Context, conv traits.Conversion, op circuit.Operation) (any, error) {
	frozen, err := traits.Compile(ctx, &FreezePass{Args: conv.(*Invert).Args}, op)
	if err != nil {
		return nil, err
	}
	if frozen == op {
		return nil, dispatch.Decline("%s has no known inverse", circuit.Describe(op))
	}
	return traits.Convert(ctx, conv, frozen)
}
