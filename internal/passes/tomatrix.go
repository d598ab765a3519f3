package passes

import (
	"context"
	"slices"

	"github.com/pkg/errors"

	"github.com/zjrosen/qcircuit/internal/backend"
	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
	"github.com/zjrosen/qcircuit/internal/operations"
	"github.com/zjrosen/qcircuit/internal/runtime/symbolic"
	"github.com/zjrosen/qcircuit/internal/traits"
)

var ToMatrixClass = dispatch.NewClass("ToMatrix", traits.ConversionClass)

// ToMatrix converts an operation into its matrix over the particles of Args, first
// particle most significant. Without Args the operation's natural size is used where
// it has one.
type ToMatrix struct {
	Args []any

	spaces map[circuit.Particle]*backend.Space
}

func (*ToMatrix) Class() *dispatch.Class { return ToMatrixClass }

// MatrixOf returns the matrix of op acting on args.
func MatrixOf(ctx context.Context, op circuit.Operation, args ...any) (backend.Matrix, error) {
	if len(args) == 0 {
		args = nil
	}
	return traits.ConvertTo[backend.Matrix](ctx, &ToMatrix{Args: args}, op)
}

// with returns a conversion for args sharing the particle spaces of c.
func (c *ToMatrix) with(args []any) *ToMatrix {
	if c.spaces == nil {
		c.spaces = make(map[circuit.Particle]*backend.Space)
	}
	return &ToMatrix{Args: args, spaces: c.spaces}
}

func (c *ToMatrix) spacesOf(args ...any) ([]*backend.Space, error) {
	ps, err := circuit.Particles(args...)
	if err != nil {
		return nil, err
	}
	if c.spaces == nil {
		c.spaces = make(map[circuit.Particle]*backend.Space)
	}
	out := make([]*backend.Space, len(ps))
	for i, p := range ps {
		s, ok := c.spaces[p]
		if !ok {
			s = backend.NewSpace(p.Dimension(), p.Name())
			c.spaces[p] = s
		}
		out[i] = s
	}
	return out, nil
}

func init() {
	traits.RegisterConvert(ToMatrixClass, nil, matrixOfFrozen)
	traits.RegisterConvert(ToMatrixClass, operations.MatrixOperationClass, matrixOfMatrix)
	traits.RegisterConvert(ToMatrixClass, operations.IdentityClass, matrixOfIdentity)
	traits.RegisterConvert(ToMatrixClass, operations.SequentialClass, matrixOfSequential)
	traits.RegisterConvert(ToMatrixClass, operations.RemappedClass, matrixOfRemapped)
	traits.RegisterConvert(ToMatrixClass, operations.ControlledClass, matrixOfControlled)
}

func matrixOfMatrix(_ context.Context, conv traits.Conversion, op circuit.Operation) (any, error) {
	c := conv.(*ToMatrix)
	m := op.(operations.Matrixer).Matrix()
	if c.Args == nil {
		return m, nil
	}
	spaces, err := c.spacesOf(c.Args...)
	if err != nil {
		return nil, err
	}
	if d := backend.Dimension(spaces); d != m.Rows() {
		return nil, errors.Wrapf(circuit.ErrShapeMismatch, "%s is %dx%d, arguments span %d", circuit.Describe(op), m.Rows(), m.Cols(), d)
	}
	return m, nil
}

func matrixOfIdentity(_ context.Context, conv traits.Conversion, op circuit.Operation) (any, error) {
	c := conv.(*ToMatrix)
	if c.Args == nil {
		return nil, errors.Wrapf(circuit.ErrShapeMismatch, "%s has no size without arguments", circuit.Describe(op))
	}
	spaces, err := c.spacesOf(c.Args...)
	if err != nil {
		return nil, err
	}
	return backend.Eye(backend.Dimension(spaces)), nil
}

func matrixOfSequential(ctx context.Context, conv traits.Conversion, op circuit.Operation) (any, error) {
	c := conv.(*ToMatrix)
	seq := op.(*operations.Sequential)
	if c.Args == nil {
		if args := sharedPlaceholders(seq); args != nil {
			c = c.with(args)
		}
	}
	var acc backend.Matrix
	if c.Args != nil {
		spaces, err := c.spacesOf(c.Args...)
		if err != nil {
			return nil, err
		}
		acc = backend.Eye(backend.Dimension(spaces))
	} else if seq.Len() == 0 {
		return nil, errors.Wrapf(circuit.ErrShapeMismatch, "%s is empty and has no arguments", circuit.Describe(op))
	}
	for i, step := range seq.Steps() {
		m, err := traits.ConvertTo[backend.Matrix](ctx, c.with(c.Args), step)
		if err != nil {
			return nil, err
		}
		if i == 0 && c.Args == nil {
			acc = m
			continue
		}
		if m.Rows() != acc.Rows() {
			return nil, errors.Wrapf(circuit.ErrShapeMismatch, "step %s of %s is %dx%d, want %d", circuit.Describe(step), circuit.Describe(op), m.Rows(), m.Cols(), acc.Rows())
		}
		acc = m.Mul(acc)
	}
	return acc, nil
}

// placeholderArgs returns qubit placeholders for a remapped operation used without
// arguments.
func placeholderArgs(op circuit.Operation) ([]any, error) {
	r, ok := op.(*operations.RemappedByIndices)
	if !ok {
		return nil, errors.Wrapf(circuit.ErrShapeMismatch, "%s needs arguments", circuit.Describe(op))
	}
	return sharedPlaceholders(operations.Seq(r)), nil
}

// sharedPlaceholders returns one set of qubit placeholders for a Sequential whose steps
// all select their arguments by index, or nil otherwise.
func sharedPlaceholders(seq *operations.Sequential) []any {
	n := 0
	for _, step := range seq.Steps() {
		r, ok := step.(*operations.RemappedByIndices)
		if !ok {
			return nil
		}
		for _, i := range r.FlatIndices() {
			n = max(n, i+1)
		}
	}
	if n == 0 {
		return nil
	}
	args := make([]any, n)
	for i := range args {
		args[i] = symbolic.NewQubit("")
	}
	return args
}

func matrixOfRemapped(ctx context.Context, conv traits.Conversion, op circuit.Operation) (any, error) {
	c := conv.(*ToMatrix)
	r := op.(operations.Remapped)
	if c.Args == nil {
		args, err := placeholderArgs(op)
		if err != nil {
			return nil, err
		}
		c = c.with(args)
	}
	innerArgs, err := r.Remap(c.Args...)
	if err != nil {
		return nil, err
	}
	u, err := traits.ConvertTo[backend.Matrix](ctx, c.with(innerArgs), r.Inner())
	if err != nil {
		return nil, err
	}
	targets, err := c.spacesOf(innerArgs...)
	if err != nil {
		return nil, err
	}
	spaces, err := c.spacesOf(c.Args...)
	if err != nil {
		return nil, err
	}
	m, err := backend.Embed(u, targets, spaces)
	if err != nil {
		return nil, errors.Wrapf(circuit.ErrShapeMismatch, "embed %s: %v", circuit.Describe(op), err)
	}
	return m, nil
}

func matrixOfControlled(ctx context.Context, conv traits.Conversion, op circuit.Operation) (any, error) {
	c := conv.(*ToMatrix)
	ctl := op.(*operations.Controlled)

	var controls, targets, spaces []*backend.Space
	var u backend.Matrix
	var err error
	if c.Args == nil {
		if u, err = traits.ConvertTo[backend.Matrix](ctx, c.with(nil), ctl.Inner()); err != nil {
			return nil, err
		}
		controls = []*backend.Space{backend.NewSpace(2, "control")}
		targets = []*backend.Space{backend.NewSpace(u.Rows(), "target")}
		spaces = append(slices.Clone(controls), targets...)
	} else {
		if len(c.Args) != 2 {
			return nil, errors.Wrapf(circuit.ErrShapeMismatch, "%s takes a control and a target, got %d arguments", circuit.Describe(op), len(c.Args))
		}
		inner := targetArgs(c.Args[1])
		if u, err = traits.ConvertTo[backend.Matrix](ctx, c.with(inner), ctl.Inner()); err != nil {
			return nil, err
		}
		if controls, err = c.spacesOf(c.Args[0]); err != nil {
			return nil, err
		}
		if targets, err = c.spacesOf(inner...); err != nil {
			return nil, err
		}
		if spaces, err = c.spacesOf(c.Args...); err != nil {
			return nil, err
		}
	}

	full, err := backend.Embed(u, targets, spaces)
	if err != nil {
		return nil, errors.Wrapf(circuit.ErrShapeMismatch, "embed %s: %v", circuit.Describe(op), err)
	}
	on, off, err := backend.ControlProjectors(controls, spaces)
	if err != nil {
		return nil, errors.Wrapf(circuit.ErrShapeMismatch, "control %s: %v", circuit.Describe(op), err)
	}
	return on.Mul(full).Add(off), nil
}

// matrixOfFrozen converts the decomposition of op. Operations that do not decompose
// are declined.
func matrixOfFrozen(ctx context.Context, conv traits.Conversion, op circuit.Operation) (any, error) {
	c := conv.(*ToMatrix)
	if c.Args == nil {
		args, err := Placeholders(op)
		if err != nil {
			return nil, err
		}
		if len(args) > 0 {
			c = c.with(args)
		}
	}
	frozen, err := traits.Compile(ctx, &FreezePass{Args: c.Args}, op)
	if err != nil {
		return nil, err
	}
	if frozen == op {
		return nil, dispatch.Decline("%s has no matrix", circuit.Describe(op))
	}
	return traits.Convert(ctx, c, frozen)
}
