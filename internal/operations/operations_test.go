package operations

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/qcircuit/internal/backend"
	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
	"github.com/zjrosen/qcircuit/internal/structure"
)

var recorderClass = dispatch.NewClass("Recorder", circuit.RuntimeClass)

type call struct {
	op   circuit.Operation
	args []any
}

// recorder records matrix and controlled operations and lets combinators expand.
type recorder struct {
	calls []call
}

func (r *recorder) Class() *dispatch.Class { return recorderClass }

func (r *recorder) AllocateParticle(_ context.Context, dim int, name string) (circuit.Particle, error) {
	return &particle{name: name, dim: dim}, nil
}

func init() {
	record := func(_ context.Context, rt circuit.Runtime, op circuit.Operation, args ...any) (any, error) {
		r := rt.(*recorder)
		r.calls = append(r.calls, call{op: op, args: args})
		return op.Name(), nil
	}
	circuit.RegisterApply(recorderClass, MatrixOperationClass, record)
	circuit.RegisterApply(recorderClass, ControlledClass, record)
}

type particle struct {
	name string
	dim  int
}

func (p *particle) Class() *dispatch.Class        { return circuit.ParticleClass }
func (p *particle) Name() string                  { return p.name }
func (p *particle) Particles() []circuit.Particle { return []circuit.Particle{p} }
func (p *particle) Dimension() int                { return p.dim }

func qubits(names ...string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = &particle{name: n, dim: 2}
	}
	return out
}

func run(t *testing.T, op circuit.Operation, args ...any) (*recorder, any) {
	t.Helper()
	rt := &recorder{}
	res, err := circuit.Apply(context.Background(), rt, op, args...)
	require.NoError(t, err)
	return rt, res
}

// ============================================================================
// Unit Tests: Sequential
// ============================================================================

func TestSequential_RunsStepsOnAllArguments(t *testing.T) {
	q := qubits("a")
	rt, res := run(t, Seq(H, X, Z), q...)

	require.Equal(t, structure.Tuple{"H", "X", "Z"}, res)
	require.Len(t, rt.calls, 3)
	for _, c := range rt.calls {
		require.Equal(t, q, c.args)
	}
}

func TestSequential_ConcatSplicesUnnamed(t *testing.T) {
	base := NewSequential("base", H)

	s := base.Concat(Seq(X, Y), NewSequential("named", Z), T)
	require.Equal(t, "base", s.Name())
	require.Equal(t, 5, s.Len())
	require.Equal(t, []circuit.Operation{H, X, Y, s.At(3), T}, s.Steps())
	require.Equal(t, "named", s.At(3).Name())

	require.Equal(t, 1, base.Len(), "concat does not modify the receiver")
}

func TestSequential_SlicePrependRepeat(t *testing.T) {
	s := NewSequential("s", H, X, Y)

	require.Equal(t, []circuit.Operation{X, Y}, s.Slice(1, 3).Steps())
	require.Equal(t, "s", s.Slice(0, 1).Name())
	require.Equal(t, []circuit.Operation{Z, H, X, Y}, s.Prepend(Z).Steps())

	r := s.Repeat(3)
	require.Equal(t, 3, r.Len())
	for _, step := range r.Steps() {
		require.Same(t, s, step)
	}
	require.Zero(t, s.Repeat(-1).Len())
}

// ============================================================================
// Unit Tests: Remapped
// ============================================================================

func TestRemappedByIndices_PreservesShape(t *testing.T) {
	r := On(I, 2, []int{1, 0})
	q := qubits("a", "b", "c")

	inner, err := r.Remap(q...)
	require.NoError(t, err)
	require.Equal(t, structure.Tuple{q[2], structure.Tuple{q[1], q[0]}}, inner)
	require.Equal(t, []int{2, 1, 0}, r.FlatIndices())
	require.Equal(t, "2, (1, 0)", r.String())
}

func TestRemappedByIndices_Errors(t *testing.T) {
	_, err := On(X, 3).Remap(qubits("a")...)
	require.ErrorIs(t, err, circuit.ErrShapeMismatch)

	_, err = NewRemappedByIndices("", X, -1)
	require.ErrorIs(t, err, circuit.ErrShapeMismatch)

	_, err = NewRemappedByIndices("", X, "0")
	require.ErrorIs(t, err, structure.ErrNotIterable)

	require.Panics(t, func() { On(X, 1.5) })
}

func TestRemappedByIndices_Apply(t *testing.T) {
	q := qubits("a", "b")
	rt, _ := run(t, Seq(On(H, 1), On(X, 0)), q...)

	require.Len(t, rt.calls, 2)
	require.Equal(t, []any{q[1]}, rt.calls[0].args)
	require.Equal(t, []any{q[0]}, rt.calls[1].args)
}

func TestRemappedByIndices_Spawn(t *testing.T) {
	named, err := NewRemappedByIndices("named", H, 1)
	require.NoError(t, err)

	spawned := named.Spawn(X).(*RemappedByIndices)
	require.Same(t, X, spawned.Inner())
	require.Equal(t, named.Indices(), spawned.Indices())
	require.Empty(t, spawned.Name())
}

func TestRemappedByLambda_BareSystemBecomesTuple(t *testing.T) {
	q := qubits("a", "b")
	pair := circuit.NewComposed("pair", q[0].(circuit.System), q[1].(circuit.System))

	r := OnFunc(I, func(args ...any) (any, error) { return pair, nil })
	inner, err := r.Remap(q...)
	require.NoError(t, err)
	require.Equal(t, structure.Tuple{pair}, inner)

	r = OnFunc(I, func(args ...any) (any, error) { return []any{args[1], args[0]}, nil })
	inner, err = r.Remap(q...)
	require.NoError(t, err)
	require.Equal(t, structure.Tuple{q[1], q[0]}, inner)

	_, err = OnFunc(I, func(...any) (any, error) { return 7, nil }).Remap(q...)
	require.Error(t, err)
}

// ============================================================================
// Unit Tests: Controlled
// ============================================================================

func TestControl_RoutesControlAndTarget(t *testing.T) {
	q := qubits("c", "t")
	rt, _ := run(t, Control(X, 0, 1), q...)

	require.Len(t, rt.calls, 1)
	c, ok := rt.calls[0].op.(*Controlled)
	require.True(t, ok)
	require.Same(t, X, c.Inner())
	require.Equal(t, []any{q[0], q[1]}, rt.calls[0].args)
}

func TestControlFunc(t *testing.T) {
	q := qubits("a", "b", "c")
	op := ControlFunc(Z,
		func(args ...any) (any, error) { return []any{args[0], args[1]}, nil },
		func(args ...any) (any, error) { return args[2], nil },
	)
	rt, _ := run(t, op, q...)

	require.Len(t, rt.calls, 1)
	require.Equal(t, []any{structure.Tuple{q[0], q[1]}, q[2]}, rt.calls[0].args)
}

func TestAliases(t *testing.T) {
	require.Same(t, X, CX.Inner())
	require.Same(t, CX, CNOT)
	require.Same(t, X, NOT)
	require.Equal(t, "CZ", CZ.Name())
}

// ============================================================================
// Unit Tests: Matrix operations
// ============================================================================

func TestMatrixOperation_ValidatesShape(t *testing.T) {
	_, err := NewMatrixOperation("r", backend.Zeros(2, 3))
	require.ErrorIs(t, err, circuit.ErrShapeMismatch)

	op, err := NewMatrixOperation("qutrit", backend.Eye(3))
	require.NoError(t, err)
	require.Equal(t, 3, op.N())
	require.Equal(t, -1, op.Qubits())

	_, err = NewQubitsMatrixOperation("qutrit", backend.Eye(3))
	require.ErrorIs(t, err, circuit.ErrShapeMismatch)

	op, err = NewQubitsMatrixOperation("two", backend.Eye(4))
	require.NoError(t, err)
	require.Equal(t, 2, op.Qubits())
	require.True(t, op.Class().IsA(MatrixOperationClass))
}

func TestGates_AreUnitary(t *testing.T) {
	for _, g := range []Matrixer{X, Y, Z, S, T, Sdg, Tdg, H, Rx(0.3), Ry(1.1), Rz(-2), Phase(0.7)} {
		require.True(t, g.Matrix().IsUnitary(backend.Tolerance), g.Name())
	}
	require.True(t, S.Matrix().Mul(Sdg.Matrix()).Equal(backend.Eye(2), backend.Tolerance))
	require.True(t, T.Matrix().Mul(T.Matrix()).Equal(S.Matrix(), backend.Tolerance))
}

func TestRotations(t *testing.T) {
	minusIX := X.Matrix().Scale(-1i)
	require.True(t, Rx(math.Pi).Matrix().Equal(minusIX, backend.Tolerance))
	require.True(t, Phase(math.Pi/2).Matrix().Equal(S.Matrix(), backend.Tolerance))

	r := Ry(0.5).WithTheta(-0.5)
	require.Same(t, RyClass, r.Class())
	require.Equal(t, -0.5, r.Theta())
	require.True(t, r.Matrix().Mul(Ry(0.5).Matrix()).Equal(backend.Eye(2), backend.Tolerance))
	require.Equal(t, "Rz(0.25)", Rz(0.25).String())
}

// ============================================================================
// Unit Tests: Measurements
// ============================================================================

func TestMeasurementResult_Bits(t *testing.T) {
	require.Equal(t, "101", MeasurementResult{Values: []int{1, 0, 1}}.Bits())
}

func TestPureStatePreparation(t *testing.T) {
	_, err := NewPureStatePreparation(0, 0)
	require.ErrorIs(t, err, circuit.ErrShapeMismatch)

	p, err := NewPureStatePreparation(1, 1i)
	require.NoError(t, err)
	require.Equal(t, []complex128{1, 1i}, p.Amplitudes())
}

func TestIdentity_DoesNothing(t *testing.T) {
	rt, res := run(t, I, qubits("a", "b")...)
	require.Nil(t, res)
	require.Empty(t, rt.calls)
}
