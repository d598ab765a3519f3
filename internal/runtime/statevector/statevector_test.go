package statevector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/qcircuit/internal/backend"
	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/operations"
	"github.com/zjrosen/qcircuit/internal/runtime/symbolic"
)

func setup(t *testing.T, seed uint64, n int) (context.Context, *Runtime, []any) {
	t.Helper()
	rt := New(backend.New(seed))
	ctx := circuit.WithRuntime(context.Background(), rt)
	qs, err := circuit.AllocateQubits(ctx, n, circuit.Prefixed("q"))
	require.NoError(t, err)
	return ctx, rt, qs.Items()
}

func invoke(t *testing.T, ctx context.Context, op circuit.Operation, args ...any) any {
	t.Helper()
	res, err := circuit.Invoke(ctx, op, args...)
	require.NoError(t, err)
	return res
}

var bell = circuit.Define("bell", []string{"a", "b"}, func(ctx context.Context, args ...any) (any, error) {
	if _, err := circuit.Invoke(ctx, operations.H, args[0]); err != nil {
		return nil, err
	}
	return circuit.Invoke(ctx, operations.CX, args[0], args[1])
})

// ============================================================================
// Unit Tests: Gates
// ============================================================================

func TestRuntime_BellPair(t *testing.T) {
	ctx, rt, q := setup(t, 1, 2)
	invoke(t, ctx, bell, q...)

	probs, err := rt.Probabilities(q...)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{0.5, 0, 0, 0.5}, probs, 1e-9)
}

func TestRuntime_ParticlesStartInZero(t *testing.T) {
	_, rt, q := setup(t, 1, 1)
	probs, err := rt.Probabilities(q...)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{1, 0}, probs, 1e-9)
	require.Equal(t, "q_0", q[0].(*Particle).Name())
	require.Equal(t, 1, rt.Allocated())
}

func TestRuntime_ProbabilitiesFollowArgumentOrder(t *testing.T) {
	ctx, rt, q := setup(t, 1, 2)
	invoke(t, ctx, operations.X, q[1])

	probs, err := rt.Probabilities(q[1], q[0])
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{0, 0, 1, 0}, probs, 1e-9)
}

func TestRuntime_MatrixShapeMismatch(t *testing.T) {
	ctx, _, q := setup(t, 1, 1)
	swap, err := operations.NewQubitsMatrixOperation("swap", backend.MustMatrix([][]complex128{
		{1, 0, 0, 0}, {0, 0, 1, 0}, {0, 1, 0, 0}, {0, 0, 0, 1},
	}))
	require.NoError(t, err)

	_, err = circuit.Invoke(ctx, swap, q[0])
	require.ErrorIs(t, err, circuit.ErrShapeMismatch)
}

func TestRuntime_RejectsForeignParticles(t *testing.T) {
	ctx, _, _ := setup(t, 1, 1)

	_, err := circuit.Invoke(ctx, operations.X, symbolic.NewQubit("p"))
	require.ErrorIs(t, err, ErrForeignParticle)

	_, otherRt, other := setup(t, 1, 1)
	require.NotNil(t, otherRt)
	_, err = circuit.Invoke(ctx, operations.X, other[0])
	require.ErrorIs(t, err, ErrForeignParticle)
}

func TestRuntime_EnterBindsBackend(t *testing.T) {
	ctx, rt, _ := setup(t, 1, 0)
	b, ok := backend.FromContext(ctx)
	require.True(t, ok)
	require.Same(t, rt.Backend(), b)
}

// ============================================================================
// Unit Tests: Controlled
// ============================================================================

func TestControlled_RespectsControlState(t *testing.T) {
	ctx, rt, q := setup(t, 1, 2)

	invoke(t, ctx, operations.CX, q[0], q[1])
	probs, err := rt.Probabilities(q...)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{1, 0, 0, 0}, probs, 1e-9, "control off")

	invoke(t, ctx, operations.X, q[0])
	invoke(t, ctx, operations.CX, q[0], q[1])
	probs, err = rt.Probabilities(q...)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{0, 0, 0, 1}, probs, 1e-9, "control on")
}

func TestControlled_MultipleControls(t *testing.T) {
	ctx, rt, q := setup(t, 1, 3)
	toffoli := operations.Control(operations.X, []int{0, 1}, 2)

	invoke(t, ctx, operations.X, q[0])
	invoke(t, ctx, toffoli, q...)
	probs, err := rt.Probabilities(q...)
	require.NoError(t, err)
	require.InDelta(t, 1.0, probs[0b100], 1e-9, "one control on is not enough")

	invoke(t, ctx, operations.X, q[1])
	invoke(t, ctx, toffoli, q...)
	probs, err = rt.Probabilities(q...)
	require.NoError(t, err)
	require.InDelta(t, 1.0, probs[0b111], 1e-9)
}

func TestControlled_NeedsTwoArguments(t *testing.T) {
	ctx, _, q := setup(t, 1, 3)
	_, err := circuit.Invoke(ctx, operations.CX, q...)
	require.ErrorIs(t, err, circuit.ErrShapeMismatch)
}

func TestControlled_SuperpositionStatistics(t *testing.T) {
	b := backend.New(2024)
	const shots = 1000
	counts := map[string]int{}
	for range shots {
		rt := New(b)
		ctx := circuit.WithRuntime(context.Background(), rt)
		qs, err := circuit.AllocateQubits(ctx, 2, circuit.Naming{})
		require.NoError(t, err)
		q := qs.Items()

		invoke(t, ctx, operations.H, q[0])
		invoke(t, ctx, operations.CNOT, q[0], q[1])
		res := invoke(t, ctx, operations.M, q...).(operations.MeasurementResult)
		require.InDelta(t, 0.5, res.Prob, 1e-9)
		counts[res.Bits()]++
	}

	require.Zero(t, counts["01"])
	require.Zero(t, counts["10"])
	require.InDelta(t, 0.5, float64(counts["00"])/shots, 0.06)
	require.InDelta(t, 0.5, float64(counts["11"])/shots, 0.06)
}

// ============================================================================
// Unit Tests: Measurements and preparation
// ============================================================================

func TestMeasurement_CollapsesJointState(t *testing.T) {
	ctx, rt, q := setup(t, 9, 2)
	invoke(t, ctx, bell, q...)

	first := invoke(t, ctx, operations.M, q[0]).(operations.MeasurementResult)
	second := invoke(t, ctx, operations.M, q[1]).(operations.MeasurementResult)
	require.Equal(t, first.Values, second.Values)
	require.InDelta(t, 1.0, second.Prob, 1e-9)

	probs, err := rt.Probabilities(q...)
	require.NoError(t, err)
	require.InDelta(t, 1.0, probs[3*first.Values[0]], 1e-9)
}

func TestDesiredMeasurement(t *testing.T) {
	ctx, rt, q := setup(t, 1, 2)
	invoke(t, ctx, bell, q...)

	prob := invoke(t, ctx, operations.NewDesiredMeasurement(1), q[0])
	require.InDelta(t, 0.5, prob.(float64), 1e-9)
	probs, err := rt.Probabilities(q...)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{0, 0, 0, 1}, probs, 1e-9)

	prob = invoke(t, ctx, operations.NewDesiredMeasurement(0), q[1])
	require.Zero(t, prob)
	probs, err = rt.Probabilities(q...)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{0, 0, 0, 1}, probs, 1e-9, "impossible outcome leaves the state alone")

	_, err = circuit.Invoke(ctx, operations.NewDesiredMeasurement(0, 1), q[0])
	require.ErrorIs(t, err, circuit.ErrShapeMismatch)
}

func TestPureStatePreparation(t *testing.T) {
	ctx, rt, q := setup(t, 1, 3)
	prep, err := operations.NewPureStatePreparation(1, 0, 0, 1)
	require.NoError(t, err)

	invoke(t, ctx, prep, q[0], q[1])
	probs, err := rt.Probabilities(q[0], q[1])
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{0.5, 0, 0, 0.5}, probs, 1e-9)

	invoke(t, ctx, operations.CX, q[1], q[2])
	_, err = circuit.Invoke(ctx, prep, q[0], q[1])
	require.ErrorIs(t, err, circuit.ErrShapeMismatch, "q[1] is entangled with q[2]")

	ghz, err := operations.NewPureStatePreparation(1, 0, 0, 0, 0, 0, 0, 1)
	require.NoError(t, err)
	invoke(t, ctx, ghz, q[0], q[1], q[2])
	probs, err = rt.Probabilities(q...)
	require.NoError(t, err)
	require.InDelta(t, 0.5, probs[0b111], 1e-9)
}

// ============================================================================
// Unit Tests: Sample
// ============================================================================

func TestSample_BellCorrelated(t *testing.T) {
	counts, err := Sample(context.Background(), backend.New(7), bell, 2, 400)
	require.NoError(t, err)

	require.Equal(t, []string{"00", "11"}, counts.Keys())
	require.Equal(t, 400, counts["00"]+counts["11"])
	require.InDelta(t, 200, counts["00"], 60)
}

func TestSample_ReplaysWithSeed(t *testing.T) {
	first, err := Sample(context.Background(), backend.New(11), operations.H, 1, 50)
	require.NoError(t, err)
	second, err := Sample(context.Background(), backend.New(11), operations.H, 1, 50)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSample_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Sample(ctx, backend.New(1), operations.X, 1, 10)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSample_PropagatesShapeErrors(t *testing.T) {
	_, err := Sample(context.Background(), backend.New(1), operations.CX, 1, 3)
	require.Error(t, err)
}
