package backend

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var (
	invSqrt2 = complex(1/math.Sqrt2, 0)
	mX       = MustMatrix([][]complex128{{0, 1}, {1, 0}})
	mH       = MustMatrix([][]complex128{{1, 1}, {1, -1}}).Scale(invSqrt2)
	mCNOT    = MustMatrix([][]complex128{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 0, 1},
		{0, 0, 1, 0},
	})
)

func requireAmps(t *testing.T, want []complex128, s State) {
	t.Helper()
	ps, ok := s.(*PureState)
	require.True(t, ok, "expected a pure state, got %T", s)
	got := ps.Amplitudes()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, real(want[i]), real(got[i]), 1e-9, "re[%d]", i)
		assert.InDelta(t, imag(want[i]), imag(got[i]), 1e-9, "im[%d]", i)
	}
}

// ============================================================================
// Unit Tests: Matrix
// ============================================================================

func TestNewMatrix_RejectsRaggedRows(t *testing.T) {
	_, err := NewMatrix([][]complex128{{1, 2}, {3}})
	require.ErrorIs(t, err, ErrShape)

	_, err = NewMatrix(nil)
	require.ErrorIs(t, err, ErrShape)
}

func TestMatrix_Algebra(t *testing.T) {
	require.True(t, mX.Mul(mX).Equal(Eye(2), Tolerance))
	require.True(t, mH.IsUnitary(Tolerance))
	require.True(t, mCNOT.IsUnitary(Tolerance))

	y := MustMatrix([][]complex128{{0, -1i}, {1i, 0}})
	require.True(t, y.Dagger().Equal(y, Tolerance), "Y is hermitian")

	k := Eye(2).Kron(mX)
	require.Equal(t, 4, k.Rows())
	require.Equal(t, complex128(1), k.At(0, 1))
	require.Equal(t, complex128(1), k.At(2, 3))
	require.Equal(t, complex128(0), k.At(0, 2))

	require.Equal(t, complex128(2), Eye(2).Trace())
	require.True(t, Eye(2).Sub(Eye(2)).Equal(Zeros(2, 2), 0))
	require.True(t, Diag(1, -1).Equal(MustMatrix([][]complex128{{1, 0}, {0, -1}}), 0))
}

func TestMatrix_MulPanicsOnMismatch(t *testing.T) {
	require.Panics(t, func() { Eye(2).Mul(Eye(3)) })
}

func TestLog2(t *testing.T) {
	n, ok := Log2(8)
	require.True(t, ok)
	require.Equal(t, 3, n)

	_, ok = Log2(6)
	require.False(t, ok)
	_, ok = Log2(0)
	require.False(t, ok)
}

// ============================================================================
// Unit Tests: Embed
// ============================================================================

func TestEmbed_SecondSpace(t *testing.T) {
	a, b := NewSpace(2, "a"), NewSpace(2, "b")

	full, err := Embed(mX, []*Space{b}, []*Space{a, b})
	require.NoError(t, err)
	require.True(t, full.Equal(Eye(2).Kron(mX), Tolerance))
}

func TestEmbed_TargetOrderIsRespected(t *testing.T) {
	a, b := NewSpace(2, "a"), NewSpace(2, "b")

	// CNOT with b as control and a as target.
	full, err := Embed(mCNOT, []*Space{b, a}, []*Space{a, b})
	require.NoError(t, err)

	want := MustMatrix([][]complex128{
		{1, 0, 0, 0},
		{0, 0, 0, 1},
		{0, 0, 1, 0},
		{0, 1, 0, 0},
	})
	require.True(t, full.Equal(want, Tolerance), "got %s", full)
}

func TestEmbed_Errors(t *testing.T) {
	a, b := NewSpace(2, "a"), NewSpace(2, "b")

	_, err := Embed(mX, []*Space{NewSpace(2, "c")}, []*Space{a, b})
	require.ErrorIs(t, err, ErrShape)

	_, err = Embed(mCNOT, []*Space{a, a}, []*Space{a, b})
	require.ErrorIs(t, err, ErrShape)

	_, err = Embed(mCNOT, []*Space{a}, []*Space{a, b})
	require.ErrorIs(t, err, ErrShape)
}

// ============================================================================
// Unit Tests: States
// ============================================================================

func bell(t *testing.T) (State, *Space, *Space) {
	t.Helper()
	a, b := NewSpace(2, "a"), NewSpace(2, "b")
	s := Product(a.Eigenstate(0), b.Eigenstate(0))
	s, err := ApplyOperator(s, mH, []*Space{a})
	require.NoError(t, err)
	s, err = ApplyOperator(s, mCNOT, []*Space{a, b})
	require.NoError(t, err)
	return s, a, b
}

func TestApplyOperator_BellPair(t *testing.T) {
	s, _, _ := bell(t)
	requireAmps(t, []complex128{invSqrt2, 0, 0, invSqrt2}, s)
}

func TestApplyOperator_MixedMatchesPure(t *testing.T) {
	a, b := NewSpace(2, "a"), NewSpace(2, "b")
	pure := Product(a.Eigenstate(0), b.Eigenstate(1))
	mixed := State(ToMixed(pure))

	pure, err := ApplyOperator(pure, mH, []*Space{b})
	require.NoError(t, err)
	mixed, err = ApplyOperator(mixed, mH, []*Space{b})
	require.NoError(t, err)

	require.True(t, ToMixed(pure).Density().Equal(mixed.(*MixedState).Density(), Tolerance))
}

func TestNewPureState_Normalises(t *testing.T) {
	a := NewSpace(2, "a")
	s, err := NewPureState([]*Space{a}, []complex128{1, 1})
	require.NoError(t, err)
	requireAmps(t, []complex128{invSqrt2, invSqrt2}, s)

	_, err = NewPureState([]*Space{a}, []complex128{0, 0})
	require.ErrorIs(t, err, ErrShape)
	_, err = NewPureState([]*Space{a}, []complex128{1})
	require.ErrorIs(t, err, ErrShape)
}

func TestRecombine_ControlledNotFromBranches(t *testing.T) {
	c, tg := NewSpace(2, "c"), NewSpace(2, "t")
	off := Product(c.Eigenstate(0), tg.Eigenstate(0))
	off, err := ApplyOperator(off, mH, []*Space{c})
	require.NoError(t, err)
	on, err := ApplyOperator(off, mX, []*Space{tg})
	require.NoError(t, err)

	s, err := Recombine(on, off, []*Space{c})
	require.NoError(t, err)
	requireAmps(t, []complex128{invSqrt2, 0, 0, invSqrt2}, s)
}

func TestRecombine_MixedInputPromotes(t *testing.T) {
	c, tg := NewSpace(2, "c"), NewSpace(2, "t")
	off := Product(c.Eigenstate(1), tg.Eigenstate(0))
	on, err := ApplyOperator(ToMixed(off), mX, []*Space{tg})
	require.NoError(t, err)

	s, err := Recombine(on, off, []*Space{c})
	require.NoError(t, err)
	require.IsType(t, &MixedState{}, s)
	require.InDeltaSlice(t, []float64{0, 0, 0, 1}, Probabilities(s), 1e-9)
}

func TestProject(t *testing.T) {
	s, a, _ := bell(t)

	prob, post, err := Project(s, []*Space{a}, []int{1})
	require.NoError(t, err)
	require.InDelta(t, 0.5, prob, 1e-9)
	requireAmps(t, []complex128{0, 0, 0, 1}, post)
}

func TestProject_ZeroProbabilityLeavesStateUnchanged(t *testing.T) {
	a := NewSpace(2, "a")
	s := State(a.Eigenstate(0))

	prob, post, err := Project(s, []*Space{a}, []int{1})
	require.NoError(t, err)
	require.Zero(t, prob)
	require.Same(t, s, post)
}

func TestMeasure_BellCorrelation(t *testing.T) {
	b := New(7)
	for range 50 {
		s, qa, qb := bell(t)
		first, s, err := b.Measure(s, []*Space{qa})
		require.NoError(t, err)
		require.InDelta(t, 0.5, first.Prob, 1e-9)

		second, _, err := b.Measure(s, []*Space{qb})
		require.NoError(t, err)
		require.Equal(t, first.Values, second.Values)
		require.InDelta(t, 1.0, second.Prob, 1e-9)
	}
}

func TestMeasure_Statistics(t *testing.T) {
	b := New(42)
	a := NewSpace(2, "a")
	plus, err := ApplyOperator(a.Eigenstate(0), mH, []*Space{a})
	require.NoError(t, err)

	const shots = 2000
	ones := 0
	for range shots {
		out, _, err := b.Measure(plus, []*Space{a})
		require.NoError(t, err)
		ones += out.Values[0]
	}
	require.InDelta(t, 0.5, float64(ones)/shots, 0.05)
}

func TestBackend_SeedReplays(t *testing.T) {
	weights := []float64{0.2, 0.3, 0.5}
	first, second := New(3), New(3)
	for range 20 {
		require.Equal(t, first.Choose(weights), second.Choose(weights))
	}
	require.Equal(t, 1, New(1).Choose([]float64{0, 1, 0}))
}

func TestBackendContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	b := New(1)
	got, ok := FromContext(WithBackend(context.Background(), b))
	require.True(t, ok)
	require.Same(t, b, got)
}

// ============================================================================
// Property Tests
// ============================================================================

func TestProperty_EmbedIdentityIsIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 4).Draw(t, "spaces")
		spaces := make([]*Space, n)
		for i := range spaces {
			spaces[i] = NewSpace(rapid.IntRange(1, 3).Draw(t, "dim"), "")
		}
		k := rapid.IntRange(0, n-1).Draw(t, "target")
		full, err := Embed(Eye(spaces[k].Dim()), []*Space{spaces[k]}, spaces)
		require.NoError(t, err)
		require.True(t, full.Equal(Eye(Dimension(spaces)), Tolerance))
	})
}

func TestProperty_UnitaryKeepsTraceOne(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a, b := NewSpace(2, "a"), NewSpace(2, "b")
		var s State = Product(a.Eigenstate(rapid.IntRange(0, 1).Draw(t, "a")), b.Eigenstate(0))
		if rapid.Bool().Draw(t, "mixed") {
			s = ToMixed(s)
		}
		gates := []Matrix{mX, mH}
		for range rapid.IntRange(0, 6).Draw(t, "steps") {
			g := gates[rapid.IntRange(0, 1).Draw(t, "gate")]
			target := []*Space{a, b}[rapid.IntRange(0, 1).Draw(t, "target")]
			var err error
			s, err = ApplyOperator(s, g, []*Space{target})
			require.NoError(t, err)
		}
		var total float64
		for _, p := range Probabilities(s) {
			total += p
		}
		require.InDelta(t, 1.0, total, 1e-9)
	})
}
