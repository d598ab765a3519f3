package structure

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type leaf struct{ id int }

type pair struct{ a, b any }

func (p pair) Items() []any { return []any{p.a, p.b} }

// ============================================================================
// Unit Tests: Iterate / Collect
// ============================================================================

func TestCollect_DepthFirstLeftToRight(t *testing.T) {
	s := []any{1, []any{2, Tuple{3, 4}}, 5, [2]int{6, 7}}

	atoms, err := Collect(s)
	require.NoError(t, err)
	require.Equal(t, []any{1, 2, 3, 4, 5, 6, 7}, atoms)
}

func TestIterate_Restartable(t *testing.T) {
	seq := Iterate([]any{1, []any{2, 3}})

	var first, second []any
	for v, err := range seq {
		require.NoError(t, err)
		first = append(first, v)
	}
	for v, err := range seq {
		require.NoError(t, err)
		second = append(second, v)
	}
	require.Equal(t, first, second)
}

func TestIterate_EarlyBreak(t *testing.T) {
	var got []any
	for v, err := range Iterate([]any{1, []any{2, 3}, 4}) {
		require.NoError(t, err)
		got = append(got, v)
		if len(got) == 2 {
			break
		}
	}
	require.Equal(t, []any{1, 2}, got)
}

func TestCollect_AtomOverrideOnIterable(t *testing.T) {
	p := pair{a: leaf{1}, b: leaf{2}}

	atoms, err := Collect([]any{p, leaf{3}})
	require.NoError(t, err)
	require.Equal(t, []any{leaf{1}, leaf{2}, leaf{3}}, atoms)

	atoms, err = Collect([]any{p, leaf{3}}, WithAtoms(AtomType[Itemer]()))
	require.NoError(t, err)
	require.Equal(t, []any{p, leaf{3}}, atoms)
}

func TestCollect_StringsAreAtoms(t *testing.T) {
	atoms, err := Collect([]any{"ab", []byte("cd")})
	require.NoError(t, err)
	require.Len(t, atoms, 2)
}

func TestCollect_StrictRejectsUnknownAtoms(t *testing.T) {
	_, err := Collect([]any{1, leaf{2}}, Strict(), WithAtoms(AtomType[int]()))
	require.ErrorIs(t, err, ErrNotIterable)

	atoms, err := Collect([]any{1, []int{2}}, Strict(), WithAtoms(AtomType[int]()))
	require.NoError(t, err)
	require.Equal(t, []any{1, 2}, atoms)
}

// ============================================================================
// Unit Tests: Freeze / Map
// ============================================================================

func TestFreeze_PreservesShape(t *testing.T) {
	frozen, err := Freeze([]any{0, []int{1, 2}, []any{[]any{3}}})
	require.NoError(t, err)
	require.Equal(t, Tuple{0, Tuple{1, 2}, Tuple{Tuple{3}}}, frozen)
}

func TestFreeze_AtomPassesThrough(t *testing.T) {
	frozen, err := Freeze(7)
	require.NoError(t, err)
	require.Equal(t, 7, frozen)
}

func TestMap_AppliesToEveryAtom(t *testing.T) {
	args := []string{"a", "b", "c"}
	mapped, err := Map(Tuple{2, Tuple{1, 0}}, func(v any) any { return args[v.(int)] })
	require.NoError(t, err)
	require.Equal(t, Tuple{"c", Tuple{"b", "a"}}, mapped)
}

func TestMapErr_StopsOnError(t *testing.T) {
	calls := 0
	_, err := MapErr(Tuple{1, 2, 3}, func(v any) (any, error) {
		calls++
		if v.(int) == 2 {
			return nil, ErrNotIterable
		}
		return v, nil
	})
	require.ErrorIs(t, err, ErrNotIterable)
	require.Equal(t, 2, calls)
}

// ============================================================================
// Property Tests
// ============================================================================

func nestedInts(t *rapid.T, depth int) any {
	if depth == 0 || rapid.Bool().Draw(t, "leaf") {
		return rapid.IntRange(0, 100).Draw(t, "atom")
	}
	n := rapid.IntRange(0, 4).Draw(t, "len")
	out := make([]any, n)
	for i := range out {
		out[i] = nestedInts(t, depth-1)
	}
	return out
}

func TestProperty_MapIdentityEqualsFreeze(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := nestedInts(t, 4)
		frozen, err := Freeze(s)
		require.NoError(t, err)
		mapped, err := Map(s, func(v any) any { return v })
		require.NoError(t, err)
		require.Equal(t, frozen, mapped)
	})
}

func TestProperty_FreezeKeepsAtomOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := nestedInts(t, 4)
		before, err := Collect(s)
		require.NoError(t, err)
		frozen, err := Freeze(s)
		require.NoError(t, err)
		after, err := Collect(frozen)
		require.NoError(t, err)
		require.Equal(t, before, after)
	})
}

func TestChildren(t *testing.T) {
	items, ok := Children(pair{a: 1, b: 2})
	require.True(t, ok)
	require.Equal(t, []any{1, 2}, items)

	_, ok = Children(pair{}, WithAtoms(AtomType[pair]()))
	require.False(t, ok)
	require.False(t, IsIterable("abc"))
}
