package traits

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
)

var (
	renameClass = dispatch.NewClass("Rename", CompilePassClass)
	gateClass   = dispatch.NewClass("Gate", circuit.OperationClass)
	countClass  = dispatch.NewClass("Count", ConversionClass)
)

type renamePass struct{}

func (renamePass) Class() *dispatch.Class { return renameClass }

type countConversion struct{}

func (countConversion) Class() *dispatch.Class { return countClass }

type gate struct {
	circuit.Base
	class *dispatch.Class
}

func (g *gate) Class() *dispatch.Class { return g.class }

func newGate(name string, class *dispatch.Class) *gate {
	return &gate{Base: circuit.NewBase(name), class: class}
}

func TestCompile_MostSpecificWithFallback(t *testing.T) {
	a := newGate("a", gateClass)
	b := newGate("b", gateClass)
	RegisterCompile(renameClass, gateClass, func(context.Context, CompilePass, circuit.Operation) (circuit.Operation, error) {
		return b, nil
	})
	RegisterCompile(renameClass, a, func(context.Context, CompilePass, circuit.Operation) (circuit.Operation, error) {
		return nil, dispatch.Decline("instance impl declines")
	})

	got, err := Compile(context.Background(), renamePass{}, a)
	require.NoError(t, err)
	require.Same(t, b, got)
	require.Len(t, MatchCompile(renamePass{}, a), 2)
}

func TestCompile_NoImplementation(t *testing.T) {
	cls := dispatch.NewClass("Unregistered", CompilePassClass)
	pass := classed{cls}

	_, err := Compile(context.Background(), pass, newGate("g", dispatch.NewClass("Lonely", circuit.OperationClass)))
	require.ErrorIs(t, err, dispatch.ErrNoImplementation)

	var derr *dispatch.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, "compile", derr.Facade)
}

type classed struct{ c *dispatch.Class }

func (c classed) Class() *dispatch.Class { return c.c }

func TestConvertTo(t *testing.T) {
	op := newGate("g", gateClass)
	RegisterConvert(countClass, gateClass, func(context.Context, Conversion, circuit.Operation) (any, error) {
		return 1, nil
	})

	n, err := ConvertTo[int](context.Background(), countConversion{}, op)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = ConvertTo[string](context.Background(), countConversion{}, op)
	require.Error(t, err)
	require.Len(t, MatchConvert(countClass, gateClass), 1)
}

func TestFreeze_PassesArguments(t *testing.T) {
	cls := dispatch.NewClass("Frozen", circuit.OperationClass)
	op := newGate("f", cls)
	var seen []any
	RegisterFreeze(cls, func(_ context.Context, op circuit.Operation, args ...any) (circuit.Operation, error) {
		seen = args
		return op, nil
	})

	got, err := Freeze(context.Background(), op, 1, 2)
	require.NoError(t, err)
	require.Same(t, op, got)
	require.Equal(t, []any{1, 2}, seen)
	require.Len(t, MatchFreeze(op), 1)
}

func TestFreeze_ErrorsPropagate(t *testing.T) {
	cls := dispatch.NewClass("Broken", circuit.OperationClass)
	RegisterFreeze(cls, func(context.Context, circuit.Operation, ...any) (circuit.Operation, error) {
		return nil, circuit.ErrMalformedOperation
	})

	_, err := Freeze(context.Background(), newGate("x", cls))
	require.ErrorIs(t, err, circuit.ErrMalformedOperation)
}
