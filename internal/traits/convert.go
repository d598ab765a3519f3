package traits

import (
	"context"

	"github.com/pkg/errors"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
)

// ConversionClass is the root of every conversion class.
var ConversionClass = dispatch.NewClass("Conversion", nil)

// Conversion selects convert implementations; the result type depends on the
// conversion.
type Conversion interface {
	dispatch.Classed
}

// ConvertImpl converts op under conv.
type ConvertImpl func(ctx context.Context, conv Conversion, op circuit.Operation) (any, error)

var convertFacade = dispatch.NewFacade[ConvertImpl]("convert",
	[]dispatch.TagKey{
		dispatch.ClassKey("conversion_type"),
		dispatch.InstanceKey("conversion"),
		dispatch.ClassKey("operation_type"),
		dispatch.InstanceKey("operation"),
	},
	dispatch.WithMiddleware(dispatch.DefaultMiddleware()...),
)

func ConvertFacade() *dispatch.Facade[ConvertImpl] { return convertFacade }

// RegisterConvert registers impl for a conversion and an operation.
func RegisterConvert(conv, op any, impl ConvertImpl) {
	cc, ci := dispatch.Resolve(conv)
	oc, oi := dispatch.Resolve(op)
	convertFacade.Registry().Register(impl, cc, ci, oc, oi)
}

// MatchConvert returns the convert implementations for conv and op, least specific
// first.
func MatchConvert(conv, op any) []ConvertImpl {
	cc, ci := dispatch.Resolve(conv)
	oc, oi := dispatch.Resolve(op)
	return convertFacade.Registry().Match(cc, ci, oc, oi)
}

// Convert converts op with conv.
func Convert(ctx context.Context, conv Conversion, op circuit.Operation) (any, error) {
	cc, ci := dispatch.Resolve(conv)
	oc, oi := dispatch.Resolve(op)
	q := dispatch.Query{
		Context:   conv,
		Operation: op,
		Tags:      []any{cc, ci, oc, oi},
	}
	return convertFacade.Dispatch(ctx, q, func(ctx context.Context, impl ConvertImpl) (any, error) {
		return impl(ctx, conv, op)
	})
}

// ConvertTo is Convert with the result asserted to T.
func ConvertTo[T any](ctx context.Context, conv Conversion, op circuit.Operation) (T, error) {
	var zero T
	res, err := Convert(ctx, conv, op)
	if err != nil {
		return zero, err
	}
	t, ok := res.(T)
	if !ok {
		return zero, errors.Errorf("convert %s: result is %T, want %T", circuit.Describe(op), res, zero)
	}
	return t, nil
}
