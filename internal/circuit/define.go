package circuit

import (
	"context"

	"github.com/zjrosen/qcircuit/internal/dispatch"
)

// CustomClass is the class of operations built with Define.
var CustomClass = dispatch.NewClass("Custom", OperationClass)

// Body is the runtime-agnostic implementation of a custom operation. It receives the
// operation's arguments and invokes sub-operations through ctx.
type Body func(ctx context.Context, args ...any) (any, error)

// Custom is an operation defined by a body function.
type Custom struct {
	Base
	signature Signature
	body      Body
}

// Define creates a custom operation with one system parameter per entry of params and
// registers body as its apply implementation for every runtime.
func Define(name string, params []string, body Body) *Custom {
	return DefineWithSignature(name, Signature{Params: append([]string(nil), params...)}, body)
}

// DefineWithSignature is Define with a full signature.
func DefineWithSignature(name string, sig Signature, body Body) *Custom {
	c := &Custom{Base: NewBase(name), signature: sig, body: body}
	RegisterApply(nil, c, func(ctx context.Context, _ Runtime, _ Operation, args ...any) (any, error) {
		return c.body(ctx, args...)
	})
	return c
}

func (c *Custom) Class() *dispatch.Class { return CustomClass }
func (c *Custom) Signature() Signature   { return c.signature }

// Call runs the body directly.
func (c *Custom) Call(ctx context.Context, args ...any) (any, error) {
	return c.body(ctx, args...)
}

var _ Callable = (*Custom)(nil)
