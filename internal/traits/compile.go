// Package traits declares the compile, convert and freeze façades. Implementations live
// with the passes and conversions that own them.
package traits

import (
	"context"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
)

// CompilePassClass is the root of every compile pass class.
var CompilePassClass = dispatch.NewClass("CompilePass", nil)

// CompilePass is a value that selects compile implementations.
type CompilePass interface {
	dispatch.Classed
}

// CompileImpl rewrites op under pass.
type CompileImpl func(ctx context.Context, pass CompilePass, op circuit.Operation) (circuit.Operation, error)

var compileFacade = dispatch.NewFacade[CompileImpl]("compile",
	[]dispatch.TagKey{
		dispatch.ClassKey("pass_type"),
		dispatch.InstanceKey("pass"),
		dispatch.ClassKey("operation_type"),
		dispatch.InstanceKey("operation"),
	},
	dispatch.WithMiddleware(dispatch.DefaultMiddleware()...),
)

func CompileFacade() *dispatch.Facade[CompileImpl] { return compileFacade }

// RegisterCompile registers impl for a pass and an operation, each nil, a class or an
// instance.
func RegisterCompile(pass, op any, impl CompileImpl) {
	pc, pi := dispatch.Resolve(pass)
	oc, oi := dispatch.Resolve(op)
	compileFacade.Registry().Register(impl, pc, pi, oc, oi)
}

// MatchCompile returns the compile implementations for pass and op, least specific
// first.
func MatchCompile(pass, op any) []CompileImpl {
	pc, pi := dispatch.Resolve(pass)
	oc, oi := dispatch.Resolve(op)
	return compileFacade.Registry().Match(pc, pi, oc, oi)
}

// Compile rewrites op with pass.
func Compile(ctx context.Context, pass CompilePass, op circuit.Operation) (circuit.Operation, error) {
	pc, pi := dispatch.Resolve(pass)
	oc, oi := dispatch.Resolve(op)
	q := dispatch.Query{
		Context:   pass,
		Operation: op,
		Tags:      []any{pc, pi, oc, oi},
	}
	res, err := compileFacade.Dispatch(ctx, q, func(ctx context.Context, impl CompileImpl) (any, error) {
		return impl(ctx, pass, op)
	})
	if err != nil {
		return nil, err
	}
	return res.(circuit.Operation), nil
}
