// Package circuit defines operations, systems and runtimes, and the apply façade that
// connects them.
//
// Every invocation goes through Apply: built-in operations, combinators and user
// defined operations all resolve their behaviour from the apply registry keyed by
// (runtime class, runtime, operation class, operation).
package circuit

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/zjrosen/qcircuit/internal/dispatch"
)

// OperationClass is the root of every operation class.
var OperationClass = dispatch.NewClass("Operation", nil)

// Operation is an immutable description of a transformation over systems. Identity is
// by pointer.
type Operation interface {
	dispatch.Classed
	Name() string
}

// Base carries the optional operation name. Embed it in operation structs.
type Base struct {
	name string
}

// NewBase returns a Base named name.
func NewBase(name string) Base {
	return Base{name: name}
}

func (b Base) Name() string { return b.name }

// Describe renders an operation for messages.
func Describe(op Operation) string {
	if op == nil {
		return "<nil>"
	}
	if op.Name() != "" {
		return fmt.Sprintf("%s(%s)", op.Class().Name(), op.Name())
	}
	return op.Class().Name()
}

// Signature lists the positional system parameters of a custom operation.
type Signature struct {
	Params []string
	// Variadic and KeywordOnly mark signatures that cannot be traced symbolically.
	Variadic    bool
	KeywordOnly []string
}

// Traceable returns ErrMalformedOperation when placeholders cannot be synthesised for s.
func (s Signature) Traceable() error {
	if s.Variadic {
		return errors.Wrap(ErrMalformedOperation, "variadic parameters cannot be traced")
	}
	if len(s.KeywordOnly) > 0 {
		return errors.Wrapf(ErrMalformedOperation, "keyword-only parameters %v cannot be traced", s.KeywordOnly)
	}
	return nil
}

// Signer is implemented by operations that declare their parameters.
type Signer interface {
	Signature() Signature
}

// Callable is an operation with its own runtime-agnostic body. The catch-all apply
// implementation runs Call for any Callable on any runtime.
type Callable interface {
	Operation
	Signer
	Call(ctx context.Context, args ...any) (any, error)
}
