package operations

import (
	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
)

// ControlledClass is the class of Controlled operations.
var ControlledClass = dispatch.NewClass("Controlled", circuit.OperationClass)

// Controlled runs its inner operation on the target conditioned on every control
// particle being |1⟩. It is called with two arguments, (control, target); each may be
// a system or a struct of systems. Runtimes implement the recombination.
type Controlled struct {
	circuit.Base
	inner circuit.Operation
}

// NewControlled returns op controlled, named name.
func NewControlled(name string, op circuit.Operation) *Controlled {
	return &Controlled{Base: circuit.NewBase(name), inner: op}
}

// C returns op controlled, unnamed.
func C(op circuit.Operation) *Controlled {
	return NewControlled("", op)
}

func (c *Controlled) Class() *dispatch.Class   { return ControlledClass }
func (c *Controlled) Inner() circuit.Operation { return c.inner }

func (c *Controlled) Spawn(op circuit.Operation) circuit.Operation {
	return &Controlled{inner: op}
}

func (c *Controlled) Rebuild(op circuit.Operation) circuit.Operation {
	return &Controlled{Base: c.Base, inner: op}
}

// Control returns Controlled(op) remapped so that the struct at the control indices is
// the control and the struct at the target indices is the target.
func Control(op circuit.Operation, control, target any) *RemappedByIndices {
	return On(C(op), control, target)
}

// ControlFunc is Control with the control and target derived by functions.
func ControlFunc(op circuit.Operation, control, target LambdaFunc) *RemappedByLambda {
	return OnFunc(C(op), func(args ...any) (any, error) {
		c, err := control(args...)
		if err != nil {
			return nil, err
		}
		t, err := target(args...)
		if err != nil {
			return nil, err
		}
		return []any{c, t}, nil
	})
}
