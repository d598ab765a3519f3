package circuit

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/zjrosen/qcircuit/internal/dispatch"
)

// AllocateParticleClass is the class of AllocateParticle operations.
var AllocateParticleClass = dispatch.NewClass("AllocateParticle", OperationClass)

// AllocateParticle asks the runtime for a fresh particle of dimension Dim. Its result is
// a Particle.
type AllocateParticle struct {
	Base
	Dim int
}

// NewAllocateParticle returns an allocation of a particle of dim levels named name.
func NewAllocateParticle(dim int, name string) *AllocateParticle {
	return &AllocateParticle{Base: NewBase(name), Dim: dim}
}

func (a *AllocateParticle) Class() *dispatch.Class { return AllocateParticleClass }

func init() {
	RegisterApply(RuntimeClass, AllocateParticleClass, func(ctx context.Context, rt Runtime, op Operation, args ...any) (any, error) {
		a := op.(*AllocateParticle)
		if len(args) != 0 {
			return nil, dispatch.Decline("allocation takes no arguments, got %d", len(args))
		}
		return rt.AllocateParticle(ctx, a.Dim, a.Name())
	})
}

// AllocateParticleIn allocates a particle on the current runtime of ctx.
func AllocateParticleIn(ctx context.Context, dim int, name string) (Particle, error) {
	res, err := Invoke(ctx, NewAllocateParticle(dim, name))
	if err != nil {
		return nil, err
	}
	p, ok := res.(Particle)
	if !ok {
		return nil, errors.Errorf("allocation returned %T, not a particle", res)
	}
	return p, nil
}

// AllocateQubit allocates a two-level particle.
func AllocateQubit(ctx context.Context, name string) (Particle, error) {
	return AllocateParticleIn(ctx, 2, name)
}

// Naming decides qubit names for AllocateQubits and the name of the composed result.
type Naming struct {
	group string
	name  func(i int) string
}

// Prefixed names qubits prefix_0, prefix_1, ... and the composition prefix.
func Prefixed(prefix string) Naming {
	return Naming{group: prefix, name: func(i int) string { return fmt.Sprintf("%s_%d", prefix, i) }}
}

// Named takes qubit names from names in order; missing names are empty.
func Named(names ...string) Naming {
	return Naming{name: func(i int) string {
		if i < len(names) {
			return names[i]
		}
		return ""
	}}
}

// NamedBy derives each qubit name from its index.
func NamedBy(fn func(i int) string) Naming {
	return Naming{name: fn}
}

// AllocateQubits allocates n qubits and composes them. The zero Naming leaves
// everything unnamed.
func AllocateQubits(ctx context.Context, n int, naming Naming) (*Composed, error) {
	qubits := make([]System, n)
	for i := range qubits {
		name := ""
		if naming.name != nil {
			name = naming.name(i)
		}
		q, err := AllocateQubit(ctx, name)
		if err != nil {
			return nil, err
		}
		qubits[i] = q
	}
	return NewComposed(naming.group, qubits...), nil
}
