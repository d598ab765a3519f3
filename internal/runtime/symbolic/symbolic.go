// Package symbolic provides a runtime that records operation calls instead of running
// them. Freezing uses it to trace the body of an operation into its sub-calls.
package symbolic

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
	"github.com/zjrosen/qcircuit/internal/log"
	"github.com/zjrosen/qcircuit/internal/operations"
)

var (
	RuntimeClass  = dispatch.NewClass("SymbolicRuntime", circuit.RuntimeClass)
	ParticleClass = dispatch.NewClass("SymbolicParticle", circuit.ParticleClass)
)

// Call is one recorded invocation.
type Call struct {
	Op   circuit.Operation
	Args []any
}

// Runtime records every call made on it.
type Runtime struct {
	id    uuid.UUID
	mu    sync.Mutex
	calls []*Call
}

// New returns an empty recording runtime.
func New() *Runtime {
	return &Runtime{id: uuid.New()}
}

func (r *Runtime) Class() *dispatch.Class { return RuntimeClass }

func (r *Runtime) record(op circuit.Operation, args []any) *Call {
	c := &Call{Op: op, Args: slices.Clone(args)}
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	log.Debug(log.CatRuntime, "recorded call",
		"runtime", r.id.String(),
		"operation", circuit.Describe(op),
		"args", len(args))
	return c
}

// Calls returns the recorded calls in order.
func (r *Runtime) Calls() []*Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// AllocateParticle records an allocation and returns the particle it produces.
func (r *Runtime) AllocateParticle(_ context.Context, dim int, name string) (circuit.Particle, error) {
	op := circuit.NewAllocateParticle(dim, name)
	return newAllocated(r.record(op, nil), op), nil
}

// Particle is a symbolic particle. Placeholders have no call; allocated particles
// point at the allocation that produced them.
type Particle struct {
	id   uuid.UUID
	dim  int
	name string
	call *Call
}

// NewParticle returns a placeholder particle.
func NewParticle(dim int, name string) *Particle {
	return &Particle{id: uuid.New(), dim: dim, name: name}
}

// NewQubit returns a placeholder qubit.
func NewQubit(name string) *Particle {
	return NewParticle(2, name)
}

func newAllocated(c *Call, op *circuit.AllocateParticle) *Particle {
	return &Particle{id: uuid.New(), dim: op.Dim, name: op.Name(), call: c}
}

func (p *Particle) Class() *dispatch.Class        { return ParticleClass }
func (p *Particle) Name() string                  { return p.name }
func (p *Particle) Dimension() int                { return p.dim }
func (p *Particle) Particles() []circuit.Particle { return []circuit.Particle{p} }
func (p *Particle) ID() uuid.UUID                 { return p.id }

// Call returns the allocation call, or nil for a placeholder.
func (p *Particle) Call() *Call { return p.call }

func (p *Particle) String() string {
	if p.name != "" {
		return p.name
	}
	return fmt.Sprintf("q%d-%s", p.dim, p.id.String()[:8])
}

// MeasurementResult stands for the unknown outcome of a recorded measurement.
type MeasurementResult struct {
	Call *Call
}

func init() {
	circuit.RegisterApply(RuntimeClass, nil, func(_ context.Context, rt circuit.Runtime, op circuit.Operation, args ...any) (any, error) {
		rt.(*Runtime).record(op, args)
		return nil, nil
	})
	circuit.RegisterApply(RuntimeClass, circuit.AllocateParticleClass, func(_ context.Context, rt circuit.Runtime, op circuit.Operation, args ...any) (any, error) {
		a := op.(*circuit.AllocateParticle)
		return newAllocated(rt.(*Runtime).record(op, args), a), nil
	})
	measure := func(_ context.Context, rt circuit.Runtime, op circuit.Operation, args ...any) (any, error) {
		return &MeasurementResult{Call: rt.(*Runtime).record(op, args)}, nil
	}
	circuit.RegisterApply(RuntimeClass, operations.ProjectiveMeasurementClass, measure)
	circuit.RegisterApply(RuntimeClass, operations.DesiredMeasurementClass, measure)
}
