// Package statevector simulates operations on explicit quantum states.
//
// Every particle starts in |0⟩ with a state of its own. Particles used together are
// merged into one joint state on first use, and stay merged.
package statevector

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/pkg/errors"

	"github.com/zjrosen/qcircuit/internal/backend"
	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
	"github.com/zjrosen/qcircuit/internal/log"
)

var (
	RuntimeClass  = dispatch.NewClass("StateVectorRuntime", circuit.RuntimeClass)
	ParticleClass = dispatch.NewClass("StateVectorParticle", circuit.ParticleClass)
)

// ErrForeignParticle is returned for a particle that was not allocated by the runtime
// the operation runs on.
var ErrForeignParticle = errors.New("particle belongs to another runtime")

// Runtime holds the states of the particles it allocated.
type Runtime struct {
	backend *backend.Backend
	mu      sync.Mutex
	count   int
}

// New returns a runtime sampling from b. A nil b gets a randomly seeded backend.
func New(b *backend.Backend) *Runtime {
	if b == nil {
		b = backend.NewRandom()
	}
	return &Runtime{backend: b}
}

func (r *Runtime) Class() *dispatch.Class    { return RuntimeClass }
func (r *Runtime) Backend() *backend.Backend { return r.backend }

// Enter makes the runtime's backend current alongside the runtime.
func (r *Runtime) Enter(ctx context.Context) context.Context {
	return backend.WithBackend(ctx, r.backend)
}

// AllocateParticle returns a particle of dim levels in |0⟩.
func (r *Runtime) AllocateParticle(_ context.Context, dim int, name string) (circuit.Particle, error) {
	if dim < 1 {
		return nil, errors.Wrapf(circuit.ErrShapeMismatch, "particle dimension %d", dim)
	}
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
	return &Particle{rt: r, space: backend.NewSpace(dim, name)}, nil
}

// Allocated returns the number of particles allocated so far.
func (r *Runtime) Allocated() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// holder owns a joint state and the particles it spans.
type holder struct {
	state     backend.State
	particles []*Particle
}

// Particle is a particle simulated by a Runtime.
type Particle struct {
	rt     *Runtime
	space  *backend.Space
	holder *holder
}

func (p *Particle) Class() *dispatch.Class        { return ParticleClass }
func (p *Particle) Name() string                  { return p.space.Name() }
func (p *Particle) Dimension() int                { return p.space.Dim() }
func (p *Particle) Particles() []circuit.Particle { return []circuit.Particle{p} }
func (p *Particle) Space() *backend.Space         { return p.space }
func (p *Particle) String() string                { return p.space.String() }

// holderLocked returns the particle's holder, creating |0⟩ on first use. Callers hold
// rt.mu.
func (p *Particle) holderLocked() *holder {
	if p.holder == nil {
		p.holder = &holder{state: p.space.Eigenstate(0), particles: []*Particle{p}}
	}
	return p.holder
}

// particles resolves the particles of an argument struct.
func (r *Runtime) particles(args ...any) ([]*Particle, error) {
	ps, err := circuit.Particles(args...)
	if err != nil {
		return nil, err
	}
	out := make([]*Particle, len(ps))
	for i, p := range ps {
		sp, ok := p.(*Particle)
		if !ok || sp.rt != r {
			return nil, errors.Wrapf(ErrForeignParticle, "%s", dispatch.Describe(p))
		}
		if slices.Contains(out[:i], sp) {
			return nil, errors.Wrapf(circuit.ErrShapeMismatch, "particle %s passed twice", sp)
		}
		out[i] = sp
	}
	return out, nil
}

func spacesOf(ps []*Particle) []*backend.Space {
	out := make([]*backend.Space, len(ps))
	for i, p := range ps {
		out[i] = p.space
	}
	return out
}

// merge joins the states of ps into one holder. Callers hold rt.mu.
func (r *Runtime) merge(ps []*Particle) *holder {
	var holders []*holder
	for _, p := range ps {
		h := p.holderLocked()
		if !slices.Contains(holders, h) {
			holders = append(holders, h)
		}
	}
	if len(holders) == 1 {
		return holders[0]
	}

	merged := &holder{state: holders[0].state, particles: slices.Clone(holders[0].particles)}
	for _, h := range holders[1:] {
		merged.state = backend.Product(merged.state, h.state)
		merged.particles = append(merged.particles, h.particles...)
	}
	for _, p := range merged.particles {
		p.holder = merged
	}
	log.Debug(log.CatRuntime, "merged states",
		"holders", len(holders),
		"particles", len(merged.particles),
		"dim", merged.state.Dim())
	return merged
}

// State returns the joint state of the particles in args, merging them if needed.
func (r *Runtime) State(args ...any) (backend.State, error) {
	ps, err := r.particles(args...)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.merge(ps).state, nil
}

// Probabilities returns the outcome distribution of measuring the particles in args,
// in argument order, without disturbing the state.
func (r *Runtime) Probabilities(args ...any) ([]float64, error) {
	ps, err := r.particles(args...)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	h := r.merge(ps)
	state := h.state
	r.mu.Unlock()

	targets := spacesOf(ps)
	all := state.Spaces()
	full := backend.Probabilities(state)

	strides := make(map[*backend.Space]int, len(all))
	stride := 1
	for i := len(all) - 1; i >= 0; i-- {
		strides[all[i]] = stride
		stride *= all[i].Dim()
	}

	size := backend.Dimension(targets)
	out := make([]float64, size)
	for idx, p := range full {
		k := 0
		for _, s := range targets {
			k = k*s.Dim() + (idx/strides[s])%s.Dim()
		}
		out[k] += p
	}
	return out, nil
}

func (r *Runtime) String() string {
	return fmt.Sprintf("StateVectorRuntime(%d particles)", r.Allocated())
}
