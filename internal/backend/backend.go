package backend

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/pkg/errors"
)

// Backend owns the random source used to sample measurement outcomes.
type Backend struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a backend seeded with seed. The same seed replays the same outcomes.
func New(seed uint64) *Backend {
	return &Backend{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandom returns a backend with an unpredictable seed.
func NewRandom() *Backend {
	return New(rand.Uint64())
}

// Choose picks an index with the given weights. Weights need not sum to one.
func (b *Backend) Choose(weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	b.mu.Lock()
	x := b.rng.Float64() * total
	b.mu.Unlock()

	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		if x < w {
			return i
		}
		x -= w
	}
	return last
}

// Outcome is one sampled measurement result.
type Outcome struct {
	Values []int
	Prob   float64
}

// Measure samples a projective measurement of targets in the computational basis and
// returns the outcome and the collapsed state.
func (b *Backend) Measure(s State, targets []*Space) (Outcome, State, error) {
	if len(targets) == 0 {
		return Outcome{}, nil, errors.Wrap(ErrShape, "measurement without targets")
	}
	spaces := s.Spaces()
	if _, err := positions(spaces, targets); err != nil {
		return Outcome{}, nil, err
	}

	sub := newLayout(targets)
	probs := make([]float64, sub.size)
	posts := make([]State, sub.size)
	for k := range sub.size {
		ops := make([]Matrix, len(targets))
		for i, t := range targets {
			ops[i] = t.Projector(sub.digit(k, i))
		}
		p, err := Embed(ProductOf(ops...), targets, spaces)
		if err != nil {
			return Outcome{}, nil, err
		}
		probs[k], posts[k] = projectWith(s, p)
	}

	k := b.Choose(probs)
	values := make([]int, len(targets))
	for i := range targets {
		values[i] = sub.digit(k, i)
	}
	return Outcome{Values: values, Prob: probs[k]}, posts[k], nil
}

type backendKey struct{}

// WithBackend returns a child of ctx in which b is the current backend.
func WithBackend(ctx context.Context, b *Backend) context.Context {
	return context.WithValue(ctx, backendKey{}, b)
}

// FromContext returns the current backend of ctx.
func FromContext(ctx context.Context) (*Backend, bool) {
	b, ok := ctx.Value(backendKey{}).(*Backend)
	return b, ok && b != nil
}
