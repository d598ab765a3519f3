package backend

import (
	"math"
	"math/cmplx"
	"slices"

	"github.com/pkg/errors"
)

// State is a joint state over an ordered list of spaces.
type State interface {
	Spaces() []*Space
	// Dim is the product of the space dimensions.
	Dim() int
	isState()
}

// PureState is a normalised ket.
type PureState struct {
	spaces []*Space
	amps   []complex128
}

// MixedState is a density matrix.
type MixedState struct {
	spaces []*Space
	rho    Matrix
}

// NewPureState builds a pure state over spaces from amplitudes and normalises it.
func NewPureState(spaces []*Space, amps []complex128) (*PureState, error) {
	if want := Dimension(spaces); len(amps) != want {
		return nil, errors.Wrapf(ErrShape, "%d amplitudes for a state of dimension %d", len(amps), want)
	}
	n := norm(amps)
	if n < Tolerance {
		return nil, errors.Wrap(ErrShape, "zero state vector")
	}
	out := make([]complex128, len(amps))
	for i, a := range amps {
		out[i] = a / complex(n, 0)
	}
	return &PureState{spaces: slices.Clone(spaces), amps: out}, nil
}

func (s *PureState) Spaces() []*Space { return slices.Clone(s.spaces) }
func (s *PureState) Dim() int         { return len(s.amps) }
func (*PureState) isState()           {}

// Amplitudes returns a copy of the state vector.
func (s *PureState) Amplitudes() []complex128 { return slices.Clone(s.amps) }

func (s *MixedState) Spaces() []*Space { return slices.Clone(s.spaces) }
func (s *MixedState) Dim() int         { return s.rho.rows }
func (*MixedState) isState()           {}

// Density returns the density matrix.
func (s *MixedState) Density() Matrix { return s.rho }

// ToMixed returns s as a density matrix.
func ToMixed(s State) *MixedState {
	switch t := s.(type) {
	case *MixedState:
		return t
	case *PureState:
		d := len(t.amps)
		rho := Zeros(d, d)
		for i, a := range t.amps {
			for j, b := range t.amps {
				rho.data[i*d+j] = a * cmplx.Conj(b)
			}
		}
		return &MixedState{spaces: slices.Clone(t.spaces), rho: rho}
	}
	panic("backend: unknown state type")
}

// Product returns the joint state a⊗b. Two pure states stay pure.
func Product(a, b State) State {
	spaces := append(a.Spaces(), b.Spaces()...)
	pa, okA := a.(*PureState)
	pb, okB := b.(*PureState)
	if okA && okB {
		amps := make([]complex128, 0, len(pa.amps)*len(pb.amps))
		for _, x := range pa.amps {
			for _, y := range pb.amps {
				amps = append(amps, x*y)
			}
		}
		return &PureState{spaces: spaces, amps: amps}
	}
	return &MixedState{spaces: spaces, rho: ToMixed(a).rho.Kron(ToMixed(b).rho)}
}

// ApplyOperator applies op, acting on targets in that order, to s.
func ApplyOperator(s State, op Matrix, targets []*Space) (State, error) {
	full, err := Embed(op, targets, s.Spaces())
	if err != nil {
		return nil, err
	}
	return transform(s, full), nil
}

func transform(s State, full Matrix) State {
	switch t := s.(type) {
	case *PureState:
		return &PureState{spaces: t.spaces, amps: full.MulVec(t.amps)}
	case *MixedState:
		return &MixedState{spaces: t.spaces, rho: full.Mul(t.rho).Mul(full.Dagger())}
	}
	panic("backend: unknown state type")
}

// ControlProjectors returns the projector onto |1⟩ of every control space, and its
// complement, both embedded in spaces.
func ControlProjectors(control, spaces []*Space) (on, off Matrix, err error) {
	ops := make([]Matrix, len(control))
	for i, c := range control {
		ops[i] = c.Projector(1)
	}
	on, err = Embed(ProductOf(ops...), control, spaces)
	if err != nil {
		return Matrix{}, Matrix{}, err
	}
	return on, Eye(on.rows).Sub(on), nil
}

// Recombine merges the branch where every control space is |1⟩ from on with the
// remaining branch from off. Both states must be over the same spaces. The result is
// pure when both inputs are.
func Recombine(on, off State, control []*Space) (State, error) {
	spaces := off.Spaces()
	if !slices.Equal(spaces, on.Spaces()) {
		return nil, errors.Wrap(ErrShape, "recombined states span different spaces")
	}
	pOn, pOff, err := ControlProjectors(control, spaces)
	if err != nil {
		return nil, err
	}
	sOn, okOn := on.(*PureState)
	sOff, okOff := off.(*PureState)
	if okOn && okOff {
		a, b := pOn.MulVec(sOn.amps), pOff.MulVec(sOff.amps)
		for i := range a {
			a[i] += b[i]
		}
		return &PureState{spaces: spaces, amps: a}, nil
	}
	rOn, rOff := ToMixed(on).rho, ToMixed(off).rho
	rho := pOn.Mul(rOn).Mul(pOn).Add(pOff.Mul(rOff).Mul(pOff))
	return &MixedState{spaces: spaces, rho: rho}, nil
}

// Project projects targets of s onto the basis values and renormalises. It returns the
// probability of that outcome. A zero probability leaves s unchanged.
func Project(s State, targets []*Space, values []int) (float64, State, error) {
	if len(values) != len(targets) {
		return 0, nil, errors.Wrapf(ErrShape, "%d values for %d targets", len(values), len(targets))
	}
	ops := make([]Matrix, len(targets))
	for i, t := range targets {
		if values[i] < 0 || values[i] >= t.dim {
			return 0, nil, errors.Wrapf(ErrShape, "value %d out of range for %s", values[i], t)
		}
		ops[i] = t.Projector(values[i])
	}
	p, err := Embed(ProductOf(ops...), targets, s.Spaces())
	if err != nil {
		return 0, nil, err
	}
	prob, post := projectWith(s, p)
	if prob < Tolerance {
		return 0, s, nil
	}
	return prob, post, nil
}

// projectWith applies projector p without checking the outcome probability.
func projectWith(s State, p Matrix) (float64, State) {
	switch t := s.(type) {
	case *PureState:
		amps := p.MulVec(t.amps)
		n := norm(amps)
		prob := n * n
		if n > 0 {
			for i := range amps {
				amps[i] /= complex(n, 0)
			}
		}
		return prob, &PureState{spaces: t.spaces, amps: amps}
	case *MixedState:
		rho := p.Mul(t.rho).Mul(p)
		prob := real(rho.Trace())
		if prob > 0 {
			rho = rho.Scale(complex(1/prob, 0))
		}
		return prob, &MixedState{spaces: t.spaces, rho: rho}
	}
	panic("backend: unknown state type")
}

// Probabilities returns the probability of every basis state of s.
func Probabilities(s State) []float64 {
	switch t := s.(type) {
	case *PureState:
		out := make([]float64, len(t.amps))
		for i, a := range t.amps {
			out[i] = real(a * cmplx.Conj(a))
		}
		return out
	case *MixedState:
		out := make([]float64, t.rho.rows)
		for i := range out {
			out[i] = real(t.rho.At(i, i))
		}
		return out
	}
	panic("backend: unknown state type")
}

func norm(v []complex128) float64 {
	var s float64
	for _, a := range v {
		s += real(a * cmplx.Conj(a))
	}
	return math.Sqrt(s)
}
