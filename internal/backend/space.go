package backend

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
)

// Space is the Hilbert space of one particle. Spaces are compared by pointer.
type Space struct {
	dim  int
	name string
}

// NewSpace returns a fresh space of dim levels.
func NewSpace(dim int, name string) *Space {
	if dim < 1 {
		panic(fmt.Sprintf("backend: space dimension %d", dim))
	}
	return &Space{dim: dim, name: name}
}

func (s *Space) Dim() int     { return s.dim }
func (s *Space) Name() string { return s.name }

func (s *Space) String() string {
	if s.name != "" {
		return s.name
	}
	return fmt.Sprintf("space%d@%p", s.dim, s)
}

// Identity returns the identity operator on s.
func (s *Space) Identity() Matrix { return Eye(s.dim) }

// Projector returns |k⟩⟨k| on s.
func (s *Space) Projector(k int) Matrix {
	m := Zeros(s.dim, s.dim)
	m.data[k*s.dim+k] = 1
	return m
}

// Eigenstate returns the basis state |k⟩ of s.
func (s *Space) Eigenstate(k int) *PureState {
	amps := make([]complex128, s.dim)
	amps[k] = 1
	return &PureState{spaces: []*Space{s}, amps: amps}
}

// Dimension returns the product of the dimensions of spaces.
func Dimension(spaces []*Space) int {
	d := 1
	for _, s := range spaces {
		d *= s.dim
	}
	return d
}

// layout maps flat indices over an ordered space list to per-space digits.
type layout struct {
	dims    []int
	strides []int
	size    int
}

func newLayout(spaces []*Space) layout {
	l := layout{dims: make([]int, len(spaces)), strides: make([]int, len(spaces)), size: 1}
	for i := len(spaces) - 1; i >= 0; i-- {
		l.dims[i] = spaces[i].dim
		l.strides[i] = l.size
		l.size *= spaces[i].dim
	}
	return l
}

func (l layout) digit(idx, pos int) int {
	return (idx / l.strides[pos]) % l.dims[pos]
}

// positions returns the position of every target within spaces.
func positions(spaces, targets []*Space) ([]int, error) {
	out := make([]int, len(targets))
	for i, t := range targets {
		p := slices.Index(spaces, t)
		if p < 0 {
			return nil, errors.Wrapf(ErrShape, "space %s is not part of the state", t)
		}
		if slices.Contains(out[:i], p) {
			return nil, errors.Wrapf(ErrShape, "space %s is targeted twice", t)
		}
		out[i] = p
	}
	return out, nil
}

// Embed lifts op, acting on targets in that order, to an operator on spaces. Spaces
// outside targets get the identity.
func Embed(op Matrix, targets, spaces []*Space) (Matrix, error) {
	pos, err := positions(spaces, targets)
	if err != nil {
		return Matrix{}, err
	}
	sub := newLayout(targets)
	if op.rows != sub.size || op.cols != sub.size {
		return Matrix{}, errors.Wrapf(ErrShape, "operator is %dx%d, targets span %d", op.rows, op.cols, sub.size)
	}
	full := newLayout(spaces)
	out := Zeros(full.size, full.size)

	for r := range full.size {
		tr := 0
		base := r
		for i, p := range pos {
			d := full.digit(r, p)
			tr += d * sub.strides[i]
			base -= d * full.strides[p]
		}
		for tc := range sub.size {
			v := op.data[tr*op.cols+tc]
			if v == 0 {
				continue
			}
			c := base
			for i, p := range pos {
				c += sub.digit(tc, i) * full.strides[p]
			}
			out.data[r*full.size+c] = v
		}
	}
	return out, nil
}

// ProductOf returns the Kronecker product of ops in order. No ops give the 1x1 identity.
func ProductOf(ops ...Matrix) Matrix {
	acc := Eye(1)
	for _, op := range ops {
		acc = acc.Kron(op)
	}
	return acc
}
