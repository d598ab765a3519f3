// Package backend is the numeric layer behind the state-vector runtime: dense complex
// matrices, particle spaces, pure and mixed states, and the random source used for
// measurement sampling.
//
// States are ordered over their spaces with the first space most significant. Matrix
// operations panic on dimension mismatches; functions that take user supplied shapes
// return ErrShape instead.
package backend

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"github.com/pkg/errors"
)

// Tolerance is the absolute tolerance for numeric comparisons.
const Tolerance = 1e-9

// ErrShape is returned for matrices, vectors or states of the wrong size.
var ErrShape = errors.New("shape mismatch")

// Matrix is an immutable dense complex matrix stored row-major.
type Matrix struct {
	rows, cols int
	data       []complex128
}

// NewMatrix builds a matrix from rows. Every row must have the same length.
func NewMatrix(rows [][]complex128) (Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Matrix{}, errors.Wrap(ErrShape, "empty matrix")
	}
	m := Zeros(len(rows), len(rows[0]))
	for i, row := range rows {
		if len(row) != m.cols {
			return Matrix{}, errors.Wrapf(ErrShape, "row %d has %d columns, want %d", i, len(row), m.cols)
		}
		copy(m.data[i*m.cols:], row)
	}
	return m, nil
}

// MustMatrix is NewMatrix for literals; it panics on a ragged or empty input.
func MustMatrix(rows [][]complex128) Matrix {
	m, err := NewMatrix(rows)
	if err != nil {
		panic(err)
	}
	return m
}

// Zeros returns a rows x cols zero matrix.
func Zeros(rows, cols int) Matrix {
	return Matrix{rows: rows, cols: cols, data: make([]complex128, rows*cols)}
}

// Eye returns the n x n identity.
func Eye(n int) Matrix {
	m := Zeros(n, n)
	for i := range n {
		m.data[i*n+i] = 1
	}
	return m
}

// Diag returns the square matrix with d on its diagonal.
func Diag(d ...complex128) Matrix {
	m := Zeros(len(d), len(d))
	for i, v := range d {
		m.data[i*len(d)+i] = v
	}
	return m
}

func (m Matrix) Rows() int      { return m.rows }
func (m Matrix) Cols() int      { return m.cols }
func (m Matrix) IsSquare() bool { return m.rows == m.cols && m.rows > 0 }

// At returns the element at row i, column j.
func (m Matrix) At(i, j int) complex128 {
	return m.data[i*m.cols+j]
}

// ToRows copies the matrix into a slice of rows.
func (m Matrix) ToRows() [][]complex128 {
	out := make([][]complex128, m.rows)
	for i := range out {
		out[i] = append([]complex128(nil), m.data[i*m.cols:(i+1)*m.cols]...)
	}
	return out
}

func mustSameShape(a, b Matrix, op string) {
	if a.rows != b.rows || a.cols != b.cols {
		panic(fmt.Sprintf("backend: %s of %dx%d and %dx%d", op, a.rows, a.cols, b.rows, b.cols))
	}
}

// Mul returns m·o.
func (m Matrix) Mul(o Matrix) Matrix {
	if m.cols != o.rows {
		panic(fmt.Sprintf("backend: product of %dx%d and %dx%d", m.rows, m.cols, o.rows, o.cols))
	}
	out := Zeros(m.rows, o.cols)
	for i := range m.rows {
		for k := range m.cols {
			a := m.data[i*m.cols+k]
			if a == 0 {
				continue
			}
			for j := range o.cols {
				out.data[i*o.cols+j] += a * o.data[k*o.cols+j]
			}
		}
	}
	return out
}

// MulVec returns m·v.
func (m Matrix) MulVec(v []complex128) []complex128 {
	if m.cols != len(v) {
		panic(fmt.Sprintf("backend: product of %dx%d and vector of %d", m.rows, m.cols, len(v)))
	}
	out := make([]complex128, m.rows)
	for i := range m.rows {
		var s complex128
		for j, x := range v {
			s += m.data[i*m.cols+j] * x
		}
		out[i] = s
	}
	return out
}

// Kron returns the Kronecker product m⊗o.
func (m Matrix) Kron(o Matrix) Matrix {
	out := Zeros(m.rows*o.rows, m.cols*o.cols)
	for i := range m.rows {
		for j := range m.cols {
			a := m.data[i*m.cols+j]
			if a == 0 {
				continue
			}
			for k := range o.rows {
				for l := range o.cols {
					out.data[(i*o.rows+k)*out.cols+j*o.cols+l] = a * o.data[k*o.cols+l]
				}
			}
		}
	}
	return out
}

// Add returns m+o.
func (m Matrix) Add(o Matrix) Matrix {
	mustSameShape(m, o, "sum")
	out := Zeros(m.rows, m.cols)
	for i := range m.data {
		out.data[i] = m.data[i] + o.data[i]
	}
	return out
}

// Sub returns m-o.
func (m Matrix) Sub(o Matrix) Matrix {
	mustSameShape(m, o, "difference")
	out := Zeros(m.rows, m.cols)
	for i := range m.data {
		out.data[i] = m.data[i] - o.data[i]
	}
	return out
}

// Scale returns c·m.
func (m Matrix) Scale(c complex128) Matrix {
	out := Zeros(m.rows, m.cols)
	for i, v := range m.data {
		out.data[i] = c * v
	}
	return out
}

// Dagger returns the conjugate transpose.
func (m Matrix) Dagger() Matrix {
	out := Zeros(m.cols, m.rows)
	for i := range m.rows {
		for j := range m.cols {
			out.data[j*m.rows+i] = cmplx.Conj(m.data[i*m.cols+j])
		}
	}
	return out
}

// Trace returns the sum of the diagonal.
func (m Matrix) Trace() complex128 {
	var t complex128
	for i := range min(m.rows, m.cols) {
		t += m.data[i*m.cols+i]
	}
	return t
}

// Equal reports whether m and o have the same shape and elements within tol.
func (m Matrix) Equal(o Matrix, tol float64) bool {
	if m.rows != o.rows || m.cols != o.cols {
		return false
	}
	for i := range m.data {
		if cmplx.Abs(m.data[i]-o.data[i]) > tol {
			return false
		}
	}
	return true
}

// IsUnitary reports whether m·m† is the identity within tol.
func (m Matrix) IsUnitary(tol float64) bool {
	return m.IsSquare() && m.Mul(m.Dagger()).Equal(Eye(m.rows), tol)
}

func (m Matrix) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i := range m.rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('[')
		for j := range m.cols {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatComplex(m.At(i, j)))
		}
		b.WriteByte(']')
	}
	b.WriteByte(']')
	return b.String()
}

func formatComplex(c complex128) string {
	re, im := roundSmall(real(c)), roundSmall(imag(c))
	switch {
	case im == 0:
		return fmt.Sprintf("%.4g", re)
	case re == 0:
		return fmt.Sprintf("%.4gi", im)
	}
	return fmt.Sprintf("%.4g%+.4gi", re, im)
}

func roundSmall(x float64) float64 {
	if math.Abs(x) < Tolerance {
		return 0
	}
	return x
}

// Log2 returns n such that 1<<n == x, or false when x is not a power of two.
func Log2(x int) (int, bool) {
	if x <= 0 || x&(x-1) != 0 {
		return 0, false
	}
	n := 0
	for x > 1 {
		x >>= 1
		n++
	}
	return n, true
}
