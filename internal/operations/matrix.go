package operations

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/pkg/errors"

	"github.com/zjrosen/qcircuit/internal/backend"
	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
)

var (
	MatrixOperationClass       = dispatch.NewClass("MatrixOperation", circuit.OperationClass)
	QubitsMatrixOperationClass = dispatch.NewClass("QubitsMatrixOperation", MatrixOperationClass)
	RotationClass              = dispatch.NewClass("Rotation", QubitsMatrixOperationClass)
	RxClass                    = dispatch.NewClass("Rx", RotationClass)
	RyClass                    = dispatch.NewClass("Ry", RotationClass)
	RzClass                    = dispatch.NewClass("Rz", RotationClass)
	PhaseClass                 = dispatch.NewClass("Phase", RotationClass)
	IdentityClass              = dispatch.NewClass("Identity", circuit.OperationClass)
)

// Matrixer is implemented by operations fully described by a constant matrix.
type Matrixer interface {
	circuit.Operation
	Matrix() backend.Matrix
}

// MatrixOperation applies a constant N×N matrix to the joint space of its arguments.
type MatrixOperation struct {
	circuit.Base
	class  *dispatch.Class
	matrix backend.Matrix
}

// NewMatrixOperation validates that m is square.
func NewMatrixOperation(name string, m backend.Matrix) (*MatrixOperation, error) {
	if !m.IsSquare() {
		return nil, errors.Wrapf(circuit.ErrShapeMismatch, "expected matrix shape (N, N), got (%d, %d)", m.Rows(), m.Cols())
	}
	return &MatrixOperation{Base: circuit.NewBase(name), class: MatrixOperationClass, matrix: m}, nil
}

// NewQubitsMatrixOperation validates that m is 2^n × 2^n.
func NewQubitsMatrixOperation(name string, m backend.Matrix) (*MatrixOperation, error) {
	op, err := NewMatrixOperation(name, m)
	if err != nil {
		return nil, err
	}
	if _, ok := backend.Log2(m.Rows()); !ok {
		return nil, errors.Wrapf(circuit.ErrShapeMismatch, "expected matrix shape (2**n, 2**n), got (%d, %d)", m.Rows(), m.Cols())
	}
	op.class = QubitsMatrixOperationClass
	return op, nil
}

func mustQubitsMatrix(name string, rows [][]complex128) *MatrixOperation {
	op, err := NewQubitsMatrixOperation(name, backend.MustMatrix(rows))
	if err != nil {
		panic(err)
	}
	return op
}

func (m *MatrixOperation) Class() *dispatch.Class { return m.class }
func (m *MatrixOperation) Matrix() backend.Matrix { return m.matrix }

// N is the matrix dimension.
func (m *MatrixOperation) N() int { return m.matrix.Rows() }

// Qubits is log2(N) for qubit matrices and -1 otherwise.
func (m *MatrixOperation) Qubits() int {
	n, ok := backend.Log2(m.N())
	if !ok || !m.class.IsA(QubitsMatrixOperationClass) {
		return -1
	}
	return n
}

func (m *MatrixOperation) String() string {
	if m.Name() != "" {
		return m.Name()
	}
	return m.matrix.String()
}

// Rotation is a single-qubit gate parametrised by an angle.
type Rotation struct {
	MatrixOperation
	theta float64
}

func newRotation(class *dispatch.Class, name string, theta float64, rows [][]complex128) *Rotation {
	return &Rotation{
		MatrixOperation: MatrixOperation{Base: circuit.NewBase(name), class: class, matrix: backend.MustMatrix(rows)},
		theta:           theta,
	}
}

// Theta returns the rotation angle in radians.
func (r *Rotation) Theta() float64 { return r.theta }

// WithTheta returns a rotation about the same axis by theta.
func (r *Rotation) WithTheta(theta float64) *Rotation {
	switch r.class {
	case RxClass:
		return Rx(theta)
	case RyClass:
		return Ry(theta)
	case RzClass:
		return Rz(theta)
	}
	return Phase(theta)
}

// Rx rotates about the X axis.
func Rx(theta float64) *Rotation {
	c, s := complex(math.Cos(theta/2), 0), complex(math.Sin(theta/2), 0)
	return newRotation(RxClass, "Rx", theta, [][]complex128{
		{c, -1i * s},
		{-1i * s, c},
	})
}

// Ry rotates about the Y axis.
func Ry(theta float64) *Rotation {
	c, s := complex(math.Cos(theta/2), 0), complex(math.Sin(theta/2), 0)
	return newRotation(RyClass, "Ry", theta, [][]complex128{
		{c, -s},
		{s, c},
	})
}

// Rz rotates about the Z axis.
func Rz(theta float64) *Rotation {
	h := complex(0, theta/2)
	return newRotation(RzClass, "Rz", theta, [][]complex128{
		{cmplx.Exp(-h), 0},
		{0, cmplx.Exp(h)},
	})
}

// Phase multiplies |1⟩ by e^{iθ}.
func Phase(theta float64) *Rotation {
	return newRotation(PhaseClass, "Phase", theta, [][]complex128{
		{1, 0},
		{0, cmplx.Exp(complex(0, theta))},
	})
}

// Identity does nothing on any arguments.
type Identity struct {
	circuit.Base
}

func (*Identity) Class() *dispatch.Class { return IdentityClass }

func applyIdentity(context.Context, circuit.Runtime, circuit.Operation, ...any) (any, error) {
	return nil, nil
}

var (
	invSqrt2 = complex(1/math.Sqrt2, 0)
	eighth   = cmplx.Exp(complex(0, math.Pi/4))
)

// Gate singletons.
var (
	I   = &Identity{Base: circuit.NewBase("I")}
	X   = mustQubitsMatrix("X", [][]complex128{{0, 1}, {1, 0}})
	Y   = mustQubitsMatrix("Y", [][]complex128{{0, -1i}, {1i, 0}})
	Z   = mustQubitsMatrix("Z", [][]complex128{{1, 0}, {0, -1}})
	S   = mustQubitsMatrix("S", [][]complex128{{1, 0}, {0, 1i}})
	T   = mustQubitsMatrix("T", [][]complex128{{1, 0}, {0, eighth}})
	Sdg = mustQubitsMatrix("Sdg", [][]complex128{{1, 0}, {0, -1i}})
	Tdg = mustQubitsMatrix("Tdg", [][]complex128{{1, 0}, {0, cmplx.Conj(eighth)}})
	H   = mustQubitsMatrix("H", [][]complex128{{invSqrt2, invSqrt2}, {invSqrt2, -invSqrt2}})
	NOT = X

	CX   = NewControlled("CX", X)
	CY   = NewControlled("CY", Y)
	CZ   = NewControlled("CZ", Z)
	CNOT = CX
)

func (r *Rotation) String() string {
	return fmt.Sprintf("%s(%g)", r.Name(), r.theta)
}
