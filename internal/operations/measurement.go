package operations

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
	"github.com/zjrosen/qcircuit/internal/structure"
)

var (
	ProjectiveMeasurementClass = dispatch.NewClass("ProjectiveMeasurement", circuit.OperationClass)
	DesiredMeasurementClass    = dispatch.NewClass("DesiredMeasurement", circuit.OperationClass)
	PureStatePreparationClass  = dispatch.NewClass("PureStatePreparation", circuit.OperationClass)
)

// MeasurementResult is the outcome of a projective measurement: one basis value per
// measured particle, in argument order, and the probability of that outcome.
type MeasurementResult struct {
	Target structure.Tuple
	Values []int
	Prob   float64
}

// Bits renders the values as a string such as "011".
func (r MeasurementResult) Bits() string {
	b := make([]byte, 0, len(r.Values))
	for _, v := range r.Values {
		b = fmt.Appendf(b, "%d", v)
	}
	return string(b)
}

// ProjectiveMeasurement measures every particle of its arguments in the computational
// basis. Its result is a MeasurementResult.
type ProjectiveMeasurement struct {
	circuit.Base
}

func (*ProjectiveMeasurement) Class() *dispatch.Class { return ProjectiveMeasurementClass }

// M is the projective measurement.
var M = &ProjectiveMeasurement{Base: circuit.NewBase("M")}

// DesiredMeasurement post-selects the given basis values on its arguments. Its result
// is the probability of the outcome; a zero probability leaves the state unchanged.
type DesiredMeasurement struct {
	circuit.Base
	values []int
}

// NewDesiredMeasurement selects values, one per measured particle.
func NewDesiredMeasurement(values ...int) *DesiredMeasurement {
	return &DesiredMeasurement{Base: circuit.NewBase("DM"), values: slices.Clone(values)}
}

func (*DesiredMeasurement) Class() *dispatch.Class { return DesiredMeasurementClass }
func (d *DesiredMeasurement) Values() []int        { return slices.Clone(d.values) }

func (d *DesiredMeasurement) String() string {
	return fmt.Sprintf("DM%v", d.values)
}

// PureStatePreparation replaces the state of its arguments with the given amplitudes.
// The targets must not be entangled with any other particle.
type PureStatePreparation struct {
	circuit.Base
	amplitudes []complex128
}

// NewPureStatePreparation prepares amplitudes, which must not all be zero.
func NewPureStatePreparation(amplitudes ...complex128) (*PureStatePreparation, error) {
	nonzero := slices.ContainsFunc(amplitudes, func(a complex128) bool { return a != 0 })
	if !nonzero {
		return nil, errors.Wrap(circuit.ErrShapeMismatch, "state preparation needs a nonzero amplitude")
	}
	return &PureStatePreparation{Base: circuit.NewBase("Prepare"), amplitudes: slices.Clone(amplitudes)}, nil
}

func (*PureStatePreparation) Class() *dispatch.Class     { return PureStatePreparationClass }
func (p *PureStatePreparation) Amplitudes() []complex128 { return slices.Clone(p.amplitudes) }
