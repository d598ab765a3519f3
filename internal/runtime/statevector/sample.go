package statevector

import (
	"context"
	"maps"
	"slices"

	"github.com/pkg/errors"

	"github.com/zjrosen/qcircuit/internal/backend"
	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/log"
	"github.com/zjrosen/qcircuit/internal/operations"
)

// Counts maps measured bit strings to the number of shots that produced them.
type Counts map[string]int

// Keys returns the bit strings in lexical order.
func (c Counts) Keys() []string {
	return slices.Sorted(maps.Keys(c))
}

// Sample runs op on n fresh qubits shots times and measures every qubit at the end of
// each shot. All shots draw from b.
func Sample(ctx context.Context, b *backend.Backend, op circuit.Operation, n, shots int) (Counts, error) {
	counts := make(Counts)
	for shot := range shots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rt := New(b)
		sctx := circuit.WithRuntime(ctx, rt)
		qs, err := circuit.AllocateQubits(sctx, n, circuit.Prefixed("q"))
		if err != nil {
			return nil, err
		}
		args := qs.Items()
		if _, err := circuit.Invoke(sctx, op, args...); err != nil {
			return nil, errors.WithMessagef(err, "shot %d", shot)
		}
		res, err := circuit.Invoke(sctx, operations.M, args...)
		if err != nil {
			return nil, errors.WithMessagef(err, "shot %d: final measurement", shot)
		}
		counts[res.(operations.MeasurementResult).Bits()]++
	}
	log.Debug(log.CatRuntime, "sampled operation",
		"operation", circuit.Describe(op),
		"qubits", n,
		"shots", shots,
		"outcomes", len(counts))
	return counts, nil
}
