package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/circuitfile"
	"github.com/zjrosen/qcircuit/internal/log"
	"github.com/zjrosen/qcircuit/internal/passes"
	"github.com/zjrosen/qcircuit/internal/traits"
)

// Pass names accepted by --pass.
const (
	passNone    = "none"
	passFreeze  = "freeze"
	passFlatten = "flatten"
	passInvert  = "invert"
)

var passNames = []string{passNone, passFreeze, passFlatten, passInvert}

// loadCircuit resolves target to a circuit file and builds it.
func loadCircuit(target string) (*circuitfile.File, *circuit.Custom, error) {
	f, err := circuitfile.Resolve(target)
	if err != nil {
		return nil, nil, err
	}
	op, err := f.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("building %s: %w", f.Name, err)
	}
	log.Debug(log.CatCLI, "Loaded circuit", "target", target, "name", f.Name, "qubits", len(f.Qubits))
	return f, op, nil
}

// applyPass runs the named compile pass over op.
func applyPass(ctx context.Context, name string, op circuit.Operation) (circuit.Operation, error) {
	switch name {
	case "", passNone:
		return op, nil
	case passFreeze:
		return traits.Compile(ctx, &passes.FreezePass{}, op)
	case passFlatten:
		return traits.Compile(ctx, &passes.FlattenPass{}, op)
	case passInvert:
		return passes.Inverse(ctx, op)
	default:
		return nil, fmt.Errorf("unknown pass %q (want one of %s)", name, strings.Join(passNames, ", "))
	}
}

func validPass(name string) error {
	if name == "" || slices.Contains(passNames, name) {
		return nil
	}
	return fmt.Errorf("unknown pass %q (want one of %s)", name, strings.Join(passNames, ", "))
}
