// Package passes implements the compile passes and conversions over operations.
//
// FreezePass traces an operation on a symbolic runtime and replaces it by the
// sequence of calls it makes. FlattenPass repeats freezing until only leaf operations
// remain in a single Sequential. Generic compile implementations let any pass recurse
// through Sequential, Controlled and Remapped operations. Invert and ToMatrix are
// conversions built on the same machinery.
package passes

import (
	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/dispatch"
	"github.com/zjrosen/qcircuit/internal/operations"
	"github.com/zjrosen/qcircuit/internal/structure"
	"github.com/zjrosen/qcircuit/internal/traits"
)

var (
	FreezePassClass  = dispatch.NewClass("FreezePass", traits.CompilePassClass)
	FlattenPassClass = dispatch.NewClass("FlattenPass", traits.CompilePassClass)
)

// FreezePass decomposes operations into the calls they make. With nil Args the
// arguments are placeholders built from the operation's signature.
type FreezePass struct {
	Args []any
}

func (*FreezePass) Class() *dispatch.Class { return FreezePassClass }

// FlattenPass rewrites an operation into one Sequential of leaf operations.
type FlattenPass struct {
	Args []any
}

func (*FlattenPass) Class() *dispatch.Class { return FlattenPassClass }

// innerArgs returns the arguments a wrapper hands its inner operation, or nil when
// outer is nil or the mapping cannot be computed.
func innerArgs(w operations.Wrapper, outer []any) []any {
	if outer == nil {
		return nil
	}
	switch t := w.(type) {
	case operations.Remapped:
		inner, err := t.Remap(outer...)
		if err != nil {
			return nil
		}
		return inner
	case *operations.Controlled:
		if len(outer) != 2 {
			return nil
		}
		return targetArgs(outer[1])
	}
	return nil
}

// targetArgs spreads a controlled target into the inner operation's arguments.
func targetArgs(target any) []any {
	if _, ok := target.(circuit.System); ok {
		return []any{target}
	}
	frozen, err := structure.Freeze(target, circuit.SystemAtoms)
	if err != nil {
		return []any{target}
	}
	if t, ok := frozen.(structure.Tuple); ok {
		return t
	}
	return []any{target}
}
