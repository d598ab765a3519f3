package circuitfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/qcircuit/internal/backend"
	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/operations"
	"github.com/zjrosen/qcircuit/internal/runtime/statevector"
	"github.com/zjrosen/qcircuit/internal/runtime/symbolic"
)

const ghzSource = `
name: ghz
qubits: [a, b, c]
definitions:
  - name: entangle
    params: [x, y]
    steps:
      - op: CX
        on: [x, y]
steps:
  - op: H
    on: [a]
  - op: entangle
    on: [a, b]
  - op: entangle
    on: [b, c]
`

func TestParse_Valid(t *testing.T) {
	f, err := Parse([]byte(ghzSource))
	require.NoError(t, err)
	require.Equal(t, "ghz", f.Name)
	require.Equal(t, []string{"a", "b", "c"}, f.Qubits)
	require.Len(t, f.Definitions, 1)
	require.Len(t, f.Steps, 3)
	require.Equal(t, 1, f.Steps[0].Times())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr string
	}{
		{"missing name", "qubits: [a]\nsteps: []", "name is required"},
		{"no qubits", "name: x\nsteps: []", "at least one qubit"},
		{"duplicate qubit", "name: x\nqubits: [a, a]", "duplicate qubit"},
		{"unknown op", "name: x\nqubits: [a]\nsteps:\n  - op: Foo\n    on: [a]", "unknown op"},
		{"out of scope", "name: x\nqubits: [a]\nsteps:\n  - op: X\n    on: [b]", "not in scope"},
		{"missing theta", "name: x\nqubits: [a]\nsteps:\n  - op: Rz\n    on: [a]", "needs theta"},
		{"unexpected theta", "name: x\nqubits: [a]\nsteps:\n  - op: X\n    theta: 1\n    on: [a]", "takes no theta"},
		{"reused qubit", "name: x\nqubits: [a]\nsteps:\n  - op: X\n    control: [a]\n    on: [a]", "used twice"},
		{"controlled measurement", "name: x\nqubits: [a, b]\nsteps:\n  - op: M\n    control: [a]\n    on: [b]", "cannot be controlled"},
		{"shadowed builtin", "name: x\nqubits: [a]\ndefinitions:\n  - name: H\n    params: [q]", "shadows"},
		{"forward definition", "name: x\nqubits: [a]\ndefinitions:\n  - name: one\n    params: [q]\n    steps:\n      - op: two\n        on: [q]\n  - name: two\n    params: [q]", "unknown op"},
		{"negative repeat", "name: x\nqubits: [a]\nsteps:\n  - op: X\n    on: [a]\n    repeat: -1", "repeat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.source))
			require.ErrorIs(t, err, ErrInvalid)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("name: x\nqubits: [a]\ncolour: red"))
	require.Error(t, err)
}

func TestBuild_TracesIntoSteps(t *testing.T) {
	f, err := Parse([]byte(ghzSource))
	require.NoError(t, err)
	op, err := f.Build()
	require.NoError(t, err)
	require.Equal(t, "ghz", op.Name())
	require.Equal(t, []string{"a", "b", "c"}, op.Signature().Params)

	a, b, c := symbolic.NewQubit("a"), symbolic.NewQubit("b"), symbolic.NewQubit("c")
	rt := symbolic.New()
	_, err = op.Call(circuit.WithRuntime(context.Background(), rt), a, b, c)
	require.NoError(t, err)

	calls := rt.Calls()
	require.Len(t, calls, 3)
	require.Same(t, operations.H, calls[0].Op)
	require.Equal(t, "entangle", calls[1].Op.Name())
	require.Same(t, calls[1].Op, calls[2].Op, "definitions are built once")
	require.Equal(t, []any{b, c}, calls[2].Args)
}

func TestBuild_ControlAndRepeat(t *testing.T) {
	f, err := Parse([]byte(`
name: ctl
qubits: [a, b, c]
steps:
  - op: Rz
    theta: 0.5
    control: [a, b]
    on: [c]
  - op: X
    on: [a]
    repeat: 3
`))
	require.NoError(t, err)
	op, err := f.Build()
	require.NoError(t, err)

	a, b, c := symbolic.NewQubit("a"), symbolic.NewQubit("b"), symbolic.NewQubit("c")
	rt := symbolic.New()
	_, err = op.Call(circuit.WithRuntime(context.Background(), rt), a, b, c)
	require.NoError(t, err)

	calls := rt.Calls()
	require.Len(t, calls, 4)
	ctl, ok := calls[0].Op.(*operations.Controlled)
	require.True(t, ok)
	require.InDelta(t, 0.5, ctl.Inner().(*operations.Rotation).Theta(), 1e-12)
	require.Len(t, calls[0].Args, 2)
	require.Equal(t, c, calls[0].Args[1])
	for _, call := range calls[1:] {
		require.Same(t, operations.X, call.Op)
	}
}

func TestBuiltins_RunOnStateVector(t *testing.T) {
	files, err := LoadBuiltin()
	require.NoError(t, err)
	require.NotEmpty(t, files)

	want := map[string][]string{
		"bell":    {"00", "11"},
		"ghz":     {"000", "111"},
		"toffoli": {"111"},
	}
	for _, f := range files {
		t.Run(f.Name, func(t *testing.T) {
			op, err := f.Build()
			require.NoError(t, err)
			counts, err := statevector.Sample(context.Background(), backend.New(3), op, len(f.Qubits), 64)
			require.NoError(t, err)
			if keys, ok := want[f.Name]; ok {
				require.Equal(t, keys, counts.Keys())
			}
		})
	}
}

func TestResolve(t *testing.T) {
	f, err := Resolve("bell")
	require.NoError(t, err)
	require.Equal(t, "bell", f.Name)

	path := filepath.Join(t.TempDir(), "mine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ghzSource), 0o600))
	f, err = Resolve(path)
	require.NoError(t, err)
	require.Equal(t, "ghz", f.Name)

	_, err = Resolve("no-such-circuit")
	require.Error(t, err)
}

func TestBuiltinOps(t *testing.T) {
	ops := BuiltinOps()
	require.Contains(t, ops, "H")
	require.Contains(t, ops, "Rz")
	require.IsIncreasing(t, ops)
}
