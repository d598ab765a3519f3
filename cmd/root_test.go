package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/qcircuit/internal/presentation"
	"github.com/zjrosen/qcircuit/internal/tracing"
)

// resetFlags restores every flag to its default so tests don't leak state through the
// package-level command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// writeConfig writes a config that keeps the history database inside the test dir.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "runtime:\n  shots: 64\nstore:\n  enabled: true\n  path: " + filepath.Join(dir, "history.db") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decodeRun(t *testing.T, out string) presentation.RunDTO {
	t.Helper()
	var run presentation.RunDTO
	require.NoError(t, json.Unmarshal([]byte(out), &run), out)
	return run
}

func TestRun_BellRecordsHistory(t *testing.T) {
	cfgPath := writeConfig(t)

	out, _, err := execute(t, cfgPath, "run", "bell", "--shots", "50", "--seed", "3", "--json")
	require.NoError(t, err)
	run := decodeRun(t, out)
	require.Equal(t, "bell", run.Circuit)
	require.Equal(t, 50, run.Shots)
	require.Equal(t, uint64(3), run.Seed)
	total := 0
	for _, o := range run.Outcomes {
		require.Contains(t, []string{"00", "11"}, o.Bits)
		total += o.Count
	}
	require.Equal(t, 50, total)

	out, _, err = execute(t, cfgPath, "history", "--json")
	require.NoError(t, err)
	var runs []presentation.RunDTO
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	require.NotEmpty(t, runs[0].ID)

	out, _, err = execute(t, cfgPath, "history", runs[0].ID, "--json")
	require.NoError(t, err)
	require.Equal(t, run.Outcomes, decodeRun(t, out).Outcomes)
}

func TestRun_SeedReplaysAcrossPasses(t *testing.T) {
	cfgPath := writeConfig(t)

	plain, _, err := execute(t, cfgPath, "run", "ghz", "--seed", "11", "--json", "--no-record")
	require.NoError(t, err)
	flat, _, err := execute(t, cfgPath, "run", "ghz", "--seed", "11", "--json", "--no-record", "--pass", "flatten")
	require.NoError(t, err)

	require.Equal(t, 64, decodeRun(t, plain).Shots, "shots default comes from the config file")
	require.Equal(t, decodeRun(t, plain).Outcomes, decodeRun(t, flat).Outcomes)

	out, _, err := execute(t, cfgPath, "history", "--json")
	require.NoError(t, err)
	require.JSONEq(t, "[]", out, "--no-record leaves the history empty")
}

func TestRun_Errors(t *testing.T) {
	cfgPath := writeConfig(t)

	_, _, err := execute(t, cfgPath, "run", "no-such-circuit")
	require.Error(t, err)

	_, _, err = execute(t, cfgPath, "run", "bell", "--pass", "bogus")
	require.ErrorContains(t, err, "unknown pass")

	_, _, err = execute(t, cfgPath, "run", "bell", "--shots", "-1")
	require.ErrorContains(t, err, "--shots")
}

func TestCompile_FlattenTree(t *testing.T) {
	cfgPath := writeConfig(t)

	out, _, err := execute(t, cfgPath, "compile", "ghz", "--pass", "flatten", "--no-color")
	require.NoError(t, err)
	require.Contains(t, out, "H @ 0\n")
	require.Contains(t, out, "CX @ 0, 1\n")
	require.Contains(t, out, "CX @ 1, 2\n")
	require.NotContains(t, out, "entangle")
}

func TestCompile_Diff(t *testing.T) {
	cfgPath := writeConfig(t)

	out, _, err := execute(t, cfgPath, "compile", "bell", "--pass", "freeze", "--diff", "--no-color")
	require.NoError(t, err)
	require.Contains(t, out, "- bell\n")
	require.Contains(t, out, "+   H @ 0\n")
	require.Contains(t, out, "+   C(X) @ 0, 1\n")
}

func TestCompile_FileArgument(t *testing.T) {
	cfgPath := writeConfig(t)
	circuit := filepath.Join(t.TempDir(), "flip.yaml")
	require.NoError(t, os.WriteFile(circuit, []byte("name: flip\nqubits: [q]\nsteps:\n  - op: X\n    on: [q]\n"), 0o600))

	out, _, err := execute(t, cfgPath, "compile", circuit, "--pass", "invert", "--no-color")
	require.NoError(t, err)
	require.Contains(t, out, "X @ 0")
}

func TestTrace_RecordsTopLevelCalls(t *testing.T) {
	cfgPath := writeConfig(t)

	out, _, err := execute(t, cfgPath, "trace", "ghz")
	require.NoError(t, err)
	require.Equal(t, "H(a)\nentangle(a, b)\nentangle(b, c)\n", out)

	out, _, err = execute(t, cfgPath, "trace", "bell", "--matrix")
	require.NoError(t, err)
	require.NotEmpty(t, out)
}

func TestTrace_SummarisesSpanFile(t *testing.T) {
	cfgPath := writeConfig(t)
	spansPath := filepath.Join(t.TempDir(), "traces.jsonl")

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	require.NoError(t, enc.Encode(tracing.SpanRecord{
		SpanID:     "01",
		Name:       tracing.SpanPrefixDispatch + "apply",
		DurationMs: 0.5,
		Attributes: map[string]any{
			tracing.AttrOperation: "H",
			tracing.AttrOutcome:   tracing.OutcomeOK,
		},
		Events: []tracing.EventRecord{{Name: tracing.EventCandidateDeclined}},
	}))
	require.NoError(t, enc.Encode(tracing.SpanRecord{SpanID: "02", Name: "other"}))
	require.NoError(t, os.WriteFile(spansPath, buf.Bytes(), 0o600))

	out, _, err := execute(t, cfgPath, "trace", "--spans", spansPath, "--json")
	require.NoError(t, err)
	var spans []presentation.SpanDTO
	require.NoError(t, json.Unmarshal([]byte(out), &spans), out)
	require.Equal(t, []presentation.SpanDTO{
		{Facade: "apply", Operation: "H", Outcome: tracing.OutcomeOK, Declines: 1, DurationMs: 0.5},
	}, spans)

	_, _, err = execute(t, cfgPath, "trace", "--spans", spansPath, "ghz")
	require.Error(t, err, "--spans takes no circuit")

	_, _, err = execute(t, cfgPath, "trace", "--spans", filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
}

func TestCircuits_ListsBuiltins(t *testing.T) {
	cfgPath := writeConfig(t)

	out, _, err := execute(t, cfgPath, "circuits", "--json")
	require.NoError(t, err)
	var circuits []presentation.CircuitDTO
	require.NoError(t, json.Unmarshal([]byte(out), &circuits))
	names := make([]string, len(circuits))
	for i, c := range circuits {
		names[i] = c.Name
	}
	require.Equal(t, []string{"bell", "ghz", "qft2", "toffoli"}, names)
}

func TestConfig_SetAndPath(t *testing.T) {
	cfgPath := writeConfig(t)

	out, _, err := execute(t, cfgPath, "config", "path")
	require.NoError(t, err)
	require.Equal(t, cfgPath+"\n", out)

	_, _, err = execute(t, cfgPath, "config", "set", "runtime.shots", "8")
	require.NoError(t, err)

	out, _, err = execute(t, cfgPath, "run", "bell", "--json", "--no-record")
	require.NoError(t, err)
	require.Equal(t, 8, decodeRun(t, out).Shots)
}

func TestRoot_InvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: chatty\n"), 0o600))

	_, _, err := execute(t, path, "circuits")
	require.ErrorContains(t, err, "log.level")
}

func TestRoot_StatsFlag(t *testing.T) {
	cfgPath := writeConfig(t)

	_, stderr, err := execute(t, cfgPath, "trace", "bell", "--stats")
	require.NoError(t, err)
	require.Contains(t, stderr, "apply")
}
