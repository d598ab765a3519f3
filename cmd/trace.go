package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/passes"
	"github.com/zjrosen/qcircuit/internal/presentation"
	"github.com/zjrosen/qcircuit/internal/runtime/symbolic"
	"github.com/zjrosen/qcircuit/internal/tracing"
)

var (
	traceJSON   bool
	traceMatrix bool
	traceSpans  string
)

var traceCmd = &cobra.Command{
	Use:   "trace [CIRCUIT]",
	Short: "Record the calls a circuit makes on symbolic qubits",
	Long: `Run the body of a circuit once on a symbolic runtime and print every call it
makes, one per line. Nested definitions appear as single calls.

With --matrix the unitary of the whole circuit is printed instead; circuits that
measure have none.

With --spans FILE no circuit is run: the dispatch spans written by the "file"
tracing exporter are read back and summarised, one row per façade call.

Examples:
  qcircuit trace ghz
  qcircuit trace qft2 --matrix
  qcircuit trace --spans ~/.config/qcircuit/traces/traces.jsonl`,
	Args: func(cmd *cobra.Command, args []string) error {
		if traceSpans != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		formatter := presentation.NewFormatter(cmd.OutOrStdout())
		if traceJSON {
			formatter = presentation.NewJSONFormatter(cmd.OutOrStdout())
		}

		if traceSpans != "" {
			records, err := tracing.ReadSpans(traceSpans)
			if err != nil {
				return err
			}
			return formatter.FormatSpans(presentation.FromSpans(records))
		}

		f, op, err := loadCircuit(args[0])
		if err != nil {
			return err
		}

		if traceMatrix {
			m, err := passes.MatrixOf(ctx, op)
			if err != nil {
				return fmt.Errorf("building the matrix of %s: %w", f.Name, err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), m)
			return err
		}

		params, err := passes.Placeholders(op)
		if err != nil {
			return err
		}
		rt := symbolic.New()
		if _, err := op.Call(circuit.WithRuntime(ctx, rt), params...); err != nil {
			return fmt.Errorf("tracing %s: %w", f.Name, err)
		}

		return formatter.FormatCalls(presentation.FromCalls(rt.Calls()))
	},
}

func init() {
	traceCmd.Flags().BoolVar(&traceJSON, "json", false, "print the calls as JSON")
	traceCmd.Flags().BoolVar(&traceMatrix, "matrix", false, "print the circuit's unitary")
	traceCmd.Flags().StringVar(&traceSpans, "spans", "", "summarise dispatch spans from a JSONL trace file")
	rootCmd.AddCommand(traceCmd)
}
