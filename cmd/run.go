package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/zjrosen/qcircuit/internal/backend"
	"github.com/zjrosen/qcircuit/internal/log"
	"github.com/zjrosen/qcircuit/internal/presentation"
	"github.com/zjrosen/qcircuit/internal/runtime/statevector"
	"github.com/zjrosen/qcircuit/internal/store"
)

var (
	runShots    int
	runSeed     uint64
	runPass     string
	runNoRecord bool
	runJSON     bool
)

var runCmd = &cobra.Command{
	Use:   "run CIRCUIT",
	Short: "Sample a circuit on the state-vector simulator",
	Long: `Run a circuit on fresh qubits and measure every qubit at the end, once per shot.

CIRCUIT is a path to a circuit file or the name of a built-in circuit
(see 'qcircuit circuits'). The run is recorded in the history database unless
--no-record is given or store.enabled is false.

Examples:
  qcircuit run bell
  qcircuit run ./teleport.yaml --shots 200 --seed 7
  qcircuit run ghz --pass flatten --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validPass(runPass); err != nil {
			return err
		}
		shots := cfg.Runtime.Shots
		if cmd.Flags().Changed("shots") {
			shots = runShots
		}
		if shots <= 0 {
			return fmt.Errorf("--shots must be positive, got %d", shots)
		}
		seed := cfg.Runtime.Seed
		if cmd.Flags().Changed("seed") {
			seed = runSeed
		}
		if seed == 0 {
			seed = rand.Uint64()
		}

		ctx := cmd.Context()
		f, op, err := loadCircuit(args[0])
		if err != nil {
			return err
		}
		compiled, err := applyPass(ctx, runPass, op)
		if err != nil {
			return fmt.Errorf("compiling %s: %w", f.Name, err)
		}

		counts, err := statevector.Sample(ctx, backend.New(seed), compiled, len(f.Qubits), shots)
		if err != nil {
			return fmt.Errorf("running %s: %w", f.Name, err)
		}

		run := &store.Run{
			Circuit: f.Name,
			Pass:    normalizePass(runPass),
			Qubits:  len(f.Qubits),
			Shots:   shots,
			Seed:    seed,
			Counts:  counts,
		}
		if cfg.Store.Enabled && !runNoRecord {
			if err := recordRun(ctx, run); err != nil {
				// History is best effort; the result is still printed.
				log.ErrorErr(log.CatStore, "Failed to record run", err, "circuit", f.Name)
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: run not recorded: %v\n", err)
			}
		}

		formatter := presentation.NewFormatter(cmd.OutOrStdout())
		if runJSON {
			formatter = presentation.NewJSONFormatter(cmd.OutOrStdout())
		}
		return formatter.FormatRun(presentation.FromRun(run))
	},
}

func normalizePass(name string) string {
	if name == passNone {
		return ""
	}
	return name
}

func recordRun(ctx context.Context, run *store.Run) error {
	db, err := store.NewDB(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.Runs().Record(ctx, run)
}

func init() {
	runCmd.Flags().IntVarP(&runShots, "shots", "n", 0, "number of shots (default: runtime.shots)")
	runCmd.Flags().Uint64VarP(&runSeed, "seed", "s", 0, "random seed; 0 picks one (default: runtime.seed)")
	runCmd.Flags().StringVarP(&runPass, "pass", "p", passNone, "compile pass to apply first: none, freeze, flatten, invert")
	runCmd.Flags().BoolVar(&runNoRecord, "no-record", false, "do not record the run in the history database")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(runCmd)
}
