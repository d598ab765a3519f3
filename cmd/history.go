package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/qcircuit/internal/presentation"
	"github.com/zjrosen/qcircuit/internal/store"
)

var (
	historyCircuit string
	historyLimit   int
	historyPrune   time.Duration
	historyJSON    bool
)

var historyCmd = &cobra.Command{
	Use:   "history [RUN-ID]",
	Short: "List recorded runs, or show one run",
	Long: `List the runs recorded by 'qcircuit run', newest first, or show the full result
of one run by id.

Examples:
  qcircuit history
  qcircuit history --circuit bell --limit 5
  qcircuit history 1f0c2d9e-...
  qcircuit history --prune 720h`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Store.Enabled {
			return fmt.Errorf("run history is disabled (store.enabled: false)")
		}
		ctx := cmd.Context()
		db, err := store.NewDB(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		runs := db.Runs()

		formatter := presentation.NewFormatter(cmd.OutOrStdout())
		if historyJSON {
			formatter = presentation.NewJSONFormatter(cmd.OutOrStdout())
		}

		if historyPrune > 0 {
			n, err := runs.Delete(ctx, time.Now().Add(-historyPrune))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "pruned %d runs\n", n)
			return err
		}

		if len(args) == 1 {
			run, err := runs.Find(ctx, args[0])
			if err != nil {
				return err
			}
			return formatter.FormatRun(presentation.FromRun(run))
		}

		list, err := runs.List(ctx, store.ListOptions{Circuit: historyCircuit, Limit: historyLimit})
		if err != nil {
			return err
		}
		dtos := make([]presentation.RunDTO, len(list))
		for i, r := range list {
			dtos[i] = presentation.FromRun(r)
		}
		return formatter.FormatRuns(dtos)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyCircuit, "circuit", "", "only runs of this circuit")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of runs; 0 for all")
	historyCmd.Flags().DurationVar(&historyPrune, "prune", 0, "delete runs older than this duration instead of listing")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(historyCmd)
}
