package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/zjrosen/qcircuit/internal/log"
	"github.com/zjrosen/qcircuit/internal/pubsub"
	"github.com/zjrosen/qcircuit/internal/render"
	"github.com/zjrosen/qcircuit/internal/watcher"
)

var (
	compilePass  string
	compileDiff  bool
	compileWatch bool
	noColor      bool
)

var compileCmd = &cobra.Command{
	Use:   "compile CIRCUIT",
	Short: "Run a compile pass and print the resulting operation tree",
	Long: `Compile a circuit with one of the passes and print the result as a tree.

  freeze   replace the circuit by the sequence of calls its body makes
  flatten  freeze recursively and merge nested remappings into one flat sequence
  invert   build the inverse circuit

With --diff the output is a line diff between the input tree and the result.
With --watch the circuit file is recompiled whenever it changes.

Examples:
  qcircuit compile ghz --pass flatten
  qcircuit compile ./qft.yaml --pass invert --diff
  qcircuit compile ./qft.yaml --watch`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validPass(compilePass); err != nil {
			return err
		}
		r := render.New(!noColor)
		out := cmd.OutOrStdout()
		if !compileWatch {
			return compileOnce(cmd.Context(), out, r, args[0])
		}

		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("--watch needs a circuit file: %w", err)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return watchCompile(ctx, out, r, args[0])
	},
}

func compileOnce(ctx context.Context, out io.Writer, r *render.Renderer, target string) error {
	f, op, err := loadCircuit(target)
	if err != nil {
		return err
	}
	compiled, err := applyPass(ctx, compilePass, op)
	if err != nil {
		return fmt.Errorf("compiling %s: %w", f.Name, err)
	}
	after := r.Tree(compiled)
	if compileDiff {
		_, err = fmt.Fprint(out, r.Diff(r.Tree(op), after))
		return err
	}
	_, err = fmt.Fprint(out, after)
	return err
}

func watchCompile(ctx context.Context, out io.Writer, r *render.Renderer, path string) error {
	w, err := watcher.New(watcher.DefaultConfig(path))
	if err != nil {
		return err
	}
	events := w.Subscribe(ctx)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	report := func() {
		if err := compileOnce(ctx, out, r, path); err != nil {
			log.ErrorErr(log.CatCLI, "Compile failed", err, "path", path)
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	report()

	for event := range events {
		fmt.Fprintf(out, "--- %s %s\n", event.Payload, event.Type)
		if event.Type == pubsub.DeletedEvent {
			continue
		}
		report()
	}
	return <-done
}

func init() {
	compileCmd.Flags().StringVarP(&compilePass, "pass", "p", passFlatten, "pass to run: none, freeze, flatten, invert")
	compileCmd.Flags().BoolVar(&compileDiff, "diff", false, "print a diff against the input tree")
	compileCmd.Flags().BoolVarP(&compileWatch, "watch", "w", false, "recompile when the circuit file changes")
	compileCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(compileCmd)
}
