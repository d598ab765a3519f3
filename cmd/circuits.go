package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/qcircuit/internal/circuitfile"
	"github.com/zjrosen/qcircuit/internal/presentation"
)

var circuitsJSON bool

var circuitsCmd = &cobra.Command{
	Use:   "circuits",
	Short: "List the built-in circuits and gate names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := circuitfile.LoadBuiltin()
		if err != nil {
			return err
		}
		dtos := make([]presentation.CircuitDTO, len(files))
		for i, f := range files {
			dtos[i] = presentation.FromFile(f)
		}
		if circuitsJSON {
			return presentation.NewJSONFormatter(cmd.OutOrStdout()).FormatCircuits(dtos)
		}
		if err := presentation.NewFormatter(cmd.OutOrStdout()).FormatCircuits(dtos); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "gates: %s\n", strings.Join(circuitfile.BuiltinOps(), " "))
		return err
	},
}

func init() {
	circuitsCmd.Flags().BoolVar(&circuitsJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(circuitsCmd)
}
