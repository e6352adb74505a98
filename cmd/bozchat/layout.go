package main

import (
	"fmt"
	"io"
	"os"

	"github.com/agenciaboz-dev/bozchat-sub001/internal/cli"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/graph"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/layout"
	"github.com/spf13/cobra"
)

var layoutCmd = &cobra.Command{
	Use:   "layout [file]",
	Short: "Repair and lay out a graph, printing the result as JSON",
	Long: `Reads a bot record or a bare instance, applies the same repairs an
editing session applies on open, recomputes every node position and writes
the instance as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		f, err := loadGraph(cmd, args)
		if err != nil {
			return err
		}

		g, report := graph.Normalize(f.Graph)
		if report.Changed() {
			logger.Warn("Graph repaired", "report", report.String())
		}
		g = layout.New(cfg.Layout).Apply(g)

		out, closeOut, err := openOutput(cmd)
		if err != nil {
			return err
		}
		defer closeOut()
		return cli.WriteGraph(out, g)
	},
}

// openOutput returns the writer selected by the --output flag.
func openOutput(cmd *cobra.Command) (io.Writer, func(), error) {
	path, _ := cmd.Flags().GetString("output")
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}

func init() {
	rootCmd.AddCommand(layoutCmd)
	addGraphSourceFlags(layoutCmd)
	layoutCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
}
