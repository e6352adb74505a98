package main

import (
	"errors"
	"fmt"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/graph"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	good = color.New(color.FgGreen)
	bad  = color.New(color.FgRed)
	warn = color.New(color.FgYellow)
)

// errInvalid makes the command exit non-zero without printing usage.
var errInvalid = errors.New("graph is invalid")

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a graph for tree shape, id and loop violations",
	Long: `Validates a stored instance as-is and reports what an editing session
would repair when opening it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadGraph(cmd, args)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		findings := graph.ValidationErrors(graph.Validate(f.Graph))
		if _, report := graph.Normalize(f.Graph); report.Changed() || report.ExtraRoots > 0 {
			warn.Fprintf(out, "⚠ opening repairs: %s\n", report)
		}
		for _, n := range f.Graph.Nodes {
			if n.Payload.Misconfigured() {
				warn.Fprintf(out, "⚠ %s: action settings incomplete\n", n.ID)
			}
		}

		if len(findings) == 0 {
			good.Fprintf(out, "✓ valid (%d nodes, %d edges)\n", len(f.Graph.Nodes), len(f.Graph.Edges))
			return nil
		}
		for _, e := range findings {
			bad.Fprintf(out, "✗ %s\n", e)
		}
		return fmt.Errorf("%w: %d findings", errInvalid, len(findings))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addGraphSourceFlags(validateCmd)
}
