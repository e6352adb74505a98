package main

import (
	"fmt"
	"os"

	render "github.com/agenciaboz-dev/bozchat-sub001/internal/presentation/graph"
	"github.com/agenciaboz-dev/bozchat-sub001/internal/presentation/tui"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/graph"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Print the conversation as an outline",
	Long:  `Prints the conversation tree as Markdown, styled when stdout is a terminal.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadGraph(cmd, args)
		if err != nil {
			return err
		}
		g, _ := graph.Normalize(f.Graph)

		out := cmd.OutOrStdout()
		var stdout *os.File
		if file, ok := out.(*os.File); ok {
			stdout = file
		}
		rendered, err := tui.NewRenderer(stdout)(render.Outline(f.Title, g))
		if err != nil {
			return fmt.Errorf("failed to render outline: %w", err)
		}
		_, err = fmt.Fprint(out, rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	addGraphSourceFlags(showCmd)
}
