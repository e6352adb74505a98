package main

import (
	"context"
	"fmt"

	"github.com/agenciaboz-dev/bozchat-sub001/internal/cli"
	render "github.com/agenciaboz-dev/bozchat-sub001/internal/presentation/graph"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/graph"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/layout"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export a graph as Mermaid, DOT, SVG, Markdown or JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadGraph(cmd, args)
		if err != nil {
			return err
		}
		g, _ := graph.Normalize(f.Graph)

		out, closeOut, err := openOutput(cmd)
		if err != nil {
			return err
		}
		defer closeOut()

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "mermaid":
			_, err = fmt.Fprint(out, render.GenerateMermaid(g, nil))
		case "dot":
			_, err = fmt.Fprint(out, render.ToDOT(g))
		case "svg":
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			var svg []byte
			if svg, err = render.RenderSVG(ctx, render.ToDOT(g)); err == nil {
				_, err = out.Write(svg)
			}
		case "md":
			_, err = fmt.Fprint(out, render.Outline(f.Title, g))
		case "json":
			cfg, _, setupErr := setup(cmd)
			if setupErr != nil {
				return setupErr
			}
			err = cli.WriteGraph(out, layout.New(cfg.Layout).Apply(g))
		default:
			return fmt.Errorf("unknown format %q: use mermaid, dot, svg, md or json", format)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	addGraphSourceFlags(exportCmd)
	exportCmd.Flags().StringP("format", "f", "mermaid", "Output format: mermaid, dot, svg, md, json")
	exportCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
}
