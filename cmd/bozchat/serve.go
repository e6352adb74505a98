package main

import (
	"context"
	"strings"

	bozchat "github.com/agenciaboz-dev/bozchat-sub001"
	"github.com/agenciaboz-dev/bozchat-sub001/internal/cli"
	"github.com/agenciaboz-dev/bozchat-sub001/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP editing server",
	Long: `Starts the editor HTTP API. Every bot opened through the API gets one
editing session; edits are saved to the configured store after a quiet period
and flushed on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Listen = ":" + port
		}
		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
			tui.PrintBanner(cmd.ErrOrStderr(), "flow editor "+strings.TrimSpace(bozchat.Version))
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		app, err := cli.NewApp(sigCtx, cfg, logger)
		if err != nil {
			return err
		}
		return cli.Serve(sigCtx, app, cfg.Listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (overrides listen)")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
