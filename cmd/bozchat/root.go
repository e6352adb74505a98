package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/agenciaboz-dev/bozchat-sub001/internal/cli"
	"github.com/agenciaboz-dev/bozchat-sub001/internal/config"
	"github.com/agenciaboz-dev/bozchat-sub001/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bozchat",
	Short: "bozchat edits the conversation graphs of chat bots",
	Long: `bozchat hosts editing sessions for bot conversation graphs: a tree of
messages and expected responses with optional loop references. Sessions lay
the graph out, keep an undo history and save to the configured store.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "bozchat.yaml", "Configuration file (.yaml, .toml or .json)")
	rootCmd.PersistentFlags().String("store", "", "Override store.kind: "+fmt.Sprint(config.StoreKinds))
	rootCmd.PersistentFlags().String("log-level", "", "Override log_level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Override log_format (text, json)")
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store.Kind = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}
	return cfg, cfg.Validate()
}

// newLogger creates the application logger. Logs go to stderr so stdout
// stays free for command output and JSON-RPC.
func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.NewWithFormat(os.Stderr, level, logging.Format(cfg.LogFormat)), nil
}

// setup loads the configuration and the logger shared by every command.
func setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cfg, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

// loadGraph reads the graph named by the command: a file argument, or the
// --bot flag resolved through the configured store.
func loadGraph(cmd *cobra.Command, args []string) (*cli.GraphFile, error) {
	botID, _ := cmd.Flags().GetString("bot")
	if botID == "" {
		if len(args) == 0 {
			return nil, fmt.Errorf("a graph file or --bot is required")
		}
		return cli.ReadGraphFile(args[0])
	}

	cfg, logger, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	backend, err := cli.OpenBackend(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	defer backend.Close(ctx)

	bot, err := backend.Store.Load(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bot %s: %w", botID, err)
	}
	data, err := bot.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return cli.ParseGraphFile(data)
}

func addGraphSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("bot", "", "Load the bot from the configured store instead of a file")
}
