package main

import (
	"fmt"
	"strings"

	bozchat "github.com/agenciaboz-dev/bozchat-sub001"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of bozchat",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bozchat version %s\n", strings.TrimSpace(bozchat.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
