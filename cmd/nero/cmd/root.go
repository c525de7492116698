// Package cmd provides the CLI commands for the nero backend.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Geo-fs/NeroAI/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "nero",
	Short: "Nero - local AI assistant security backend",
	Long: `Nero is the local security backend for a single-user AI assistant.

It brokers permissions for tool calls, sandboxes file access behind
granted directory scopes, runs tools in isolated worker subprocesses,
and keeps an audit trail of everything the assistant did.

Quick start:
  1. Run: nero serve
  2. Point the assistant UI at http://127.0.0.1:8737

Configuration:
  Config is loaded from nero.yaml in the current directory or the data
  directory ($NERO_HOME, default: <user-config-dir>/nero).

  Environment variables override config values with the NERO_ prefix.
  Example: NERO_SERVER_ADDR=127.0.0.1:9000

Commands:
  serve       Start the backend API server
  grant       Grant a permission from the command line
  revoke      Revoke a granted permission
  grants      List active permission grants
  policy      Evaluate or lint policy rules
  harden      Print OS firewall commands for the tool worker
  reset       Remove all local state
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./nero.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
