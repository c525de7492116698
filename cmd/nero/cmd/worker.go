package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Geo-fs/NeroAI/internal/domain/tool"
	"github.com/Geo-fs/NeroAI/internal/worker"
)

// workerCmd is the internal entrypoint the server spawns for every tool
// call: one JSON request on stdin, one JSON response on stdout, exit.
// Hidden because users never run it directly.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Execute one tool request from stdin (internal)",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(worker.Run(os.Stdin, os.Stdout, tool.Builtin()))
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
