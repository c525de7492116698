package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Geo-fs/NeroAI/internal/config"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove all local state",
	Long: `Reset nero by removing persistent state from the data directory.

This deletes the database (grants, profiles, workspaces, settings, run
history, audit log, sealed secrets), tool run directories, quarantined
files, and the secret vault salt. The server must not be running.

Optional flags:
  --force   Skip confirmation prompt

Examples:
  # Interactive reset
  nero reset

  # Wipe everything without prompting
  nero reset --force`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Skip confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dirs, err := resolveDirs(cfg)
	if err != nil {
		return fmt.Errorf("resolve data directory: %w", err)
	}

	type target struct {
		path string
		desc string
	}
	targets := []target{
		{dirs.DatabasePath(), "database"},
		{dirs.DatabasePath() + "-wal", "database WAL"},
		{dirs.DatabasePath() + "-shm", "database shared memory"},
		{dirs.ToolRuns, "tool run directories"},
		{dirs.Quarantine, "quarantined files"},
		{filepath.Join(dirs.Root, "secret.salt"), "secret vault salt"},
	}

	var existing []target
	for _, t := range targets {
		if _, err := os.Stat(t.path); err == nil {
			existing = append(existing, t)
		}
	}
	if len(existing) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to reset — no state found.")
		return nil
	}

	fmt.Fprintln(os.Stderr, "The following will be removed:")
	for _, t := range existing {
		fmt.Fprintf(os.Stderr, "  - %s (%s)\n", t.path, t.desc)
	}

	if !resetForce {
		fmt.Fprint(os.Stderr, "\nProceed? [y/N] ")
		var answer string
		fmt.Scanln(&answer) //nolint:errcheck // interactive prompt, error irrelevant
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(os.Stderr, "Aborted.")
			return nil
		}
	}

	var errs int
	for _, t := range existing {
		if err := os.RemoveAll(t.path); err != nil {
			fmt.Fprintf(os.Stderr, "  ERROR removing %s: %v\n", t.path, err)
			errs++
		} else {
			fmt.Fprintf(os.Stderr, "  Removed %s\n", t.path)
		}
	}
	if errs > 0 {
		return fmt.Errorf("%d item(s) could not be removed", errs)
	}

	fmt.Fprintln(os.Stderr, "\nReset complete. Nero will start fresh on next launch.")
	return nil
}
