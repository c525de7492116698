package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Geo-fs/NeroAI/internal/domain/hardening"
)

var hardenCmd = &cobra.Command{
	Use:   "harden",
	Short: "Print OS firewall commands for the tool worker",
	Long: `Print the firewall commands that block outbound network access
for the tool worker.

Tool workers are spawned from this same binary, so the rule targets the
nero executable itself. Nothing is executed: run the printed commands in
an elevated shell, or feed them to your provisioning tool.`,
	RunE: runHarden,
}

func init() {
	rootCmd.AddCommand(hardenCmd)
}

func runHarden(cmd *cobra.Command, args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve own binary: %w", err)
	}

	commands := hardening.Build(exe)
	fmt.Printf("Firewall rule: %s\n\n", hardening.RuleName)
	fmt.Println("# Remove any previous rule (idempotent):")
	fmt.Println(commands.Delete)
	fmt.Println()
	fmt.Println("# Block outbound traffic from the worker binary:")
	fmt.Println(commands.Add)
	fmt.Println()
	fmt.Println("# Check the rule's current state:")
	fmt.Println(commands.Status)
	return nil
}
