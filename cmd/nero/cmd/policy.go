package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Geo-fs/NeroAI/internal/adapter/outbound/sqlite"
	"github.com/Geo-fs/NeroAI/internal/config"
	"github.com/Geo-fs/NeroAI/internal/domain/policy"
	"github.com/Geo-fs/NeroAI/internal/service"
)

var policyConfirmed bool

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Policy rule utilities",
}

var policyCheckCmd = &cobra.Command{
	Use:   "check <action>",
	Short: "Evaluate an action against the active policy",
	Long: `Evaluate an action name against the active profile and workspace
policy rules and print the decision.

Examples:
  nero policy check file_write
  nero policy check web.search --confirmed`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicyCheck,
}

var policyLintCmd = &cobra.Command{
	Use:   "lint [file]",
	Short: "Validate a policy rules file",
	Long: `Parse a policy rules file and report errors.

Reads from the given file, or stdin when no file is passed. Exits
nonzero when the rules contain any error, since a broken policy is
rejected wholesale by the server.

Examples:
  nero policy lint rules.txt
  cat rules.txt | nero policy lint`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPolicyLint,
}

func init() {
	policyCheckCmd.Flags().BoolVar(&policyConfirmed, "confirmed", false, "evaluate as if the user confirmed the action")
	policyCmd.AddCommand(policyCheckCmd)
	policyCmd.AddCommand(policyLintCmd)
	rootCmd.AddCommand(policyCmd)
}

func runPolicyCheck(cmd *cobra.Command, args []string) error {
	action := args[0]

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dirs, err := resolveDirs(cfg)
	if err != nil {
		return fmt.Errorf("resolve data directory: %w", err)
	}
	db, err := sqlite.Open(dirs.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	identity := service.NewIdentityService(
		sqlite.NewProfileStore(db), sqlite.NewWorkspaceStore(db))
	ident, err := identity.ActiveIdentity(cmd.Context())
	if err != nil {
		return err
	}

	// Workspace rules first, then profile: the same precedence the
	// server applies.
	sources := []struct{ name, rules string }{
		{"workspace " + ident.WorkspaceName, ident.WorkspacePolicy},
		{"profile " + ident.ProfileName, ident.ProfilePolicy},
	}
	for _, src := range sources {
		if src.rules == "" {
			continue
		}
		parsed := policy.Parse(src.rules)
		if len(parsed.Errors) > 0 {
			return fmt.Errorf("%s has broken policy rules; run 'nero policy lint'", src.name)
		}
		effect, matched := policy.EvaluateEffect(parsed.Effects, action,
			ident.ProfileName, ident.WorkspaceName, policyConfirmed)
		if matched {
			fmt.Printf("%s: %s (%s)\n", action, effect, src.name)
			if effect == policy.EffectDeny {
				os.Exit(1)
			}
			return nil
		}
	}

	fmt.Printf("%s: allow (no matching rule, default applies)\n", action)
	return nil
}

func runPolicyLint(cmd *cobra.Command, args []string) error {
	var raw []byte
	var err error
	if len(args) == 1 {
		raw, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read rules file: %w", err)
		}
	} else {
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}

	result := policy.Parse(string(raw))
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			fmt.Fprintln(os.Stderr, e)
		}
		return fmt.Errorf("%d error(s) in policy", len(result.Errors))
	}

	fmt.Printf("OK: %d effect rule(s), %d limit rule(s)\n",
		len(result.Effects), len(result.Limits))
	return nil
}
