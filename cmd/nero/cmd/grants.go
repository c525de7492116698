package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Geo-fs/NeroAI/internal/adapter/outbound/sqlite"
	"github.com/Geo-fs/NeroAI/internal/config"
	"github.com/Geo-fs/NeroAI/internal/domain/audit"
	"github.com/Geo-fs/NeroAI/internal/domain/permission"
)

var (
	grantScope     string
	grantSessionID string
	grantPaths     []string
	revokeSession  string
	grantsSession  string
)

var grantCmd = &cobra.Command{
	Use:   "grant <permission>",
	Short: "Grant a permission from the command line",
	Long: `Grant a permission directly against the local store.

Permissions: filesystem.read, filesystem.write, web.search,
screen.capture, clipboard.read, clipboard.write, process.run.

Examples:
  # Let any session search the web
  nero grant web.search --scope always

  # Let one session read a directory
  nero grant filesystem.read --scope session --session s1 --path ~/docs`,
	Args: cobra.ExactArgs(1),
	RunE: runGrant,
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <permission>",
	Short: "Revoke a granted permission",
	Args:  cobra.ExactArgs(1),
	RunE:  runRevoke,
}

var grantsCmd = &cobra.Command{
	Use:   "grants",
	Short: "List active permission grants",
	RunE:  runGrants,
}

func init() {
	grantCmd.Flags().StringVar(&grantScope, "scope", "session", "grant scope: once, session, or always")
	grantCmd.Flags().StringVar(&grantSessionID, "session", "", "session id the grant is bound to")
	grantCmd.Flags().StringArrayVar(&grantPaths, "path", nil, "directory the grant is restricted to (repeatable)")
	rootCmd.AddCommand(grantCmd)

	revokeCmd.Flags().StringVar(&revokeSession, "session", "", "session id the grant is bound to")
	rootCmd.AddCommand(revokeCmd)

	grantsCmd.Flags().StringVar(&grantsSession, "session", "", "list grants visible to this session")
	rootCmd.AddCommand(grantsCmd)
}

// syncRecorder writes audit records straight to the store. The async
// pipeline is not worth starting for a one-shot CLI command.
type syncRecorder struct {
	store audit.Store
}

func (r *syncRecorder) Record(rec audit.Record) {
	_ = r.store.Append(context.Background(), rec)
}

// openBroker opens the local database and builds a permission broker
// over it. The caller must call the returned close function.
func openBroker() (*permission.Broker, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	dirs, err := resolveDirs(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve data directory: %w", err)
	}
	db, err := sqlite.Open(dirs.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	recorder := &syncRecorder{store: sqlite.NewAuditStore(db)}
	broker := permission.NewBroker(sqlite.NewGrantStore(db), recorder, newLogger(cfg.Logging))
	return broker, func() { _ = db.Close() }, nil
}

func runGrant(cmd *cobra.Command, args []string) error {
	perm, err := permission.Parse(args[0])
	if err != nil {
		return err
	}
	scope, err := permission.ParseScope(grantScope)
	if err != nil {
		return err
	}

	broker, closeDB, err := openBroker()
	if err != nil {
		return err
	}
	defer closeDB()

	grant, err := broker.Grant(cmd.Context(), perm, scope, grantSessionID, grantPaths)
	if err != nil {
		return err
	}
	fmt.Printf("Granted %s (scope: %s, id: %s)\n", grant.Permission, grant.Scope, grant.ID)
	if len(grant.AllowedPaths) > 0 {
		fmt.Printf("  Paths: %s\n", strings.Join(grant.AllowedPaths, ", "))
	}
	return nil
}

func runRevoke(cmd *cobra.Command, args []string) error {
	perm, err := permission.Parse(args[0])
	if err != nil {
		return err
	}

	broker, closeDB, err := openBroker()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := broker.Revoke(cmd.Context(), perm, revokeSession); err != nil {
		return err
	}
	fmt.Printf("Revoked %s\n", perm)
	return nil
}

func runGrants(cmd *cobra.Command, args []string) error {
	broker, closeDB, err := openBroker()
	if err != nil {
		return err
	}
	defer closeDB()

	grants, err := broker.List(cmd.Context(), grantsSession)
	if err != nil {
		return err
	}
	if len(grants) == 0 {
		fmt.Println("No active grants.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PERMISSION\tSCOPE\tSESSION\tPATHS\tGRANTED")
	for _, g := range grants {
		session := g.SessionID
		if session == "" {
			session = "-"
		}
		paths := "-"
		if len(g.AllowedPaths) > 0 {
			paths = strings.Join(g.AllowedPaths, ", ")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			g.Permission, g.Scope, session, paths, g.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
