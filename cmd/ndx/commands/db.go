package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ndx-io/NDX/db"
	"github.com/ndx-io/NDX/display"
	"github.com/ndx-io/NDX/sym"
)

// DbCmd manages the session database.
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Manage the session database",
	Long: sym.DB + ` db - Session database operations

Examples:
  ndx db stats     # Row counts and database size
  ndx db migrate   # Apply pending schema migrations`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runDbStats,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long:  "Opening a session applies pending migrations; this command does only that and reports the schema version.",
	RunE:  runDbMigrate,
}

func init() {
	DbCmd.AddCommand(dbStatsCmd)
	DbCmd.AddCommand(dbMigrateCmd)
}

func runDbStats(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	stats, err := db.CollectStats(sess.DB())
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(stats)
	}

	fmt.Printf("%s Database Statistics\n", sym.DB)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Size:         %s\n", formatBytes(uint64(stats.SizeBytes)))
	fmt.Printf("Documents:    %d\n", stats.Documents)
	fmt.Printf("Dependencies: %d\n", stats.Dependencies)
	fmt.Printf("Files:        %d\n", stats.Files)
	fmt.Printf("Migrations:   %d\n", stats.Migrations)
	return nil
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	stats, err := db.CollectStats(sess.DB())
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(map[string]int{"migrations": stats.Migrations})
	}
	pterm.Success.Printf("Schema up to date (%d migration(s) applied)\n", stats.Migrations)
	return nil
}
