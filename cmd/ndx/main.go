package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ndx-io/NDX/cmd/ndx/commands"
	"github.com/ndx-io/NDX/logger"
)

var rootCmd = &cobra.Command{
	Use:   "ndx",
	Short: "NDX - Neuroscience data management and time synchronization",
	Long: `NDX - Session-based data management for neuroscience experiments.

NDX organizes an experiment directory into a session: a SQLite document
database, DAQ epochs discovered on disk, and a time synchronization graph
that converts timestamps between unsynchronized device clocks.

Available commands:
  init    - Create a session in a directory
  status  - Show session, database and disk statistics
  docs    - List and search session documents
  time    - Convert timestamps and inspect the sync graph
  db      - Manage the session database
  cloud   - Authenticate and sync datasets with NDX Cloud
  config  - Manage NDX configuration
  serve   - Start the sync graph visualization server

Examples:
  ndx init exp-2026-08-21 ~/data/exp-2026-08-21
  ndx status                        # Session overview
  ndx time convert daq1:t0001:dev_local_time cam1:t0001:dev_local_time 3.25
  ndx cloud push --dataset ds_0042  # Mirror session documents to cloud
  ndx serve                         # Live sync graph at localhost:8077`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.InitializeWithLevel(false, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON")
	rootCmd.PersistentFlags().String("session", "", "Session reference to operate on (default: nearest session upward from cwd)")

	rootCmd.AddCommand(commands.InitCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.DocsCmd)
	rootCmd.AddCommand(commands.TimeCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.CloudCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
