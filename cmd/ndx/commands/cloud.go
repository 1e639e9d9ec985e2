package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ndx-io/NDX/cloud"
	cloudsync "github.com/ndx-io/NDX/cloud/sync"
	"github.com/ndx-io/NDX/config"
	"github.com/ndx-io/NDX/display"
	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/sym"
)

// CloudCmd authenticates and syncs datasets with NDX Cloud.
var CloudCmd = &cobra.Command{
	Use:   "cloud",
	Short: sym.Cloud + " Authenticate and sync datasets with NDX Cloud",
	Long: sym.Cloud + ` cloud - NDX Cloud

Authenticate against the cloud API and reconcile the session's documents
with a cloud dataset. push mirrors the session to the dataset, pull
mirrors the dataset into the session, and sync runs any of the five
reconciliation modes.

Examples:
  ndx cloud login                       # Obtain and store an API token
  ndx cloud datasets                    # List datasets in the organization
  ndx cloud push --dataset ds_0042      # Local wins: mirror to remote
  ndx cloud pull --dataset ds_0042      # Remote wins: mirror from remote
  ndx cloud sync --dataset ds_0042 --mode two_way --dry-run`,
}

var cloudLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Obtain an API token and store it in ~/.ndx/credentials.toml",
	RunE:  runCloudLogin,
}

var cloudLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidate the token and clear stored credentials",
	RunE:  runCloudLogout,
}

var cloudDatasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List datasets in the organization",
	RunE:  runCloudDatasets,
}

var cloudPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Mirror the session's documents to a cloud dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCloudSync(cmd, cloudsync.MirrorToRemote)
	},
}

var cloudPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Mirror a cloud dataset into the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCloudSync(cmd, cloudsync.MirrorFromRemote)
	},
}

var cloudSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile with a dataset in an explicit mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := cloudSyncModeFlag
		if name == "" {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			name = cfg.Sync.Mode
		}
		mode, err := cloudsync.ParseMode(name)
		if err != nil {
			return err
		}
		return runCloudSync(cmd, mode)
	},
}

var (
	cloudEmailFlag    string
	cloudDatasetFlag  string
	cloudSyncModeFlag string
	cloudDryRunFlag   bool
	cloudWorkersFlag  int
)

func init() {
	cloudLoginCmd.Flags().StringVar(&cloudEmailFlag, "email", "", "Account email (prompted when omitted)")
	cloudSyncCmd.Flags().StringVar(&cloudSyncModeFlag, "mode", "", "Sync mode: download_new, upload_new, mirror_to_remote, mirror_from_remote, two_way (default from config)")

	for _, c := range []*cobra.Command{cloudPushCmd, cloudPullCmd, cloudSyncCmd} {
		c.Flags().StringVar(&cloudDatasetFlag, "dataset", "", "Dataset ID to reconcile against (required)")
		c.Flags().BoolVar(&cloudDryRunFlag, "dry-run", false, "Compute the plan without transferring anything")
		c.Flags().IntVar(&cloudWorkersFlag, "workers", 0, "Concurrent transfers (default from config)")
	}

	CloudCmd.AddCommand(cloudLoginCmd)
	CloudCmd.AddCommand(cloudLogoutCmd)
	CloudCmd.AddCommand(cloudDatasetsCmd)
	CloudCmd.AddCommand(cloudPushCmd)
	CloudCmd.AddCommand(cloudPullCmd)
	CloudCmd.AddCommand(cloudSyncCmd)
}

func runCloudLogin(cmd *cobra.Command, args []string) error {
	email := cloudEmailFlag
	if email == "" {
		var err error
		email, err = pterm.DefaultInteractiveTextInput.Show("Email")
		if err != nil {
			return errors.Wrap(err, "read email")
		}
	}
	password, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
	if err != nil {
		return errors.Wrap(err, "read password")
	}

	client, err := cloudClient()
	if err != nil {
		return err
	}
	token, err := client.Login(cmd.Context(), email, password)
	if err != nil {
		return err
	}
	if err := config.UpdateCloudToken(token); err != nil {
		return errors.Wrap(err, "store token")
	}

	expiry, err := cloud.TokenExpiration(token)
	if err != nil {
		pterm.Success.Println("Logged in")
		return nil
	}
	pterm.Success.Printf("Logged in, token valid until %s\n", expiry.Format("2006-01-02 15:04 MST"))
	return nil
}

func runCloudLogout(cmd *cobra.Command, args []string) error {
	client, err := cloudClient()
	if err != nil {
		return err
	}
	// Best effort: clear server-side state, then local credentials either way.
	if client.IsConfigured() {
		client.Logout(cmd.Context())
	}
	if err := config.ClearCloudCredentials(); err != nil {
		return err
	}
	pterm.Success.Println("Logged out")
	return nil
}

func runCloudDatasets(cmd *cobra.Command, args []string) error {
	client, err := cloudClient()
	if err != nil {
		return err
	}
	if err := requireCloudAuth(client); err != nil {
		return err
	}

	datasets, err := client.ListAllDatasets(cmd.Context())
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(datasets)
	}

	if len(datasets) == 0 {
		fmt.Printf("%s No datasets\n", sym.Cloud)
		return nil
	}
	fmt.Printf("%-14s %-30s %-10s %-10s %s\n", "ID", "NAME", "DOCS", "PUBLIC", "UPDATED")
	fmt.Printf("%-14s %-30s %-10s %-10s %s\n", "--", "----", "----", "------", "-------")
	for _, ds := range datasets {
		fmt.Printf("%-14s %-30s %-10d %-10t %s\n",
			truncate(ds.ID, 14),
			truncate(ds.Name, 30),
			ds.DocumentCount,
			ds.Published,
			ds.UpdatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("\nTotal: %d dataset(s)\n", len(datasets))
	return nil
}

func runCloudSync(cmd *cobra.Command, mode cloudsync.Mode) error {
	if cloudDatasetFlag == "" {
		return errors.NewInvalidRequestError("--dataset is required")
	}

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	client, err := cloudClient()
	if err != nil {
		return err
	}
	if err := requireCloudAuth(client); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	workers := cloudWorkersFlag
	if workers == 0 {
		workers = cfg.GetSyncWorkers()
	}

	syncer, err := cloudsync.New(sess.Store(), client, cloudsync.Options{
		SessionID: sess.ID(),
		DatasetID: cloudDatasetFlag,
		IndexPath: cloudsync.IndexPath(sess.Dir()),
		Workers:   workers,
		DryRun:    cloudDryRunFlag,
		Logger:    cliLogger(),
	})
	if err != nil {
		return err
	}

	report, err := syncer.Run(cmd.Context(), mode)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(report)
	}
	printSyncReport(report)
	if len(report.Failed) > 0 {
		return errors.Newf("%d transfer(s) failed", len(report.Failed))
	}
	return nil
}

func printSyncReport(report *cloudsync.Report) {
	verb := "Synced"
	if report.DryRun {
		verb = "Would sync"
	}
	pterm.Info.Printf("%s %s with dataset\n", verb, report.Mode)

	rows := []struct {
		label   string
		planned int
		done    []string
	}{
		{"Upload", len(report.Uploads), report.Uploaded},
		{"Download", len(report.Downloads), report.Downloaded},
		{"Delete local", len(report.DeleteLocal), report.DeletedLocal},
		{"Delete remote", len(report.DeleteRemote), report.DeletedRemote},
		{"Update remote", len(report.UpdateRemote), report.UpdatedRemote},
		{"Update local", len(report.UpdateLocal), report.UpdatedLocal},
	}
	total := 0
	for _, row := range rows {
		total += row.planned
		if row.planned == 0 {
			continue
		}
		if report.DryRun {
			fmt.Printf("  %-14s %d\n", row.label+":", row.planned)
		} else {
			fmt.Printf("  %-14s %d/%d\n", row.label+":", len(row.done), row.planned)
		}
	}
	for _, id := range report.Conflicts {
		pterm.Warning.Printf("  Conflict skipped: %s\n", id)
	}
	for _, id := range report.Failed {
		pterm.Error.Printf("  Failed: %s\n", id)
	}
	if total == 0 && len(report.Conflicts) == 0 {
		pterm.Success.Println("Already in sync")
	}
}
