package commands

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/cobra"

	"github.com/ndx-io/NDX/config"
	"github.com/ndx-io/NDX/db"
	"github.com/ndx-io/NDX/display"
	"github.com/ndx-io/NDX/sym"
)

// StatusCmd shows a session overview.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: sym.Session + " Show session, database and disk statistics",
	Long: sym.Session + ` status - Session overview

Shows the session identity, document database statistics, the state of
the time synchronization graph, and disk usage of the volume holding the
session directory.

Examples:
  ndx status                 # Overview of the nearest session
  ndx status --session exp1  # Overview of a registered session
  ndx status --sources       # Also show configuration provenance`,
	RunE: runStatus,
}

var statusSourcesFlag bool

func init() {
	StatusCmd.Flags().BoolVar(&statusSourcesFlag, "sources", false, "Also show where configuration values come from")
}

type statusReport struct {
	SessionID string    `json:"session_id"`
	Ref       string    `json:"ref"`
	Dir       string    `json:"dir"`
	Graph     graphInfo `json:"graph"`
	Database  *db.Stats `json:"database"`
	Disk      *diskInfo `json:"disk,omitempty"`
}

type graphInfo struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

type diskInfo struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.LoadSyncGraph(cmd.Context()); err != nil {
		return err
	}

	stats, err := db.CollectStats(sess.DB())
	if err != nil {
		return err
	}

	report := statusReport{
		SessionID: sess.ID(),
		Ref:       sess.Ref(),
		Dir:       sess.Dir(),
		Graph: graphInfo{
			Nodes: sess.Graph().NodeCount(),
			Edges: sess.Graph().EdgeCount(),
		},
		Database: stats,
	}
	// Disk stats are best effort; an exotic filesystem must not fail status.
	if usage, err := disk.Usage(sess.Dir()); err == nil {
		report.Disk = &diskInfo{
			Path:        usage.Path,
			TotalBytes:  usage.Total,
			FreeBytes:   usage.Free,
			UsedPercent: usage.UsedPercent,
		}
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(report)
	}

	fmt.Printf("%s Session %s\n", sym.Session, report.Ref)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("ID:        %s\n", report.SessionID)
	fmt.Printf("Directory: %s\n", report.Dir)
	fmt.Println()
	fmt.Printf("%s Database\n", sym.DB)
	fmt.Printf("  Size:         %s\n", formatBytes(uint64(stats.SizeBytes)))
	fmt.Printf("  Documents:    %d\n", stats.Documents)
	fmt.Printf("  Dependencies: %d\n", stats.Dependencies)
	fmt.Printf("  Files:        %d\n", stats.Files)
	fmt.Printf("  Migrations:   %d\n", stats.Migrations)
	fmt.Println()
	fmt.Printf("%s Sync graph\n", sym.Time)
	fmt.Printf("  Nodes: %d\n", report.Graph.Nodes)
	fmt.Printf("  Edges: %d\n", report.Graph.Edges)
	if report.Disk != nil {
		fmt.Println()
		fmt.Printf("%s Disk (%s)\n", sym.Session, report.Disk.Path)
		fmt.Printf("  Total: %s\n", formatBytes(report.Disk.TotalBytes))
		fmt.Printf("  Free:  %s\n", formatBytes(report.Disk.FreeBytes))
		fmt.Printf("  Used:  %.1f%%\n", report.Disk.UsedPercent)
	}

	if statusSourcesFlag {
		fmt.Println()
		printConfigSources()
	}
	return nil
}

// printConfigSources lists every effective configuration value with the
// layer it came from.
func printConfigSources() {
	fmt.Println("Configuration:")
	for _, setting := range config.Introspect() {
		origin := string(setting.Source)
		if setting.SourcePath != "" {
			origin = fmt.Sprintf("%s (%s)", origin, setting.SourcePath)
		}
		fmt.Printf("  %-28s = %-24v [%s]\n", setting.Key, setting.Value, origin)
	}
}

// formatBytes renders a byte count in the largest round unit.
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
