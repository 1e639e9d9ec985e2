package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ndx-io/NDX/display"
	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/graph"
	"github.com/ndx-io/NDX/sym"
	"github.com/ndx-io/NDX/timesync"
)

// TimeCmd converts timestamps and inspects the sync graph.
var TimeCmd = &cobra.Command{
	Use:   "time",
	Short: sym.Time + " Convert timestamps and inspect the sync graph",
	Long: sym.Time + ` time - Time synchronization

Converts timestamps between device clocks and inspects the session's
synchronization graph. Clocks are named device:epoch:clock_type; a
conversion follows the shortest path of mappings between the two clocks.

Examples:
  ndx time convert daq1:t0001:dev_local_time cam1:t0001:dev_local_time 3.25
  ndx time convert daq1:t0001:dev_local_time daq1:t0001:approx_utc 0
  ndx time graph             # Nodes and edges of the sync graph
  ndx time graph --json      # Graph in the wire format the server serves`,
}

var timeConvertCmd = &cobra.Command{
	Use:   "convert <source> <target> <time>",
	Short: "Convert a timestamp between two clocks",
	Args:  cobra.ExactArgs(3),
	RunE:  runTimeConvert,
}

var timeGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show the synchronization graph",
	RunE:  runTimeGraph,
}

func init() {
	TimeCmd.AddCommand(timeConvertCmd)
	TimeCmd.AddCommand(timeGraphCmd)
}

func runTimeConvert(cmd *cobra.Command, args []string) error {
	source, err := timesync.ParseEpochClockID(args[0])
	if err != nil {
		return err
	}
	target, err := timesync.ParseEpochClockID(args[1])
	if err != nil {
		return err
	}
	t, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return errors.Wrapf(err, "parse time %q", args[2])
	}
	ref, err := timesync.NewTimeReference(source, t)
	if err != nil {
		return err
	}

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.LoadSyncGraph(cmd.Context()); err != nil {
		return err
	}

	out, err := sess.Graph().Convert(ref, target)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(map[string]interface{}{
			"source":    source.String(),
			"target":    target.String(),
			"time":      ref.Time,
			"converted": out.Time,
		})
	}

	fmt.Printf("%s %s → %s\n", sym.Time, ref, out)
	if verbosity, _ := cmd.Flags().GetCount("verbose"); verbosity >= 1 {
		if m, err := sess.Graph().Mapping(source, target); err == nil {
			fmt.Printf("  via scale=%g offset=%g\n", m.Scale, m.Offset)
		}
	}
	return nil
}

func runTimeGraph(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.LoadSyncGraph(cmd.Context()); err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		builder := graph.NewBuilder(cliLogger())
		return display.OutputJSON(builder.Build(sess.Graph(), sess.Ref()))
	}

	nodes := sess.Graph().Nodes()
	records := sess.Graph().Records()

	fmt.Printf("%s Sync graph: %d node(s), %d edge(s)\n\n", sym.Time, len(nodes), len(records))
	if len(nodes) == 0 {
		return nil
	}
	fmt.Println("Nodes:")
	for _, id := range nodes {
		fmt.Printf("  %s\n", id)
	}
	if len(records) == 0 {
		return nil
	}
	fmt.Println()
	fmt.Printf("%-34s %-34s %-12s %-14s %s\n", "SOURCE", "TARGET", "SCALE", "OFFSET", "VIA")
	fmt.Printf("%-34s %-34s %-12s %-14s %s\n", "------", "------", "-----", "------", "---")
	for _, rec := range records {
		fmt.Printf("%-34s %-34s %-12g %-14g %s\n",
			truncate(rec.Source.String(), 34),
			truncate(rec.Target.String(), 34),
			rec.Scale,
			rec.Offset,
			rec.DiscoveredBy)
	}
	return nil
}
