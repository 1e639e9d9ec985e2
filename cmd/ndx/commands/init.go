package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ndx-io/NDX/display"
	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/session"
	"github.com/ndx-io/NDX/sym"
)

// InitCmd creates a session in a directory.
var InitCmd = &cobra.Command{
	Use:   "init <ref> [dir]",
	Short: sym.Session + " Create a session in a directory",
	Long: sym.Session + ` init - Create a session

Initializes a session in the given directory (default: current directory):
creates the .ndx metadata directory, the SQLite document database, and an
identity file, then registers the reference in ~/.ndx/sessions.json so
other commands can find the session by name.

Running init on an existing session with the same reference is a no-op.

Examples:
  ndx init exp-2026-08-21                  # Session in current directory
  ndx init exp-2026-08-21 ~/data/exp-21    # Session in a specific directory`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	ref := args[0]
	dir := "."
	if len(args) == 2 {
		dir = args[1]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", dir)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", abs)
	}

	sess, err := session.New(ref, abs, cliLogger())
	if err != nil {
		return err
	}
	defer sess.Close()

	table, err := session.NewTable(session.DefaultTablePath())
	if err == nil {
		err = table.Add(ref, abs)
	}
	if err != nil {
		pterm.Warning.Printf("Session created but not registered: %v\n", err)
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(map[string]string{
			"id":  sess.ID(),
			"ref": sess.Ref(),
			"dir": sess.Dir(),
		})
	}

	pterm.Success.Printf("Session %s ready in %s\n", ref, abs)
	fmt.Printf("  ID: %s\n", sess.ID())
	return nil
}
