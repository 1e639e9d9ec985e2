package commands

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ndx-io/NDX/display"
	"github.com/ndx-io/NDX/document"
	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/sym"
)

// DocsCmd lists and searches session documents.
var DocsCmd = &cobra.Command{
	Use:   "docs",
	Short: sym.Doc + " List and search session documents",
	Long: sym.Doc + ` docs - Session documents

List, search, inspect and remove documents in the session database.

Examples:
  ndx docs ls                             # All documents
  ndx docs ls --type epoch                # Documents of a type (and subtypes)
  ndx docs ls --where element.name=probe1 # Property filter (exact match)
  ndx docs get 0196a3d2...                # Full document as JSON
  ndx docs rm 0196a3d2...                 # Remove a document and dependents`,
}

var docsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List documents matching a query",
	RunE:  runDocsLs,
}

var docsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print one document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsGet,
}

var docsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a document and everything depending on it",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsRm,
}

var (
	docsTypeFlag  string
	docsWhereFlag []string
	docsLimitFlag int
)

func init() {
	docsLsCmd.Flags().StringVar(&docsTypeFlag, "type", "", "Filter by document type, including subtypes")
	docsLsCmd.Flags().StringArrayVar(&docsWhereFlag, "where", nil, "Property filter field=value (repeatable, ANDed)")
	docsLsCmd.Flags().IntVar(&docsLimitFlag, "limit", 50, "Maximum number of documents to show (0 = all)")

	DocsCmd.AddCommand(docsLsCmd)
	DocsCmd.AddCommand(docsGetCmd)
	DocsCmd.AddCommand(docsRmCmd)
}

// docsQuery builds the search query from --type and --where flags. With no
// flags the query matches every document.
func docsQuery() (*document.Query, error) {
	q := document.NewQuery()
	if docsTypeFlag != "" {
		q.IsA(docsTypeFlag)
	}
	for _, clause := range docsWhereFlag {
		field, value, ok := strings.Cut(clause, "=")
		if !ok || field == "" {
			return nil, errors.NewInvalidRequestError("--where needs field=value, got %q", clause)
		}
		q.Where(field, document.OpExactString, value)
	}
	return q, nil
}

func runDocsLs(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	q, err := docsQuery()
	if err != nil {
		return err
	}
	docs, err := sess.Store().Search(cmd.Context(), sess.ID(), q)
	if err != nil {
		return err
	}
	total := len(docs)
	if docsLimitFlag > 0 && len(docs) > docsLimitFlag {
		docs = docs[:docsLimitFlag]
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(docs)
	}

	if total == 0 {
		fmt.Printf("%s No documents found\n", sym.Doc)
		return nil
	}

	fmt.Printf("%-14s %-20s %-10s %-6s %s\n", "ID", "TYPE", "DEPS", "FILES", "UPDATED")
	fmt.Printf("%-14s %-20s %-10s %-6s %s\n", "--", "----", "----", "-----", "-------")
	for _, doc := range docs {
		fmt.Printf("%-14s %-20s %-10d %-6d %s\n",
			truncate(doc.ID, 14),
			truncate(doc.Type, 20),
			len(doc.DependsOn),
			len(doc.Files),
			doc.UpdatedAt.Format("2006-01-02 15:04"))
	}
	if total > len(docs) {
		fmt.Printf("\nShowing %d of %d document(s)\n", len(docs), total)
	} else {
		fmt.Printf("\nTotal: %d document(s)\n", total)
	}
	return nil
}

func runDocsGet(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	doc, err := sess.Store().Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	// A document is JSON either way; --json only suppresses decoration.
	return display.OutputJSON(doc)
}

func runDocsRm(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	removed, err := sess.Store().Remove(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(map[string]int{"removed": removed})
	}
	pterm.Success.Printf("Removed %d document(s)\n", removed)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
