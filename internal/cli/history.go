package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	historyLimit    int
	historyArchived bool
	historyRecord   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent archival, staleness and knowledge write activity",
	Long: "Shows the most recent ledger entries. --archived lists every archived file,\n" +
		"--record <category>/<file> shows the write decisions taken for one record.",
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries")
	historyCmd.Flags().BoolVar(&historyArchived, "archived", false, "list archived files, oldest first")
	historyCmd.Flags().StringVar(&historyRecord, "record", "", "show knowledge write actions for <category>/<file>")
	historyCmd.MarkFlagsMutuallyExclusive("archived", "record")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !cfg.Ledger.Enabled {
		return fmt.Errorf("ledger is disabled (ledger.enabled: false)")
	}
	db, err := openLedger()
	if err != nil {
		return err
	}
	defer closeLedger(db)
	out := cmd.OutOrStdout()

	switch {
	case historyArchived:
		files, err := db.ArchivedFiles()
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Fprintln(out, "Nothing archived yet.")
			return nil
		}
		for _, f := range files {
			fmt.Fprintln(out, f)
		}
		return nil

	case historyRecord != "":
		category, file, ok := strings.Cut(historyRecord, "/")
		if !ok || category == "" || file == "" {
			return fmt.Errorf("--record wants <category>/<file>, got %q", historyRecord)
		}
		actions, err := db.KnowledgeActions(category, file)
		if err != nil {
			return err
		}
		if len(actions) == 0 {
			fmt.Fprintf(out, "No writes recorded for %s.\n", historyRecord)
			return nil
		}
		fmt.Fprintf(out, "%s: %s\n", historyRecord, strings.Join(actions, " -> "))
		return nil
	}

	entries, err := db.History(historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history yet.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%-14s %-9s %s/%s %s\n", humanize.Time(e.At), e.Kind, e.Category, e.File, e.Detail)
	}
	return nil
}
