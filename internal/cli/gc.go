package cli

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/almanac/internal/temperature"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Retention: archive cold records and mark stale knowledge",
}

var gcRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one retention sweep",
	Args:  cobra.NoArgs,
	RunE:  runGC,
}

var (
	tempCreated  string
	tempRefs     int
	tempPriority string
)

var gcTempCmd = &cobra.Command{
	Use:   "temp",
	Short: "Compute a temperature score for sample input",
	Args:  cobra.NoArgs,
	RunE:  runTemp,
}

func init() {
	gcCmd.AddCommand(gcRunCmd)
	gcCmd.AddCommand(gcTempCmd)

	gcTempCmd.Flags().StringVar(&tempCreated, "created", "2026-02-01", "creation date (YYYY-MM-DD)")
	gcTempCmd.Flags().IntVar(&tempRefs, "refs", 2, "references in the last 7 days")
	gcTempCmd.Flags().StringVar(&tempPriority, "priority", "medium", "high, medium or low")
}

func runGC(cmd *cobra.Command, args []string) error {
	db, err := openLedger()
	if err != nil {
		return err
	}
	defer closeLedger(db)

	eng, err := newRetention(db)
	if err != nil {
		return err
	}
	rep, err := eng.Sweep()

	out := cmd.OutOrStdout()
	for _, a := range rep.Archived {
		fmt.Fprintf(out, "archived  %-12s %s (%s days old, temperature %.2f)\n",
			a.Category, a.File, humanize.Ftoa(math.Floor(a.AgeDays)), a.Temperature)
	}
	for _, s := range rep.Skipped {
		fmt.Fprintf(out, "kept      %-12s %s (%s)\n", s.Category, s.File, s.Reason)
	}
	for _, s := range rep.Stale {
		fmt.Fprintf(out, "stale     %-12s %s (%d days unverified)\n", s.Category, s.File, s.Days)
	}
	fmt.Fprintf(out, "%d archived, %d kept, %d marked stale\n", len(rep.Archived), len(rep.Skipped), len(rep.Stale))
	return err
}

func runTemp(cmd *cobra.Command, args []string) error {
	created, err := time.Parse(time.DateOnly, tempCreated)
	if err != nil {
		return fmt.Errorf("--created: %w", err)
	}
	score := temperature.Score(temperature.Input{
		Created:    created,
		RecentRefs: tempRefs,
		Priority:   temperature.ParsePriority(tempPriority),
	}, time.Now())

	fmt.Fprintf(cmd.OutOrStdout(), "temperature: %.4f\nband: %s\n", score, temperature.Classify(score))
	return nil
}
