package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/almanac/internal/eventstore"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Layered event store",
}

var addMeta []string

var memoryAddCmd = &cobra.Command{
	Use:   "add <type> <content...>",
	Short: "Ingest one event",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMemoryAdd,
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show tier sizes and learning counters",
	Args:  cobra.NoArgs,
	RunE:  runMemoryStats,
}

var prefsTop int

var memoryPrefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Dump learned keyword preferences per event type",
	Args:  cobra.NoArgs,
	RunE:  runMemoryPrefs,
}

var memoryPatternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Dump learned usage patterns",
	Args:  cobra.NoArgs,
	RunE:  runMemoryPatterns,
}

var queryTier string

var memoryQueryCmd = &cobra.Command{
	Use:   "query <keyword>",
	Short: "Find events whose content contains a keyword",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryQuery,
}

func init() {
	memoryCmd.AddCommand(memoryAddCmd)
	memoryCmd.AddCommand(memoryStatsCmd)
	memoryCmd.AddCommand(memoryPrefsCmd)
	memoryCmd.AddCommand(memoryPatternsCmd)
	memoryCmd.AddCommand(memoryQueryCmd)

	memoryAddCmd.Flags().StringArrayVarP(&addMeta, "meta", "m", nil, "metadata key=value (repeatable)")
	memoryPrefsCmd.Flags().IntVarP(&prefsTop, "top", "n", 10, "keywords per type (0 = all)")
	memoryQueryCmd.Flags().StringVarP(&queryTier, "tier", "t", "L2", "tier to search: L0, L1 or L2")
}

func runMemoryAdd(cmd *cobra.Command, args []string) error {
	meta := map[string]any{}
	for _, kv := range addMeta {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("--meta %q: want key=value", kv)
		}
		meta[k] = v
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	ev, err := s.Ingest(args[0], strings.Join(args[1:], " "), meta)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", ev.ID, ev.Type)
	return nil
}

func runMemoryStats(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	st := s.Stats()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "L0 (immediate):  %s / %s\n", humanize.Comma(int64(st.L0)), humanize.Comma(int64(s.Capacity(eventstore.Immediate))))
	fmt.Fprintf(out, "L1 (short-term): %s / %s\n", humanize.Comma(int64(st.L1)), humanize.Comma(int64(s.Capacity(eventstore.ShortTerm))))
	fmt.Fprintf(out, "L2 (long-term):  %s\n", humanize.Comma(int64(st.L2)))
	fmt.Fprintf(out, "total events:    %s\n", humanize.Comma(int64(st.TotalEvents)))
	fmt.Fprintf(out, "preference types: %d\n", st.Preferences)
	fmt.Fprintf(out, "patterns:        %d\n", st.Patterns)
	if info, err := os.Stat(s.Path()); err == nil {
		fmt.Fprintf(out, "store:           %s (%s, updated %s)\n", s.Path(), humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
	}
	return nil
}

func runMemoryPrefs(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	st := s.Learning()
	prefs := s.Preferences()
	out := cmd.OutOrStdout()
	if len(prefs) == 0 {
		fmt.Fprintln(out, "No preferences learned yet.")
		return nil
	}
	for _, typ := range st.Types() {
		fmt.Fprintf(out, "## %s (%d events)\n", typ, prefs[typ].Count)
		for _, kc := range st.TopKeywords(typ, prefsTop) {
			fmt.Fprintf(out, "  %-24s %d\n", kc.Keyword, kc.Count)
		}
	}
	return nil
}

func runMemoryPatterns(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.Patterns()); err != nil {
		return fmt.Errorf("encode patterns: %w", err)
	}
	if hour, n, ok := s.Learning().PeakHour(); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "peak hour: %s:00 (%d events)\n", hour, n)
	}
	return nil
}

func runMemoryQuery(cmd *cobra.Command, args []string) error {
	tier, err := eventstore.ParseTier(queryTier)
	if err != nil {
		return err
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	events, err := s.Query(args[0], tier)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(out, "No matching events.")
		return nil
	}
	for _, ev := range events {
		fmt.Fprintf(out, "%s  %-8s %s  (%s)\n", ev.Timestamp.Local().Format(time.DateTime), ev.Type, ev.Content, ev.ID)
	}
	return nil
}
