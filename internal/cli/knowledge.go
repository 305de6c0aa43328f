package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazypower/almanac/internal/knowledge"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Validated knowledge records",
}

var knowledgeValidateCmd = &cobra.Command{
	Use:   "validate <category> <file> <content...>",
	Short: "Classify a proposed write without applying it",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runKnowledgeValidate,
}

var writeMeta knowledge.Metadata

var knowledgeWriteCmd = &cobra.Command{
	Use:   "write <category> <file> <content...>",
	Short: "Validate and apply a knowledge write",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runKnowledgeWrite,
}

var knowledgeVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "List knowledge records overdue for verification",
	Args:  cobra.NoArgs,
	RunE:  runKnowledgeVerify,
}

func init() {
	knowledgeCmd.AddCommand(knowledgeValidateCmd)
	knowledgeCmd.AddCommand(knowledgeWriteCmd)
	knowledgeCmd.AddCommand(knowledgeVerifyCmd)

	knowledgeWriteCmd.Flags().StringVar(&writeMeta.Title, "title", "", "record title (default: file name)")
	knowledgeWriteCmd.Flags().StringVar(&writeMeta.Date, "date", "", "record date (default: today)")
	knowledgeWriteCmd.Flags().StringVar(&writeMeta.Priority, "priority", "", "high, medium or low (default low)")
}

func runKnowledgeValidate(cmd *cobra.Command, args []string) error {
	v, err := newValidator(nil)
	if err != nil {
		return err
	}
	res, err := v.Validate(args[0], args[1], strings.Join(args[2:], " "))
	if err != nil {
		return withCategoryHint(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Action, res.Reason)
	return nil
}

func runKnowledgeWrite(cmd *cobra.Command, args []string) error {
	db, err := openLedger()
	if err != nil {
		return err
	}
	defer closeLedger(db)

	v, err := newValidator(db)
	if err != nil {
		return err
	}
	res, err := v.Write(args[0], args[1], strings.Join(args[2:], " "), writeMeta)
	if err != nil {
		return withCategoryHint(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s/%s)\n", res.Action, res.Reason, args[0], args[1])
	return nil
}

// withCategoryHint lists the configured knowledge categories on an unknown one.
func withCategoryHint(err error) error {
	if !errors.Is(err, knowledge.ErrUnknownCategory) {
		return err
	}
	return fmt.Errorf("%w (knowledge categories: %s)", err, strings.Join(cfg.KnowledgeCategories(), ", "))
}

func runKnowledgeVerify(cmd *cobra.Command, args []string) error {
	v, err := newValidator(nil)
	if err != nil {
		return err
	}
	stale, err := v.VerifyAll()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(stale) == 0 {
		fmt.Fprintln(out, "All knowledge records are current.")
		return nil
	}
	fmt.Fprintf(out, "%d records overdue for verification:\n", len(stale))
	for _, r := range stale {
		fmt.Fprintf(out, "  - %s/%s (%d days unverified)\n", r.Category, r.File, r.Days)
	}
	return nil
}
