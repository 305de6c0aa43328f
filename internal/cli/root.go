package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/almanac/internal/config"
	"github.com/lazypower/almanac/internal/logging"
)

var (
	cfgPath string
	verbose bool

	// Populated by PersistentPreRunE for every subcommand.
	cfg config.Config
	log = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "almanac",
	Short: "Personal memory store for AI agents",
	Long: "Almanac keeps an agent's memory as a layered JSON event store and markdown\n" +
		"knowledge records, archives what has gone cold and guards knowledge writes\n" +
		"against duplicates and contradictions.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = os.Getenv("ALMANAC_CONFIG")
		}
		if path == "" {
			p, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			path = p
		}

		c, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = c

		l, err := logging.New(cfg.Log.Level, cfg.Log.JSON, verbose)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		log = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.almanac/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(knowledgeCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(reflectCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(daemonCmd)
}
