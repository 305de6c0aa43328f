package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/almanac/internal/syncstate"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Advance the incremental sync cursor over the long-term tier",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newSyncer().Step()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res.Total == 0 {
			fmt.Fprintln(out, "No data to sync.")
			return nil
		}
		fmt.Fprintf(out, "synced %d events (%d new), version %d\n", res.Total, res.New, res.Cursor.Version)
		return nil
	},
}

func newSyncer() *syncstate.Syncer {
	return &syncstate.Syncer{
		StorePath: cfg.Store.Path,
		StatePath: cfg.Sync.StatePath,
		Log:       log.Named("sync"),
	}
}
