package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/almanac/internal/config"
	"github.com/lazypower/almanac/internal/hooks"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Handle agent hook events",
	// A broken config must not fail the agent: fall back to defaults.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		err := rootCmd.PersistentPreRunE(cmd, args)
		if err == nil {
			return nil
		}
		cfg = config.Default()
		if rerr := cfg.Resolve(); rerr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "almanac hook: %v (defaults unusable: %v)\n", err, rerr)
			cfg = config.Config{}
			return nil
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "almanac hook: %v (using defaults)\n", err)
		return nil
	},
}

func init() {
	for _, h := range []struct{ event, short string }{
		{"start", "Handle SessionStart hook"},
		{"submit", "Handle UserPromptSubmit hook"},
		{"tool", "Handle PostToolUse hook"},
		{"stop", "Handle Stop hook"},
		{"end", "Handle SessionEnd hook"},
	} {
		event := h.event
		hookCmd.AddCommand(&cobra.Command{
			Use:   event,
			Short: h.short,
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				runHook(cmd, event)
			},
		})
	}
}

// runHook never fails the caller: errors are logged and the process exits 0.
func runHook(cmd *cobra.Command, event string) {
	hlog := log.Named("hook").With(zap.String("event", event))

	s, err := openStore()
	if err != nil {
		hlog.Error("open store", zap.Error(err))
		if event == "start" {
			// The agent still expects a SessionStart document.
			h := &hooks.Handler{Out: cmd.OutOrStdout()}
			_ = h.WriteEmptyStart()
		}
		return
	}

	h := &hooks.Handler{Store: s, Out: cmd.OutOrStdout(), Log: hlog}
	if err := h.Handle(event, cmd.InOrStdin()); err != nil {
		hlog.Error("hook failed", zap.Error(err))
	}
}
