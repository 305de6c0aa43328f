package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lazypower/almanac/internal/reflection"
)

var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Write today's nightly reflection and index it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newReflector()
		if err != nil {
			return err
		}
		out, err := r.Run()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reflection for %s: %d entries -> %s\n", out.Date, out.Entries, out.Path)
		return nil
	},
}

func newReflector() (*reflection.Reflector, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	r := &reflection.Reflector{
		Root:     cfg.Root,
		Location: loc,
		Log:      log.Named("reflection"),
	}
	if cat, ok := cfg.Category("reflections"); ok {
		r.ReflectionsDir = filepath.Join(cfg.Root, cat.Dir)
	}
	return r, nil
}
