package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/almanac/internal/ledger"
	"github.com/lazypower/almanac/internal/scheduler"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run retention, reflection and sync on their schedules",
	Long: "Runs the scheduled maintenance jobs until interrupted. Schedules come from\n" +
		"the schedule section of the config; an empty schedule disables that job.",
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

var daemonRunCmd = &cobra.Command{
	Use:       "run <sweep|reflection|sync>",
	Short:     "Run one scheduled job once, now",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"sweep", "reflection", "sync"},
	RunE:      runDaemonJob,
}

func init() {
	daemonCmd.AddCommand(daemonRunCmd)
}

// newScheduler registers the maintenance jobs. Jobs with an empty schedule
// are registered unscheduled, so they can still be run by name.
func newScheduler(db *ledger.DB) (*scheduler.Scheduler, error) {
	eng, err := newRetention(db)
	if err != nil {
		return nil, err
	}
	refl, err := newReflector()
	if err != nil {
		return nil, err
	}
	syncer := newSyncer()

	sched := scheduler.New(log.Named("scheduler"))
	jobs := []scheduler.Job{
		{Name: "sweep", Spec: cfg.Schedule.Sweep, Run: func(context.Context) error {
			_, err := eng.Sweep()
			return err
		}},
		{Name: "reflection", Spec: cfg.Schedule.Reflection, Run: func(context.Context) error {
			_, err := refl.Run()
			return err
		}},
		{Name: "sync", Spec: cfg.Schedule.Sync, Run: func(context.Context) error {
			_, err := syncer.Step()
			return err
		}},
	}
	for _, j := range jobs {
		if j.Spec == "" {
			log.Info("job not scheduled", zap.String("job", j.Name))
		}
		if err := sched.Add(j); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	db, err := openLedger()
	if err != nil {
		return err
	}
	defer closeLedger(db)

	sched, err := newScheduler(db)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)
	for name, next := range sched.Next() {
		log.Info("next run", zap.String("job", name), zap.Time("at", next))
	}
	log.Info("almanac daemon running", zap.String("root", cfg.Root), zap.String("version", VersionString()))

	<-ctx.Done()
	log.Info("shutting down")
	sched.Stop()
	return nil
}

func runDaemonJob(cmd *cobra.Command, args []string) error {
	db, err := openLedger()
	if err != nil {
		return err
	}
	defer closeLedger(db)

	sched, err := newScheduler(db)
	if err != nil {
		return err
	}
	if err := sched.RunNow(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s done\n", args[0])
	return nil
}
