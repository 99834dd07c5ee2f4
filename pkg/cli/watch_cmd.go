package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"permctl/internal/service"
)

func newWatchCmd() *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run in the foreground, sweeping expired grants on a schedule",
		Long: `Runs the expiry sweep on a cron schedule until interrupted. An
immediate sweep and sudoers sync happen at startup so a crashed or
skipped sweep never leaves stale access in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if schedule == "" {
				schedule = a.cfg.SweepSchedule
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Converge on startup before the first tick.
			if _, err := a.manager.Cleanup(ctx); err != nil {
				return err
			}
			if err := a.manager.Synchronize(ctx); err != nil {
				return err
			}

			sweeper := service.NewSweeper(a.manager, schedule, a.logger)
			if err := sweeper.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching with schedule %q, Ctrl-C to stop\n", schedule)

			<-ctx.Done()
			sweeper.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule for the sweep (default from config)")
	return cmd
}
