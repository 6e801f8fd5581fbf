package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stroysmeta/normcat-cli/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the periodic ETL scheduler",
	Long: `Run ETL jobs on the configured cron schedule until interrupted.

The schedule is a six-field cron expression (with seconds), e.g.
"0 0 */6 * * *" for every six hours.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "schedule: migrate")
		}

		orch, err := buildOrchestrator(st)
		if err != nil {
			return err
		}

		sched := schedule.New()
		if err := sched.Add("etl", cfg.Schedule.ETLSpec, func(ctx context.Context) error {
			_, err := orch.Run(ctx, nil)
			return err
		}); err != nil {
			return eris.Wrap(err, "schedule: add etl entry")
		}

		zap.L().Info("scheduler starting", zap.String("etl_spec", cfg.Schedule.ETLSpec))
		return sched.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
