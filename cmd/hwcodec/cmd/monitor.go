package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hwcodec/internal/repository"
	"github.com/jmylchreest/hwcodec/internal/scheduler"
	"github.com/jmylchreest/hwcodec/pkg/format"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Re-probe on a schedule and store the results",
	Long:  `Run availability probes on the cron schedule in monitor.schedule (six
fields, seconds first). A probe only runs when the hardware signature has
changed or the newest stored run is older than probe.cache_ttl. Each new run
is stored in the database; runs older than monitor.retention are pruned.

Use --once to perform a single check and exit.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().String("schedule", "", "cron schedule with seconds (default monitor.schedule)")
	monitorCmd.Flags().Bool("once", false, "run one check and exit")
	monitorCmd.Flags().Bool("decode", true, "also probe decoders")
	mustBindPFlag("monitor.schedule", monitorCmd.Flags().Lookup("schedule"))
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	once, _ := cmd.Flags().GetBool("once")
	decode, _ := cmd.Flags().GetBool("decode")

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	if err := scheduler.ValidateCron(env.cfg.Monitor.Schedule); err != nil {
		return err
	}
	ctx := cmd.Context()

	db, err := env.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	excl, err := env.exclusions(ctx, nil)
	if err != nil {
		return err
	}
	opts, err := env.availableOptions(decode, excl)
	if err != nil {
		return err
	}

	s, err := scheduler.New(
		env.provider,
		env.prober(),
		repository.NewProbeRunRepository(db.DB),
		repository.NewExclusionRepository(db.DB),
		scheduler.Config{
			Schedule:  env.cfg.Monitor.Schedule,
			TTL:       env.cfg.Probe.CacheTTL.Duration(),
			Retention: env.cfg.Monitor.Retention.Duration(),
			Options:   opts,
			Simulated: env.simulated(),
		},
	)
	if err != nil {
		return err
	}
	s = s.WithLogger(env.logger)

	if once {
		outcome, err := s.Check(ctx)
		if err != nil {
			return err
		}
		state := "reused"
		if outcome.Probed {
			state = "stored"
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "%s run %s for signature %s (%d features)\n",
			state, outcome.Run.ID, outcome.Signature, len(outcome.Run.Features))
		return nil
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "monitoring %s, next check at %s\n",
		format.Schedule(env.cfg.Monitor.Schedule), s.Next(time.Now()).Format(time.RFC3339))
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	env.logger.Info("shutting down monitor", slog.String("reason", context.Cause(ctx).Error()))
	s.Stop()
	return nil
}
