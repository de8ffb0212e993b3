package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hwcodec/internal/database"
	"github.com/jmylchreest/hwcodec/internal/hostinfo"
	"github.com/jmylchreest/hwcodec/internal/models"
	"github.com/jmylchreest/hwcodec/internal/probe"
	"github.com/jmylchreest/hwcodec/internal/repository"
)

var availableCmd = &cobra.Command{
	Use:   "available",
	Short: "Discover every working encoder and decoder",
	Long:  `Walk every configured driver and codec and report each adapter that passes
its self-test. An adapter reported for one codec by an earlier driver is not
reported again for that codec.

With --cached, the newest stored run is reused while the hardware signature
is unchanged and the run is younger than probe.cache_ttl. A fresh probe is
stored with --cached or --store.

Examples:
  hwcodec available -o json
  hwcodec available --cached -o yaml`,
	RunE: runAvailable,
}

func init() {
	rootCmd.AddCommand(availableCmd)

	availableCmd.Flags().StringP("output", "o", "text", "output format (text, json, yaml)")
	availableCmd.Flags().Bool("decode", true, "also probe decoders")
	availableCmd.Flags().Bool("cached", false, "reuse a fresh stored run when the hardware is unchanged")
	availableCmd.Flags().Bool("store", false, "store the probe run in the database")
}

func runAvailable(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	if err := validateOutput(output); err != nil {
		return err
	}
	decode, _ := cmd.Flags().GetBool("decode")
	cached, _ := cmd.Flags().GetBool("cached")
	store, _ := cmd.Flags().GetBool("store")

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var db *database.DB
	if cached || store {
		if db, err = env.openStore(ctx); err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
	}

	adapters, err := env.provider.Adapters(ctx)
	if err != nil {
		return fmt.Errorf("enumerating adapters: %w", err)
	}
	signature := probe.Signature(adapters)

	var av probe.Availability
	var runID string
	if cached {
		runs := repository.NewProbeRunRepository(db.DB)
		latest, err := runs.Latest(ctx, models.FormatSignature(signature))
		if err != nil {
			return err
		}
		if latest != nil && latest.Fresh(models.FormatSignature(signature), env.cfg.Probe.CacheTTL.Duration(), time.Now()) {
			av = repository.Availability(latest)
			runID = latest.ID.String()
			env.logger.Debug("using stored probe run", slog.String("run_id", runID))
		}
	}

	if runID == "" {
		excl, err := env.exclusions(ctx, db)
		if err != nil {
			return err
		}
		opts, err := env.availableOptions(decode, excl)
		if err != nil {
			return err
		}
		started := time.Now()
		if av, err = env.prober().Available(ctx, opts); err != nil {
			return err
		}
		if db != nil {
			run := repository.NewRun(signature, hostinfo.Collect(ctx), env.simulated(), started, time.Now(), av)
			if err := repository.NewProbeRunRepository(db.DB).Create(ctx, run); err != nil {
				return fmt.Errorf("storing probe run: %w", err)
			}
			env.logger.Info("probe run stored",
				slog.String("run_id", run.ID.String()),
				slog.Int("encoders", len(av.Encoders)),
				slog.Int("decoders", len(av.Decoders)))
		}
	}

	if av.Encoders == nil {
		av.Encoders = []probe.Result{}
	}
	if av.Decoders == nil {
		av.Decoders = []probe.Result{}
	}

	out := cmd.OutOrStdout()
	if ok, err := writeStructured(out, output, av); ok {
		return err
	}

	if runID != "" {
		_, _ = fmt.Fprintln(out, faintStyle.Render("from stored run "+runID))
	}
	title(out, "Encoders")
	if len(av.Encoders) == 0 {
		_, _ = fmt.Fprintln(out, warnStyle.Render("none"))
	} else if err := printResults(out, av.Encoders); err != nil {
		return err
	}
	if !decode && runID == "" {
		return nil
	}
	_, _ = fmt.Fprintln(out)
	title(out, "Decoders")
	if len(av.Decoders) == 0 {
		_, _ = fmt.Fprintln(out, warnStyle.Render("none"))
		return nil
	}
	return printResults(out, av.Decoders)
}
