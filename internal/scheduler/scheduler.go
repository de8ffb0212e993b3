// Package scheduler re-probes the hardware on a cron schedule and stores the
// result whenever the adapter set changes or the last run has expired.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/device"
	"github.com/jmylchreest/hwcodec/internal/hostinfo"
	"github.com/jmylchreest/hwcodec/internal/models"
	"github.com/jmylchreest/hwcodec/internal/observability"
	"github.com/jmylchreest/hwcodec/internal/probe"
	"github.com/jmylchreest/hwcodec/internal/repository"
	"github.com/jmylchreest/hwcodec/pkg/format"
)

// Prober is the part of probe.Prober the scheduler drives.
type Prober interface {
	Available(ctx context.Context, opts probe.AvailableOptions) (probe.Availability, error)
}

// Config holds configuration for the scheduler.
type Config struct {
	// Schedule is a cron expression with a leading seconds field.
	Schedule string
	// TTL is how long a run stays fresh for an unchanged signature.
	// Zero means until the signature changes.
	TTL time.Duration
	// Retention prunes runs started longer ago than this. Zero disables pruning.
	Retention time.Duration
	// Options are passed to every probe. Stored exclusions are appended.
	Options   probe.AvailableOptions
	Simulated bool
}

// Outcome describes one check.
type Outcome struct {
	Run       *models.ProbeRun
	Signature string
	// Probed is false when a fresh stored run was reused.
	Probed bool
	Pruned int64
}

// Scheduler runs availability probes on a cron schedule.
type Scheduler struct {
	mu sync.Mutex

	provider   device.Provider
	prober     Prober
	runs       repository.ProbeRunRepository
	exclusions repository.ExclusionRepository

	config   Config
	schedule cron.Schedule
	clock    backend.Clock
	host     func(ctx context.Context) hostinfo.Info
	logger   *slog.Logger

	// check serialises probes so a slow run never overlaps the next tick.
	check sync.Mutex

	// Running state
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewParser returns the parser used for schedules: seconds first, then the
// usual five fields, with descriptors such as @hourly.
func NewParser() cron.Parser {
	return cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// ValidateCron checks that expr is a valid schedule.
func ValidateCron(expr string) error {
	if _, err := NewParser().Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// New creates a scheduler. exclusions may be nil.
func New(
	provider device.Provider,
	prober Prober,
	runs repository.ProbeRunRepository,
	exclusions repository.ExclusionRepository,
	config Config,
) (*Scheduler, error) {
	schedule, err := NewParser().Parse(config.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", config.Schedule, err)
	}
	return &Scheduler{
		provider:   provider,
		prober:     prober,
		runs:       runs,
		exclusions: exclusions,
		config:     config,
		schedule:   schedule,
		clock:      backend.SystemClock{},
		host:       hostinfo.Collect,
		logger:     observability.WithComponent(slog.Default(), "scheduler"),
	}, nil
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = observability.WithComponent(logger, "scheduler")
	return s
}

// WithClock sets the clock used for freshness and run timestamps.
func (s *Scheduler) WithClock(clock backend.Clock) *Scheduler {
	s.clock = clock
	return s
}

// WithHostInfo replaces host information collection.
func (s *Scheduler) WithHostInfo(fn func(ctx context.Context) hostinfo.Info) *Scheduler {
	s.host = fn
	return s
}

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Start runs one check immediately, then one per schedule activation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("scheduler already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop(s.ctx)

	s.logger.Info("scheduler started",
		slog.String("schedule", s.config.Schedule),
		slog.String("every", format.Schedule(s.config.Schedule)),
		slog.Duration("ttl", s.config.TTL),
		slog.Time("next", s.Next(time.Now())))

	return nil
}

// Stop stops the scheduler and waits for a running check to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.runCheck(ctx)

	for {
		wait := time.Until(s.Next(time.Now()))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.runCheck(ctx)
		}
	}
}

func (s *Scheduler) runCheck(ctx context.Context) {
	out, err := s.Check(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("probe check failed", slog.Any("error", err))
		}
		return
	}
	if !out.Probed {
		s.logger.Debug("stored probe run still fresh",
			slog.String("signature", out.Signature),
			slog.String("run_id", out.Run.ID.String()))
		return
	}
	s.logger.Info("probe run stored",
		slog.String("signature", out.Signature),
		slog.String("run_id", out.Run.ID.String()),
		slog.Int("features", len(out.Run.Features)),
		slog.Int64("pruned", out.Pruned))
}

// Check reuses the latest stored run when it is fresh for the current
// adapter signature. Otherwise it probes and stores a new run.
func (s *Scheduler) Check(ctx context.Context) (Outcome, error) {
	s.check.Lock()
	defer s.check.Unlock()

	adapters, err := s.provider.Adapters(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("enumerating adapters: %w", err)
	}
	out := Outcome{Signature: models.FormatSignature(probe.Signature(adapters))}

	latest, err := s.runs.Latest(ctx, out.Signature)
	if err != nil {
		return out, fmt.Errorf("loading latest run: %w", err)
	}
	if latest != nil && latest.Fresh(out.Signature, s.config.TTL, s.clock.Now()) {
		out.Run = latest
		return out, nil
	}

	opts := s.config.Options
	opts.Exclusions = slices.Clone(opts.Exclusions)
	if s.exclusions != nil {
		stored, err := s.exclusions.List(ctx)
		if err != nil {
			return out, fmt.Errorf("loading exclusions: %w", err)
		}
		for _, e := range repository.Exclusions(stored) {
			opts.Exclusions = opts.Exclusions.Add(e.LUID, e.Codec)
		}
	}

	started := s.clock.Now()
	av, err := s.prober.Available(ctx, opts)
	if err != nil {
		return out, fmt.Errorf("probing: %w", err)
	}

	run := repository.NewRun(probe.Signature(adapters), s.host(ctx), s.config.Simulated, started, s.clock.Now(), av)
	if err := s.runs.Create(ctx, run); err != nil {
		return out, fmt.Errorf("storing run: %w", err)
	}
	out.Run = run
	out.Probed = true

	if s.config.Retention > 0 {
		pruned, err := s.runs.DeleteOlderThan(ctx, started.Add(-s.config.Retention))
		if err != nil {
			s.logger.Warn("pruning old runs failed", slog.Any("error", err))
		}
		out.Pruned = pruned
	}
	return out, nil
}
