package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/config"
	"github.com/jmylchreest/hwcodec/internal/database"
	"github.com/jmylchreest/hwcodec/internal/device"
	"github.com/jmylchreest/hwcodec/internal/driver"
	"github.com/jmylchreest/hwcodec/internal/probe"
	"github.com/jmylchreest/hwcodec/internal/repository"
	"github.com/jmylchreest/hwcodec/internal/session"
	"github.com/jmylchreest/hwcodec/internal/sim"
)

// environment binds a command to either the real GPUs or a simulated machine.
type environment struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider device.Provider
	runtimes driver.Runtimes
	clock    backend.Clock
	machine  *sim.Machine // nil on real hardware
}

func newEnvironment(cfg *config.Config) *environment {
	e := &environment{cfg: cfg, logger: slog.Default()}
	if viper.GetBool("simulate") {
		e.machine = sim.DefaultMachine()
		e.provider = e.machine.Provider()
		e.runtimes = e.machine.Runtimes()
		e.clock = e.machine.Clock()
		return e
	}
	e.provider = device.Native()
	e.runtimes = driver.Native()
	e.clock = backend.SystemClock{}
	return e
}

// loadEnvironment loads the configuration and binds the hardware.
func loadEnvironment() (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newEnvironment(cfg), nil
}

func (e *environment) simulated() bool {
	return e.machine != nil
}

func (e *environment) limits() backend.Limits {
	l := backend.DefaultLimits()
	l.DrainAttempts = e.cfg.Encode.DrainAttempts
	l.DrainInterval = e.cfg.Encode.DrainInterval
	l.ConvertAttempts = e.cfg.Encode.ConverterAttempts
	l.ConvertInterval = e.cfg.Encode.ConverterInterval
	l.SyncTimeout = e.cfg.Encode.SyncTimeout
	return l
}

func (e *environment) prober() *probe.Prober {
	return probe.New(e.provider, session.NewRegistry(e.runtimes), probe.Options{
		Logger:         e.logger,
		Clock:          e.clock,
		Limits:         e.limits(),
		SelfTestBudget: e.cfg.Probe.SelfTestBudget,
		SampleDir:      e.cfg.Probe.DecodeSampleDir,
	})
}

func (e *environment) manager() *session.Manager {
	return session.NewManager(session.NewRegistry(e.runtimes), session.Options{
		Logger:  e.logger,
		Clock:   e.clock,
		Limits:  e.limits(),
		Tracker: session.NewTracker(e.cfg.Sessions.MaxPerAdapter),
	})
}

// driverInfo reports runtime presence per driver.
func (e *environment) driverInfo() []driver.Info {
	if !e.simulated() {
		return driver.Detect()
	}
	out := make([]driver.Info, 0, len(codec.AllDrivers()))
	for _, d := range codec.AllDrivers() {
		info := driver.Info{Driver: d, Library: "simulated"}
		if e.machine.HasRuntime(d) {
			info.Present = true
			info.Version = "sim"
		} else {
			info.Library = ""
			info.Error = codec.ErrUnavailable.Error()
		}
		out = append(out, info)
	}
	return out
}

func parseDrivers(names []string) ([]codec.Driver, error) {
	out := make([]codec.Driver, 0, len(names))
	for _, n := range names {
		d, err := codec.ParseDriver(strings.TrimSpace(n))
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func parseKinds(names []string) ([]codec.Kind, error) {
	out := make([]codec.Kind, 0, len(names))
	for _, n := range names {
		k, err := codec.ParseKind(strings.TrimSpace(n))
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// profile returns the configured probe profile for k.
func (e *environment) profile(k codec.Kind) (probe.Profile, error) {
	format, err := codec.ParsePixelFormat(e.cfg.Probe.Format)
	if err != nil {
		return probe.Profile{}, err
	}
	return probe.Profile{
		Codec:    k,
		Format:   format,
		Geometry: codec.Geometry{Width: e.cfg.Probe.Width, Height: e.cfg.Probe.Height},
		Rate: codec.RateControl{
			BitrateKbps: e.cfg.Probe.BitrateKbps,
			Framerate:   e.cfg.Probe.Framerate,
			GOP:         e.cfg.Probe.GOP,
		},
	}, nil
}

// availableOptions builds the discovery options from the probe section.
func (e *environment) availableOptions(decode bool, excl probe.Exclusions) (probe.AvailableOptions, error) {
	drivers, err := parseDrivers(e.cfg.Probe.Drivers)
	if err != nil {
		return probe.AvailableOptions{}, err
	}
	kinds, err := parseKinds(e.cfg.Probe.Codecs)
	if err != nil {
		return probe.AvailableOptions{}, err
	}
	p, err := e.profile(codec.H264)
	if err != nil {
		return probe.AvailableOptions{}, err
	}
	return probe.AvailableOptions{
		Drivers:    drivers,
		Codecs:     kinds,
		Format:     p.Format,
		Geometry:   p.Geometry,
		Rate:       p.Rate,
		MaxResults: e.cfg.Probe.MaxResults,
		Exclusions: excl,
		Decode:     decode,
	}, nil
}

// openStore connects to the configured database and applies migrations.
func (e *environment) openStore(ctx context.Context) (*database.DB, error) {
	db, err := database.New(e.cfg.Database, e.logger, nil)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// exclusions merges the exclusion file with the pairs stored in db. db may
// be nil. A missing file is not an error.
func (e *environment) exclusions(ctx context.Context, db *database.DB) (probe.Exclusions, error) {
	var out probe.Exclusions
	if path := e.cfg.Exclusions.File; path != "" {
		fromFile, err := probe.LoadExclusions(path)
		if err != nil {
			return nil, err
		}
		out = fromFile
	}
	if db == nil {
		return out, nil
	}
	stored, err := repository.NewExclusionRepository(db.DB).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading stored exclusions: %w", err)
	}
	for _, x := range repository.Exclusions(stored) {
		out = out.Add(x.LUID, x.Codec)
	}
	return out, nil
}
