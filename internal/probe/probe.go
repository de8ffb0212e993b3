// Package probe discovers which adapters can actually run a codec profile
// by opening throwaway sessions on real (or simulated) hardware.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/device"
	"github.com/jmylchreest/hwcodec/internal/observability"
	"github.com/jmylchreest/hwcodec/internal/session"
	"github.com/jmylchreest/hwcodec/internal/sim"
)

// DecodeSampleGeometry is the coded size of the decode probe samples.
var DecodeSampleGeometry = codec.Geometry{Width: 1280, Height: 720}

// Profile is the encode configuration an adapter must handle.
type Profile struct {
	Codec    codec.Kind
	Format   codec.PixelFormat
	Geometry codec.Geometry
	Rate     codec.RateControl
}

// DefaultProfile is the 720p profile used when nothing is configured.
func DefaultProfile(k codec.Kind) Profile {
	return Profile{
		Codec:    k,
		Format:   codec.BGRA,
		Geometry: codec.Geometry{Width: 1280, Height: 720},
		Rate:     codec.RateControl{BitrateKbps: 4000, Framerate: 30, GOP: 60},
	}
}

// Result is one adapter that passed a probe.
type Result struct {
	LUID        int64        `json:"luid" yaml:"luid"`
	Vendor      codec.Vendor `json:"vendor" yaml:"vendor"`
	Driver      codec.Driver `json:"driver" yaml:"driver"`
	Codec       codec.Kind   `json:"codec" yaml:"codec"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
}

// Options configure a Prober.
type Options struct {
	Logger *slog.Logger
	Clock  backend.Clock
	Limits backend.Limits
	// SelfTestBudget is the wall-clock limit for the first keyframe, and
	// for the first decoded picture.
	SelfTestBudget time.Duration
	// SampleDir holds 720p.h264 and 720p.h265 for decode probing.
	SampleDir string
}

// Prober runs capability probes. Probing within one driver is sequential:
// one adapter holds a device, a surface and a session at a time.
type Prober struct {
	provider device.Provider
	registry *session.Registry
	manager  *session.Manager
	logger   *slog.Logger
	clock    backend.Clock
	budget   time.Duration
	samples  string
}

// New returns a prober that opens devices from provider and sessions from
// the factories in registry.
func New(provider device.Provider, registry *session.Registry, opts Options) *Prober {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = backend.SystemClock{}
	}
	if opts.SelfTestBudget <= 0 {
		opts.SelfTestBudget = backend.DefaultSelfTestBudget
	}
	logger := observability.WithComponent(opts.Logger, "probe")
	return &Prober{
		provider: provider,
		registry: registry,
		manager: session.NewManager(registry, session.Options{
			Logger: logger,
			Clock:  opts.Clock,
			Limits: opts.Limits,
		}),
		logger:  logger,
		clock:   opts.Clock,
		budget:  opts.SelfTestBudget,
		samples: opts.SampleDir,
	}
}

// candidates lists the adapters driven by d in provider order.
func (p *Prober) candidates(ctx context.Context, d codec.Driver) ([]device.Adapter, error) {
	all, err := p.provider.Adapters(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating adapters: %w", err)
	}
	adapters := device.FilterVendor(all, d.Vendor())
	if len(adapters) == 0 {
		return nil, &codec.Error{Op: "probe", Driver: d.String(), Err: codec.ErrUnavailable, Detail: "no adapters for vendor " + d.Vendor().String()}
	}
	return adapters, nil
}

type attempt func(ctx context.Context, d codec.Driver, a device.Adapter, log *slog.Logger) (bool, error)

// run evaluates adapters in order until maxResults pass. Failures of single
// adapters are logged and swallowed; an error is returned only when every
// adapter that was tried failed.
func (p *Prober) run(ctx context.Context, d codec.Driver, k codec.Kind, excl Exclusions, maxResults int, try attempt) ([]Result, error) {
	if maxResults <= 0 {
		return nil, nil
	}
	adapters, err := p.candidates(ctx, d)
	if err != nil {
		return nil, err
	}

	var (
		results []Result
		errs    []error
		tried   int
	)
	for _, a := range adapters {
		if len(results) >= maxResults {
			break
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		log := observability.WithAdapter(observability.WithDriver(p.logger, d.String()), a.LUID).
			With(slog.String("codec", k.String()))
		if excl.Contains(a.LUID, k) {
			log.Debug("adapter excluded")
			continue
		}

		tried++
		ok, err := p.safely(ctx, d, a, log, try)
		switch {
		case err != nil:
			log.Info("adapter failed probe", slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("adapter %d: %w", a.LUID, err))
		case !ok:
			log.Info("adapter did not pass probe")
			errs = append(errs, fmt.Errorf("adapter %d: did not pass", a.LUID))
		default:
			log.Debug("adapter passed probe")
			results = append(results, Result{LUID: a.LUID, Vendor: a.VendorID, Driver: d, Codec: k, Description: a.Description})
		}
	}

	if len(results) == 0 && tried > 0 {
		return nil, &codec.Error{Op: "probe", Driver: d.String(), Err: codec.ErrUnavailable, Detail: errors.Join(errs...).Error()}
	}
	return results, nil
}

// safely runs one attempt, turning a panic into an error so the next
// adapter is still evaluated.
func (p *Prober) safely(ctx context.Context, d codec.Driver, a device.Adapter, log *slog.Logger, try attempt) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, &codec.Error{Op: "probe", Driver: d.String(), Err: codec.ErrFatal, Detail: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return try(ctx, d, a, log)
}

// open returns the device for a and a function that closes it.
func (p *Prober) open(ctx context.Context, d codec.Driver, a device.Adapter, log *slog.Logger) (*device.Device, func(), error) {
	dev, err := p.provider.Open(ctx, a, device.OptionsFor(d))
	if err != nil {
		return nil, nil, fmt.Errorf("opening device: %w", err)
	}
	return dev, func() {
		if err := p.provider.Close(dev); err != nil {
			log.Warn("closing device", slog.String("error", err.Error()))
		}
	}, nil
}

// Probe returns up to maxResults adapters of driver d that produce a
// keyframe for profile. Pairs in excl are never opened.
func (p *Prober) Probe(ctx context.Context, d codec.Driver, profile Profile, excl Exclusions, maxResults int) ([]Result, error) {
	return p.run(ctx, d, profile.Codec, excl, maxResults, func(ctx context.Context, d codec.Driver, a device.Adapter, log *slog.Logger) (bool, error) {
		dev, closeDev, err := p.open(ctx, d, a, log)
		if err != nil {
			return false, err
		}
		defer closeDev()

		tex, err := p.provider.AllocateSurface(dev, profile.Geometry, profile.Format)
		if err != nil {
			return false, fmt.Errorf("allocating surface: %w", err)
		}
		defer func() {
			if err := p.provider.FreeSurface(dev, tex); err != nil {
				log.Warn("freeing surface", slog.String("error", err.Error()))
			}
		}()

		s, err := p.manager.CreateEncoder(backend.Params{
			Device:   dev.Handle,
			LUID:     a.LUID,
			Vendor:   a.VendorID,
			Codec:    profile.Codec,
			Format:   profile.Format,
			Geometry: profile.Geometry,
			Rate:     profile.Rate,
		})
		if err != nil {
			return false, err
		}
		defer s.Destroy()

		report, err := s.SelfTest(tex, p.budget)
		if err != nil {
			return false, err
		}
		log.Debug("self-test finished",
			slog.Bool("keyframe", report.Keyframe),
			slog.Int("submitted", report.Submitted),
			slog.Int("bytes", report.PacketSize),
			slog.Duration("elapsed", report.Elapsed),
		)
		return report.Keyframe, nil
	})
}

// ProbeDecode returns up to maxResults adapters of driver d that decode the
// 720p sample for k within the budget.
func (p *Prober) ProbeDecode(ctx context.Context, d codec.Driver, k codec.Kind, excl Exclusions, maxResults int) ([]Result, error) {
	sample := p.sample(k)
	return p.run(ctx, d, k, excl, maxResults, func(ctx context.Context, d codec.Driver, a device.Adapter, log *slog.Logger) (bool, error) {
		dev, closeDev, err := p.open(ctx, d, a, log)
		if err != nil {
			return false, err
		}
		defer closeDev()

		s, err := p.manager.CreateDecoder(backend.Params{
			Device:   dev.Handle,
			LUID:     a.LUID,
			Vendor:   a.VendorID,
			Codec:    k,
			Format:   codec.BGRA,
			Geometry: DecodeSampleGeometry,
		})
		if err != nil {
			return false, err
		}
		defer s.Destroy()

		start := p.clock.Now()
		out, err := s.Decode(sample)
		elapsed := p.clock.Now().Sub(start)
		if err != nil {
			return false, err
		}
		for _, f := range out.Frames {
			_ = f.Release()
		}
		if elapsed > p.budget {
			return false, fmt.Errorf("decode took %s, budget %s: %w", elapsed, p.budget, codec.ErrFatal)
		}
		return len(out.Frames) > 0, nil
	})
}

// sample returns the decode probe bitstream for k: the file from the sample
// directory when present, otherwise a generated stream.
func (p *Prober) sample(k codec.Kind) []byte {
	if p.samples != "" {
		name := "720p.h264"
		if k == codec.HEVC {
			name = "720p.h265"
		}
		data, err := os.ReadFile(filepath.Join(p.samples, name))
		if err == nil && len(data) > 0 {
			return data
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("reading decode sample", slog.String("file", name), slog.String("error", err.Error()))
		}
	}
	return sim.SampleStream(k, 4)
}

func (r Result) String() string {
	return fmt.Sprintf("%s %s luid=%d (%s)", r.Driver, r.Codec, r.LUID, strings.TrimSpace(r.Description))
}
