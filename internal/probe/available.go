package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

// Availability lists every working (adapter, codec) pair per direction.
type Availability struct {
	Encoders []Result `json:"encoders" yaml:"encoders"`
	Decoders []Result `json:"decoders" yaml:"decoders"`
}

// Contains reports whether driver d can encode (or decode) k on some adapter.
func (a Availability) Contains(encode bool, d codec.Driver, k codec.Kind) bool {
	list := a.Decoders
	if encode {
		list = a.Encoders
	}
	return slices.ContainsFunc(list, func(r Result) bool {
		return r.Driver == d && r.Codec == k
	})
}

// JSON renders the availability as indented JSON.
func (a Availability) JSON() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// YAML renders the availability as YAML.
func (a Availability) YAML() ([]byte, error) {
	return yaml.Marshal(a)
}

// ParseAvailability decodes the JSON form.
func ParseAvailability(data []byte) (Availability, error) {
	var a Availability
	if err := json.Unmarshal(data, &a); err != nil {
		return Availability{}, fmt.Errorf("parsing availability: %w", err)
	}
	return a, nil
}

// AvailableOptions select what Available probes.
type AvailableOptions struct {
	// Drivers are evaluated in order. Empty means all.
	Drivers []codec.Driver
	// Codecs are evaluated in order per driver. Empty means all.
	Codecs   []codec.Kind
	Format   codec.PixelFormat
	Geometry codec.Geometry
	Rate     codec.RateControl
	// MaxResults bounds each individual probe.
	MaxResults int
	// Exclusions seed both directions.
	Exclusions Exclusions
	Decode     bool
}

func (o AvailableOptions) withDefaults() AvailableOptions {
	if len(o.Drivers) == 0 {
		o.Drivers = codec.AllDrivers()
	}
	if len(o.Codecs) == 0 {
		o.Codecs = codec.AllKinds()
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 1
	}
	return o
}

// Available walks every driver and codec candidate. Each passing pair joins
// the exclusion list so later candidates never report it again.
func (p *Prober) Available(ctx context.Context, opts AvailableOptions) (Availability, error) {
	opts = opts.withDefaults()
	var out Availability

	encExcl := slices.Clone(opts.Exclusions)
	for _, d := range opts.Drivers {
		if _, err := p.registry.Encoder(d); err != nil {
			p.logger.Info("skipping driver", slog.String("driver", d.String()), slog.String("error", err.Error()))
			continue
		}
		for _, k := range opts.Codecs {
			profile := Profile{Codec: k, Format: opts.Format, Geometry: opts.Geometry, Rate: opts.Rate}
			results, err := p.Probe(ctx, d, profile, encExcl, opts.MaxResults)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			if err != nil {
				p.logger.Debug("encoder candidate failed",
					slog.String("driver", d.String()),
					slog.String("codec", k.String()),
					slog.String("error", err.Error()),
				)
			}
			for _, r := range results {
				encExcl = encExcl.Add(r.LUID, k)
				out.Encoders = append(out.Encoders, r)
			}
		}
	}

	if !opts.Decode {
		return out, nil
	}

	decExcl := slices.Clone(opts.Exclusions)
	for _, d := range opts.Drivers {
		if _, err := p.registry.Decoder(d); err != nil {
			continue
		}
		for _, k := range opts.Codecs {
			results, err := p.ProbeDecode(ctx, d, k, decExcl, opts.MaxResults)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			if err != nil {
				p.logger.Debug("decoder candidate failed",
					slog.String("driver", d.String()),
					slog.String("codec", k.String()),
					slog.String("error", err.Error()),
				)
			}
			for _, r := range results {
				decExcl = decExcl.Add(r.LUID, k)
				out.Decoders = append(out.Decoders, r)
			}
		}
	}
	return out, nil
}

// DriverResult is the outcome of probing one driver.
type DriverResult struct {
	Driver  codec.Driver
	Results []Result
	Err     error
}

// ProbeAll probes several drivers concurrently. Each driver is still probed
// one adapter at a time. Per-driver failures are reported in the result;
// only cancellation fails the call.
func (p *Prober) ProbeAll(ctx context.Context, drivers []codec.Driver, profile Profile, excl Exclusions, maxResults int) ([]DriverResult, error) {
	out := make([]DriverResult, len(drivers))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range drivers {
		g.Go(func() error {
			results, err := p.Probe(gctx, d, profile, excl, maxResults)
			out[i] = DriverResult{Driver: d, Results: results, Err: err}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
