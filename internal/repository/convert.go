package repository

import (
	"time"

	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/hostinfo"
	"github.com/jmylchreest/hwcodec/internal/models"
	"github.com/jmylchreest/hwcodec/internal/probe"
)

// NewRun builds a probe run record from an availability result.
func NewRun(signature uint64, host hostinfo.Info, simulated bool, started, finished time.Time, av probe.Availability) *models.ProbeRun {
	run := &models.ProbeRun{
		Signature:     models.FormatSignature(signature),
		Hostname:      host.Hostname,
		OS:            host.OS,
		Arch:          host.Arch,
		Platform:      host.Platform,
		KernelVersion: host.KernelVersion,
		CPUModel:      host.CPUModel,
		Simulated:     simulated,
		StartedAt:     started,
		FinishedAt:    finished,
	}
	add := func(dir models.Direction, results []probe.Result) {
		for _, r := range results {
			run.Features = append(run.Features, models.ProbeFeature{
				Direction:   dir,
				Driver:      r.Driver.String(),
				Codec:       r.Codec.String(),
				LUID:        r.LUID,
				VendorID:    uint32(r.Vendor),
				Description: r.Description,
			})
		}
	}
	add(models.DirectionEncode, av.Encoders)
	add(models.DirectionDecode, av.Decoders)
	return run
}

// Availability rebuilds the availability stored in run. Features with
// names this build no longer knows are skipped.
func Availability(run *models.ProbeRun) probe.Availability {
	var av probe.Availability
	for _, f := range run.Features {
		d, err := codec.ParseDriver(f.Driver)
		if err != nil {
			continue
		}
		k, err := codec.ParseKind(f.Codec)
		if err != nil {
			continue
		}
		r := probe.Result{LUID: f.LUID, Vendor: codec.Vendor(f.VendorID), Driver: d, Codec: k, Description: f.Description}
		if f.Direction == models.DirectionEncode {
			av.Encoders = append(av.Encoders, r)
		} else {
			av.Decoders = append(av.Decoders, r)
		}
	}
	return av
}

// Exclusions converts stored exclusions for the prober.
func Exclusions(list []*models.Exclusion) probe.Exclusions {
	var out probe.Exclusions
	for _, e := range list {
		k, err := codec.ParseKind(e.Codec)
		if err != nil {
			continue
		}
		out = out.Add(e.LUID, k)
	}
	return out
}
