package amf_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/backend/amf"
	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/sim"
)

const amdLUID = 2

type rig struct {
	machine *sim.Machine
	params  backend.Params
	tex     backend.Texture
}

func newRig(t *testing.T, k codec.Kind, f sim.Faults) *rig {
	t.Helper()
	m := sim.DefaultMachine()
	m.SetFaults(amdLUID, f)
	dev, err := m.OpenAdapter(context.Background(), amdLUID)
	require.NoError(t, err)

	p := backend.Params{
		Device:   dev.Handle,
		LUID:     amdLUID,
		Vendor:   codec.VendorAMD,
		Codec:    k,
		Format:   codec.BGRA,
		Geometry: codec.Geometry{Width: 1920, Height: 1080},
		Rate:     codec.RateControl{BitrateKbps: 4000, Framerate: 30, GOP: 60},
		Clock:    m.Clock(),
	}
	tex, err := m.Provider().AllocateSurface(dev, p.Geometry, p.Format)
	require.NoError(t, err)
	return &rig{machine: m, params: p, tex: tex}
}

// assertClean checks that only the borrowed device and texture are still held.
func (r *rig) assertClean(t *testing.T) {
	t.Helper()
	assert.ElementsMatch(t, []string{"device", "texture"}, r.machine.Ledger().Live())
	assert.Empty(t, r.machine.Ledger().DoubleReleases())
}

func TestEncoder_Encode(t *testing.T) {
	t.Run("first_packet_is_keyframe_and_buffer_is_power_of_two", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{})
		enc, err := amf.NewEncoder(r.machine.AMF(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		first, err := enc.Encode(r.tex, 0)
		require.NoError(t, err)
		assert.True(t, first.Keyframe)
		assert.Equal(t, int64(0), first.PTS)
		assert.Equal(t, codec.NextPowerOfTwo(first.Size()), enc.BufferCap())
		capAfterFirst := enc.BufferCap()

		for _, ts := range []int64{33, 66} {
			pkt, err := enc.Encode(r.tex, ts)
			require.NoError(t, err)
			assert.False(t, pkt.Keyframe)
			assert.Equal(t, ts, pkt.PTS)
			assert.Equal(t, ts, pkt.DTS)
		}
		assert.Equal(t, capAfterFirst, enc.BufferCap())
	})

	t.Run("surfaces_are_released_per_call", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{})
		enc, err := amf.NewEncoder(r.machine.AMF(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		_, err = enc.Encode(r.tex, 0)
		require.NoError(t, err)
		ledger := r.machine.Ledger()
		assert.Equal(t, ledger.Acquired("surface"), ledger.Released("surface"))
		assert.Equal(t, ledger.Acquired("buffer"), ledger.Released("buffer"))
	})

	t.Run("input_full_drains_then_succeeds", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{InputFull: 1})
		enc, err := amf.NewEncoder(r.machine.AMF(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		pkt, err := enc.Encode(r.tex, 0)
		require.NoError(t, err)
		assert.True(t, pkt.Keyframe)
		assert.NotEmpty(t, pkt.Data)
		assert.Equal(t, 1, r.machine.Clock().Sleeps())
	})

	t.Run("input_full_past_budget_is_fatal", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{InputFull: 1000})
		enc, err := amf.NewEncoder(r.machine.AMF(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		_, err = enc.Encode(r.tex, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, codec.ErrFatal)
		assert.Equal(t, backend.DefaultLimits().DrainAttempts-1, r.machine.Clock().Sleeps())
	})

	t.Run("pipeline_latency_returns_retry", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{Latency: 1})
		enc, err := amf.NewEncoder(r.machine.AMF(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		_, err = enc.Encode(r.tex, 0)
		assert.True(t, codec.IsRetry(err))
		assert.Equal(t, codec.ResultRetry, codec.ResultCode(err))

		pkt, err := enc.Encode(r.tex, 33)
		require.NoError(t, err)
		assert.True(t, pkt.Keyframe)
		assert.Equal(t, int64(0), pkt.PTS)
	})

	t.Run("encode_after_destroy", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{})
		enc, err := amf.NewEncoder(r.machine.AMF(), r.params)
		require.NoError(t, err)
		require.NoError(t, enc.Destroy())

		_, err = enc.Encode(r.tex, 0)
		assert.ErrorIs(t, err, codec.ErrClosed)
	})
}

func TestEncoder_Create(t *testing.T) {
	t.Run("hevc_inserts_converter_and_releases_in_reverse", func(t *testing.T) {
		r := newRig(t, codec.HEVC, sim.Faults{})
		enc, err := amf.NewEncoder(r.machine.AMF(), r.params)
		require.NoError(t, err)

		pkt, err := enc.Encode(r.tex, 0)
		require.NoError(t, err)
		assert.True(t, pkt.Keyframe)

		r.machine.Ledger().Reset()
		require.NoError(t, enc.Destroy())
		assert.Equal(t, []string{"encoder", "converter", "context", "factory"}, r.machine.Ledger().ReleaseOrder())
		r.assertClean(t)

		require.NoError(t, enc.Destroy())
		r.assertClean(t)
	})

	t.Run("hevc_with_nv12_input_skips_converter", func(t *testing.T) {
		r := newRig(t, codec.HEVC, sim.Faults{})
		r.params.Format = codec.NV12
		enc, err := amf.NewEncoder(r.machine.AMF(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()
		assert.Zero(t, r.machine.Ledger().Acquired("converter"))
	})

	t.Run("optional_property_rejection_does_not_abort", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{Reject: []string{"ColorBitDepth", "Usage"}})
		enc, err := amf.NewEncoder(r.machine.AMF(), r.params)
		require.NoError(t, err)
		require.NoError(t, enc.Destroy())
	})

	t.Run("required_property_rejection_unwinds", func(t *testing.T) {
		r := newRig(t, codec.HEVC, sim.Faults{Reject: []string{"HevcFrameSize"}})
		_, err := amf.NewEncoder(r.machine.AMF(), r.params)
		require.Error(t, err)
		assert.ErrorIs(t, err, codec.ErrConfigRejected)

		var cerr *codec.Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "HevcFrameSize", cerr.Property)
		assert.Equal(t, []string{"encoder", "converter", "context", "factory"}, r.machine.Ledger().ReleaseOrder())
		r.assertClean(t)
	})

	t.Run("missing_encoder_component_unwinds_partial_session", func(t *testing.T) {
		r := newRig(t, codec.HEVC, sim.Faults{FailAcquire: "encoder"})
		_, err := amf.NewEncoder(r.machine.AMF(), r.params)
		assert.ErrorIs(t, err, codec.ErrUnavailable)
		assert.Equal(t, []string{"converter", "context", "factory"}, r.machine.Ledger().ReleaseOrder())
		r.assertClean(t)
	})

	t.Run("context_failure_releases_factory", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{FailAcquire: "context"})
		_, err := amf.NewEncoder(r.machine.AMF(), r.params)
		assert.ErrorIs(t, err, codec.ErrUnavailable)
		assert.Equal(t, []string{"context", "factory"}, r.machine.Ledger().ReleaseOrder())
		r.assertClean(t)
	})

	t.Run("wrong_vendor_device_is_unavailable", func(t *testing.T) {
		m := sim.DefaultMachine()
		dev, err := m.OpenAdapter(context.Background(), 1)
		require.NoError(t, err)
		p := newRig(t, codec.H264, sim.Faults{}).params
		p.Device = dev.Handle

		_, err = amf.NewEncoder(m.AMF(), p)
		assert.ErrorIs(t, err, codec.ErrUnavailable)
		assert.ElementsMatch(t, []string{"device"}, m.Ledger().Live())
	})

	t.Run("odd_geometry_is_rejected_before_the_driver", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{})
		r.params.Geometry = codec.Geometry{Width: 1919, Height: 1080}
		_, err := amf.NewEncoder(r.machine.AMF(), r.params)
		assert.ErrorIs(t, err, codec.ErrConfigRejected)
		assert.Zero(t, r.machine.Ledger().Acquired("factory"))
	})

	t.Run("runtime_not_loaded", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{})
		_, err := amf.NewEncoder(nil, r.params)
		assert.ErrorIs(t, err, codec.ErrUnavailable)
	})
}

func TestEncoder_Reconfigure(t *testing.T) {
	t.Run("bitrate_and_framerate_apply_live", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{})
		enc, err := amf.NewEncoder(r.machine.AMF(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		require.NoError(t, enc.SetBitrate(2000))
		require.NoError(t, enc.SetFramerate(60))
		assert.Equal(t, 2000, enc.Rate().BitrateKbps)
		assert.Equal(t, 60, enc.Rate().Framerate)
		assert.Equal(t, 1, r.machine.Ledger().Acquired("encoder"))
	})

	t.Run("rejected_bitrate_keeps_session", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{RejectLive: []string{"TargetBitrate"}})
		enc, err := amf.NewEncoder(r.machine.AMF(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		err = enc.SetBitrate(2000)
		require.Error(t, err)
		assert.ErrorIs(t, err, codec.ErrConfigRejected)
		assert.Equal(t, 4000, enc.Rate().BitrateKbps)

		pkt, err := enc.Encode(r.tex, 0)
		require.NoError(t, err)
		assert.True(t, pkt.Keyframe)
	})

	t.Run("rejected_peak_bitrate_is_advisory", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{RejectLive: []string{"PeakBitrate"}})
		enc, err := amf.NewEncoder(r.machine.AMF(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		require.NoError(t, enc.SetBitrate(2000))
		assert.Equal(t, 2000, enc.Rate().BitrateKbps)
	})

	t.Run("non_positive_values_are_rejected", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{})
		enc, err := amf.NewEncoder(r.machine.AMF(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		assert.ErrorIs(t, enc.SetBitrate(0), codec.ErrConfigRejected)
		assert.ErrorIs(t, enc.SetFramerate(-1), codec.ErrConfigRejected)
	})
}
