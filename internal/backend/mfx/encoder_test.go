package mfx_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/backend/mfx"
	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/sim"
)

const intelLUID = 3

type rig struct {
	machine *sim.Machine
	params  backend.Params
	tex     backend.Texture
}

func newRig(t *testing.T, k codec.Kind, f sim.Faults) *rig {
	t.Helper()
	m := sim.DefaultMachine()
	m.SetFaults(intelLUID, f)
	dev, err := m.OpenAdapter(context.Background(), intelLUID)
	require.NoError(t, err)
	require.True(t, dev.Options.MultithreadProtect)

	p := backend.Params{
		Device:   dev.Handle,
		LUID:     intelLUID,
		Vendor:   codec.VendorIntel,
		Codec:    k,
		Format:   codec.NV12,
		Geometry: codec.Geometry{Width: 1920, Height: 1080},
		Rate:     codec.RateControl{BitrateKbps: 4000, Framerate: 30, GOP: 60},
		Clock:    m.Clock(),
	}
	tex, err := m.Provider().AllocateSurface(dev, p.Geometry, p.Format)
	require.NoError(t, err)
	return &rig{machine: m, params: p, tex: tex}
}

func (r *rig) assertClean(t *testing.T) {
	t.Helper()
	assert.ElementsMatch(t, []string{"device", "texture"}, r.machine.Ledger().Live())
	assert.Empty(t, r.machine.Ledger().DoubleReleases())
}

func TestEncoder_Encode(t *testing.T) {
	t.Run("first_packet_is_keyframe", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{})
		enc, err := mfx.NewEncoder(r.machine.MFX(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		first, err := enc.Encode(r.tex, 0)
		require.NoError(t, err)
		assert.True(t, first.Keyframe)
		assert.Equal(t, codec.NextPowerOfTwo(first.Size()), enc.BufferCap())

		for _, ts := range []int64{33, 66} {
			pkt, err := enc.Encode(r.tex, ts)
			require.NoError(t, err)
			assert.False(t, pkt.Keyframe)
			assert.Equal(t, ts, pkt.PTS)
		}
	})

	t.Run("hevc_first_packet_is_keyframe", func(t *testing.T) {
		r := newRig(t, codec.HEVC, sim.Faults{})
		enc, err := mfx.NewEncoder(r.machine.MFX(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		pkt, err := enc.Encode(r.tex, 0)
		require.NoError(t, err)
		assert.True(t, pkt.Keyframe)
	})

	t.Run("device_busy_resubmits", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{InputFull: 2})
		enc, err := mfx.NewEncoder(r.machine.MFX(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		pkt, err := enc.Encode(r.tex, 0)
		require.NoError(t, err)
		assert.True(t, pkt.Keyframe)
		assert.Equal(t, 2, r.machine.Clock().Sleeps())
	})

	t.Run("device_busy_past_budget_is_fatal", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{InputFull: 5000})
		enc, err := mfx.NewEncoder(r.machine.MFX(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		_, err = enc.Encode(r.tex, 0)
		assert.ErrorIs(t, err, codec.ErrFatal)
	})

	t.Run("more_surface_resubmits", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{MoreSurface: 1})
		enc, err := mfx.NewEncoder(r.machine.MFX(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		pkt, err := enc.Encode(r.tex, 0)
		require.NoError(t, err)
		assert.True(t, pkt.Keyframe)
		assert.Equal(t, 1, r.machine.Clock().Sleeps())
	})

	t.Run("bgra_input_is_converted_to_nv12", func(t *testing.T) {
		for _, k := range []codec.Kind{codec.H264, codec.HEVC} {
			t.Run(k.String(), func(t *testing.T) {
				r := newRig(t, k, sim.Faults{})
				r.params.Format = codec.BGRA
				enc, err := mfx.NewEncoder(r.machine.MFX(), r.params)
				require.NoError(t, err)
				assert.Equal(t, 1, r.machine.Ledger().Acquired("vpp"))

				for ts := int64(0); ts < 3; ts++ {
					pkt, err := enc.Encode(r.tex, ts*33)
					require.NoError(t, err)
					assert.Equal(t, ts == 0, pkt.Keyframe)
					assert.Equal(t, ts*33, pkt.PTS)
				}

				r.machine.Ledger().Reset()
				require.NoError(t, enc.Destroy())
				assert.Equal(t, []string{"encoder", "frames", "vpp", "session"}, r.machine.Ledger().ReleaseOrder())
				r.assertClean(t)
			})
		}
	})

	t.Run("more_data_is_retry", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{Latency: 2})
		enc, err := mfx.NewEncoder(r.machine.MFX(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		for _, ts := range []int64{0, 33} {
			_, err := enc.Encode(r.tex, ts)
			assert.True(t, codec.IsRetry(err))
		}
		pkt, err := enc.Encode(r.tex, 66)
		require.NoError(t, err)
		assert.True(t, pkt.Keyframe)
		assert.Equal(t, int64(0), pkt.PTS)
	})
}

func TestEncoder_Create(t *testing.T) {
	t.Run("destroy_releases_in_reverse_and_is_idempotent", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{})
		enc, err := mfx.NewEncoder(r.machine.MFX(), r.params)
		require.NoError(t, err)

		require.NoError(t, enc.Destroy())
		require.NoError(t, enc.Destroy())
		assert.Equal(t, []string{"encoder", "session"}, r.machine.Ledger().ReleaseOrder())
		r.assertClean(t)
	})

	t.Run("rejected_init_releases_session", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{Reject: []string{"init"}})
		_, err := mfx.NewEncoder(r.machine.MFX(), r.params)
		assert.ErrorIs(t, err, codec.ErrConfigRejected)
		assert.Equal(t, []string{"session"}, r.machine.Ledger().ReleaseOrder())
		r.assertClean(t)
	})

	t.Run("rgba_is_config_rejected", func(t *testing.T) {
		for _, k := range []codec.Kind{codec.H264, codec.HEVC} {
			r := newRig(t, k, sim.Faults{})
			r.params.Format = codec.RGBA
			_, err := mfx.NewEncoder(r.machine.MFX(), r.params)
			assert.ErrorIs(t, err, codec.ErrConfigRejected)
			var cerr *codec.Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, "format", cerr.Property)
			assert.Zero(t, r.machine.Ledger().Acquired("session"))
		}
	})

	t.Run("converter_failure_releases_session", func(t *testing.T) {
		r := newRig(t, codec.HEVC, sim.Faults{FailAcquire: "vpp"})
		r.params.Format = codec.BGRA
		_, err := mfx.NewEncoder(r.machine.MFX(), r.params)
		assert.ErrorIs(t, err, codec.ErrUnavailable)
		assert.Equal(t, []string{"session"}, r.machine.Ledger().ReleaseOrder())
		r.assertClean(t)
	})

	t.Run("encoder_not_present_is_unavailable", func(t *testing.T) {
		r := newRig(t, codec.HEVC, sim.Faults{FailAcquire: "encoder"})
		_, err := mfx.NewEncoder(r.machine.MFX(), r.params)
		assert.ErrorIs(t, err, codec.ErrUnavailable)
		r.assertClean(t)
	})

	t.Run("non_intel_device_is_unavailable", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{})
		dev, err := r.machine.OpenAdapter(context.Background(), 2)
		require.NoError(t, err)
		r.params.Device = dev.Handle

		_, err = mfx.NewEncoder(r.machine.MFX(), r.params)
		assert.ErrorIs(t, err, codec.ErrUnavailable)
		assert.ElementsMatch(t, []string{"device", "device", "texture"}, r.machine.Ledger().Live())
	})
}

func TestEncoder_Reconfigure(t *testing.T) {
	t.Run("applies_through_reset", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{})
		enc, err := mfx.NewEncoder(r.machine.MFX(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		require.NoError(t, enc.SetBitrate(6000))
		require.NoError(t, enc.SetFramerate(25))
		assert.Equal(t, codec.RateControl{BitrateKbps: 6000, Framerate: 25, GOP: 60}, enc.Rate())
	})

	t.Run("rejected_reset_keeps_session", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{RejectLive: []string{"TargetKbps"}})
		enc, err := mfx.NewEncoder(r.machine.MFX(), r.params)
		require.NoError(t, err)
		defer enc.Destroy()

		err = enc.SetBitrate(6000)
		require.Error(t, err)
		var cerr *codec.Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "TargetKbps", cerr.Property)
		assert.ErrorIs(t, err, codec.ErrConfigRejected)
		assert.Equal(t, 4000, enc.Rate().BitrateKbps)

		require.NoError(t, enc.SetFramerate(25))
		pkt, err := enc.Encode(r.tex, 0)
		require.NoError(t, err)
		assert.True(t, pkt.Keyframe)
	})
}
