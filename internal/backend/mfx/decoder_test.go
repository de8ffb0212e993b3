package mfx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hwcodec/internal/backend/mfx"
	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/sim"
)

func TestDecoder(t *testing.T) {
	t.Run("header_from_first_chunk", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{})
		dec, err := mfx.NewDecoder(r.machine.MFX(), r.params)
		require.NoError(t, err)
		defer dec.Destroy()
		assert.Zero(t, r.machine.Ledger().Acquired("decoder"))

		res, err := dec.Decode(sim.Frame(codec.H264, true, 256, 0))
		require.NoError(t, err)
		require.Len(t, res.Frames, 1)
		assert.Equal(t, 1280, res.Frames[0].Width)
		assert.Equal(t, 720, res.Frames[0].Height)
		assert.Equal(t, 1, r.machine.Ledger().Acquired("decoder"))

		res, err = dec.Decode(sim.Frame(codec.H264, false, 256, 1))
		require.NoError(t, err)
		assert.Len(t, res.Frames, 1)
	})

	t.Run("no_header_yet_needs_more_input", func(t *testing.T) {
		r := newRig(t, codec.HEVC, sim.Faults{})
		dec, err := mfx.NewDecoder(r.machine.MFX(), r.params)
		require.NoError(t, err)
		defer dec.Destroy()

		_, err = dec.Decode(sim.Frame(codec.HEVC, false, 256, 0))
		assert.True(t, codec.IsRetry(err))

		res, err := dec.Decode(sim.Frame(codec.HEVC, true, 256, 1))
		require.NoError(t, err)
		assert.NotEmpty(t, res.Frames)
	})

	t.Run("bgra_output_goes_through_vpp", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{})
		r.params.Format = codec.BGRA
		dec, err := mfx.NewDecoder(r.machine.MFX(), r.params)
		require.NoError(t, err)

		res, err := dec.Decode(sim.Frame(codec.H264, true, 256, 0))
		require.NoError(t, err)
		require.Len(t, res.Frames, 1)
		assert.Equal(t, codec.BGRA, res.Frames[0].Format)
		assert.Equal(t, 1, r.machine.Ledger().Acquired("vpp"))
		assert.Equal(t, 2, r.machine.Ledger().Acquired("frames"))

		r.machine.Ledger().Reset()
		require.NoError(t, dec.Destroy())
		assert.Equal(t, []string{"vpp", "frames", "decoder", "frames", "session"}, r.machine.Ledger().ReleaseOrder())
		r.assertClean(t)
	})

	t.Run("rgba_output_is_config_rejected", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{})
		r.params.Format = codec.RGBA
		_, err := mfx.NewDecoder(r.machine.MFX(), r.params)
		assert.ErrorIs(t, err, codec.ErrConfigRejected)
		assert.Zero(t, r.machine.Ledger().Acquired("session"))
	})

	t.Run("ref_missing_is_per_call", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{RefMissingAt: 2})
		dec, err := mfx.NewDecoder(r.machine.MFX(), r.params)
		require.NoError(t, err)
		defer dec.Destroy()

		var flags []bool
		for i := 0; i < 3; i++ {
			res, err := dec.Decode(sim.Frame(codec.H264, i == 0, 256, i))
			require.NoError(t, err)
			flags = append(flags, res.RefMissing)
		}
		assert.Equal(t, []bool{false, true, false}, flags)
	})

	t.Run("incompatible_params_reinitialise", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{ResolutionChangeAt: 2})
		dec, err := mfx.NewDecoder(r.machine.MFX(), r.params)
		require.NoError(t, err)
		defer dec.Destroy()

		_, err = dec.Decode(sim.Frame(codec.H264, true, 256, 0))
		require.NoError(t, err)

		res, err := dec.Decode(sim.Frame(codec.H264, true, 256, 1))
		require.NoError(t, err)
		require.Len(t, res.Frames, 1)
		assert.Equal(t, 1920, res.Frames[0].Width)
		assert.Equal(t, 2, r.machine.Ledger().Acquired("decoder"))
		assert.Equal(t, 1, r.machine.Ledger().Released("decoder"))
	})

	t.Run("decoder_init_failure_tears_down", func(t *testing.T) {
		r := newRig(t, codec.H264, sim.Faults{FailAcquire: "decoder"})
		dec, err := mfx.NewDecoder(r.machine.MFX(), r.params)
		require.NoError(t, err)

		_, err = dec.Decode(sim.Frame(codec.H264, true, 256, 0))
		assert.ErrorIs(t, err, codec.ErrUnavailable)
		assert.Equal(t, 1, r.machine.Ledger().Released("frames"))

		require.NoError(t, dec.Destroy())
		r.assertClean(t)
	})
}
