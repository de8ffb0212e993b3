package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/backend/mocks"
	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/session"
	"github.com/jmylchreest/hwcodec/internal/sim"
)

const nvidiaLUID = 1

type rig struct {
	machine *sim.Machine
	manager *session.Manager
	params  backend.Params
	tex     backend.Texture
}

func newRig(t *testing.T, f sim.Faults, opts session.Options) *rig {
	t.Helper()
	m := sim.DefaultMachine()
	m.SetFaults(nvidiaLUID, f)
	dev, err := m.OpenAdapter(context.Background(), nvidiaLUID)
	require.NoError(t, err)

	p := backend.Params{
		Device:   dev.Handle,
		LUID:     nvidiaLUID,
		Vendor:   codec.VendorNVIDIA,
		Codec:    codec.H264,
		Format:   codec.BGRA,
		Geometry: codec.Geometry{Width: 1920, Height: 1080},
		Rate:     codec.RateControl{BitrateKbps: 4000, Framerate: 30, GOP: 60},
	}
	tex, err := m.Provider().AllocateSurface(dev, p.Geometry, p.Format)
	require.NoError(t, err)

	opts.Clock = m.Clock()
	return &rig{
		machine: m,
		manager: session.NewManager(session.NewRegistry(m.Runtimes()), opts),
		params:  p,
		tex:     tex,
	}
}

func mockManager(t *testing.T, d codec.Driver) (*session.Manager, *mocks.MockEncoderFactory, *mocks.MockDecoderFactory) {
	t.Helper()
	ctrl := gomock.NewController(t)
	encF := mocks.NewMockEncoderFactory(ctrl)
	decF := mocks.NewMockDecoderFactory(ctrl)
	reg := session.NewRegistry(sim.NewMachine().Runtimes())
	reg.Register(d, encF, decF)
	return session.NewManager(reg, session.Options{Clock: sim.NewClock()}), encF, decF
}

func mockParams(v codec.Vendor) backend.Params {
	return backend.Params{
		Device:   0x10,
		LUID:     9,
		Vendor:   v,
		Codec:    codec.H264,
		Format:   codec.NV12,
		Geometry: codec.Geometry{Width: 640, Height: 480},
		Rate:     codec.RateControl{BitrateKbps: 1000, Framerate: 25, GOP: 50},
	}
}

func TestManager_CreateEncoder(t *testing.T) {
	t.Run("first_encode_is_keyframe", func(t *testing.T) {
		r := newRig(t, sim.Faults{}, session.Options{})
		s, err := r.manager.CreateEncoder(r.params)
		require.NoError(t, err)
		assert.Equal(t, codec.DriverNV, s.Driver())
		assert.NotEmpty(t, s.ID())
		assert.Equal(t, 1, r.manager.Active())

		var frames []*session.EncodedFrame
		for _, ts := range []int64{0, 33, 66} {
			f, err := s.Encode(r.tex, ts)
			require.NoError(t, err)
			frames = append(frames, f)
		}
		assert.True(t, frames[0].Keyframe)
		assert.False(t, frames[1].Keyframe)
		assert.Equal(t, int64(66), frames[2].PTS)

		for _, f := range frames {
			require.NoError(t, f.Release())
			assert.ErrorIs(t, f.Release(), codec.ErrClosed)
		}

		require.NoError(t, s.Destroy())
		assert.Zero(t, r.manager.Active())
		assert.ElementsMatch(t, []string{"device", "texture"}, r.machine.Ledger().Live())
		assert.Empty(t, r.machine.Ledger().DoubleReleases())
	})

	t.Run("unknown_vendor_is_unsupported", func(t *testing.T) {
		r := newRig(t, sim.Faults{}, session.Options{})
		p := r.params
		p.Vendor = codec.Vendor(0x1234)

		_, err := r.manager.CreateEncoder(p)
		assert.ErrorIs(t, err, codec.ErrUnsupported)
		assert.Equal(t, codec.ResultUnavailable, codec.ResultCode(err))
	})

	t.Run("missing_runtime_is_unavailable", func(t *testing.T) {
		m := sim.DefaultMachine()
		m.RemoveRuntime(codec.DriverAMF)
		mgr := session.NewManager(session.NewRegistry(m.Runtimes()), session.Options{})

		_, err := mgr.CreateEncoder(mockParams(codec.VendorAMD))
		assert.ErrorIs(t, err, codec.ErrUnavailable)
	})

	t.Run("rejected_init_releases_the_slot", func(t *testing.T) {
		r := newRig(t, sim.Faults{Reject: []string{"init"}}, session.Options{Tracker: session.NewTracker(1)})

		_, err := r.manager.CreateEncoder(r.params)
		assert.ErrorIs(t, err, codec.ErrConfigRejected)
		active, maxEncode, _, _ := r.manager.Tracker().Counts(nvidiaLUID)
		assert.Zero(t, active)
		assert.Equal(t, 1, maxEncode)
		assert.Zero(t, r.manager.Active())
		assert.ElementsMatch(t, []string{"device", "texture"}, r.machine.Ledger().Live())
	})

	t.Run("session_limit_per_adapter", func(t *testing.T) {
		r := newRig(t, sim.Faults{}, session.Options{Tracker: session.NewTracker(1)})

		first, err := r.manager.CreateEncoder(r.params)
		require.NoError(t, err)

		_, err = r.manager.CreateEncoder(r.params)
		assert.ErrorIs(t, err, codec.ErrUnavailable)

		require.NoError(t, first.Destroy())
		again, err := r.manager.CreateEncoder(r.params)
		require.NoError(t, err)
		require.NoError(t, again.Destroy())
	})
}

func TestEncodeSession_Errors(t *testing.T) {
	t.Run("panic_is_fatal_and_session_survives", func(t *testing.T) {
		mgr, encF, _ := mockManager(t, codec.DriverNV)
		enc := mocks.NewMockEncoder(gomock.NewController(t))
		encF.EXPECT().NewEncoder(gomock.Any()).Return(enc, nil)
		gomock.InOrder(
			enc.EXPECT().Encode(backend.Texture(1), int64(0)).DoAndReturn(func(backend.Texture, int64) (codec.Packet, error) {
				panic("driver blew up")
			}),
			enc.EXPECT().Encode(backend.Texture(1), int64(40)).Return(codec.Packet{Data: []byte{1, 2}, PTS: 40, Keyframe: true}, nil),
		)
		enc.EXPECT().Destroy().Return(nil)

		s, err := mgr.CreateEncoder(mockParams(codec.VendorNVIDIA))
		require.NoError(t, err)

		_, err = s.Encode(1, 0)
		assert.ErrorIs(t, err, codec.ErrFatal)
		assert.Equal(t, codec.ResultFatal, codec.ResultCode(err))

		f, err := s.Encode(1, 40)
		require.NoError(t, err)
		assert.True(t, f.Keyframe)
		require.NoError(t, s.Destroy())
	})

	t.Run("foreign_error_is_normalised", func(t *testing.T) {
		mgr, encF, _ := mockManager(t, codec.DriverAMF)
		enc := mocks.NewMockEncoder(gomock.NewController(t))
		encF.EXPECT().NewEncoder(gomock.Any()).Return(enc, nil)
		enc.EXPECT().Encode(gomock.Any(), gomock.Any()).Return(codec.Packet{}, errors.New("E_UNEXPECTED"))
		enc.EXPECT().Destroy().Return(nil)

		s, err := mgr.CreateEncoder(mockParams(codec.VendorAMD))
		require.NoError(t, err)
		defer s.Destroy()

		_, err = s.Encode(1, 0)
		var cerr *codec.Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "amf", cerr.Driver)
		assert.ErrorIs(t, err, codec.ErrFatal)
	})

	t.Run("retry_passes_through", func(t *testing.T) {
		mgr, encF, _ := mockManager(t, codec.DriverMFX)
		enc := mocks.NewMockEncoder(gomock.NewController(t))
		encF.EXPECT().NewEncoder(gomock.Any()).Return(enc, nil)
		enc.EXPECT().Encode(gomock.Any(), gomock.Any()).Return(codec.Packet{}, codec.NewError(codec.DriverMFX, "encode", codec.ErrNeedMoreInput, -10))
		enc.EXPECT().Destroy().Return(nil)

		s, err := mgr.CreateEncoder(mockParams(codec.VendorIntel))
		require.NoError(t, err)
		defer s.Destroy()

		f, err := s.Encode(1, 0)
		assert.Nil(t, f)
		assert.True(t, codec.IsRetry(err))
		assert.Equal(t, codec.ResultRetry, codec.ResultCode(err))
	})

	t.Run("factory_panic_is_fatal", func(t *testing.T) {
		mgr, encF, _ := mockManager(t, codec.DriverNV)
		encF.EXPECT().NewEncoder(gomock.Any()).DoAndReturn(func(backend.Params) (backend.Encoder, error) {
			panic("bad vtable")
		})

		_, err := mgr.CreateEncoder(mockParams(codec.VendorNVIDIA))
		assert.ErrorIs(t, err, codec.ErrFatal)
		active, _, _, _ := mgr.Tracker().Counts(9)
		assert.Zero(t, active)
	})
}

func TestEncodeSession_Lifecycle(t *testing.T) {
	t.Run("frame_owns_its_bytes", func(t *testing.T) {
		mgr, encF, _ := mockManager(t, codec.DriverNV)
		enc := mocks.NewMockEncoder(gomock.NewController(t))
		encF.EXPECT().NewEncoder(gomock.Any()).Return(enc, nil)
		shared := []byte{0, 0, 0, 1, 0x65}
		enc.EXPECT().Encode(gomock.Any(), gomock.Any()).Return(codec.Packet{Data: shared, Keyframe: true}, nil)
		enc.EXPECT().Destroy().Return(nil)

		s, err := mgr.CreateEncoder(mockParams(codec.VendorNVIDIA))
		require.NoError(t, err)
		defer s.Destroy()

		f, err := s.Encode(1, 0)
		require.NoError(t, err)
		shared[4] = 0x41
		assert.Equal(t, []byte{0, 0, 0, 1, 0x65}, f.Data)
		assert.Equal(t, 5, f.Size())
	})

	t.Run("reconfigure_keeps_identity", func(t *testing.T) {
		mgr, encF, _ := mockManager(t, codec.DriverNV)
		enc := mocks.NewMockEncoder(gomock.NewController(t))
		encF.EXPECT().NewEncoder(gomock.Any()).Return(enc, nil)
		enc.EXPECT().SetBitrate(6000).Return(nil)
		enc.EXPECT().SetFramerate(50).Return(&codec.Error{Op: "reconfigure", Driver: "nv", Err: codec.ErrConfigRejected, Property: "frameRateNum"})
		enc.EXPECT().Destroy().Return(nil)

		s, err := mgr.CreateEncoder(mockParams(codec.VendorNVIDIA))
		require.NoError(t, err)
		defer s.Destroy()
		id := s.ID()

		require.NoError(t, s.SetBitrate(6000))
		assert.Equal(t, 6000, s.Params().Rate.BitrateKbps)

		err = s.SetFramerate(50)
		assert.ErrorIs(t, err, codec.ErrConfigRejected)
		assert.Equal(t, 25, s.Params().Rate.Framerate)

		assert.Equal(t, id, s.ID())
		got, ok := mgr.Encoder(id)
		require.True(t, ok)
		assert.Same(t, s, got)
	})

	t.Run("destroy_is_idempotent", func(t *testing.T) {
		mgr, encF, _ := mockManager(t, codec.DriverNV)
		enc := mocks.NewMockEncoder(gomock.NewController(t))
		encF.EXPECT().NewEncoder(gomock.Any()).Return(enc, nil)
		enc.EXPECT().Destroy().Return(nil).Times(1)

		s, err := mgr.CreateEncoder(mockParams(codec.VendorNVIDIA))
		require.NoError(t, err)

		require.NoError(t, s.Destroy())
		require.NoError(t, s.Destroy())

		_, err = s.Encode(1, 0)
		assert.ErrorIs(t, err, codec.ErrClosed)
		assert.ErrorIs(t, s.SetBitrate(1), codec.ErrClosed)
		_, ok := mgr.Encoder(s.ID())
		assert.False(t, ok)
	})

	t.Run("calls_route_to_the_creating_backend", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		nvF := mocks.NewMockEncoderFactory(ctrl)
		amfF := mocks.NewMockEncoderFactory(ctrl)
		reg := session.NewRegistry(sim.NewMachine().Runtimes())
		reg.Register(codec.DriverNV, nvF, nil)
		reg.Register(codec.DriverAMF, amfF, nil)
		mgr := session.NewManager(reg, session.Options{})

		enc := mocks.NewMockEncoder(ctrl)
		amfF.EXPECT().NewEncoder(gomock.Any()).Return(enc, nil)
		enc.EXPECT().SetBitrate(2000).Return(nil)
		enc.EXPECT().Destroy().Return(nil)

		s, err := mgr.CreateEncoder(mockParams(codec.VendorAMD))
		require.NoError(t, err)
		assert.Equal(t, codec.DriverAMF, s.Driver())
		require.NoError(t, s.SetBitrate(2000))
		require.NoError(t, s.Destroy())
	})

	t.Run("close_destroys_everything", func(t *testing.T) {
		r := newRig(t, sim.Faults{}, session.Options{})
		_, err := r.manager.CreateEncoder(r.params)
		require.NoError(t, err)
		_, err = r.manager.CreateDecoder(r.params)
		require.NoError(t, err)
		assert.Equal(t, 2, r.manager.Active())

		require.NoError(t, r.manager.Close())
		assert.Zero(t, r.manager.Active())
		assert.ElementsMatch(t, []string{"device", "texture"}, r.machine.Ledger().Live())
	})
}

func TestEncodeSession_SelfTest(t *testing.T) {
	t.Run("keyframe_within_budget", func(t *testing.T) {
		r := newRig(t, sim.Faults{Latency: 1}, session.Options{})
		s, err := r.manager.CreateEncoder(r.params)
		require.NoError(t, err)
		defer s.Destroy()

		report, err := s.SelfTest(r.tex, time.Second)
		require.NoError(t, err)
		assert.True(t, report.Keyframe)
		assert.Equal(t, 2, report.Submitted)
	})

	t.Run("predicted_first_frame", func(t *testing.T) {
		r := newRig(t, sim.Faults{NoKeyframe: true}, session.Options{})
		s, err := r.manager.CreateEncoder(r.params)
		require.NoError(t, err)
		defer s.Destroy()

		report, err := s.SelfTest(r.tex, time.Second)
		require.NoError(t, err)
		assert.False(t, report.Keyframe)
	})

	t.Run("panicking_encoder", func(t *testing.T) {
		r := newRig(t, sim.Faults{Panic: true}, session.Options{})
		s, err := r.manager.CreateEncoder(r.params)
		require.NoError(t, err)

		_, err = s.SelfTest(r.tex, time.Second)
		assert.ErrorIs(t, err, codec.ErrFatal)
		require.NoError(t, s.Destroy())
		assert.ElementsMatch(t, []string{"device", "texture"}, r.machine.Ledger().Live())
	})
}

func TestDecodeSession(t *testing.T) {
	t.Run("decodes_and_releases_frames", func(t *testing.T) {
		r := newRig(t, sim.Faults{RefMissingAt: 2}, session.Options{})
		s, err := r.manager.CreateDecoder(r.params)
		require.NoError(t, err)

		out, err := s.Decode(sim.Frame(codec.H264, true, 256, 0))
		require.NoError(t, err)
		require.Len(t, out.Frames, 1)
		assert.Equal(t, 1280, out.Frames[0].Width)
		assert.False(t, out.RefMissing)
		require.NoError(t, out.Frames[0].Release())
		assert.ErrorIs(t, out.Frames[0].Release(), codec.ErrClosed)

		out, err = s.Decode(sim.Frame(codec.H264, false, 256, 1))
		require.NoError(t, err)
		assert.True(t, out.RefMissing)

		require.NoError(t, s.Destroy())
		require.NoError(t, s.Destroy())
		_, err = s.Decode(nil)
		assert.ErrorIs(t, err, codec.ErrClosed)
		assert.ElementsMatch(t, []string{"device", "texture"}, r.machine.Ledger().Live())
	})

	t.Run("decode_limit_is_twice_encode", func(t *testing.T) {
		mgr, _, decF := mockManager(t, codec.DriverNV)
		mgr.Tracker().SetLimit(9, 1)
		dec := mocks.NewMockDecoder(gomock.NewController(t))
		decF.EXPECT().NewDecoder(gomock.Any()).Return(dec, nil).Times(2)
		dec.EXPECT().Destroy().Return(nil).Times(2)

		a, err := mgr.CreateDecoder(mockParams(codec.VendorNVIDIA))
		require.NoError(t, err)
		b, err := mgr.CreateDecoder(mockParams(codec.VendorNVIDIA))
		require.NoError(t, err)
		_, err = mgr.CreateDecoder(mockParams(codec.VendorNVIDIA))
		assert.ErrorIs(t, err, codec.ErrUnavailable)

		require.NoError(t, a.Destroy())
		require.NoError(t, b.Destroy())
	})
}
