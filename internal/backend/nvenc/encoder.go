package nvenc

import (
	"log/slog"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

// SessionFactory opens NVIDIA sessions.
type SessionFactory struct {
	Runtime Runtime
	CUVID   CUVID
}

// NewEncoder implements backend.EncoderFactory.
func (f SessionFactory) NewEncoder(p backend.Params) (backend.Encoder, error) {
	return NewEncoder(f.Runtime, p)
}

// NewDecoder implements backend.DecoderFactory.
func (f SessionFactory) NewDecoder(p backend.Params) (backend.Decoder, error) {
	return NewDecoder(f.CUVID, p)
}

// Encoder is an NVENC session.
type Encoder struct {
	params  backend.Params
	log     *slog.Logger
	session Session
	current InitParams
	output  uintptr
	format  BufferFormat
	buf     codec.PacketBuffer
	release backend.ReleaseStack
	closed  bool
}

func initParams(p backend.Params, preset Config) InitParams {
	cfg := preset
	gop := uint32(p.Rate.GOP)
	if p.Rate.GOP >= 0xFFFF {
		gop = InfiniteGOPLength
	}
	cfg.GOPLength = gop
	cfg.IDRPeriod = gop
	cfg.FrameIntervalP = 1
	cfg.RC = RCParams{
		RateControlMode: RateControlCBR,
		AverageBitRate:  uint32(p.Rate.BitsPerSecond()),
		MaxBitRate:      uint32(p.Rate.BitsPerSecond()),
		VBVBufferSize:   uint32(p.Rate.BitsPerSecond() / int64(p.Rate.Framerate)),
	}
	if p.Geometry.Large() {
		if p.Codec == codec.HEVC {
			cfg.ProfileGUID = HEVCProfileMainGUID
			cfg.Level = LevelHEVC51
			cfg.Tier = TierHEVCHigh
		} else {
			cfg.ProfileGUID = H264ProfileHighGUID
			cfg.Level = LevelAVC51
		}
	}
	return InitParams{
		EncodeGUID:   codecGUID(p.Codec),
		PresetGUID:   PresetP4GUID,
		Tuning:       TuningLowLatency,
		EncodeWidth:  p.Geometry.Width,
		EncodeHeight: p.Geometry.Height,
		DarWidth:     p.Geometry.Width,
		DarHeight:    p.Geometry.Height,
		FrameRateNum: p.Rate.Framerate,
		FrameRateDen: 1,
		EnablePTD:    true,
		Config:       cfg,
	}
}

// NewEncoder opens an NVENC encoder on p.Device.
func NewEncoder(rt Runtime, p backend.Params) (*Encoder, error) {
	p = p.WithDefaults()
	if err := p.ValidateEncode(codec.DriverNV); err != nil {
		return nil, err
	}
	e := &Encoder{
		params: p,
		log:    p.Logger.With(slog.String("driver", "nv"), slog.String("codec", p.Codec.String())),
		format: bufferFormat(p.Format),
	}
	if err := e.open(rt); err != nil {
		if rerr := e.release.Release(); rerr != nil {
			e.log.Warn("release after failed create", slog.String("error", rerr.Error()))
		}
		return nil, err
	}
	return e, nil
}

func (e *Encoder) open(rt Runtime) error {
	if rt == nil {
		return &codec.Error{Op: "open session", Driver: "nv", Err: codec.ErrUnavailable, Detail: "runtime not loaded"}
	}
	s, st := rt.OpenSession(e.params.Device, deviceType())
	if st != Success {
		return statusError("open session", st)
	}
	e.session = s
	e.release.Push("session", func() error {
		if st := s.DestroyEncoder(); st != Success {
			return statusError("destroy encoder", st)
		}
		return nil
	})

	guids, st := s.EncodeGUIDs()
	if st != Success {
		return statusError("encode guids", st)
	}
	want := codecGUID(e.params.Codec)
	found := false
	for _, g := range guids {
		if g == want {
			found = true
			break
		}
	}
	if !found {
		return &codec.Error{Op: "encode guids", Driver: "nv", Err: codec.ErrUnavailable, Detail: e.params.Codec.String() + " not supported by device"}
	}

	preset, st := s.PresetConfig(want, PresetP4GUID, TuningLowLatency)
	if st != Success {
		return statusError("preset config", st)
	}
	e.current = initParams(e.params, preset)
	if st := s.Initialize(&e.current); st != Success {
		return statusError("initialize", st)
	}

	out, st := s.CreateBitstreamBuffer()
	if st != Success {
		return statusError("create bitstream buffer", st)
	}
	e.output = out
	e.release.Push("bitstream", func() error {
		if st := s.DestroyBitstreamBuffer(out); st != Success {
			return statusError("destroy bitstream buffer", st)
		}
		return nil
	})
	e.log.Debug("encoder opened",
		slog.String("geometry", e.params.Geometry.String()),
		slog.Int("kbps", e.params.Rate.BitrateKbps),
		slog.Int("fps", e.params.Rate.Framerate),
	)
	return nil
}

// Encode implements backend.Encoder. The texture is registered and mapped
// for this call only and unregistered before returning.
func (e *Encoder) Encode(tex backend.Texture, timestampMs int64) (codec.Packet, error) {
	if e.closed {
		return codec.Packet{}, codec.NewError(codec.DriverNV, "encode", codec.ErrClosed, 0)
	}
	reg, st := e.session.RegisterResource(resourceType(), uintptr(tex), e.params.Geometry.Width, e.params.Geometry.Height, e.format)
	if st != Success {
		return codec.Packet{}, statusError("register resource", st)
	}
	defer func() {
		if st := e.session.UnregisterResource(reg); st != Success {
			e.log.Warn("unregister resource failed", slog.String("status", st.String()))
		}
	}()
	mapped, st := e.session.MapInputResource(reg)
	if st != Success {
		return codec.Packet{}, statusError("map input", st)
	}
	defer func() {
		if st := e.session.UnmapInputResource(mapped); st != Success {
			e.log.Warn("unmap input failed", slog.String("status", st.String()))
		}
	}()

	pic := PicParams{
		Input:          mapped,
		Output:         e.output,
		InputWidth:     e.params.Geometry.Width,
		InputHeight:    e.params.Geometry.Height,
		BufferFormat:   e.format,
		InputTimeStamp: uint64(timestampMs),
		PictureStruct:  PicStructFrame,
	}
	done, err := backend.Retry(e.params.Clock, e.params.Limits.BusyAttempts, e.params.Limits.BusyInterval, func(int) (bool, error) {
		st = e.session.EncodePicture(&pic)
		switch st {
		case Success, NeedMoreInput:
			return true, nil
		case EncoderBusy, LockBusy:
			// The single output buffer is always unlocked by the time
			// EncodePicture runs, so there is no ready output to drain.
			return false, nil
		default:
			return false, statusError("encode picture", st)
		}
	})
	if err != nil {
		return codec.Packet{}, err
	}
	if !done {
		return codec.Packet{}, &codec.Error{Op: "encode picture", Driver: "nv", Code: int64(st), Err: codec.ErrFatal, Detail: "encoder stayed busy"}
	}
	if st == NeedMoreInput {
		return codec.Packet{}, statusError("encode picture", st)
	}

	locked, st := e.session.LockBitstream(e.output)
	if st != Success {
		return codec.Packet{}, statusError("lock bitstream", st)
	}
	pkt := codec.Packet{
		Data:     e.buf.Fill(locked.Data),
		PTS:      int64(locked.OutputTimeStamp),
		DTS:      int64(locked.OutputTimeStamp),
		Keyframe: locked.PictureType == PicTypeIDR || locked.PictureType == PicTypeI,
	}
	if st := e.session.UnlockBitstream(e.output); st != Success {
		return codec.Packet{}, statusError("unlock bitstream", st)
	}
	return pkt, nil
}

func (e *Encoder) reconfigure(op, property string, next InitParams) error {
	p := ReconfigureParams{Init: next}
	if st := e.session.Reconfigure(&p); st != Success {
		return &codec.Error{Op: op, Driver: "nv", Property: property, Code: int64(st), Detail: st.String(), Err: codec.ErrConfigRejected}
	}
	e.current = next
	return nil
}

// SetBitrate implements backend.Encoder.
func (e *Encoder) SetBitrate(kbps int) error {
	if e.closed {
		return codec.NewError(codec.DriverNV, "set bitrate", codec.ErrClosed, 0)
	}
	if kbps <= 0 {
		return &codec.Error{Op: "set bitrate", Driver: "nv", Property: "averageBitRate", Code: int64(kbps), Err: codec.ErrConfigRejected}
	}
	next := e.current
	bps := uint32(kbps) * 1000
	next.Config.RC.AverageBitRate = bps
	next.Config.RC.MaxBitRate = bps
	next.Config.RC.VBVBufferSize = bps / uint32(next.FrameRateNum)
	if err := e.reconfigure("set bitrate", "averageBitRate", next); err != nil {
		return err
	}
	e.params.Rate.BitrateKbps = kbps
	return nil
}

// SetFramerate implements backend.Encoder.
func (e *Encoder) SetFramerate(fps int) error {
	if e.closed {
		return codec.NewError(codec.DriverNV, "set framerate", codec.ErrClosed, 0)
	}
	if fps <= 0 {
		return &codec.Error{Op: "set framerate", Driver: "nv", Property: "frameRateNum", Code: int64(fps), Err: codec.ErrConfigRejected}
	}
	next := e.current
	next.FrameRateNum = fps
	next.FrameRateDen = 1
	if err := e.reconfigure("set framerate", "frameRateNum", next); err != nil {
		return err
	}
	e.params.Rate.Framerate = fps
	return nil
}

// Destroy implements backend.Encoder.
func (e *Encoder) Destroy() error {
	e.closed = true
	return e.release.Release()
}

// Rate returns the rate control currently applied.
func (e *Encoder) Rate() codec.RateControl {
	return e.params.Rate
}

// BufferCap returns the capacity of the reusable packet buffer.
func (e *Encoder) BufferCap() int {
	return e.buf.Cap()
}
