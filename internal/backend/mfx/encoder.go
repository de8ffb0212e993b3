package mfx

import (
	"log/slog"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

const (
	minBitstreamSize = 200000
	maxGopPicSize    = 0xFFFF
)

// SessionFactory opens MFX sessions on a loaded dispatcher.
type SessionFactory struct {
	Runtime Runtime
}

// NewEncoder implements backend.EncoderFactory.
func (f SessionFactory) NewEncoder(p backend.Params) (backend.Encoder, error) {
	return NewEncoder(f.Runtime, p)
}

// NewDecoder implements backend.DecoderFactory.
func (f SessionFactory) NewDecoder(p backend.Params) (backend.Decoder, error) {
	return NewDecoder(f.Runtime, p)
}

// Encoder is an MFX encode session.
type Encoder struct {
	params  backend.Params
	log     *slog.Logger
	session Session
	par     VideoParam
	// input describes the caller's surfaces. It differs from the encoder's
	// NV12 frame info when a VPP conversion stage is open.
	input   FrameInfo
	vppOut  []*FrameSurface
	bs      Bitstream
	buf     codec.PacketBuffer
	release backend.ReleaseStack
	closed  bool
}

// encodeParams builds the video parameters for p.
func encodeParams(p backend.Params) VideoParam {
	gop := p.Rate.GOP
	if gop >= maxGopPicSize {
		gop = maxGopPicSize
	}
	par := VideoParam{
		AsyncDepth: 1,
		IOPattern:  IOPatternInVideoMemory,
		Mfx: InfoMFX{
			CodecID:           codecID(p.Codec),
			TargetUsage:       TargetUsageBestSpeed,
			GopPicSize:        gop,
			GopRefDist:        1,
			RateControlMethod: RateControlCBR,
			TargetKbps:        p.Rate.BitrateKbps,
			MaxKbps:           p.Rate.BitrateKbps,
			FrameInfo: FrameInfo{
				FourCC:        FourCCNV12,
				Width:         align16(p.Geometry.Width),
				Height:        align16(p.Geometry.Height),
				CropW:         p.Geometry.Width,
				CropH:         p.Geometry.Height,
				FrameRateExtN: p.Rate.Framerate,
				FrameRateExtD: 1,
				ChromaFormat:  ChromaFormat420,
				PicStruct:     PicStructFrame,
			},
		},
	}
	if p.Geometry.Large() {
		if p.Codec == codec.HEVC {
			par.Mfx.CodecProfile = ProfileHEVCMain
			par.Mfx.CodecLevel = LevelHEVC51 | TierHEVCHigh
		} else {
			par.Mfx.CodecProfile = ProfileAVCHigh
			par.Mfx.CodecLevel = LevelAVC51
		}
	}
	return par
}

// NewEncoder opens an encoder and releases partial state on failure.
func NewEncoder(rt Runtime, p backend.Params) (*Encoder, error) {
	p = p.WithDefaults()
	if err := p.ValidateEncode(codec.DriverMFX); err != nil {
		return nil, err
	}
	in, ok := fourCC(p.Format)
	if !ok {
		return nil, formatRejected("create", p.Format)
	}
	e := &Encoder{
		params: p,
		log:    p.Logger.With(slog.String("driver", "mfx"), slog.String("codec", p.Codec.String())),
		par:    encodeParams(p),
	}
	e.input = e.par.Mfx.FrameInfo
	e.input.FourCC = in
	if err := e.open(rt); err != nil {
		if rerr := e.release.Release(); rerr != nil {
			e.log.Warn("release after failed create", slog.String("error", rerr.Error()))
		}
		return nil, err
	}
	return e, nil
}

func (e *Encoder) open(rt Runtime) error {
	s, err := openSession(rt, e.params.Device, e.release.Push)
	if err != nil {
		return err
	}
	e.session = s

	if e.input.FourCC != e.par.Mfx.FrameInfo.FourCC {
		if err := e.openConverter(); err != nil {
			return err
		}
	}

	st := s.EncodeInit(&e.par)
	if st < 0 {
		return statusError("encode init", st)
	}
	e.release.Push("encoder", e.closeEncoder)
	if st > 0 {
		// Partial acceleration still encodes on the adapter.
		e.log.Warn("encode init warning", slog.String("status", st.String()))
	}

	size := e.params.Geometry.Width * e.params.Geometry.Height * 2
	if size < minBitstreamSize {
		size = minBitstreamSize
	}
	e.bs = Bitstream{Data: make([]byte, size)}
	return nil
}

// openConverter opens a VPP stage converting input surfaces to the NV12
// layout the encoder consumes.
func (e *Encoder) openConverter() error {
	s := e.session
	if st := s.VPPInit(e.input, e.par.Mfx.FrameInfo); st < 0 {
		return statusError("vpp init", st)
	}
	e.release.Push("vpp", func() error {
		if st := s.VPPClose(); st != ErrNone {
			return statusError("vpp close", st)
		}
		return nil
	})
	out, st := s.AllocFrames(e.par.Mfx.FrameInfo, 2)
	if st != ErrNone {
		return statusError("alloc vpp frames", st)
	}
	e.vppOut = out
	e.release.Push("frames", func() error {
		if st := s.FreeFrames(out); st != ErrNone {
			return statusError("free vpp frames", st)
		}
		return nil
	})
	return nil
}

// convert runs surf through the VPP stage, waiting while the device is busy.
func (e *Encoder) convert(surf *FrameSurface) (*FrameSurface, error) {
	dst := freeSurface(e.vppOut)
	if dst == nil {
		return nil, &codec.Error{Op: "vpp", Driver: "mfx", Err: codec.ErrFatal, Detail: "no free vpp surface"}
	}
	var sp SyncPoint
	var st Status
	done, err := backend.Retry(e.params.Clock, e.params.Limits.ConvertAttempts, e.params.Limits.ConvertInterval, func(int) (bool, error) {
		sp, st = e.session.VPPRunFrameAsync(surf, dst)
		switch {
		case st == WrnDeviceBusy, st == ErrMoreSurface:
			return false, nil
		case st < 0:
			return false, statusError("vpp", st)
		default:
			return true, nil
		}
	})
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, &codec.Error{Op: "vpp", Driver: "mfx", Code: int64(st), Err: codec.ErrFatal, Detail: "converter stayed busy"}
	}
	if st := e.session.SyncOperation(sp, int(e.params.Limits.SyncTimeout.Milliseconds())); st != ErrNone {
		return nil, statusError("vpp sync", st)
	}
	return dst, nil
}

func (e *Encoder) closeEncoder() error {
	if st := e.session.EncodeClose(); st != ErrNone {
		return statusError("encode close", st)
	}
	return nil
}

// Encode implements backend.Encoder.
func (e *Encoder) Encode(tex backend.Texture, timestampMs int64) (codec.Packet, error) {
	if e.closed {
		return codec.Packet{}, codec.NewError(codec.DriverMFX, "encode", codec.ErrClosed, 0)
	}
	surf := &FrameSurface{
		Info: e.input,
		Data: FrameData{MemID: uintptr(tex), TimeStamp: timestampMs * TimestampPerMillisecond},
	}
	if e.vppOut != nil {
		converted, err := e.convert(surf)
		if err != nil {
			return codec.Packet{}, err
		}
		surf = converted
	}
	e.bs.DataOffset, e.bs.DataLength = 0, 0

	var sp SyncPoint
	var st Status
	done, err := backend.Retry(e.params.Clock, e.params.Limits.BusyAttempts, e.params.Limits.BusyInterval, func(int) (bool, error) {
		sp, st = e.session.EncodeFrameAsync(surf, &e.bs)
		switch {
		case st == WrnDeviceBusy, st == ErrMoreSurface:
			return false, nil
		case st == ErrMoreData:
			return true, nil
		case st < 0:
			return false, statusError("encode frame", st)
		default:
			return true, nil
		}
	})
	if err != nil {
		return codec.Packet{}, err
	}
	if !done {
		return codec.Packet{}, &codec.Error{Op: "encode frame", Driver: "mfx", Code: int64(st), Err: codec.ErrFatal, Detail: "device stayed busy"}
	}
	if st == ErrMoreData || sp == 0 {
		return codec.Packet{}, statusError("encode frame", ErrMoreData)
	}

	if st := e.session.SyncOperation(sp, int(e.params.Limits.SyncTimeout.Milliseconds())); st != ErrNone {
		if st == WrnInExecution {
			return codec.Packet{}, &codec.Error{Op: "sync", Driver: "mfx", Code: int64(st), Err: codec.ErrFatal, Detail: "sync timed out"}
		}
		return codec.Packet{}, statusError("sync", st)
	}

	pts := e.bs.TimeStamp / TimestampPerMillisecond
	return codec.Packet{
		Data:     e.buf.Fill(e.bs.Bytes()),
		PTS:      pts,
		DTS:      pts,
		Keyframe: e.bs.FrameType&(FrameTypeI|FrameTypeIDR) != 0,
	}, nil
}

// reset applies par to the live encoder. The caller's params are only kept
// when the driver accepts them.
func (e *Encoder) reset(op, property string, par VideoParam) error {
	st := e.session.EncodeReset(&par)
	switch {
	case st < 0:
		return &codec.Error{Op: op, Driver: "mfx", Property: property, Code: int64(st), Detail: st.String(), Err: codec.ErrConfigRejected}
	case st > 0:
		e.log.Warn("encoder reset warning", slog.String("operation", op), slog.String("status", st.String()))
	}
	e.par = par
	return nil
}

// SetBitrate implements backend.Encoder.
func (e *Encoder) SetBitrate(kbps int) error {
	if e.closed {
		return codec.NewError(codec.DriverMFX, "set bitrate", codec.ErrClosed, 0)
	}
	if kbps <= 0 {
		return &codec.Error{Op: "set bitrate", Driver: "mfx", Property: "TargetKbps", Code: int64(kbps), Err: codec.ErrConfigRejected}
	}
	par := e.par
	par.Mfx.TargetKbps = kbps
	par.Mfx.MaxKbps = kbps
	if err := e.reset("set bitrate", "TargetKbps", par); err != nil {
		return err
	}
	e.params.Rate.BitrateKbps = kbps
	return nil
}

// SetFramerate implements backend.Encoder.
func (e *Encoder) SetFramerate(fps int) error {
	if e.closed {
		return codec.NewError(codec.DriverMFX, "set framerate", codec.ErrClosed, 0)
	}
	if fps <= 0 {
		return &codec.Error{Op: "set framerate", Driver: "mfx", Property: "FrameRateExtN", Code: int64(fps), Err: codec.ErrConfigRejected}
	}
	par := e.par
	par.Mfx.FrameInfo.FrameRateExtN = fps
	par.Mfx.FrameInfo.FrameRateExtD = 1
	if err := e.reset("set framerate", "FrameRateExtN", par); err != nil {
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
