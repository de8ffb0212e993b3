package mfx

import (
	"log/slog"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

// Decoder is an MFX decode session. The stream header is parsed from the
// first chunk; until then Decode reports need-more-input.
type Decoder struct {
	params  backend.Params
	log     *slog.Logger
	session Session
	par     VideoParam
	bs      Bitstream

	ready    bool
	surfaces []*FrameSurface
	vpp      bool
	vppOut   []*FrameSurface

	release backend.ReleaseStack
	closed  bool
}

// NewDecoder opens the session for a decoder. Decoder state is created from
// the first stream header seen by Decode.
func NewDecoder(rt Runtime, p backend.Params) (*Decoder, error) {
	p = p.WithDefaults()
	if err := p.ValidateDecode(codec.DriverMFX); err != nil {
		return nil, err
	}
	if _, ok := fourCC(p.Format); !ok {
		return nil, formatRejected("create", p.Format)
	}
	d := &Decoder{
		params: p,
		log:    p.Logger.With(slog.String("driver", "mfx"), slog.String("codec", p.Codec.String())),
	}
	s, err := openSession(rt, p.Device, d.release.Push)
	if err != nil {
		if rerr := d.release.Release(); rerr != nil {
			d.log.Warn("release after failed create", slog.String("error", rerr.Error()))
		}
		return nil, err
	}
	d.session = s
	d.release.Push("decoder", d.teardown)
	return d, nil
}

// teardown closes VPP, the decoder and their surface pools if open.
func (d *Decoder) teardown() error {
	var first error
	if d.vpp {
		if st := d.session.VPPClose(); st != ErrNone && first == nil {
			first = statusError("vpp close", st)
		}
		d.vpp = false
	}
	if d.vppOut != nil {
		d.session.FreeFrames(d.vppOut)
		d.vppOut = nil
	}
	if d.ready {
		if st := d.session.DecodeClose(); st != ErrNone && first == nil {
			first = statusError("decode close", st)
		}
		d.ready = false
	}
	if d.surfaces != nil {
		d.session.FreeFrames(d.surfaces)
		d.surfaces = nil
	}
	return first
}

// feed appends data after whatever the decoder has not consumed yet.
func (d *Decoder) feed(data []byte) {
	pending := d.bs.Bytes()
	need := len(pending) + len(data)
	if cap(d.bs.Data) < need {
		grown := make([]byte, codec.NextPowerOfTwo(need))
		copy(grown, pending)
		d.bs.Data = grown
	} else {
		copy(d.bs.Data, pending)
		d.bs.Data = d.bs.Data[:cap(d.bs.Data)]
	}
	copy(d.bs.Data[len(pending):], data)
	d.bs.DataOffset = 0
	d.bs.DataLength = need
}

// initialise parses the header and creates the decoder and surface pools.
func (d *Decoder) initialise() error {
	par := VideoParam{Mfx: InfoMFX{CodecID: codecID(d.params.Codec)}}
	if st := d.session.DecodeHeader(&d.bs, &par); st != ErrNone {
		if st < 0 {
			return statusError("decode header", st)
		}
		d.log.Debug("decode header warning", slog.String("status", st.String()))
	}
	par.AsyncDepth = 1
	par.IOPattern = IOPatternOutVideoMemory

	n, st := d.session.DecodeQueryIOSurf(&par)
	if st < 0 {
		return statusError("query io surf", st)
	}
	surfaces, st := d.session.AllocFrames(par.Mfx.FrameInfo, n)
	if st != ErrNone {
		return statusError("alloc frames", st)
	}
	d.surfaces = surfaces

	if st := d.session.DecodeInit(&par); st < 0 {
		return statusError("decode init", st)
	}
	d.ready = true
	d.par = par

	if want, _ := fourCC(d.params.Format); want != par.Mfx.FrameInfo.FourCC {
		out := par.Mfx.FrameInfo
		out.FourCC = want
		if st := d.session.VPPInit(par.Mfx.FrameInfo, out); st < 0 {
			return statusError("vpp init", st)
		}
		d.vpp = true
		vppOut, st := d.session.AllocFrames(out, 2)
		if st != ErrNone {
			return statusError("alloc vpp frames", st)
		}
		d.vppOut = vppOut
	}
	d.log.Debug("decoder initialised",
		slog.Int("width", par.Mfx.FrameInfo.CropW),
		slog.Int("height", par.Mfx.FrameInfo.CropH),
		slog.Int("surfaces", n),
	)
	return nil
}

func freeSurface(pool []*FrameSurface) *FrameSurface {
	for _, s := range pool {
		if s.Data.Locked == 0 {
			return s
		}
	}
	return nil
}

// Decode implements backend.Decoder.
func (d *Decoder) Decode(data []byte) (codec.DecodeResult, error) {
	if d.closed {
		return codec.DecodeResult{}, codec.NewError(codec.DriverMFX, "decode", codec.ErrClosed, 0)
	}
	d.feed(data)
	if !d.ready {
		if err := d.initialise(); err != nil {
			if codec.IsRetry(err) {
				return codec.DecodeResult{}, err
			}
			if terr := d.teardown(); terr != nil {
				d.log.Warn("teardown after failed init", slog.String("error", terr.Error()))
			}
			return codec.DecodeResult{}, err
		}
	}

	var result codec.DecodeResult
	for i := 0; i < d.params.Limits.BusyAttempts; i++ {
		work := freeSurface(d.surfaces)
		if work == nil {
			return result, &codec.Error{Op: "decode frame", Driver: "mfx", Err: codec.ErrFatal, Detail: "no free surface"}
		}
		out, sp, st := d.session.DecodeFrameAsync(&d.bs, work)
		switch {
		case st == ErrMoreData:
			if len(result.Frames) == 0 {
				return result, statusError("decode frame", ErrMoreData)
			}
			return result, nil
		case st == ErrMoreSurface, st == WrnVideoParamChanged:
			continue
		case st == WrnDeviceBusy:
			d.params.Clock.Sleep(d.params.Limits.BusyInterval)
			continue
		case st == ErrIncompatibleVideoParam:
			d.log.Info("stream parameters changed, reinitialising")
			if err := d.teardown(); err != nil {
				return result, err
			}
			if err := d.initialise(); err != nil {
				return result, err
			}
			continue
		case st < 0:
			return result, statusError("decode frame", st)
		}
		if sp == 0 || out == nil {
			continue
		}
		if st := d.session.SyncOperation(sp, int(d.params.Limits.SyncTimeout.Milliseconds())); st != ErrNone {
			return result, statusError("sync", st)
		}
		if out.Data.Corrupted&(CorruptionReferenceFrame|CorruptionReferenceList) != 0 {
			result.RefMissing = true
		}
		frame, err := d.output(out)
		if err != nil {
			return result, err
		}
		result.Frames = append(result.Frames, frame)
	}
	return result, &codec.Error{Op: "decode frame", Driver: "mfx", Err: codec.ErrFatal, Detail: "decode loop did not settle"}
}

// output converts a decoded surface through VPP when the requested layout
// differs from the decoder's native one.
func (d *Decoder) output(out *FrameSurface) (codec.DecodedFrame, error) {
	src := out
	if d.vpp {
		dst := freeSurface(d.vppOut)
		if dst == nil {
			return codec.DecodedFrame{}, &codec.Error{Op: "vpp", Driver: "mfx", Err: codec.ErrFatal, Detail: "no free vpp surface"}
		}
		sp, st := d.session.VPPRunFrameAsync(out, dst)
		if st < 0 {
			return codec.DecodedFrame{}, statusError("vpp", st)
		}
		if st := d.session.SyncOperation(sp, int(d.params.Limits.SyncTimeout.Milliseconds())); st != ErrNone {
			return codec.DecodedFrame{}, statusError("vpp sync", st)
		}
		src = dst
	}
	return codec.DecodedFrame{
		Texture: src.Data.MemID,
		Width:   src.Info.CropW,
		Height:  src.Info.CropH,
		Format:  d.params.Format,
	}, nil
}

// Destroy implements backend.Decoder.
func (d *Decoder) Destroy() error {
	d.closed = true
	return d.release.Release()
}
