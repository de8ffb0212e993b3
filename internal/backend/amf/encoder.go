package amf

import (
	"fmt"
	"log/slog"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

// SessionFactory opens AMF sessions on a loaded runtime.
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

// Encoder is an AMF encode session.
type Encoder struct {
	params  backend.Params
	log     *slog.Logger
	names   encoderNames
	ctx     Context
	conv    Component
	enc     Component
	inFmt   SurfaceFormat
	buf     codec.PacketBuffer
	release backend.ReleaseStack
	closed  bool
}

// NewEncoder opens an encoder. On failure everything acquired so far is
// released before returning.
func NewEncoder(rt Runtime, p backend.Params) (*Encoder, error) {
	p = p.WithDefaults()
	if err := p.ValidateEncode(codec.DriverAMF); err != nil {
		return nil, err
	}
	e := &Encoder{
		params: p,
		log:    p.Logger.With(slog.String("driver", "amf"), slog.String("codec", p.Codec.String())),
		names:  namesFor(p.Codec),
		inFmt:  surfaceFormat(p.Format),
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
	ctx, err := openContext(rt, e.params.Device, e.release.Push)
	if err != nil {
		return err
	}
	e.ctx = ctx

	encFmt := e.inFmt
	// The HEVC encoder only takes NV12.
	if e.params.Codec == codec.HEVC && e.inFmt != SurfaceNV12 {
		conv, r := ctx.CreateComponent(ComponentConverter)
		if r != OK {
			return resultError("create converter", r)
		}
		e.release.Push("converter", releaseComponent(conv))
		if _, err := backend.ApplyProperties(e.log, codec.DriverAMF, "converter init", setter(conv),
			converterProperties(SurfaceNV12, e.params.Geometry)); err != nil {
			return err
		}
		if r := conv.Init(e.inFmt, e.params.Geometry.Width, e.params.Geometry.Height); r != OK {
			return resultError("converter init", r)
		}
		e.conv = conv
		encFmt = SurfaceNV12
	}

	enc, r := ctx.CreateComponent(e.names.component)
	if r != OK {
		return resultError("create encoder", r)
	}
	e.release.Push("encoder", releaseComponent(enc))
	skipped, err := backend.ApplyProperties(e.log, codec.DriverAMF, "init", setter(enc), encoderProperties(e.params))
	if err != nil {
		return err
	}
	if r := enc.Init(encFmt, e.params.Geometry.Width, e.params.Geometry.Height); r != OK {
		return resultError("encoder init", r)
	}
	e.enc = enc
	e.log.Debug("encoder opened",
		slog.String("geometry", e.params.Geometry.String()),
		slog.Int("kbps", e.params.Rate.BitrateKbps),
		slog.Int("fps", e.params.Rate.Framerate),
		slog.Any("skipped", skipped),
	)
	return nil
}

// Encode implements backend.Encoder.
func (e *Encoder) Encode(tex backend.Texture, timestampMs int64) (codec.Packet, error) {
	if e.closed {
		return codec.Packet{}, codec.NewError(codec.DriverAMF, "encode", codec.ErrClosed, 0)
	}
	surf, r := e.ctx.CreateSurfaceFromNative(uintptr(tex), e.inFmt)
	if r != OK {
		return codec.Packet{}, resultError("wrap texture", r)
	}
	defer surf.Release()
	surf.SetPts(timestampMs * PtsPerMillisecond)

	var input Data = surf
	if e.conv != nil {
		converted, err := e.convert(surf)
		if err != nil {
			return codec.Packet{}, err
		}
		defer converted.Release()
		converted.SetPts(surf.Pts())
		input = converted
	}

	if err := e.submit(input); err != nil {
		return codec.Packet{}, err
	}

	out, r := e.enc.QueryOutput()
	if r != OK || out == nil {
		if r == OK || r == NeedMoreInput || r == Repeat {
			return codec.Packet{}, resultError("query output", NeedMoreInput)
		}
		return codec.Packet{}, resultError("query output", r)
	}
	defer out.Release()

	buf, ok := out.(Buffer)
	if !ok {
		return codec.Packet{}, &codec.Error{Op: "query output", Driver: "amf", Err: codec.ErrFatal, Detail: fmt.Sprintf("unexpected output %T", out)}
	}
	dataType, r := buf.Property(e.names.outputDataType)
	if r != OK {
		return codec.Packet{}, resultError("output data type", r)
	}
	pts := buf.Pts() / PtsPerMillisecond
	return codec.Packet{
		Data:     e.buf.Fill(buf.Bytes()),
		PTS:      pts,
		DTS:      pts,
		Keyframe: isKeyframeType(dataType),
	}, nil
}

// submit hands in to the encoder. While the input queue is full it discards
// ready output and resubmits, up to the drain budget.
func (e *Encoder) submit(in Data) error {
	var last Result
	done, err := backend.Retry(e.params.Clock, e.params.Limits.DrainAttempts, e.params.Limits.DrainInterval, func(int) (bool, error) {
		last = e.enc.SubmitInput(in)
		switch last {
		case OK:
			return true, nil
		case InputFull:
			if out, r := e.enc.QueryOutput(); r == OK && out != nil {
				out.Release()
			}
			return false, nil
		default:
			return false, resultError("submit", last)
		}
	})
	if err != nil {
		return err
	}
	if !done {
		e.log.Warn("input queue stayed full", slog.Int("attempts", e.params.Limits.DrainAttempts))
		return &codec.Error{Op: "submit", Driver: "amf", Code: int64(last), Err: codec.ErrFatal, Detail: "input queue full after drain budget"}
	}
	return nil
}

// convert runs surf through the format converter and waits, bounded, for the
// converted surface.
func (e *Encoder) convert(surf Surface) (Data, error) {
	if r := e.conv.SubmitInput(surf); r != OK {
		return nil, resultError("convert submit", r)
	}
	var out Data
	done, err := backend.Retry(e.params.Clock, e.params.Limits.ConvertAttempts, e.params.Limits.ConvertInterval, func(int) (bool, error) {
		d, r := e.conv.QueryOutput()
		switch {
		case r == OK && d != nil:
			out = d
			return true, nil
		case r == OK, r == Repeat, r == NeedMoreInput:
			return false, nil
		default:
			return false, resultError("convert query", r)
		}
	})
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, &codec.Error{Op: "convert", Driver: "amf", Err: codec.ErrFatal, Detail: "converter produced no output"}
	}
	return out, nil
}

// SetBitrate implements backend.Encoder.
func (e *Encoder) SetBitrate(kbps int) error {
	if e.closed {
		return codec.NewError(codec.DriverAMF, "set bitrate", codec.ErrClosed, 0)
	}
	if kbps <= 0 {
		return &codec.Error{Op: "set bitrate", Driver: "amf", Err: codec.ErrConfigRejected, Property: e.names.targetBitrate, Code: int64(kbps)}
	}
	if _, err := backend.ApplyProperties(e.log, codec.DriverAMF, "set bitrate", setter(e.enc), bitrateProperties(e.params.Codec, kbps)); err != nil {
		return err
	}
	e.params.Rate.BitrateKbps = kbps
	return nil
}

// SetFramerate implements backend.Encoder.
func (e *Encoder) SetFramerate(fps int) error {
	if e.closed {
		return codec.NewError(codec.DriverAMF, "set framerate", codec.ErrClosed, 0)
	}
	if fps <= 0 {
		return &codec.Error{Op: "set framerate", Driver: "amf", Err: codec.ErrConfigRejected, Property: e.names.frameRate, Code: int64(fps)}
	}
	if _, err := backend.ApplyProperties(e.log, codec.DriverAMF, "set framerate", setter(e.enc), framerateProperties(e.params.Codec, fps)); err != nil {
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
