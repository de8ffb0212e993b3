package amf

import (
	"log/slog"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

// Decoder is an AMF decode session. Output is NV12 from the hardware; a
// converter to the requested layout is created on first use.
type Decoder struct {
	params    backend.Params
	log       *slog.Logger
	component string
	ctx       Context
	dec       Component
	conv      Component
	convReady bool
	outFmt    SurfaceFormat
	held      []Data
	release   backend.ReleaseStack
	closed    bool
}

// NewDecoder opens a decoder for p.Codec on p.Device.
func NewDecoder(rt Runtime, p backend.Params) (*Decoder, error) {
	p = p.WithDefaults()
	if err := p.ValidateDecode(codec.DriverAMF); err != nil {
		return nil, err
	}
	d := &Decoder{
		params:    p,
		log:       p.Logger.With(slog.String("driver", "amf"), slog.String("codec", p.Codec.String())),
		component: ComponentDecoderAVC,
		outFmt:    surfaceFormat(p.Format),
	}
	if p.Codec == codec.HEVC {
		d.component = ComponentDecoderHEVC
	}
	if err := d.open(rt); err != nil {
		if rerr := d.release.Release(); rerr != nil {
			d.log.Warn("release after failed create", slog.String("error", rerr.Error()))
		}
		return nil, err
	}
	return d, nil
}

func (d *Decoder) open(rt Runtime) error {
	ctx, err := openContext(rt, d.params.Device, d.release.Push)
	if err != nil {
		return err
	}
	d.ctx = ctx

	dec, r := ctx.CreateComponent(d.component)
	if r != OK {
		return resultError("create decoder", r)
	}
	d.release.Push("decoder", releaseComponent(dec))
	d.dec = dec
	return d.initDecoder()
}

func (d *Decoder) initDecoder() error {
	if _, err := backend.ApplyProperties(d.log, codec.DriverAMF, "decoder init", setter(d.dec), decoderProperties()); err != nil {
		return err
	}
	if r := d.dec.Init(SurfaceNV12, d.params.Geometry.Width, d.params.Geometry.Height); r != OK {
		return resultError("decoder init", r)
	}
	return nil
}

// Decode implements backend.Decoder. Frames returned by the previous call
// are released first.
func (d *Decoder) Decode(data []byte) (codec.DecodeResult, error) {
	if d.closed {
		return codec.DecodeResult{}, codec.NewError(codec.DriverAMF, "decode", codec.ErrClosed, 0)
	}
	d.releaseHeld()

	buf, r := d.ctx.AllocBuffer(len(data))
	if r != OK {
		return codec.DecodeResult{}, resultError("alloc buffer", r)
	}
	defer buf.Release()
	buf.Write(data)

	if err := d.submit(buf); err != nil {
		return codec.DecodeResult{}, err
	}

	var result codec.DecodeResult
	for i := 0; i < d.params.Limits.DecodeDrainAttempts; i++ {
		out, r := d.dec.QueryOutput()
		if r == EOF || r == NeedMoreInput || r == Repeat || (r == OK && out == nil) {
			break
		}
		if r != OK {
			return result, resultError("query output", r)
		}
		frame, err := d.frame(out)
		if err != nil {
			return result, err
		}
		result.Frames = append(result.Frames, frame)
	}
	if len(result.Frames) == 0 {
		return result, resultError("query output", NeedMoreInput)
	}
	return result, nil
}

// submit feeds buf, draining ready output while the queue is full and
// reinitialising when the stream changes resolution.
func (d *Decoder) submit(buf Buffer) error {
	var last Result
	done, err := backend.Retry(d.params.Clock, d.params.Limits.DecodeDrainAttempts, d.params.Limits.DrainInterval, func(int) (bool, error) {
		last = d.dec.SubmitInput(buf)
		switch last {
		case OK:
			return true, nil
		case InputFull:
			if out, r := d.dec.QueryOutput(); r == OK && out != nil {
				out.Release()
			}
			return false, nil
		case ResolutionChanged:
			if err := d.reinit(); err != nil {
				return false, err
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
		return &codec.Error{Op: "submit", Driver: "amf", Code: int64(last), Err: codec.ErrFatal, Detail: "decoder input stayed full"}
	}
	return nil
}

// reinit drains the decoder, terminates it and initialises it again for the
// new stream geometry.
func (d *Decoder) reinit() error {
	d.log.Info("decoder resolution changed, reinitialising")
	if r := d.dec.Drain(); r != OK && r != EOF {
		return resultError("drain", r)
	}
	for i := 0; i < d.params.Limits.DecodeDrainAttempts; i++ {
		out, r := d.dec.QueryOutput()
		if r != OK || out == nil {
			break
		}
		out.Release()
	}
	if r := d.dec.Terminate(); r != OK {
		return resultError("terminate", r)
	}
	if d.conv != nil && d.convReady {
		d.conv.Terminate()
		d.convReady = false
	}
	return d.initDecoder()
}

// frame converts out to the requested layout when needed and keeps it alive
// until the next Decode call.
func (d *Decoder) frame(out Data) (codec.DecodedFrame, error) {
	surf, ok := out.(Surface)
	if !ok {
		out.Release()
		return codec.DecodedFrame{}, &codec.Error{Op: "query output", Driver: "amf", Err: codec.ErrFatal, Detail: "decoder returned a non-surface"}
	}
	d.held = append(d.held, surf)
	if surf.Format() == d.outFmt {
		return codec.DecodedFrame{Texture: surf.Native(), Width: surf.Width(), Height: surf.Height(), Format: d.params.Format}, nil
	}

	if !d.convReady {
		if err := d.openConverter(surf); err != nil {
			return codec.DecodedFrame{}, err
		}
	}
	if r := d.conv.SubmitInput(surf); r != OK {
		return codec.DecodedFrame{}, resultError("convert submit", r)
	}
	var converted Surface
	done, err := backend.Retry(d.params.Clock, d.params.Limits.ConvertAttempts, d.params.Limits.ConvertInterval, func(int) (bool, error) {
		o, r := d.conv.QueryOutput()
		switch {
		case r == OK && o != nil:
			s, ok := o.(Surface)
			if !ok {
				o.Release()
				return false, &codec.Error{Op: "convert query", Driver: "amf", Err: codec.ErrFatal, Detail: "converter returned a non-surface"}
			}
			converted = s
			return true, nil
		case r == OK, r == Repeat, r == NeedMoreInput:
			return false, nil
		default:
			return false, resultError("convert query", r)
		}
	})
	if err != nil {
		return codec.DecodedFrame{}, err
	}
	if !done {
		return codec.DecodedFrame{}, &codec.Error{Op: "convert", Driver: "amf", Err: codec.ErrFatal, Detail: "converter produced no output"}
	}
	d.held = append(d.held, converted)
	return codec.DecodedFrame{Texture: converted.Native(), Width: converted.Width(), Height: converted.Height(), Format: d.params.Format}, nil
}

func (d *Decoder) openConverter(src Surface) error {
	if d.conv == nil {
		conv, r := d.ctx.CreateComponent(ComponentConverter)
		if r != OK {
			return resultError("create converter", r)
		}
		d.release.Push("converter", releaseComponent(conv))
		d.conv = conv
	}
	conv := d.conv
	g := codec.Geometry{Width: src.Width(), Height: src.Height()}
	if _, err := backend.ApplyProperties(d.log, codec.DriverAMF, "converter init", setter(conv), converterProperties(d.outFmt, g)); err != nil {
		return err
	}
	if r := conv.Init(src.Format(), g.Width, g.Height); r != OK {
		return resultError("converter init", r)
	}
	d.convReady = true
	return nil
}

func (d *Decoder) releaseHeld() {
	for _, h := range d.held {
		h.Release()
	}
	d.held = d.held[:0]
}

// Destroy implements backend.Decoder.
func (d *Decoder) Destroy() error {
	d.closed = true
	d.releaseHeld()
	return d.release.Release()
}
