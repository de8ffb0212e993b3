package nvenc

import (
	"log/slog"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

const minDecodeSurfaces = 4

// Decoder is a CUVID decode session. The video decoder itself is created by
// the parser's sequence callback and recreated when the coded size changes.
type Decoder struct {
	params backend.Params
	log    *slog.Logger
	ctx    CudaContext
	parser Parser
	dec    VideoDecoder
	seq    SequenceFormat
	format BufferFormat

	// per-call state filled by the parser callbacks
	result codec.DecodeResult
	cbErr  error

	release backend.ReleaseStack
	closed  bool
}

func cudaCodec(k codec.Kind) int {
	if k == codec.HEVC {
		return CudaVideoCodecHEVC
	}
	return CudaVideoCodecH264
}

// NewDecoder opens a CUDA context and parser for p.Codec.
func NewDecoder(cv CUVID, p backend.Params) (*Decoder, error) {
	p = p.WithDefaults()
	if err := p.ValidateDecode(codec.DriverNV); err != nil {
		return nil, err
	}
	d := &Decoder{
		params: p,
		log:    p.Logger.With(slog.String("driver", "nv"), slog.String("codec", p.Codec.String())),
		format: bufferFormat(p.Format),
	}
	if err := d.open(cv); err != nil {
		if rerr := d.release.Release(); rerr != nil {
			d.log.Warn("release after failed create", slog.String("error", rerr.Error()))
		}
		return nil, err
	}
	return d, nil
}

func (d *Decoder) open(cv CUVID) error {
	if cv == nil {
		return &codec.Error{Op: "create context", Driver: "nv", Err: codec.ErrUnavailable, Detail: "cuvid not loaded"}
	}
	ctx, r := cv.CreateContext(d.params.Device)
	if r != CUDASuccess {
		return cuError("create context", r)
	}
	d.ctx = ctx
	d.release.Push("context", func() error {
		if r := ctx.Destroy(); r != CUDASuccess {
			return cuError("destroy context", r)
		}
		return nil
	})
	d.release.Push("decoder", d.destroyDecoder)

	parser, r := ctx.CreateParser(cudaCodec(d.params.Codec), ParserCallbacks{
		Sequence: d.onSequence,
		Decode:   d.onDecode,
		Display:  d.onDisplay,
	})
	if r != CUDASuccess {
		return cuError("create parser", r)
	}
	d.parser = parser
	d.release.Push("parser", func() error {
		if r := parser.Destroy(); r != CUDASuccess {
			return cuError("destroy parser", r)
		}
		return nil
	})
	return nil
}

func (d *Decoder) destroyDecoder() error {
	if d.dec == nil {
		return nil
	}
	r := d.dec.Destroy()
	d.dec = nil
	if r != CUDASuccess {
		return cuError("destroy decoder", r)
	}
	return nil
}

func (d *Decoder) fail(err error) int {
	if d.cbErr == nil {
		d.cbErr = err
	}
	return 0
}

// onSequence creates the decoder for a new sequence header.
func (d *Decoder) onSequence(f SequenceFormat) int {
	n := f.MinDecodeSurfaces
	if n < minDecodeSurfaces {
		n = minDecodeSurfaces
	}
	if d.dec != nil {
		if f.CodedWidth == d.seq.CodedWidth && f.CodedHeight == d.seq.CodedHeight {
			return n
		}
		d.log.Info("sequence size changed, recreating decoder",
			slog.Int("width", f.DisplayWidth),
			slog.Int("height", f.DisplayHeight),
		)
		if err := d.destroyDecoder(); err != nil {
			return d.fail(err)
		}
	}
	dec, r := d.ctx.CreateDecoder(DecoderCreateInfo{
		Codec:        f.Codec,
		Width:        f.CodedWidth,
		Height:       f.CodedHeight,
		TargetWidth:  f.DisplayWidth,
		TargetHeight: f.DisplayHeight,
		NumSurfaces:  n,
		OutputFormat: BufferFormatNV12,
	})
	if r != CUDASuccess {
		return d.fail(cuError("create decoder", r))
	}
	d.dec = dec
	d.seq = f
	return n
}

func (d *Decoder) onDecode(p PictureParams) int {
	if d.dec == nil {
		return d.fail(&codec.Error{Op: "decode picture", Driver: "nv", Err: codec.ErrFatal, Detail: "picture before sequence header"})
	}
	if r := d.dec.DecodePicture(p); r != CUDASuccess {
		return d.fail(cuError("decode picture", r))
	}
	return 1
}

func (d *Decoder) onDisplay(info DisplayInfo) int {
	status, r := d.dec.DecodeStatus(info.PicIdx)
	if r == CUDASuccess && (status == DecodeStatusError || status == DecodeStatusErrorConcealed) {
		d.result.RefMissing = true
	}
	frame, pitch, r := d.dec.MapVideoFrame(info.PicIdx)
	if r != CUDASuccess {
		return d.fail(cuError("map frame", r))
	}
	w, h := d.seq.DisplayWidth, d.seq.DisplayHeight
	tex, r := d.ctx.CopyToTexture(frame, pitch, w, h, d.format)
	if ur := d.dec.UnmapVideoFrame(frame); ur != CUDASuccess {
		d.log.Warn("unmap frame failed", slog.String("result", ur.String()))
	}
	if r != CUDASuccess {
		return d.fail(cuError("copy frame", r))
	}
	d.result.Frames = append(d.result.Frames, codec.DecodedFrame{
		Texture: tex,
		Width:   w,
		Height:  h,
		Format:  d.params.Format,
	})
	return 1
}

// Decode implements backend.Decoder.
func (d *Decoder) Decode(data []byte) (codec.DecodeResult, error) {
	if d.closed {
		return codec.DecodeResult{}, codec.NewError(codec.DriverNV, "decode", codec.ErrClosed, 0)
	}
	d.result = codec.DecodeResult{}
	d.cbErr = nil

	r := d.parser.ParseVideoData(data)
	result := d.result
	if d.cbErr != nil {
		return result, d.cbErr
	}
	if r != CUDASuccess {
		return result, cuError("parse", r)
	}
	if len(result.Frames) == 0 {
		return result, &codec.Error{Op: "parse", Driver: "nv", Err: codec.ErrNeedMoreInput}
	}
	return result, nil
}

// Destroy implements backend.Decoder.
func (d *Decoder) Destroy() error {
	d.closed = true
	return d.release.Release()
}
