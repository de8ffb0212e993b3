// Package backend defines the contract every vendor codec backend implements
// and the pieces they share: scoped release of vendor objects, bounded
// retry loops on an injectable clock, explicit required/optional property
// classification and the keyframe self-test.
package backend

import (
	"log/slog"
	"time"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

// Texture is an externally owned GPU surface handle (D3D11 texture, DRM
// prime fd, CUDA pointer...). Backends borrow it for one call.
type Texture uintptr

//go:generate mockgen -source=backend.go -destination=mocks/mock_backend.go -package=mocks

// Encoder is one open hardware encode session. Calls must be serialised by
// the caller.
type Encoder interface {
	// Encode submits tex and queries for at most one packet. It returns an
	// error wrapping codec.ErrNeedMoreInput when no packet is ready yet.
	Encode(tex Texture, timestampMs int64) (codec.Packet, error)
	// SetBitrate applies a new target bitrate to the live encoder.
	SetBitrate(kbps int) error
	// SetFramerate applies a new framerate to the live encoder.
	SetFramerate(fps int) error
	// Destroy releases everything the session acquired. It is idempotent.
	Destroy() error
}

// Decoder is one open hardware decode session.
type Decoder interface {
	Decode(data []byte) (codec.DecodeResult, error)
	Destroy() error
}

// EncoderFactory opens encoders for one driver.
type EncoderFactory interface {
	NewEncoder(p Params) (Encoder, error)
}

// DecoderFactory opens decoders for one driver.
type DecoderFactory interface {
	NewDecoder(p Params) (Decoder, error)
}

// Limits bounds every internal wait so a stuck driver surfaces as an error.
type Limits struct {
	// DrainAttempts bounds the output drain performed when the input queue is full.
	DrainAttempts int
	DrainInterval time.Duration
	// DecodeDrainAttempts bounds the same drain on the decode path.
	DecodeDrainAttempts int
	// ConvertAttempts bounds the wait for converter output.
	ConvertAttempts int
	ConvertInterval time.Duration
	// BusyAttempts bounds resubmission while the device reports busy.
	BusyAttempts int
	BusyInterval time.Duration
	// SyncTimeout is passed to drivers that block on completion.
	SyncTimeout time.Duration
}

// DefaultLimits returns the retry budgets used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		DrainAttempts:       200,
		DrainInterval:       time.Millisecond,
		DecodeDrainAttempts: 64,
		ConvertAttempts:     100,
		ConvertInterval:     time.Millisecond,
		BusyAttempts:        1000,
		BusyInterval:        time.Millisecond,
		SyncTimeout:         time.Second,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.DrainAttempts <= 0 {
		l.DrainAttempts = d.DrainAttempts
	}
	if l.DrainInterval <= 0 {
		l.DrainInterval = d.DrainInterval
	}
	if l.DecodeDrainAttempts <= 0 {
		l.DecodeDrainAttempts = d.DecodeDrainAttempts
	}
	if l.ConvertAttempts <= 0 {
		l.ConvertAttempts = d.ConvertAttempts
	}
	if l.ConvertInterval <= 0 {
		l.ConvertInterval = d.ConvertInterval
	}
	if l.BusyAttempts <= 0 {
		l.BusyAttempts = d.BusyAttempts
	}
	if l.BusyInterval <= 0 {
		l.BusyInterval = d.BusyInterval
	}
	if l.SyncTimeout <= 0 {
		l.SyncTimeout = d.SyncTimeout
	}
	return l
}

// Params describe a session to open.
type Params struct {
	Device   uintptr // borrowed device handle, never closed by a backend
	LUID     int64
	Vendor   codec.Vendor
	Codec    codec.Kind
	Format   codec.PixelFormat // layout of the input (encode) or output (decode) surface
	Geometry codec.Geometry
	Rate     codec.RateControl

	Logger *slog.Logger
	Clock  Clock
	Limits Limits
}

// WithDefaults fills the logger, clock and limits and clamps the GOP.
func (p Params) WithDefaults() Params {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Clock == nil {
		p.Clock = SystemClock{}
	}
	p.Limits = p.Limits.withDefaults()
	p.Rate = p.Rate.Normalized()
	return p
}

// ValidateEncode checks the parameters every encoder needs before touching
// the driver.
func (p Params) ValidateEncode(driver codec.Driver) error {
	if p.Device == 0 {
		return &codec.Error{Op: "create", Driver: driver.String(), Err: codec.ErrConfigRejected, Property: "device"}
	}
	if !p.Codec.Valid() {
		return &codec.Error{Op: "create", Driver: driver.String(), Err: codec.ErrUnsupported, Property: "codec", Code: int64(p.Codec)}
	}
	if err := p.Format.Validate(); err != nil {
		return err
	}
	if err := p.Geometry.Validate(); err != nil {
		return err
	}
	if !p.Geometry.Even() {
		return &codec.Error{Op: "create", Driver: driver.String(), Err: codec.ErrConfigRejected, Property: "geometry", Detail: "width and height must be even"}
	}
	return p.Rate.Validate()
}

// ValidateDecode checks the parameters every decoder needs.
func (p Params) ValidateDecode(driver codec.Driver) error {
	if p.Device == 0 {
		return &codec.Error{Op: "create", Driver: driver.String(), Err: codec.ErrConfigRejected, Property: "device"}
	}
	if !p.Codec.Valid() {
		return &codec.Error{Op: "create", Driver: driver.String(), Err: codec.ErrUnsupported, Property: "codec", Code: int64(p.Codec)}
	}
	return nil
}

// FrameInterval returns the nominal spacing between frames in milliseconds.
func (p Params) FrameInterval() int64 {
	if p.Rate.Framerate <= 0 {
		return 0
	}
	return int64(1000 / p.Rate.Framerate)
}
