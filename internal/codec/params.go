package codec

import "fmt"

// MaxGOP is the upper bound for a GOP length. Non-positive or larger values
// are replaced by it, which backends treat as "no periodic keyframes".
const MaxGOP = 0x7FFFFFFF

// Large-frame threshold. Frames strictly larger in both dimensions select the
// high profile/level and high tier.
const (
	largeWidth  = 1920
	largeHeight = 1080
)

// Geometry is the frame size of a session.
type Geometry struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Validate checks both dimensions are positive.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return &Error{Op: "validate", Err: ErrConfigRejected, Property: "geometry", Detail: g.String()}
	}
	return nil
}

// Even reports whether both dimensions are even, which every encoder requires.
func (g Geometry) Even() bool {
	return g.Width%2 == 0 && g.Height%2 == 0
}

// Large reports whether the frame exceeds 1920x1080 in both dimensions.
func (g Geometry) Large() bool {
	return g.Width > largeWidth && g.Height > largeHeight
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.Width, g.Height)
}

// RateControl holds the rate parameters of an encode session. Bitrate and
// framerate may change after creation; GOP may not.
type RateControl struct {
	BitrateKbps int `json:"kbitrate" yaml:"kbitrate"`
	Framerate   int `json:"framerate" yaml:"framerate"`
	GOP         int `json:"gop" yaml:"gop"`
}

// ClampGOP replaces non-positive or over-max values with MaxGOP.
func ClampGOP(gop int) int {
	if gop <= 0 || gop > MaxGOP {
		return MaxGOP
	}
	return gop
}

// Normalized returns a copy with the GOP clamped.
func (r RateControl) Normalized() RateControl {
	r.GOP = ClampGOP(r.GOP)
	return r
}

// BitsPerSecond returns the target bitrate in bits per second.
func (r RateControl) BitsPerSecond() int64 {
	return int64(r.BitrateKbps) * 1000
}

// Validate checks bitrate and framerate are positive.
func (r RateControl) Validate() error {
	if r.BitrateKbps <= 0 {
		return &Error{Op: "validate", Err: ErrConfigRejected, Property: "bitrate", Code: int64(r.BitrateKbps)}
	}
	if r.Framerate <= 0 {
		return &Error{Op: "validate", Err: ErrConfigRejected, Property: "framerate", Code: int64(r.Framerate)}
	}
	return nil
}
