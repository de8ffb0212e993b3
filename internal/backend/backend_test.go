package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

func validParams() Params {
	return Params{
		Device:   1,
		Codec:    codec.H264,
		Format:   codec.BGRA,
		Geometry: codec.Geometry{Width: 1280, Height: 720},
		Rate:     codec.RateControl{BitrateKbps: 4000, Framerate: 30, GOP: 60},
	}
}

func TestParams_WithDefaults(t *testing.T) {
	p := Params{Rate: codec.RateControl{GOP: -1}}.WithDefaults()
	assert.NotNil(t, p.Logger)
	assert.IsType(t, SystemClock{}, p.Clock)
	assert.Equal(t, DefaultLimits(), p.Limits)
	assert.Equal(t, codec.MaxGOP, p.Rate.GOP)

	custom := Params{Limits: Limits{DrainAttempts: 3}}.WithDefaults()
	assert.Equal(t, 3, custom.Limits.DrainAttempts)
	assert.Equal(t, DefaultLimits().BusyAttempts, custom.Limits.BusyAttempts)
}

func TestParams_ValidateEncode(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		want   error
	}{
		{"valid", func(*Params) {}, nil},
		{"no_device", func(p *Params) { p.Device = 0 }, codec.ErrConfigRejected},
		{"bad_codec", func(p *Params) { p.Codec = 2 }, codec.ErrUnsupported},
		{"bad_format", func(p *Params) { p.Format = 9 }, codec.ErrConfigRejected},
		{"zero_width", func(p *Params) { p.Geometry.Width = 0 }, codec.ErrConfigRejected},
		{"odd_height", func(p *Params) { p.Geometry.Height = 721 }, codec.ErrConfigRejected},
		{"zero_bitrate", func(p *Params) { p.Rate.BitrateKbps = 0 }, codec.ErrConfigRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			err := p.ValidateEncode(codec.DriverAMF)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParams_ValidateDecode(t *testing.T) {
	p := validParams()
	p.Geometry = codec.Geometry{}
	assert.NoError(t, p.ValidateDecode(codec.DriverNV))

	p.Device = 0
	assert.ErrorIs(t, p.ValidateDecode(codec.DriverNV), codec.ErrConfigRejected)
}

func TestParams_FrameInterval(t *testing.T) {
	assert.Equal(t, int64(33), validParams().FrameInterval())
	assert.Zero(t, Params{}.FrameInterval())
}
