package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProbeRun_Validate(t *testing.T) {
	tests := []struct {
		name    string
		run     ProbeRun
		wantErr error
	}{
		{
			name: "valid",
			run: ProbeRun{Signature: "00000000000000ff", Features: []ProbeFeature{
				{Direction: DirectionEncode, Driver: "nv", Codec: "h264", LUID: 1},
				{Direction: DirectionDecode, Driver: "mfx", Codec: "hevc", LUID: 3},
			}},
		},
		{
			name:    "missing_signature",
			run:     ProbeRun{},
			wantErr: ErrSignatureRequired,
		},
		{
			name:    "bad_direction",
			run:     ProbeRun{Signature: "1", Features: []ProbeFeature{{Direction: "both", Driver: "nv", Codec: "h264"}}},
			wantErr: ErrInvalidDirection,
		},
		{
			name:    "bad_driver",
			run:     ProbeRun{Signature: "1", Features: []ProbeFeature{{Direction: DirectionEncode, Driver: "vaapi", Codec: "h264"}}},
			wantErr: ErrInvalidDriver,
		},
		{
			name:    "bad_codec",
			run:     ProbeRun{Signature: "1", Features: []ProbeFeature{{Direction: DirectionEncode, Driver: "amf", Codec: "av1"}}},
			wantErr: ErrInvalidCodec,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestProbeRun_Fresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := ProbeRun{Signature: "abc", StartedAt: now.Add(-2 * time.Hour)}

	assert.True(t, run.Fresh("abc", 3*time.Hour, now))
	assert.False(t, run.Fresh("abc", time.Hour, now))
	assert.False(t, run.Fresh("abd", 3*time.Hour, now))
	assert.True(t, run.Fresh("abc", 0, now))
}

func TestFormatSignature(t *testing.T) {
	assert.Equal(t, "00000000000000ff", FormatSignature(0xff))
	assert.Equal(t, "ffffffffffffffff", FormatSignature(^uint64(0)))
}

func TestExclusion_Validate(t *testing.T) {
	assert.NoError(t, (&Exclusion{LUID: 1, Codec: "hevc"}).Validate())
	assert.ErrorIs(t, (&Exclusion{LUID: 1, Codec: "vp9"}).Validate(), ErrInvalidCodec)
}
