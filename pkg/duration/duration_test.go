package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"standard", "1h30m", 90 * time.Minute, false},
		{"days", "7d", 7 * Day, false},
		{"weeks", "2w", 2 * Week, false},
		{"words", "3 days", 3 * Day, false},
		{"mixed", "1w2d12h", 9*Day + 12*time.Hour, false},
		{"negative", "-1d", -Day, false},
		{"milliseconds", "250ms", 250 * time.Millisecond, false},
		{"empty", "", 0, true},
		{"garbage", "soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0s", Format(0))
	assert.Equal(t, "1w", Format(Week))
	assert.Equal(t, "1w2d", Format(9*Day))
	assert.Equal(t, "1d12h0m0s", Format(36*time.Hour))
	assert.Equal(t, "-3d", Format(-3*Day))
	assert.Equal(t, "45m0s", Format(45*time.Minute))
}

func TestRoundTrip(t *testing.T) {
	for _, d := range []time.Duration{Day, 9 * Day, 36 * time.Hour, 90 * time.Minute} {
		got, err := Parse(Format(d))
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
}
