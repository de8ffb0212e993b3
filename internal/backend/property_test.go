package backend

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

func TestApplyProperties(t *testing.T) {
	rejecting := func(names ...string) (PropertySetter, *[]string) {
		var applied []string
		return func(name string, _ any) (int64, bool) {
			for _, n := range names {
				if n == name {
					return 4, false
				}
			}
			applied = append(applied, name)
			return 0, true
		}, &applied
	}

	t.Run("optional_rejection_is_logged_and_skipped", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, nil))
		set, applied := rejecting("ColorBitDepth")

		skipped, err := ApplyProperties(log, codec.DriverAMF, "init", set, []Property{
			Required("FrameSize", 1),
			Optional("ColorBitDepth", 8),
			Required("TargetBitrate", int64(4000000)),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"ColorBitDepth"}, skipped)
		assert.Equal(t, []string{"FrameSize", "TargetBitrate"}, *applied)
		assert.Contains(t, buf.String(), `"property":"ColorBitDepth"`)
		assert.Contains(t, buf.String(), `"level":"WARN"`)
	})

	t.Run("required_rejection_stops", func(t *testing.T) {
		set, applied := rejecting("FrameRate")
		_, err := ApplyProperties(nil, codec.DriverAMF, "init", set, []Property{
			Required("FrameSize", 1),
			Required("FrameRate", 30),
			Required("IDRPeriod", 60),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, codec.ErrConfigRejected)

		var cerr *codec.Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "FrameRate", cerr.Property)
		assert.Equal(t, int64(4), cerr.Code)
		assert.Equal(t, []string{"FrameSize"}, *applied)
	})
}
