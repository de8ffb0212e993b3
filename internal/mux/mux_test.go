package mux

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/sim"
)

func bareKeyframe(t *testing.T, k codec.Kind) []byte {
	t.Helper()
	au := sim.AccessUnit(k, true, 300, 9)
	b, err := h264.AnnexB(au[len(au)-1:]).Marshal()
	require.NoError(t, err)
	return b
}

func TestWriter_RoundTrip(t *testing.T) {
	for _, k := range []codec.Kind{codec.H264, codec.HEVC} {
		t.Run(k.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(&buf, k, nil)

			for i := 0; i < 4; i++ {
				key := i == 0
				pkt := codec.Packet{Data: sim.Frame(k, key, 400, i), PTS: int64(i) * 33, DTS: int64(i) * 33, Keyframe: key}
				require.NoError(t, w.WritePacket(pkt))
			}
			require.NoError(t, w.WritePacket(codec.Packet{Data: bareKeyframe(t, k), PTS: 132, DTS: 132, Keyframe: true}))

			packets, keyframes := w.Written()
			assert.Equal(t, 5, packets)
			assert.Equal(t, 2, keyframes)

			s, err := Inspect(context.Background(), bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, k, s.Codec)
			assert.Equal(t, uint16(VideoPID), s.PID)
			assert.Equal(t, 5, s.Packets)
			assert.Equal(t, 2, s.Keyframes)
			assert.Equal(t, 132*time.Millisecond, s.Duration)
			assert.Positive(t, s.Bytes)
		})
	}
}

func TestWriter_EmptyPacketIsSkipped(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, codec.H264, nil)
	require.NoError(t, w.WritePacket(codec.Packet{}))
	packets, _ := w.Written()
	assert.Zero(t, packets)
}

func TestInspect_NoVideo(t *testing.T) {
	_, err := Inspect(context.Background(), bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestParamSets(t *testing.T) {
	t.Run("prepends_to_bare_keyframe", func(t *testing.T) {
		p := paramSets{kind: codec.H264}
		p.remember(sim.AccessUnit(codec.H264, true, 100, 0))

		bare := [][]byte{{0x65, 0x88, 0x84, 0x80}}
		out := p.prepend(bare)
		require.Len(t, out, 3)
		assert.Equal(t, "sps", p.kindOf(out[0]))
		assert.Equal(t, "pps", p.kindOf(out[1]))
	})

	t.Run("keeps_keyframe_with_sps", func(t *testing.T) {
		p := paramSets{kind: codec.HEVC}
		au := sim.AccessUnit(codec.HEVC, true, 100, 0)
		p.remember(au)
		assert.Equal(t, au, p.prepend(au))
	})

	t.Run("incomplete_sets_are_not_prepended", func(t *testing.T) {
		p := paramSets{kind: codec.HEVC}
		bare := [][]byte{{0x26, 0x01, 0xaf}}
		assert.Equal(t, bare, p.prepend(bare))
	})
}

func TestIsKeyframe(t *testing.T) {
	assert.True(t, IsKeyframe(codec.H264, sim.Frame(codec.H264, true, 100, 0)))
	assert.False(t, IsKeyframe(codec.H264, sim.Frame(codec.H264, false, 100, 1)))
	assert.True(t, IsKeyframe(codec.HEVC, sim.Frame(codec.HEVC, true, 100, 0)))
	assert.False(t, IsKeyframe(codec.HEVC, sim.Frame(codec.HEVC, false, 100, 1)))
}
