package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct{ in, want int }{
		{-3, 1}, {0, 1}, {1, 1}, {2, 2}, {3, 4}, {4, 4}, {5, 8},
		{1000, 1024}, {1024, 1024}, {1025, 2048}, {200000, 262144},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextPowerOfTwo(tt.in), "NextPowerOfTwo(%d)", tt.in)
	}
}

func TestPacketBuffer_Fill(t *testing.T) {
	t.Run("grows_to_next_power_of_two", func(t *testing.T) {
		var b PacketBuffer
		out := b.Fill(make([]byte, 1500))
		assert.Len(t, out, 1500)
		assert.Equal(t, 2048, b.Cap())
		assert.Equal(t, 1, b.Growths())
	})

	t.Run("never_shrinks", func(t *testing.T) {
		var b PacketBuffer
		sizes := []int{5000, 100, 3000, 9000, 10, 8192}
		largest := 0
		for _, n := range sizes {
			prev := b.Cap()
			b.Fill(make([]byte, n))
			if n > largest {
				largest = n
			}
			assert.GreaterOrEqual(t, b.Cap(), prev)
			assert.GreaterOrEqual(t, b.Cap(), largest)
			assert.Equal(t, NextPowerOfTwo(largest), b.Cap())
		}
		assert.Equal(t, 2, b.Growths())
	})

	t.Run("reuses_storage_at_steady_state", func(t *testing.T) {
		var b PacketBuffer
		first := b.Fill([]byte{1, 2, 3})
		second := b.Fill([]byte{9, 8})
		require.Len(t, second, 2)
		assert.Equal(t, byte(9), first[0])
		assert.Equal(t, 1, b.Growths())
	})
}

func TestPacket_Clone(t *testing.T) {
	var b PacketBuffer
	p := Packet{Data: b.Fill([]byte{1, 2, 3}), PTS: 33, Keyframe: true}
	c := p.Clone()
	b.Fill([]byte{7, 7, 7})

	assert.Equal(t, []byte{1, 2, 3}, c.Data)
	assert.Equal(t, 3, c.Size())
	assert.True(t, c.Keyframe)
	assert.Equal(t, int64(33), c.PTS)
}
