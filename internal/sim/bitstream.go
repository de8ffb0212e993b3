package sim

import (
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

// Parameter set and slice headers for the generated streams.
var (
	h264SPS    = []byte{0x67, 0x64, 0x00, 0x28, 0xac, 0xd9, 0x40, 0x78}
	h264PPS    = []byte{0x68, 0xeb, 0xe3, 0xcb, 0x22, 0xc0}
	h264IDR    = []byte{0x65, 0x88, 0x84}
	h264NonIDR = []byte{0x41, 0x9a, 0x02}

	h265VPS   = []byte{0x40, 0x01, 0x0c, 0x01, 0xff, 0xff}
	h265SPS   = []byte{0x42, 0x01, 0x01, 0x01, 0x60, 0x90}
	h265PPS   = []byte{0x44, 0x01, 0xc1, 0x72, 0xb4}
	h265IDR   = []byte{0x26, 0x01, 0xaf, 0x06}
	h265Trail = []byte{0x02, 0x01, 0xd0, 0x09}
)

// frameSize returns the payload size of one frame at the given rate.
// Keyframes are four times larger.
func frameSize(rate codec.RateControl, key bool) int {
	fps := rate.Framerate
	if fps <= 0 {
		fps = 30
	}
	n := int(rate.BitsPerSecond() / 8 / int64(fps))
	if key {
		n *= 4
	}
	if n < 64 {
		n = 64
	}
	return n
}

func slice(header []byte, size int, seq int) []byte {
	out := make([]byte, size)
	copy(out, header)
	for i := len(header); i < size; i++ {
		// Avoid emulating start codes in the payload.
		out[i] = byte(0x80 | (seq+i)&0x7f)
	}
	return out
}

// AccessUnit builds one access unit. Keyframes carry the parameter sets.
func AccessUnit(k codec.Kind, key bool, size int, seq int) [][]byte {
	if k == codec.HEVC {
		if key {
			return [][]byte{h265VPS, h265SPS, h265PPS, slice(h265IDR, size, seq)}
		}
		return [][]byte{slice(h265Trail, size, seq)}
	}
	if key {
		return [][]byte{h264SPS, h264PPS, slice(h264IDR, size, seq)}
	}
	return [][]byte{slice(h264NonIDR, size, seq)}
}

// Frame builds an Annex-B encoded access unit.
func Frame(k codec.Kind, key bool, size int, seq int) []byte {
	b, err := h264.AnnexB(AccessUnit(k, key, size, seq)).Marshal()
	if err != nil {
		panic(err)
	}
	return b
}

// SampleStream returns n Annex-B access units, the first a keyframe, as
// one byte stream.
func SampleStream(k codec.Kind, n int) []byte {
	var out []byte
	for i := 0; i < n; i++ {
		out = append(out, Frame(k, i == 0, 256, i)...)
	}
	return out
}

// parsed is what the simulated decoders extract from a chunk.
type parsed struct {
	header bool // contains a sequence parameter set
	slices int  // number of picture slices
	key    bool
}

func parse(k codec.Kind, data []byte) parsed {
	var au h264.AnnexB
	if err := au.Unmarshal(data); err != nil {
		return parsed{}
	}
	var p parsed
	for _, nalu := range au {
		if len(nalu) == 0 {
			continue
		}
		if k == codec.HEVC {
			switch h265.NALUType((nalu[0] >> 1) & 0x3f) {
			case h265.NALUType_SPS_NUT:
				p.header = true
			case h265.NALUType_VPS_NUT, h265.NALUType_PPS_NUT:
			default:
				p.slices++
			}
			continue
		}
		switch h264.NALUType(nalu[0] & 0x1f) {
		case h264.NALUTypeSPS:
			p.header = true
		case h264.NALUTypePPS:
		default:
			p.slices++
		}
	}
	if k == codec.HEVC {
		p.key = h265.IsRandomAccess(au)
	} else {
		p.key = h264.IsRandomAccess(au)
	}
	return p
}

// encoderCore is the codec-independent part of a simulated encoder.
type encoderCore struct {
	kind      codec.Kind
	rate      codec.RateControl
	faults    Faults
	submitted int
	fullLeft  int
	outputs   int
	pending   []int64 // timestamps of accepted frames
}

func newEncoderCore(k codec.Kind, rate codec.RateControl, f Faults) *encoderCore {
	return &encoderCore{kind: k, rate: rate.Normalized(), faults: f, fullLeft: f.InputFull}
}

// submit returns false when the input queue is (simulated) full.
func (c *encoderCore) submit(ts int64) bool {
	if c.faults.Panic {
		panic("simulated driver crash")
	}
	if c.fullLeft > 0 {
		c.fullLeft--
		return false
	}
	c.submitted++
	c.pending = append(c.pending, ts)
	return true
}

// output pops the next encoded frame, if the pipeline has produced one.
func (c *encoderCore) output() (data []byte, ts int64, key bool, ok bool) {
	if len(c.pending) == 0 || c.submitted <= c.faults.Latency {
		return nil, 0, false, false
	}
	ts = c.pending[0]
	c.pending = c.pending[1:]
	idx := c.outputs
	c.outputs++
	key = idx%c.rate.GOP == 0
	if idx == 0 && c.faults.NoKeyframe {
		key = false
	}
	return Frame(c.kind, key, frameSize(c.rate, key), idx), ts, key, true
}

// discard drops one ready output, as a drain does.
func (c *encoderCore) discard() bool {
	_, _, _, ok := c.output()
	return ok
}
