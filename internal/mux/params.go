package mux

import (
	"bytes"
	"slices"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

// paramSets remembers the most recent parameter sets of a stream so they
// can be repeated in front of keyframes that arrive without them.
type paramSets struct {
	kind codec.Kind
	vps  []byte
	sps  []byte
	pps  []byte
}

// kindOf classifies a NAL unit as "vps", "sps", "pps" or "".
func (p *paramSets) kindOf(nalu []byte) string {
	if len(nalu) == 0 {
		return ""
	}
	if p.kind == codec.HEVC {
		switch h265.NALUType((nalu[0] >> 1) & 0x3f) {
		case h265.NALUType_VPS_NUT:
			return "vps"
		case h265.NALUType_SPS_NUT:
			return "sps"
		case h265.NALUType_PPS_NUT:
			return "pps"
		}
		return ""
	}
	switch h264.NALUType(nalu[0] & 0x1f) {
	case h264.NALUTypeSPS:
		return "sps"
	case h264.NALUTypePPS:
		return "pps"
	}
	return ""
}

// remember stores any parameter sets found in au.
func (p *paramSets) remember(au [][]byte) {
	for _, nalu := range au {
		var dst *[]byte
		switch p.kindOf(nalu) {
		case "vps":
			dst = &p.vps
		case "sps":
			dst = &p.sps
		case "pps":
			dst = &p.pps
		default:
			continue
		}
		if !bytes.Equal(*dst, nalu) {
			*dst = slices.Clone(nalu)
		}
	}
}

func (p *paramSets) complete() bool {
	if p.kind == codec.HEVC && p.vps == nil {
		return false
	}
	return p.sps != nil && p.pps != nil
}

// prepend returns au with the stored parameter sets in front, unless au
// already carries an SPS.
func (p *paramSets) prepend(au [][]byte) [][]byte {
	if !p.complete() {
		return au
	}
	for _, nalu := range au {
		if p.kindOf(nalu) == "sps" {
			return au
		}
	}
	out := make([][]byte, 0, len(au)+3)
	if p.kind == codec.HEVC {
		out = append(out, p.vps)
	}
	out = append(out, p.sps, p.pps)
	return append(out, au...)
}

// IsKeyframe reports whether an Annex-B access unit is a random access
// point for k.
func IsKeyframe(k codec.Kind, data []byte) bool {
	var au h264.AnnexB
	if err := au.Unmarshal(data); err != nil {
		return false
	}
	if k == codec.HEVC {
		return h265.IsRandomAccess(au)
	}
	return h264.IsRandomAccess(au)
}
