package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/asticode/go-astits"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

// Summary describes the video stream of an MPEG-TS file.
type Summary struct {
	Codec     codec.Kind    `json:"codec" yaml:"codec"`
	PID       uint16        `json:"pid" yaml:"pid"`
	Packets   int           `json:"packets" yaml:"packets"`
	Keyframes int           `json:"keyframes" yaml:"keyframes"`
	Bytes     int           `json:"bytes" yaml:"bytes"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

func streamKind(t astits.StreamType) (codec.Kind, bool) {
	switch t {
	case astits.StreamTypeH264Video:
		return codec.H264, true
	case astits.StreamTypeH265Video:
		return codec.HEVC, true
	}
	return 0, false
}

// Inspect demuxes r and summarises its first video stream.
func Inspect(ctx context.Context, r io.Reader) (Summary, error) {
	dmx := astits.NewDemuxer(ctx, r)

	var (
		s         Summary
		found     bool
		first     int64
		last      int64
		sawPTS    bool
		keyframes int
	)
	for {
		d, err := dmx.NextData()
		if errors.Is(err, astits.ErrNoMorePackets) {
			break
		}
		if err != nil {
			return s, fmt.Errorf("demuxing: %w", err)
		}

		if d.PMT != nil && !found {
			for _, es := range d.PMT.ElementaryStreams {
				if k, ok := streamKind(es.StreamType); ok {
					s.Codec, s.PID, found = k, es.ElementaryPID, true
					break
				}
			}
			continue
		}
		if d.PES == nil || !found || d.PID != s.PID {
			continue
		}

		s.Packets++
		s.Bytes += len(d.PES.Data)
		if IsKeyframe(s.Codec, d.PES.Data) {
			keyframes++
		}
		if h := d.PES.Header; h != nil && h.OptionalHeader != nil && h.OptionalHeader.PTS != nil {
			pts := h.OptionalHeader.PTS.Base
			if !sawPTS || pts < first {
				first = pts
			}
			if !sawPTS || pts > last {
				last = pts
			}
			sawPTS = true
		}
	}
	if !found {
		return s, fmt.Errorf("no video stream found: %w", codec.ErrUnsupported)
	}
	s.Keyframes = keyframes
	if sawPTS {
		s.Duration = time.Duration(last-first) * time.Millisecond / clockRate
	}
	return s, nil
}
