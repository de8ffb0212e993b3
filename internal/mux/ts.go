// Package mux writes encoded packets into MPEG-TS and reads them back.
package mux

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

// VideoPID is the elementary stream PID of the video track.
const VideoPID = 0x0100

// clockRate is the MPEG-TS timestamp rate.
const clockRate = 90

// Writer muxes the packets of one encode session into an MPEG-TS stream.
type Writer struct {
	w      io.Writer
	kind   codec.Kind
	logger *slog.Logger

	mu          sync.Mutex
	muxer       *mpegts.Writer
	track       *mpegts.Track
	params      paramSets
	initialized bool
	written     int
	keyframes   int
}

// NewWriter returns a writer for a stream of codec k.
func NewWriter(w io.Writer, k codec.Kind, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		w:      w,
		kind:   k,
		logger: logger,
		params: paramSets{kind: k},
	}
}

func (m *Writer) initialize() error {
	if m.initialized {
		return nil
	}
	var c mpegts.Codec = &mpegts.CodecH264{}
	if m.kind == codec.HEVC {
		c = &mpegts.CodecH265{}
	}
	m.track = &mpegts.Track{PID: VideoPID, Codec: c}
	m.muxer = &mpegts.Writer{W: m.w, Tracks: []*mpegts.Track{m.track}}
	if err := m.muxer.Initialize(); err != nil {
		return fmt.Errorf("initializing mpegts writer: %w", err)
	}
	m.initialized = true
	m.logger.Debug("mpeg-ts writer initialized", slog.String("codec", m.kind.String()))
	return nil
}

// WritePacket writes one Annex-B access unit. Packet timestamps are in
// milliseconds.
func (m *Writer) WritePacket(pkt codec.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.initialize(); err != nil {
		return err
	}

	var au h264.AnnexB
	if err := au.Unmarshal(pkt.Data); err != nil {
		return fmt.Errorf("splitting access unit: %w", err)
	}
	if len(au) == 0 {
		return nil
	}

	m.params.remember(au)
	if pkt.Keyframe {
		au = m.params.prepend(au)
		m.keyframes++
	}

	pts, dts := pkt.PTS*clockRate, pkt.DTS*clockRate
	var err error
	if m.kind == codec.HEVC {
		err = m.muxer.WriteH265(m.track, pts, dts, au)
	} else {
		err = m.muxer.WriteH264(m.track, pts, dts, au)
	}
	if err != nil {
		return fmt.Errorf("writing access unit: %w", err)
	}
	m.written++
	return nil
}

// Written returns the number of access units written and how many of them
// were keyframes.
func (m *Writer) Written() (packets, keyframes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written, m.keyframes
}
