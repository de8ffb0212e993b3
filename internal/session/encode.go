package session

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

// EncodedFrame is a compressed unit handed to the caller. It owns its bytes
// and must be released exactly once.
type EncodedFrame struct {
	Data     []byte
	PTS      int64
	DTS      int64
	Keyframe bool

	released atomic.Bool
}

// Size returns the payload length in bytes.
func (f *EncodedFrame) Size() int {
	return len(f.Data)
}

// Release gives the frame back. A second call returns codec.ErrClosed.
func (f *EncodedFrame) Release() error {
	if !f.released.CompareAndSwap(false, true) {
		return fmt.Errorf("encoded frame: %w", codec.ErrClosed)
	}
	f.Data = nil
	return nil
}

// EncodeSession is one encoder bound to one backend.
type EncodeSession struct {
	id     string
	driver codec.Driver
	enc    backend.Encoder
	log    *slog.Logger
	mgr    *Manager

	mu     sync.Mutex
	params backend.Params
	closed bool
}

// ID returns the session identity. It never changes, including across
// reconfiguration.
func (s *EncodeSession) ID() string { return s.id }

// Driver returns the backend family serving this session.
func (s *EncodeSession) Driver() codec.Driver { return s.driver }

// Params returns the current session parameters.
func (s *EncodeSession) Params() backend.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Encode submits tex and returns at most one frame. When the pipeline has no
// output yet the error wraps codec.ErrNeedMoreInput and the frame is nil.
func (s *EncodeSession) Encode(tex backend.Texture, timestampMs int64) (*EncodedFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, &codec.Error{Op: "encode", Driver: s.driver.String(), Err: codec.ErrClosed}
	}

	var pkt codec.Packet
	err := guard(s.driver, "encode", func() error {
		var eerr error
		pkt, eerr = s.enc.Encode(tex, timestampMs)
		return eerr
	})
	if err != nil {
		if !codec.IsRetry(err) {
			s.log.Warn("encode failed", slog.Int64("pts", timestampMs), slog.String("error", err.Error()))
		}
		return nil, err
	}

	owned := pkt.Clone()
	return &EncodedFrame{Data: owned.Data, PTS: owned.PTS, DTS: owned.DTS, Keyframe: owned.Keyframe}, nil
}

// SetBitrate changes the target bitrate on the live encoder. On rejection
// the session keeps its previous rate and stays usable.
func (s *EncodeSession) SetBitrate(kbps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &codec.Error{Op: "set bitrate", Driver: s.driver.String(), Err: codec.ErrClosed}
	}
	if err := guard(s.driver, "set bitrate", func() error { return s.enc.SetBitrate(kbps) }); err != nil {
		s.log.Warn("bitrate change rejected", slog.Int("kbps", kbps), slog.String("error", err.Error()))
		return err
	}
	s.params.Rate.BitrateKbps = kbps
	return nil
}

// SetFramerate changes the framerate on the live encoder.
func (s *EncodeSession) SetFramerate(fps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &codec.Error{Op: "set framerate", Driver: s.driver.String(), Err: codec.ErrClosed}
	}
	if err := guard(s.driver, "set framerate", func() error { return s.enc.SetFramerate(fps) }); err != nil {
		s.log.Warn("framerate change rejected", slog.Int("fps", fps), slog.String("error", err.Error()))
		return err
	}
	s.params.Rate.Framerate = fps
	return nil
}

// SelfTest encodes tex through the normal path and reports whether the first
// packet is a keyframe within budget.
func (s *EncodeSession) SelfTest(tex backend.Texture, budget time.Duration) (backend.SelfTestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return backend.SelfTestReport{}, &codec.Error{Op: "self-test", Driver: s.driver.String(), Err: codec.ErrClosed}
	}

	var report backend.SelfTestReport
	err := guard(s.driver, "self-test", func() error {
		var terr error
		report, terr = backend.SelfTest(s.enc, tex, backend.SelfTestOptions{
			Budget:        budget,
			FrameInterval: s.params.FrameInterval(),
			Clock:         s.params.Clock,
		})
		return terr
	})
	return report, err
}

// Destroy releases the backend session. It is idempotent.
func (s *EncodeSession) Destroy() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := guard(s.driver, "destroy", s.enc.Destroy)
	s.mgr.forgetEncoder(s)
	if err != nil {
		s.log.Warn("encoder destroy reported errors", slog.String("error", err.Error()))
		return err
	}
	s.log.Debug("encoder destroyed")
	return nil
}
