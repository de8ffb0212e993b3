package session

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

// DecodedFrame is a GPU picture handed to the caller. The texture belongs to
// the decoder and stays valid until the next Decode on the same session; the
// caller releases the frame exactly once.
type DecodedFrame struct {
	Texture backend.Texture
	Width   int
	Height  int
	Format  codec.PixelFormat

	released atomic.Bool
}

// Release gives the frame back. A second call returns codec.ErrClosed.
func (f *DecodedFrame) Release() error {
	if !f.released.CompareAndSwap(false, true) {
		return fmt.Errorf("decoded frame: %w", codec.ErrClosed)
	}
	f.Texture = 0
	return nil
}

// Decoded is the outcome of one Decode call.
type Decoded struct {
	Frames []*DecodedFrame
	// RefMissing reports a missing reference picture during this call only.
	RefMissing bool
}

// DecodeSession is one decoder bound to one backend.
type DecodeSession struct {
	id     string
	driver codec.Driver
	params backend.Params
	dec    backend.Decoder
	log    *slog.Logger
	mgr    *Manager

	mu     sync.Mutex
	closed bool
}

// ID returns the session identity.
func (s *DecodeSession) ID() string { return s.id }

// Driver returns the backend family serving this session.
func (s *DecodeSession) Driver() codec.Driver { return s.driver }

// Decode feeds one compressed chunk. An error wrapping
// codec.ErrNeedMoreInput means no picture is ready yet.
func (s *DecodeSession) Decode(data []byte) (*Decoded, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, &codec.Error{Op: "decode", Driver: s.driver.String(), Err: codec.ErrClosed}
	}

	var res codec.DecodeResult
	err := guard(s.driver, "decode", func() error {
		var derr error
		res, derr = s.dec.Decode(data)
		return derr
	})
	if err != nil {
		if !codec.IsRetry(err) {
			s.log.Warn("decode failed", slog.Int("bytes", len(data)), slog.String("error", err.Error()))
		}
		return nil, err
	}

	out := &Decoded{RefMissing: res.RefMissing, Frames: make([]*DecodedFrame, 0, len(res.Frames))}
	for _, f := range res.Frames {
		out.Frames = append(out.Frames, &DecodedFrame{
			Texture: backend.Texture(f.Texture),
			Width:   f.Width,
			Height:  f.Height,
			Format:  f.Format,
		})
	}
	if res.RefMissing {
		s.log.Debug("decoded picture references a missing frame")
	}
	return out, nil
}

// Destroy releases the backend session. It is idempotent.
func (s *DecodeSession) Destroy() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := guard(s.driver, "destroy", s.dec.Destroy)
	s.mgr.forgetDecoder(s)
	if err != nil {
		s.log.Warn("decoder destroy reported errors", slog.String("error", err.Error()))
		return err
	}
	return nil
}
