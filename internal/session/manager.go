package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/observability"
)

// Options configure a Manager. Zero values fall back to backend defaults.
type Options struct {
	Logger  *slog.Logger
	Clock   backend.Clock
	Limits  backend.Limits
	Tracker *Tracker
}

// Manager creates sessions and keeps track of the live ones.
type Manager struct {
	registry *Registry
	logger   *slog.Logger
	clock    backend.Clock
	limits   backend.Limits
	tracker  *Tracker

	mu       sync.Mutex
	encoders map[string]*EncodeSession
	decoders map[string]*DecodeSession
}

// NewManager returns a manager dispatching to the factories in r.
func NewManager(r *Registry, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracker == nil {
		opts.Tracker = NewTracker(0)
	}
	return &Manager{
		registry: r,
		logger:   observability.WithComponent(opts.Logger, "session"),
		clock:    opts.Clock,
		limits:   opts.Limits,
		tracker:  opts.Tracker,
		encoders: make(map[string]*EncodeSession),
		decoders: make(map[string]*DecodeSession),
	}
}

// Tracker returns the per-adapter session tracker.
func (m *Manager) Tracker() *Tracker {
	return m.tracker
}

// prepare resolves the driver for p and fills the manager defaults.
func (m *Manager) prepare(p backend.Params, op, id string) (codec.Driver, backend.Params, error) {
	d, ok := codec.DriverForVendor(p.Vendor)
	if !ok {
		return 0, p, &codec.Error{Op: op, Err: codec.ErrUnsupported, Property: "vendor", Detail: p.Vendor.String()}
	}
	if p.Clock == nil {
		p.Clock = m.clock
	}
	if p.Limits == (backend.Limits{}) {
		p.Limits = m.limits
	}
	if p.Logger == nil {
		p.Logger = m.logger
	}
	p.Logger = observability.WithSession(observability.WithAdapter(observability.WithDriver(p.Logger, d.String()), p.LUID), id)
	return d, p.WithDefaults(), nil
}

// CreateEncoder opens an encode session on the backend that drives
// p.Vendor. Every failure unwinds whatever the backend acquired.
func (m *Manager) CreateEncoder(p backend.Params) (*EncodeSession, error) {
	id := uuid.NewString()
	d, p, err := m.prepare(p, "create encoder", id)
	if err != nil {
		return nil, err
	}
	factory, err := m.registry.Encoder(d)
	if err != nil {
		return nil, err
	}
	if !m.tracker.AcquireEncode(p.LUID) {
		return nil, &codec.Error{Op: "create encoder", Driver: d.String(), Err: codec.ErrUnavailable, Detail: fmt.Sprintf("session limit reached on adapter %d", p.LUID)}
	}

	var enc backend.Encoder
	err = guard(d, "create encoder", func() error {
		var cerr error
		enc, cerr = factory.NewEncoder(p)
		return cerr
	})
	if err != nil {
		m.tracker.ReleaseEncode(p.LUID)
		return nil, err
	}

	s := &EncodeSession{id: id, driver: d, params: p, enc: enc, log: p.Logger, mgr: m}
	m.mu.Lock()
	m.encoders[id] = s
	m.mu.Unlock()
	s.log.Debug("encoder created",
		slog.String("codec", p.Codec.String()),
		slog.String("geometry", p.Geometry.String()),
		slog.Int("kbps", p.Rate.BitrateKbps),
		slog.Int("fps", p.Rate.Framerate),
		slog.Int("gop", p.Rate.GOP),
	)
	return s, nil
}

// CreateDecoder opens a decode session on the backend that drives p.Vendor.
func (m *Manager) CreateDecoder(p backend.Params) (*DecodeSession, error) {
	id := uuid.NewString()
	d, p, err := m.prepare(p, "create decoder", id)
	if err != nil {
		return nil, err
	}
	factory, err := m.registry.Decoder(d)
	if err != nil {
		return nil, err
	}
	if !m.tracker.AcquireDecode(p.LUID) {
		return nil, &codec.Error{Op: "create decoder", Driver: d.String(), Err: codec.ErrUnavailable, Detail: fmt.Sprintf("session limit reached on adapter %d", p.LUID)}
	}

	var dec backend.Decoder
	err = guard(d, "create decoder", func() error {
		var cerr error
		dec, cerr = factory.NewDecoder(p)
		return cerr
	})
	if err != nil {
		m.tracker.ReleaseDecode(p.LUID)
		return nil, err
	}

	s := &DecodeSession{id: id, driver: d, params: p, dec: dec, log: p.Logger, mgr: m}
	m.mu.Lock()
	m.decoders[id] = s
	m.mu.Unlock()
	s.log.Debug("decoder created", slog.String("codec", p.Codec.String()))
	return s, nil
}

// Encoder looks up a live encode session.
func (m *Manager) Encoder(id string) (*EncodeSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.encoders[id]
	return s, ok
}

// Decoder looks up a live decode session.
func (m *Manager) Decoder(id string) (*DecodeSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.decoders[id]
	return s, ok
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.encoders) + len(m.decoders)
}

// Close destroys every live session.
func (m *Manager) Close() error {
	m.mu.Lock()
	encs := make([]*EncodeSession, 0, len(m.encoders))
	for _, s := range m.encoders {
		encs = append(encs, s)
	}
	decs := make([]*DecodeSession, 0, len(m.decoders))
	for _, s := range m.decoders {
		decs = append(decs, s)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range encs {
		if err := s.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range decs {
		if err := s.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) forgetEncoder(s *EncodeSession) {
	m.mu.Lock()
	delete(m.encoders, s.id)
	m.mu.Unlock()
	m.tracker.ReleaseEncode(s.params.LUID)
}

func (m *Manager) forgetDecoder(s *DecodeSession) {
	m.mu.Lock()
	delete(m.decoders, s.id)
	m.mu.Unlock()
	m.tracker.ReleaseDecode(s.params.LUID)
}
