package sim

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/device"
)

// Faults configures what a simulated adapter does wrong.
type Faults struct {
	// Unavailable makes the vendor runtime refuse the device.
	Unavailable bool
	// FailAcquire names the acquisition step that fails, e.g. "context",
	// "converter", "encoder", "decoder", "bitstream", "parser".
	FailAcquire string
	// Reject lists property or parameter names the driver refuses. "init"
	// rejects encoder initialisation as a whole.
	Reject []string
	// RejectLive lists properties a running encoder refuses to change.
	RejectLive []string
	// InputFull answers this many leading submissions with queue full.
	InputFull int
	// MoreSurface answers this many leading MFX encode submissions with
	// MFX_ERR_MORE_SURFACE.
	MoreSurface int
	// Latency is the number of leading submissions that yield no output.
	Latency int
	// NoKeyframe makes the first packet a predicted frame.
	NoKeyframe bool
	// Panic makes encode calls panic.
	Panic bool
	// EncodeDelay advances the clock on every encode submission.
	EncodeDelay time.Duration
	// ResolutionChangeAt reports a stream resolution change on this decode
	// chunk (1-based).
	ResolutionChangeAt int
	// RefMissingAt flags the frames of this decode chunk (1-based) as
	// referencing a missing picture.
	RefMissingAt int
	// OpenFails makes the device provider refuse to open the adapter.
	OpenFails bool
}

func (f Faults) rejects(name string) bool {
	return slices.Contains(f.Reject, name)
}

func (f Faults) rejectsLive(name string) bool {
	return slices.Contains(f.RejectLive, name)
}

// AdapterSpec describes one simulated GPU.
type AdapterSpec struct {
	LUID        int64
	Vendor      codec.Vendor
	DeviceID    uint32
	Description string
	// Codecs lists the codecs the adapter encodes and decodes. Empty means
	// both.
	Codecs []codec.Kind
	// DecodeGeometry is the coded size reported for decoded streams.
	DecodeGeometry codec.Geometry
	Faults         Faults
}

func (s AdapterSpec) supports(k codec.Kind) bool {
	return len(s.Codecs) == 0 || slices.Contains(s.Codecs, k)
}

func (s AdapterSpec) decodeGeometry(changed bool) codec.Geometry {
	g := s.DecodeGeometry
	if g.Width == 0 || g.Height == 0 {
		g = codec.Geometry{Width: 1280, Height: 720}
	}
	if changed {
		g = codec.Geometry{Width: g.Width * 3 / 2, Height: g.Height * 3 / 2}
	}
	return g
}

type openDevice struct {
	spec  *AdapterSpec
	token *token
}

// Machine is a simulated host with a set of adapters and the three vendor
// runtimes.
type Machine struct {
	mu       sync.Mutex
	clock    *Clock
	ledger   *Ledger
	adapters []*AdapterSpec
	devices  map[uintptr]*openDevice
	textures map[backend.Texture]*token
	next     uintptr
	missing  map[codec.Driver]bool
}

// NewMachine returns a machine with the given adapters.
func NewMachine(adapters ...AdapterSpec) *Machine {
	m := &Machine{
		clock:    NewClock(),
		ledger:   newLedger(),
		devices:  make(map[uintptr]*openDevice),
		textures: make(map[backend.Texture]*token),
		next:     0x1000,
		missing:  make(map[codec.Driver]bool),
	}
	for i := range adapters {
		a := adapters[i]
		if a.Description == "" {
			a.Description = fmt.Sprintf("Simulated %s GPU %d", a.Vendor, a.LUID)
		}
		m.adapters = append(m.adapters, &a)
	}
	return m
}

// DefaultMachine has one adapter per vendor.
func DefaultMachine() *Machine {
	return NewMachine(
		AdapterSpec{LUID: 1, Vendor: codec.VendorNVIDIA, DeviceID: 0x2204, Description: "Simulated NVIDIA RTX"},
		AdapterSpec{LUID: 2, Vendor: codec.VendorAMD, DeviceID: 0x73bf, Description: "Simulated AMD Radeon"},
		AdapterSpec{LUID: 3, Vendor: codec.VendorIntel, DeviceID: 0x4680, Description: "Simulated Intel Arc"},
	)
}

// Clock returns the machine clock.
func (m *Machine) Clock() *Clock { return m.clock }

// Ledger returns the acquisition ledger.
func (m *Machine) Ledger() *Ledger { return m.ledger }

// SetFaults replaces the faults of adapter luid.
func (m *Machine) SetFaults(luid int64, f Faults) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.adapters {
		if a.LUID == luid {
			a.Faults = f
		}
	}
}

// RemoveRuntime makes driver d report its runtime as missing.
func (m *Machine) RemoveRuntime(d codec.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missing[d] = true
}

// HasRuntime reports whether the runtime for d is installed.
func (m *Machine) HasRuntime(d codec.Driver) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.missing[d]
}

// lookup returns the adapter behind an open device handle.
func (m *Machine) lookup(handle uintptr) (*AdapterSpec, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[handle]
	if !ok {
		return nil, false
	}
	return d.spec, true
}

func (m *Machine) handle() uintptr {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next += 0x10
	return m.next
}

// OpenAdapter opens the adapter with the given LUID through the simulated
// provider.
func (m *Machine) OpenAdapter(ctx context.Context, luid int64) (*device.Device, error) {
	p := m.Provider()
	adapters, err := p.Adapters(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range adapters {
		if a.LUID == luid {
			d, _ := codec.DriverForVendor(a.VendorID)
			return p.Open(ctx, a, device.OptionsFor(d))
		}
	}
	return nil, fmt.Errorf("adapter %d: %w", luid, device.ErrNotFound)
}

// Provider returns the simulated device provider.
func (m *Machine) Provider() device.Provider {
	return (*provider)(m)
}

type provider Machine

func (p *provider) m() *Machine { return (*Machine)(p) }

func (p *provider) Adapters(ctx context.Context) ([]device.Adapter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := p.m()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]device.Adapter, 0, len(m.adapters))
	for i, a := range m.adapters {
		out = append(out, device.Adapter{
			LUID:        a.LUID,
			VendorID:    a.Vendor,
			DeviceID:    a.DeviceID,
			Description: a.Description,
			Path:        fmt.Sprintf("sim:%d", i),
		})
	}
	return out, nil
}

func (p *provider) Open(ctx context.Context, a device.Adapter, opts device.OpenOptions) (*device.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := p.m()
	m.mu.Lock()
	var spec *AdapterSpec
	for _, s := range m.adapters {
		if s.LUID == a.LUID {
			spec = s
		}
	}
	m.mu.Unlock()
	if spec == nil {
		return nil, fmt.Errorf("adapter %d: %w", a.LUID, device.ErrNotFound)
	}
	if spec.Faults.OpenFails {
		return nil, &codec.Error{Op: "open device", Err: codec.ErrUnavailable, Detail: "simulated open failure"}
	}
	h := m.handle()
	m.mu.Lock()
	m.devices[h] = &openDevice{spec: spec, token: m.ledger.acquire("device")}
	m.mu.Unlock()
	return &device.Device{Adapter: a, Handle: h, Options: opts}, nil
}

func (p *provider) Close(d *device.Device) error {
	if d == nil || d.Handle == 0 {
		return nil
	}
	m := p.m()
	m.mu.Lock()
	od, ok := m.devices[d.Handle]
	delete(m.devices, d.Handle)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("device %#x: %w", d.Handle, device.ErrNotFound)
	}
	od.token.release()
	d.Handle = 0
	return nil
}

func (p *provider) AllocateSurface(d *device.Device, g codec.Geometry, f codec.PixelFormat) (backend.Texture, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	if err := g.Validate(); err != nil {
		return 0, err
	}
	m := p.m()
	if _, ok := m.lookup(d.Handle); !ok {
		return 0, fmt.Errorf("device %#x: %w", d.Handle, device.ErrNotFound)
	}
	t := backend.Texture(m.handle())
	m.mu.Lock()
	m.textures[t] = m.ledger.acquire("texture")
	m.mu.Unlock()
	return t, nil
}

func (p *provider) FreeSurface(_ *device.Device, t backend.Texture) error {
	m := p.m()
	m.mu.Lock()
	tok, ok := m.textures[t]
	delete(m.textures, t)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("texture %#x not allocated", uintptr(t))
	}
	tok.release()
	return nil
}
