package sim

import (
	"github.com/jmylchreest/hwcodec/internal/backend/amf"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

// AMF returns the simulated AMF runtime.
func (m *Machine) AMF() amf.Runtime {
	return &amfRuntime{m: m}
}

type amfRuntime struct{ m *Machine }

func (r *amfRuntime) Init() (amf.Factory, amf.Result) {
	if !r.m.HasRuntime(codec.DriverAMF) {
		return nil, amf.NotFound
	}
	return &amfFactory{m: r.m, tok: r.m.ledger.acquire("factory")}, amf.OK
}

type amfFactory struct {
	m   *Machine
	tok *token
}

func (f *amfFactory) CreateContext() (amf.Context, amf.Result) {
	return &amfContext{m: f.m, tok: f.m.ledger.acquire("context")}, amf.OK
}

func (f *amfFactory) Release() { f.tok.release() }

type amfContext struct {
	m       *Machine
	tok     *token
	adapter *AdapterSpec
}

func (c *amfContext) InitDevice(handle uintptr) amf.Result {
	spec, ok := c.m.lookup(handle)
	if !ok || spec.Vendor != codec.VendorAMD || spec.Faults.Unavailable {
		return amf.NoDevice
	}
	if spec.Faults.FailAcquire == "context" {
		return amf.DirectXFailed
	}
	c.adapter = spec
	return amf.OK
}

func (c *amfContext) CreateComponent(id string) (amf.Component, amf.Result) {
	if c.adapter == nil {
		return nil, amf.NotInitialized
	}
	comp := &amfComponent{m: c.m, faults: c.adapter.Faults, adapter: c.adapter, props: make(map[string]any)}
	switch id {
	case amf.ComponentEncoderAVC, amf.ComponentEncoderHEVC:
		comp.role = "encoder"
		comp.kind = codec.H264
		if id == amf.ComponentEncoderHEVC {
			comp.kind = codec.HEVC
		}
	case amf.ComponentDecoderAVC, amf.ComponentDecoderHEVC:
		comp.role = "decoder"
		comp.kind = codec.H264
		if id == amf.ComponentDecoderHEVC {
			comp.kind = codec.HEVC
		}
	case amf.ComponentConverter:
		comp.role = "converter"
	default:
		return nil, amf.NotFound
	}
	if comp.role != "converter" && !c.adapter.supports(comp.kind) {
		return nil, amf.CodecNotSupported
	}
	if c.adapter.Faults.FailAcquire == comp.role {
		if comp.role == "decoder" {
			return nil, amf.DecoderNotPresent
		}
		return nil, amf.EncoderNotPresent
	}
	comp.tok = c.m.ledger.acquire(comp.role)
	return comp, amf.OK
}

func (c *amfContext) CreateSurfaceFromNative(texture uintptr, format amf.SurfaceFormat) (amf.Surface, amf.Result) {
	if texture == 0 {
		return nil, amf.InvalidArg
	}
	return &amfSurface{
		amfData: amfData{tok: c.m.ledger.acquire("surface")},
		native:  texture,
		format:  format,
	}, amf.OK
}

func (c *amfContext) AllocBuffer(size int) (amf.Buffer, amf.Result) {
	if size < 0 {
		return nil, amf.InvalidArg
	}
	return &amfBuffer{amfData: amfData{tok: c.m.ledger.acquire("buffer")}, data: make([]byte, 0, size)}, amf.OK
}

func (c *amfContext) Terminate() amf.Result {
	c.adapter = nil
	return amf.OK
}

func (c *amfContext) Release() { c.tok.release() }

type amfComponent struct {
	m       *Machine
	tok     *token
	adapter *AdapterSpec
	faults  Faults
	role    string
	kind    codec.Kind
	props   map[string]any

	ready   bool
	format  amf.SurfaceFormat
	width   int
	height  int
	core    *encoderCore
	queue   []amf.Data
	drained bool

	// decoder state
	chunks  int
	changed bool
	header  bool
}

func (c *amfComponent) SetProperty(name string, value any) amf.Result {
	if c.faults.rejects(name) || (c.core != nil && c.faults.rejectsLive(name)) {
		return amf.InvalidArg
	}
	if c.core != nil {
		c.applyLive(name, value)
	}
	c.props[name] = value
	return amf.OK
}

// applyLive updates the running encoder's rate from a property change.
func (c *amfComponent) applyLive(name string, value any) {
	switch name {
	case "TargetBitrate", "HevcTargetBitrate":
		if v, ok := value.(int64); ok {
			c.core.rate.BitrateKbps = int(v / 1000)
		}
	case "FrameRate", "HevcFrameRate":
		if v, ok := value.(amf.Rate); ok && v.Den > 0 {
			c.core.rate.Framerate = v.Num / v.Den
		}
	}
}

func (c *amfComponent) rate() codec.RateControl {
	var r codec.RateControl
	for _, n := range []string{"TargetBitrate", "HevcTargetBitrate"} {
		if v, ok := c.props[n].(int64); ok {
			r.BitrateKbps = int(v / 1000)
		}
	}
	for _, n := range []string{"FrameRate", "HevcFrameRate"} {
		if v, ok := c.props[n].(amf.Rate); ok && v.Den > 0 {
			r.Framerate = v.Num / v.Den
		}
	}
	for _, n := range []string{"IDRPeriod", "HevcGOPSize"} {
		if v, ok := c.props[n].(int); ok {
			r.GOP = v
		}
	}
	return r
}

func (c *amfComponent) Init(format amf.SurfaceFormat, width, height int) amf.Result {
	if c.role == "encoder" {
		if c.faults.rejects("init") || width <= 0 || height <= 0 {
			return amf.InvalidResolution
		}
		c.core = newEncoderCore(c.kind, c.rate(), c.faults)
	}
	c.format, c.width, c.height = format, width, height
	c.ready = true
	c.drained = false
	return amf.OK
}

func (c *amfComponent) SubmitInput(in amf.Data) amf.Result {
	if !c.ready {
		return amf.NotInitialized
	}
	switch c.role {
	case "encoder":
		if c.faults.EncodeDelay > 0 {
			c.m.clock.Advance(c.faults.EncodeDelay)
		}
		if !c.core.submit(in.Pts()) {
			return amf.InputFull
		}
		return amf.OK
	case "converter":
		src, ok := in.(amf.Surface)
		if !ok {
			return amf.InvalidDataType
		}
		format := amf.SurfaceNV12
		if v, ok := c.props["OutputFormat"].(int64); ok {
			format = amf.SurfaceFormat(v)
		}
		w, h := src.Width(), src.Height()
		if w == 0 {
			w, h = c.width, c.height
		}
		out := &amfSurface{
			amfData: amfData{tok: c.m.ledger.acquire("surface"), pts: in.Pts()},
			native:  src.Native() + 1,
			width:   w,
			height:  h,
			format:  format,
		}
		c.queue = append(c.queue, out)
		return amf.OK
	default:
		return c.decodeSubmit(in)
	}
}

func (c *amfComponent) decodeSubmit(in amf.Data) amf.Result {
	buf, ok := in.(amf.Buffer)
	if !ok {
		return amf.InvalidDataType
	}
	c.chunks++
	if c.chunks == c.faults.ResolutionChangeAt && !c.changed {
		c.changed = true
		return amf.ResolutionChanged
	}
	p := parse(c.kind, buf.Bytes())
	if p.header {
		c.header = true
	}
	if !c.header {
		return amf.OK
	}
	g := c.adapter.decodeGeometry(c.changed)
	for i := 0; i < p.slices; i++ {
		c.queue = append(c.queue, &amfSurface{
			amfData: amfData{tok: c.m.ledger.acquire("surface"), pts: in.Pts()},
			native:  c.m.handle(),
			width:   g.Width,
			height:  g.Height,
			format:  amf.SurfaceNV12,
		})
	}
	return amf.OK
}

func (c *amfComponent) QueryOutput() (amf.Data, amf.Result) {
	if !c.ready {
		return nil, amf.NotInitialized
	}
	if c.role == "encoder" {
		data, ts, key, ok := c.core.output()
		if !ok {
			return nil, amf.Repeat
		}
		dataType := int64(2)
		if key {
			dataType = 0
		}
		return &amfBuffer{
			amfData: amfData{
				tok:   c.m.ledger.acquire("buffer"),
				pts:   ts,
				props: map[string]int64{"OutputDataType": dataType, "HevcOutputDataType": dataType},
			},
			data: data,
		}, amf.OK
	}
	if len(c.queue) == 0 {
		if c.drained {
			return nil, amf.EOF
		}
		return nil, amf.Repeat
	}
	out := c.queue[0]
	c.queue = c.queue[1:]
	return out, amf.OK
}

func (c *amfComponent) Drain() amf.Result {
	c.drained = true
	return amf.OK
}

func (c *amfComponent) Terminate() amf.Result {
	for _, d := range c.queue {
		d.Release()
	}
	c.queue = nil
	c.ready = false
	c.core = nil
	return amf.OK
}

func (c *amfComponent) Release() { c.tok.release() }

type amfData struct {
	tok   *token
	pts   int64
	props map[string]int64
}

func (d *amfData) SetPts(pts int64) { d.pts = pts }

func (d *amfData) Pts() int64 { return d.pts }

func (d *amfData) Property(name string) (int64, amf.Result) {
	v, ok := d.props[name]
	if !ok {
		return 0, amf.NotFound
	}
	return v, amf.OK
}

func (d *amfData) Release() { d.tok.release() }

type amfSurface struct {
	amfData
	native uintptr
	width  int
	height int
	format amf.SurfaceFormat
}

func (s *amfSurface) Native() uintptr { return s.native }

func (s *amfSurface) Width() int { return s.width }

func (s *amfSurface) Height() int { return s.height }

func (s *amfSurface) Format() amf.SurfaceFormat { return s.format }

type amfBuffer struct {
	amfData
	data []byte
}

func (b *amfBuffer) Bytes() []byte { return b.data }

func (b *amfBuffer) Write(p []byte) { b.data = append(b.data[:0], p...) }
