package sim

import (
	"sync"

	"github.com/jmylchreest/hwcodec/internal/backend/nvenc"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

// NV returns the simulated nvEncodeAPI entry table.
func (m *Machine) NV() nvenc.Runtime {
	return &nvRuntime{m: m}
}

// CUVID returns the simulated CUDA/nvcuvid entry table.
func (m *Machine) CUVID() nvenc.CUVID {
	return &cuvidRuntime{m: m}
}

func nvAdapter(m *Machine, handle uintptr) (*AdapterSpec, bool) {
	spec, ok := m.lookup(handle)
	if !ok || spec.Vendor != codec.VendorNVIDIA || spec.Faults.Unavailable {
		return nil, false
	}
	return spec, true
}

type nvRuntime struct{ m *Machine }

func (r *nvRuntime) OpenSession(device uintptr, _ int) (nvenc.Session, nvenc.Status) {
	if !r.m.HasRuntime(codec.DriverNV) {
		return nil, nvenc.InvalidVersion
	}
	spec, ok := nvAdapter(r.m, device)
	if !ok {
		return nil, nvenc.NoEncodeDevice
	}
	return &nvSession{
		m:       r.m,
		spec:    spec,
		faults:  spec.Faults,
		tok:     r.m.ledger.acquire("session"),
		handles: make(map[uintptr]*token),
	}, nvenc.Success
}

type nvOutput struct {
	data []byte
	ts   int64
	key  bool
}

type nvSession struct {
	m      *Machine
	spec   *AdapterSpec
	faults Faults
	tok    *token

	current nvenc.InitParams
	core    *encoderCore

	// handles tracks registered resources, mapped inputs and bitstream
	// buffers.
	handles map[uintptr]*token
	last    map[uintptr]nvOutput
}

func (s *nvSession) track(kind string) uintptr {
	h := s.m.handle()
	s.handles[h] = s.m.ledger.acquire(kind)
	return h
}

func (s *nvSession) untrack(h uintptr) nvenc.Status {
	tok, ok := s.handles[h]
	if !ok {
		return nvenc.InvalidPtr
	}
	delete(s.handles, h)
	tok.release()
	return nvenc.Success
}

func (s *nvSession) EncodeGUIDs() ([]nvenc.GUID, nvenc.Status) {
	var out []nvenc.GUID
	if s.spec.supports(codec.H264) {
		out = append(out, nvenc.CodecH264GUID)
	}
	if s.spec.supports(codec.HEVC) {
		out = append(out, nvenc.CodecHEVCGUID)
	}
	return out, nvenc.Success
}

func (s *nvSession) PresetConfig(_, _ nvenc.GUID, _ int) (nvenc.Config, nvenc.Status) {
	return nvenc.Config{GOPLength: 30, FrameIntervalP: 1, IDRPeriod: 30}, nvenc.Success
}

func nvRate(p *nvenc.InitParams) codec.RateControl {
	gop := p.Config.GOPLength
	if gop > codec.MaxGOP {
		gop = codec.MaxGOP
	}
	return codec.RateControl{
		BitrateKbps: int(p.Config.RC.AverageBitRate / 1000),
		Framerate:   p.FrameRateNum,
		GOP:         int(gop),
	}
}

func (s *nvSession) Initialize(p *nvenc.InitParams) nvenc.Status {
	if s.faults.rejects("init") {
		return nvenc.InvalidParam
	}
	if s.faults.FailAcquire == "encoder" {
		return nvenc.OutOfMemory
	}
	k := codec.H264
	if p.EncodeGUID == nvenc.CodecHEVCGUID {
		k = codec.HEVC
	}
	s.current = *p
	s.core = newEncoderCore(k, nvRate(p), s.faults)
	s.last = make(map[uintptr]nvOutput)
	return nvenc.Success
}

func (s *nvSession) Reconfigure(p *nvenc.ReconfigureParams) nvenc.Status {
	if s.core == nil {
		return nvenc.EncoderNotInitialized
	}
	if p.Init.Config.RC.AverageBitRate != s.current.Config.RC.AverageBitRate && s.faults.rejectsLive("averageBitRate") {
		return nvenc.InvalidParam
	}
	if p.Init.FrameRateNum != s.current.FrameRateNum && s.faults.rejectsLive("frameRateNum") {
		return nvenc.InvalidParam
	}
	s.current = p.Init
	r := nvRate(&p.Init)
	s.core.rate.BitrateKbps = r.BitrateKbps
	s.core.rate.Framerate = r.Framerate
	return nvenc.Success
}

func (s *nvSession) RegisterResource(_ int, resource uintptr, width, height int, _ nvenc.BufferFormat) (uintptr, nvenc.Status) {
	if resource == 0 {
		return 0, nvenc.InvalidPtr
	}
	if width <= 0 || height <= 0 {
		return 0, nvenc.InvalidParam
	}
	return s.track("resource"), nvenc.Success
}

func (s *nvSession) UnregisterResource(registered uintptr) nvenc.Status {
	return s.untrack(registered)
}

func (s *nvSession) MapInputResource(registered uintptr) (uintptr, nvenc.Status) {
	if _, ok := s.handles[registered]; !ok {
		return 0, nvenc.InvalidPtr
	}
	return s.track("mapped"), nvenc.Success
}

func (s *nvSession) UnmapInputResource(mapped uintptr) nvenc.Status {
	return s.untrack(mapped)
}

func (s *nvSession) CreateBitstreamBuffer() (uintptr, nvenc.Status) {
	if s.faults.FailAcquire == "bitstream" {
		return 0, nvenc.OutOfMemory
	}
	return s.track("bitstream"), nvenc.Success
}

func (s *nvSession) DestroyBitstreamBuffer(buf uintptr) nvenc.Status {
	delete(s.last, buf)
	return s.untrack(buf)
}

func (s *nvSession) EncodePicture(p *nvenc.PicParams) nvenc.Status {
	if s.core == nil {
		return nvenc.EncoderNotInitialized
	}
	if _, ok := s.handles[p.Input]; !ok {
		return nvenc.InvalidPtr
	}
	if _, ok := s.handles[p.Output]; !ok {
		return nvenc.InvalidPtr
	}
	if s.faults.EncodeDelay > 0 {
		s.m.clock.Advance(s.faults.EncodeDelay)
	}
	if !s.core.submit(int64(p.InputTimeStamp)) {
		return nvenc.EncoderBusy
	}
	data, ts, key, ok := s.core.output()
	if !ok {
		return nvenc.NeedMoreInput
	}
	s.last[p.Output] = nvOutput{data: data, ts: ts, key: key}
	return nvenc.Success
}

func (s *nvSession) LockBitstream(buf uintptr) (nvenc.LockedBitstream, nvenc.Status) {
	out, ok := s.last[buf]
	if !ok {
		return nvenc.LockedBitstream{}, nvenc.InvalidCall
	}
	pic := nvenc.PicTypeP
	if out.key {
		pic = nvenc.PicTypeIDR
	}
	return nvenc.LockedBitstream{Data: out.data, OutputTimeStamp: uint64(out.ts), PictureType: pic}, nvenc.Success
}

func (s *nvSession) UnlockBitstream(buf uintptr) nvenc.Status {
	if _, ok := s.last[buf]; !ok {
		return nvenc.InvalidCall
	}
	delete(s.last, buf)
	return nvenc.Success
}

func (s *nvSession) DestroyEncoder() nvenc.Status {
	s.core = nil
	s.tok.release()
	return nvenc.Success
}

type cuvidRuntime struct{ m *Machine }

func (r *cuvidRuntime) CreateContext(device uintptr) (nvenc.CudaContext, nvenc.CUResult) {
	if !r.m.HasRuntime(codec.DriverNV) {
		return nil, nvenc.CUDANotInitialized
	}
	spec, ok := nvAdapter(r.m, device)
	if !ok {
		return nil, nvenc.CUDANoDevice
	}
	if spec.Faults.FailAcquire == "context" {
		return nil, nvenc.CUDAOutOfMemory
	}
	return &cudaContext{
		m:      r.m,
		spec:   spec,
		faults: spec.Faults,
		tok:    r.m.ledger.acquire("context"),
	}, nvenc.CUDASuccess
}

type cudaContext struct {
	m      *Machine
	spec   *AdapterSpec
	faults Faults
	tok    *token

	// chunk is the 1-based index of the chunk being parsed.
	chunk int
}

func (c *cudaContext) CreateParser(cudaCodec int, cb nvenc.ParserCallbacks) (nvenc.Parser, nvenc.CUResult) {
	k := codec.H264
	if cudaCodec == nvenc.CudaVideoCodecHEVC {
		k = codec.HEVC
	}
	if !c.spec.supports(k) {
		return nil, nvenc.CUDANotSupported
	}
	if c.faults.FailAcquire == "parser" {
		return nil, nvenc.CUDAOutOfMemory
	}
	return &cuvidParser{ctx: c, kind: k, codec: cudaCodec, cb: cb, tok: c.m.ledger.acquire("parser")}, nvenc.CUDASuccess
}

func (c *cudaContext) CreateDecoder(info nvenc.DecoderCreateInfo) (nvenc.VideoDecoder, nvenc.CUResult) {
	if c.faults.FailAcquire == "decoder" {
		return nil, nvenc.CUDAOutOfMemory
	}
	if info.Width <= 0 || info.Height <= 0 || info.NumSurfaces <= 0 {
		return nil, nvenc.CUDAInvalidValue
	}
	return &cuvidDecoder{
		ctx:    c,
		pitch:  info.Width,
		tok:    c.m.ledger.acquire("decoder"),
		status: make(map[int]nvenc.DecodeStatus),
		mapped: make(map[uintptr]*token),
	}, nvenc.CUDASuccess
}

func (c *cudaContext) CopyToTexture(frame uintptr, pitch, width, height int, _ nvenc.BufferFormat) (uintptr, nvenc.CUResult) {
	if frame == 0 || pitch < width || height <= 0 {
		return 0, nvenc.CUDAInvalidValue
	}
	return c.m.handle(), nvenc.CUDASuccess
}

func (c *cudaContext) Destroy() nvenc.CUResult {
	c.tok.release()
	return nvenc.CUDASuccess
}

type cuvidParser struct {
	ctx     *cudaContext
	kind    codec.Kind
	codec   int
	cb      nvenc.ParserCallbacks
	tok     *token
	header  bool
	changed bool
	picIdx  int
	ts      int64
}

func (p *cuvidParser) ParseVideoData(data []byte) nvenc.CUResult {
	c := p.ctx
	c.chunk++
	if at := c.faults.ResolutionChangeAt; at > 0 && c.chunk >= at {
		p.changed = true
	}
	parsed := parse(p.kind, data)
	if parsed.header {
		p.header = true
		g := c.spec.decodeGeometry(p.changed)
		if p.cb.Sequence(nvenc.SequenceFormat{
			Codec:             p.codec,
			CodedWidth:        g.Width,
			CodedHeight:       g.Height,
			DisplayWidth:      g.Width,
			DisplayHeight:     g.Height,
			MinDecodeSurfaces: 4,
		}) == 0 {
			return nvenc.CUDAUnknown
		}
	}
	if !p.header {
		return nvenc.CUDASuccess
	}
	for i := 0; i < parsed.slices; i++ {
		idx := p.picIdx % 8
		p.picIdx++
		if p.cb.Decode(nvenc.PictureParams{PicIdx: idx, Data: data}) == 0 {
			return nvenc.CUDAUnknown
		}
		p.ts++
		if p.cb.Display(nvenc.DisplayInfo{PicIdx: idx, Timestamp: p.ts}) == 0 {
			return nvenc.CUDAUnknown
		}
	}
	return nvenc.CUDASuccess
}

func (p *cuvidParser) Destroy() nvenc.CUResult {
	p.tok.release()
	return nvenc.CUDASuccess
}

type cuvidDecoder struct {
	ctx    *cudaContext
	pitch  int
	tok    *token
	mu     sync.Mutex
	status map[int]nvenc.DecodeStatus
	mapped map[uintptr]*token
}

func (d *cuvidDecoder) DecodePicture(p nvenc.PictureParams) nvenc.CUResult {
	st := nvenc.DecodeStatusSuccess
	if d.ctx.chunk == d.ctx.faults.RefMissingAt {
		st = nvenc.DecodeStatusErrorConcealed
	}
	d.mu.Lock()
	d.status[p.PicIdx] = st
	d.mu.Unlock()
	return nvenc.CUDASuccess
}

func (d *cuvidDecoder) DecodeStatus(picIdx int) (nvenc.DecodeStatus, nvenc.CUResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.status[picIdx]
	if !ok {
		return nvenc.DecodeStatusInvalid, nvenc.CUDAInvalidValue
	}
	return st, nvenc.CUDASuccess
}

func (d *cuvidDecoder) MapVideoFrame(picIdx int) (uintptr, int, nvenc.CUResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.status[picIdx]; !ok {
		return 0, 0, nvenc.CUDAInvalidValue
	}
	h := d.ctx.m.handle()
	d.mapped[h] = d.ctx.m.ledger.acquire("mapped")
	return h, d.pitch, nvenc.CUDASuccess
}

func (d *cuvidDecoder) UnmapVideoFrame(frame uintptr) nvenc.CUResult {
	d.mu.Lock()
	tok, ok := d.mapped[frame]
	delete(d.mapped, frame)
	d.mu.Unlock()
	if !ok {
		return nvenc.CUDAInvalidValue
	}
	tok.release()
	return nvenc.CUDASuccess
}

func (d *cuvidDecoder) Destroy() nvenc.CUResult {
	d.tok.release()
	return nvenc.CUDASuccess
}
