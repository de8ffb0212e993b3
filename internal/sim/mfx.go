package sim

import (
	"github.com/jmylchreest/hwcodec/internal/backend/mfx"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

// MFX returns the simulated oneVPL dispatcher.
func (m *Machine) MFX() mfx.Runtime {
	return &mfxRuntime{m: m}
}

type mfxRuntime struct{ m *Machine }

func (r *mfxRuntime) Init(int) (mfx.Session, mfx.Status) {
	if !r.m.HasRuntime(codec.DriverMFX) {
		return nil, mfx.ErrUnsupported
	}
	return &mfxSession{
		m:      r.m,
		tok:    r.m.ledger.acquire("session"),
		frames: make(map[*mfx.FrameSurface]*token),
	}, mfx.ErrNone
}

type mfxPicture struct {
	ts        int64
	corrupted int
}

type mfxSession struct {
	m       *Machine
	tok     *token
	adapter *AdapterSpec
	faults  Faults
	sync    mfx.SyncPoint

	encoder     *token
	core        *encoderCore
	par         mfx.VideoParam
	moreSurface int

	decoder *token
	kind    codec.Kind
	chunks  int
	changed bool
	pending []mfxPicture

	vpp    *token
	frames map[*mfx.FrameSurface]*token
}

func (s *mfxSession) nextSync() mfx.SyncPoint {
	s.sync++
	return s.sync
}

func (s *mfxSession) SetHandle(_ int, handle uintptr) mfx.Status {
	spec, ok := s.m.lookup(handle)
	if !ok {
		return mfx.ErrInvalidHandle
	}
	if spec.Vendor != codec.VendorIntel || spec.Faults.Unavailable {
		return mfx.ErrUnsupported
	}
	s.adapter = spec
	s.faults = spec.Faults
	return mfx.ErrNone
}

func (s *mfxSession) Close() mfx.Status {
	s.tok.release()
	return mfx.ErrNone
}

func kindOf(id mfx.FourCC) codec.Kind {
	if id == mfx.FourCCHEVC {
		return codec.HEVC
	}
	return codec.H264
}

func (s *mfxSession) EncodeInit(par *mfx.VideoParam) mfx.Status {
	if s.adapter == nil {
		return mfx.ErrNotInitialized
	}
	if s.faults.rejects("init") {
		return mfx.ErrInvalidVideoParam
	}
	k := kindOf(par.Mfx.CodecID)
	if !s.adapter.supports(k) || s.faults.FailAcquire == "encoder" {
		return mfx.ErrUnsupported
	}
	s.encoder = s.m.ledger.acquire("encoder")
	s.par = *par
	s.moreSurface = s.faults.MoreSurface
	s.core = newEncoderCore(k, codec.RateControl{
		BitrateKbps: par.Mfx.TargetKbps,
		Framerate:   par.Mfx.FrameInfo.FrameRateExtN,
		GOP:         par.Mfx.GopPicSize,
	}, s.faults)
	return mfx.ErrNone
}

func (s *mfxSession) EncodeReset(par *mfx.VideoParam) mfx.Status {
	if s.core == nil {
		return mfx.ErrNotInitialized
	}
	if par.Mfx.TargetKbps != s.par.Mfx.TargetKbps && s.faults.rejectsLive("TargetKbps") {
		return mfx.ErrIncompatibleVideoParam
	}
	if par.Mfx.FrameInfo.FrameRateExtN != s.par.Mfx.FrameInfo.FrameRateExtN && s.faults.rejectsLive("FrameRateExtN") {
		return mfx.ErrIncompatibleVideoParam
	}
	s.par = *par
	s.core.rate.BitrateKbps = par.Mfx.TargetKbps
	s.core.rate.Framerate = par.Mfx.FrameInfo.FrameRateExtN
	return mfx.ErrNone
}

func (s *mfxSession) EncodeFrameAsync(surf *mfx.FrameSurface, bs *mfx.Bitstream) (mfx.SyncPoint, mfx.Status) {
	if s.core == nil {
		return 0, mfx.ErrNotInitialized
	}
	if surf == nil || surf.Data.MemID == 0 {
		return 0, mfx.ErrNullPtr
	}
	if surf.Info.FourCC != s.par.Mfx.FrameInfo.FourCC {
		return 0, mfx.ErrInvalidVideoParam
	}
	if s.faults.EncodeDelay > 0 {
		s.m.clock.Advance(s.faults.EncodeDelay)
	}
	if s.moreSurface > 0 {
		s.moreSurface--
		return 0, mfx.ErrMoreSurface
	}
	if !s.core.submit(surf.Data.TimeStamp) {
		return 0, mfx.WrnDeviceBusy
	}
	data, ts, key, ok := s.core.output()
	if !ok {
		return 0, mfx.ErrMoreData
	}
	end := bs.DataOffset + bs.DataLength
	if end+len(data) > len(bs.Data) {
		return 0, mfx.ErrNotEnoughBuffer
	}
	copy(bs.Data[end:], data)
	bs.DataLength += len(data)
	bs.TimeStamp = ts
	bs.FrameType = mfx.FrameTypeP
	if key {
		bs.FrameType = mfx.FrameTypeI | mfx.FrameTypeIDR
	}
	return s.nextSync(), mfx.ErrNone
}

func (s *mfxSession) EncodeClose() mfx.Status {
	if s.encoder == nil {
		return mfx.ErrNotInitialized
	}
	s.encoder.release()
	s.encoder = nil
	s.core = nil
	return mfx.ErrNone
}

func (s *mfxSession) DecodeHeader(bs *mfx.Bitstream, par *mfx.VideoParam) mfx.Status {
	if s.adapter == nil {
		return mfx.ErrNotInitialized
	}
	k := kindOf(par.Mfx.CodecID)
	if !s.adapter.supports(k) {
		return mfx.ErrUnsupported
	}
	if !parse(k, bs.Bytes()).header {
		return mfx.ErrMoreData
	}
	s.kind = k
	g := s.adapter.decodeGeometry(s.changed)
	par.Mfx.FrameInfo = mfx.FrameInfo{
		FourCC:        mfx.FourCCNV12,
		Width:         (g.Width + 15) &^ 15,
		Height:        (g.Height + 15) &^ 15,
		CropW:         g.Width,
		CropH:         g.Height,
		FrameRateExtN: 30,
		FrameRateExtD: 1,
		ChromaFormat:  mfx.ChromaFormat420,
		PicStruct:     mfx.PicStructFrame,
	}
	return mfx.ErrNone
}

func (s *mfxSession) DecodeQueryIOSurf(*mfx.VideoParam) (int, mfx.Status) {
	return 4, mfx.ErrNone
}

func (s *mfxSession) DecodeInit(*mfx.VideoParam) mfx.Status {
	if s.faults.FailAcquire == "decoder" {
		return mfx.ErrUnsupported
	}
	s.decoder = s.m.ledger.acquire("decoder")
	s.pending = nil
	return mfx.ErrNone
}

func (s *mfxSession) DecodeFrameAsync(bs *mfx.Bitstream, work *mfx.FrameSurface) (*mfx.FrameSurface, mfx.SyncPoint, mfx.Status) {
	if s.decoder == nil {
		return nil, 0, mfx.ErrNotInitialized
	}
	if len(s.pending) == 0 {
		if bs.DataLength == 0 {
			return nil, 0, mfx.ErrMoreData
		}
		if s.chunks+1 == s.faults.ResolutionChangeAt && !s.changed {
			s.changed = true
			return nil, 0, mfx.ErrIncompatibleVideoParam
		}
		s.chunks++
		p := parse(s.kind, bs.Bytes())
		bs.DataOffset += bs.DataLength
		bs.DataLength = 0
		corrupted := 0
		if s.chunks == s.faults.RefMissingAt {
			corrupted = mfx.CorruptionReferenceFrame
		}
		for i := 0; i < p.slices; i++ {
			s.pending = append(s.pending, mfxPicture{ts: bs.TimeStamp, corrupted: corrupted})
		}
		if len(s.pending) == 0 {
			return nil, 0, mfx.ErrMoreData
		}
	}
	pic := s.pending[0]
	s.pending = s.pending[1:]
	work.Data.TimeStamp = pic.ts
	work.Data.Corrupted = pic.corrupted
	return work, s.nextSync(), mfx.ErrNone
}

func (s *mfxSession) DecodeClose() mfx.Status {
	if s.decoder == nil {
		return mfx.ErrNotInitialized
	}
	s.decoder.release()
	s.decoder = nil
	s.pending = nil
	return mfx.ErrNone
}

func (s *mfxSession) VPPInit(in, out mfx.FrameInfo) mfx.Status {
	if s.faults.FailAcquire == "vpp" || in.Width == 0 || out.Width == 0 {
		return mfx.ErrUnsupported
	}
	s.vpp = s.m.ledger.acquire("vpp")
	return mfx.ErrNone
}

func (s *mfxSession) VPPRunFrameAsync(in, out *mfx.FrameSurface) (mfx.SyncPoint, mfx.Status) {
	if s.vpp == nil {
		return 0, mfx.ErrNotInitialized
	}
	if in == nil || in.Data.MemID == 0 {
		return 0, mfx.ErrNullPtr
	}
	out.Data.TimeStamp = in.Data.TimeStamp
	out.Data.Corrupted = in.Data.Corrupted
	return s.nextSync(), mfx.ErrNone
}

func (s *mfxSession) VPPClose() mfx.Status {
	if s.vpp == nil {
		return mfx.ErrNotInitialized
	}
	s.vpp.release()
	s.vpp = nil
	return mfx.ErrNone
}

func (s *mfxSession) AllocFrames(info mfx.FrameInfo, count int) ([]*mfx.FrameSurface, mfx.Status) {
	if count <= 0 {
		return nil, mfx.ErrMemoryAlloc
	}
	out := make([]*mfx.FrameSurface, count)
	for i := range out {
		out[i] = &mfx.FrameSurface{Info: info, Data: mfx.FrameData{MemID: s.m.handle()}}
	}
	s.frames[out[0]] = s.m.ledger.acquire("frames")
	return out, mfx.ErrNone
}

func (s *mfxSession) FreeFrames(surfaces []*mfx.FrameSurface) mfx.Status {
	if len(surfaces) == 0 {
		return mfx.ErrNullPtr
	}
	tok, ok := s.frames[surfaces[0]]
	if !ok {
		return mfx.ErrInvalidHandle
	}
	delete(s.frames, surfaces[0])
	tok.release()
	return mfx.ErrNone
}

func (s *mfxSession) SyncOperation(sp mfx.SyncPoint, _ int) mfx.Status {
	if sp == 0 {
		return mfx.ErrNullPtr
	}
	return mfx.ErrNone
}
