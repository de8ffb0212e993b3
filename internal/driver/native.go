package driver

import (
	"github.com/jmylchreest/hwcodec/internal/backend/amf"
	"github.com/jmylchreest/hwcodec/internal/backend/mfx"
	"github.com/jmylchreest/hwcodec/internal/backend/nvenc"
)

// The native entry tables only confirm the library is present. Session
// creation through them reports the runtime as not implemented, which the
// backends classify as unavailable, so on real hardware every adapter probes
// as Unavailable and only --simulate exercises the session path.
//
// TODO: bind AMFInit, MFXInitEx and NvEncodeAPICreateInstance through the
// loaded Handle so native sessions reach the vendor runtimes.

type nativeAMF struct{ h *Handle }

func (nativeAMF) Init() (amf.Factory, amf.Result) {
	return nil, amf.NotImplemented
}

type nativeMFX struct{ h *Handle }

func (nativeMFX) Init(int) (mfx.Session, mfx.Status) {
	return nil, mfx.ErrUnsupported
}

type nativeNV struct{ h *Handle }

func (nativeNV) OpenSession(uintptr, int) (nvenc.Session, nvenc.Status) {
	return nil, nvenc.InvalidVersion
}

type nativeCUVID struct{ h *Handle }

func (nativeCUVID) CreateContext(uintptr) (nvenc.CudaContext, nvenc.CUResult) {
	return nil, nvenc.CUDANotSupported
}
