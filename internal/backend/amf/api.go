// Package amf implements the AMD AMF backend. It drives the AMF object model
// (factory, context, components) through the Runtime interface so that the
// session protocol is independent of how the runtime is bound.
package amf

import "fmt"

// Result mirrors AMF_RESULT.
type Result int32

// AMF_RESULT values used by the backend.
const (
	OK                       Result = 0
	Fail                     Result = 1
	Unexpected               Result = 2
	InvalidArg               Result = 4
	OutOfRange               Result = 5
	OutOfMemory              Result = 6
	NoInterface              Result = 8
	NotImplemented           Result = 9
	NotSupported             Result = 10
	NotFound                 Result = 11
	NotInitialized           Result = 13
	InvalidFormat            Result = 14
	WrongState               Result = 15
	NoDevice                 Result = 17
	DirectXFailed            Result = 18
	EOF                      Result = 23
	Repeat                   Result = 24
	InputFull                Result = 25
	ResolutionChanged        Result = 26
	InvalidDataType          Result = 28
	InvalidResolution        Result = 29
	CodecNotSupported        Result = 30
	SurfaceFormatUnsupported Result = 31
	DecoderNotPresent        Result = 33
	EncoderNotPresent        Result = 36
	NeedMoreInput            Result = 44
)

func (r Result) String() string {
	switch r {
	case OK:
		return "AMF_OK"
	case InputFull:
		return "AMF_INPUT_FULL"
	case NeedMoreInput:
		return "AMF_NEED_MORE_INPUT"
	case Repeat:
		return "AMF_REPEAT"
	case ResolutionChanged:
		return "AMF_RESOLUTION_CHANGED"
	case EOF:
		return "AMF_EOF"
	default:
		return fmt.Sprintf("AMF_RESULT(%d)", int32(r))
	}
}

// SurfaceFormat mirrors AMF_SURFACE_FORMAT.
type SurfaceFormat int32

// Surface formats.
const (
	SurfaceUnknown SurfaceFormat = 0
	SurfaceNV12    SurfaceFormat = 1
	SurfaceBGRA    SurfaceFormat = 3
	SurfaceRGBA    SurfaceFormat = 5
)

// Size is an AMFSize property value.
type Size struct{ Width, Height int }

// Rate is an AMFRate property value.
type Rate struct{ Num, Den int }

// Component ids.
const (
	ComponentEncoderAVC  = "AMFVideoEncoderVCE_AVC"
	ComponentEncoderHEVC = "AMFVideoEncoder_HEVC"
	ComponentConverter   = "AMFVideoConverter"
	ComponentDecoderAVC  = "AMFVideoDecoderUVD_H264_AVC"
	ComponentDecoderHEVC = "AMFVideoDecoderHW_H265_HEVC"
)

// PtsPerMillisecond converts ms timestamps to AMF 100ns units.
const PtsPerMillisecond = 10000

// Runtime is the loaded AMF library. Init corresponds to AMFInit and hands out
// a factory reference owned by one session.
type Runtime interface {
	Init() (Factory, Result)
}

// Factory mirrors AMFFactory.
type Factory interface {
	CreateContext() (Context, Result)
	Release()
}

// Context mirrors AMFContext bound to one device.
type Context interface {
	InitDevice(device uintptr) Result
	CreateComponent(id string) (Component, Result)
	CreateSurfaceFromNative(texture uintptr, format SurfaceFormat) (Surface, Result)
	AllocBuffer(size int) (Buffer, Result)
	Terminate() Result
	Release()
}

// Component mirrors AMFComponent (encoder, decoder or converter).
type Component interface {
	SetProperty(name string, value any) Result
	Init(format SurfaceFormat, width, height int) Result
	SubmitInput(in Data) Result
	QueryOutput() (Data, Result)
	Drain() Result
	Terminate() Result
	Release()
}

// Data mirrors AMFData. Every Data returned to the backend is released by it.
type Data interface {
	SetPts(pts int64)
	Pts() int64
	Property(name string) (int64, Result)
	Release()
}

// Surface mirrors AMFSurface.
type Surface interface {
	Data
	Native() uintptr
	Width() int
	Height() int
	Format() SurfaceFormat
}

// Buffer mirrors AMFBuffer.
type Buffer interface {
	Data
	Bytes() []byte
	Write(p []byte)
}
