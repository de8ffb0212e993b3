// Package mfx implements the Intel Media SDK / oneVPL backend.
package mfx

import "fmt"

// Status mirrors mfxStatus. Negative values are errors, positive values
// are warnings.
type Status int32

// mfxStatus values used by the backend.
const (
	ErrNone                   Status = 0
	ErrUnknown                Status = -1
	ErrNullPtr                Status = -2
	ErrUnsupported            Status = -3
	ErrMemoryAlloc            Status = -4
	ErrNotEnoughBuffer        Status = -5
	ErrInvalidHandle          Status = -6
	ErrLockMemory             Status = -7
	ErrNotInitialized         Status = -8
	ErrNotFound               Status = -9
	ErrMoreData               Status = -10
	ErrMoreSurface            Status = -11
	ErrAborted                Status = -12
	ErrDeviceLost             Status = -13
	ErrIncompatibleVideoParam Status = -14
	ErrInvalidVideoParam      Status = -15
	ErrUndefinedBehavior      Status = -16
	ErrDeviceFailed           Status = -17
	ErrMoreBitstream          Status = -18

	WrnInExecution            Status = 1
	WrnDeviceBusy             Status = 2
	WrnVideoParamChanged      Status = 3
	WrnPartialAcceleration    Status = 4
	WrnIncompatibleVideoParam Status = 5
)

func (s Status) String() string {
	switch s {
	case ErrNone:
		return "MFX_ERR_NONE"
	case ErrMoreData:
		return "MFX_ERR_MORE_DATA"
	case ErrMoreSurface:
		return "MFX_ERR_MORE_SURFACE"
	case ErrDeviceLost:
		return "MFX_ERR_DEVICE_LOST"
	case ErrIncompatibleVideoParam:
		return "MFX_ERR_INCOMPATIBLE_VIDEO_PARAM"
	case ErrInvalidVideoParam:
		return "MFX_ERR_INVALID_VIDEO_PARAM"
	case WrnDeviceBusy:
		return "MFX_WRN_DEVICE_BUSY"
	case WrnPartialAcceleration:
		return "MFX_WRN_PARTIAL_ACCELERATION"
	default:
		return fmt.Sprintf("mfxStatus(%d)", int32(s))
	}
}

// FourCC codes.
type FourCC uint32

const (
	FourCCNV12 FourCC = 0x3231564E // NV12
	FourCCRGB4 FourCC = 0x34424752 // RGB4 (BGRA in memory)
	FourCCAVC  FourCC = 0x20435641 // "AVC "
	FourCCHEVC FourCC = 0x43564548 // "HEVC"
)

// Implementation and handle selectors.
const (
	ImplHardwareAny = 0x0004
	ImplViaD3D11    = 0x0200
	ImplViaVAAPI    = 0x0400

	HandleD3D11Device = 3
	HandleVADisplay   = 4
)

// Codec and rate control constants.
const (
	TargetUsageBestSpeed = 7
	RateControlCBR       = 1

	ProfileAVCMain  = 77
	ProfileAVCHigh  = 100
	ProfileHEVCMain = 1
	LevelAVC51      = 51
	LevelHEVC51     = 153
	TierHEVCHigh    = 0x100

	IOPatternInVideoMemory  = 0x01
	IOPatternOutVideoMemory = 0x10

	ChromaFormat420 = 1
	PicStructFrame  = 1
)

// Frame types reported in a bitstream.
const (
	FrameTypeI   = 0x0001
	FrameTypeP   = 0x0002
	FrameTypeB   = 0x0004
	FrameTypeIDR = 0x0080
)

// Surface corruption flags.
const (
	CorruptionMinor          = 0x0001
	CorruptionMajor          = 0x0002
	CorruptionReferenceFrame = 0x0010
	CorruptionReferenceList  = 0x0020
)

// TimestampPerMillisecond converts ms to the 90kHz clock.
const TimestampPerMillisecond = 90

// FrameInfo mirrors mfxFrameInfo.
type FrameInfo struct {
	FourCC        FourCC
	Width         int // aligned to 16
	Height        int // aligned to 16
	CropW         int
	CropH         int
	FrameRateExtN int
	FrameRateExtD int
	ChromaFormat  int
	PicStruct     int
}

// InfoMFX mirrors mfxInfoMFX.
type InfoMFX struct {
	CodecID           FourCC
	CodecProfile      int
	CodecLevel        int
	TargetUsage       int
	GopPicSize        int
	GopRefDist        int
	RateControlMethod int
	TargetKbps        int
	MaxKbps           int
	FrameInfo         FrameInfo
}

// VideoParam mirrors mfxVideoParam.
type VideoParam struct {
	AsyncDepth int
	IOPattern  int
	Mfx        InfoMFX
}

// FrameData mirrors the parts of mfxFrameData the backend reads.
type FrameData struct {
	MemID     uintptr
	TimeStamp int64
	Locked    int
	Corrupted int
}

// FrameSurface mirrors mfxFrameSurface1.
type FrameSurface struct {
	Info FrameInfo
	Data FrameData
}

// Bitstream mirrors mfxBitstream. Data has MaxLength capacity.
type Bitstream struct {
	Data       []byte
	DataOffset int
	DataLength int
	TimeStamp  int64
	FrameType  int
}

// Bytes returns the valid region.
func (b *Bitstream) Bytes() []byte {
	return b.Data[b.DataOffset : b.DataOffset+b.DataLength]
}

// SyncPoint mirrors mfxSyncPoint.
type SyncPoint uintptr

// Runtime is the loaded dispatcher. Init corresponds to MFXInitEx.
type Runtime interface {
	Init(impl int) (Session, Status)
}

// Session mirrors mfxSession with the encode, decode and VPP entry points.
type Session interface {
	SetHandle(kind int, handle uintptr) Status
	Close() Status

	EncodeInit(par *VideoParam) Status
	EncodeReset(par *VideoParam) Status
	EncodeFrameAsync(surf *FrameSurface, bs *Bitstream) (SyncPoint, Status)
	EncodeClose() Status

	DecodeHeader(bs *Bitstream, par *VideoParam) Status
	DecodeQueryIOSurf(par *VideoParam) (int, Status)
	DecodeInit(par *VideoParam) Status
	DecodeFrameAsync(bs *Bitstream, work *FrameSurface) (*FrameSurface, SyncPoint, Status)
	DecodeClose() Status

	VPPInit(in, out FrameInfo) Status
	VPPRunFrameAsync(in, out *FrameSurface) (SyncPoint, Status)
	VPPClose() Status

	AllocFrames(info FrameInfo, count int) ([]*FrameSurface, Status)
	FreeFrames(surfaces []*FrameSurface) Status

	SyncOperation(sp SyncPoint, waitMs int) Status
}
