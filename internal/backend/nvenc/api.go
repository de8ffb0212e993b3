// Package nvenc implements the NVIDIA backend: NVENC for encode and the
// CUVID parser/decoder for decode.
package nvenc

import "fmt"

// Status mirrors NVENCSTATUS.
type Status int32

// NVENCSTATUS values used by the backend.
const (
	Success               Status = 0
	NoEncodeDevice        Status = 1
	UnsupportedDevice     Status = 2
	InvalidEncoderDevice  Status = 3
	InvalidDevice         Status = 4
	DeviceNotExist        Status = 5
	InvalidPtr            Status = 6
	InvalidEvent          Status = 7
	InvalidParam          Status = 8
	InvalidCall           Status = 9
	OutOfMemory           Status = 10
	EncoderNotInitialized Status = 11
	UnsupportedParam      Status = 12
	LockBusy              Status = 13
	NotEnoughBuffer       Status = 14
	InvalidVersion        Status = 15
	MapFailed             Status = 16
	NeedMoreInput         Status = 17
	EncoderBusy           Status = 18
	EventNotRegistered    Status = 19
	Generic               Status = 20
)

func (s Status) String() string {
	switch s {
	case Success:
		return "NV_ENC_SUCCESS"
	case NeedMoreInput:
		return "NV_ENC_ERR_NEED_MORE_INPUT"
	case EncoderBusy:
		return "NV_ENC_ERR_ENCODER_BUSY"
	case LockBusy:
		return "NV_ENC_ERR_LOCK_BUSY"
	case InvalidParam:
		return "NV_ENC_ERR_INVALID_PARAM"
	case UnsupportedParam:
		return "NV_ENC_ERR_UNSUPPORTED_PARAM"
	default:
		return fmt.Sprintf("NVENCSTATUS(%d)", int32(s))
	}
}

// GUID identifies codecs, profiles and presets.
type GUID [16]byte

// Codec and preset GUIDs.
var (
	CodecH264GUID = GUID{0x6b, 0xc8, 0x27, 0x62, 0x4e, 0x63, 0x44, 0x38, 0x9a, 0x6e, 0x4b, 0xcb, 0x3e, 0x1e, 0x1e, 0xcd}
	CodecHEVCGUID = GUID{0x79, 0x0c, 0xdc, 0x88, 0x45, 0x22, 0x4d, 0x7b, 0x94, 0x25, 0xbd, 0xa9, 0x97, 0x5f, 0x76, 0x03}
	PresetP4GUID  = GUID{0x90, 0xa7, 0xb8, 0x26, 0xdf, 0x06, 0x41, 0x92, 0x80, 0xd1, 0x52, 0xa8, 0xaf, 0x70, 0x69, 0xef}

	H264ProfileHighGUID = GUID{0xe7, 0xcb, 0xc3, 0x09, 0x4f, 0x7a, 0x4b, 0x89, 0xaf, 0x2a, 0xd5, 0x37, 0xc9, 0x2b, 0xe3, 0x10}
	HEVCProfileMainGUID = GUID{0xb5, 0x14, 0xc3, 0x9a, 0xb5, 0x5b, 0x40, 0xfa, 0x87, 0x8f, 0xf1, 0x25, 0x3b, 0x4d, 0xfd, 0xec}
)

// Enumerations.
const (
	TuningLowLatency = 2

	RateControlCBR = 0x2

	InfiniteGOPLength = 0xFFFFFFFF

	LevelAVC51   = 51
	LevelHEVC51  = 153
	TierHEVCHigh = 1

	DeviceTypeDirectX = 0
	DeviceTypeCUDA    = 1

	ResourceDirectXTexture = 0
	ResourceCUDADevicePtr  = 1

	PicStructFrame = 1
)

// BufferFormat mirrors NV_ENC_BUFFER_FORMAT.
type BufferFormat uint32

const (
	BufferFormatNV12 BufferFormat = 0x00000001
	BufferFormatARGB BufferFormat = 0x01000000 // B8G8R8A8 in memory
	BufferFormatABGR BufferFormat = 0x10000000 // R8G8B8A8 in memory
)

// PictureType mirrors NV_ENC_PIC_TYPE.
type PictureType uint32

const (
	PicTypeP   PictureType = 0
	PicTypeB   PictureType = 1
	PicTypeI   PictureType = 2
	PicTypeIDR PictureType = 3
)

// RCParams mirrors NV_ENC_RC_PARAMS.
type RCParams struct {
	RateControlMode int
	AverageBitRate  uint32
	MaxBitRate      uint32
	VBVBufferSize   uint32
}

// Config mirrors NV_ENC_CONFIG.
type Config struct {
	ProfileGUID    GUID
	GOPLength      uint32
	FrameIntervalP int
	RC             RCParams
	IDRPeriod      uint32
	Level          int
	Tier           int
}

// InitParams mirrors NV_ENC_INITIALIZE_PARAMS.
type InitParams struct {
	EncodeGUID   GUID
	PresetGUID   GUID
	Tuning       int
	EncodeWidth  int
	EncodeHeight int
	DarWidth     int
	DarHeight    int
	FrameRateNum int
	FrameRateDen int
	EnablePTD    bool
	Config       Config
}

// ReconfigureParams mirrors NV_ENC_RECONFIGURE_PARAMS.
type ReconfigureParams struct {
	Init         InitParams
	ResetEncoder bool
	ForceIDR     bool
}

// PicParams mirrors NV_ENC_PIC_PARAMS.
type PicParams struct {
	Input          uintptr
	Output         uintptr
	InputWidth     int
	InputHeight    int
	BufferFormat   BufferFormat
	InputTimeStamp uint64
	PictureStruct  int
}

// LockedBitstream mirrors NV_ENC_LOCK_BITSTREAM after a successful lock.
type LockedBitstream struct {
	Data            []byte
	OutputTimeStamp uint64
	PictureType     PictureType
}

// Runtime is the loaded nvEncodeAPI entry table.
type Runtime interface {
	OpenSession(device uintptr, deviceType int) (Session, Status)
}

// Session mirrors an open NVENC encoder handle.
type Session interface {
	EncodeGUIDs() ([]GUID, Status)
	PresetConfig(codec, preset GUID, tuning int) (Config, Status)
	Initialize(p *InitParams) Status
	Reconfigure(p *ReconfigureParams) Status

	RegisterResource(resourceType int, resource uintptr, width, height int, format BufferFormat) (uintptr, Status)
	UnregisterResource(registered uintptr) Status
	MapInputResource(registered uintptr) (uintptr, Status)
	UnmapInputResource(mapped uintptr) Status

	CreateBitstreamBuffer() (uintptr, Status)
	DestroyBitstreamBuffer(buf uintptr) Status

	EncodePicture(p *PicParams) Status
	LockBitstream(buf uintptr) (LockedBitstream, Status)
	UnlockBitstream(buf uintptr) Status

	DestroyEncoder() Status
}
