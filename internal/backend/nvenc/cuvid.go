package nvenc

import "fmt"

// CUResult mirrors CUresult for the CUDA and CUVID calls used by decode.
type CUResult int32

const (
	CUDASuccess        CUResult = 0
	CUDAInvalidValue   CUResult = 1
	CUDAOutOfMemory    CUResult = 2
	CUDANotInitialized CUResult = 3
	CUDANoDevice       CUResult = 100
	CUDAInvalidDevice  CUResult = 101
	CUDANotSupported   CUResult = 801
	CUDAUnknown        CUResult = 999
)

func (r CUResult) String() string {
	switch r {
	case CUDASuccess:
		return "CUDA_SUCCESS"
	case CUDANoDevice:
		return "CUDA_ERROR_NO_DEVICE"
	case CUDANotSupported:
		return "CUDA_ERROR_NOT_SUPPORTED"
	default:
		return fmt.Sprintf("CUresult(%d)", int32(r))
	}
}

// CUVID codec ids.
const (
	CudaVideoCodecH264 = 4
	CudaVideoCodecHEVC = 8
)

// DecodeStatus mirrors cuvidDecodeStatus.
type DecodeStatus int32

const (
	DecodeStatusInvalid        DecodeStatus = 0
	DecodeStatusInProgress     DecodeStatus = 1
	DecodeStatusSuccess        DecodeStatus = 2
	DecodeStatusError          DecodeStatus = 8
	DecodeStatusErrorConcealed DecodeStatus = 9
)

// SequenceFormat mirrors the fields of CUVIDEOFORMAT the decoder uses.
type SequenceFormat struct {
	Codec             int
	CodedWidth        int
	CodedHeight       int
	DisplayWidth      int
	DisplayHeight     int
	MinDecodeSurfaces int
}

// PictureParams mirrors CUVIDPICPARAMS.
type PictureParams struct {
	PicIdx int
	Data   []byte
}

// DisplayInfo mirrors CUVIDPARSERDISPINFO.
type DisplayInfo struct {
	PicIdx    int
	Timestamp int64
}

// ParserCallbacks are invoked synchronously from ParseVideoData. A callback
// returning 0 aborts parsing.
type ParserCallbacks struct {
	Sequence func(SequenceFormat) int
	Decode   func(PictureParams) int
	Display  func(DisplayInfo) int
}

// DecoderCreateInfo mirrors CUVIDDECODECREATEINFO.
type DecoderCreateInfo struct {
	Codec        int
	Width        int
	Height       int
	TargetWidth  int
	TargetHeight int
	NumSurfaces  int
	OutputFormat BufferFormat
}

// CUVID is the loaded nvcuvid/CUDA entry table.
type CUVID interface {
	CreateContext(device uintptr) (CudaContext, CUResult)
}

// CudaContext is a CUDA context bound to the adapter of a device.
type CudaContext interface {
	CreateParser(codec int, cb ParserCallbacks) (Parser, CUResult)
	CreateDecoder(info DecoderCreateInfo) (VideoDecoder, CUResult)
	// CopyToTexture converts a mapped frame into a texture owned by the
	// context in format. The texture stays valid until the next copy.
	CopyToTexture(frame uintptr, pitch, width, height int, format BufferFormat) (uintptr, CUResult)
	Destroy() CUResult
}

// Parser mirrors CUvideoparser.
type Parser interface {
	ParseVideoData(data []byte) CUResult
	Destroy() CUResult
}

// VideoDecoder mirrors CUvideodecoder.
type VideoDecoder interface {
	DecodePicture(p PictureParams) CUResult
	DecodeStatus(picIdx int) (DecodeStatus, CUResult)
	MapVideoFrame(picIdx int) (frame uintptr, pitch int, r CUResult)
	UnmapVideoFrame(frame uintptr) CUResult
	Destroy() CUResult
}
