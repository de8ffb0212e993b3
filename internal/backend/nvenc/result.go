package nvenc

import (
	"github.com/jmylchreest/hwcodec/internal/codec"
)

func sentinel(s Status) error {
	switch s {
	case NoEncodeDevice, UnsupportedDevice, InvalidEncoderDevice, InvalidDevice, DeviceNotExist, InvalidVersion:
		return codec.ErrUnavailable
	case InvalidParam, UnsupportedParam:
		return codec.ErrConfigRejected
	case NeedMoreInput:
		return codec.ErrNeedMoreInput
	case EncoderBusy:
		return codec.ErrInputFull
	default:
		return codec.ErrFatal
	}
}

func statusError(op string, s Status) error {
	return &codec.Error{
		Op:     op,
		Driver: codec.DriverNV.String(),
		Code:   int64(s),
		Detail: s.String(),
		Err:    sentinel(s),
	}
}

func cuSentinel(r CUResult) error {
	switch r {
	case CUDANoDevice, CUDAInvalidDevice, CUDANotSupported, CUDANotInitialized:
		return codec.ErrUnavailable
	case CUDAInvalidValue:
		return codec.ErrConfigRejected
	default:
		return codec.ErrFatal
	}
}

func cuError(op string, r CUResult) error {
	return &codec.Error{
		Op:     op,
		Driver: codec.DriverNV.String(),
		Code:   int64(r),
		Detail: r.String(),
		Err:    cuSentinel(r),
	}
}

func codecGUID(k codec.Kind) GUID {
	if k == codec.HEVC {
		return CodecHEVCGUID
	}
	return CodecH264GUID
}

func bufferFormat(f codec.PixelFormat) BufferFormat {
	switch f {
	case codec.NV12:
		return BufferFormatNV12
	case codec.RGBA:
		return BufferFormatABGR
	default:
		return BufferFormatARGB
	}
}
