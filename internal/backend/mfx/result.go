package mfx

import (
	"github.com/jmylchreest/hwcodec/internal/codec"
)

func sentinel(s Status) error {
	switch s {
	case ErrUnsupported, ErrNotFound, ErrDeviceLost, ErrDeviceFailed:
		return codec.ErrUnavailable
	case ErrInvalidVideoParam, ErrIncompatibleVideoParam, ErrUndefinedBehavior:
		return codec.ErrConfigRejected
	case ErrMoreData:
		return codec.ErrNeedMoreInput
	default:
		return codec.ErrFatal
	}
}

func statusError(op string, s Status) error {
	return &codec.Error{
		Op:     op,
		Driver: codec.DriverMFX.String(),
		Code:   int64(s),
		Detail: s.String(),
		Err:    sentinel(s),
	}
}

func align16(v int) int {
	return (v + 15) &^ 15
}

func codecID(k codec.Kind) FourCC {
	if k == codec.HEVC {
		return FourCCHEVC
	}
	return FourCCAVC
}

// fourCC maps a surface layout to the MFX colour format. MFX has no RGBA
// layout in video memory.
func fourCC(f codec.PixelFormat) (FourCC, bool) {
	switch f {
	case codec.NV12:
		return FourCCNV12, true
	case codec.BGRA:
		return FourCCRGB4, true
	default:
		return 0, false
	}
}

func formatRejected(op string, f codec.PixelFormat) error {
	return &codec.Error{Op: op, Driver: codec.DriverMFX.String(), Property: "format", Code: int64(f), Err: codec.ErrConfigRejected, Detail: f.String() + " surfaces are not supported"}
}

// openSession initialises a hardware session and binds it to the device.
func openSession(rt Runtime, device uintptr, push func(string, func() error)) (Session, error) {
	if rt == nil {
		return nil, &codec.Error{Op: "init", Driver: codec.DriverMFX.String(), Err: codec.ErrUnavailable, Detail: "runtime not loaded"}
	}
	s, st := rt.Init(implementation())
	if st != ErrNone {
		return nil, statusError("init", st)
	}
	push("session", func() error {
		if st := s.Close(); st != ErrNone {
			return statusError("close", st)
		}
		return nil
	})
	if st := s.SetHandle(deviceHandleKind(), device); st != ErrNone {
		return nil, statusError("set handle", st)
	}
	return s, nil
}
