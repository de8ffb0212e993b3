package amf

import (
	"github.com/jmylchreest/hwcodec/internal/codec"
)

// sentinel classifies an AMF_RESULT into the error taxonomy.
func sentinel(r Result) error {
	switch r {
	case NoDevice, DirectXFailed, NotSupported, NotImplemented, NoInterface, NotFound,
		CodecNotSupported, DecoderNotPresent, EncoderNotPresent:
		return codec.ErrUnavailable
	case InvalidArg, OutOfRange, InvalidFormat, InvalidResolution, SurfaceFormatUnsupported, InvalidDataType:
		return codec.ErrConfigRejected
	case InputFull:
		return codec.ErrInputFull
	case NeedMoreInput, Repeat:
		return codec.ErrNeedMoreInput
	case ResolutionChanged:
		return codec.ErrResolutionChanged
	default:
		return codec.ErrFatal
	}
}

func resultError(op string, r Result) error {
	return &codec.Error{
		Op:     op,
		Driver: codec.DriverAMF.String(),
		Code:   int64(r),
		Detail: r.String(),
		Err:    sentinel(r),
	}
}

// setter adapts a component to backend.ApplyProperties.
func setter(c Component) func(name string, value any) (int64, bool) {
	return func(name string, value any) (int64, bool) {
		r := c.SetProperty(name, value)
		return int64(r), r == OK
	}
}

// releaseComponent terminates and releases c.
func releaseComponent(c Component) func() error {
	return func() error {
		r := c.Terminate()
		c.Release()
		if r != OK {
			return resultError("terminate", r)
		}
		return nil
	}
}

// openContext acquires a factory and a context bound to device, pushing both
// onto the release stack.
func openContext(rt Runtime, device uintptr, push func(string, func() error)) (Context, error) {
	if rt == nil {
		return nil, &codec.Error{Op: "init", Driver: codec.DriverAMF.String(), Err: codec.ErrUnavailable, Detail: "runtime not loaded"}
	}
	factory, r := rt.Init()
	if r != OK {
		return nil, resultError("init", r)
	}
	push("factory", func() error {
		factory.Release()
		return nil
	})

	ctx, r := factory.CreateContext()
	if r != OK {
		return nil, resultError("create context", r)
	}
	push("context", func() error {
		r := ctx.Terminate()
		ctx.Release()
		if r != OK {
			return resultError("terminate context", r)
		}
		return nil
	})

	if r := ctx.InitDevice(device); r != OK {
		return nil, resultError("init device", r)
	}
	return ctx, nil
}
