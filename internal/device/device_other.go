//go:build !linux && !windows

package device

import (
	"context"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

// noneProvider is used where no hardware codec runtime exists.
type noneProvider struct{}

func newNativeProvider() Provider { return noneProvider{} }

func (noneProvider) Adapters(context.Context) ([]Adapter, error) { return nil, nil }

func (noneProvider) Open(context.Context, Adapter, OpenOptions) (*Device, error) {
	return nil, &codec.Error{Op: "open device", Err: codec.ErrUnavailable}
}

func (noneProvider) Close(*Device) error { return nil }

func (noneProvider) AllocateSurface(*Device, codec.Geometry, codec.PixelFormat) (backend.Texture, error) {
	return 0, unsupportedSurface("allocate surface")
}

func (noneProvider) FreeSurface(*Device, backend.Texture) error { return nil }
