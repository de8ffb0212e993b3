// Package device defines the device provider the codec core borrows GPU
// devices from, and the native providers for each platform.
package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

// ErrNotFound is returned when an adapter is no longer present.
var ErrNotFound = errors.New("adapter not found")

// Adapter describes one physical GPU. Descriptors are valid for one
// enumeration pass only.
type Adapter struct {
	LUID        int64        `json:"luid" yaml:"luid"`
	VendorID    codec.Vendor `json:"vendor_id" yaml:"vendor_id"`
	DeviceID    uint32       `json:"device_id" yaml:"device_id"`
	Description string       `json:"description" yaml:"description"`
	// Path is the provider-specific location (render node, DXGI index).
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

func (a Adapter) String() string {
	return fmt.Sprintf("%s %016x (%s)", a.VendorID, uint64(a.LUID), a.Description)
}

// OpenOptions tune how a device is opened.
type OpenOptions struct {
	// MultithreadProtect serialises access to the device context. Intel
	// runtimes require it.
	MultithreadProtect bool
}

// Device is an open device. Handle is what backends receive as their
// device; the provider that opened it owns it.
type Device struct {
	Adapter Adapter
	Handle  uintptr
	Options OpenOptions
}

//go:generate mockgen -source=device.go -destination=mocks/mock_provider.go -package=mocks

// Provider enumerates adapters and hands out device handles.
type Provider interface {
	// Adapters lists adapters in provider order.
	Adapters(ctx context.Context) ([]Adapter, error)
	// Open opens a device on a.
	Open(ctx context.Context, a Adapter, opts OpenOptions) (*Device, error)
	// Close releases a device returned by Open.
	Close(d *Device) error
	// AllocateSurface creates a texture on d suitable as encoder input.
	AllocateSurface(d *Device, g codec.Geometry, f codec.PixelFormat) (backend.Texture, error)
	// FreeSurface releases a texture returned by AllocateSurface.
	FreeSurface(d *Device, t backend.Texture) error
}

// FilterVendor returns the adapters of vendor v, preserving order.
func FilterVendor(adapters []Adapter, v codec.Vendor) []Adapter {
	var out []Adapter
	for _, a := range adapters {
		if a.VendorID == v {
			out = append(out, a)
		}
	}
	return out
}

// OptionsFor returns the open options a driver needs.
func OptionsFor(d codec.Driver) OpenOptions {
	return OpenOptions{MultithreadProtect: d == codec.DriverMFX}
}

// Native returns the provider for the running platform.
func Native() Provider {
	return newNativeProvider()
}

func unsupportedSurface(op string) error {
	return &codec.Error{Op: op, Err: codec.ErrUnsupported, Detail: "surface allocation is not available on native devices"}
}
