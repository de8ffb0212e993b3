// Package session is the uniform entry point for hardware codec sessions.
// A session is bound to the backend that created it for its whole lifetime.
package session

import (
	"sync"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/backend/amf"
	"github.com/jmylchreest/hwcodec/internal/backend/mfx"
	"github.com/jmylchreest/hwcodec/internal/backend/nvenc"
	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/driver"
)

// Registry maps each driver to the factories that open its sessions.
type Registry struct {
	mu       sync.RWMutex
	encoders map[codec.Driver]backend.EncoderFactory
	decoders map[codec.Driver]backend.DecoderFactory
}

// NewRegistry returns a registry with a factory pair for every runtime
// bound in rt.
func NewRegistry(rt driver.Runtimes) *Registry {
	r := &Registry{
		encoders: make(map[codec.Driver]backend.EncoderFactory),
		decoders: make(map[codec.Driver]backend.DecoderFactory),
	}
	if rt.AMF != nil {
		f := amf.SessionFactory{Runtime: rt.AMF}
		r.Register(codec.DriverAMF, f, f)
	}
	if rt.MFX != nil {
		f := mfx.SessionFactory{Runtime: rt.MFX}
		r.Register(codec.DriverMFX, f, f)
	}
	if rt.NV != nil {
		f := nvenc.SessionFactory{Runtime: rt.NV, CUVID: rt.CUVID}
		r.Register(codec.DriverNV, f, f)
	}
	return r
}

// Register installs the factories for d. A nil factory removes that
// direction.
func (r *Registry) Register(d codec.Driver, enc backend.EncoderFactory, dec backend.DecoderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if enc != nil {
		r.encoders[d] = enc
	} else {
		delete(r.encoders, d)
	}
	if dec != nil {
		r.decoders[d] = dec
	} else {
		delete(r.decoders, d)
	}
}

// Encoder returns the encoder factory for d.
func (r *Registry) Encoder(d codec.Driver) (backend.EncoderFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.encoders[d]
	if !ok {
		return nil, &codec.Error{Op: "create encoder", Driver: d.String(), Err: codec.ErrUnavailable, Detail: "runtime not loaded"}
	}
	return f, nil
}

// Decoder returns the decoder factory for d.
func (r *Registry) Decoder(d codec.Driver) (backend.DecoderFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.decoders[d]
	if !ok {
		return nil, &codec.Error{Op: "create decoder", Driver: d.String(), Err: codec.ErrUnavailable, Detail: "runtime not loaded"}
	}
	return f, nil
}

// Drivers lists the drivers with an encoder factory, in candidate order.
func (r *Registry) Drivers() []codec.Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []codec.Driver
	for _, d := range codec.AllDrivers() {
		if _, ok := r.encoders[d]; ok {
			out = append(out, d)
		}
	}
	return out
}
