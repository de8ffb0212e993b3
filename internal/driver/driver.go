// Package driver loads the vendor codec runtimes once per process and
// reports which are present on this machine.
package driver

import (
	"fmt"
	"sync"

	"github.com/jmylchreest/hwcodec/internal/backend/amf"
	"github.com/jmylchreest/hwcodec/internal/backend/mfx"
	"github.com/jmylchreest/hwcodec/internal/backend/nvenc"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

// Handle is a loaded vendor runtime library. It is shared read-only state
// and never unloaded.
type Handle struct {
	Driver  codec.Driver
	Library string
	Version string
	lib     uintptr
}

// Info describes the runtime of one driver.
type Info struct {
	Driver  codec.Driver `json:"driver" yaml:"driver"`
	Present bool         `json:"present" yaml:"present"`
	Library string       `json:"library,omitempty" yaml:"library,omitempty"`
	Version string       `json:"version,omitempty" yaml:"version,omitempty"`
	Error   string       `json:"error,omitempty" yaml:"error,omitempty"`
}

type loadResult struct {
	once   sync.Once
	handle *Handle
	err    error
}

var (
	loadMu  sync.Mutex
	loaded  = make(map[codec.Driver]*loadResult)
	loadLib = platformLoad
)

// Load loads the runtime for d. The library is opened at most once per
// process; later calls return the cached result.
func Load(d codec.Driver) (*Handle, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: driver %d", codec.ErrUnsupported, int32(d))
	}
	loadMu.Lock()
	res, ok := loaded[d]
	if !ok {
		res = &loadResult{}
		loaded[d] = res
	}
	loadMu.Unlock()

	res.once.Do(func() {
		res.handle, res.err = loadLib(d)
		if res.err != nil {
			res.err = &codec.Error{Op: "load runtime", Driver: d.String(), Err: codec.ErrUnavailable, Detail: res.err.Error()}
		}
	})
	return res.handle, res.err
}

// Detect loads every driver runtime and reports the outcome per driver.
func Detect() []Info {
	out := make([]Info, 0, len(codec.AllDrivers()))
	for _, d := range codec.AllDrivers() {
		h, err := Load(d)
		info := Info{Driver: d}
		if err != nil {
			info.Error = err.Error()
		} else {
			info.Present = true
			info.Library = h.Library
			info.Version = h.Version
		}
		out = append(out, info)
	}
	return out
}

// Runtimes bundles the vendor entry tables the backends drive. A nil field
// means the driver is not available.
type Runtimes struct {
	AMF   amf.Runtime
	MFX   mfx.Runtime
	NV    nvenc.Runtime
	CUVID nvenc.CUVID
}

// Has reports whether the runtime for d is bound.
func (r Runtimes) Has(d codec.Driver) bool {
	switch d {
	case codec.DriverAMF:
		return r.AMF != nil
	case codec.DriverMFX:
		return r.MFX != nil
	case codec.DriverNV:
		return r.NV != nil
	default:
		return false
	}
}

// Native binds the runtimes whose libraries load on this machine.
func Native() Runtimes {
	var r Runtimes
	if h, err := Load(codec.DriverAMF); err == nil {
		r.AMF = nativeAMF{h}
	}
	if h, err := Load(codec.DriverMFX); err == nil {
		r.MFX = nativeMFX{h}
	}
	if h, err := Load(codec.DriverNV); err == nil {
		r.NV = nativeNV{h}
		r.CUVID = nativeCUVID{h}
	}
	return r
}

// reset drops cached load results.
func reset() {
	loadMu.Lock()
	defer loadMu.Unlock()
	loaded = make(map[codec.Driver]*loadResult)
}
