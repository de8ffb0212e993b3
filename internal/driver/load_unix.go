//go:build linux || darwin

package driver

import (
	"errors"
	"fmt"

	"github.com/ebitengine/purego"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

func libraryNames(d codec.Driver) []string {
	switch d {
	case codec.DriverAMF:
		return []string{"libamfrt64.so.1", "libamfrt64.so"}
	case codec.DriverNV:
		return []string{"libnvidia-encode.so.1", "libnvidia-encode.so"}
	case codec.DriverMFX:
		return []string{"libvpl.so.2", "libmfx.so.1", "libmfxhw64.so.1"}
	default:
		return nil
	}
}

func platformLoad(d codec.Driver) (*Handle, error) {
	var lastErr error
	for _, name := range libraryNames(d) {
		lib, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_LOCAL)
		if err != nil {
			lastErr = err
			continue
		}
		version, err := queryVersion(d, lib)
		if err != nil {
			purego.Dlclose(lib)
			lastErr = fmt.Errorf("%s: %w", name, err)
			continue
		}
		return &Handle{Driver: d, Library: name, Version: version, lib: lib}, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate library")
	}
	return nil, lastErr
}

func queryVersion(d codec.Driver, lib uintptr) (string, error) {
	switch d {
	case codec.DriverAMF:
		if _, err := purego.Dlsym(lib, "AMFQueryVersion"); err != nil {
			return "", err
		}
		var query func(version *uint64) int32
		purego.RegisterLibFunc(&query, lib, "AMFQueryVersion")
		v := new(uint64)
		if r := query(v); r != 0 {
			return "", fmt.Errorf("AMFQueryVersion returned %d", r)
		}
		return amfVersion(*v), nil
	case codec.DriverNV:
		if _, err := purego.Dlsym(lib, "NvEncodeAPIGetMaxSupportedVersion"); err != nil {
			return "", err
		}
		var query func(version *uint32) int32
		purego.RegisterLibFunc(&query, lib, "NvEncodeAPIGetMaxSupportedVersion")
		v := new(uint32)
		if r := query(v); r != 0 {
			return "", fmt.Errorf("NvEncodeAPIGetMaxSupportedVersion returned %d", r)
		}
		return nvencVersion(*v), nil
	default:
		if _, err := purego.Dlsym(lib, "MFXInitEx"); err != nil {
			return "", err
		}
		return "", nil
	}
}
