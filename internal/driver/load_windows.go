//go:build windows

package driver

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

func libraryNames(d codec.Driver) []string {
	switch d {
	case codec.DriverAMF:
		return []string{"amfrt64.dll"}
	case codec.DriverNV:
		return []string{"nvEncodeAPI64.dll"}
	case codec.DriverMFX:
		return []string{"libvpl.dll", "libmfxhw64.dll"}
	default:
		return nil
	}
}

func platformLoad(d codec.Driver) (*Handle, error) {
	var lastErr error
	for _, name := range libraryNames(d) {
		dll := windows.NewLazySystemDLL(name)
		if err := dll.Load(); err != nil {
			lastErr = err
			continue
		}
		version, err := queryVersion(d, dll)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", name, err)
			continue
		}
		return &Handle{Driver: d, Library: name, Version: version, lib: dll.Handle()}, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate library")
	}
	return nil, lastErr
}

func queryVersion(d codec.Driver, dll *windows.LazyDLL) (string, error) {
	switch d {
	case codec.DriverAMF:
		proc := dll.NewProc("AMFQueryVersion")
		if err := proc.Find(); err != nil {
			return "", err
		}
		var v uint64
		if r, _, _ := proc.Call(uintptr(unsafe.Pointer(&v))); int32(r) != 0 {
			return "", fmt.Errorf("AMFQueryVersion returned %d", int32(r))
		}
		return amfVersion(v), nil
	case codec.DriverNV:
		proc := dll.NewProc("NvEncodeAPIGetMaxSupportedVersion")
		if err := proc.Find(); err != nil {
			return "", err
		}
		var v uint32
		if r, _, _ := proc.Call(uintptr(unsafe.Pointer(&v))); int32(r) != 0 {
			return "", fmt.Errorf("NvEncodeAPIGetMaxSupportedVersion returned %d", int32(r))
		}
		return nvencVersion(v), nil
	default:
		return "", dll.NewProc("MFXInitEx").Find()
	}
}
