package device

import (
	"context"
	"fmt"
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

const (
	dxgiErrorNotFound             = 0x887A0002
	d3dDriverTypeUnknown          = 0x0
	d3d11SdkVersion               = 7
	d3d11CreateDeviceVideoSupport = 0x00000200
)

var (
	modDXGI                = windows.NewLazySystemDLL("dxgi.dll")
	procCreateDXGIFactory1 = modDXGI.NewProc("CreateDXGIFactory1")

	modD3D11              = windows.NewLazySystemDLL("d3d11.dll")
	procD3D11CreateDevice = modD3D11.NewProc("D3D11CreateDevice")

	iidIDXGIFactory1     = windows.GUID{Data1: 0x770aae78, Data2: 0xf26f, Data3: 0x4dba, Data4: [8]byte{0xa8, 0x29, 0x25, 0x3c, 0x83, 0xd1, 0xb3, 0x87}}
	iidID3D11Multithread = windows.GUID{Data1: 0x9b7e4e00, Data2: 0x342c, Data3: 0x4106, Data4: [8]byte{0xa1, 0x9f, 0x4f, 0x27, 0x04, 0xf6, 0x89, 0xf0}}
)

// dxgiProvider enumerates DXGI adapters and opens D3D11 devices with video
// support. The device handle is the ID3D11Device pointer.
type dxgiProvider struct{}

func newNativeProvider() Provider { return dxgiProvider{} }

func luidValue(l windows.LUID) int64 {
	return int64(l.HighPart)<<32 | int64(l.LowPart)
}

func (dxgiProvider) Adapters(ctx context.Context) ([]Adapter, error) {
	var out []Adapter
	err := eachAdapter(func(idx uint32, a *idxgiAdapter1, desc dxgiAdapterDesc1) bool {
		out = append(out, Adapter{
			LUID:        luidValue(desc.AdapterLuid),
			VendorID:    codec.Vendor(desc.VendorID),
			DeviceID:    desc.DeviceID,
			Description: windows.UTF16ToString(desc.Description[:]),
			Path:        fmt.Sprintf("dxgi:%d", idx),
		})
		return ctx.Err() == nil
	})
	if err != nil {
		return out, err
	}
	return out, ctx.Err()
}

func (dxgiProvider) Open(ctx context.Context, want Adapter, opts OpenOptions) (*Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var dev *iUnknown
	var openErr error
	found := false
	err := eachAdapter(func(_ uint32, a *idxgiAdapter1, desc dxgiAdapterDesc1) bool {
		if luidValue(desc.AdapterLuid) != want.LUID {
			return true
		}
		found = true
		dev, openErr = createDevice(a)
		return false
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("adapter %016x: %w", uint64(want.LUID), ErrNotFound)
	}
	if openErr != nil {
		return nil, openErr
	}
	if opts.MultithreadProtect {
		if err := setMultithreadProtected(dev); err != nil {
			releaseIUnknown(dev)
			return nil, err
		}
	}
	return &Device{Adapter: want, Handle: uintptr(unsafe.Pointer(dev)), Options: opts}, nil
}

func (dxgiProvider) Close(d *Device) error {
	if d == nil || d.Handle == 0 {
		return nil
	}
	releaseIUnknown((*iUnknown)(unsafe.Pointer(d.Handle)))
	d.Handle = 0
	return nil
}

func (dxgiProvider) AllocateSurface(*Device, codec.Geometry, codec.PixelFormat) (backend.Texture, error) {
	return 0, unsupportedSurface("allocate surface")
}

func (dxgiProvider) FreeSurface(*Device, backend.Texture) error {
	return nil
}

// eachAdapter calls fn for every adapter until it returns false.
func eachAdapter(fn func(idx uint32, a *idxgiAdapter1, desc dxgiAdapterDesc1) bool) error {
	if err := procCreateDXGIFactory1.Find(); err != nil {
		return &codec.Error{Op: "enumerate adapters", Err: codec.ErrUnavailable, Detail: err.Error()}
	}
	factory, err := createDXGIFactory1()
	if err != nil {
		return err
	}
	defer factory.Release()
	for idx := uint32(0); ; idx++ {
		adapter, hr := factory.enumAdapters1(idx)
		if hr == dxgiErrorNotFound {
			break
		}
		if hr != 0 {
			return hresultError(fmt.Sprintf("IDXGIFactory1::EnumAdapters1(%d)", idx), hr)
		}
		desc, err := adapter.describe()
		if err != nil {
			adapter.Release()
			return err
		}
		more := fn(idx, adapter, desc)
		adapter.Release()
		if !more {
			break
		}
	}
	runtime.KeepAlive(factory)
	return nil
}

func createDXGIFactory1() (*idxgiFactory1, error) {
	var factory *idxgiFactory1
	hr, _, _ := procCreateDXGIFactory1.Call(
		uintptr(unsafe.Pointer(&iidIDXGIFactory1)),
		uintptr(unsafe.Pointer(&factory)),
	)
	if failedHRESULT(hr) {
		return nil, hresultError("CreateDXGIFactory1", uint32(hr))
	}
	return factory, nil
}

func createDevice(adapter *idxgiAdapter1) (*iUnknown, error) {
	if err := procD3D11CreateDevice.Find(); err != nil {
		return nil, &codec.Error{Op: "open device", Err: codec.ErrUnavailable, Detail: err.Error()}
	}
	var dev *iUnknown
	var ctx *iUnknown
	hr, _, _ := procD3D11CreateDevice.Call(
		uintptr(unsafe.Pointer(adapter)),
		uintptr(d3dDriverTypeUnknown),
		0,
		uintptr(d3d11CreateDeviceVideoSupport),
		0,
		0,
		uintptr(d3d11SdkVersion),
		uintptr(unsafe.Pointer(&dev)),
		0,
		uintptr(unsafe.Pointer(&ctx)),
	)
	releaseIUnknown(ctx)
	if failedHRESULT(hr) {
		return nil, hresultError("D3D11CreateDevice", uint32(hr))
	}
	return dev, nil
}

type iMultithread struct {
	lpVtbl *iMultithreadVtbl
}

type iMultithreadVtbl struct {
	QueryInterface          uintptr
	AddRef                  uintptr
	Release                 uintptr
	Enter                   uintptr
	Leave                   uintptr
	SetMultithreadProtected uintptr
	GetMultithreadProtected uintptr
}

func setMultithreadProtected(dev *iUnknown) error {
	var mt *iMultithread
	hr, _, _ := syscall.Syscall(
		dev.lpVtbl.QueryInterface,
		3,
		uintptr(unsafe.Pointer(dev)),
		uintptr(unsafe.Pointer(&iidID3D11Multithread)),
		uintptr(unsafe.Pointer(&mt)),
	)
	if failedHRESULT(hr) {
		return hresultError("QueryInterface(ID3D11Multithread)", uint32(hr))
	}
	syscall.Syscall(mt.lpVtbl.SetMultithreadProtected, 2, uintptr(unsafe.Pointer(mt)), 1, 0)
	syscall.Syscall(mt.lpVtbl.Release, 1, uintptr(unsafe.Pointer(mt)), 0, 0)
	return nil
}

type idxgiFactory1 struct {
	lpVtbl *idxgiFactory1Vtbl
}

type idxgiFactory1Vtbl struct {
	QueryInterface          uintptr
	AddRef                  uintptr
	Release                 uintptr
	SetPrivateData          uintptr
	SetPrivateDataInterface uintptr
	GetPrivateData          uintptr
	GetParent               uintptr
	EnumAdapters            uintptr
	MakeWindowAssociation   uintptr
	GetWindowAssociation    uintptr
	CreateSwapChain         uintptr
	CreateSoftwareAdapter   uintptr
	EnumAdapters1           uintptr
	IsCurrent               uintptr
}

func (f *idxgiFactory1) enumAdapters1(index uint32) (*idxgiAdapter1, uint32) {
	var adapter *idxgiAdapter1
	hr, _, _ := syscall.Syscall(
		f.lpVtbl.EnumAdapters1,
		3,
		uintptr(unsafe.Pointer(f)),
		uintptr(index),
		uintptr(unsafe.Pointer(&adapter)),
	)
	if failedHRESULT(hr) {
		return nil, uint32(hr)
	}
	return adapter, 0
}

func (f *idxgiFactory1) Release() {
	if f == nil || f.lpVtbl == nil {
		return
	}
	syscall.Syscall(f.lpVtbl.Release, 1, uintptr(unsafe.Pointer(f)), 0, 0)
}

type idxgiAdapter1 struct {
	lpVtbl *idxgiAdapter1Vtbl
}

type idxgiAdapter1Vtbl struct {
	QueryInterface          uintptr
	AddRef                  uintptr
	Release                 uintptr
	SetPrivateData          uintptr
	SetPrivateDataInterface uintptr
	GetPrivateData          uintptr
	GetParent               uintptr
	EnumOutputs             uintptr
	GetDesc                 uintptr
	CheckInterfaceSupport   uintptr
	GetDesc1                uintptr
}

func (a *idxgiAdapter1) describe() (dxgiAdapterDesc1, error) {
	var desc dxgiAdapterDesc1
	hr, _, _ := syscall.Syscall(
		a.lpVtbl.GetDesc1,
		2,
		uintptr(unsafe.Pointer(a)),
		uintptr(unsafe.Pointer(&desc)),
		0,
	)
	if failedHRESULT(hr) {
		return dxgiAdapterDesc1{}, hresultError("IDXGIAdapter1::GetDesc1", uint32(hr))
	}
	return desc, nil
}

func (a *idxgiAdapter1) Release() {
	if a == nil || a.lpVtbl == nil {
		return
	}
	syscall.Syscall(a.lpVtbl.Release, 1, uintptr(unsafe.Pointer(a)), 0, 0)
}

type dxgiAdapterDesc1 struct {
	Description           [128]uint16
	VendorID              uint32
	DeviceID              uint32
	SubSysID              uint32
	Revision              uint32
	DedicatedVideoMemory  uint64
	DedicatedSystemMemory uint64
	SharedSystemMemory    uint64
	AdapterLuid           windows.LUID
	Flags                 uint32
}

type iUnknown struct {
	lpVtbl *iUnknownVtbl
}

type iUnknownVtbl struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr
}

func releaseIUnknown(obj *iUnknown) {
	if obj == nil || obj.lpVtbl == nil {
		return
	}
	syscall.Syscall(obj.lpVtbl.Release, 1, uintptr(unsafe.Pointer(obj)), 0, 0)
}

func failedHRESULT(hr uintptr) bool {
	return int32(hr) < 0
}

func hresultError(op string, hr uint32) error {
	return fmt.Errorf("%s failed (HRESULT=0x%08X)", op, hr)
}
