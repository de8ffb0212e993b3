package device

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

const (
	renderNodeGlob = "/dev/dri/renderD*"
	sysfsDRM       = "/sys/class/drm"
)

// drmProvider enumerates DRM render nodes. A device handle is the open file
// descriptor of the render node.
type drmProvider struct {
	devRoot  string
	sysfsDir string
}

func newNativeProvider() Provider {
	return &drmProvider{devRoot: filepath.Dir(renderNodeGlob), sysfsDir: sysfsDRM}
}

func readHex(path string) (uint64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(string(b)), "0x"), 16, 32)
}

// pciLUID derives a stable identity from the PCI address of the device.
func pciLUID(pciAddr string) int64 {
	h := fnv.New64a()
	h.Write([]byte(pciAddr))
	return int64(h.Sum64() &^ (1 << 63))
}

func (p *drmProvider) Adapters(ctx context.Context) ([]Adapter, error) {
	nodes, err := filepath.Glob(filepath.Join(p.devRoot, "renderD*"))
	if err != nil {
		return nil, fmt.Errorf("listing render nodes: %w", err)
	}
	sort.Strings(nodes)

	var adapters []Adapter
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return adapters, err
		}
		name := filepath.Base(node)
		devDir := filepath.Join(p.sysfsDir, name, "device")
		vendor, err := readHex(filepath.Join(devDir, "vendor"))
		if err != nil {
			continue
		}
		devID, _ := readHex(filepath.Join(devDir, "device"))
		pci, err := filepath.EvalSymlinks(devDir)
		if err != nil {
			pci = devDir
		}
		adapters = append(adapters, Adapter{
			LUID:        pciLUID(filepath.Base(pci)),
			VendorID:    codec.Vendor(vendor),
			DeviceID:    uint32(devID),
			Description: fmt.Sprintf("%s %s", codec.Vendor(vendor), filepath.Base(pci)),
			Path:        node,
		})
	}
	return adapters, nil
}

func (p *drmProvider) Open(ctx context.Context, a Adapter, opts OpenOptions) (*Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("adapter %016x: %w", uint64(a.LUID), ErrNotFound)
	}
	fd, err := unix.Open(a.Path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", a.Path, err)
	}
	return &Device{Adapter: a, Handle: uintptr(fd), Options: opts}, nil
}

func (p *drmProvider) Close(d *Device) error {
	if d == nil || d.Handle == 0 {
		return nil
	}
	fd := int(d.Handle)
	d.Handle = 0
	return unix.Close(fd)
}

func (p *drmProvider) AllocateSurface(*Device, codec.Geometry, codec.PixelFormat) (backend.Texture, error) {
	return 0, unsupportedSurface("allocate surface")
}

func (p *drmProvider) FreeSurface(*Device, backend.Texture) error {
	return nil
}
