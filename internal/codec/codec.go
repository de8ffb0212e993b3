// Package codec defines the value types shared by every hardware codec
// backend: codec kinds, pixel formats, vendor and driver tags, geometry,
// rate control, packets and the error taxonomy surfaced at the boundary.
package codec

import (
	"fmt"
	"strings"
)

// Kind is the compressed bitstream format of a session.
// Values match the integer codes used at the external boundary.
type Kind int32

// Codec kinds.
const (
	H264 Kind = 0
	HEVC Kind = 1
)

// String returns the canonical lowercase name.
func (k Kind) String() string {
	switch k {
	case H264:
		return "h264"
	case HEVC:
		return "hevc"
	default:
		return fmt.Sprintf("kind(%d)", int32(k))
	}
}

// Valid reports whether k is a known codec kind.
func (k Kind) Valid() bool {
	return k == H264 || k == HEVC
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: codec kind %d", ErrUnsupported, int32(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

var kindAliases = map[string]Kind{
	"h264": H264,
	"avc":  H264,
	"avc1": H264,
	"0":    H264,
	"h265": HEVC,
	"hevc": HEVC,
	"hev1": HEVC,
	"hvc1": HEVC,
	"1":    HEVC,
}

// ParseKind parses a codec name or boundary code. Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: codec %q", ErrUnsupported, s)
	}
	return k, nil
}

// AllKinds returns every supported codec kind in boundary order.
func AllKinds() []Kind {
	return []Kind{H264, HEVC}
}

// PixelFormat is the layout of a GPU surface handed to or produced by a backend.
type PixelFormat int32

// Surface pixel formats.
const (
	NV12 PixelFormat = iota
	RGBA
	BGRA
)

// String returns the canonical uppercase name.
func (f PixelFormat) String() string {
	switch f {
	case NV12:
		return "NV12"
	case RGBA:
		return "RGBA"
	case BGRA:
		return "BGRA"
	default:
		return fmt.Sprintf("format(%d)", int32(f))
	}
}

// Validate rejects values outside the enumeration. Unknown formats are a
// configuration error and are never coerced.
func (f PixelFormat) Validate() error {
	switch f {
	case NV12, RGBA, BGRA:
		return nil
	default:
		return &Error{Op: "validate", Err: ErrConfigRejected, Property: "pixel_format", Code: int64(f)}
	}
}

// ParsePixelFormat parses a pixel format name.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NV12":
		return NV12, nil
	case "RGBA":
		return RGBA, nil
	case "BGRA", "ARGB":
		// D3D11 BGRA textures are registered as ARGB by NVENC.
		return BGRA, nil
	default:
		return 0, &Error{Op: "parse", Err: ErrConfigRejected, Property: "pixel_format", Detail: s}
	}
}

// Vendor is a PCI vendor id.
type Vendor uint32

// Known adapter vendors.
const (
	VendorUnknown Vendor = 0
	VendorAMD     Vendor = 0x1002
	VendorIntel   Vendor = 0x8086
	VendorNVIDIA  Vendor = 0x10DE
)

// String returns a short vendor name.
func (v Vendor) String() string {
	switch v {
	case VendorAMD:
		return "amd"
	case VendorIntel:
		return "intel"
	case VendorNVIDIA:
		return "nvidia"
	default:
		return fmt.Sprintf("0x%04x", uint32(v))
	}
}

// Driver tags the backend family that owns a session.
// Values match the vendor codes reported at the external boundary.
type Driver int32

// Backend families.
const (
	DriverNV  Driver = 0
	DriverAMF Driver = 1
	DriverMFX Driver = 2
)

// String returns the lowercase driver tag.
func (d Driver) String() string {
	switch d {
	case DriverNV:
		return "nv"
	case DriverAMF:
		return "amf"
	case DriverMFX:
		return "mfx"
	default:
		return fmt.Sprintf("driver(%d)", int32(d))
	}
}

// Vendor returns the adapter vendor a driver runs on.
func (d Driver) Vendor() Vendor {
	switch d {
	case DriverNV:
		return VendorNVIDIA
	case DriverAMF:
		return VendorAMD
	case DriverMFX:
		return VendorIntel
	default:
		return VendorUnknown
	}
}

// Valid reports whether d is a known driver tag.
func (d Driver) Valid() bool {
	return d == DriverNV || d == DriverAMF || d == DriverMFX
}

// MarshalText implements encoding.TextMarshaler.
func (d Driver) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: driver %d", ErrUnsupported, int32(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Driver) UnmarshalText(text []byte) error {
	parsed, err := ParseDriver(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDriver parses a driver tag. Accepts the short tags and the common
// vendor-facing names (nvenc, qsv, amd...).
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nv", "nvenc", "nvidia", "cuda":
		return DriverNV, nil
	case "amf", "amd":
		return DriverAMF, nil
	case "mfx", "qsv", "intel", "vpl":
		return DriverMFX, nil
	default:
		return 0, fmt.Errorf("%w: driver %q", ErrUnsupported, s)
	}
}

// DriverForVendor maps an adapter vendor to the backend that drives it.
func DriverForVendor(v Vendor) (Driver, bool) {
	switch v {
	case VendorNVIDIA:
		return DriverNV, true
	case VendorAMD:
		return DriverAMF, true
	case VendorIntel:
		return DriverMFX, true
	default:
		return 0, false
	}
}

// AllDrivers returns the drivers in the order candidates are evaluated.
func AllDrivers() []Driver {
	return []Driver{DriverNV, DriverAMF, DriverMFX}
}
