package probe

import (
	"cmp"
	"encoding/binary"
	"hash/fnv"
	"slices"

	"github.com/jmylchreest/hwcodec/internal/device"
)

// Signature hashes the adapter set so a stored probe run can be trusted
// only while the hardware is unchanged. Enumeration order does not matter.
func Signature(adapters []device.Adapter) uint64 {
	sorted := slices.Clone(adapters)
	slices.SortFunc(sorted, func(a, b device.Adapter) int {
		return cmp.Compare(a.LUID, b.LUID)
	})

	h := fnv.New64a()
	var buf [8]byte
	for _, a := range sorted {
		binary.LittleEndian.PutUint64(buf[:], uint64(a.LUID))
		h.Write(buf[:])
		binary.LittleEndian.PutUint32(buf[:4], uint32(a.VendorID))
		h.Write(buf[:4])
		binary.LittleEndian.PutUint32(buf[:4], a.DeviceID)
		h.Write(buf[:4])
		h.Write([]byte(a.Description))
		h.Write([]byte{0})
	}
	return h.Sum64()
}
