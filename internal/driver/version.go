package driver

import "fmt"

// amfVersion formats AMF_FULL_VERSION (major.minor.release.build, 16 bits each).
func amfVersion(v uint64) string {
	return fmt.Sprintf("%d.%d.%d.%d", v>>48&0xffff, v>>32&0xffff, v>>16&0xffff, v&0xffff)
}

// nvencVersion formats NVENCAPI_VERSION (major << 4 | minor).
func nvencVersion(v uint32) string {
	return fmt.Sprintf("%d.%d", v>>4, v&0xf)
}
