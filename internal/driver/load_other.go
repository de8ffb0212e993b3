//go:build !linux && !darwin && !windows

package driver

import (
	"fmt"
	"runtime"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

func platformLoad(d codec.Driver) (*Handle, error) {
	return nil, fmt.Errorf("%s runtime not supported on %s", d, runtime.GOOS)
}
