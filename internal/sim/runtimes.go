package sim

import (
	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/driver"
)

// Runtimes binds the simulated vendor runtimes that are installed.
func (m *Machine) Runtimes() driver.Runtimes {
	var r driver.Runtimes
	if m.HasRuntime(codec.DriverAMF) {
		r.AMF = m.AMF()
	}
	if m.HasRuntime(codec.DriverMFX) {
		r.MFX = m.MFX()
	}
	if m.HasRuntime(codec.DriverNV) {
		r.NV = m.NV()
		r.CUVID = m.CUVID()
	}
	return r
}

// Drivers reports the simulated runtimes the way driver.Detect does.
func (m *Machine) Drivers() []driver.Info {
	out := make([]driver.Info, 0, 3)
	for _, d := range codec.AllDrivers() {
		info := driver.Info{Driver: d}
		if m.HasRuntime(d) {
			info.Present = true
			info.Library = "sim:" + d.String()
			info.Version = "sim"
		} else {
			info.Error = d.String() + ": runtime not installed"
		}
		out = append(out, info)
	}
	return out
}
