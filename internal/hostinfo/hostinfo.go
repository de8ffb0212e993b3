// Package hostinfo describes the machine a probe ran on.
package hostinfo

import (
	"context"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Info is a snapshot of the host.
type Info struct {
	Hostname        string `json:"hostname" yaml:"hostname"`
	OS              string `json:"os" yaml:"os"`
	Arch            string `json:"arch" yaml:"arch"`
	Platform        string `json:"platform,omitempty" yaml:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty" yaml:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty" yaml:"kernel_version,omitempty"`
	CPUModel        string `json:"cpu_model,omitempty" yaml:"cpu_model,omitempty"`
	CPUCores        int    `json:"cpu_cores,omitempty" yaml:"cpu_cores,omitempty"`
	MemoryTotal     uint64 `json:"memory_total,omitempty" yaml:"memory_total,omitempty"`
}

// Collect gathers host details. Fields the platform cannot report are left
// empty.
func Collect(ctx context.Context) Info {
	hostname, _ := os.Hostname()
	info := Info{
		Hostname: hostname,
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
	}

	if h, err := host.InfoWithContext(ctx); err == nil {
		if h.Hostname != "" {
			info.Hostname = h.Hostname
		}
		info.Platform = h.Platform
		info.PlatformVersion = h.PlatformVersion
		info.KernelVersion = h.KernelVersion
	}

	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		models := make([]string, 0, 1)
		for _, c := range infos {
			if c.ModelName != "" && !slices.Contains(models, c.ModelName) {
				models = append(models, c.ModelName)
			}
		}
		info.CPUModel = strings.Join(models, ", ")
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUCores = n
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryTotal = vm.Total
	}
	return info
}
