//go:build !windows

package nvenc

func deviceType() int { return DeviceTypeCUDA }

func resourceType() int { return ResourceCUDADevicePtr }
