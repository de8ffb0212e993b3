//go:build !windows

package mfx

func implementation() int { return ImplHardwareAny | ImplViaVAAPI }

func deviceHandleKind() int { return HandleVADisplay }
