package mfx

func implementation() int { return ImplHardwareAny | ImplViaD3D11 }

func deviceHandleKind() int { return HandleD3D11Device }
