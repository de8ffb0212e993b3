package nvenc

func deviceType() int { return DeviceTypeDirectX }

func resourceType() int { return ResourceDirectXTexture }
