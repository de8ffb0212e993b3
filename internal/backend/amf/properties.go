package amf

import (
	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
)

// Encoder property names per codec. AVC and HEVC use distinct names for the
// same concepts.
type encoderNames struct {
	component      string
	frameSize      string
	lowLatency     string
	qualityPreset  string
	rateControl    string
	profile        string
	level          string
	tier           string
	fullRange      string
	queryTimeout   string
	targetBitrate  string
	peakBitrate    string
	frameRate      string
	gop            string
	usage          string
	colorBitDepth  string
	bPicPattern    string
	outputDataType string
	pts            string
}

var avcNames = encoderNames{
	component:      ComponentEncoderAVC,
	frameSize:      "FrameSize",
	lowLatency:     "LowLatencyInternal",
	qualityPreset:  "QualityPreset",
	rateControl:    "RateControlMethod",
	profile:        "Profile",
	level:          "ProfileLevel",
	fullRange:      "FullRangeColor",
	queryTimeout:   "QueryTimeout",
	targetBitrate:  "TargetBitrate",
	peakBitrate:    "PeakBitrate",
	frameRate:      "FrameRate",
	gop:            "IDRPeriod",
	usage:          "Usage",
	colorBitDepth:  "ColorBitDepth",
	bPicPattern:    "BPicturesPattern",
	outputDataType: "OutputDataType",
	pts:            "PresentationTimeStamp",
}

var hevcNames = encoderNames{
	component:      ComponentEncoderHEVC,
	frameSize:      "HevcFrameSize",
	lowLatency:     "HevcLowLatencyMode",
	qualityPreset:  "HevcQualityPreset",
	rateControl:    "HevcRateControlMethod",
	profile:        "HevcProfile",
	level:          "HevcProfileLevel",
	tier:           "HevcTier",
	fullRange:      "HevcNominalRange",
	queryTimeout:   "HevcQueryTimeout",
	targetBitrate:  "HevcTargetBitrate",
	peakBitrate:    "HevcPeakBitrate",
	frameRate:      "HevcFrameRate",
	gop:            "HevcGOPSize",
	usage:          "HevcUsage",
	colorBitDepth:  "HevcColorBitDepth",
	outputDataType: "HevcOutputDataType",
	pts:            "PresentationTimeStamp",
}

func namesFor(k codec.Kind) encoderNames {
	if k == codec.HEVC {
		return hevcNames
	}
	return avcNames
}

// Enumerated property values.
const (
	usageLowLatency = 2

	avcQualitySpeed  = 1
	hevcQualitySpeed = 10

	avcRateCBR  = 1
	hevcRateCBR = 3

	avcProfileHigh = 100
	avcProfileMain = 77
	avcLevel51     = 51

	hevcProfileMain = 1
	hevcTierHigh    = 1
	hevcTierMain    = 0
	hevcLevel51     = 153

	hevcNominalRangeFull = 1

	colorBitDepth8 = 8

	queryTimeoutMs = 1000
)

// Output data types reported per encoded unit. Both codecs share values.
const (
	outputIDR = 0
	outputI   = 1
	outputP   = 2
	outputB   = 3
)

// isKeyframeType classifies an encoded unit from its output data type.
func isKeyframeType(v int64) bool {
	return v == outputIDR || v == outputI
}

// encoderProperties returns the classified init property table for p.
func encoderProperties(p backend.Params) []backend.Property {
	n := namesFor(p.Codec)
	hevc := p.Codec == codec.HEVC
	large := p.Geometry.Large()

	props := []backend.Property{
		backend.Optional(n.usage, usageLowLatency),
		backend.Required(n.frameSize, Size{Width: p.Geometry.Width, Height: p.Geometry.Height}),
		backend.Required(n.lowLatency, true),
	}
	if hevc {
		props = append(props,
			backend.Required(n.qualityPreset, hevcQualitySpeed),
			backend.Required(n.rateControl, hevcRateCBR),
			backend.Required(n.fullRange, hevcNominalRangeFull),
		)
		if large {
			props = append(props,
				backend.Required(n.profile, hevcProfileMain),
				backend.Required(n.tier, hevcTierHigh),
				backend.Required(n.level, hevcLevel51),
			)
		}
	} else {
		props = append(props,
			backend.Required(n.qualityPreset, avcQualitySpeed),
			backend.Required(n.rateControl, avcRateCBR),
			backend.Required(n.fullRange, false),
			backend.Optional(n.bPicPattern, 0),
		)
		if large {
			props = append(props,
				backend.Required(n.profile, avcProfileHigh),
				backend.Required(n.level, avcLevel51),
			)
		}
	}
	props = append(props,
		backend.Optional(n.colorBitDepth, colorBitDepth8),
		backend.Required(n.queryTimeout, queryTimeoutMs),
		backend.Required(n.targetBitrate, p.Rate.BitsPerSecond()),
		backend.Optional(n.peakBitrate, p.Rate.BitsPerSecond()),
		backend.Required(n.frameRate, Rate{Num: p.Rate.Framerate, Den: 1}),
		backend.Required(n.gop, p.Rate.GOP),
	)
	return props
}

func bitrateProperties(k codec.Kind, kbps int) []backend.Property {
	n := namesFor(k)
	bps := int64(kbps) * 1000
	return []backend.Property{
		backend.Required(n.targetBitrate, bps),
		backend.Optional(n.peakBitrate, bps),
	}
}

func framerateProperties(k codec.Kind, fps int) []backend.Property {
	return []backend.Property{
		backend.Required(namesFor(k).frameRate, Rate{Num: fps, Den: 1}),
	}
}

// Converter and decoder properties.
const (
	converterOutputFormat = "OutputFormat"
	converterOutputSize   = "OutputSize"
	converterMemoryType   = "MemoryType"

	decoderReorderMode  = "ReorderMode"
	decoderColorRange   = "ColorRange"
	decoderColorProfile = "ColorProfile"

	reorderLowLatency = 2
	colorRangeFull    = 2
	colorProfile709   = 2

	memoryDX11 = 3
)

func converterProperties(out SurfaceFormat, g codec.Geometry) []backend.Property {
	return []backend.Property{
		backend.Required(converterOutputFormat, int64(out)),
		backend.Required(converterOutputSize, Size{Width: g.Width, Height: g.Height}),
		backend.Optional(converterMemoryType, memoryDX11),
	}
}

func decoderProperties() []backend.Property {
	return []backend.Property{
		backend.Required(decoderReorderMode, reorderLowLatency),
		backend.Optional(decoderColorRange, colorRangeFull),
		backend.Optional(decoderColorProfile, colorProfile709),
	}
}

func surfaceFormat(f codec.PixelFormat) SurfaceFormat {
	switch f {
	case codec.NV12:
		return SurfaceNV12
	case codec.RGBA:
		return SurfaceRGBA
	default:
		return SurfaceBGRA
	}
}
