package groove

import (
	"fmt"

	"groove.click/internal/engine"
)

// SampleType is the numeric type of one sample.
type SampleType int

const (
	SampleTypeNone SampleType = iota
	SampleTypeU8
	SampleTypeS16
	SampleTypeS32
	SampleTypeFlt
	SampleTypeDbl
)

func (t SampleType) String() string {
	switch t {
	case SampleTypeU8:
		return "u8"
	case SampleTypeS16:
		return "s16"
	case SampleTypeS32:
		return "s32"
	case SampleTypeFlt:
		return "flt"
	case SampleTypeDbl:
		return "dbl"
	default:
		return "none"
	}
}

// SampleFormat is a sample type plus its memory layout. Planar formats keep
// one buffer plane per channel; interleaved formats keep a single plane.
type SampleFormat struct {
	Type   SampleType
	Planar bool
}

// BytesPerSample returns the width of one sample, or 0 for SampleTypeNone.
func (f SampleFormat) BytesPerSample() int {
	return engine.SampleFmtBytes(f.code())
}

func (f SampleFormat) String() string {
	if f.Planar {
		return f.Type.String() + "p"
	}
	return f.Type.String()
}

func (f SampleFormat) code() int {
	if f.Type <= SampleTypeNone || f.Type > SampleTypeDbl {
		return engine.SampleFmtNone
	}
	code := int(f.Type-SampleTypeU8) + engine.SampleFmtU8
	if f.Planar {
		code += engine.SampleFmtU8P
	}
	return code
}

func sampleFormatFromCode(code int) SampleFormat {
	if code < engine.SampleFmtU8 || code > engine.SampleFmtDblP {
		return SampleFormat{}
	}
	return SampleFormat{
		Type:   SampleType(engine.PackedSampleFmt(code)-engine.SampleFmtU8) + SampleTypeU8,
		Planar: engine.SampleFmtIsPlanar(code),
	}
}

// ChannelLayout is a bit mask of speaker positions.
type ChannelLayout uint64

const (
	ChannelFrontLeft          = ChannelLayout(engine.ChFrontLeft)
	ChannelFrontRight         = ChannelLayout(engine.ChFrontRight)
	ChannelFrontCenter        = ChannelLayout(engine.ChFrontCenter)
	ChannelLowFrequency       = ChannelLayout(engine.ChLowFrequency)
	ChannelBackLeft           = ChannelLayout(engine.ChBackLeft)
	ChannelBackRight          = ChannelLayout(engine.ChBackRight)
	ChannelFrontLeftOfCenter  = ChannelLayout(engine.ChFrontLeftOfCenter)
	ChannelFrontRightOfCenter = ChannelLayout(engine.ChFrontRightOfCenter)
	ChannelBackCenter         = ChannelLayout(engine.ChBackCenter)
	ChannelSideLeft           = ChannelLayout(engine.ChSideLeft)
	ChannelSideRight          = ChannelLayout(engine.ChSideRight)

	LayoutMono   = ChannelLayout(engine.LayoutMono)
	LayoutStereo = ChannelLayout(engine.LayoutStereo)
)

// ChannelLayoutDefault returns the default layout for n channels.
func ChannelLayoutDefault(n int) ChannelLayout {
	return ChannelLayout(engine.ChannelLayoutDefault(n))
}

// Count returns the number of channels in the layout.
func (l ChannelLayout) Count() int {
	return engine.ChannelLayoutCount(uint64(l))
}

// AudioFormat describes a stream of samples.
type AudioFormat struct {
	SampleRate    int
	ChannelLayout ChannelLayout
	SampleFormat  SampleFormat
}

func (f AudioFormat) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %s", f.SampleRate, f.ChannelLayout.Count(), f.SampleFormat)
}

func (f AudioFormat) toEngine() engine.AudioFormat {
	return engine.AudioFormat{
		SampleRate:    f.SampleRate,
		ChannelLayout: uint64(f.ChannelLayout),
		SampleFmt:     f.SampleFormat.code(),
	}
}

func audioFormatFromEngine(f engine.AudioFormat) AudioFormat {
	return AudioFormat{
		SampleRate:    f.SampleRate,
		ChannelLayout: ChannelLayout(f.ChannelLayout),
		SampleFormat:  sampleFormatFromCode(f.SampleFmt),
	}
}
