package engine

import "math/bits"

// Sample format codes. Planar variants store one plane per channel.
const (
	SampleFmtNone = -1
	SampleFmtU8   = 0
	SampleFmtS16  = 1
	SampleFmtS32  = 2
	SampleFmtFlt  = 3
	SampleFmtDbl  = 4
	SampleFmtU8P  = 5
	SampleFmtS16P = 6
	SampleFmtS32P = 7
	SampleFmtFltP = 8
	SampleFmtDblP = 9
)

// Channel position bits.
const (
	ChFrontLeft          uint64 = 0x1
	ChFrontRight         uint64 = 0x2
	ChFrontCenter        uint64 = 0x4
	ChLowFrequency       uint64 = 0x8
	ChBackLeft           uint64 = 0x10
	ChBackRight          uint64 = 0x20
	ChFrontLeftOfCenter  uint64 = 0x40
	ChFrontRightOfCenter uint64 = 0x80
	ChBackCenter         uint64 = 0x100
	ChSideLeft           uint64 = 0x200
	ChSideRight          uint64 = 0x400

	LayoutMono   = ChFrontCenter
	LayoutStereo = ChFrontLeft | ChFrontRight
)

var defaultLayouts = []uint64{
	0,
	LayoutMono,
	LayoutStereo,
	LayoutStereo | ChFrontCenter,
	LayoutStereo | ChBackLeft | ChBackRight,
	LayoutStereo | ChFrontCenter | ChBackLeft | ChBackRight,
	LayoutStereo | ChFrontCenter | ChLowFrequency | ChBackLeft | ChBackRight,
	LayoutStereo | ChFrontCenter | ChLowFrequency | ChBackLeft | ChBackRight | ChBackCenter,
	LayoutStereo | ChFrontCenter | ChLowFrequency | ChBackLeft | ChBackRight | ChSideLeft | ChSideRight,
}

// AudioFormat describes sample rate, channel layout and sample format of a stream.
type AudioFormat struct {
	SampleRate    int
	ChannelLayout uint64
	SampleFmt     int
}

// Channels returns the number of channels in the layout.
func (f AudioFormat) Channels() int {
	return ChannelLayoutCount(f.ChannelLayout)
}

// FrameBytes returns the size in bytes of one frame across all channels.
func (f AudioFormat) FrameBytes() int {
	return f.Channels() * SampleFmtBytes(f.SampleFmt)
}

// ChannelLayoutDefault returns the conventional layout for n channels, or 0
// when there is none.
func ChannelLayoutDefault(n int) uint64 {
	if n <= 0 || n >= len(defaultLayouts) {
		return 0
	}
	return defaultLayouts[n]
}

// ChannelLayoutCount returns the number of channels set in layout.
func ChannelLayoutCount(layout uint64) int {
	return bits.OnesCount64(layout)
}

// SampleFmtBytes returns the width of one sample, or 0 for an unknown format.
func SampleFmtBytes(sampleFmt int) int {
	switch PackedSampleFmt(sampleFmt) {
	case SampleFmtU8:
		return 1
	case SampleFmtS16:
		return 2
	case SampleFmtS32, SampleFmtFlt:
		return 4
	case SampleFmtDbl:
		return 8
	default:
		return 0
	}
}

// SampleFmtIsPlanar reports whether sampleFmt stores one plane per channel.
func SampleFmtIsPlanar(sampleFmt int) bool {
	return sampleFmt >= SampleFmtU8P && sampleFmt <= SampleFmtDblP
}

// PackedSampleFmt returns the interleaved counterpart of sampleFmt.
func PackedSampleFmt(sampleFmt int) int {
	if SampleFmtIsPlanar(sampleFmt) {
		return sampleFmt - SampleFmtU8P
	}
	return sampleFmt
}

// SampleFmtName returns a short name for logging.
func SampleFmtName(sampleFmt int) string {
	names := []string{"u8", "s16", "s32", "flt", "dbl", "u8p", "s16p", "s32p", "fltp", "dblp"}
	if sampleFmt < 0 || sampleFmt >= len(names) {
		return "none"
	}
	return names[sampleFmt]
}

func validSampleFmt(sampleFmt int) bool {
	return sampleFmt >= SampleFmtU8 && sampleFmt <= SampleFmtDblP
}
