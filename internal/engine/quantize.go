package engine

import (
	"encoding/binary"
	"math"
)

// packPlanes converts normalized planes into the memory layout of sampleFmt.
// Interleaved formats produce a single plane.
func packPlanes(planes [][]float64, frames, sampleFmt int, order binary.ByteOrder) [][]byte {
	width := SampleFmtBytes(sampleFmt)
	packed := PackedSampleFmt(sampleFmt)
	channels := len(planes)

	if SampleFmtIsPlanar(sampleFmt) {
		out := make([][]byte, channels)
		for ch := range planes {
			out[ch] = allocPlane(frames * width)
			for i := 0; i < frames; i++ {
				putSample(out[ch][i*width:], planes[ch][i], packed, order)
			}
		}
		return out
	}

	out := allocPlane(frames * channels * width)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			putSample(out[(i*channels+ch)*width:], planes[ch][i], packed, order)
		}
	}
	return [][]byte{out}
}

func putSample(dst []byte, v float64, packed int, order binary.ByteOrder) {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}

	switch packed {
	case SampleFmtU8:
		dst[0] = uint8(clampInt(math.Round(v*128)+128, 0, math.MaxUint8))
	case SampleFmtS16:
		order.PutUint16(dst, uint16(int16(clampInt(math.Round(v*32768), math.MinInt16, math.MaxInt16))))
	case SampleFmtS32:
		order.PutUint32(dst, uint32(int32(clampInt(math.Round(v*2147483648), math.MinInt32, math.MaxInt32))))
	case SampleFmtFlt:
		order.PutUint32(dst, math.Float32bits(float32(v)))
	case SampleFmtDbl:
		order.PutUint64(dst, math.Float64bits(v))
	}
}

func clampInt(v, lo, hi float64) int64 {
	if v < lo {
		return int64(lo)
	}
	if v > hi {
		return int64(hi)
	}
	return int64(v)
}
