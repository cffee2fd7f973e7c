package groove

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groove.click/internal/engine"
)

func decodedBuffer(f SampleFormat, channels, frames int) *DecodedBuffer {
	planes := 1
	width := f.BytesPerSample() * channels
	if f.Planar {
		planes = channels
		width = f.BytesPerSample()
	}
	data := make([][]byte, planes)
	for i := range data {
		// uint64 backing keeps every view type aligned
		words := make([]uint64, (frames*width+7)/8)
		data[i] = unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), frames*width)
	}
	b := &engine.Buffer{
		Data: data,
		Format: engine.AudioFormat{
			SampleRate:    44100,
			ChannelLayout: engine.ChannelLayoutDefault(channels),
			SampleFmt:     f.code(),
		},
		FrameCount: frames,
		Size:       frames * f.BytesPerSample() * channels,
	}
	b.Ref()
	return &DecodedBuffer{bufferRef{b: b}}
}

func TestInterleavedView(t *testing.T) {
	b := decodedBuffer(SampleFormat{Type: SampleTypeS16}, 2, 4)
	samples := Interleaved[int16](b)
	require.Len(t, samples, 8)

	samples[3] = -2
	assert.Equal(t, []byte{0xFE, 0xFF}, b.Bytes()[6:8], "view aliases the buffer")

	assert.PanicsWithValue(t, "groove: channel view of interleaved buffer", func() { Channel[int16](b, 0) })
	assert.PanicsWithValue(t, "groove: s32 view of s16 buffer", func() { Interleaved[int32](b) })
	assert.Panics(t, func() { b.ChannelBytes(0) })
}

func TestChannelView(t *testing.T) {
	b := decodedBuffer(SampleFormat{Type: SampleTypeDbl, Planar: true}, 2, 3)
	left := Channel[float64](b, 0)
	right := Channel[float64](b, 1)
	assert.Len(t, left, 3)
	assert.Len(t, right, 3)

	right[2] = 0.5
	assert.Equal(t, 0.5, Channel[float64](b, 1)[2])
	assert.Zero(t, Channel[float64](b, 0)[2])

	assert.PanicsWithValue(t, "groove: interleaved view of planar buffer", func() { Interleaved[float64](b) })
	assert.PanicsWithValue(t, "groove: channel 2 out of range [0, 2)", func() { Channel[float64](b, 2) })
	assert.PanicsWithValue(t, "groove: channel -1 out of range [0, 2)", func() { Channel[float64](b, -1) })
	assert.PanicsWithValue(t, "groove: flt view of dbl buffer", func() { Channel[float32](b, 0) })
}

func TestViewTypeMatchesEveryFormat(t *testing.T) {
	types := []SampleType{SampleTypeU8, SampleTypeS16, SampleTypeS32, SampleTypeFlt, SampleTypeDbl}
	views := map[SampleType]func(b *DecodedBuffer, planar bool){
		SampleTypeU8:  func(b *DecodedBuffer, planar bool) { viewAs[uint8](b, planar) },
		SampleTypeS16: func(b *DecodedBuffer, planar bool) { viewAs[int16](b, planar) },
		SampleTypeS32: func(b *DecodedBuffer, planar bool) { viewAs[int32](b, planar) },
		SampleTypeFlt: func(b *DecodedBuffer, planar bool) { viewAs[float32](b, planar) },
		SampleTypeDbl: func(b *DecodedBuffer, planar bool) { viewAs[float64](b, planar) },
	}

	for _, planar := range []bool{false, true} {
		for _, bufType := range types {
			f := SampleFormat{Type: bufType, Planar: planar}
			b := decodedBuffer(f, 2, 5)
			for viewType, view := range views {
				if viewType == bufType {
					assert.NotPanics(t, func() { view(b, planar) }, "%s as %s", f, viewType)
				} else {
					assert.Panics(t, func() { view(b, planar) }, "%s as %s", f, viewType)
				}
			}
		}
	}
}

func viewAs[T Sample](b *DecodedBuffer, planar bool) {
	if planar {
		Channel[T](b, 1)
		return
	}
	Interleaved[T](b)
}

func TestBufferReleaseOnce(t *testing.T) {
	b := decodedBuffer(SampleFormat{Type: SampleTypeS16}, 1, 2)
	b.buf().Ref()
	assert.Equal(t, 2, b.buf().Refs())

	b.Release()
	assert.Equal(t, 1, b.b.Refs())
	assert.PanicsWithValue(t, "groove: buffer released twice", b.Release)
	assert.PanicsWithValue(t, "groove: use of released buffer", func() { b.FrameCount() })
	assert.PanicsWithValue(t, "groove: use of released buffer", func() { Interleaved[int16](b) })
}

func TestEncodedBufferBytes(t *testing.T) {
	b := &EncodedBuffer{bufferRef{b: &engine.Buffer{Data: [][]byte{[]byte("RIFF")}, Size: 4}}}
	assert.Equal(t, []byte("RIFF"), b.Bytes())
	assert.Nil(t, b.Item())
	assert.Equal(t, 4, b.Size())

	empty := &EncodedBuffer{bufferRef{b: &engine.Buffer{}}}
	assert.Nil(t, empty.Bytes())
}
