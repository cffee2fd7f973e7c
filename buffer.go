package groove

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"groove.click/internal/engine"
)

// BufferStatus is the result of a non-blocking buffer pull.
type BufferStatus int

const (
	// BufferNo means no buffer is ready yet.
	BufferNo BufferStatus = engine.BufferNo
	// BufferYes means a buffer was returned.
	BufferYes BufferStatus = engine.BufferYes
	// BufferEnd means the end of the playlist was reached.
	BufferEnd BufferStatus = engine.BufferEnd
)

func (s BufferStatus) String() string {
	switch s {
	case BufferNo:
		return "no"
	case BufferYes:
		return "yes"
	case BufferEnd:
		return "end"
	default:
		return fmt.Sprintf("BufferStatus(%d)", int(s))
	}
}

// bufferRef holds one engine buffer reference and guards its release.
type bufferRef struct {
	b        *engine.Buffer
	released atomic.Bool
}

// Release returns the buffer to the engine. Releasing twice panics.
func (r *bufferRef) Release() {
	if r.released.Swap(true) {
		panic("groove: buffer released twice")
	}
	r.b.Unref()
}

func (r *bufferRef) buf() *engine.Buffer {
	if r.released.Load() {
		panic("groove: use of released buffer")
	}
	return r.b
}

// Item returns the playlist item the audio came from, or nil for encoder
// headers and trailers.
func (r *bufferRef) Item() *PlaylistItem {
	return wrapItem(r.buf().Item)
}

// Pos returns the offset of the buffer into its item in seconds.
func (r *bufferRef) Pos() float64 {
	return r.buf().Pos
}

// Pts returns the presentation timestamp in frames since the consumer
// started receiving audio.
func (r *bufferRef) Pts() int64 {
	return r.buf().Pts
}

// Format returns the audio format of the buffer.
func (r *bufferRef) Format() AudioFormat {
	return audioFormatFromEngine(r.buf().Format)
}

// FrameCount returns the number of frames in the buffer.
func (r *bufferRef) FrameCount() int {
	return r.buf().FrameCount
}

// Size returns the size of the buffer in bytes.
func (r *bufferRef) Size() int {
	return r.buf().Size
}

// DecodedBuffer is raw audio pulled from a Sink.
type DecodedBuffer struct {
	bufferRef
}

// EncodedBuffer is container data pulled from an Encoder.
type EncodedBuffer struct {
	bufferRef
}

// Bytes returns the encoded bytes.
func (b *EncodedBuffer) Bytes() []byte {
	data := b.buf().Data
	if len(data) == 0 {
		return nil
	}
	return data[0]
}

// Bytes returns the single plane of an interleaved buffer.
func (b *DecodedBuffer) Bytes() []byte {
	eb := b.buf()
	if engine.SampleFmtIsPlanar(eb.Format.SampleFmt) {
		panic("groove: interleaved view of planar buffer")
	}
	if len(eb.Data) == 0 {
		return nil
	}
	return eb.Data[0]
}

// ChannelBytes returns the plane of channel ch of a planar buffer.
func (b *DecodedBuffer) ChannelBytes(ch int) []byte {
	eb := b.buf()
	if !engine.SampleFmtIsPlanar(eb.Format.SampleFmt) {
		panic("groove: channel view of interleaved buffer")
	}
	if ch < 0 || ch >= len(eb.Data) {
		panic(fmt.Sprintf("groove: channel %d out of range [0, %d)", ch, len(eb.Data)))
	}
	return eb.Data[ch]
}

// Sample is a Go type a buffer can be viewed as.
type Sample interface {
	uint8 | int16 | int32 | float32 | float64
}

func sampleTypeOf[T Sample]() SampleType {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return SampleTypeU8
	case int16:
		return SampleTypeS16
	case int32:
		return SampleTypeS32
	case float32:
		return SampleTypeFlt
	default:
		return SampleTypeDbl
	}
}

func checkViewType[T Sample](f SampleFormat) {
	if want := sampleTypeOf[T](); f.Type != want {
		panic(fmt.Sprintf("groove: %s view of %s buffer", want, f.Type))
	}
}

// Interleaved views an interleaved buffer as FrameCount * channels samples.
// The view is valid until the buffer is released. It panics if T does not
// match the sample type or the buffer is planar.
func Interleaved[T Sample](b *DecodedBuffer) []T {
	f := b.Format()
	if f.SampleFormat.Planar {
		panic("groove: interleaved view of planar buffer")
	}
	checkViewType[T](f.SampleFormat)
	return view[T](b.Bytes(), b.FrameCount()*f.ChannelLayout.Count())
}

// Channel views one plane of a planar buffer as FrameCount samples. The view
// is valid until the buffer is released. It panics if T does not match the
// sample type, the buffer is interleaved or ch is out of range.
func Channel[T Sample](b *DecodedBuffer, ch int) []T {
	f := b.Format()
	if !f.SampleFormat.Planar {
		panic("groove: channel view of interleaved buffer")
	}
	checkViewType[T](f.SampleFormat)
	if n := f.ChannelLayout.Count(); ch < 0 || ch >= n {
		panic(fmt.Sprintf("groove: channel %d out of range [0, %d)", ch, n))
	}
	return view[T](b.ChannelBytes(ch), b.FrameCount())
}

func view[T Sample](data []byte, n int) []T {
	if n == 0 || len(data) == 0 {
		return nil
	}
	var zero T
	if len(data) < n*int(unsafe.Sizeof(zero)) {
		panic("groove: buffer shorter than its frame count")
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(data))), n)
}
