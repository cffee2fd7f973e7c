package engine

import (
	"sync/atomic"
	"unsafe"
)

// Buffer is one unit of produced audio. Decoded buffers carry one plane for
// interleaved formats and one plane per channel for planar formats. Encoded
// buffers carry a single plane of container bytes.
type Buffer struct {
	Data       [][]byte
	Format     AudioFormat
	FrameCount int
	Size       int
	Item       *Item   // nil for encoder headers and trailers
	Pos        float64 // seconds into Item
	Pts        int64   // frames since the consumer group started

	refs atomic.Int32
}

func newBuffer(refs int) *Buffer {
	b := &Buffer{}
	b.refs.Store(int32(refs))
	return b
}

// Ref adds a reference.
func (b *Buffer) Ref() {
	b.refs.Add(1)
}

// Unref drops a reference. The sample memory is returned when the last
// reference goes away. Dropping more references than were taken panics.
func (b *Buffer) Unref() {
	switch n := b.refs.Add(-1); {
	case n == 0:
		b.Data = nil
	case n < 0:
		panic("engine: buffer released more times than referenced")
	}
}

// Refs reports the number of outstanding references.
func (b *Buffer) Refs() int {
	return int(b.refs.Load())
}

// allocPlane returns n bytes backed by 8 byte aligned memory so that the
// plane can be viewed as any sample type.
func allocPlane(n int) []byte {
	if n == 0 {
		return nil
	}
	words := make([]uint64, (n+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), n)
}
