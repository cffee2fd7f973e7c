package engine

import (
	"bytes"
	"errors"
	"io"
)

// Common decoder errors
var (
	ErrInvalidData       = errors.New("invalid audio data")
	ErrReadFailure       = errors.New("failed to read audio data")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// StreamInfo describes the main audio stream of a file without decoding it.
type StreamInfo struct {
	SampleRate int
	Channels   int
	SampleFmt  int     // native sample format the decoder produces
	Duration   float64 // seconds, estimated from headers
}

// FrameReader decodes a stream a chunk at a time into planes normalized to
// [-1, 1].
type FrameReader interface {
	SampleRate() int
	Channels() int

	// ReadFrames fills up to len(planes[0]) frames of every plane and returns
	// how many it wrote. It returns io.EOF once the stream is exhausted.
	ReadFrames(planes [][]float64) (int, error)
}

// Decoder interface for audio format decoding
type Decoder interface {
	// Probe reads stream parameters and an estimated duration
	Probe(r io.ReadSeeker) (*StreamInfo, error)

	// Stream starts incremental decoding at the beginning of r. The reader
	// must stay open while frames are read.
	Stream(r io.ReadSeeker) (FrameReader, error)

	// CanDecode checks if this decoder can handle the given filename
	CanDecode(filename string) bool

	// FormatName returns the name of the format this decoder handles
	FormatName() string
}

func allocPlanes(channels, frames int) [][]float64 {
	planes := make([][]float64, channels)
	for ch := range planes {
		planes[ch] = make([]float64, frames)
	}
	return planes
}

// readerAt returns r as an io.ReaderAt along with its size, buffering it
// only when r cannot read at offsets itself.
func readerAt(r io.ReadSeeker) (io.ReaderAt, int64, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, ErrReadFailure
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, 0, ErrReadFailure
	}
	if ra, ok := r.(io.ReaderAt); ok {
		return ra, size, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, ErrReadFailure
	}
	return bytes.NewReader(data), int64(len(data)), nil
}
