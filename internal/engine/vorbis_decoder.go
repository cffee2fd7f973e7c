package engine

import (
	"fmt"
	"io"
	"strings"

	"github.com/jfreymuth/oggvorbis"
)

// VorbisDecoder handles Ogg Vorbis decoding
type VorbisDecoder struct{}

// NewVorbisDecoder creates a new Ogg Vorbis decoder instance
func NewVorbisDecoder() *VorbisDecoder {
	return &VorbisDecoder{}
}

// FormatName returns the name of the format this decoder handles
func (d *VorbisDecoder) FormatName() string {
	return "OGG"
}

// CanDecode checks if this decoder can handle the given filename
func (d *VorbisDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".ogg") || strings.HasSuffix(lower, ".oga")
}

// Probe reads the identification header and the last granule position
func (d *VorbisDecoder) Probe(r io.ReadSeeker) (*StreamInfo, error) {
	length, format, err := oggvorbis.GetLength(r)
	if err != nil && format == nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	info := &StreamInfo{
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		SampleFmt:  SampleFmtFltP,
	}
	if err == nil && length > 0 && format.SampleRate > 0 {
		info.Duration = float64(length) / float64(format.SampleRate)
	}
	return info, nil
}

// Stream deinterleaves the float32 output of oggvorbis as it is read
func (d *VorbisDecoder) Stream(r io.ReadSeeker) (FrameReader, error) {
	reader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if reader.Channels() == 0 || reader.SampleRate() == 0 {
		return nil, ErrInvalidData
	}
	return &vorbisFrameReader{reader: reader}, nil
}

type vorbisFrameReader struct {
	reader *oggvorbis.Reader
	buf    []float32
}

func (r *vorbisFrameReader) SampleRate() int { return r.reader.SampleRate() }
func (r *vorbisFrameReader) Channels() int   { return r.reader.Channels() }

func (r *vorbisFrameReader) ReadFrames(planes [][]float64) (int, error) {
	channels := len(planes)
	want := len(planes[0]) * channels
	if cap(r.buf) < want {
		r.buf = make([]float32, want)
	}

	n, err := r.reader.Read(r.buf[:want])
	frames := n / channels
	for i := 0; i < frames*channels; i++ {
		planes[i%channels][i/channels] = float64(r.buf[i])
	}

	if frames > 0 {
		return frames, nil
	}
	if err == nil || err == io.EOF {
		return 0, io.EOF
	}
	return 0, fmt.Errorf("%w: %v", ErrReadFailure, err)
}
