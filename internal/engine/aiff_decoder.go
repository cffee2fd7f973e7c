package engine

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
)

// AiffDecoder handles AIFF audio format decoding
type AiffDecoder struct{}

// NewAiffDecoder creates a new AIFF decoder instance
func NewAiffDecoder() *AiffDecoder {
	return &AiffDecoder{}
}

// FormatName returns the name of the format this decoder handles
func (d *AiffDecoder) FormatName() string {
	return "AIFF"
}

// CanDecode checks if this decoder can handle the given filename
func (d *AiffDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".aiff") || strings.HasSuffix(lower, ".aif")
}

func (d *AiffDecoder) open(r io.ReadSeeker) (*aiff.Decoder, int, error) {
	decoder := aiff.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, 0, ErrInvalidData
	}

	bitDepth := int(decoder.SampleBitDepth())
	if decoder.NumChans == 0 || decoder.SampleRate == 0 || bitDepth == 0 {
		return nil, 0, ErrInvalidData
	}
	if bitDepth > 32 {
		return nil, 0, fmt.Errorf("%w: %d bit aiff", ErrUnsupportedFormat, bitDepth)
	}
	return decoder, bitDepth, nil
}

// Probe reads the COMM chunk
func (d *AiffDecoder) Probe(r io.ReadSeeker) (*StreamInfo, error) {
	decoder, bitDepth, err := d.open(r)
	if err != nil {
		return nil, err
	}

	info := &StreamInfo{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		SampleFmt:  SampleFmtS16,
	}
	if bitDepth > 16 {
		info.SampleFmt = SampleFmtS32
	}
	if dur, err := decoder.Duration(); err == nil {
		info.Duration = dur.Seconds()
	}
	return info, nil
}

// Stream reads the SSND chunk through go-audio PCM buffers
func (d *AiffDecoder) Stream(r io.ReadSeeker) (FrameReader, error) {
	decoder, bitDepth, err := d.open(r)
	if err != nil {
		return nil, err
	}
	return &aiffFrameReader{
		decoder: decoder,
		scale:   float64(int64(1) << (bitDepth - 1)),
	}, nil
}

type aiffFrameReader struct {
	decoder *aiff.Decoder
	scale   float64
	buf     *audio.IntBuffer
}

func (r *aiffFrameReader) SampleRate() int { return int(r.decoder.SampleRate) }
func (r *aiffFrameReader) Channels() int   { return int(r.decoder.NumChans) }

func (r *aiffFrameReader) ReadFrames(planes [][]float64) (int, error) {
	channels := len(planes)
	want := len(planes[0]) * channels
	if r.buf == nil || cap(r.buf.Data) < want {
		r.buf = &audio.IntBuffer{Data: make([]int, want)}
	}
	r.buf.Data = r.buf.Data[:want]

	n, err := r.decoder.PCMBuffer(r.buf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}

	frames := n / channels
	if frames == 0 {
		return 0, io.EOF
	}
	for i := 0; i < frames*channels; i++ {
		planes[i%channels][i/channels] = float64(r.buf.Data[i]) / r.scale
	}
	return frames, nil
}
