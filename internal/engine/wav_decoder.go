package engine

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/youpy/go-wav"
)

// WavDecoder handles WAV audio format decoding
type WavDecoder struct{}

// NewWavDecoder creates a new WAV decoder instance
func NewWavDecoder() *WavDecoder {
	return &WavDecoder{}
}

// FormatName returns the name of the format this decoder handles
func (d *WavDecoder) FormatName() string {
	return "WAV"
}

// CanDecode checks if this decoder can handle the given filename
func (d *WavDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".wav") || strings.HasSuffix(lower, ".wave")
}

// wavSource is an opened WAV file: its format and the true extent of the
// data chunk.
type wavSource struct {
	reader    *wav.Reader
	format    *wav.WavFormat
	dataBytes int64
}

func (d *WavDecoder) open(r io.ReadSeeker) (src *wavSource, err error) {
	// go-riff panics on truncated chunk headers
	defer func() {
		if p := recover(); p != nil {
			src, err = nil, fmt.Errorf("%w: %v", ErrInvalidData, p)
		}
	}()

	ra, size, err := readerAt(r)
	if err != nil {
		return nil, err
	}
	layout, err := scanRIFF(ra, size)
	if err != nil {
		return nil, err
	}
	data, ok := layout.find("data")
	if !ok || layout.form != "WAVE" {
		return nil, ErrInvalidData
	}

	reader := wav.NewReader(&patchedReader{r: ra, patches: layout.patches})
	format, err := reader.Format()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if format.NumChannels == 0 || format.SampleRate == 0 || format.BlockAlign == 0 {
		return nil, ErrInvalidData
	}
	// go-wav keeps at most two values per sample
	if format.NumChannels > 2 {
		return nil, fmt.Errorf("%w: %d channel wav", ErrUnsupportedFormat, format.NumChannels)
	}
	if _, err := wavSampleFmt(format); err != nil {
		return nil, err
	}

	return &wavSource{reader: reader, format: format, dataBytes: data.size}, nil
}

// frames is the number of whole frames in the data chunk. go-riff rounds
// odd chunk sizes up, so the pad byte must not be read as audio.
func (s *wavSource) frames() int64 {
	return s.dataBytes / int64(s.format.BlockAlign)
}

// Probe reads the fmt chunk and derives duration from the data chunk size
func (d *WavDecoder) Probe(r io.ReadSeeker) (*StreamInfo, error) {
	src, err := d.open(r)
	if err != nil {
		return nil, err
	}

	sampleFmt, _ := wavSampleFmt(src.format)
	return &StreamInfo{
		SampleRate: int(src.format.SampleRate),
		Channels:   int(src.format.NumChannels),
		SampleFmt:  sampleFmt,
		Duration:   float64(src.frames()) / float64(src.format.SampleRate),
	}, nil
}

// Stream reads samples through go-wav a chunk at a time
func (d *WavDecoder) Stream(r io.ReadSeeker) (FrameReader, error) {
	src, err := d.open(r)
	if err != nil {
		return nil, err
	}
	if src.frames() == 0 {
		return nil, ErrInvalidData
	}

	fr := &wavFrameReader{src: src, left: src.frames(), scale: wavScale(src.format)}
	if src.format.AudioFormat == wav.AudioFormatPCM && src.format.BitsPerSample == 8 {
		fr.offset = 128
	}
	return fr, nil
}

type wavFrameReader struct {
	src     *wavSource
	left    int64
	scale   float64
	offset  float64
	pending []wav.Sample
}

func (r *wavFrameReader) SampleRate() int { return int(r.src.format.SampleRate) }
func (r *wavFrameReader) Channels() int   { return int(r.src.format.NumChannels) }

func (r *wavFrameReader) ReadFrames(planes [][]float64) (n int, err error) {
	if r.left == 0 {
		return 0, io.EOF
	}
	if len(r.pending) == 0 {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}

	n = min(len(planes[0]), len(r.pending))
	if int64(n) > r.left {
		n = int(r.left)
	}
	for i, sample := range r.pending[:n] {
		for ch := range planes {
			planes[ch][i] = (float64(sample.Values[ch]) - r.offset) / r.scale
		}
	}
	r.pending = r.pending[n:]
	r.left -= int64(n)
	return n, nil
}

// fill reads the next block of samples. Blocks of the go-wav default size
// bypass its bufio buffer, which keeps every read frame aligned.
func (r *wavFrameReader) fill() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrReadFailure, p)
		}
	}()

	samples, err := r.src.reader.ReadSamples()
	if err != nil && err != io.EOF {
		return fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	if len(samples) == 0 {
		r.left = 0
		return io.EOF
	}
	r.pending = samples
	return nil
}

func wavSampleFmt(format *wav.WavFormat) (int, error) {
	switch format.AudioFormat {
	case wav.AudioFormatIEEEFloat:
		if format.BitsPerSample == 32 {
			return SampleFmtFlt, nil
		}
	case wav.AudioFormatPCM:
		switch format.BitsPerSample {
		case 8:
			return SampleFmtU8, nil
		case 16:
			return SampleFmtS16, nil
		case 24, 32:
			return SampleFmtS32, nil
		}
	case wav.AudioFormatALaw, wav.AudioFormatMULaw:
		return SampleFmtS16, nil
	}
	return SampleFmtNone, fmt.Errorf("%w: wav format %d with %d bits",
		ErrUnsupportedFormat, format.AudioFormat, format.BitsPerSample)
}

func wavScale(format *wav.WavFormat) float64 {
	switch format.AudioFormat {
	case wav.AudioFormatIEEEFloat:
		return math.MaxInt32
	case wav.AudioFormatALaw, wav.AudioFormatMULaw:
		// g711 expands to 16 bit samples
		return 1 << 15
	}
	return float64(int64(1) << (format.BitsPerSample - 1))
}
