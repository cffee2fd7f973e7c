package engine

import (
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"
	mp3frames "github.com/tcolgate/mp3"
)

// Mp3Decoder handles MP3 audio format decoding
type Mp3Decoder struct{}

// NewMp3Decoder creates a new MP3 decoder instance
func NewMp3Decoder() *Mp3Decoder {
	return &Mp3Decoder{}
}

// FormatName returns the name of the format this decoder handles
func (d *Mp3Decoder) FormatName() string {
	return "MP3"
}

// CanDecode checks if this decoder can handle the given filename
func (d *Mp3Decoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".mp3") || strings.HasSuffix(lower, ".mpeg")
}

// Probe reads the first frame for the sample rate and walks the frame
// headers for a duration estimate
func (d *Mp3Decoder) Probe(r io.ReadSeeker) (*StreamInfo, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, ErrInvalidData
	}
	if decoder.SampleRate() <= 0 {
		return nil, ErrInvalidData
	}

	info := &StreamInfo{
		SampleRate: decoder.SampleRate(),
		Channels:   2, // go-mp3 always decodes to stereo
		SampleFmt:  SampleFmtS16,
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, ErrReadFailure
	}
	if dur, ok := mp3FrameDuration(r); ok {
		info.Duration = dur.Seconds()
	} else if length := decoder.Length(); length > 0 {
		info.Duration = float64(length/4) / float64(info.SampleRate)
	}
	return info, nil
}

// Stream converts the 16 bit stereo output of go-mp3 into planes as it is
// read
func (d *Mp3Decoder) Stream(r io.ReadSeeker) (FrameReader, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, ErrInvalidData
	}
	if decoder.SampleRate() <= 0 {
		return nil, ErrInvalidData
	}
	return &mp3FrameReader{decoder: decoder}, nil
}

type mp3FrameReader struct {
	decoder *mp3.Decoder
	buf     []byte
	pending []byte
	eof     bool
}

func (r *mp3FrameReader) SampleRate() int { return r.decoder.SampleRate() }
func (r *mp3FrameReader) Channels() int   { return 2 }

func (r *mp3FrameReader) ReadFrames(planes [][]float64) (int, error) {
	// 4 bytes per frame: left and right int16
	want := len(planes[0]) * 4
	if cap(r.buf) < want {
		r.buf = make([]byte, want)
	}

	for len(r.pending) < want && !r.eof {
		n, err := r.decoder.Read(r.buf[:want-len(r.pending)])
		r.pending = append(r.pending, r.buf[:n]...)
		if err == io.EOF || (err == nil && n == 0) {
			r.eof = true
		} else if err != nil {
			return 0, ErrReadFailure
		}
	}

	whole := min(len(r.pending)&^3, want)
	if whole == 0 {
		return 0, io.EOF
	}
	for i := 0; i < whole; i += 4 {
		left := int16(binary.LittleEndian.Uint16(r.pending[i:]))
		right := int16(binary.LittleEndian.Uint16(r.pending[i+2:]))
		planes[0][i/4] = float64(left) / 32768
		planes[1][i/4] = float64(right) / 32768
	}
	r.pending = r.pending[:copy(r.pending, r.pending[whole:])]
	return whole / 4, nil
}

// mp3FrameDuration sums frame durations; ok is false when no frame parses.
func mp3FrameDuration(r io.Reader) (time.Duration, bool) {
	dec := mp3frames.NewDecoder(r)

	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3frames.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) || frames > 0 {
				break
			}
			return 0, false
		}
		total += fr.Duration()
		frames++
	}
	return total, frames > 0
}
