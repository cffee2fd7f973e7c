// Package enginetest writes audio fixtures for tests.
package enginetest

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// WAV describes a PCM WAV fixture.
type WAV struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int

	// Samples overrides the generated ramp. It holds interleaved values
	// for BitDepth.
	Samples []int

	Title  string
	Artist string
}

// Ramp returns interleaved samples where frame i of channel ch holds
// (i+1)*(ch+1)*step, wrapping below full scale of bitDepth.
func Ramp(frames, channels, bitDepth, step int) []int {
	limit := 1<<(bitDepth-1) - 1
	out := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = ((i + 1) * (ch + 1) * step) % limit
		}
	}
	return out
}

// Sine returns interleaved samples of a sine wave at freq Hz and the given
// amplitude relative to full scale.
func Sine(frames, channels, bitDepth, sampleRate int, freq, amplitude float64) []int {
	scale := float64(int(1)<<(bitDepth-1)-1) * amplitude
	out := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		v := int(math.Round(scale * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))))
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = v
		}
	}
	return out
}

func (w WAV) withDefaults() WAV {
	if w.SampleRate == 0 {
		w.SampleRate = 44100
	}
	if w.Channels == 0 {
		w.Channels = 2
	}
	if w.BitDepth == 0 {
		w.BitDepth = 16
	}
	if w.Samples == nil {
		if w.Frames == 0 {
			w.Frames = 4410
		}
		w.Samples = Ramp(w.Frames, w.Channels, w.BitDepth, 7)
	}
	w.Frames = len(w.Samples) / w.Channels
	return w
}

// WriteWAV writes the fixture to path on fs and returns the number of frames
// written.
func WriteWAV(fs afero.Fs, path string, w WAV) (int, error) {
	w = w.withDefaults()

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create fixture directory: %w", err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create fixture: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, w.SampleRate, w.BitDepth, w.Channels, 1)
	if w.Title != "" || w.Artist != "" {
		enc.Metadata = &wav.Metadata{Title: w.Title, Artist: w.Artist}
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: w.Channels, SampleRate: w.SampleRate},
		Data:           w.Samples,
		SourceBitDepth: w.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return 0, fmt.Errorf("failed to write fixture samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish fixture: %w", err)
	}
	return w.Frames, nil
}

// MustWriteWAV is WriteWAV for test setup.
func MustWriteWAV(fs afero.Fs, path string, w WAV) int {
	n, err := WriteWAV(fs, path, w)
	if err != nil {
		panic(err)
	}
	return n
}
