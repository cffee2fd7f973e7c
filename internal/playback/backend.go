// Package playback sends decoded sink audio to a sound device.
package playback

import (
	"context"
	"errors"
	"io"
)

var (
	ErrBackendNotAvailable = errors.New("playback backend not available")
	ErrBackendClosed       = errors.New("playback backend is closed")
	ErrInvalidBackendType  = errors.New("invalid playback backend type")
)

// Format describes the PCM a backend is fed: interleaved signed 16 bit
// little endian samples.
type Format struct {
	SampleRate int
	Channels   int
}

// Backend plays PCM read from a reader until it reports io.EOF or the
// context is cancelled.
type Backend interface {
	Name() string
	Play(ctx context.Context, pcm io.Reader, format Format) error
	Close() error
}

func (f Format) validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return errors.New("playback format needs a positive sample rate and channel count")
	}
	return nil
}
