//go:build cgo

package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoBackend plays through miniaudio. The device context is created on
// the first Play.
type MalgoBackend struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	closed bool
}

func newMalgoBackend() (Backend, error) {
	slog.Debug("creating malgo backend")
	return &MalgoBackend{}, nil
}

func (mb *MalgoBackend) Name() string {
	return "malgo"
}

func (mb *MalgoBackend) audioContext() (*malgo.AllocatedContext, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.closed {
		return nil, ErrBackendClosed
	}
	if mb.ctx != nil {
		return mb.ctx, nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("malgo internal", "message", message)
	})
	if err != nil {
		slog.Error("failed to initialize audio context", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrBackendNotAvailable, err)
	}
	slog.Info("audio context initialized successfully")
	mb.ctx = ctx
	return ctx, nil
}

// Play opens a playback device and feeds it from pcm until pcm is drained
// or ctx is done.
func (mb *MalgoBackend) Play(ctx context.Context, pcm io.Reader, format Format) error {
	if err := format.validate(); err != nil {
		return err
	}
	audioCtx, err := mb.audioContext()
	if err != nil {
		return err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	slog.Debug("device configuration",
		"channels", format.Channels,
		"sample_rate", format.SampleRate)

	drained := make(chan error, 1)
	var once sync.Once
	finish := func(err error) {
		once.Do(func() { drained <- err })
	}

	onSamples := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		n, err := io.ReadFull(pcm, pOutputSample)
		// silence whatever the reader could not fill
		clear(pOutputSample[n:])
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				finish(nil)
				return
			}
			finish(err)
		}
	}

	device, err := malgo.InitDevice(audioCtx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		slog.Error("failed to initialize playback device", "error", err)
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		slog.Error("failed to start playback", "error", err)
		return fmt.Errorf("failed to start playback: %w", err)
	}
	slog.Debug("playback device started")

	select {
	case err = <-drained:
	case <-ctx.Done():
		err = ctx.Err()
		slog.Debug("playback cancelled")
	}

	if stopErr := device.Stop(); stopErr != nil {
		slog.Error("failed to stop playback device", "error", stopErr)
	}
	return err
}

// Close releases the audio context.
func (mb *MalgoBackend) Close() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.closed {
		slog.Debug("malgo backend already closed")
		return nil
	}
	mb.closed = true

	if mb.ctx == nil {
		return nil
	}
	// malgo requires both Uninit() and Free()
	if err := mb.ctx.Uninit(); err != nil {
		slog.Error("failed to uninitialize audio context", "error", err)
		return err
	}
	mb.ctx.Free()
	mb.ctx = nil

	slog.Debug("malgo backend closed")
	return nil
}
