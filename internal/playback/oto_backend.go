//go:build cgo

package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process, fixed to the format it was created
// with.
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat Format
)

func otoContext(format Format) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoFormat != format {
			return nil, fmt.Errorf("%w: oto context already running at %d Hz, %d channels",
				ErrBackendNotAvailable, otoFormat.SampleRate, otoFormat.Channels)
		}
		return otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		slog.Error("failed to create oto context", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrBackendNotAvailable, err)
	}
	<-ready

	otoCtx = ctx
	otoFormat = format
	slog.Info("oto context initialized", "sample_rate", format.SampleRate, "channels", format.Channels)
	return ctx, nil
}

// OtoBackend plays through oto.
type OtoBackend struct {
	mu     sync.Mutex
	closed bool
	poll   time.Duration
}

func newOtoBackend() (Backend, error) {
	slog.Debug("creating oto backend")
	return &OtoBackend{poll: 10 * time.Millisecond}, nil
}

func (ob *OtoBackend) Name() string {
	return "oto"
}

// Play streams pcm through an oto player until the player runs dry or ctx is
// done.
func (ob *OtoBackend) Play(ctx context.Context, pcm io.Reader, format Format) error {
	ob.mu.Lock()
	closed := ob.closed
	ob.mu.Unlock()
	if closed {
		return ErrBackendClosed
	}
	if err := format.validate(); err != nil {
		return err
	}

	otoCtx, err := otoContext(format)
	if err != nil {
		return err
	}

	player := otoCtx.NewPlayer(pcm)
	defer func() {
		if err := player.Close(); err != nil {
			slog.Error("failed to close oto player", "error", err)
		}
	}()
	player.Play()

	ticker := time.NewTicker(ob.poll)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			slog.Debug("playback cancelled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return player.Err()
}

// Close marks the backend closed. The shared oto context lives until the
// process exits.
func (ob *OtoBackend) Close() error {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.closed = true
	return nil
}
