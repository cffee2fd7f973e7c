package playback

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groove.click"
	"groove.click/internal/enginetest"
)

var testFS = afero.NewMemMapFs()

func TestMain(m *testing.M) {
	groove.Init(
		groove.WithFs(testFS),
		groove.WithLogHandler(slog.NewTextHandler(io.Discard, nil)),
	)
	os.Exit(m.Run())
}

func TestIsValidBackendType(t *testing.T) {
	for _, name := range []string{"", "auto", "malgo", "oto"} {
		assert.True(t, IsValidBackendType(name), name)
	}
	assert.False(t, IsValidBackendType("pulse"))
	assert.Equal(t, []string{"auto", "malgo", "oto"}, SupportedBackends())
}

func TestNewBackendRejectsUnknownType(t *testing.T) {
	b, err := NewBackend("system_command")
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrInvalidBackendType)
}

func TestFormatValidate(t *testing.T) {
	assert.NoError(t, Format{SampleRate: 44100, Channels: 2}.validate())
	assert.Error(t, Format{SampleRate: 0, Channels: 2}.validate())
	assert.Error(t, Format{SampleRate: 44100}.validate())
}

func newPlayingSink(t *testing.T, samples []int) (*groove.Playlist, *groove.Sink) {
	t.Helper()
	path := "/" + t.Name() + ".wav"
	enginetest.MustWriteWAV(testFS, path, enginetest.WAV{Channels: 2, Samples: samples})
	f, ok := groove.Open(path)
	require.True(t, ok)
	t.Cleanup(f.Close)

	p := groove.NewPlaylist()
	p.Pause()
	p.Append(f, 1, 1)

	s := groove.NewSink()
	require.NoError(t, s.Attach(p))
	t.Cleanup(func() {
		s.Close()
		p.Close()
	})
	p.Play()
	return p, s
}

func TestSinkReaderStreamsEverySample(t *testing.T) {
	samples := enginetest.Ramp(2100, 2, 16, 3)
	_, s := newPlayingSink(t, samples)

	r := NewSinkReader(s)
	defer r.Close()

	// odd read sizes cross buffer boundaries
	var out []byte
	buf := make([]byte, 999)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	require.Len(t, out, len(samples)*2)
	for i, want := range samples {
		require.Equal(t, int16(want), int16(binary.LittleEndian.Uint16(out[i*2:])), "sample %d", i)
	}

	name, pos := r.Position()
	assert.Contains(t, name, t.Name())
	assert.Greater(t, pos, 0.0)

	n, err := r.Read(buf)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSinkReaderEndsOnDetach(t *testing.T) {
	p := groove.NewPlaylist()
	defer p.Close()
	p.Pause()

	s := groove.NewSink()
	defer s.Close()
	require.NoError(t, s.Attach(p))

	r := NewSinkReader(s)
	done := make(chan error, 1)
	go func() {
		_, err := r.Read(make([]byte, 64))
		done <- err
	}()

	s.Detach()
	assert.ErrorIs(t, <-done, io.EOF)
}

func TestBackendLifecycle(t *testing.T) {
	for _, name := range []string{"malgo", "oto"} {
		t.Run(name, func(t *testing.T) {
			b, err := NewBackend(name)
			if err != nil {
				t.Skipf("%s backend unavailable: %v", name, err)
			}
			assert.Equal(t, name, b.Name())
			require.NoError(t, b.Close())
			require.NoError(t, b.Close(), "closing twice is harmless")

			err = b.Play(context.Background(), nil, Format{SampleRate: 44100, Channels: 2})
			assert.ErrorIs(t, err, ErrBackendClosed)
		})
	}
}
