package groove

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groove.click/internal/enginetest"
)

func TestSinkDeliversEverySample(t *testing.T) {
	samples := enginetest.Ramp(3000, 2, 16, 5)
	f := openFixture(t, "ramp.wav", enginetest.WAV{Samples: samples})
	defer f.Close()

	p := NewPlaylist()
	defer p.Close()
	p.Pause()
	p.Append(f, 1, 1)

	s := NewSink()
	defer s.Close()
	assert.Equal(t, AudioFormat{SampleRate: 44100, ChannelLayout: LayoutStereo, SampleFormat: SampleFormat{Type: SampleTypeS16}}, s.AudioFormat())
	require.NoError(t, s.Attach(p))
	assert.Equal(t, 44100*4, s.BytesPerSec())
	p.Play()

	var got []int
	var pts int64
	for {
		b, ok := s.BufferGetBlocking()
		if !ok {
			break
		}
		assert.Equal(t, pts, b.Pts())
		require.NotNil(t, b.Item())
		assert.Equal(t, b.FrameCount()*4, b.Size())
		for _, v := range Interleaved[int16](b) {
			got = append(got, int(v))
		}
		pts += int64(b.FrameCount())
		b.Release()
	}
	assert.Equal(t, samples, got)

	_, status := s.TryBufferGet()
	assert.Equal(t, BufferNo, status)
}

func TestSinkPlanarFloat(t *testing.T) {
	f := openFixture(t, "a.wav", enginetest.WAV{Channels: 2, Frames: 500})
	defer f.Close()

	p := NewPlaylist()
	defer p.Close()
	p.Pause()
	p.Append(f, 1, 1)

	s := NewSink()
	defer s.Close()
	s.SetAudioFormat(AudioFormat{SampleRate: 44100, ChannelLayout: LayoutStereo, SampleFormat: SampleFormat{Type: SampleTypeFlt, Planar: true}})
	s.SetBufferSampleCount(200)
	require.NoError(t, s.Attach(p))
	p.Play()

	var counts []int
	for {
		b, ok := s.BufferGetBlocking()
		if !ok {
			break
		}
		counts = append(counts, b.FrameCount())
		left := Channel[float32](b, 0)
		right := Channel[float32](b, 1)
		assert.Len(t, left, b.FrameCount())
		assert.Len(t, right, b.FrameCount())
		assert.Panics(t, func() { b.Bytes() })
		b.Release()
	}
	assert.Equal(t, []int{200, 200, 100}, counts)
}

func TestSinkAttachRules(t *testing.T) {
	p := NewPlaylist()
	defer p.Close()

	s := NewSink()
	require.NoError(t, s.Attach(p))
	assert.PanicsWithValue(t, "groove: sink already attached", func() { s.Attach(p) })

	s.Detach()
	s.Detach()
	require.NoError(t, s.Attach(p))

	s.Close()
	assert.ErrorIs(t, s.Attach(p), ErrClosed)
}

func TestSinkDetachUnblocksPull(t *testing.T) {
	p := NewPlaylist()
	defer p.Close()
	p.Pause()

	s := NewSink()
	defer s.Close()
	require.NoError(t, s.Attach(p))

	done := make(chan bool)
	go func() {
		_, ok := s.BufferGetBlocking()
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	s.Detach()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(waitFor):
		t.Fatal("pull stayed blocked after detach")
	}
}

func TestPlaylistCloseDetachesConsumers(t *testing.T) {
	p := NewPlaylist()
	p.Pause()

	s := NewSink()
	defer s.Close()
	enc := NewEncoder()
	defer enc.Close()
	require.NoError(t, s.Attach(p))
	require.NoError(t, enc.Attach(p))

	p.Close()

	_, ok := s.BufferGetBlocking()
	assert.False(t, ok)
	_, ok = enc.BufferGetBlocking()
	assert.False(t, ok)

	other := NewPlaylist()
	defer other.Close()
	assert.NoError(t, s.Attach(other), "a detached sink can join another playlist")
}

func TestAnySinkFullWaitsForSlowestSink(t *testing.T) {
	f := openFixture(t, "long.wav", enginetest.WAV{Frames: 10000})
	defer f.Close()

	p := NewPlaylist()
	defer p.Close()
	p.Pause()
	p.SetFillMode(AnySinkFull)
	p.Append(f, 1, 1)

	slow := NewSink()
	defer slow.Close()
	slow.SetBufferSize(1024)
	fast := NewSink()
	defer fast.Close()
	fast.SetBufferSize(1 << 20)
	require.NoError(t, slow.Attach(p))
	require.NoError(t, fast.Attach(p))
	p.Play()

	require.Eventually(t, func() bool { return slow.FillLevel() == 1024 }, waitFor, time.Millisecond)
	assert.Never(t, func() bool { return fast.FillLevel() > 1024 }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestEverySinkFullFeedsFastSink(t *testing.T) {
	f := openFixture(t, "long.wav", enginetest.WAV{Frames: 10000})
	defer f.Close()

	p := NewPlaylist()
	defer p.Close()
	p.Pause()
	p.Append(f, 1, 1)

	slow := NewSink()
	defer slow.Close()
	slow.SetBufferSize(1024)
	fast := NewSink()
	defer fast.Close()
	fast.SetBufferSize(1 << 20)
	require.NoError(t, slow.Attach(p))
	require.NoError(t, fast.Attach(p))
	p.Play()

	require.Eventually(t, func() bool { return fast.FillLevel() == 10000 }, waitFor, time.Millisecond)
}

func TestSinkGain(t *testing.T) {
	samples := make([]int, 200)
	for i := range samples {
		samples[i] = 8000
	}
	f := openFixture(t, "flat.wav", enginetest.WAV{Channels: 2, Samples: samples})
	defer f.Close()

	p := NewPlaylist()
	defer p.Close()
	p.Pause()
	p.Append(f, 1, 1)

	s := NewSink()
	defer s.Close()
	s.SetGain(0.5)
	assert.Equal(t, 0.5, s.Gain())
	require.NoError(t, s.Attach(p))
	p.Play()

	b, ok := s.BufferGetBlocking()
	require.True(t, ok)
	defer b.Release()
	for _, v := range Interleaved[int16](b) {
		assert.InDelta(t, 4000, int(v), 1)
	}
}

func TestSinkDisableResampleHasNoFixedRate(t *testing.T) {
	f := openFixture(t, "low.wav", enginetest.WAV{SampleRate: 8000, Channels: 1, Frames: 800})
	defer f.Close()

	p := NewPlaylist()
	defer p.Close()
	p.Pause()
	p.Append(f, 1, 1)

	s := NewSink()
	defer s.Close()
	s.SetDisableResample(true)
	require.NoError(t, s.Attach(p))
	assert.Zero(t, s.BytesPerSec())
	p.Play()

	b, ok := s.BufferGetBlocking()
	require.True(t, ok)
	assert.Equal(t, 8000, b.Format().SampleRate)
	b.Release()
}
