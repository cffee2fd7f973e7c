package groove

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groove.click/internal/engine"
	"groove.click/internal/enginetest"
)

func TestOpenMissingFile(t *testing.T) {
	f, ok := Open("/does/not/exist.wav")
	assert.False(t, ok)
	assert.Nil(t, f)
}

func TestFileProperties(t *testing.T) {
	f := openFixture(t, "a.wav", enginetest.WAV{SampleRate: 22050, Channels: 1, Frames: 2205})
	defer f.Close()

	assert.Contains(t, f.Filename(), "a.wav")
	assert.InDelta(t, 0.1, f.Duration(), 1e-3)
	assert.False(t, f.IsDirty())
	assert.Equal(t, AudioFormat{
		SampleRate:    22050,
		ChannelLayout: LayoutMono,
		SampleFormat:  SampleFormat{Type: SampleTypeS16},
	}, f.AudioFormat())
}

func TestFileAliasesShareOneHandle(t *testing.T) {
	f := openFixture(t, "a.wav", enginetest.WAV{Frames: 10})
	h := f.h
	assert.Equal(t, 1, files.count(h))

	clone := f.Clone()
	assert.Same(t, h, clone.h)
	assert.Equal(t, 2, files.count(h))

	f.Close()
	assert.Equal(t, 1, files.count(h))
	assert.Equal(t, engine.OK, h.TagSet("k", "v", 0), "engine file stays open while an alias remains")

	clone.Close()
	assert.Zero(t, files.count(h))
	assert.Equal(t, engine.ErrInvalid, h.TagSet("k", "v", 0), "last alias closes the engine file")
}

func TestFileCloseTwicePanics(t *testing.T) {
	f := openFixture(t, "a.wav", enginetest.WAV{Frames: 10})
	f.Close()

	assert.PanicsWithValue(t, "groove: file closed twice", f.Close)
	assert.PanicsWithValue(t, "groove: use of closed file", func() { f.Duration() })
	assert.PanicsWithValue(t, "groove: use of closed file", func() { f.Clone() })
}

func TestFileMetadata(t *testing.T) {
	f := openFixture(t, "tagged.wav", enginetest.WAV{Frames: 10, Title: "Song", Artist: "Band"})
	defer f.Close()

	tag, ok := f.MetadataGet("TITLE", false)
	require.True(t, ok)
	assert.Equal(t, "Song", tag.Value)
	_, ok = f.MetadataGet("TITLE", true)
	assert.False(t, ok)

	got := map[string]string{}
	for tag := range f.Metadata() {
		got[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"title": "Song", "artist": "Band"}, got)

	require.NoError(t, f.MetadataSet("album", "Record", false))
	require.NoError(t, f.MetadataDelete("artist", false))
	assert.True(t, f.IsDirty())

	_, ok = f.MetadataGet("artist", false)
	assert.False(t, ok)

	require.NoError(t, f.Save())
	assert.False(t, f.IsDirty())

	err := f.MetadataSet("", "x", false)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestFileMetadataStopsEarly(t *testing.T) {
	f := openFixture(t, "tagged.wav", enginetest.WAV{Frames: 10, Title: "Song", Artist: "Band"})
	defer f.Close()

	n := 0
	for range f.Metadata() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}
