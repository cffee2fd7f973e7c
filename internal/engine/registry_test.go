package engine

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groove.click/internal/enginetest"
)

func testRegistry() *DecoderRegistry {
	return NewDefaultRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDefaultRegistryFormats(t *testing.T) {
	r := testRegistry()
	assert.ElementsMatch(t, []string{"WAV", "MP3", "AIFF", "FLAC", "OGG"}, r.GetSupportedFormats())
}

func TestDetectFormatByExtension(t *testing.T) {
	r := testRegistry()

	testCases := map[string]string{
		"a.wav":   "WAV",
		"B.WAVE":  "WAV",
		"c.mp3":   "MP3",
		"d.aiff":  "AIFF",
		"e.aif":   "AIFF",
		"f.flac":  "FLAC",
		"g.ogg":   "OGG",
		"h.oga":   "OGG",
	}
	for name, want := range testCases {
		d := r.DetectFormat(name)
		if assert.NotNil(t, d, name) {
			assert.Equal(t, want, d.FormatName(), name)
		}
	}

	assert.Nil(t, r.DetectFormat("notes.txt"))
	assert.Nil(t, r.DetectFormat(""))
}

func TestDetectFormatByContent(t *testing.T) {
	memFS := afero.NewMemMapFs()
	enginetest.MustWriteWAV(memFS, "/x.wav", enginetest.WAV{Frames: 64})
	content, err := afero.ReadFile(memFS, "/x.wav")
	require.NoError(t, err)

	r := testRegistry()
	d := r.DetectFormatWithContent("no-extension", content)
	require.NotNil(t, d)
	assert.Equal(t, "WAV", d.FormatName())

	// magic bytes win over a misleading extension
	d = r.DetectFormatWithContent("mislabeled.mp3", content)
	require.NotNil(t, d)
	assert.Equal(t, "WAV", d.FormatName())
}

func TestProbeUnsupported(t *testing.T) {
	r := testRegistry()
	_, _, err := r.Probe("notes.txt", bytes.NewReader([]byte("hello")))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestScanRIFFClampsPlaceholders(t *testing.T) {
	memFS := afero.NewMemMapFs()
	enginetest.MustWriteWAV(memFS, "/x.wav", enginetest.WAV{Frames: 10, Channels: 1})
	content, err := afero.ReadFile(memFS, "/x.wav")
	require.NoError(t, err)

	layout, err := scanRIFF(bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	assert.Empty(t, layout.patches, "valid sizes are untouched")
	data, ok := layout.find("data")
	require.True(t, ok)
	assert.Equal(t, int64(20), data.size)

	streamed := bytes.Clone(content)
	binary.LittleEndian.PutUint32(streamed[4:], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(streamed[40:], 0xFFFFFFFF)

	layout, err = scanRIFF(bytes.NewReader(streamed), int64(len(streamed)))
	require.NoError(t, err)
	assert.Equal(t, uint32(len(streamed)-8), layout.patches[4])
	assert.Equal(t, uint32(len(streamed)-44), layout.patches[40])

	patched := &patchedReader{r: bytes.NewReader(streamed), patches: layout.patches}
	head := make([]byte, 44)
	_, err = patched.ReadAt(head, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(streamed)-8), binary.LittleEndian.Uint32(head[4:]))
	assert.Equal(t, uint32(0xFFFFFFFF), binary.LittleEndian.Uint32(streamed[4:]), "input is not modified")

	info, err := NewWavDecoder().Probe(bytes.NewReader(streamed))
	require.NoError(t, err)
	assert.Equal(t, 1, info.Channels)

	fr, err := NewWavDecoder().Stream(bytes.NewReader(streamed))
	require.NoError(t, err)
	pcm, err := readAll(fr)
	require.NoError(t, err)
	assert.Equal(t, 10, pcm.Frames())
}
