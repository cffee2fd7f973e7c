package groove

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"groove.click/internal/engine"
)

func TestSampleFormatCodes(t *testing.T) {
	tests := []struct {
		format SampleFormat
		code   int
		bytes  int
		name   string
	}{
		{SampleFormat{}, engine.SampleFmtNone, 0, "none"},
		{SampleFormat{Type: SampleTypeU8}, engine.SampleFmtU8, 1, "u8"},
		{SampleFormat{Type: SampleTypeS16}, engine.SampleFmtS16, 2, "s16"},
		{SampleFormat{Type: SampleTypeS32}, engine.SampleFmtS32, 4, "s32"},
		{SampleFormat{Type: SampleTypeFlt}, engine.SampleFmtFlt, 4, "flt"},
		{SampleFormat{Type: SampleTypeDbl}, engine.SampleFmtDbl, 8, "dbl"},
		{SampleFormat{Type: SampleTypeU8, Planar: true}, engine.SampleFmtU8P, 1, "u8p"},
		{SampleFormat{Type: SampleTypeS16, Planar: true}, engine.SampleFmtS16P, 2, "s16p"},
		{SampleFormat{Type: SampleTypeS32, Planar: true}, engine.SampleFmtS32P, 4, "s32p"},
		{SampleFormat{Type: SampleTypeFlt, Planar: true}, engine.SampleFmtFltP, 4, "fltp"},
		{SampleFormat{Type: SampleTypeDbl, Planar: true}, engine.SampleFmtDblP, 8, "dblp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.format.code())
			assert.Equal(t, tt.bytes, tt.format.BytesPerSample())
			assert.Equal(t, tt.name, tt.format.String())
			if tt.code != engine.SampleFmtNone {
				assert.Equal(t, tt.format, sampleFormatFromCode(tt.code))
			}
		})
	}
	assert.Equal(t, SampleFormat{}, sampleFormatFromCode(42))
}

func TestChannelLayout(t *testing.T) {
	assert.Equal(t, 1, LayoutMono.Count())
	assert.Equal(t, 2, LayoutStereo.Count())
	assert.Equal(t, ChannelFrontLeft|ChannelFrontRight, LayoutStereo)
	assert.Equal(t, LayoutMono, ChannelLayoutDefault(1))
	assert.Equal(t, LayoutStereo, ChannelLayoutDefault(2))
	assert.Equal(t, 6, ChannelLayoutDefault(6).Count())
}

func TestAudioFormatRoundTrip(t *testing.T) {
	f := AudioFormat{SampleRate: 48000, ChannelLayout: LayoutStereo, SampleFormat: SampleFormat{Type: SampleTypeFlt, Planar: true}}
	assert.Equal(t, f, audioFormatFromEngine(f.toEngine()))
	assert.Equal(t, "48000 Hz, 2 ch, fltp", f.String())
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "every", EverySinkFull.String())
	assert.Equal(t, "unknown", FillMode(5).String())
	assert.Equal(t, "yes", BufferYes.String())
	assert.Equal(t, "end", BufferEnd.String())
	assert.Equal(t, "BufferStatus(9)", BufferStatus(9).String())
}
