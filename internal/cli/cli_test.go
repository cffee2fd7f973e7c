package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groove.click"
	"groove.click/internal/enginetest"
	"groove.click/internal/playback"
)

var testFS = afero.NewMemMapFs()

func TestMain(m *testing.M) {
	os.Setenv("GROOVE_TAG_DB", ":memory:")
	groove.Init(
		groove.WithFs(testFS),
		groove.WithLogHandler(slog.NewTextHandler(io.Discard, nil)),
	)
	os.Exit(m.Run())
}

// runCLI runs the command line against testFS and restores the default
// logger afterwards.
func runCLI(t *testing.T, c *CLI, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	original := slog.Default()
	defer slog.SetDefault(original)

	if c == nil {
		c = NewCLIWithFilesystem(testFS)
	}
	var out, errOut bytes.Buffer
	code = c.Run(append([]string{"groove"}, args...), strings.NewReader(""), &out, &errOut)
	return code, out.String(), errOut.String()
}

func fixture(t *testing.T, name string, w enginetest.WAV) string {
	t.Helper()
	p := path.Join("/fixtures", t.Name(), name)
	enginetest.MustWriteWAV(testFS, p, w)
	return p
}

func TestNewCLI(t *testing.T) {
	c := NewCLI()
	require.NotNil(t, c.rootCmd)
	assert.Equal(t, "groove", c.rootCmd.Use)

	var names []string
	for _, sub := range c.rootCmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"metadata", "transcode", "dump", "play", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCommand(t *testing.T) {
	code, stdout, _ := runCLI(t, nil, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "groove version "+Version)
	assert.Contains(t, stdout, "engine version 4.3.0 (4.3.0)")
}

func TestInvalidLogLevelFails(t *testing.T) {
	code, _, _ := runCLI(t, nil, "--log-level", "loud", "version")
	assert.Equal(t, 1, code)
}

func TestConfigFileOverridesDefaults(t *testing.T) {
	require.NoError(t, afero.WriteFile(testFS, "/etc/groove/config.toml",
		[]byte("log_level = \"error\"\nfill_mode = \"any\"\nsink_buffer_size = 1024\n"), 0644))

	c := NewCLIWithFilesystem(testFS)
	code, _, _ := runCLI(t, c, "--config", "/etc/groove/config.toml", "version")
	require.Equal(t, 0, code)
	assert.Equal(t, "any", c.cfg.FillMode)
	assert.Equal(t, 1024, c.cfg.SinkBufferSize)
}

func TestEnvFileIsLoaded(t *testing.T) {
	t.Setenv("GROOVE_BIT_RATE", "")
	os.Unsetenv("GROOVE_BIT_RATE")
	require.NoError(t, afero.WriteFile(testFS, "/etc/groove/test.env", []byte("GROOVE_BIT_RATE=128\n"), 0644))

	c := NewCLIWithFilesystem(testFS)
	code, _, _ := runCLI(t, c, "--env-file", "/etc/groove/test.env", "version")
	require.Equal(t, 0, code)
	assert.Equal(t, 128, c.cfg.EncoderBitRateKbps)
}

func TestMissingEnvFileFails(t *testing.T) {
	code, _, _ := runCLI(t, nil, "--env-file", "/nope.env", "version")
	assert.Equal(t, 1, code)
}

func TestEngineLogLevel(t *testing.T) {
	assert.Equal(t, groove.LogQuiet, engineLogLevel("quiet"))
	assert.Equal(t, groove.LogError, engineLogLevel("error"))
	assert.Equal(t, groove.LogWarning, engineLogLevel("warning"))
	assert.Equal(t, groove.LogInfo, engineLogLevel("info"))
	assert.Equal(t, groove.LogError, engineLogLevel(""))
}

func TestFillModeFromConfig(t *testing.T) {
	assert.Equal(t, groove.AnySinkFull, fillModeFromConfig("any"))
	assert.Equal(t, groove.EverySinkFull, fillModeFromConfig("every"))
	assert.Equal(t, groove.EverySinkFull, fillModeFromConfig(""))
}

type fakeTerminal struct{ terminal bool }

func (f fakeTerminal) IsTerminal(int) bool { return f.terminal }

func TestIsInteractive(t *testing.T) {
	c := NewCLIWithFilesystem(testFS)
	c.terminalDetector = fakeTerminal{terminal: true}

	assert.False(t, c.isInteractive(&bytes.Buffer{}), "non-file writers are never terminals")
	assert.True(t, c.isInteractive(os.Stdout))

	c.terminalDetector = fakeTerminal{}
	assert.False(t, c.isInteractive(os.Stdout))
}

func TestMetadataPrintsDurationAndTags(t *testing.T) {
	p := fixture(t, "song.wav", enginetest.WAV{SampleRate: 22050, Channels: 1, Frames: 2205, Title: "Song", Artist: "Band"})

	code, stdout, _ := runCLI(t, nil, "metadata", p)
	require.Equal(t, 0, code)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "duration="))
	d, err := strconv.ParseFloat(strings.TrimPrefix(lines[0], "duration="), 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, d, 1e-3)
	assert.ElementsMatch(t, []string{"title=Song", "artist=Band"}, lines[1:])
}

func TestMetadataEditsAreSaved(t *testing.T) {
	p := fixture(t, "song.wav", enginetest.WAV{Frames: 100, Title: "Song", Artist: "Band"})

	code, stdout, _ := runCLI(t, nil, "metadata", p, "--update", "album", "Record", "--delete", "artist")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "album=Record\n")
	assert.NotContains(t, stdout, "artist=")

	code, stdout, _ = runCLI(t, nil, "metadata", p)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "album=Record\n")
	assert.Contains(t, stdout, "title=Song\n")
	assert.NotContains(t, stdout, "artist=")
}

func TestMetadataUsageErrors(t *testing.T) {
	p := fixture(t, "song.wav", enginetest.WAV{Frames: 10})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no file", []string{"metadata"}, "missing file"},
		{"short update", []string{"metadata", p, "--update", "k"}, "--update requires 2 arguments"},
		{"short delete", []string{"metadata", p, "--delete"}, "--delete requires 1 argument"},
		{"unknown flag", []string{"metadata", p, "--bogus"}, "unexpected argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, nil, tt.args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, tt.want)
			assert.Contains(t, stderr, "Usage: groove metadata")
		})
	}
}

func TestMetadataRevert(t *testing.T) {
	p := fixture(t, "song.wav", enginetest.WAV{Frames: 10, Title: "Song"})

	code, stdout, stderr := runCLI(t, nil, "metadata", p, "--revert")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "title=Song\n")
}

func TestMetadataMissingFile(t *testing.T) {
	code, _, stderr := runCLI(t, nil, "metadata", "/fixtures/none.wav")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error opening file /fixtures/none.wav")
}

func TestParseMetadataArgs(t *testing.T) {
	req, err := parseMetadataArgs([]string{"a.wav", "--update", "k", "v", "--delete", "x", "--update", "k", "w"})
	require.NoError(t, err)
	assert.Equal(t, "a.wav", req.filename)
	assert.False(t, req.revert)
	assert.Equal(t, []metadataOp{
		{key: "k", value: "v"},
		{key: "x", delete: true},
		{key: "k", value: "w"},
	}, req.ops)

	req, err = parseMetadataArgs([]string{"a.wav", "--revert"})
	require.NoError(t, err)
	assert.True(t, req.revert)
	assert.Empty(t, req.ops)

	_, err = parseMetadataArgs(nil)
	assert.ErrorIs(t, err, errUsage)
}

func TestTranscodeJoinsInputs(t *testing.T) {
	a := fixture(t, "a.wav", enginetest.WAV{Frames: 1000})
	b := fixture(t, "b.wav", enginetest.WAV{Frames: 500})
	out := path.Join("/out", t.Name(), "joined.wav")
	require.NoError(t, testFS.MkdirAll(path.Dir(out), 0755))

	code, _, stderr := runCLI(t, nil, "transcode", a, b, "--output", out, "--bitrate", "128")
	require.Equal(t, 0, code, stderr)

	data, err := afero.ReadFile(testFS, out)
	require.NoError(t, err)
	require.Greater(t, len(data), 44)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.NotEqual(t, []byte{0xff, 0xff, 0xff, 0xff}, data[4:8], "header is patched")

	f, ok := groove.Open(out)
	require.True(t, ok)
	defer f.Close()
	assert.InDelta(t, 1500.0/44100.0, f.Duration(), 1e-3)
}

func TestTranscodeSingleInputKeepsFormatAndTags(t *testing.T) {
	in := fixture(t, "in.wav", enginetest.WAV{SampleRate: 22050, Channels: 1, Frames: 441, Title: "Song"})
	out := path.Join("/out", t.Name(), "copy.wav")
	require.NoError(t, testFS.MkdirAll(path.Dir(out), 0755))

	code, _, stderr := runCLI(t, nil, "transcode", in, "-o", out)
	require.Equal(t, 0, code, stderr)

	f, ok := groove.Open(out)
	require.True(t, ok)
	defer f.Close()
	assert.Equal(t, 22050, f.AudioFormat().SampleRate)
	assert.Equal(t, groove.LayoutMono, f.AudioFormat().ChannelLayout)
	tag, ok := f.MetadataGet("title", false)
	require.True(t, ok)
	assert.Equal(t, "Song", tag.Value)
}

func TestTranscodeRawFormat(t *testing.T) {
	in := fixture(t, "in.wav", enginetest.WAV{SampleRate: 8000, Channels: 1, Frames: 80})
	out := path.Join("/out", t.Name(), "samples.out")
	require.NoError(t, testFS.MkdirAll(path.Dir(out), 0755))

	code, _, stderr := runCLI(t, nil, "transcode", in, "-o", out, "--format", "s16le")
	require.Equal(t, 0, code, stderr)

	data, err := afero.ReadFile(testFS, out)
	require.NoError(t, err)
	assert.Len(t, data, 80*2)
}

func TestTranscodeErrors(t *testing.T) {
	in := fixture(t, "in.wav", enginetest.WAV{Frames: 10})

	code, _, _ := runCLI(t, nil, "transcode", in)
	assert.Equal(t, 1, code, "--output is required")

	code, _, stderr := runCLI(t, nil, "transcode", in, "/fixtures/none.wav", "-o", "/out/x.wav")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "error opening input file /fixtures/none.wav")

	code, _, stderr = runCLI(t, nil, "transcode", in, "-o", "/out/x.bin", "--format", "nosuch")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "error attaching encoder")
}

func TestOpenInputsKeepsArgumentOrder(t *testing.T) {
	var paths []string
	for _, name := range []string{"a.wav", "b.wav", "c.wav", "d.wav"} {
		paths = append(paths, fixture(t, name, enginetest.WAV{Frames: 10}))
	}

	files, err := openInputs(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, files, len(paths))
	for i, f := range files {
		assert.Equal(t, paths[i], f.Filename())
		f.Close()
	}
}

func TestDumpPrintsFrames(t *testing.T) {
	p := fixture(t, "s.wav", enginetest.WAV{SampleRate: 44100, Channels: 2, Samples: []int{1, -2, 300, -400, 5, 6}})

	code, stdout, stderr := runCLI(t, nil, "dump", p)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "1 -2\n300 -400\n5 6\n", stdout)
}

func TestDumpMissingFile(t *testing.T) {
	code, _, _ := runCLI(t, nil, "dump", "/fixtures/none.wav")
	assert.Equal(t, 1, code)
}

type fakeBackend struct {
	name   string
	bytes  int64
	format playback.Format
	closed bool
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Play(ctx context.Context, pcm io.Reader, format playback.Format) error {
	b.format = format
	n, err := io.Copy(io.Discard, pcm)
	b.bytes = n
	return err
}

func (b *fakeBackend) Close() error {
	b.closed = true
	return nil
}

func TestPlayStreamsEveryFrame(t *testing.T) {
	p := fixture(t, "s.wav", enginetest.WAV{SampleRate: 22050, Channels: 2, Frames: 3000})

	backend := &fakeBackend{name: "fake"}
	var requested string
	c := NewCLIWithFilesystem(testFS)
	c.backendFactory = func(name string) (playback.Backend, error) {
		requested = name
		return backend, nil
	}

	code, _, stderr := runCLI(t, c, "play", p, "--backend", "oto")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "oto", requested)
	assert.Equal(t, playback.Format{SampleRate: 22050, Channels: 2}, backend.format)
	assert.Equal(t, int64(3000*2*2), backend.bytes)
	assert.True(t, backend.closed)
}

func TestPlayRejectsUnknownBackend(t *testing.T) {
	p := fixture(t, "s.wav", enginetest.WAV{Frames: 10})
	code, _, _ := runCLI(t, nil, "play", p, "--backend", "alsa")
	assert.Equal(t, 1, code)
}

func TestProgressLine(t *testing.T) {
	assert.Equal(t, "song.wav  1:05", progressLine("song.wav", 65.4, 0))
	assert.Equal(t, "song.wav  0:00    ", progressLine("song.wav", 0, 18))

	line := progressLine("a-very-long-file-name.flac", 3, 16)
	assert.Len(t, line, 16)
	assert.True(t, strings.HasSuffix(line, "~  0:03"))
}

func TestConfigShow(t *testing.T) {
	code, stdout, stderr := runCLI(t, nil, "--log-level", "error", "config", "show")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, `"log_level": "error"`)
	assert.Contains(t, stdout, `"tag_database": ":memory:"`)
}

func TestConfigInit(t *testing.T) {
	p := path.Join("/cfg", t.Name(), "config.json")

	code, stdout, stderr := runCLI(t, nil, "config", "init", p)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "wrote "+p)

	data, err := afero.ReadFile(testFS, p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"fill_mode": "every"`)

	code, _, _ = runCLI(t, nil, "config", "init", p)
	assert.Equal(t, 1, code, "existing file needs --force")

	code, _, stderr = runCLI(t, nil, "config", "init", "--force", p)
	assert.Equal(t, 0, code, stderr)
}

func TestTerminalWidthFallback(t *testing.T) {
	assert.Equal(t, 80, terminalWidth(&bytes.Buffer{}, 80))
}
