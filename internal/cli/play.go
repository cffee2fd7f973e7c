package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"groove.click"
	"groove.click/internal/playback"
)

func newPlayCommand() *cobra.Command {
	var backendName string
	var gain float64

	cmd := &cobra.Command{
		Use:   "play <file>...",
		Short: "Play files through the sound device",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, args, backendName, gain)
		},
	}

	cmd.Flags().StringVar(&backendName, "backend", "", "Playback backend (auto, malgo, oto); default from config")
	cmd.Flags().Float64Var(&gain, "gain", 1.0, "Playlist gain")
	return cmd
}

func runPlay(cmd *cobra.Command, args []string, backendName string, gain float64) error {
	cli, err := mustCLI(cmd)
	if err != nil {
		return err
	}

	if backendName == "" {
		backendName = cli.cfg.PlaybackBackend
	}
	if !playback.IsValidBackendType(backendName) {
		return fmt.Errorf("%w: %s (supported: %v)", playback.ErrInvalidBackendType, backendName, playback.SupportedBackends())
	}

	files, err := openInputs(cmd.Context(), args)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}

	playlist := groove.NewPlaylist()
	defer playlist.Close()
	sampleRate := files[0].AudioFormat().SampleRate
	for _, f := range files {
		playlist.Append(f, 1.0, 1.0)
		f.Close()
	}
	playlist.SetGain(gain)
	playlist.SetFillMode(fillModeFromConfig(cli.cfg.FillMode))

	sink := groove.NewSink()
	defer sink.Close()
	sink.SetAudioFormat(groove.AudioFormat{
		SampleRate:    sampleRate,
		ChannelLayout: groove.LayoutStereo,
		SampleFormat:  groove.SampleFormat{Type: groove.SampleTypeS16},
	})
	sink.SetBufferSize(cli.cfg.SinkBufferSize)
	if err := sink.Attach(playlist); err != nil {
		return fmt.Errorf("error attaching sink: %w", err)
	}

	backend, err := cli.backendFactory(backendName)
	if err != nil {
		return fmt.Errorf("failed to create playback backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			slog.Error("error closing playback backend", "error", err)
		}
	}()

	reader := playback.NewSinkReader(sink)
	defer reader.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cli.isInteractive(cmd.OutOrStdout()) {
		progressDone := make(chan struct{})
		progressCtx, cancelProgress := context.WithCancel(ctx)
		go func() {
			defer close(progressDone)
			showProgress(progressCtx, cmd.OutOrStdout(), reader)
		}()
		defer func() {
			cancelProgress()
			<-progressDone
		}()
	}

	slog.Info("playing",
		"files", len(args),
		"backend", backend.Name(),
		"sample_rate", sampleRate)

	format := playback.Format{SampleRate: sampleRate, Channels: 2}
	err = backend.Play(ctx, reader, format)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		slog.Info("playback interrupted")
		return nil
	default:
		return fmt.Errorf("playback failed: %w", err)
	}
}

// showProgress redraws the current file and position on one terminal line
// until ctx is done.
func showProgress(ctx context.Context, w io.Writer, reader *playback.SinkReader) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	width := terminalWidth(w, 80)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(w)
			return
		case <-ticker.C:
			name, pos := reader.Position()
			fmt.Fprint(w, "\r"+progressLine(filepath.Base(name), pos, width))
		}
	}
}

// progressLine formats "name  m:ss" padded or cut to width columns.
func progressLine(name string, pos float64, width int) string {
	secs := int(pos)
	clock := fmt.Sprintf("%d:%02d", secs/60, secs%60)
	line := name + "  " + clock
	if width <= 0 {
		return line
	}
	if r := []rune(line); len(r) > width {
		keep := width - len(clock) - 3
		if keep < 1 {
			return string(r[:width])
		}
		return string([]rune(name)[:min(keep, len([]rune(name)))]) + "~  " + clock
	}
	return fmt.Sprintf("%-*s", width, line)
}
