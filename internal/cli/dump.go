package cli

import (
	"bufio"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"groove.click"
)

func newDumpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file>...",
		Short: "Print decoded samples as text",
		Long:  "Decodes the files to 44100 Hz stereo signed 16 bit audio and prints one \"left right\" line per frame.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, args)
		},
	}
}

func runDump(cmd *cobra.Command, args []string) error {
	cli, err := mustCLI(cmd)
	if err != nil {
		return err
	}

	files, err := openInputs(cmd.Context(), args)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}

	playlist := groove.NewPlaylist()
	defer playlist.Close()
	for _, f := range files {
		playlist.Append(f, 1.0, 1.0)
		f.Close()
	}

	sink := groove.NewSink()
	defer sink.Close()
	sink.SetAudioFormat(groove.AudioFormat{
		SampleRate:    44100,
		ChannelLayout: groove.LayoutStereo,
		SampleFormat:  groove.SampleFormat{Type: groove.SampleTypeS16},
	})
	sink.SetBufferSize(cli.cfg.SinkBufferSize)
	if err := sink.Attach(playlist); err != nil {
		return fmt.Errorf("error attaching sink: %w", err)
	}

	w := bufio.NewWriter(cmd.OutOrStdout())
	frames := 0
	for {
		buf, ok := sink.BufferGetBlocking()
		if !ok {
			break
		}
		samples := groove.Interleaved[int16](buf)
		for i := 0; i+1 < len(samples); i += 2 {
			fmt.Fprintf(w, "%d %d\n", samples[i], samples[i+1])
		}
		frames += buf.FrameCount()
		buf.Release()
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}

	slog.Debug("dump complete", "files", len(args), "frames", frames)
	return nil
}
