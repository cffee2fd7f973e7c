package cli

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"groove.click"
	grooveFS "groove.click/internal/fs"
)

type transcodeOptions struct {
	output  string
	bitRate int // kbit/s, 0 uses the configured default
	format  string
	codec   string
	mime    string
}

func newTranscodeCommand() *cobra.Command {
	var opts transcodeOptions

	cmd := &cobra.Command{
		Use:   "transcode <input>... --output <file>",
		Short: "Transcode one or more files into a single output file",
		Long: "Decodes the inputs in order and encodes them into one output file. " +
			"With a single input its audio format and tags are carried over.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscode(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file")
	cmd.Flags().IntVar(&opts.bitRate, "bitrate", 0, "Bit rate in kbit/s (default from config)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Container short name (e.g. wav, s16le)")
	cmd.Flags().StringVar(&opts.codec, "codec", "", "Codec short name (e.g. pcm_s16le)")
	cmd.Flags().StringVar(&opts.mime, "mime", "", "MIME type of the output")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// openInputs opens every input concurrently. Either all files are returned
// in argument order or none are left open.
func openInputs(ctx context.Context, paths []string) ([]*groove.File, error) {
	files := make([]*groove.File, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, ok := groove.Open(path)
			if !ok {
				return fmt.Errorf("error opening input file %s", path)
			}
			files[i] = f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, f := range files {
			if f != nil {
				f.Close()
			}
		}
		return nil, err
	}
	return files, nil
}

func runTranscode(cmd *cobra.Command, args []string, opts transcodeOptions) error {
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
	playlist.SetFillMode(fillModeFromConfig(cli.cfg.FillMode))

	encoder := groove.NewEncoder()
	defer encoder.Close()

	bitRate := opts.bitRate
	if bitRate <= 0 {
		bitRate = cli.cfg.EncoderBitRateKbps
	}
	encoder.SetBitRate(bitRate * 1000)
	encoder.SetFormatShortName(opts.format)
	encoder.SetCodecShortName(opts.codec)
	encoder.SetMimeType(opts.mime)
	encoder.SetFilename(opts.output)
	encoder.SetSinkBufferSize(cli.cfg.SinkBufferSize)

	if playlist.Len() == 1 {
		src := playlist.First().File()
		encoder.SetTargetAudioFormat(src.AudioFormat())
		for tag := range src.Metadata() {
			if err := encoder.MetadataSet(tag.Key, tag.Value, false); err != nil {
				src.Close()
				return fmt.Errorf("unable to copy tag %q: %w", tag.Key, err)
			}
		}
		src.Close()
	}

	if err := encoder.Attach(playlist); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error attaching encoder")
		return err
	}

	slog.Info("transcoding",
		"inputs", len(args),
		"output", opts.output,
		"format", encoder.ActualAudioFormat().String(),
		"bit_rate", encoder.BitRate())

	if _, isOS := cli.fs.(*afero.OsFs); isOS {
		lock, err := grooveFS.LockOutput(opts.output)
		if err != nil {
			return err
		}
		defer lock.Unlock()
	}

	written, err := writeEncoded(cli.fs, opts.output, encoder)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error writing output file %s\n", opts.output)
		return err
	}

	slog.Info("transcode complete", "output", opts.output, "bytes", written)
	return nil
}

// writeEncoded drains encoder into path and then applies its header patches.
func writeEncoded(fs afero.Fs, path string, encoder *groove.Encoder) (int64, error) {
	out, err := fs.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer out.Close()

	var written int64
	for {
		buf, ok := encoder.BufferGetBlocking()
		if !ok {
			break
		}
		n, err := out.Write(buf.Bytes())
		buf.Release()
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	for _, patch := range encoder.HeaderPatches() {
		if _, err := out.WriteAt(patch.Data, patch.Offset); err != nil {
			return written, fmt.Errorf("failed to patch header of %s: %w", path, err)
		}
	}

	if err := out.Close(); err != nil {
		return written, fmt.Errorf("failed to close %s: %w", path, err)
	}
	return written, nil
}

func fillModeFromConfig(name string) groove.FillMode {
	if name == "any" {
		return groove.AnySinkFull
	}
	return groove.EverySinkFull
}
