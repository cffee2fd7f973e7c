package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"groove.click"
)

var errUsage = errors.New("usage error")

type metadataOp struct {
	key    string
	value  string
	delete bool
}

type metadataRequest struct {
	filename string
	revert   bool
	ops      []metadataOp
}

func newMetadataCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "metadata <file> [--revert] [--update key value]... [--delete key]...",
		Short: "Print or edit the tags of a file",
		Long: "Prints the duration and every tag of a file. --update and --delete may be repeated " +
			"and are applied in order before printing; the file is saved when anything changed. " +
			"--revert first discards tags saved by earlier edits.",
		// Flags take a variable number of values, so the arguments are parsed by hand.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetadata(cmd, args)
		},
	}
}

// parseMetadataArgs splits the command line into the file name and the edit
// operations in command line order.
func parseMetadataArgs(args []string) (metadataRequest, error) {
	var req metadataRequest
	if len(args) == 0 {
		return req, fmt.Errorf("%w: missing file", errUsage)
	}
	req.filename = args[0]

	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--update":
			if i+2 >= len(args) {
				return req, fmt.Errorf("%w: --update requires 2 arguments", errUsage)
			}
			req.ops = append(req.ops, metadataOp{key: args[i+1], value: args[i+2]})
			i += 2
		case "--delete":
			if i+1 >= len(args) {
				return req, fmt.Errorf("%w: --delete requires 1 argument", errUsage)
			}
			req.ops = append(req.ops, metadataOp{key: args[i+1], delete: true})
			i++
		case "--revert":
			req.revert = true
		default:
			return req, fmt.Errorf("%w: unexpected argument %q", errUsage, args[i])
		}
	}
	return req, nil
}

func printMetadataUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: groove metadata <file> [--revert] [--update key value] [--delete key]")
	fmt.Fprintln(w, "Repeat --update and --delete as many times as you need to.")
}

func runMetadata(cmd *cobra.Command, args []string) error {
	if len(args) == 1 && (args[0] == "--help" || args[0] == "-h") {
		return cmd.Help()
	}

	req, err := parseMetadataArgs(args)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		printMetadataUsage(cmd.ErrOrStderr())
		return err
	}
	filename := req.filename

	if req.revert {
		if err := revertSavedTags(cmd, filename); err != nil {
			return err
		}
	}

	file, ok := groove.Open(filename)
	if !ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error opening file %s\n", filename)
		return fmt.Errorf("failed to open %s", filename)
	}
	defer file.Close()

	for _, op := range req.ops {
		if op.delete {
			err = file.MetadataDelete(op.key, false)
		} else {
			err = file.MetadataSet(op.key, op.value, false)
		}
		if err != nil {
			return fmt.Errorf("unable to edit tag %q: %w", op.key, err)
		}
		slog.Debug("tag edited", "file", filename, "key", op.key, "delete", op.delete)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "duration=%s\n", strconv.FormatFloat(file.Duration(), 'f', -1, 64))
	for tag := range file.Metadata() {
		fmt.Fprintf(out, "%s=%s\n", tag.Key, tag.Value)
	}

	if file.IsDirty() {
		if err := file.Save(); err != nil {
			return fmt.Errorf("unable to save %s: %w", filename, err)
		}
		slog.Info("file saved", "file", filename)
	}
	return nil
}

// revertSavedTags drops the tags stored for filename so that the next open
// reports the tags embedded in the file.
func revertSavedTags(cmd *cobra.Command, filename string) error {
	cli, err := mustCLI(cmd)
	if err != nil {
		return err
	}
	if cli.tagStore == nil {
		return fmt.Errorf("no tag database to revert %s from", filename)
	}

	key, err := filepath.Abs(filename)
	if err != nil {
		key = filepath.Clean(filename)
	}
	if err := cli.tagStore.Forget(key); err != nil {
		return err
	}
	slog.Info("saved tags discarded", "file", filename, "database", cli.tagStore.Path())
	return nil
}
