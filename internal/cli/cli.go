package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"groove.click"
	"groove.click/internal/config"
	grooveFS "groove.click/internal/fs"
	"groove.click/internal/playback"
	"groove.click/internal/tagstore"
)

const Version = "0.4.0"

// CLI represents the command-line interface
type CLI struct {
	rootCmd          *cobra.Command
	configManager    *config.ConfigManager
	fs               afero.Fs
	backendFactory   func(name string) (playback.Backend, error)
	terminalDetector TerminalDetector
	tagStore         *tagstore.Store
	cfg              *config.Config
}

// NewCLI creates a CLI that reads configuration from and writes output to
// the OS filesystem.
func NewCLI() *CLI {
	return NewCLIWithFilesystem(grooveFS.NewDefaultFactory().Production())
}

// NewCLIWithFilesystem creates a CLI that loads configuration and writes
// transcoded output through fs.
func NewCLIWithFilesystem(fs afero.Fs) *CLI {
	slog.Debug("creating new CLI instance")

	c := &CLI{
		configManager:    config.NewConfigManagerWithFilesystem(fs),
		fs:               fs,
		backendFactory:   playback.NewBackend,
		terminalDetector: &DefaultTerminalDetector{},
	}

	rootCmd := &cobra.Command{
		Use:               "groove",
		Short:             "Inspect, transcode and play audio files",
		Long:              "groove reads and edits audio metadata, transcodes playlists of files into one output, dumps raw samples and plays files through a sound device.",
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: c.prepare,
	}
	rootCmd.SetVersionTemplate(fmt.Sprintf("groove version %s (engine %s)\n", Version, groove.Version()))

	rootCmd.PersistentFlags().String("config", "", "Path to config file (.json or .toml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("env-file", "", "Load environment variables from this file")

	rootCmd.AddCommand(newMetadataCommand())
	rootCmd.AddCommand(newTranscodeCommand())
	rootCmd.AddCommand(newDumpCommand())
	rootCmd.AddCommand(newPlayCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newVersionCommand())

	c.rootCmd = rootCmd
	return c
}

type cliContextKey struct{}

// contextWithCLI stores CLI instance in context for command handlers
func contextWithCLI(ctx context.Context, cli *CLI) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cli)
}

// cliFromContext extracts CLI instance from context
func cliFromContext(ctx context.Context) *CLI {
	if cli, ok := ctx.Value(cliContextKey{}).(*CLI); ok {
		return cli
	}
	return nil
}

func mustCLI(cmd *cobra.Command) (*CLI, error) {
	cli := cliFromContext(cmd.Context())
	if cli == nil {
		slog.Error("CLI instance not found in context")
		return nil, fmt.Errorf("CLI instance not found in context")
	}
	return cli, nil
}

// Run executes the CLI with the given arguments and I/O streams
func (c *CLI) Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	slog.Debug("CLI run started", "args", args)

	defer c.closeTagStore()

	c.rootCmd.SetArgs(args[1:]) // Skip program name
	c.rootCmd.SetIn(stdin)
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)

	if err := c.rootCmd.ExecuteContext(contextWithCLI(context.Background(), c)); err != nil {
		slog.Error("command failed", "error", err)
		return 1
	}
	return 0
}

// prepare loads configuration, sets up logging and starts the engine before
// any subcommand runs.
func (c *CLI) prepare(cmd *cobra.Command, args []string) error {
	cfg, err := c.loadAndValidateConfig(cmd)
	if err != nil {
		return err
	}
	c.cfg = cfg

	setupLogging(cfg, c.configManager, cmd.ErrOrStderr())
	c.initializeEngine(cfg)
	return nil
}

// loadAndValidateConfig loads configuration from flags and files, applies
// overrides, and validates
func (c *CLI) loadAndValidateConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")
	envFile, _ := cmd.Flags().GetString("env-file")

	if envFile != "" {
		if err := c.configManager.LoadEnvFile(envFile); err != nil {
			slog.Error("env file load failed", "file", envFile, "error", err)
			return nil, fmt.Errorf("error loading env file: %w", err)
		}
	}

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = c.configManager.LoadFromFile(configFile)
		if err != nil {
			slog.Warn("config file not found, using defaults", "file", configFile, "error", err)
			cfg = c.configManager.GetDefaultConfig()
		}
	} else {
		cfg, err = c.configManager.LoadConfig()
		if err != nil {
			slog.Error("config load failed", "error", err)
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	}

	cfg = c.configManager.ApplyEnvironmentOverrides(cfg)

	if logLevel != "" {
		cfg = c.configManager.MergeConfigs(cfg, &config.Config{LogLevel: logLevel})
		slog.Debug("log level override applied", "value", logLevel)
	}

	if err := c.configManager.ValidateConfig(cfg); err != nil {
		slog.Error("config validation failed", "error", err)
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initializeEngine opens the tag database and starts the engine. A tag
// database that cannot be opened leaves saved tags in memory.
func (c *CLI) initializeEngine(cfg *config.Config) {
	opts := []groove.Option{
		// The engine only reads media; saved tags go to the tag store.
		groove.WithFs(grooveFS.NewDefaultFactory().ReadOnly(c.fs)),
		groove.WithLogHandler(slog.Default().Handler()),
		groove.WithLogLevel(engineLogLevel(cfg.EngineLogLevel)),
	}

	if c.tagStore == nil {
		dbPath := c.configManager.ResolveTagDatabasePath(cfg.TagDatabase)
		if store, err := tagstore.Open(dbPath); err != nil {
			slog.Error("failed to open tag database, saved tags will not persist",
				"path", dbPath, "error", err)
		} else {
			c.tagStore = store
			opts = append(opts, groove.WithTagStore(store))
		}
	}

	groove.Init(opts...)
	groove.SetLogging(engineLogLevel(cfg.EngineLogLevel))
}

func (c *CLI) closeTagStore() {
	if c.tagStore == nil {
		return
	}
	if err := c.tagStore.Close(); err != nil {
		slog.Error("error closing tag database", "error", err)
	}
	c.tagStore = nil
}

func engineLogLevel(name string) groove.LogLevel {
	switch name {
	case "quiet":
		return groove.LogQuiet
	case "warning":
		return groove.LogWarning
	case "info":
		return groove.LogInfo
	default:
		return groove.LogError
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Printf("groove version %s\n", Version)
			cmd.Printf("engine version %s (%d.%d.%d)\n", groove.Version(),
				groove.VersionMajor(), groove.VersionMinor(), groove.VersionPatch())
			return nil
		},
	}
}
