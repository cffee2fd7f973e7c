// Package engine is the streaming audio engine behind the groove access layer.
//
// It decodes files, runs one fill goroutine per playlist and hands out
// reference counted buffers to attached sinks and encoders. Its surface is
// handle oriented: operations report integer status codes so that a safe
// layer can sit on top of it. The one panic is releasing a buffer more often
// than it was referenced.
package engine

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/spf13/afero"
)

// Status codes returned by engine operations. Negative values are failures.
const (
	OK                 = 0
	ErrNoMem           = -1
	ErrInvalid         = -2
	ErrEncoderNotFound = -3
	ErrIO              = -4
	ErrAttached        = -5
	ErrUnsupported     = -6
)

// Buffer retrieval results.
const (
	BufferNo  = 0
	BufferYes = 1
	BufferEnd = 2
)

// Fill modes.
const (
	EverySinkFull = 0
	AnySinkFull   = 1
)

// Tag lookup flags.
const (
	TagMatchCase    = 1
	TagIgnoreSuffix = 2
)

// Log levels understood by SetLogLevel.
const (
	LogQuiet   = -8
	LogError   = 16
	LogWarning = 24
	LogInfo    = 32
)

const (
	VersionMajor = 4
	VersionMinor = 3
	VersionPatch = 0
)

// Version returns the engine version string.
func Version() string {
	return "4.3.0"
}

// StatusText describes a status code.
func StatusText(code int) string {
	switch code {
	case OK:
		return "ok"
	case ErrNoMem:
		return "out of memory"
	case ErrInvalid:
		return "invalid argument"
	case ErrEncoderNotFound:
		return "encoder not found"
	case ErrIO:
		return "i/o error"
	case ErrAttached:
		return "already attached"
	case ErrUnsupported:
		return "unsupported format"
	default:
		return "unknown error"
	}
}

// TagStore persists saved tags outside the media files themselves.
type TagStore interface {
	LoadTags(path string) (tags []Tag, found bool, err error)
	SaveTags(path string, tags []Tag) error
}

// Engine holds process wide state shared by every handle.
type Engine struct {
	fs       afero.Fs
	level    *slog.LevelVar
	logger   *slog.Logger
	decoders *DecoderRegistry
	tags     TagStore

	mu       sync.Mutex
	finished bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithFs sets the filesystem files are opened from and saved to.
func WithFs(fs afero.Fs) Option {
	return func(e *Engine) {
		if fs != nil {
			e.fs = fs
		}
	}
}

// WithLogHandler routes engine logs to h, filtered by the engine log level.
func WithLogHandler(h slog.Handler) Option {
	return func(e *Engine) {
		if h != nil {
			e.logger = slog.New(&levelHandler{inner: h, level: e.level})
		}
	}
}

// WithTagStore sets where saved tags are persisted.
func WithTagStore(store TagStore) Option {
	return func(e *Engine) {
		if store != nil {
			e.tags = store
		}
	}
}

// New creates an engine. Without options it reads the OS filesystem, keeps
// saved tags in memory and logs errors to the default slog handler.
func New(opts ...Option) *Engine {
	level := new(slog.LevelVar)
	level.Set(slog.LevelError)

	e := &Engine{
		fs:    afero.NewOsFs(),
		level: level,
		tags:  newMemoryTagStore(),
	}
	e.logger = slog.New(&levelHandler{inner: slog.Default().Handler(), level: level})

	for _, opt := range opts {
		opt(e)
	}

	e.decoders = NewDefaultRegistry(e.logger)
	e.logger.Debug("engine initialized",
		"version", Version(),
		"decoders", e.decoders.GetSupportedFormats())
	return e
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// Fs returns the engine filesystem.
func (e *Engine) Fs() afero.Fs {
	return e.fs
}

// SetLogLevel maps the engine log levels onto slog levels.
func (e *Engine) SetLogLevel(level int) {
	switch {
	case level <= LogQuiet:
		e.level.Set(slog.Level(math.MaxInt32))
	case level <= LogError:
		e.level.Set(slog.LevelError)
	case level <= LogWarning:
		e.level.Set(slog.LevelWarn)
	default:
		e.level.Set(slog.LevelInfo)
	}
	e.logger.Debug("engine log level changed", "level", level)
}

// Finish releases process wide resources. A tag store that implements
// io.Closer is closed.
func (e *Engine) Finish() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished {
		return nil
	}
	e.finished = true

	if c, ok := e.tags.(io.Closer); ok {
		if err := c.Close(); err != nil {
			e.logger.Error("failed to close tag store", "error", err)
			return err
		}
	}
	e.logger.Debug("engine finished")
	return nil
}

// levelHandler gates an inner handler with the engine level.
type levelHandler struct {
	inner slog.Handler
	level *slog.LevelVar
}

func (h *levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.inner.Enabled(ctx, l)
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{inner: h.inner.WithAttrs(attrs), level: h.level}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{inner: h.inner.WithGroup(name), level: h.level}
}
