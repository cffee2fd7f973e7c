package groove

import (
	"log/slog"

	"github.com/spf13/afero"

	"groove.click/internal/engine"
)

// Tag is a metadata key/value pair.
type Tag = engine.Tag

// TagStore persists saved tags.
type TagStore = engine.TagStore

// Option configures Init.
type Option func(*options)

type options struct {
	fs         afero.Fs
	logHandler slog.Handler
	tagStore   TagStore
	logLevel   *LogLevel
}

// WithFs makes the engine open and save files through fs.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithLogHandler routes engine logs to h.
func WithLogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// WithTagStore persists saved tags in store instead of memory.
func WithTagStore(store TagStore) Option {
	return func(o *options) {
		o.tagStore = store
	}
}

// WithLogLevel sets the initial engine log level.
func WithLogLevel(level LogLevel) Option {
	return func(o *options) {
		o.logLevel = &level
	}
}

func (o *options) engineOptions() []engine.Option {
	var opts []engine.Option
	if o.fs != nil {
		opts = append(opts, engine.WithFs(o.fs))
	}
	if o.logHandler != nil {
		opts = append(opts, engine.WithLogHandler(o.logHandler))
	}
	if o.tagStore != nil {
		opts = append(opts, engine.WithTagStore(o.tagStore))
	}
	return opts
}
