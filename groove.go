// Package groove is a safe access layer over the groove streaming audio
// engine.
//
// Files are opened with Open and arranged into a Playlist. Sinks and Encoders
// attach to a playlist and pull decoded or encoded buffers from it while the
// engine fills their queues in the background.
//
// Every handle that owns engine resources has a Close or Release method that
// must be called exactly once. File handles are reference counted: each alias
// returned by Open, Clone or PlaylistItem.File holds one reference, and the
// engine file is closed when the last alias is closed. Violating these rules
// panics.
package groove

import (
	"log/slog"
	"sync"

	"groove.click/internal/engine"
)

var (
	initOnce sync.Once
	eng      *engine.Engine
)

// Init configures and starts the engine. Only the first call has an effect;
// the engine is otherwise started with defaults on first use.
func Init(opts ...Option) {
	initOnce.Do(func() {
		cfg := &options{}
		for _, opt := range opts {
			opt(cfg)
		}
		eng = engine.New(cfg.engineOptions()...)
		if cfg.logLevel != nil {
			eng.SetLogLevel(int(*cfg.logLevel))
		}
	})
}

func engineInstance() *engine.Engine {
	Init()
	return eng
}

// Finish releases process wide engine resources such as the tag store.
// Calling it is optional.
func Finish() error {
	return engineInstance().Finish()
}

// LogLevel selects how much the engine logs.
type LogLevel int

const (
	LogQuiet   LogLevel = engine.LogQuiet
	LogError   LogLevel = engine.LogError
	LogWarning LogLevel = engine.LogWarning
	LogInfo    LogLevel = engine.LogInfo
)

// SetLogging sets the engine log level.
func SetLogging(level LogLevel) {
	engineInstance().SetLogLevel(int(level))
}

// Logger returns the logger the engine writes to.
func Logger() *slog.Logger {
	return engineInstance().Logger()
}

// Version returns the engine version string.
func Version() string {
	return engine.Version()
}

// VersionMajor returns the engine major version.
func VersionMajor() int {
	return engine.VersionMajor
}

// VersionMinor returns the engine minor version.
func VersionMinor() int {
	return engine.VersionMinor
}

// VersionPatch returns the engine patch version.
func VersionPatch() int {
	return engine.VersionPatch
}
