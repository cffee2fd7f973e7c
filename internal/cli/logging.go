package cli

import (
	"context"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"

	"groove.click/internal/config"
)

// setupLogging installs the default slog logger. Records at the configured
// level go to stderr, or to a rotated log file when file logging is enabled,
// in which case stderr still receives warnings and errors.
func setupLogging(cfg *config.Config, cm *config.ConfigManager, stderrWriter io.Writer) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelWarn
	}

	var handler slog.Handler = slog.NewTextHandler(stderrWriter, &slog.HandlerOptions{Level: level})

	if cfg.FileLogging != nil && cfg.FileLogging.Enabled {
		logFilePath, err := cm.PrepareLogFile(cfg.FileLogging.Filename)
		if err != nil {
			slog.Error("file logging disabled", "error", err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   logFilePath,
				MaxSize:    cfg.FileLogging.MaxSizeMB,
				MaxBackups: cfg.FileLogging.MaxBackups,
				MaxAge:     cfg.FileLogging.MaxAgeDays,
				Compress:   cfg.FileLogging.Compress,
			}
			handler = NewMultiLevelHandler(
				slog.NewTextHandler(stderrWriter, &slog.HandlerOptions{Level: max(level, slog.LevelWarn)}),
				slog.NewTextHandler(fileWriter, &slog.HandlerOptions{Level: level}),
			)
		}
	}

	slog.SetDefault(slog.New(handler))
	slog.Debug("logging setup completed",
		"level", level.String(),
		"file_logging", cfg.FileLogging != nil && cfg.FileLogging.Enabled)
}

// MultiLevelHandler fans records out to handlers that each filter by their
// own level.
type MultiLevelHandler struct {
	handlers []slog.Handler
}

func NewMultiLevelHandler(handlers ...slog.Handler) *MultiLevelHandler {
	return &MultiLevelHandler{handlers: handlers}
}

// Enabled is true when any wrapped handler accepts level.
func (h *MultiLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, inner := range h.handlers {
		if inner.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes a clone of the record to every handler that accepts it. The
// first error is returned after all handlers ran.
func (h *MultiLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, inner := range h.handlers {
		if !inner.Enabled(ctx, record.Level) {
			continue
		}
		if err := inner.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *MultiLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(inner slog.Handler) slog.Handler { return inner.WithAttrs(attrs) })
}

func (h *MultiLevelHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(func(inner slog.Handler) slog.Handler { return inner.WithGroup(name) })
}

func (h *MultiLevelHandler) derive(fn func(slog.Handler) slog.Handler) *MultiLevelHandler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, inner := range h.handlers {
		handlers[i] = fn(inner)
	}
	return &MultiLevelHandler{handlers: handlers}
}
