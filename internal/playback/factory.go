package playback

import (
	"fmt"
	"log/slog"
	"slices"
)

// SupportedBackends lists the names NewBackend accepts.
func SupportedBackends() []string {
	return []string{"auto", "malgo", "oto"}
}

// IsValidBackendType reports whether name is a supported backend. The empty
// string means auto.
func IsValidBackendType(name string) bool {
	return name == "" || slices.Contains(SupportedBackends(), name)
}

// NewBackend creates the named backend. auto prefers malgo and falls back to
// oto.
func NewBackend(name string) (Backend, error) {
	if name == "" {
		name = "auto"
	}

	slog.Debug("creating playback backend", "type", name)

	switch name {
	case "auto":
		b, err := newMalgoBackend()
		if err == nil {
			return b, nil
		}
		slog.Debug("malgo unavailable, trying oto", "error", err)
		return newOtoBackend()
	case "malgo":
		return newMalgoBackend()
	case "oto":
		return newOtoBackend()
	default:
		slog.Error("invalid playback backend requested", "type", name)
		return nil, fmt.Errorf("%w: %s", ErrInvalidBackendType, name)
	}
}
