package groove

import (
	"errors"
	"fmt"

	"groove.click/internal/engine"
)

// Engine status codes carried by EngineError.
const (
	CodeOK              = engine.OK
	CodeNoMem           = engine.ErrNoMem
	CodeInvalid         = engine.ErrInvalid
	CodeEncoderNotFound = engine.ErrEncoderNotFound
	CodeIO              = engine.ErrIO
	CodeAttached        = engine.ErrAttached
	CodeUnsupported     = engine.ErrUnsupported
)

// EngineError reports a failed engine operation and its signed status code.
type EngineError struct {
	Op   string
	Code int
}

func (e *EngineError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("groove: %s (%d)", engine.StatusText(e.Code), e.Code)
	}
	return fmt.Sprintf("groove: %s: %s (%d)", e.Op, engine.StatusText(e.Code), e.Code)
}

// Is matches any EngineError with the same code, so errors.Is works against
// the sentinels below.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	return ok && t.Code == e.Code
}

var (
	ErrNoMem           = &EngineError{Code: CodeNoMem}
	ErrInvalid         = &EngineError{Code: CodeInvalid}
	ErrEncoderNotFound = &EngineError{Code: CodeEncoderNotFound}
	ErrIO              = &EngineError{Code: CodeIO}
	ErrAttached        = &EngineError{Code: CodeAttached}
	ErrUnsupported     = &EngineError{Code: CodeUnsupported}

	// ErrClosed is returned by operations on a closed sink or encoder.
	ErrClosed = errors.New("groove: closed")
)

func codeErr(op string, code int) error {
	if code == engine.OK {
		return nil
	}
	return &EngineError{Op: op, Code: code}
}
