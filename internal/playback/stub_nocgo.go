//go:build !cgo

package playback

import "errors"

var errCGORequired = errors.New(`groove requires CGO support for audio playback.

To fix this issue:
1. Ensure CGO_ENABLED=1 (this is the default for native builds)
2. Install a C compiler:
   - Linux: sudo apt-get install build-essential
   - macOS: xcode-select --install
   - Windows: Install MinGW or Visual Studio Build Tools
3. Then run: go install groove.click/cmd/groove`)

func newMalgoBackend() (Backend, error) {
	return nil, errCGORequired
}

func newOtoBackend() (Backend, error) {
	return nil, errCGORequired
}
