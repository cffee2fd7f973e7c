package groove

import (
	"iter"
	"sync/atomic"

	"groove.click/internal/engine"
)

// File is one alias of an opened media file. Every alias must be closed
// exactly once; the engine file is closed with the last alias.
type File struct {
	h      *engine.File
	closed atomic.Bool
}

// Open opens path for decoding. It reports false when the file cannot be
// read, is corrupt or has an unsupported type.
func Open(path string) (*File, bool) {
	h, code := engineInstance().OpenFile(path)
	if code != engine.OK {
		return nil, false
	}
	return newFileAlias(h), true
}

func newFileAlias(h *engine.File) *File {
	files.increment(h)
	return &File{h: h}
}

// Clone returns a new alias of the same engine file.
func (f *File) Clone() *File {
	return newFileAlias(f.handle())
}

// Close drops this alias. Closing an alias twice panics.
func (f *File) Close() {
	if f.closed.Swap(true) {
		panic("groove: file closed twice")
	}
	files.decrement(f.h)
}

func (f *File) handle() *engine.File {
	if f.closed.Load() {
		panic("groove: use of closed file")
	}
	return f.h
}

// Filename returns the path the file was opened with.
func (f *File) Filename() string {
	return f.handle().Filename()
}

// Duration returns the length in seconds as estimated from the container
// headers. It may be inaccurate.
func (f *File) Duration() float64 {
	return f.handle().Duration()
}

// IsDirty reports whether there are unsaved metadata edits.
func (f *File) IsDirty() bool {
	return f.handle().Dirty()
}

// AudioFormat describes the main audio stream.
func (f *File) AudioFormat() AudioFormat {
	return audioFormatFromEngine(f.handle().AudioFormat())
}

// MetadataGet looks up the first tag named key.
func (f *File) MetadataGet(key string, caseSensitive bool) (Tag, bool) {
	t := f.handle().TagGet(key, nil, tagFlags(caseSensitive))
	if t == nil {
		return Tag{}, false
	}
	return *t, true
}

// Metadata iterates over every tag of the file. Each call starts a new pass.
func (f *File) Metadata() iter.Seq[Tag] {
	h := f.handle()
	return func(yield func(Tag) bool) {
		var prev *engine.Tag
		for {
			prev = h.TagGet("", prev, engine.TagIgnoreSuffix)
			if prev == nil || !yield(*prev) {
				return
			}
		}
	}
}

// MetadataSet sets key to value, replacing an existing tag with that key.
func (f *File) MetadataSet(key, value string, caseSensitive bool) error {
	return codeErr("metadata set", f.handle().TagSet(key, value, tagFlags(caseSensitive)))
}

// MetadataDelete removes every tag named key.
func (f *File) MetadataDelete(key string, caseSensitive bool) error {
	return codeErr("metadata delete", f.handle().TagDelete(key, tagFlags(caseSensitive)))
}

// Save persists pending metadata edits.
func (f *File) Save() error {
	return codeErr("save", f.handle().Save())
}

func tagFlags(caseSensitive bool) int {
	if caseSensitive {
		return engine.TagMatchCase
	}
	return 0
}
