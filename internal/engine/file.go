package engine

import (
	"errors"
	"io"
	"path/filepath"
	"sync"
)

// File is an opened media file: probed stream parameters and tags. Audio is
// decoded from the filesystem by each playlist item that plays it.
type File struct {
	eng      *Engine
	filename string
	storeKey string
	decoder  Decoder
	info     StreamInfo

	mu     sync.Mutex
	tags   []*Tag
	dirty  bool
	closed bool
}

// OpenFile probes path and reads its tags. The status is ErrIO when the file
// cannot be read and ErrUnsupported when no decoder accepts it.
func (e *Engine) OpenFile(path string) (*File, int) {
	src, err := e.fs.Open(path)
	if err != nil {
		e.logger.Error("failed to read file", "filename", path, "error", err)
		return nil, ErrIO
	}
	defer src.Close()

	decoder, info, err := e.decoders.Probe(path, src)
	if err != nil {
		e.logger.Error("failed to probe file", "filename", path, "error", err)
		return nil, ErrUnsupported
	}

	f := &File{
		eng:      e,
		filename: path,
		storeKey: storeKey(path),
		decoder:  decoder,
		info:     *info,
		tags:     readEmbeddedTags(decoder.FormatName(), src),
	}

	saved, found, err := e.tags.LoadTags(f.storeKey)
	if err != nil {
		e.logger.Warn("failed to load saved tags", "filename", path, "error", err)
	} else if found {
		f.tags = f.tags[:0]
		for _, t := range saved {
			f.tags = append(f.tags, &Tag{Key: t.Key, Value: t.Value})
		}
	}

	e.logger.Info("file opened",
		"filename", path,
		"format", decoder.FormatName(),
		"sample_rate", info.SampleRate,
		"channels", info.Channels,
		"duration", info.Duration,
		"tags", len(f.tags))
	return f, OK
}

func storeKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Close marks the file closed. Items already playing it keep their own
// handles; new streams are refused.
func (f *File) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	f.eng.logger.Debug("file closed", "filename", f.filename)
}

// Filename returns the path the file was opened with.
func (f *File) Filename() string {
	return f.filename
}

// Duration returns the header based duration estimate in seconds.
func (f *File) Duration() float64 {
	return f.info.Duration
}

// AudioFormat returns the format of the main stream as the decoder produces it.
func (f *File) AudioFormat() AudioFormat {
	return AudioFormat{
		SampleRate:    f.info.SampleRate,
		ChannelLayout: ChannelLayoutDefault(f.info.Channels),
		SampleFmt:     f.info.SampleFmt,
	}
}

// Dirty reports whether tag edits are waiting to be saved.
func (f *File) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

// TagGet returns the first tag after prev whose key matches. An empty key
// with TagIgnoreSuffix matches every tag.
func (f *File) TagGet(key string, prev *Tag, flags int) *Tag {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := 0
	if prev != nil {
		start = len(f.tags)
		for i, t := range f.tags {
			if t == prev {
				start = i + 1
				break
			}
		}
	}

	for _, t := range f.tags[start:] {
		if tagKeyMatch(t.Key, key, flags) {
			return t
		}
	}
	return nil
}

// TagSet replaces the value of a matching tag or appends a new one.
func (f *File) TagSet(key, value string, flags int) int {
	if key == "" {
		return ErrInvalid
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrInvalid
	}

	flags &^= TagIgnoreSuffix
	for _, t := range f.tags {
		if tagKeyMatch(t.Key, key, flags) {
			t.Value = value
			f.dirty = true
			return OK
		}
	}
	f.tags = append(f.tags, &Tag{Key: key, Value: value})
	f.dirty = true
	return OK
}

// TagDelete removes every matching tag. Deleting an absent key succeeds.
func (f *File) TagDelete(key string, flags int) int {
	if key == "" {
		return ErrInvalid
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrInvalid
	}

	flags &^= TagIgnoreSuffix
	kept := f.tags[:0]
	for _, t := range f.tags {
		if !tagKeyMatch(t.Key, key, flags) {
			kept = append(kept, t)
		}
	}
	if len(kept) != len(f.tags) {
		f.dirty = true
	}
	for i := len(kept); i < len(f.tags); i++ {
		f.tags[i] = nil
	}
	f.tags = kept
	return OK
}

// Save writes the current tags to the tag store and clears the dirty flag.
func (f *File) Save() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrInvalid
	}
	if !f.dirty {
		return OK
	}

	snapshot := make([]Tag, len(f.tags))
	for i, t := range f.tags {
		snapshot[i] = *t
	}
	if err := f.eng.tags.SaveTags(f.storeKey, snapshot); err != nil {
		f.eng.logger.Error("failed to save tags", "filename", f.filename, "error", err)
		return ErrIO
	}

	f.dirty = false
	f.eng.logger.Info("tags saved", "filename", f.filename, "tags", len(snapshot))
	return OK
}

var errFileClosed = errors.New("file closed")

// stream opens a fresh handle on the file and starts decoding it. The
// returned closer releases the handle.
func (f *File) stream() (FrameReader, io.Closer, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, nil, errFileClosed
	}

	src, err := f.eng.fs.Open(f.filename)
	if err != nil {
		return nil, nil, err
	}
	fr, err := f.decoder.Stream(src)
	if err != nil {
		src.Close()
		f.eng.logger.Error("decode failed",
			"filename", f.filename,
			"format", f.decoder.FormatName(),
			"error", err)
		return nil, nil, err
	}

	f.eng.logger.Debug("file stream opened",
		"filename", f.filename,
		"sample_rate", fr.SampleRate(),
		"channels", fr.Channels())
	return fr, src, nil
}
