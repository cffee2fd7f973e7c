package groove

import (
	"iter"
	"sync"

	"groove.click/internal/engine"
)

// Patch is a fixup for the container header of an encoded stream. Writers
// that can seek apply it after the stream has been written.
type Patch = engine.Patch

// Encoder pulls encoded container data from a playlist. Configure it before
// Attach.
type Encoder struct {
	e *engine.Encoder

	mu       sync.Mutex
	playlist *Playlist
	closed   bool
}

// NewEncoder returns a detached encoder targeting 44100 Hz stereo s16 at
// 256000 bit/s.
func NewEncoder() *Encoder {
	return &Encoder{e: engineInstance().CreateEncoder()}
}

// SetTargetAudioFormat sets the preferred output format. The engine may
// substitute a format it can produce; see ActualAudioFormat.
func (enc *Encoder) SetTargetAudioFormat(f AudioFormat) {
	enc.e.TargetFormat = f.toEngine()
}

// TargetAudioFormat returns the preferred output format.
func (enc *Encoder) TargetAudioFormat() AudioFormat {
	return audioFormatFromEngine(enc.e.TargetFormat)
}

// ActualAudioFormat returns the negotiated output format, valid after a
// successful Attach.
func (enc *Encoder) ActualAudioFormat() AudioFormat {
	return audioFormatFromEngine(enc.e.ActualFormat)
}

// SetBitRate sets the bit rate in bits per second. The PCM containers
// ignore it.
func (enc *Encoder) SetBitRate(bps int) {
	enc.e.BitRate = bps
}

// BitRate returns the bit rate in bits per second.
func (enc *Encoder) BitRate() int {
	return enc.e.BitRate
}

// SetFormatShortName hints the container, e.g. "wav".
func (enc *Encoder) SetFormatShortName(name string) {
	enc.e.FormatShortName = name
}

// SetCodecShortName hints the codec, e.g. "pcm_s16le".
func (enc *Encoder) SetCodecShortName(name string) {
	enc.e.CodecShortName = name
}

// SetFilename hints the container by file extension.
func (enc *Encoder) SetFilename(name string) {
	enc.e.Filename = name
}

// SetMimeType hints the container by MIME type.
func (enc *Encoder) SetMimeType(mimeType string) {
	enc.e.MimeType = mimeType
}

// SetSinkBufferSize sets how many decoded frames may be queued.
func (enc *Encoder) SetSinkBufferSize(frames int) {
	enc.e.SinkBufferSize = frames
}

// SetEncodedBufferSize sets how many encoded bytes may be queued.
func (enc *Encoder) SetEncodedBufferSize(n int) {
	enc.e.EncodedBufferSize = n
}

// SetGain sets a gain multiplier applied to this encoder only.
func (enc *Encoder) SetGain(gain float64) {
	enc.e.Gain = gain
}

// MetadataSet sets a tag written into the output stream.
func (enc *Encoder) MetadataSet(key, value string, caseSensitive bool) error {
	return codeErr("encoder metadata set", enc.e.TagSet(key, value, tagFlags(caseSensitive)))
}

// MetadataGet looks up a tag set with MetadataSet.
func (enc *Encoder) MetadataGet(key string, caseSensitive bool) (Tag, bool) {
	t := enc.e.TagGet(key, nil, tagFlags(caseSensitive))
	if t == nil {
		return Tag{}, false
	}
	return *t, true
}

// Metadata iterates over the tags set on the encoder.
func (enc *Encoder) Metadata() iter.Seq[Tag] {
	return func(yield func(Tag) bool) {
		var prev *engine.Tag
		for {
			prev = enc.e.TagGet("", prev, engine.TagIgnoreSuffix)
			if prev == nil || !yield(*prev) {
				return
			}
		}
	}
}

// HeaderPatches returns the header fixups of every stream finished so far.
func (enc *Encoder) HeaderPatches() []Patch {
	return enc.e.Patches()
}

// Attach negotiates the output format and registers the encoder with p.
// Attaching an attached encoder panics.
func (enc *Encoder) Attach(p *Playlist) error {
	enc.mu.Lock()
	defer enc.mu.Unlock()

	if enc.closed {
		return ErrClosed
	}
	if enc.playlist != nil {
		panic("groove: encoder already attached")
	}
	if code := enc.e.Attach(p.p); code != engine.OK {
		return codeErr("encoder attach", code)
	}
	enc.playlist = p
	p.track(enc)
	return nil
}

// Detach unregisters the encoder. A pull blocked in BufferGetBlocking
// returns end of playlist. Detaching a detached encoder does nothing.
func (enc *Encoder) Detach() {
	enc.mu.Lock()
	p := enc.playlist
	enc.playlist = nil
	enc.mu.Unlock()

	if p == nil {
		return
	}
	enc.e.Detach()
	p.untrack(enc)
}

// BufferGetBlocking waits for the next encoded buffer. It returns false once
// the trailer of the playlist has been delivered or the encoder is detached.
func (enc *Encoder) BufferGetBlocking() (*EncodedBuffer, bool) {
	status, b := enc.e.BufferGet(true)
	switch status {
	case engine.BufferYes:
		return &EncodedBuffer{bufferRef{b: b}}, true
	case engine.BufferEnd:
		return nil, false
	default:
		panic("groove: unexpected buffer status " + BufferStatus(status).String() + " from blocking get")
	}
}

// TryBufferGet returns the next encoded buffer if one is ready.
func (enc *Encoder) TryBufferGet() (*EncodedBuffer, BufferStatus) {
	status, b := enc.e.BufferGet(false)
	if status == engine.BufferYes {
		return &EncodedBuffer{bufferRef{b: b}}, BufferYes
	}
	return nil, BufferStatus(status)
}

// FillLevel returns the number of queued encoded bytes.
func (enc *Encoder) FillLevel() int {
	return enc.e.FillLevel()
}

// Close detaches the encoder if needed and releases it.
func (enc *Encoder) Close() {
	enc.Detach()

	enc.mu.Lock()
	enc.closed = true
	enc.mu.Unlock()
	enc.e.Destroy()
}
