package engine

import (
	"encoding/binary"
	"sync"
)

const (
	DefaultEncoderBitRate     = 256000
	DefaultEncodedBufferSize  = 16384
	DefaultEncoderSinkBufSize = 8192
)

// Encoder receives audio from a playlist and muxes it into a container
// stream. Configuration fields are read when the encoder is attached.
type Encoder struct {
	TargetFormat      AudioFormat
	BitRate           int // bits per second; unused by the PCM containers
	FormatShortName   string
	CodecShortName    string
	Filename          string
	MimeType          string
	SinkBufferSize    int // frames
	EncodedBufferSize int // bytes
	Gain              float64

	// ActualFormat is the negotiated format, valid after a successful attach.
	ActualFormat AudioFormat

	eng *Engine
	q   *bufferQueue
	key groupKey

	tagMu sync.Mutex
	tags  []*Tag

	// Muxer state, owned by the fill goroutine.
	mux        *container
	needHeader bool
	segStart   int64
	dataBytes  int64
	written    int64

	patchMu sync.Mutex
	patches []Patch
}

// CreateEncoder returns a detached encoder with 44100 Hz stereo s16 target
// and a 256 kbit/s bit rate.
func (e *Engine) CreateEncoder() *Encoder {
	return &Encoder{
		TargetFormat: AudioFormat{
			SampleRate:    44100,
			ChannelLayout: LayoutStereo,
			SampleFmt:     SampleFmtS16,
		},
		BitRate:           DefaultEncoderBitRate,
		SinkBufferSize:    DefaultEncoderSinkBufSize,
		EncodedBufferSize: DefaultEncodedBufferSize,
		Gain:              1.0,
		eng:               e,
		q:                 newBufferQueue(),
	}
}

// Destroy detaches the encoder if needed.
func (enc *Encoder) Destroy() {
	if p := enc.playlist(); p != nil {
		p.detach(enc)
	}
}

// Attach negotiates the output format and registers the encoder with p.
func (enc *Encoder) Attach(p *Playlist) int {
	if p == nil {
		return ErrInvalid
	}
	if enc.q.attached() {
		return ErrAttached
	}

	mux, code := resolveContainer(enc.FormatShortName, enc.CodecShortName, enc.Filename, enc.MimeType)
	if code != OK {
		enc.eng.logger.Error("no container for encoder hints",
			"format", enc.FormatShortName,
			"codec", enc.CodecShortName,
			"filename", enc.Filename,
			"mime_type", enc.MimeType)
		return code
	}

	actual := normalizeFormat(enc.TargetFormat)
	sampleFmt, code := resolveSampleFmt(mux, enc.CodecShortName, actual.SampleFmt)
	if code != OK {
		enc.eng.logger.Error("codec not usable with container",
			"codec", enc.CodecShortName,
			"container", mux.name)
		return code
	}
	actual.SampleFmt = sampleFmt

	if enc.SinkBufferSize <= 0 {
		enc.SinkBufferSize = DefaultEncoderSinkBufSize
	}
	if enc.EncodedBufferSize <= 0 {
		enc.EncodedBufferSize = DefaultEncodedBufferSize
	}

	enc.mux = mux
	enc.ActualFormat = actual
	enc.needHeader = true
	enc.key = groupKey{format: actual, gain: enc.Gain}

	if code := p.attach(enc); code != OK {
		return code
	}

	enc.eng.logger.Info("encoder attached",
		"playlist", p.id,
		"container", mux.name,
		"sample_rate", actual.SampleRate,
		"channels", actual.Channels(),
		"sample_fmt", SampleFmtName(actual.SampleFmt),
		"bit_rate", enc.BitRate)
	return OK
}

// Detach unregisters the encoder. Blocked readers observe BufferEnd.
func (enc *Encoder) Detach() int {
	p := enc.playlist()
	if p == nil {
		return ErrInvalid
	}
	return p.detach(enc)
}

// BufferGet pops the next encoded buffer.
func (enc *Encoder) BufferGet(block bool) (int, *Buffer) {
	return enc.q.get(block)
}

// FillLevel reports queued encoded bytes.
func (enc *Encoder) FillLevel() int {
	_, bytes := enc.q.level()
	return bytes
}

// Patches returns the header fixups of every completed stream segment.
func (enc *Encoder) Patches() []Patch {
	enc.patchMu.Lock()
	defer enc.patchMu.Unlock()
	return append([]Patch(nil), enc.patches...)
}

// TagGet returns the first matching tag after prev.
func (enc *Encoder) TagGet(key string, prev *Tag, flags int) *Tag {
	enc.tagMu.Lock()
	defer enc.tagMu.Unlock()

	start := 0
	if prev != nil {
		start = len(enc.tags)
		for i, t := range enc.tags {
			if t == prev {
				start = i + 1
				break
			}
		}
	}
	for _, t := range enc.tags[start:] {
		if tagKeyMatch(t.Key, key, flags) {
			return t
		}
	}
	return nil
}

// TagSet sets a tag written into the output stream.
func (enc *Encoder) TagSet(key, value string, flags int) int {
	if key == "" {
		return ErrInvalid
	}

	enc.tagMu.Lock()
	defer enc.tagMu.Unlock()

	flags &^= TagIgnoreSuffix
	for _, t := range enc.tags {
		if tagKeyMatch(t.Key, key, flags) {
			t.Value = value
			return OK
		}
	}
	enc.tags = append(enc.tags, &Tag{Key: key, Value: value})
	return OK
}

func (enc *Encoder) tagSnapshot() []Tag {
	enc.tagMu.Lock()
	defer enc.tagMu.Unlock()

	out := make([]Tag, len(enc.tags))
	for i, t := range enc.tags {
		out[i] = *t
	}
	return out
}

func (enc *Encoder) playlist() *Playlist {
	enc.q.mu.Lock()
	defer enc.q.mu.Unlock()
	return enc.q.playlist
}

func (enc *Encoder) groupKey() groupKey  { return enc.key }
func (enc *Encoder) queue() *bufferQueue { return enc.q }

func (enc *Encoder) isFull() bool {
	frames, bytes := enc.q.level()
	return bytes >= enc.EncodedBufferSize || frames >= enc.SinkBufferSize
}

func (enc *Encoder) containerBuffer(data []byte) *Buffer {
	b := newBuffer(1)
	b.Data = [][]byte{data}
	b.Size = len(data)
	b.Format = enc.ActualFormat
	enc.written += int64(len(data))
	return b
}

func (enc *Encoder) headerBuffers() []*Buffer {
	enc.needHeader = false
	enc.segStart = enc.written
	enc.dataBytes = 0
	if enc.mux.header == nil {
		return nil
	}
	return []*Buffer{enc.containerBuffer(enc.mux.header(enc.ActualFormat))}
}

func (enc *Encoder) deliver(b *Buffer) {
	var out []*Buffer
	if enc.needHeader {
		out = enc.headerBuffers()
	}

	data := littleEndianCopy(b.Data[0], SampleFmtBytes(b.Format.SampleFmt))
	eb := newBuffer(1)
	eb.Data = [][]byte{data}
	eb.Size = len(data)
	eb.Format = b.Format
	eb.FrameCount = b.FrameCount
	eb.Item = b.Item
	eb.Pos = b.Pos
	eb.Pts = b.Pts
	b.Unref()

	enc.dataBytes += int64(len(data))
	enc.written += int64(len(data))
	out = append(out, eb)
	enc.q.put(out...)
}

func (enc *Encoder) deliverEnd() {
	var out []*Buffer
	if enc.needHeader {
		out = enc.headerBuffers()
	}

	if enc.mux.trailer != nil {
		out = append(out, enc.containerBuffer(enc.mux.trailer(enc.tagSnapshot(), enc.dataBytes)))
	}
	if enc.mux.patches != nil {
		patches := enc.mux.patches(enc.segStart, enc.dataBytes, enc.written)
		enc.patchMu.Lock()
		enc.patches = append(enc.patches, patches...)
		enc.patchMu.Unlock()
	}
	enc.needHeader = true

	out = append(out, nil)
	enc.q.put(out...)
}

func (enc *Encoder) purge(item *Item) {
	removed := int64(enc.q.purge(item))
	enc.dataBytes -= removed
	enc.written -= removed
}

var hostLittleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// littleEndianCopy copies interleaved samples of the given width into little
// endian order.
func littleEndianCopy(src []byte, width int) []byte {
	out := make([]byte, len(src))
	copy(out, src)
	if hostLittleEndian || width <= 1 {
		return out
	}
	for i := 0; i+width <= len(out); i += width {
		for a, z := i, i+width-1; a < z; a, z = a+1, z-1 {
			out[a], out[z] = out[z], out[a]
		}
	}
	return out
}
