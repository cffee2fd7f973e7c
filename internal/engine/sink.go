package engine

// DefaultSinkBufferSize is the default queue depth of a sink in frames.
const DefaultSinkBufferSize = 8192

// Sink receives decoded audio from a playlist. Configuration fields are read
// when the sink is attached.
type Sink struct {
	Format            AudioFormat
	DisableResample   bool
	BufferSampleCount int // 0 lets the engine choose
	BufferSize        int // queue depth in frames
	Gain              float64

	// BytesPerSec is valid after a successful attach. It is 0 with
	// DisableResample, where every item keeps its own format.
	BytesPerSec int

	eng *Engine
	q   *bufferQueue
	key groupKey
}

// CreateSink returns a detached sink producing 44100 Hz stereo s16.
func (e *Engine) CreateSink() *Sink {
	return &Sink{
		Format: AudioFormat{
			SampleRate:    44100,
			ChannelLayout: LayoutStereo,
			SampleFmt:     SampleFmtS16,
		},
		BufferSize: DefaultSinkBufferSize,
		Gain:       1.0,
		eng:        e,
		q:          newBufferQueue(),
	}
}

// Destroy detaches the sink if needed.
func (s *Sink) Destroy() {
	if p := s.playlist(); p != nil {
		p.detach(s)
	}
}

// Attach registers the sink with p.
func (s *Sink) Attach(p *Playlist) int {
	if p == nil {
		return ErrInvalid
	}
	if s.q.attached() {
		return ErrAttached
	}

	s.Format = normalizeFormat(s.Format)
	if s.BufferSize <= 0 {
		s.BufferSize = DefaultSinkBufferSize
	}
	s.key = groupKey{
		format:          s.Format,
		disableResample: s.DisableResample,
		sampleCount:     s.BufferSampleCount,
		gain:            s.Gain,
	}
	if s.DisableResample {
		s.key.format = AudioFormat{}
	}

	if code := p.attach(s); code != OK {
		return code
	}
	s.BytesPerSec = 0
	if !s.DisableResample {
		s.BytesPerSec = s.Format.SampleRate * s.Format.FrameBytes()
	}
	return OK
}

// Detach unregisters the sink. Blocked readers observe BufferEnd.
func (s *Sink) Detach() int {
	p := s.playlist()
	if p == nil {
		return ErrInvalid
	}
	return p.detach(s)
}

// BufferGet pops the next buffer. With block it waits for a buffer or the
// end of the playlist.
func (s *Sink) BufferGet(block bool) (int, *Buffer) {
	return s.q.get(block)
}

// FillLevel reports queued frames.
func (s *Sink) FillLevel() int {
	frames, _ := s.q.level()
	return frames
}

func (s *Sink) playlist() *Playlist {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()
	return s.q.playlist
}

func (s *Sink) groupKey() groupKey  { return s.key }
func (s *Sink) queue() *bufferQueue { return s.q }
func (s *Sink) deliver(b *Buffer)   { s.q.put(b) }
func (s *Sink) deliverEnd()         { s.q.put(nil) }
func (s *Sink) purge(item *Item)    { s.q.purge(item) }

func (s *Sink) isFull() bool {
	frames, _ := s.q.level()
	return frames >= s.BufferSize
}

// normalizeFormat fills unset fields with 44100 Hz, stereo and s16.
func normalizeFormat(f AudioFormat) AudioFormat {
	if f.SampleRate <= 0 {
		f.SampleRate = 44100
	}
	if f.ChannelLayout == 0 {
		f.ChannelLayout = LayoutStereo
	}
	if !validSampleFmt(f.SampleFmt) {
		f.SampleFmt = SampleFmtS16
	}
	return f
}
