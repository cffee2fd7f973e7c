package groove

import (
	"sync"

	"groove.click/internal/engine"
)

// Sink pulls decoded audio from a playlist. Configure it before Attach.
type Sink struct {
	s *engine.Sink

	mu       sync.Mutex
	playlist *Playlist
	closed   bool
}

// NewSink returns a detached sink producing 44100 Hz stereo s16 with a queue
// of 8192 frames.
func NewSink() *Sink {
	return &Sink{s: engineInstance().CreateSink()}
}

// SetAudioFormat sets the format buffers are converted to.
func (s *Sink) SetAudioFormat(f AudioFormat) {
	s.s.Format = f.toEngine()
}

// AudioFormat returns the configured format.
func (s *Sink) AudioFormat() AudioFormat {
	return audioFormatFromEngine(s.s.Format)
}

// SetDisableResample passes audio through in the source format of each
// item instead of converting it.
func (s *Sink) SetDisableResample(disable bool) {
	s.s.DisableResample = disable
}

// SetBufferSampleCount fixes the number of frames per buffer. Zero lets the
// engine choose; the last buffer of an item may be shorter.
func (s *Sink) SetBufferSampleCount(n int) {
	s.s.BufferSampleCount = n
}

// SetBufferSize sets how many frames may be queued before the sink counts as
// full.
func (s *Sink) SetBufferSize(frames int) {
	s.s.BufferSize = frames
}

// SetGain sets a gain multiplier applied to this sink only.
func (s *Sink) SetGain(gain float64) {
	s.s.Gain = gain
}

// Gain returns the sink gain.
func (s *Sink) Gain() float64 {
	return s.s.Gain
}

// BytesPerSec returns the data rate of the sink format. It is valid after a
// successful Attach and is 0 with DisableResample, where each item keeps its
// own rate.
func (s *Sink) BytesPerSec() int {
	return s.s.BytesPerSec
}

// Attach registers the sink with p. Attaching an attached sink panics.
func (s *Sink) Attach(p *Playlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.playlist != nil {
		panic("groove: sink already attached")
	}
	if code := s.s.Attach(p.p); code != engine.OK {
		return codeErr("sink attach", code)
	}
	s.playlist = p
	p.track(s)
	return nil
}

// Detach unregisters the sink. A pull blocked in BufferGetBlocking returns
// end of playlist. Detaching a detached sink does nothing.
func (s *Sink) Detach() {
	s.mu.Lock()
	p := s.playlist
	s.playlist = nil
	s.mu.Unlock()

	if p == nil {
		return
	}
	s.s.Detach()
	p.untrack(s)
}

// BufferGetBlocking waits for the next buffer. It returns false once the
// end of the playlist is reached or the sink is detached.
func (s *Sink) BufferGetBlocking() (*DecodedBuffer, bool) {
	status, b := s.s.BufferGet(true)
	switch status {
	case engine.BufferYes:
		return &DecodedBuffer{bufferRef{b: b}}, true
	case engine.BufferEnd:
		return nil, false
	default:
		panic("groove: unexpected buffer status " + BufferStatus(status).String() + " from blocking get")
	}
}

// TryBufferGet returns the next buffer if one is ready.
func (s *Sink) TryBufferGet() (*DecodedBuffer, BufferStatus) {
	status, b := s.s.BufferGet(false)
	if status == engine.BufferYes {
		return &DecodedBuffer{bufferRef{b: b}}, BufferYes
	}
	return nil, BufferStatus(status)
}

// FillLevel returns the number of queued frames.
func (s *Sink) FillLevel() int {
	return s.s.FillLevel()
}

// Close detaches the sink if needed and releases it.
func (s *Sink) Close() {
	s.Detach()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.s.Destroy()
}
