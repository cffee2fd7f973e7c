package playback

import (
	"io"
	"sync"

	"groove.click"
)

// SinkReader exposes the buffers of an attached sink as a byte stream. The
// sink must produce an interleaved format.
type SinkReader struct {
	sink *groove.Sink

	mu       sync.Mutex
	cur      *groove.DecodedBuffer
	data     []byte
	filename string
	pos      float64
	done     bool
}

// NewSinkReader reads from sink. The sink stays owned by the caller.
func NewSinkReader(sink *groove.Sink) *SinkReader {
	return &SinkReader{sink: sink}
}

// Read copies queued audio into p, blocking for the next buffer when the
// current one is used up. It returns io.EOF at the end of the playlist.
func (r *SinkReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.data) == 0 {
			if n > 0 && !r.ready() {
				return n, nil
			}
			if !r.next() {
				if n > 0 {
					return n, nil
				}
				return 0, io.EOF
			}
			continue
		}
		c := copy(p[n:], r.data)
		r.data = r.data[c:]
		n += c
	}
	return n, nil
}

// ready reports whether a buffer can be pulled without blocking.
func (r *SinkReader) ready() bool {
	return r.sink.FillLevel() > 0
}

func (r *SinkReader) next() bool {
	r.release()

	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done {
		return false
	}

	b, ok := r.sink.BufferGetBlocking()
	r.mu.Lock()
	defer r.mu.Unlock()
	if !ok {
		r.done = true
		return false
	}
	r.cur = b
	r.data = b.Bytes()
	r.pos = b.Pos()
	if item := b.Item(); item != nil {
		f := item.File()
		r.filename = f.Filename()
		f.Close()
	}
	return true
}

func (r *SinkReader) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	r.data = nil
}

// Position reports the file and offset in seconds of the buffer being read.
func (r *SinkReader) Position() (string, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filename, r.pos
}

// Close releases the buffer being read.
func (r *SinkReader) Close() error {
	r.release()
	return nil
}
