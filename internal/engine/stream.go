package engine

import (
	"io"
	"sync/atomic"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

const resampleQuality = 4

// frameStreamer exposes the first two channels of a FrameReader as a beep
// stereo stream. Mono is duplicated to both sides.
type frameStreamer struct {
	src    FrameReader
	planes [][]float64
	pos    int
	n      int
	err    error
	done   bool
}

func newFrameStreamer(src FrameReader) *frameStreamer {
	return &frameStreamer{src: src, planes: allocPlanes(src.Channels(), DefaultBufferFrames)}
}

func (s *frameStreamer) Stream(samples [][2]float64) (int, bool) {
	n := 0
	for n < len(samples) {
		if s.pos >= s.n {
			if s.done {
				break
			}
			s.refill()
			continue
		}

		left := s.planes[0]
		right := left
		if len(s.planes) > 1 {
			right = s.planes[1]
		}
		for n < len(samples) && s.pos < s.n {
			samples[n][0] = left[s.pos]
			samples[n][1] = right[s.pos]
			n++
			s.pos++
		}
	}
	return n, n > 0
}

func (s *frameStreamer) refill() {
	n, err := s.src.ReadFrames(s.planes)
	s.pos, s.n = 0, n
	if err != nil || n == 0 {
		s.done = true
		if err != nil && err != io.EOF {
			s.err = err
		}
	}
}

func (s *frameStreamer) Err() error {
	return s.err
}

// itemStream produces the audio of one playlist item in one output format.
// It is only touched by the fill goroutine, apart from position.
type itemStream struct {
	item     *Item
	format   AudioFormat
	src      FrameReader
	closer   io.Closer
	produced atomic.Int64

	frames  *frameStreamer
	gain    *effects.Gain
	scratch [][2]float64
	closed  bool
}

func newItemStream(item *Item, key groupKey) (*itemStream, error) {
	src, closer, err := item.file.stream()
	if err != nil {
		return nil, err
	}

	format := key.format
	if key.disableResample {
		format = item.file.AudioFormat()
		format.SampleRate = src.SampleRate()
		format.ChannelLayout = ChannelLayoutDefault(src.Channels())
	}

	s := &itemStream{item: item, format: format, src: src, closer: closer}

	// Sources with more than two channels keep their planes when nothing
	// needs converting. Everything else goes through beep.
	if key.disableResample && src.Channels() > 2 {
		return s, nil
	}

	s.frames = newFrameStreamer(src)
	var stream beep.Streamer = s.frames
	if src.SampleRate() != format.SampleRate {
		stream = beep.Resample(resampleQuality,
			beep.SampleRate(src.SampleRate()),
			beep.SampleRate(format.SampleRate),
			stream)
	}
	s.gain = &effects.Gain{Streamer: stream}
	return s, nil
}

// close releases the file handle. It is safe to call more than once.
func (s *itemStream) close() {
	if s == nil || s.closed {
		return
	}
	s.closed = true
	s.closer.Close()
}

// position returns seconds produced so far.
func (s *itemStream) position() float64 {
	if s.format.SampleRate <= 0 {
		return 0
	}
	return float64(s.produced.Load()) / float64(s.format.SampleRate)
}

// read produces up to frames frames scaled by gain, one plane per output
// channel. A zero count means the item is exhausted.
func (s *itemStream) read(frames int, gain float64) ([][]float64, int, error) {
	channels := s.format.Channels()

	if s.gain == nil {
		planes := allocPlanes(channels, frames)
		n, err := s.src.ReadFrames(planes)
		if err != nil && err != io.EOF {
			return nil, 0, err
		}
		for ch := range planes {
			planes[ch] = planes[ch][:n]
			for i := range planes[ch] {
				planes[ch][i] *= gain
			}
		}
		s.produced.Add(int64(n))
		return planes, n, nil
	}

	s.gain.Gain = gain - 1
	if cap(s.scratch) < frames {
		s.scratch = make([][2]float64, frames)
	}
	buf := s.scratch[:frames]

	n := 0
	for n < frames {
		m, ok := s.gain.Stream(buf[n:])
		n += m
		if !ok || m == 0 {
			break
		}
	}
	if err := s.frames.Err(); err != nil {
		return nil, 0, err
	}

	planes := allocPlanes(channels, n)
	for i := 0; i < n; i++ {
		l, r := buf[i][0], buf[i][1]
		switch channels {
		case 1:
			planes[0][i] = (l + r) / 2
		default:
			planes[0][i] = l
			planes[1][i] = r
		}
	}

	s.produced.Add(int64(n))
	return planes, n, nil
}
