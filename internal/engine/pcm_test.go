package engine

import (
	"io"
)

// PCM is fully decoded audio, one plane per channel.
type PCM struct {
	SampleRate int
	Planes     [][]float64
}

// Channels returns the number of planes.
func (p *PCM) Channels() int {
	return len(p.Planes)
}

// Frames returns the number of frames per plane.
func (p *PCM) Frames() int {
	if len(p.Planes) == 0 {
		return 0
	}
	return len(p.Planes[0])
}

// readAll drains fr into memory.
func readAll(fr FrameReader) (*PCM, error) {
	channels := fr.Channels()
	pcm := &PCM{SampleRate: fr.SampleRate(), Planes: make([][]float64, channels)}
	chunk := allocPlanes(channels, DefaultBufferFrames)

	for {
		n, err := fr.ReadFrames(chunk)
		for ch := range chunk {
			pcm.Planes[ch] = append(pcm.Planes[ch], chunk[ch][:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if pcm.Frames() == 0 {
		return nil, ErrInvalidData
	}
	return pcm, nil
}
