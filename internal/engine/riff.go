package engine

import (
	"encoding/binary"
	"io"
)

// riffChunk is one top level chunk of a RIFF file.
type riffChunk struct {
	id     string
	offset int64 // first byte of the body
	size   int64 // body size without the pad byte, clamped to the file
}

// riffLayout is the chunk map of a RIFF file plus the size fields that had
// to be clamped. Streamed WAV output carries 0xFFFFFFFF placeholders.
type riffLayout struct {
	form    string
	chunks  []riffChunk
	patches map[int64]uint32 // offset of a size field -> clamped value
}

// scanRIFF walks the chunk headers of r without reading chunk bodies.
func scanRIFF(r io.ReaderAt, size int64) (*riffLayout, error) {
	var hdr [12]byte
	if size < 12 {
		return nil, ErrInvalidData
	}
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, ErrReadFailure
	}
	if string(hdr[0:4]) != "RIFF" {
		return nil, ErrInvalidData
	}

	l := &riffLayout{form: string(hdr[8:12]), patches: make(map[int64]uint32)}
	if riffSize := int64(binary.LittleEndian.Uint32(hdr[4:8])); riffSize+8 > size {
		l.patches[4] = uint32(size - 8)
	}

	pos := int64(12)
	for pos+8 <= size {
		var ch [8]byte
		if _, err := r.ReadAt(ch[:], pos); err != nil {
			return nil, ErrReadFailure
		}
		chunkSize := int64(binary.LittleEndian.Uint32(ch[4:8]))
		if remaining := size - pos - 8; chunkSize > remaining {
			chunkSize = remaining
			l.patches[pos+4] = uint32(chunkSize)
		}

		l.chunks = append(l.chunks, riffChunk{id: string(ch[0:4]), offset: pos + 8, size: chunkSize})
		pos += 8 + chunkSize + chunkSize&1
	}
	return l, nil
}

// find returns the first chunk with id.
func (l *riffLayout) find(id string) (riffChunk, bool) {
	for _, c := range l.chunks {
		if c.id == id {
			return c, true
		}
	}
	return riffChunk{}, false
}

// patchedReader serves a RIFF file with the clamped size fields of its
// layout applied.
type patchedReader struct {
	r       io.ReaderAt
	patches map[int64]uint32
	off     int64
}

func (p *patchedReader) ReadAt(b []byte, off int64) (int, error) {
	n, err := p.r.ReadAt(b, off)
	for at, v := range p.patches {
		var field [4]byte
		binary.LittleEndian.PutUint32(field[:], v)
		for i := int64(0); i < 4; i++ {
			if j := at + i - off; j >= 0 && j < int64(n) {
				b[j] = field[i]
			}
		}
	}
	return n, err
}

func (p *patchedReader) Read(b []byte) (int, error) {
	n, err := p.ReadAt(b, p.off)
	p.off += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}
