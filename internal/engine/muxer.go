package engine

import (
	"encoding/binary"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Patch is a byte range of an encoded stream to overwrite once the stream is
// complete. Containers that record sizes in their header emit patches for
// writers that can seek.
type Patch struct {
	Offset int64
	Data   []byte
}

// container describes one output format.
type container struct {
	name      string
	sampleFmt int // forced sample format, SampleFmtNone for any packed format
	header    func(f AudioFormat) []byte
	trailer   func(tags []Tag, dataBytes int64) []byte
	patches   func(start, dataBytes, total int64) []Patch
}

const wavHeaderSize = 44

var wavContainer = &container{
	name:      "wav",
	sampleFmt: SampleFmtNone,
	header:    wavHeader,
	trailer:   wavTrailer,
	patches:   wavPatches,
}

var containers = map[string]*container{
	"wav":   wavContainer,
	"u8":    {name: "u8", sampleFmt: SampleFmtU8},
	"s16le": {name: "s16le", sampleFmt: SampleFmtS16},
	"s32le": {name: "s32le", sampleFmt: SampleFmtS32},
	"f32le": {name: "f32le", sampleFmt: SampleFmtFlt},
	"f64le": {name: "f64le", sampleFmt: SampleFmtDbl},
}

var codecs = map[string]int{
	"pcm_u8":    SampleFmtU8,
	"pcm_s16le": SampleFmtS16,
	"pcm_s32le": SampleFmtS32,
	"pcm_f32le": SampleFmtFlt,
	"pcm_f64le": SampleFmtDbl,
}

var extensions = map[string]string{
	".wav":  "wav",
	".wave": "wav",
	".pcm":  "s16le",
	".raw":  "s16le",
}

// resolveContainer picks the output container from the hints, in order:
// format name, file extension, MIME type. A codec hint alone implies wav.
func resolveContainer(formatName, codecName, filename, mimeType string) (*container, int) {
	if formatName != "" {
		if c, ok := containers[strings.ToLower(formatName)]; ok {
			return c, OK
		}
		return nil, ErrEncoderNotFound
	}

	if filename != "" {
		if name, ok := extensions[strings.ToLower(filepath.Ext(filename))]; ok {
			return containers[name], OK
		}
	}

	if mimeType != "" {
		m := mimetype.Lookup(mimeType)
		if m != nil && m.Is("audio/wav") {
			return wavContainer, OK
		}
		return nil, ErrEncoderNotFound
	}

	if filename != "" && codecName == "" {
		return nil, ErrEncoderNotFound
	}
	return wavContainer, OK
}

// resolveSampleFmt applies the codec hint and the container constraint to
// the requested sample format.
func resolveSampleFmt(c *container, codecName string, requested int) (int, int) {
	sampleFmt := PackedSampleFmt(requested)
	if !validSampleFmt(sampleFmt) {
		sampleFmt = SampleFmtS16
	}

	if codecName != "" {
		forced, ok := codecs[strings.ToLower(codecName)]
		if !ok {
			return SampleFmtNone, ErrEncoderNotFound
		}
		if c.sampleFmt != SampleFmtNone && c.sampleFmt != forced {
			return SampleFmtNone, ErrEncoderNotFound
		}
		sampleFmt = forced
	}

	if c.sampleFmt != SampleFmtNone {
		sampleFmt = c.sampleFmt
	}
	return sampleFmt, OK
}

// wavHeader writes RIFF, fmt and the data chunk header. Sizes are
// 0xFFFFFFFF placeholders until patched.
func wavHeader(f AudioFormat) []byte {
	channels := f.Channels()
	width := SampleFmtBytes(f.SampleFmt)

	formatTag := uint16(1)
	if f.SampleFmt == SampleFmtFlt || f.SampleFmt == SampleFmtDbl {
		formatTag = 3
	}

	h := make([]byte, wavHeaderSize)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], 0xFFFFFFFF)
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], formatTag)
	binary.LittleEndian.PutUint16(h[22:], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(h[28:], uint32(f.SampleRate*channels*width))
	binary.LittleEndian.PutUint16(h[32:], uint16(channels*width))
	binary.LittleEndian.PutUint16(h[34:], uint16(width*8))
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], 0xFFFFFFFF)
	return h
}

var infoIDs = []struct {
	key string
	id  string
}{
	{"title", "INAM"},
	{"artist", "IART"},
	{"album", "IPRD"},
	{"genre", "IGNR"},
	{"comment", "ICMT"},
	{"date", "ICRD"},
	{"track", "ITRK"},
	{"copyright", "ICOP"},
	{"encoder", "ISFT"},
}

// wavTrailer writes a LIST/INFO chunk with the tags that have an INFO id,
// preceded by the pad byte the data chunk needs when its size is odd.
func wavTrailer(tags []Tag, dataBytes int64) []byte {
	var info []byte
	software := false
	for _, entry := range infoIDs {
		for _, t := range tags {
			if strings.EqualFold(t.Key, entry.key) {
				info = appendInfoEntry(info, entry.id, t.Value)
				if entry.id == "ISFT" {
					software = true
				}
				break
			}
		}
	}
	if !software {
		info = appendInfoEntry(info, "ISFT", "groove "+Version())
	}

	var out []byte
	if dataBytes%2 == 1 {
		out = append(out, 0)
	}
	out = append(out, "LIST"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(4+len(info)))
	out = append(out, "INFO"...)
	return append(out, info...)
}

func appendInfoEntry(dst []byte, id, value string) []byte {
	size := len(value) + 1
	dst = append(dst, id...)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(size))
	dst = append(dst, value...)
	dst = append(dst, 0)
	if size%2 == 1 {
		dst = append(dst, 0)
	}
	return dst
}

// wavPatches fills in the RIFF and data sizes of a stream segment that
// started at start and ended at total.
func wavPatches(start, dataBytes, total int64) []Patch {
	riff := make([]byte, 4)
	binary.LittleEndian.PutUint32(riff, uint32(total-start-8))
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, uint32(dataBytes))
	return []Patch{
		{Offset: start + 4, Data: riff},
		{Offset: start + 40, Data: data},
	}
}
