package engine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dhowden/tag"
)

// Tag is one metadata key/value pair.
type Tag struct {
	Key   string
	Value string
}

func tagKeyMatch(key, want string, flags int) bool {
	if flags&TagIgnoreSuffix != 0 {
		if len(key) < len(want) {
			return false
		}
		key = key[:len(want)]
	}
	if flags&TagMatchCase != 0 {
		return key == want
	}
	return strings.EqualFold(key, want)
}

// readEmbeddedTags extracts tags stored in the media file itself.
func readEmbeddedTags(format string, r io.ReadSeeker) []*Tag {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil
	}
	if format == "WAV" {
		return readWavInfo(r)
	}

	m, err := tag.ReadFrom(r)
	if err != nil {
		return nil
	}

	var tags []*Tag
	add := func(key, value string) {
		if value != "" {
			tags = append(tags, &Tag{Key: key, Value: value})
		}
	}
	add("title", m.Title())
	add("artist", m.Artist())
	add("album", m.Album())
	add("album_artist", m.AlbumArtist())
	add("composer", m.Composer())
	add("genre", m.Genre())
	if year := m.Year(); year > 0 {
		add("date", fmt.Sprint(year))
	}
	if n, total := m.Track(); n > 0 {
		add("track", countString(n, total))
	}
	if n, total := m.Disc(); n > 0 {
		add("disc", countString(n, total))
	}
	add("comment", m.Comment())
	add("lyrics", m.Lyrics())
	return tags
}

func countString(n, total int) string {
	if total > 0 {
		return fmt.Sprintf("%d/%d", n, total)
	}
	return fmt.Sprint(n)
}

// maxInfoBytes bounds the LIST chunk read into memory for tag parsing.
const maxInfoBytes = 1 << 20

// readWavInfo reads every LIST/INFO chunk.
func readWavInfo(r io.ReadSeeker) []*Tag {
	ra, size, err := readerAt(r)
	if err != nil {
		return nil
	}
	layout, err := scanRIFF(ra, size)
	if err != nil {
		return nil
	}

	var tags []*Tag
	for _, c := range layout.chunks {
		if c.id != "LIST" || c.size < 4 || c.size > maxInfoBytes {
			continue
		}
		body := make([]byte, c.size)
		n, err := ra.ReadAt(body, c.offset)
		if err != nil && err != io.EOF {
			continue
		}
		tags = append(tags, parseInfoList(body[:n])...)
	}
	return tags
}

// parseInfoList decodes the entries of an INFO list. Writers disagree on
// whether odd length values carry a pad byte, so both layouts are read: an
// entry id never starts with NUL.
func parseInfoList(body []byte) []*Tag {
	if len(body) < 4 || string(body[:4]) != "INFO" {
		return nil
	}

	var tags []*Tag
	pos := 4
	for pos+8 <= len(body) {
		id := string(body[pos : pos+4])
		size := int64(binary.LittleEndian.Uint32(body[pos+4 : pos+8]))
		start := pos + 8
		end := len(body)
		if size < int64(end-start) {
			end = start + int(size)
		}

		if key, ok := infoKey(id); ok {
			value := body[start:end]
			if i := bytes.IndexByte(value, 0); i >= 0 {
				value = value[:i]
			}
			if len(value) > 0 {
				tags = append(tags, &Tag{Key: key, Value: string(value)})
			}
		}

		pos = end
		if size%2 == 1 && pos < len(body) && body[pos] == 0 {
			pos++
		}
	}
	return tags
}

func infoKey(id string) (string, bool) {
	if id == "itrk" {
		id = "ITRK"
	}
	for _, entry := range infoIDs {
		if entry.id == id {
			return entry.key, true
		}
	}
	return "", false
}

// memoryTagStore keeps saved tags for the lifetime of the engine.
type memoryTagStore struct {
	mu    sync.Mutex
	files map[string][]Tag
}

func newMemoryTagStore() *memoryTagStore {
	return &memoryTagStore{files: make(map[string][]Tag)}
}

func (s *memoryTagStore) LoadTags(path string) ([]Tag, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags, ok := s.files[path]
	if !ok {
		return nil, false, nil
	}
	return append([]Tag(nil), tags...), true, nil
}

func (s *memoryTagStore) SaveTags(path string, tags []Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[path] = append([]Tag(nil), tags...)
	return nil
}
