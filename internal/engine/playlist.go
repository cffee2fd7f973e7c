package engine

import (
	"encoding/binary"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultBufferFrames is the frame count of a produced buffer when the
// consumer does not ask for a fixed size.
const DefaultBufferFrames = 1024

// Item is a playlist entry.
type Item struct {
	file     *File
	gain     atomic.Uint64
	peak     atomic.Uint64
	prev     *Item
	next     *Item
	playlist *Playlist
}

// File returns the file the item plays.
func (it *Item) File() *File {
	return it.file
}

// Gain returns the item gain multiplier.
func (it *Item) Gain() float64 {
	return math.Float64frombits(it.gain.Load())
}

// Peak returns the item sample peak hint.
func (it *Item) Peak() float64 {
	return math.Float64frombits(it.peak.Load())
}

// Next returns the following item, or nil at the tail.
func (it *Item) Next() *Item {
	if p := it.playlist; p != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
	}
	return it.next
}

// groupKey identifies consumers that can share produced buffers.
type groupKey struct {
	format          AudioFormat
	disableResample bool
	sampleCount     int
	gain            float64
}

// group is the decode cursor for one groupKey.
type group struct {
	key       groupKey
	consumers []consumer
	cursor    *Item
	stream    *itemStream
	pts       int64
	sentEnd   bool
}

// Playlist is an ordered list of items with a background fill goroutine that
// decodes audio for attached consumers.
type Playlist struct {
	eng *Engine
	id  string

	mu        sync.Mutex
	head      *Item
	tail      *Item
	count     int
	gain      float64
	fillMode  int
	playing   bool
	consumers []consumer
	groups    []*group
	destroyed bool
	stale     []*itemStream // dropped under mu, closed by the fill goroutine

	wake chan struct{}
	done chan struct{}
}

// CreatePlaylist returns an empty, playing playlist and starts its fill
// goroutine.
func (e *Engine) CreatePlaylist() *Playlist {
	p := &Playlist{
		eng:      e,
		id:       uuid.NewString(),
		gain:     1.0,
		fillMode: EverySinkFull,
		playing:  true,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	go p.run()

	e.logger.Debug("playlist created", "playlist", p.id)
	return p
}

// ID returns the identifier used in log records.
func (p *Playlist) ID() string {
	return p.id
}

// signal wakes the fill goroutine without blocking.
func (p *Playlist) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Destroy detaches every consumer and stops the fill goroutine. Items still
// linked are dropped without touching their files.
func (p *Playlist) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	for _, c := range p.consumers {
		c.queue().detach()
	}
	for _, g := range p.groups {
		p.retire(g)
	}
	p.consumers = nil
	p.groups = nil
	p.destroyed = true
	p.mu.Unlock()

	p.signal()
	<-p.done
	p.eng.logger.Debug("playlist destroyed", "playlist", p.id)
}

// Insert links a new item before next, or at the tail when next is nil.
func (p *Playlist) Insert(file *File, gain, peak float64, next *Item) (*Item, int) {
	if file == nil {
		return nil, ErrInvalid
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed || (next != nil && next.playlist != p) {
		return nil, ErrInvalid
	}

	item := &Item{file: file, playlist: p}
	item.gain.Store(math.Float64bits(gain))
	item.peak.Store(math.Float64bits(peak))

	if next == nil {
		item.prev = p.tail
		if p.tail != nil {
			p.tail.next = item
		} else {
			p.head = item
		}
		p.tail = item

		// groups that already reached the end continue with the new item
		for _, g := range p.groups {
			if g.cursor == nil {
				g.cursor = item
			}
		}
	} else {
		item.prev = next.prev
		item.next = next
		if next.prev != nil {
			next.prev.next = item
		} else {
			p.head = item
		}
		next.prev = item
	}
	p.count++

	p.eng.logger.Debug("playlist item inserted",
		"playlist", p.id,
		"filename", file.filename,
		"count", p.count)
	p.signal()
	return item, OK
}

// retire drops the stream of g. The fill goroutine may be reading it, so it
// is closed later from there.
func (p *Playlist) retire(g *group) {
	if g.stream != nil {
		p.stale = append(p.stale, g.stream)
		g.stream = nil
	}
}

// Remove unlinks item and drops any queued buffers that belong to it.
func (p *Playlist) Remove(item *Item) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if item == nil || item.playlist != p {
		return ErrInvalid
	}
	p.removeLocked(item)
	p.signal()
	return OK
}

func (p *Playlist) removeLocked(item *Item) {
	for _, g := range p.groups {
		if g.cursor == item {
			g.cursor = item.next
			p.retire(g)
		}
	}
	for _, c := range p.consumers {
		c.purge(item)
	}

	if item.prev != nil {
		item.prev.next = item.next
	} else {
		p.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		p.tail = item.prev
	}
	item.prev = nil
	item.next = nil
	item.playlist = nil
	p.count--
}

// Clear removes every item.
func (p *Playlist) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.head != nil {
		p.removeLocked(p.head)
	}
	p.signal()
}

// Count returns the number of items.
func (p *Playlist) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Head returns the first item, or nil.
func (p *Playlist) Head() *Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.head
}

// Tail returns the last item, or nil.
func (p *Playlist) Tail() *Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tail
}

// SetFillMode selects EverySinkFull or AnySinkFull.
func (p *Playlist) SetFillMode(mode int) int {
	if mode != EverySinkFull && mode != AnySinkFull {
		return ErrInvalid
	}

	p.mu.Lock()
	p.fillMode = mode
	p.mu.Unlock()

	p.signal()
	return OK
}

// FillMode returns the current fill mode.
func (p *Playlist) FillMode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fillMode
}

// SetGain sets the playlist wide gain multiplier.
func (p *Playlist) SetGain(gain float64) {
	p.mu.Lock()
	p.gain = gain
	p.mu.Unlock()
}

// Gain returns the playlist wide gain multiplier.
func (p *Playlist) Gain() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gain
}

// SetItemGain changes the gain of an item in this playlist.
func (p *Playlist) SetItemGain(item *Item, gain float64) int {
	if item == nil || item.playlist != p {
		return ErrInvalid
	}
	item.gain.Store(math.Float64bits(gain))
	return OK
}

// SetItemPeak changes the peak hint of an item in this playlist.
func (p *Playlist) SetItemPeak(item *Item, peak float64) int {
	if item == nil || item.playlist != p {
		return ErrInvalid
	}
	item.peak.Store(math.Float64bits(peak))
	return OK
}

// Play resumes decoding.
func (p *Playlist) Play() {
	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
	p.signal()
}

// Pause stops decoding. Queued buffers stay available.
func (p *Playlist) Pause() {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
}

// Playing reports whether decoding is enabled.
func (p *Playlist) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Position reports the item being decoded and the seconds decoded into it.
func (p *Playlist) Position() (*Item, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.groups) == 0 {
		return p.head, 0
	}
	g := p.groups[0]
	if g.stream != nil && g.stream.item == g.cursor {
		return g.cursor, g.stream.position()
	}
	return g.cursor, 0
}

func (p *Playlist) attach(c consumer) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return ErrInvalid
	}
	if c.queue().attached() {
		return ErrAttached
	}

	key := c.groupKey()
	var g *group
	for _, existing := range p.groups {
		if existing.key == key {
			g = existing
			break
		}
	}
	if g == nil {
		g = &group{key: key, cursor: p.head}
		if len(p.groups) > 0 {
			g.cursor = p.groups[0].cursor
		}
		p.groups = append(p.groups, g)
	}
	g.consumers = append(g.consumers, c)
	p.consumers = append(p.consumers, c)
	c.queue().setPlaylist(p)

	p.eng.logger.Debug("consumer attached",
		"playlist", p.id,
		"sample_rate", key.format.SampleRate,
		"sample_fmt", SampleFmtName(key.format.SampleFmt),
		"groups", len(p.groups))
	p.signal()
	return OK
}

func (p *Playlist) detach(c consumer) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	found := false
	for i, existing := range p.consumers {
		if existing == c {
			p.consumers = append(p.consumers[:i], p.consumers[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return ErrInvalid
	}

	for i, g := range p.groups {
		for j, existing := range g.consumers {
			if existing == c {
				g.consumers = append(g.consumers[:j], g.consumers[j+1:]...)
				break
			}
		}
		if len(g.consumers) == 0 {
			p.retire(g)
			p.groups = append(p.groups[:i], p.groups[i+1:]...)
			break
		}
	}

	c.queue().detach()
	p.eng.logger.Debug("consumer detached", "playlist", p.id, "groups", len(p.groups))
	p.signal()
	return OK
}

// fillJob is one buffer worth of decoding for a group. It is planned and
// committed under mu and decoded without it, so that decoding never blocks
// the playlist API.
type fillJob struct {
	g      *group
	item   *Item
	stream *itemStream
	frames int
	gain   float64

	planes [][]float64
	n      int
	pos    float64
	err    error
}

// run is the fill goroutine.
func (p *Playlist) run() {
	defer close(p.done)

	for {
		p.mu.Lock()
		stale := p.stale
		p.stale = nil
		if p.destroyed {
			p.mu.Unlock()
			closeStreams(stale)
			return
		}
		worked := p.shouldFill()
		var jobs []*fillJob
		if worked {
			jobs = p.planFill()
		}
		p.mu.Unlock()

		closeStreams(stale)
		for _, j := range jobs {
			j.decode()
		}

		if len(jobs) > 0 {
			p.mu.Lock()
			for _, j := range jobs {
				p.commit(j)
			}
			p.mu.Unlock()
		}

		if !worked {
			<-p.wake
		}
	}
}

func closeStreams(streams []*itemStream) {
	for _, s := range streams {
		s.close()
	}
}

// shouldFill applies the fill mode to the current consumer queues.
func (p *Playlist) shouldFill() bool {
	if !p.playing || len(p.consumers) == 0 {
		return false
	}

	pending := false
	for _, g := range p.groups {
		if g.cursor != nil || !g.sentEnd {
			pending = true
			break
		}
	}
	if !pending {
		return false
	}

	anyFull, anyFree := false, false
	for _, c := range p.consumers {
		if c.isFull() {
			anyFull = true
		} else {
			anyFree = true
		}
	}

	if p.fillMode == AnySinkFull {
		return !anyFull
	}
	return anyFree
}

// planFill delivers end of playlist to groups that ran out of items and
// returns decode jobs for the rest.
func (p *Playlist) planFill() []*fillJob {
	var jobs []*fillJob
	for _, g := range p.groups {
		if g.cursor == nil {
			if !g.sentEnd {
				for _, c := range g.consumers {
					c.deliverEnd()
				}
				g.sentEnd = true
				p.eng.logger.Debug("end of playlist delivered", "playlist", p.id)
			}
			continue
		}
		g.sentEnd = false

		frames := g.key.sampleCount
		if frames <= 0 {
			frames = DefaultBufferFrames
		}
		j := &fillJob{
			g:      g,
			item:   g.cursor,
			frames: frames,
			gain:   p.gainFor(g.cursor, g.key.gain),
		}
		if g.stream != nil && g.stream.item == g.cursor {
			j.stream = g.stream
		}
		jobs = append(jobs, j)
	}
	return jobs
}

// decode opens the item stream if needed and reads one buffer. It runs
// without the playlist lock.
func (j *fillJob) decode() {
	if j.stream == nil {
		j.stream, j.err = newItemStream(j.item, j.g.key)
		if j.err != nil {
			return
		}
	}
	j.pos = j.stream.position()
	j.planes, j.n, j.err = j.stream.read(j.frames, j.gain)
}

// commit hands the decoded buffer to the group, unless the group or its
// cursor changed while decoding.
func (p *Playlist) commit(j *fillJob) {
	g := j.g
	if p.destroyed || g.cursor != j.item || !slices.Contains(p.groups, g) {
		if j.stream != g.stream {
			j.stream.close()
		}
		return
	}

	if j.err != nil {
		p.eng.logger.Error("skipping item that failed to decode",
			"playlist", p.id,
			"filename", j.item.file.filename,
			"error", j.err)
		j.stream.close()
		g.stream = nil
		g.cursor = g.cursor.next
		return
	}

	if g.stream != j.stream {
		g.stream.close()
		g.stream = j.stream
	}
	if j.n == 0 {
		g.stream.close()
		g.stream = nil
		g.cursor = g.cursor.next
		return
	}

	format := g.stream.format
	b := newBuffer(len(g.consumers))
	b.Data = packPlanes(j.planes, j.n, format.SampleFmt, binary.NativeEndian)
	b.Format = format
	b.FrameCount = j.n
	b.Size = j.n * format.FrameBytes()
	b.Item = j.item
	b.Pos = j.pos
	b.Pts = g.pts
	g.pts += int64(j.n)

	for _, c := range g.consumers {
		c.deliver(b)
	}
}

// gainFor combines playlist, item and consumer gain. The item gain is capped
// so that the item peak stays within full scale.
func (p *Playlist) gainFor(item *Item, consumerGain float64) float64 {
	itemGain := item.Gain()
	if peak := item.Peak(); peak > 0 && itemGain*peak > 1 {
		itemGain = 1 / peak
	}
	return p.gain * itemGain * consumerGain
}
