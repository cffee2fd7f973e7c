package groove

import (
	"iter"
	"sync"

	"groove.click/internal/engine"
)

// FillMode is the backpressure policy of a playlist.
type FillMode int

const (
	// EverySinkFull keeps decoding while any consumer has room. A stalled
	// consumer lets its queue grow without bound.
	EverySinkFull FillMode = engine.EverySinkFull
	// AnySinkFull stops decoding as soon as one consumer is full and resumes
	// once none are.
	AnySinkFull FillMode = engine.AnySinkFull
)

func (m FillMode) String() string {
	switch m {
	case EverySinkFull:
		return "every"
	case AnySinkFull:
		return "any"
	default:
		return "unknown"
	}
}

// PlaylistItem is an entry of a Playlist. It is valid until it is removed or
// the playlist is cleared or closed.
type PlaylistItem struct {
	item *engine.Item
}

func wrapItem(item *engine.Item) *PlaylistItem {
	if item == nil {
		return nil
	}
	return &PlaylistItem{item: item}
}

// Gain returns the item gain multiplier.
func (it *PlaylistItem) Gain() float64 {
	return it.item.Gain()
}

// Peak returns the item sample peak.
func (it *PlaylistItem) Peak() float64 {
	return it.item.Peak()
}

// File returns a new alias of the item's file. The caller must close it.
func (it *PlaylistItem) File() *File {
	return newFileAlias(it.item.File())
}

type detacher interface {
	Detach()
}

// Playlist is an ordered list of files decoded in the background for the
// sinks and encoders attached to it.
type Playlist struct {
	p *engine.Playlist

	mu        sync.Mutex
	consumers map[detacher]struct{}
}

// NewPlaylist returns an empty playlist with gain 1.0 and fill mode
// EverySinkFull.
func NewPlaylist() *Playlist {
	return &Playlist{
		p:         engineInstance().CreatePlaylist(),
		consumers: make(map[detacher]struct{}),
	}
}

// Append adds file at the end of the playlist.
func (p *Playlist) Append(file *File, gain, peak float64) *PlaylistItem {
	return p.insert(file, gain, peak, nil)
}

// Insert adds file immediately before the item before.
func (p *Playlist) Insert(file *File, gain, peak float64, before *PlaylistItem) *PlaylistItem {
	if before == nil {
		panic("groove: insert before nil item")
	}
	return p.insert(file, gain, peak, before.item)
}

func (p *Playlist) insert(file *File, gain, peak float64, next *engine.Item) *PlaylistItem {
	h := file.handle()
	item, code := p.p.Insert(h, gain, peak, next)
	switch code {
	case engine.OK:
	case engine.ErrNoMem:
		panic("groove: out of memory")
	default:
		panic(&EngineError{Op: "playlist insert", Code: code})
	}
	files.increment(h)
	return wrapItem(item)
}

// First returns the head item, or nil if the playlist is empty.
func (p *Playlist) First() *PlaylistItem {
	return wrapItem(p.p.Head())
}

// Last returns the tail item, or nil if the playlist is empty.
func (p *Playlist) Last() *PlaylistItem {
	return wrapItem(p.p.Tail())
}

// Len returns the number of items.
func (p *Playlist) Len() int {
	return p.p.Count()
}

// Items walks the playlist from head to tail. Changing the playlist during
// the walk has undefined results.
func (p *Playlist) Items() iter.Seq[*PlaylistItem] {
	return func(yield func(*PlaylistItem) bool) {
		for item := p.p.Head(); item != nil; item = item.Next() {
			if !yield(wrapItem(item)) {
				return
			}
		}
	}
}

// Remove deletes item from the playlist and drops its file reference.
func (p *Playlist) Remove(item *PlaylistItem) error {
	if item == nil {
		panic("groove: remove nil item")
	}
	h := item.item.File()
	if code := p.p.Remove(item.item); code != engine.OK {
		return codeErr("playlist remove", code)
	}
	files.decrement(h)
	return nil
}

// Clear removes every item and drops their file references.
func (p *Playlist) Clear() {
	var handles []*engine.File
	for item := p.p.Head(); item != nil; item = item.Next() {
		handles = append(handles, item.File())
	}

	p.p.Clear()

	for _, h := range handles {
		files.decrement(h)
	}
}

// SetFillMode selects the backpressure policy.
func (p *Playlist) SetFillMode(mode FillMode) {
	if code := p.p.SetFillMode(int(mode)); code != engine.OK {
		panic(&EngineError{Op: "set fill mode", Code: code})
	}
}

// FillMode returns the backpressure policy.
func (p *Playlist) FillMode() FillMode {
	return FillMode(p.p.FillMode())
}

// Gain returns the playlist wide gain.
func (p *Playlist) Gain() float64 {
	return p.p.Gain()
}

// SetGain sets the playlist wide gain, applied on top of item gains.
func (p *Playlist) SetGain(gain float64) {
	p.p.SetGain(gain)
}

// SetItemGain changes the gain of item.
func (p *Playlist) SetItemGain(item *PlaylistItem, gain float64) error {
	return codeErr("set item gain", p.p.SetItemGain(item.item, gain))
}

// SetItemPeak changes the peak of item.
func (p *Playlist) SetItemPeak(item *PlaylistItem, peak float64) error {
	return codeErr("set item peak", p.p.SetItemPeak(item.item, peak))
}

// Play resumes decoding.
func (p *Playlist) Play() {
	p.p.Play()
}

// Pause stops decoding. Queued buffers remain available.
func (p *Playlist) Pause() {
	p.p.Pause()
}

// Playing reports whether the playlist is decoding.
func (p *Playlist) Playing() bool {
	return p.p.Playing()
}

// Position returns the item being decoded and the offset into it in seconds.
// The item is nil once the end of the playlist is reached.
func (p *Playlist) Position() (*PlaylistItem, float64) {
	item, pos := p.p.Position()
	return wrapItem(item), pos
}

// Close detaches remaining consumers, clears the playlist and releases it.
func (p *Playlist) Close() {
	p.mu.Lock()
	consumers := make([]detacher, 0, len(p.consumers))
	for c := range p.consumers {
		consumers = append(consumers, c)
	}
	p.mu.Unlock()

	for _, c := range consumers {
		c.Detach()
	}

	p.Clear()
	p.p.Destroy()
}

func (p *Playlist) track(c detacher) {
	p.mu.Lock()
	p.consumers[c] = struct{}{}
	p.mu.Unlock()
}

func (p *Playlist) untrack(c detacher) {
	p.mu.Lock()
	delete(p.consumers, c)
	p.mu.Unlock()
}
