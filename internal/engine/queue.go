package engine

import "sync"

// consumer is a sink or encoder registered with a playlist. Every method
// except get is called with the playlist mutex held.
type consumer interface {
	groupKey() groupKey
	isFull() bool
	deliver(b *Buffer)
	deliverEnd()
	purge(item *Item)
	queue() *bufferQueue
}

// bufferQueue is the per consumer queue of produced buffers. A nil entry
// marks the end of the playlist.
type bufferQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	entries  []*Buffer
	frames   int
	bytes    int
	playlist *Playlist
}

func newBufferQueue() *bufferQueue {
	q := &bufferQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *bufferQueue) put(bufs ...*Buffer) {
	q.mu.Lock()
	for _, b := range bufs {
		q.entries = append(q.entries, b)
		if b != nil {
			q.frames += b.FrameCount
			q.bytes += b.Size
		}
	}
	q.cond.Broadcast()
	q.mu.Unlock()
}

// get pops the next entry. Without block it reports BufferNo instead of
// waiting. A detached queue reports BufferEnd.
func (q *bufferQueue) get(block bool) (int, *Buffer) {
	q.mu.Lock()
	for {
		if len(q.entries) > 0 {
			b := q.entries[0]
			q.entries[0] = nil
			q.entries = q.entries[1:]
			if b != nil {
				q.frames -= b.FrameCount
				q.bytes -= b.Size
			}
			p := q.playlist
			q.mu.Unlock()

			if p != nil {
				p.signal()
			}
			if b == nil {
				return BufferEnd, nil
			}
			return BufferYes, b
		}

		if q.playlist == nil {
			q.mu.Unlock()
			return BufferEnd, nil
		}
		if !block {
			q.mu.Unlock()
			return BufferNo, nil
		}
		q.cond.Wait()
	}
}

func (q *bufferQueue) attached() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playlist != nil
}

func (q *bufferQueue) level() (frames, bytes int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.frames, q.bytes
}

func (q *bufferQueue) setPlaylist(p *Playlist) {
	q.mu.Lock()
	q.playlist = p
	q.mu.Unlock()
}

// detach drops every queued buffer and wakes blocked readers.
func (q *bufferQueue) detach() {
	q.mu.Lock()
	for _, b := range q.entries {
		if b != nil {
			b.Unref()
		}
	}
	q.entries = nil
	q.frames = 0
	q.bytes = 0
	q.playlist = nil
	q.cond.Broadcast()
	q.mu.Unlock()
}

// purge drops queued buffers that belong to item and reports their total size.
func (q *bufferQueue) purge(item *Item) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	kept := q.entries[:0]
	for _, b := range q.entries {
		if b != nil && b.Item == item {
			q.frames -= b.FrameCount
			q.bytes -= b.Size
			removed += b.Size
			b.Unref()
			continue
		}
		kept = append(kept, b)
	}
	for i := len(kept); i < len(q.entries); i++ {
		q.entries[i] = nil
	}
	q.entries = kept
	return removed
}
