package groove

import (
	"sync"

	"groove.click/internal/engine"
)

// registry counts the aliases of engine handles and destroys a handle when
// its last alias goes away.
type registry[H comparable] struct {
	mu      sync.Mutex
	counts  map[H]int
	destroy func(H)
}

func newRegistry[H comparable](destroy func(H)) *registry[H] {
	return &registry[H]{
		counts:  make(map[H]int),
		destroy: destroy,
	}
}

func (r *registry[H]) increment(h H) {
	r.mu.Lock()
	r.counts[h]++
	r.mu.Unlock()
}

func (r *registry[H]) decrement(h H) {
	r.mu.Lock()
	n, ok := r.counts[h]
	if !ok {
		r.mu.Unlock()
		panic("groove: too many releases")
	}
	if n > 1 {
		r.counts[h] = n - 1
		r.mu.Unlock()
		return
	}
	delete(r.counts, h)
	r.mu.Unlock()

	r.destroy(h)
}

func (r *registry[H]) count(h H) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[h]
}

var files = newRegistry(func(f *engine.File) {
	f.Close()
})
