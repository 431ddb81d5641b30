package breadcrumb

import "sync"

// DefaultCapacity is used when NewRecorder receives a non-positive size.
const DefaultCapacity = 100

// Recorder is a fixed-size ring of breadcrumbs. When full, recording evicts
// the oldest entry.
type Recorder struct {
	mu     sync.Mutex
	items  []*Breadcrumb
	cursor int
	count  int
}

func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{items: make([]*Breadcrumb, capacity)}
}

func (r *Recorder) Capacity() int {
	return len(r.items)
}

// Count reports how many breadcrumbs were recorded since the last Clear,
// including evicted ones.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *Recorder) Record(b *Breadcrumb) {
	if b == nil {
		return
	}
	r.mu.Lock()
	r.items[r.cursor] = b
	r.cursor = (r.cursor + 1) % len(r.items)
	r.count++
	r.mu.Unlock()
}

// Fetch returns the retained breadcrumbs oldest first.
func (r *Recorder) Fetch() []*Breadcrumb {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count < len(r.items) {
		out := make([]*Breadcrumb, r.count)
		copy(out, r.items[:r.count])
		return out
	}
	out := make([]*Breadcrumb, 0, len(r.items))
	out = append(out, r.items[r.cursor:]...)
	out = append(out, r.items[:r.cursor]...)
	return out
}

func (r *Recorder) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count == 0
}

func (r *Recorder) Clear() {
	r.mu.Lock()
	clear(r.items)
	r.cursor = 0
	r.count = 0
	r.mu.Unlock()
}
