package render

import (
	"cmp"
	"slices"
	"sync"

	"github.com/gogpu/terrain/volume"
)

// Upload is one published chunk packed for the GPU.
type Upload struct {
	Key       volume.Key
	Vertices  []byte
	Indices   []byte
	Splits    []volume.Split
	Triangles int
	Lo, Hi    volume.Vec3
}

// EventKind tells publishes from evictions.
type EventKind uint8

const (
	Published EventKind = iota
	Evicted
)

func (k EventKind) String() string {
	if k == Published {
		return "publish"
	}
	return "evict"
}

// Event is one renderer call, in call order.
type Event struct {
	Kind EventKind
	Key  volume.Key
}

// RecorderStats summarizes a Recorder.
type RecorderStats struct {
	Published   int
	Evicted     int
	Resident    int
	Triangles   int
	VertexBytes int
	IndexBytes  int
	// Stray counts evictions of keys that were not published.
	Stray int
}

// Recorder is a renderer that packs every published mesh and keeps it until
// it is evicted. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	live   map[volume.Key]*Upload
	events []Event
	stats  RecorderStats
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{live: make(map[volume.Key]*Upload)}
}

// Publish packs m and stores it under key, replacing any earlier upload.
func (r *Recorder) Publish(key volume.Key, m *volume.Mesh) {
	u := &Upload{
		Key:      key,
		Vertices: Interleave(m),
		Indices:  IndexBytes(m),
	}
	if m != nil {
		u.Triangles = m.TriangleCount()
		u.Splits = slices.Clone(m.Splits)
		u.Lo, u.Hi, _ = m.Bounds()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.live[key]; ok {
		r.forget(old)
	}
	r.live[key] = u
	r.events = append(r.events, Event{Kind: Published, Key: key})
	r.stats.Published++
	r.stats.Triangles += u.Triangles
	r.stats.VertexBytes += len(u.Vertices)
	r.stats.IndexBytes += len(u.Indices)
}

// Evict drops the upload of key.
func (r *Recorder) Evict(key volume.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: Evicted, Key: key})
	old, ok := r.live[key]
	if !ok {
		r.stats.Stray++
		return
	}
	r.forget(old)
	delete(r.live, key)
	r.stats.Evicted++
}

func (r *Recorder) forget(u *Upload) {
	r.stats.Triangles -= u.Triangles
	r.stats.VertexBytes -= len(u.Vertices)
	r.stats.IndexBytes -= len(u.Indices)
}

// Get returns the upload of key.
func (r *Recorder) Get(key volume.Key) (*Upload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.live[key]
	return u, ok
}

// Keys returns the resident keys ordered by LOD, then y, z and x.
func (r *Recorder) Keys() []volume.Key {
	r.mu.Lock()
	keys := make([]volume.Key, 0, len(r.live))
	for k := range r.live {
		keys = append(keys, k)
	}
	r.mu.Unlock()

	slices.SortFunc(keys, func(a, b volume.Key) int {
		return cmp.Or(
			cmp.Compare(a.LOD, b.LOD),
			cmp.Compare(a.Y, b.Y),
			cmp.Compare(a.Z, b.Z),
			cmp.Compare(a.X, b.X),
		)
	})
	return keys
}

// Events returns a copy of the call log.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Stats returns the current totals.
func (r *Recorder) Stats() RecorderStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stats
	st.Resident = len(r.live)
	return st
}
