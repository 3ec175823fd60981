package stream

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/terrain/config"
	"github.com/gogpu/terrain/noise"
	"github.com/gogpu/terrain/volume"
)

type event struct {
	publish bool
	key     volume.Key
}

// recorder is a Renderer that records calls and flags protocol errors.
type recorder struct {
	events []event
	live   map[volume.Key]*volume.Mesh
	errs   []string
}

func newRecorder() *recorder {
	return &recorder{live: make(map[volume.Key]*volume.Mesh)}
}

func (r *recorder) Publish(key volume.Key, m *volume.Mesh) {
	if _, ok := r.live[key]; ok {
		r.errs = append(r.errs, "publish of live key "+key.String())
	}
	r.live[key] = m
	r.events = append(r.events, event{publish: true, key: key})
}

func (r *recorder) Evict(key volume.Key) {
	if _, ok := r.live[key]; !ok {
		r.errs = append(r.errs, "evict of unpublished key "+key.String())
	}
	delete(r.live, key)
	r.events = append(r.events, event{key: key})
}

func (r *recorder) index(publish bool, key volume.Key) int {
	for i, e := range r.events {
		if e.publish == publish && e.key == key {
			return i
		}
	}
	return -1
}

func (r *recorder) published(key volume.Key) bool {
	return r.index(true, key) >= 0
}

type journal map[volume.Key][]Transition

func (j journal) add(t Transition) { j[t.Key] = append(j[t.Key], t) }

// checkChains verifies that every key's transitions form one connected walk
// from Empty over legal edges, so no key ever had two lifecycles at once.
func checkChains(t *testing.T, j journal) {
	t.Helper()
	for key, ts := range j {
		prev := volume.Empty
		for i, tr := range ts {
			if tr.From != prev {
				t.Fatalf("%v: transition %d starts at %v, previous ended at %v", key, i, tr.From, prev)
			}
			if !volume.CanTransition(tr.From, tr.To) {
				t.Fatalf("%v: illegal transition %v -> %v", key, tr.From, tr.To)
			}
			prev = tr.To
		}
	}
}

func smallLayout() volume.Layout {
	return volume.Layout{ChunkSize: 8, Cells: 4, MaxLOD: 1}
}

func smallStreaming() config.Streaming {
	return config.Streaming{
		LODRadii:      []int{1, 2},
		Hysteresis:    4,
		Workers:       2,
		QueueCapacity: 64,
		DrainBudget:   64,
	}
}

func preset(t *testing.T, name string) *noise.CompiledGraph {
	t.Helper()
	g, ok := noise.Preset(name)
	if !ok {
		t.Fatalf("no preset %q", name)
	}
	plan, err := noise.Compile(g)
	if err != nil {
		t.Fatalf("Compile(%s): %v", name, err)
	}
	return plan
}

func newStreamer(t *testing.T, cfg config.Streaming, layout volume.Layout, r Renderer, j journal, opts ...Option) *Streamer {
	t.Helper()
	opts = append(opts, WithTransitionLog(j.add))
	s, err := New(cfg, layout, preset(t, "hills"), r, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// settle updates at focal until no work is queued or running.
func settle(t *testing.T, s *Streamer, focal [3]float64) {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for {
		s.Update(focal)
		st := s.Stats()
		if st.InFlight == 0 && st.Pending == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("streamer did not settle: %+v", st)
		}
		time.Sleep(200 * time.Microsecond)
	}
}

func checkLive(t *testing.T, s *Streamer, r *recorder) {
	t.Helper()
	for _, msg := range r.errs {
		t.Error(msg)
	}
	front := s.Frontier()
	if len(r.live) != len(front) {
		t.Errorf("renderer holds %d meshes, frontier has %d keys", len(r.live), len(front))
	}
	for _, key := range front {
		if _, ok := r.live[key]; !ok {
			t.Errorf("%v is required but not published", key)
		}
		if st := s.State(key); st != volume.Ready {
			t.Errorf("State(%v) = %v, want ready", key, st)
		}
	}
}

func TestNew_Errors(t *testing.T) {
	plan := preset(t, "flat")
	r := newRecorder()
	tooMany := smallStreaming()
	tooMany.LODRadii = []int{1, 2, 3}

	tests := []struct {
		name   string
		cfg    config.Streaming
		layout volume.Layout
		plan   *noise.CompiledGraph
		r      Renderer
		opts   []Option
	}{
		{"nil plan", smallStreaming(), smallLayout(), nil, r, nil},
		{"nil renderer", smallStreaming(), smallLayout(), plan, nil, nil},
		{"bad layout", smallStreaming(), volume.Layout{ChunkSize: 8, Cells: 3}, plan, r, nil},
		{"too many rings", tooMany, smallLayout(), plan, r, nil},
		{"bad surface", smallStreaming(), smallLayout(), plan, r,
			[]Option{WithSurface(config.Surface{Thresholds: []float32{1, 2, 3, 4}})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg, tt.layout, tt.plan, tt.r, tt.opts...)
			if err == nil {
				s.Close()
				t.Fatal("New succeeded")
			}
		})
	}
}

func TestNewFromGraph(t *testing.T) {
	plans := noise.NewPlanCache(4)
	g, _ := noise.Preset("caves")
	a, err := NewFromGraph(smallStreaming(), smallLayout(), g, plans, newRecorder())
	if err != nil {
		t.Fatalf("NewFromGraph: %v", err)
	}
	defer a.Close()

	renamed := g.Clone()
	renamed.Name = "caves-copy"
	b, err := NewFromGraph(smallStreaming(), smallLayout(), renamed, plans, newRecorder())
	if err != nil {
		t.Fatalf("NewFromGraph: %v", err)
	}
	defer b.Close()

	if a.plan != b.plan {
		t.Error("streamers over equal graphs compiled separate plans")
	}
	if st := plans.Stats(); st.Hits != 1 || st.Misses != 1 {
		t.Errorf("plan cache hits=%d misses=%d, want 1/1", st.Hits, st.Misses)
	}

	broken := noise.Graph{Name: "broken", Nodes: []noise.Node{{ID: "c", Kind: noise.KindConstant}}}
	_, err = NewFromGraph(smallStreaming(), smallLayout(), broken, plans, newRecorder())
	var ce noise.CompileError
	if !errors.As(err, &ce) {
		t.Errorf("NewFromGraph(broken) error = %v, want a CompileError", err)
	}
}

func TestFrontier(t *testing.T) {
	center := volume.Coord{X: 5, Y: 0, Z: -2}
	required, order := frontier(center, []int{1, 3}, 1)

	if len(order) != 7*7*3 || len(required) != len(order) {
		t.Fatalf("frontier has %d keys (%d unique), want %d", len(order), len(required), 7*7*3)
	}
	if order[0] != (volume.Key{Coord: center}) {
		t.Errorf("first key = %v, want the center at LOD 0", order[0])
	}
	for i, key := range order {
		d := key.Chebyshev(center)
		want := uint8(0)
		if d > 1 {
			want = 1
		}
		if key.LOD != want {
			t.Errorf("%v at distance %d has LOD %d, want %d", key, d, key.LOD, want)
		}
		if i > 0 && required[order[i-1]] > required[key] {
			t.Errorf("frontier not nearest first at %d", i)
		}
		if dy := key.Y - center.Y; dy < -1 || dy > 1 {
			t.Errorf("%v outside vertical radius", key)
		}
	}

	_, flat := frontier(center, []int{2}, 5)
	if len(flat) != 5*5*5 {
		t.Errorf("vertical radius above the outer ring: %d keys, want 125", len(flat))
	}
}

func TestStreamer_LoadsFrontier(t *testing.T) {
	r, j := newRecorder(), journal{}
	s := newStreamer(t, smallStreaming(), smallLayout(), r, j)

	focal := [3]float64{4, 4, 4}
	settle(t, s, focal)
	checkLive(t, s, r)

	if got := len(s.Frontier()); got != 25 {
		t.Fatalf("frontier has %d keys, want 25", got)
	}
	st := s.Stats()
	if st.Published != 25 || st.Evicted != 0 || st.Cancelled != 0 || st.Failed != 0 {
		t.Errorf("stats = %+v", st)
	}
	if st.States[volume.Ready] != 25 {
		t.Errorf("ready = %d, want 25", st.States[volume.Ready])
	}

	want := []volume.State{volume.Requested, volume.Generating, volume.Populated, volume.Meshing, volume.Ready}
	for key, ts := range j {
		if len(ts) != len(want) {
			t.Fatalf("%v: %d transitions, want %d", key, len(ts), len(want))
		}
		for i, tr := range ts {
			if tr.To != want[i] {
				t.Errorf("%v: transition %d to %v, want %v", key, i, tr.To, want[i])
			}
		}
	}
	checkChains(t, j)

	center := volume.Key{}
	if m, ok := s.Mesh(center); !ok || m.Key != center {
		t.Errorf("Mesh(%v) = %v, %v", center, m, ok)
	}
	if _, ok := s.Mesh(volume.Key{Coord: volume.Coord{X: 2}}); ok {
		t.Error("LOD 0 mesh published outside the inner ring")
	}
	if _, ok := s.Mesh(volume.Key{Coord: volume.Coord{X: 2}, LOD: 1}); !ok {
		t.Error("outer ring not published at LOD 1")
	}
}

func TestStreamer_Hysteresis(t *testing.T) {
	r, j := newRecorder(), journal{}
	s := newStreamer(t, smallStreaming(), smallLayout(), r, j)

	settle(t, s, [3]float64{4, 4, 4})
	settle(t, s, [3]float64{6, 5, 4})
	if got := s.Stats().Recomputes; got != 1 {
		t.Errorf("recomputes after a short move = %d, want 1", got)
	}
	settle(t, s, [3]float64{9, 4, 4})
	if got := s.Stats().Recomputes; got != 2 {
		t.Errorf("recomputes after a long move = %d, want 2", got)
	}
}

func TestStreamer_MoveReplacesLODWithoutGaps(t *testing.T) {
	r, j := newRecorder(), journal{}
	s := newStreamer(t, smallStreaming(), smallLayout(), r, j)

	settle(t, s, [3]float64{4, 4, 4})
	before := s.Frontier()
	settle(t, s, [3]float64{12, 4, 4})
	checkLive(t, s, r)
	checkChains(t, j)

	after := make(map[volume.Coord]volume.Key)
	for _, key := range s.Frontier() {
		after[key.Coord] = key
	}
	replaced := 0
	for _, old := range before {
		now, ok := after[old.Coord]
		if !ok || now.LOD == old.LOD {
			continue
		}
		replaced++
		pub, ev := r.index(true, now), r.index(false, old)
		if pub < 0 || ev < 0 {
			t.Fatalf("%v -> %v: publish at %d, evict at %d", old, now, pub, ev)
		}
		if ev < pub {
			t.Errorf("%v evicted before %v was published", old, now)
		}
	}
	if replaced == 0 {
		t.Fatal("move changed no LODs")
	}

	gone := 0
	for _, old := range before {
		if _, ok := after[old.Coord]; !ok {
			gone++
			if r.index(false, old) < 0 {
				t.Errorf("%v left the frontier but was not evicted", old)
			}
		}
	}
	if st := s.Stats(); st.Evicted != uint64(replaced+gone) {
		t.Errorf("evicted = %d, want %d", st.Evicted, replaced+gone)
	}
}

func TestStreamer_CancelledNeverPublished(t *testing.T) {
	r, j := newRecorder(), journal{}
	cfg := smallStreaming()
	cfg.Workers = 1
	layout := volume.Layout{ChunkSize: 16, Cells: 16, MaxLOD: 1}
	s, err := New(cfg, layout, preset(t, "caves"), r, WithTransitionLog(j.add))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.Update([3]float64{0, 0, 0})
	old := s.Frontier()
	settle(t, s, [3]float64{4000, 0, 0})
	checkLive(t, s, r)
	checkChains(t, j)

	if s.Stats().Cancelled == 0 {
		t.Fatal("no work was cancelled")
	}
	for _, key := range old {
		if r.published(key) {
			t.Errorf("cancelled key %v was published", key)
		}
		ts := j[key]
		if last := ts[len(ts)-1]; last.To != volume.Empty {
			t.Errorf("%v ended in %v", key, last.To)
		}
		if s.State(key) != volume.Empty {
			t.Errorf("%v still resident", key)
		}
	}
}

func TestStreamer_OscillationKeepsOneLifecyclePerKey(t *testing.T) {
	r, j := newRecorder(), journal{}
	cfg := smallStreaming()
	cfg.Hysteresis = 0
	s := newStreamer(t, cfg, smallLayout(), r, j)

	for i := range 60 {
		x := 7.9
		if i%2 == 1 {
			x = 8.1
		}
		s.Update([3]float64{x, 4, 4})
		time.Sleep(100 * time.Microsecond)
	}
	settle(t, s, [3]float64{8.1, 4, 4})
	checkLive(t, s, r)
	checkChains(t, j)
	if s.Stats().Cancelled == 0 {
		t.Log("oscillation finished without cancellations")
	}
}

func TestStreamer_QueueFullKeepsWorkPending(t *testing.T) {
	r, j := newRecorder(), journal{}
	cfg := smallStreaming()
	cfg.Workers = 1
	cfg.QueueCapacity = 1
	s := newStreamer(t, cfg, smallLayout(), r, j)

	s.Update([3]float64{4, 4, 4})
	if st := s.Stats(); st.Pending == 0 || st.InFlight > 2 || st.Queued > st.InFlight {
		t.Errorf("after the first update: %+v", st)
	}
	settle(t, s, [3]float64{4, 4, 4})
	checkLive(t, s, r)
	checkChains(t, j)
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		count int
		want  uint64
	}{
		{1, 1},
		{2, 2},
		{3, 4},
		{7, 64},
		{30, 64},
	}
	for _, tt := range tests {
		if got := retryDelay(tt.count); got != tt.want {
			t.Errorf("retryDelay(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}

func TestStreamer_FailedChunkIsRetried(t *testing.T) {
	r, j := newRecorder(), journal{}
	center := volume.Key{}
	var failed atomic.Bool
	s := newStreamer(t, smallStreaming(), smallLayout(), r, j, WithTaskHook(func(key volume.Key, st volume.State) {
		if key == center && st == volume.Generating && failed.CompareAndSwap(false, true) {
			panic("generator crashed")
		}
	}))

	// The focus never moves, so the frontier is computed once and only the
	// retry can bring the failed key back.
	focal := [3]float64{1, 1, 1}
	deadline := time.Now().Add(20 * time.Second)
	for {
		s.Update(focal)
		st := s.Stats()
		if r.published(center) && st.InFlight == 0 && st.Pending == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("failed key never published: %+v", st)
		}
		time.Sleep(200 * time.Microsecond)
	}

	st := s.Stats()
	if st.Failed != 1 || st.Retries != 1 || st.Recomputes != 1 || st.Published != 25 {
		t.Errorf("stats = %+v", st)
	}
	if len(s.failures) != 0 {
		t.Errorf("%d failures tracked after the retry succeeded", len(s.failures))
	}
	ts := j[center]
	failedAt := -1
	for i, tr := range ts {
		if tr.From == volume.Generating && tr.To == volume.Empty {
			failedAt = i
		}
	}
	if failedAt < 0 || failedAt == len(ts)-1 {
		t.Errorf("transitions of the failed key = %v", ts)
	}
	checkLive(t, s, r)
	checkChains(t, j)
}

func TestStreamer_RetryBacksOff(t *testing.T) {
	r, j := newRecorder(), journal{}
	center := volume.Key{}
	s := newStreamer(t, smallStreaming(), smallLayout(), r, j, WithTaskHook(func(key volume.Key, st volume.State) {
		if key == center && st == volume.Generating {
			panic("generator crashed")
		}
	}))

	focal := [3]float64{1, 1, 1}
	for range 40 {
		s.Update(focal)
		time.Sleep(time.Millisecond)
	}
	// Backoff doubles from one frame, so 40 frames allow at most 5 retries.
	st := s.Stats()
	if st.Retries == 0 || st.Retries > 5 {
		t.Errorf("Retries = %d after 40 frames, want 1..5", st.Retries)
	}
	if st.Failed < st.Retries {
		t.Errorf("Failed = %d, Retries = %d", st.Failed, st.Retries)
	}
	if r.published(center) {
		t.Error("always-failing key was published")
	}

	// Once the key leaves the frontier it is forgotten.
	settle(t, s, [3]float64{400, 1, 1})
	s.Update([3]float64{400, 1, 1})
	if len(s.failures) != 0 {
		t.Errorf("%d failures tracked for keys outside the frontier", len(s.failures))
	}
	checkLive(t, s, r)
	checkChains(t, j)
}

func TestStreamer_WorkerViolationIsRaised(t *testing.T) {
	r, j := newRecorder(), journal{}
	s := newStreamer(t, smallStreaming(), smallLayout(), r, j, WithTaskHook(func(key volume.Key, st volume.State) {
		if key == (volume.Key{}) {
			noise.Violate("test", "bad chunk")
		}
	}))

	got := func() (p any) {
		defer func() { p = recover() }()
		deadline := time.Now().Add(20 * time.Second)
		for time.Now().Before(deadline) {
			s.Update([3]float64{1, 1, 1})
			time.Sleep(200 * time.Microsecond)
		}
		return nil
	}()
	pv, ok := noise.AsPreconditionViolation(got)
	if !ok {
		t.Fatalf("Update panicked with %v, want a precondition violation", got)
	}
	if pv.Reason != "bad chunk" {
		t.Errorf("reason = %q", pv.Reason)
	}
}

func TestStreamer_Close(t *testing.T) {
	r, j := newRecorder(), journal{}
	s := newStreamer(t, smallStreaming(), smallLayout(), r, j)

	s.Update([3]float64{4, 4, 4})
	s.Close()
	s.Close()
	published := len(r.events)
	s.Update([3]float64{4, 4, 4})
	s.Update([3]float64{400, 4, 4})

	if st := s.Stats(); st.InFlight != 0 || st.Pending != 0 {
		t.Errorf("after Close: %+v", st)
	}
	if len(r.events) != published {
		t.Errorf("renderer called %d times after Close", len(r.events)-published)
	}
}

func TestStreamer_TransitionClock(t *testing.T) {
	r, j := newRecorder(), journal{}
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newStreamer(t, smallStreaming(), smallLayout(), r, j,
		WithClock(func() time.Time { return at }),
		WithWorkers(1))

	settle(t, s, [3]float64{4, 4, 4})
	for key, ts := range j {
		for _, tr := range ts {
			if !tr.At.Equal(at) {
				t.Fatalf("%v: transition at %v, want %v", key, tr.At, at)
			}
		}
	}
}
