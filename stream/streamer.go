package stream

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"github.com/gogpu/terrain"
	"github.com/gogpu/terrain/config"
	"github.com/gogpu/terrain/internal/parallel"
	"github.com/gogpu/terrain/internal/wide"
	"github.com/gogpu/terrain/noise"
	"github.com/gogpu/terrain/volume"
)

// Ticket states. The frame thread cancels with live->cancelled, the worker
// finishes with live->done; whichever CAS wins decides the outcome.
const (
	ticketLive int32 = iota
	ticketCancelled
	ticketDone
)

type ticket struct {
	state atomic.Int32
}

func (t *ticket) cancel() bool    { return t.state.CompareAndSwap(ticketLive, ticketCancelled) }
func (t *ticket) finish() bool    { return t.state.CompareAndSwap(ticketLive, ticketDone) }
func (t *ticket) cancelled() bool { return t.state.Load() == ticketCancelled }

// record is the frame thread's view of one key.
type record struct {
	// chunk is nil while a worker owns it.
	chunk *volume.Chunk
	// state is the last state the frame thread observed.
	state volume.State
	task  *ticket
	// waiting is set while the key sits in the pending list.
	waiting bool
	// retiring keeps a Ready chunk published until the chunk replacing it
	// at another LOD becomes Ready.
	retiring bool
	mesh     *volume.Mesh
}

type result struct {
	key       volume.Key
	chunk     *volume.Chunk
	log       []Transition
	err       error
	violation *noise.PreconditionViolation
}

// Stats is a snapshot of the streamer. Keys owned by a worker are counted
// under the state they were submitted in. Queued is the part of InFlight
// still waiting for a worker.
type Stats struct {
	States     map[volume.State]int
	Resident   int
	Required   int
	InFlight   int
	Queued     int
	Pending    int
	Published  uint64
	Evicted    uint64
	Cancelled  uint64
	Discarded  uint64
	Failed     uint64
	Retries    uint64
	Recomputes uint64
}

// maxRetryShift caps the retry backoff at 64 frames.
const maxRetryShift = 6

// failure tracks a required key whose last task failed.
type failure struct {
	count   int
	retryAt uint64
}

// retryDelay returns the frames to wait before the next attempt after
// count consecutive failures.
func retryDelay(count int) uint64 {
	return 1 << min(count-1, maxRetryShift)
}

// Streamer keeps the chunks around a focal point generated, meshed and
// published. Update, Stats, State and Close must be called from one
// goroutine, the frame thread; generation and meshing run on a worker pool.
type Streamer struct {
	cfg      config.Streaming
	surface  config.Surface
	layout   volume.Layout
	plan     *noise.CompiledGraph
	renderer Renderer

	workers      int
	backend      wide.Backend
	log          *slog.Logger
	onTransition func(Transition)
	now          func() time.Time

	pool     *parallel.WorkerPool
	evals    []*noise.Evaluator
	results  chan result
	inFlight int
	closing  atomic.Bool
	closed   bool

	chunks   map[volume.Key]*record
	required map[volume.Key]int32
	order    []volume.Key
	pending  []volume.Key
	focal    [3]float64
	hasFocal bool
	stats    Stats
	frame    uint64
	failures map[volume.Key]*failure

	taskHook func(key volume.Key, st volume.State)
}

// New starts a streamer over plan. The worker pool is created immediately;
// call Close to stop it.
func New(cfg config.Streaming, layout volume.Layout, plan *noise.CompiledGraph, renderer Renderer, opts ...Option) (*Streamer, error) {
	if plan == nil {
		return nil, errors.New("stream: nil plan")
	}
	if renderer == nil {
		return nil, errors.New("stream: nil renderer")
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}
	if err := cfg.Validate(layout.MaxLOD); err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}

	s := &Streamer{
		cfg:      cfg,
		layout:   layout,
		plan:     plan,
		renderer: renderer,
		workers:  cfg.Workers,
		log:      terrain.Logger(),
		now:      time.Now,
		chunks:   make(map[volume.Key]*record),
		required: make(map[volume.Key]int32),
		failures: make(map[volume.Key]*failure),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.surface.Validate(); err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}

	s.pool = parallel.NewWorkerPoolCapacity(s.workers, cfg.QueueCapacity)
	s.evals = make([]*noise.Evaluator, s.pool.Workers())
	for i := range s.evals {
		s.evals[i] = noise.NewEvaluator(noise.WithBackend(s.backend))
	}
	// Every submitted task reports exactly once and submissions are capped
	// at cap(results), so workers never block on the channel.
	s.results = make(chan result, s.pool.Capacity()+s.pool.Workers())

	s.log.Info("stream: started",
		"workers", s.pool.Workers(),
		"queue", s.pool.Capacity(),
		"backend", s.evals[0].Backend().String(),
		"lod_radii", cfg.LODRadii)
	return s, nil
}

// NewFromGraph compiles g through plans and starts a streamer over the
// result, so streamers over equal graphs share one plan. A nil plans uses
// noise.DefaultPlanCache.
func NewFromGraph(cfg config.Streaming, layout volume.Layout, g noise.Graph, plans *noise.PlanCache, renderer Renderer, opts ...Option) (*Streamer, error) {
	if plans == nil {
		plans = noise.DefaultPlanCache()
	}
	plan, err := plans.Compile(g)
	if err != nil {
		return nil, fmt.Errorf("stream: graph %q: %w", g.Name, err)
	}
	return New(cfg, layout, plan, renderer, opts...)
}

// Update advances the streamer by one frame: it drains up to DrainBudget
// worker results, recomputes the frontier when focal moved at least
// Hysteresis since the last recompute, re-requests failed keys whose
// backoff has elapsed, and submits pending work. It never blocks on
// workers.
//
// A PreconditionViolation raised by a worker is re-raised here.
func (s *Streamer) Update(focal [3]float64) {
	if s.closed {
		return
	}
	s.frame++
	s.drain()
	if !s.hasFocal || distance(focal, s.focal) >= s.cfg.Hysteresis {
		s.recompute(focal)
	}
	s.retry()
	s.schedule()
}

// State returns the frame thread's view of key. Keys owned by a worker
// report the state they were submitted in.
func (s *Streamer) State(key volume.Key) volume.State {
	if rec, ok := s.chunks[key]; ok {
		return rec.state
	}
	return volume.Empty
}

// Mesh returns the published mesh of key.
func (s *Streamer) Mesh(key volume.Key) (*volume.Mesh, bool) {
	rec, ok := s.chunks[key]
	if !ok || rec.mesh == nil {
		return nil, false
	}
	return rec.mesh, true
}

// Frontier returns the required keys, nearest first.
func (s *Streamer) Frontier() []volume.Key {
	return slices.Clone(s.order)
}

// Stats returns a snapshot of the streamer.
func (s *Streamer) Stats() Stats {
	st := s.stats
	st.States = make(map[volume.State]int)
	for _, rec := range s.chunks {
		st.States[rec.state]++
	}
	st.Resident = len(s.chunks)
	st.Required = len(s.required)
	st.InFlight = s.inFlight
	st.Queued = s.pool.QueuedWork()
	st.Pending = len(s.pending)
	return st
}

// Close stops the worker pool, waits for running tasks and discards their
// results. Published meshes are left with the renderer. Close is safe to
// call more than once; Update is a no-op afterwards.
func (s *Streamer) Close() {
	if s.closed {
		return
	}
	s.closing.Store(true)
	s.pool.Close()
	for {
		select {
		case <-s.results:
			s.inFlight--
		default:
			s.closed = true
			s.pending = nil
			s.log.Info("stream: closed", "resident", len(s.chunks))
			return
		}
	}
}

func (s *Streamer) drain() {
	for range s.cfg.DrainBudget {
		select {
		case r := <-s.results:
			s.handle(r)
		default:
			return
		}
	}
}

func (s *Streamer) handle(r result) {
	s.inFlight--
	rec := s.chunks[r.key]
	rec.task = nil
	rec.chunk = r.chunk
	rec.state = r.chunk.State()
	for _, t := range r.log {
		s.emit(t)
	}

	if r.violation != nil {
		s.log.Error("stream: precondition violated in worker", "key", r.key.String(), "err", r.violation)
		panic(r.violation)
	}
	_, required := s.required[r.key]

	switch rec.state {
	case volume.Empty:
		s.stats.Failed++
		delete(s.chunks, r.key)
		if !required {
			s.log.Warn("stream: chunk task failed", "key", r.key.String(), "err", r.err)
			return
		}
		f, ok := s.failures[r.key]
		if !ok {
			f = &failure{}
			s.failures[r.key] = f
		}
		f.count++
		f.retryAt = s.frame + retryDelay(f.count)
		s.log.Warn("stream: chunk task failed", "key", r.key.String(), "err", r.err,
			"failures", f.count, "retry_in_frames", f.retryAt-s.frame)

	case volume.Cancelled:
		s.move(rec, volume.Empty)
		delete(s.chunks, r.key)
		if required {
			s.request(r.key)
		}

	case volume.Populated:
		if !required {
			s.discard(rec)
			return
		}
		s.move(rec, volume.Meshing)
		s.enqueue(rec)

	case volume.Ready:
		if !required {
			s.discard(rec)
			return
		}
		s.publish(rec)
	}
}

// retry re-requests failed keys that are still required, absent and past
// their backoff, in key order.
func (s *Streamer) retry() {
	if len(s.failures) == 0 {
		return
	}
	var due []volume.Key
	for key, f := range s.failures {
		if _, ok := s.required[key]; !ok {
			delete(s.failures, key)
			continue
		}
		if _, ok := s.chunks[key]; ok || s.frame < f.retryAt {
			continue
		}
		due = append(due, key)
	}
	slices.SortFunc(due, compareKeys)
	for _, key := range due {
		s.stats.Retries++
		s.log.Debug("stream: retrying chunk", "key", key.String(), "failures", s.failures[key].count)
		s.request(key)
	}
}

func (s *Streamer) recompute(focal [3]float64) {
	s.focal, s.hasFocal = focal, true
	s.stats.Recomputes++
	center := s.layout.ChunkAt(focal)
	s.required, s.order = frontier(center, s.cfg.LODRadii, s.cfg.VerticalRadius)
	s.log.Debug("stream: frontier recomputed", "center", center.String(), "keys", len(s.order))

	leaving := make([]volume.Key, 0)
	for key, rec := range s.chunks {
		if _, ok := s.required[key]; ok {
			rec.retiring = false
			continue
		}
		leaving = append(leaving, key)
	}
	slices.SortFunc(leaving, compareKeys)
	for _, key := range leaving {
		s.release(s.chunks[key])
	}

	for _, key := range s.order {
		if _, ok := s.chunks[key]; !ok {
			s.request(key)
		}
	}
}

// release handles a key that left the frontier.
func (s *Streamer) release(rec *record) {
	if rec.task != nil {
		if rec.task.cancel() {
			s.stats.Cancelled++
		}
		return
	}
	switch rec.state {
	case volume.Requested, volume.Meshing:
		s.stats.Cancelled++
		s.move(rec, volume.Cancelled)
		s.move(rec, volume.Empty)
		delete(s.chunks, rec.chunk.Key)
	case volume.Populated:
		s.discard(rec)
	case volume.Ready:
		if s.replacementPending(rec.chunk.Key) {
			rec.retiring = true
			return
		}
		s.evict(rec)
	}
}

// replacementPending reports whether another LOD of key's coordinate is
// required but not yet Ready.
func (s *Streamer) replacementPending(key volume.Key) bool {
	for lod := range s.layout.MaxLOD + 1 {
		other := volume.Key{Coord: key.Coord, LOD: lod}
		if lod == key.LOD {
			continue
		}
		if _, ok := s.required[other]; !ok {
			continue
		}
		if rec, ok := s.chunks[other]; !ok || rec.state != volume.Ready {
			return true
		}
	}
	return false
}

func (s *Streamer) request(key volume.Key) {
	rec := &record{chunk: volume.NewChunk(key)}
	s.chunks[key] = rec
	s.move(rec, volume.Requested)
	s.enqueue(rec)
}

func (s *Streamer) enqueue(rec *record) {
	if rec.waiting {
		return
	}
	rec.waiting = true
	s.pending = append(s.pending, rec.chunk.Key)
}

// schedule submits pending work nearest first until the pool is full.
// Keys that do not fit stay pending for the next Update.
func (s *Streamer) schedule() {
	slices.SortStableFunc(s.pending, func(a, b volume.Key) int {
		return cmp.Or(cmp.Compare(s.distance(a), s.distance(b)), compareKeys(a, b))
	})

	kept := s.pending[:0]
	full := false
	for _, key := range s.pending {
		rec, ok := s.chunks[key]
		if !ok || rec.task != nil || (rec.state != volume.Requested && rec.state != volume.Meshing) {
			if ok {
				rec.waiting = false
			}
			continue
		}
		if full || s.inFlight >= cap(s.results) || !s.submit(rec) {
			full = true
			kept = append(kept, key)
			continue
		}
		rec.waiting = false
	}
	clear(s.pending[len(kept):])
	s.pending = kept
}

func (s *Streamer) distance(key volume.Key) int32 {
	if d, ok := s.required[key]; ok {
		return d
	}
	return math.MaxInt32
}

func (s *Streamer) submit(rec *record) bool {
	c, tk := rec.chunk, &ticket{}
	var task parallel.Task
	if rec.state == volume.Meshing {
		task = s.meshTask(c, tk)
	} else {
		task = s.generateTask(c, tk)
	}
	if !s.pool.TrySubmit(task) {
		return false
	}
	rec.chunk, rec.task = nil, tk
	s.inFlight++
	return true
}

func (s *Streamer) generateTask(c *volume.Chunk, tk *ticket) parallel.Task {
	return func(worker int) {
		s.runTask(c, tk, func(r *result) {
			if tk.cancelled() {
				s.step(r, c, volume.Cancelled)
				return
			}
			s.step(r, c, volume.Generating)
			s.hook(c.Key, volume.Generating)
			f := volume.Populate(s.evals[worker], c.Key, s.plan, s.layout)
			if err := c.SetField(f); err != nil {
				panic(err)
			}
			s.settle(r, c, tk, volume.Populated)
		})
	}
}

func (s *Streamer) meshTask(c *volume.Chunk, tk *ticket) parallel.Task {
	return func(int) {
		s.runTask(c, tk, func(r *result) {
			if tk.cancelled() {
				s.step(r, c, volume.Cancelled)
				return
			}
			s.hook(c.Key, volume.Meshing)
			m := volume.ExtractSurface(c.Field(), s.surface.Iso, s.surface.Thresholds)
			if err := c.SetMesh(m); err != nil {
				panic(err)
			}
			s.settle(r, c, tk, volume.Ready)
		})
	}
}

// runTask runs body on a worker and reports its result. A panic sends the
// chunk back to Empty.
func (s *Streamer) runTask(c *volume.Chunk, tk *ticket, body func(r *result)) {
	r := result{key: c.Key, chunk: c}
	defer func() {
		if p := recover(); p != nil {
			tk.finish()
			r.err = fmt.Errorf("stream: chunk %v: %v", c.Key, p)
			if pv, ok := noise.AsPreconditionViolation(p); ok {
				r.violation = pv
			}
			if st := c.State(); st == volume.Generating || st == volume.Meshing {
				s.step(&r, c, volume.Empty)
			}
		}
		s.results <- r
	}()
	if s.closing.Load() {
		return
	}
	body(&r)
}

// settle moves c to done unless the key was cancelled while the task ran.
func (s *Streamer) settle(r *result, c *volume.Chunk, tk *ticket, done volume.State) {
	if tk.finish() {
		s.step(r, c, done)
		return
	}
	s.step(r, c, volume.Cancelled)
}

// step is the worker-side transition; the frame thread emits r.log when
// the result is drained.
func (s *Streamer) step(r *result, c *volume.Chunk, to volume.State) {
	from := c.State()
	if err := c.Transition(to); err != nil {
		panic(err)
	}
	r.log = append(r.log, Transition{Key: c.Key, From: from, To: to, At: s.now()})
}

func (s *Streamer) hook(key volume.Key, st volume.State) {
	if s.taskHook != nil {
		s.taskHook(key, st)
	}
}

// move is the frame-thread transition.
func (s *Streamer) move(rec *record, to volume.State) {
	c := rec.chunk
	from := c.State()
	if err := c.Transition(to); err != nil {
		noise.Violate("stream.Update", "%v", err)
	}
	rec.state = to
	s.emit(Transition{Key: c.Key, From: from, To: to, At: s.now()})
}

func (s *Streamer) emit(t Transition) {
	s.log.Debug("stream: transition", "key", t.Key.String(), "from", t.From.String(), "to", t.To.String())
	if s.onTransition != nil {
		s.onTransition(t)
	}
}

func (s *Streamer) publish(rec *record) {
	key := rec.chunk.Key
	rec.mesh = rec.chunk.Mesh()
	s.renderer.Publish(key, rec.mesh)
	s.stats.Published++
	delete(s.failures, key)

	for lod := range s.layout.MaxLOD + 1 {
		if lod == key.LOD {
			continue
		}
		old, ok := s.chunks[volume.Key{Coord: key.Coord, LOD: lod}]
		if ok && old.retiring && !s.replacementPending(old.chunk.Key) {
			s.evict(old)
		}
	}
}

// evict withdraws a published chunk.
func (s *Streamer) evict(rec *record) {
	key := rec.chunk.Key
	s.renderer.Evict(key)
	s.stats.Evicted++
	rec.mesh, rec.retiring = nil, false
	s.move(rec, volume.Evicting)
	s.move(rec, volume.Empty)
	delete(s.chunks, key)
}

// discard drops a Populated or Ready chunk that was never published.
func (s *Streamer) discard(rec *record) {
	s.stats.Discarded++
	s.move(rec, volume.Evicting)
	s.move(rec, volume.Empty)
	delete(s.chunks, rec.chunk.Key)
}

func distance(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
