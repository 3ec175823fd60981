package stream

import (
	"log/slog"
	"time"

	"github.com/gogpu/terrain/config"
	"github.com/gogpu/terrain/internal/wide"
	"github.com/gogpu/terrain/volume"
)

// Renderer receives meshes as chunks become Ready and eviction notices as
// they leave. Both are called on the goroutine running Update. The renderer
// borrows the mesh and must drop it after Evict.
type Renderer interface {
	Publish(key volume.Key, mesh *volume.Mesh)
	Evict(key volume.Key)
}

// Transition is one state change of a chunk key.
type Transition struct {
	Key      volume.Key
	From, To volume.State
	At       time.Time
}

// Option configures a Streamer.
type Option func(*Streamer)

// WithWorkers overrides the configured worker count.
func WithWorkers(n int) Option {
	return func(s *Streamer) {
		s.workers = n
	}
}

// WithTransitionLog registers fn to receive every state change, in order
// per key. fn runs on the goroutine calling Update; worker-side changes are
// delivered when their results are drained.
func WithTransitionLog(fn func(Transition)) Option {
	return func(s *Streamer) {
		s.onTransition = fn
	}
}

// WithLogger sets the logger. The default is terrain.Logger().
func WithLogger(l *slog.Logger) Option {
	return func(s *Streamer) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the time source for Transition.At. now is called from
// worker goroutines and must be safe for concurrent use.
func WithClock(now func() time.Time) Option {
	return func(s *Streamer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSurface sets the isovalue and material thresholds used for meshing.
func WithSurface(sf config.Surface) Option {
	return func(s *Streamer) {
		s.surface = sf
	}
}

// WithBackend selects the lane width of the per-worker evaluators.
func WithBackend(b wide.Backend) Option {
	return func(s *Streamer) {
		s.backend = b
	}
}

// WithTaskHook registers fn to run on the worker at the start of each
// generate or mesh task, once the chunk is in state st. A panic in fn fails
// the task the same way a panic in generation or meshing does.
func WithTaskHook(fn func(key volume.Key, st volume.State)) Option {
	return func(s *Streamer) {
		s.taskHook = fn
	}
}
