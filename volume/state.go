package volume

import "fmt"

// State is the lifecycle stage of a chunk key.
type State uint8

const (
	Empty State = iota
	Requested
	Generating
	Populated
	Meshing
	Ready
	Evicting
	Cancelled

	numStates
)

var stateNames = [numStates]string{
	Empty:      "empty",
	Requested:  "requested",
	Generating: "generating",
	Populated:  "populated",
	Meshing:    "meshing",
	Ready:      "ready",
	Evicting:   "evicting",
	Cancelled:  "cancelled",
}

func (s State) String() string {
	if s < numStates {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// States returns every state in lifecycle order.
func States() []State {
	s := make([]State, numStates)
	for i := range s {
		s[i] = State(i)
	}
	return s
}

// InFlight reports whether work for the key may be running on a worker.
func (s State) InFlight() bool {
	return s == Requested || s == Generating || s == Meshing
}

// edges lists the legal transitions. Generating and Meshing may fall back
// to Empty when the worker fails. Populated may be evicted directly when
// its key leaves the frontier before meshing is scheduled.
var edges = [numStates][]State{
	Empty:      {Requested},
	Requested:  {Generating, Cancelled},
	Generating: {Populated, Cancelled, Empty},
	Populated:  {Meshing, Evicting},
	Meshing:    {Ready, Cancelled, Empty},
	Ready:      {Evicting},
	Evicting:   {Empty},
	Cancelled:  {Empty},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	if from >= numStates {
		return false
	}
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError reports an illegal state change.
type TransitionError struct {
	Key      Key
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("volume: chunk %v: illegal transition %v -> %v", e.Key, e.From, e.To)
}

// Chunk is one key's lifecycle record with its field and mesh. A chunk is
// owned by one goroutine at a time: the frame thread, or the worker running
// its current task.
type Chunk struct {
	Key Key

	state State
	field *Field
	mesh  *Mesh
}

// NewChunk returns an Empty chunk.
func NewChunk(key Key) *Chunk {
	return &Chunk{Key: key}
}

func (c *Chunk) State() State { return c.state }

// Field returns the populated field, or nil.
func (c *Chunk) Field() *Field { return c.field }

// Mesh returns the extracted mesh, or nil.
func (c *Chunk) Mesh() *Mesh { return c.mesh }

// Transition moves the chunk to state to. Entering Empty releases the field
// and mesh.
func (c *Chunk) Transition(to State) error {
	if !CanTransition(c.state, to) {
		return &TransitionError{Key: c.Key, From: c.state, To: to}
	}
	c.state = to
	if to == Empty {
		c.release()
	}
	return nil
}

// SetField stores the populated field. The chunk must be Generating.
func (c *Chunk) SetField(f *Field) error {
	if c.state != Generating {
		return &TransitionError{Key: c.Key, From: c.state, To: Populated}
	}
	c.field = f
	return nil
}

// SetMesh stores the extracted mesh and drops the field, which meshing no
// longer needs. The chunk must be Meshing.
func (c *Chunk) SetMesh(m *Mesh) error {
	if c.state != Meshing {
		return &TransitionError{Key: c.Key, From: c.state, To: Ready}
	}
	c.mesh = m
	if c.field != nil {
		c.field.Release()
		c.field = nil
	}
	return nil
}

func (c *Chunk) release() {
	if c.field != nil {
		c.field.Release()
	}
	c.field, c.mesh = nil, nil
}
