package noise

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Fingerprint is the SHA-256 of a plan's canonical JSON encoding. Equal
// graphs have equal fingerprints.
type Fingerprint [32]byte

func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// Position slots hold the world coordinates of the current batch.
const (
	slotX = iota
	slotY
	slotZ
	firstFreeSlot
)

const unconnected = -1

// step is one entry of the evaluation plan. Parameters are resolved to
// float32 with defaults applied.
type step struct {
	id   NodeID
	kind Kind
	in   [4]int // slots in kindSpec input order, or unconnected
	out  int

	seed                    uint32
	value, freq             float32
	persistence, lacunarity float32
	scale, bias             float32
	threshold, strength     float32
	inMin, inScale          float32
	lower, invRange         float32
	octaves, points         int
	source                  Kind
	cellValue               bool
	policy                  Policy
	axis                    int
	curveT, curveV          []float32
	// sub is the plan of a fractal's base input, re-run once per octave.
	sub *CompiledGraph
}

// CompiledGraph is an immutable evaluation plan: the nodes reachable from
// the output, in dependency order. It is safe for concurrent use by any
// number of Evaluators.
type CompiledGraph struct {
	name        string
	steps       []step
	slots       int
	density     int
	material    int
	fingerprint Fingerprint
	order       []NodeID
}

// Name returns the name of the graph the plan was compiled from.
func (c *CompiledGraph) Name() string { return c.name }

// Len returns the number of plan steps, including the output step.
func (c *CompiledGraph) Len() int { return len(c.steps) }

// Order returns the node ids in evaluation order. The last one is the
// output node. Nodes reached only through a fractal base input belong to
// that fractal's sub-plan and are not listed.
func (c *CompiledGraph) Order() []NodeID { return append([]NodeID(nil), c.order...) }

// HasMaterial reports whether the output node has a material input.
func (c *CompiledGraph) HasMaterial() bool { return c.material != unconnected }

// Fingerprint identifies the plan independently of node list order,
// unreachable nodes and the graph name.
func (c *CompiledGraph) Fingerprint() Fingerprint { return c.fingerprint }

func (c *CompiledGraph) valid() bool { return c != nil && len(c.steps) > 0 }

// Compile validates g and builds its evaluation plan. It fails with one of
// the CompileError types and never returns a partial plan.
//
// The whole graph is validated, but only nodes reachable from the output
// are kept. Steps are ordered by a depth-first post-order walk from the
// output that visits inputs in sorted name order, so identical graphs
// compile to identical plans.
func Compile(g Graph) (*CompiledGraph, error) {
	byID := make(map[NodeID]*Node, len(g.Nodes))
	var output *Node

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ID == "" {
			return nil, &InvalidNodeError{Reason: fmt.Sprintf("node %d has an empty id", i)}
		}
		if _, dup := byID[n.ID]; dup {
			return nil, &InvalidNodeError{At: n.ID, Reason: "duplicate id", Err: ErrDuplicateID}
		}
		byID[n.ID] = n
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if err := checkNode(n, byID); err != nil {
			return nil, err
		}
		if n.Kind == KindOutput {
			if output != nil {
				return nil, &InvalidNodeError{At: n.ID, Reason: "second output node", Err: ErrMultipleOutputs}
			}
			output = n
		}
	}
	if output == nil {
		return nil, &InvalidNodeError{Reason: "no output node", Err: ErrNoOutput}
	}

	if err := findCycle(g.Nodes, byID); err != nil {
		return nil, err
	}

	for i := range g.Nodes {
		if err := checkShapes(&g.Nodes[i], byID); err != nil {
			return nil, err
		}
	}

	c, _, err := build(g.Name, planOrder(output, byID), byID)
	return c, err
}

// checkNode validates kind, parameters and input references of one node.
func checkNode(n *Node, byID map[NodeID]*Node) error {
	spec, ok := kinds[n.Kind]
	if !ok {
		return &InvalidNodeError{At: n.ID, Reason: fmt.Sprintf("kind %q", n.Kind), Err: ErrUnknownKind}
	}
	if spec.validate != nil {
		if err := spec.validate(n); err != nil {
			return &InvalidNodeError{At: n.ID, Reason: "bad parameter", Err: err}
		}
	}

	for _, name := range n.inputNames() {
		if _, ok := spec.input(name); !ok {
			return &InvalidNodeError{At: n.ID, Reason: fmt.Sprintf("unexpected input %q for kind %s", name, n.Kind)}
		}
		ref := n.Inputs[name]
		target, ok := byID[ref]
		if !ok {
			return &DanglingReferenceError{From: n.ID, Input: name, Missing: ref}
		}
		if target.Kind == KindOutput {
			return &InvalidNodeError{At: n.ID, Reason: fmt.Sprintf("input %q references output node %q", name, ref)}
		}
	}

	for _, in := range spec.inputs {
		if _, ok := n.Inputs[in.name]; in.required && !ok {
			return &InvalidNodeError{At: n.ID, Reason: fmt.Sprintf("missing required input %q", in.name)}
		}
	}
	if len(spec.atLeastOne) > 0 {
		connected := false
		for _, name := range spec.atLeastOne {
			if _, ok := n.Inputs[name]; ok {
				connected = true
			}
		}
		if !connected {
			return &InvalidNodeError{At: n.ID, Reason: fmt.Sprintf("needs at least one of inputs %v", spec.atLeastOne)}
		}
	}
	return nil
}

func checkShapes(n *Node, byID map[NodeID]*Node) error {
	spec := kinds[n.Kind]
	for _, name := range n.inputNames() {
		in, _ := spec.input(name)
		got := byID[n.Inputs[name]].OutputShape()
		if got != in.shape {
			return &TypeMismatchError{At: n.ID, Input: name, Want: in.shape, Got: got}
		}
	}
	return nil
}

// findCycle runs a colored depth-first search over every node, roots in
// sorted id order.
func findCycle(nodes []Node, byID map[NodeID]*Node) error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[NodeID]int, len(nodes))
	var stack []NodeID

	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		color[id] = grey
		stack = append(stack, id)
		n := byID[id]
		for _, name := range n.inputNames() {
			next := n.Inputs[name]
			switch color[next] {
			case grey:
				start := len(stack) - 1
				for stack[start] != next {
					start--
				}
				path := append(append([]NodeID(nil), stack[start:]...), next)
				return &CyclicGraphError{Path: path}
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	ids := make([]NodeID, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// planOrder returns the nodes reachable from root in post-order. Deferred
// inputs are not followed; they get plans of their own.
func planOrder(root *Node, byID map[NodeID]*Node) []*Node {
	seen := make(map[NodeID]bool)
	var order []*Node
	var visit func(n *Node)
	visit = func(n *Node) {
		seen[n.ID] = true
		spec := kinds[n.Kind]
		for _, name := range n.inputNames() {
			if in, _ := spec.input(name); in.deferred {
				continue
			}
			if next := byID[n.Inputs[name]]; !seen[next.ID] {
				visit(next)
			}
		}
		order = append(order, n)
	}
	visit(root)
	return order
}

// build lays out the steps of order. When the last node is not an output
// node, the plan's density is that node's value. It also returns the
// canonical node list the fingerprint was computed from.
func build(name string, order []*Node, byID map[NodeID]*Node) (*CompiledGraph, []Node, error) {
	c := &CompiledGraph{
		name:     name,
		steps:    make([]step, 0, len(order)),
		slots:    firstFreeSlot,
		material: unconnected,
		order:    make([]NodeID, 0, len(order)),
	}
	slotOf := make(map[NodeID]int, len(order))
	canon := make([]Node, 0, len(order))

	for _, n := range order {
		spec := kinds[n.Kind]
		s := resolve(n)
		for i := range s.in {
			s.in[i] = unconnected
		}
		for i, in := range spec.inputs {
			ref, ok := n.Inputs[in.name]
			if !ok {
				continue
			}
			if !in.deferred {
				s.in[i] = slotOf[ref]
				continue
			}
			root := byID[ref]
			sub, subCanon, err := build("", planOrder(root, byID), byID)
			if err != nil {
				return nil, nil, err
			}
			s.sub = sub
			canon = append(canon, subCanon...)
		}

		switch n.Kind {
		case KindCoordinate:
			if n.Params.Axis == "xyz" {
				s.out = slotX
			} else {
				s.out, _ = axisIndex(n.Params.Axis)
			}
		case KindOutput:
			s.out = unconnected
			c.density = s.in[0]
			c.material = s.in[1]
		default:
			s.out = c.slots
			if n.OutputShape() == Vector {
				c.slots += 3
			} else {
				c.slots++
			}
		}
		slotOf[n.ID] = s.out

		c.steps = append(c.steps, s)
		c.order = append(c.order, n.ID)
		canon = append(canon, *n)
	}

	if last := order[len(order)-1]; last.Kind != KindOutput {
		c.density = slotOf[last.ID]
	}

	doc, err := json.Marshal(canon)
	if err != nil {
		return nil, nil, &InvalidNodeError{Reason: "encode plan", Err: err}
	}
	c.fingerprint = sha256.Sum256(doc)
	return c, canon, nil
}

// resolve converts node parameters to float32 and applies defaults.
func resolve(n *Node) step {
	p := &n.Params
	s := step{
		id:          n.ID,
		kind:        n.Kind,
		seed:        p.Seed,
		value:       float32(p.Value),
		freq:        float32(get(p.Frequency, DefaultFrequency)),
		persistence: float32(get(p.Persistence, DefaultPersistence)),
		lacunarity:  float32(get(p.Lacunarity, DefaultLacunarity)),
		scale:       float32(get(p.Scale, DefaultScale)),
		bias:        float32(p.Bias),
		threshold:   float32(p.Threshold),
		strength:    float32(get(p.Strength, DefaultStrength)),
		octaves:     p.Octaves,
		points:      p.Points,
		source:      p.Source,
		cellValue:   p.Feature == "value",
		policy:      p.Policy,
	}
	if s.octaves == 0 {
		s.octaves = DefaultOctaves
	}
	if s.points == 0 {
		s.points = DefaultPoints
	}
	if s.source == "" {
		s.source = KindPerlin
	}
	if s.policy == "" {
		s.policy = Clamp
	}

	inMin, inMax := p.InMin, get(p.InMax, DefaultInMax)
	s.inMin = float32(inMin)
	s.inScale = float32(1 / (inMax - inMin))

	if n.Kind == KindHeightBias {
		s.axis = 1
		if a, ok := axisIndex(p.Axis); ok {
			s.axis = a
		}
		s.lower = float32(p.Lower)
		s.invRange = float32(1 / (p.Upper - p.Lower))
	}

	for _, pt := range p.Curve {
		s.curveT = append(s.curveT, float32(pt[0]))
		s.curveV = append(s.curveV, float32(pt[1]))
	}
	return s
}
