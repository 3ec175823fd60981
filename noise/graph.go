package noise

import (
	"fmt"
	"sort"
)

// NodeID identifies a node within a Graph.
type NodeID string

// Kind is the operation a node performs.
type Kind string

// Node kinds.
const (
	KindConstant   Kind = "constant"
	KindCoordinate Kind = "coordinate"
	KindPerlin     Kind = "perlin"
	KindValue      Kind = "value"
	KindCellular   Kind = "cellular"
	KindRandom     Kind = "random"
	KindFractal    Kind = "fractal"
	KindAdd        Kind = "add"
	KindSub        Kind = "sub"
	KindMul        Kind = "mul"
	KindDiv        Kind = "div"
	KindMin        Kind = "min"
	KindMax        Kind = "max"
	KindBlend      Kind = "blend"
	KindScaleBias  Kind = "scale_bias"
	KindAbs        Kind = "abs"
	KindInvert     Kind = "invert"
	KindRidge      Kind = "ridge"
	KindSelect     Kind = "select"
	KindWarp       Kind = "warp"
	KindRemap      Kind = "remap"
	KindHeightBias Kind = "height_bias"
	KindOutput     Kind = "output"
)

// Shape is the kind of field a node produces.
type Shape uint8

const (
	// Scalar is one value per sample.
	Scalar Shape = iota
	// Vector is three values per sample.
	Vector
)

func (s Shape) String() string {
	if s == Vector {
		return "vector"
	}
	return "scalar"
}

// Policy decides how warp offsets and remap inputs outside [0,1] are
// brought back into range.
type Policy string

const (
	// Clamp saturates out-of-range values. It is the default.
	Clamp Policy = "clamp"
	// Wrap keeps the fractional part.
	Wrap Policy = "wrap"
)

// Params holds the typed parameters of a node. Only the fields relevant to
// the node's Kind are read. Pointer fields distinguish an explicit zero from
// an absent value; nil falls back to the documented default.
type Params struct {
	Value float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Axis  string  `json:"axis,omitempty" yaml:"axis,omitempty"`

	Seed        uint32   `json:"seed,omitempty" yaml:"seed,omitempty"`
	Frequency   *float64 `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Feature     string   `json:"feature,omitempty" yaml:"feature,omitempty"`
	Points      int      `json:"points,omitempty" yaml:"points,omitempty"`
	Source      Kind     `json:"source,omitempty" yaml:"source,omitempty"`
	Octaves     int      `json:"octaves,omitempty" yaml:"octaves,omitempty"`
	Persistence *float64 `json:"persistence,omitempty" yaml:"persistence,omitempty"`
	Lacunarity  *float64 `json:"lacunarity,omitempty" yaml:"lacunarity,omitempty"`

	Scale     *float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	Bias      float64  `json:"bias,omitempty" yaml:"bias,omitempty"`
	Threshold float64  `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Strength  *float64 `json:"strength,omitempty" yaml:"strength,omitempty"`
	Policy    Policy   `json:"policy,omitempty" yaml:"policy,omitempty"`

	InMin float64      `json:"in_min,omitempty" yaml:"in_min,omitempty"`
	InMax *float64     `json:"in_max,omitempty" yaml:"in_max,omitempty"`
	Curve [][2]float64 `json:"curve,omitempty" yaml:"curve,omitempty"`

	Lower float64 `json:"lower,omitempty" yaml:"lower,omitempty"`
	Upper float64 `json:"upper,omitempty" yaml:"upper,omitempty"`
}

// Float64 returns a pointer to v, for the optional fields of Params.
func Float64(v float64) *float64 { return &v }

// get returns *p, or def when p is nil.
func get(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func (p Params) clone() Params {
	c := p
	for _, f := range []**float64{&c.Frequency, &c.Persistence, &c.Lacunarity, &c.Scale, &c.Strength, &c.InMax} {
		if *f != nil {
			*f = Float64(**f)
		}
	}
	if p.Curve != nil {
		c.Curve = append([][2]float64(nil), p.Curve...)
	}
	return c
}

// Node is one vertex of a noise graph. Inputs maps an input name (such as
// "a", "source" or "domain") to the id of the node feeding it.
type Node struct {
	ID     NodeID            `json:"id" yaml:"id"`
	Kind   Kind              `json:"kind" yaml:"kind"`
	Inputs map[string]NodeID `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Params Params            `json:"params,omitzero" yaml:"params,omitempty"`
}

// Graph is an editable noise graph: a serializable list of nodes with
// exactly one output node.
type Graph struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of g.
func (g Graph) Clone() Graph {
	out := Graph{Name: g.Name, Nodes: make([]Node, len(g.Nodes))}
	for i, n := range g.Nodes {
		c := n
		if n.Inputs != nil {
			c.Inputs = make(map[string]NodeID, len(n.Inputs))
			for k, v := range n.Inputs {
				c.Inputs[k] = v
			}
		}
		c.Params = n.Params.clone()
		out.Nodes[i] = c
	}
	return out
}

// inputNames returns the node's input names in sorted order.
func (n *Node) inputNames() []string {
	names := make([]string, 0, len(n.Inputs))
	for name := range n.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (n Node) String() string {
	return fmt.Sprintf("%s(%s)", n.ID, n.Kind)
}
