package noise

import (
	"fmt"
	"sort"
)

// Builder assembles a Graph in code. Node ids are generated from the kind
// and a counter ("perlin1", "add2", ...). Validation happens in Compile,
// not while building.
type Builder struct {
	g    Graph
	next int
}

// NewBuilder starts an empty graph with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{g: Graph{Name: name}}
}

// Add appends a node and returns its id. Inputs are copied.
func (b *Builder) Add(kind Kind, params Params, inputs map[string]NodeID) NodeID {
	b.next++
	id := NodeID(fmt.Sprintf("%s%d", kind, b.next))
	var in map[string]NodeID
	if len(inputs) > 0 {
		in = make(map[string]NodeID, len(inputs))
		for k, v := range inputs {
			in[k] = v
		}
	}
	b.g.Nodes = append(b.g.Nodes, Node{ID: id, Kind: kind, Inputs: in, Params: params})
	return id
}

func (b *Builder) Constant(v float64) NodeID {
	return b.Add(KindConstant, Params{Value: v}, nil)
}

// Coordinate adds a coordinate node for axis "x", "y", "z" or "xyz".
func (b *Builder) Coordinate(axis string) NodeID {
	return b.Add(KindCoordinate, Params{Axis: axis}, nil)
}

// Noise adds a perlin, value, cellular or random node. An empty domain
// samples at the lattice position.
func (b *Builder) Noise(kind Kind, seed uint32, frequency float64, domain NodeID) NodeID {
	return b.Add(kind, Params{Seed: seed, Frequency: Float64(frequency)}, domainInput(domain))
}

// Fractal adds a fractal node summing octaves of source noise.
func (b *Builder) Fractal(source Kind, seed uint32, frequency float64, octaves int, domain NodeID) NodeID {
	return b.Add(KindFractal, Params{
		Source:    source,
		Seed:      seed,
		Frequency: Float64(frequency),
		Octaves:   octaves,
	}, domainInput(domain))
}

// FractalOf adds a fractal node whose octaves evaluate the subgraph rooted
// at base instead of a primitive. base is sampled at the scaled domain of
// each octave, so its own coordinate and noise nodes see octave space.
func (b *Builder) FractalOf(base NodeID, frequency float64, octaves int, domain NodeID) NodeID {
	in := domainInput(domain)
	if in == nil {
		in = map[string]NodeID{}
	}
	in["base"] = base
	return b.Add(KindFractal, Params{Frequency: Float64(frequency), Octaves: octaves}, in)
}

// Binary adds an add, sub, mul, div, min or max node.
func (b *Builder) Binary(kind Kind, lhs, rhs NodeID) NodeID {
	return b.Add(kind, Params{}, map[string]NodeID{"a": lhs, "b": rhs})
}

// Unary adds a node with a single "source" input, such as abs or ridge.
func (b *Builder) Unary(kind Kind, params Params, source NodeID) NodeID {
	return b.Add(kind, params, map[string]NodeID{"source": source})
}

func (b *Builder) ScaleBias(source NodeID, scale, bias float64) NodeID {
	return b.Unary(KindScaleBias, Params{Scale: Float64(scale), Bias: bias}, source)
}

// HeightBias subtracts a ramp from 0 at lower to 1 at upper along axis.
func (b *Builder) HeightBias(source NodeID, axis string, lower, upper float64) NodeID {
	return b.Unary(KindHeightBias, Params{Axis: axis, Lower: lower, Upper: upper}, source)
}

// Warp offsets domain by up to strength along each connected axis.
func (b *Builder) Warp(domain, x, y, z NodeID, strength float64) NodeID {
	in := domainInput(domain)
	if in == nil {
		in = map[string]NodeID{}
	}
	for name, id := range map[string]NodeID{"x": x, "y": y, "z": z} {
		if id != "" {
			in[name] = id
		}
	}
	return b.Add(KindWarp, Params{Strength: Float64(strength)}, in)
}

// Output adds the output node. material may be empty.
func (b *Builder) Output(density, material NodeID) NodeID {
	in := map[string]NodeID{"density": density}
	if material != "" {
		in["material"] = material
	}
	return b.Add(KindOutput, Params{}, in)
}

// Graph returns a copy of the graph built so far.
func (b *Builder) Graph() Graph {
	return b.g.Clone()
}

func domainInput(domain NodeID) map[string]NodeID {
	if domain == "" {
		return nil
	}
	return map[string]NodeID{"domain": domain}
}

var presets = map[string]func() Graph{
	"flat":  flatPreset,
	"hills": hillsPreset,
	"caves": cavesPreset,
}

// PresetNames returns the names of the built-in graphs in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a fresh copy of a built-in graph.
func Preset(name string) (Graph, bool) {
	fn, ok := presets[name]
	if !ok {
		return Graph{}, false
	}
	return fn(), true
}

// flatPreset is solid below y = 0.
func flatPreset() Graph {
	b := NewBuilder("flat")
	ground := b.HeightBias(b.Constant(0.5), "y", -1, 1)
	b.Output(ground, "")
	return b.Graph()
}

// hillsPreset is a fractal heightfield between y = -16 and y = 48 with
// material following altitude.
func hillsPreset() Graph {
	b := NewBuilder("hills")
	hills := hillsDensity(b)
	b.Output(hills, altitudeMaterial(b))
	return b.Graph()
}

// cavesPreset carves warped ridge tunnels out of the hills.
func cavesPreset() Graph {
	b := NewBuilder("caves")
	hills := hillsDensity(b)

	xyz := b.Coordinate("xyz")
	warped := b.Warp(xyz,
		b.Noise(KindPerlin, 11, 1.0/48, ""),
		b.Noise(KindPerlin, 12, 1.0/48, ""),
		b.Noise(KindPerlin, 13, 1.0/48, ""),
		6)
	tunnels := b.Unary(KindRidge, Params{}, b.Fractal(KindPerlin, 7, 1.0/40, 3, warped))
	caves := b.ScaleBias(tunnels, 1, -0.08)

	b.Output(b.Binary(KindMin, hills, caves), altitudeMaterial(b))
	return b.Graph()
}

func hillsDensity(b *Builder) NodeID {
	n := b.Fractal(KindPerlin, 1, 1.0/96, 5, "")
	return b.HeightBias(n, "y", -16, 48)
}

// altitudeMaterial maps y in [-16, 48] onto [0, 1].
func altitudeMaterial(b *Builder) NodeID {
	return b.ScaleBias(b.Coordinate("y"), 1.0/64, 0.25)
}
