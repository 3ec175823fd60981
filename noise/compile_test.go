package noise

import (
	"errors"
	"slices"
	"testing"
)

func node(id NodeID, kind Kind, params Params, inputs ...string) Node {
	n := Node{ID: id, Kind: kind, Params: params}
	if len(inputs) > 0 {
		n.Inputs = make(map[string]NodeID, len(inputs)/2)
		for i := 0; i+1 < len(inputs); i += 2 {
			n.Inputs[inputs[i]] = NodeID(inputs[i+1])
		}
	}
	return n
}

func mustCompile(t *testing.T, g Graph) *CompiledGraph {
	t.Helper()
	plan, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile(%s) error = %v", g.Name, err)
	}
	return plan
}

func TestCompile_Valid(t *testing.T) {
	g := Graph{Name: "sum", Nodes: []Node{
		node("out", KindOutput, Params{}, "density", "sum"),
		node("sum", KindAdd, Params{}, "a", "n", "b", "c"),
		node("n", KindPerlin, Params{Seed: 3}),
		node("c", KindConstant, Params{Value: -0.5}),
		node("unused", KindValue, Params{}),
	}}
	plan := mustCompile(t, g)

	if plan.Name() != "sum" {
		t.Errorf("Name() = %q, want sum", plan.Name())
	}
	want := []NodeID{"n", "c", "sum", "out"}
	if got := plan.Order(); !slices.Equal(got, want) {
		t.Errorf("Order() = %v, want %v", got, want)
	}
	if plan.Len() != 4 {
		t.Errorf("Len() = %d, want 4", plan.Len())
	}
	if plan.HasMaterial() {
		t.Error("HasMaterial() = true, want false")
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		nodes  []Node
		target any
		is     error
		at     NodeID
	}{
		{
			name: "cycle",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "a"),
				node("a", KindAdd, Params{}, "a", "b", "b", "c"),
				node("b", KindAbs, Params{}, "source", "a"),
				node("c", KindConstant, Params{}),
			},
			target: new(*CyclicGraphError),
			at:     "a",
		},
		{
			name: "self loop",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "a"),
				node("a", KindAbs, Params{}, "source", "a"),
			},
			target: new(*CyclicGraphError),
			at:     "a",
		},
		{
			name: "dangling",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "a"),
				node("a", KindAbs, Params{}, "source", "ghost"),
			},
			target: new(*DanglingReferenceError),
			at:     "a",
		},
		{
			name: "vector into scalar",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "p"),
				node("p", KindCoordinate, Params{Axis: "xyz"}),
			},
			target: new(*TypeMismatchError),
			at:     "out",
		},
		{
			name: "scalar into domain",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "n"),
				node("n", KindPerlin, Params{}, "domain", "c"),
				node("c", KindConstant, Params{}),
			},
			target: new(*TypeMismatchError),
			at:     "n",
		},
		{
			name:   "no output",
			nodes:  []Node{node("c", KindConstant, Params{})},
			target: new(*InvalidNodeError),
			is:     ErrNoOutput,
		},
		{
			name: "two outputs",
			nodes: []Node{
				node("c", KindConstant, Params{}),
				node("o1", KindOutput, Params{}, "density", "c"),
				node("o2", KindOutput, Params{}, "density", "c"),
			},
			target: new(*InvalidNodeError),
			is:     ErrMultipleOutputs,
			at:     "o2",
		},
		{
			name: "duplicate id",
			nodes: []Node{
				node("c", KindConstant, Params{}),
				node("c", KindConstant, Params{}),
			},
			target: new(*InvalidNodeError),
			is:     ErrDuplicateID,
			at:     "c",
		},
		{
			name:   "unknown kind",
			nodes:  []Node{node("x", "simplex", Params{})},
			target: new(*InvalidNodeError),
			is:     ErrUnknownKind,
			at:     "x",
		},
		{
			name: "missing input",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "s"),
				node("s", KindSub, Params{}, "a", "c"),
				node("c", KindConstant, Params{}),
			},
			target: new(*InvalidNodeError),
			at:     "s",
		},
		{
			name: "unexpected input",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "c"),
				node("c", KindConstant, Params{}, "source", "d"),
				node("d", KindConstant, Params{}),
			},
			target: new(*InvalidNodeError),
			at:     "c",
		},
		{
			name: "input from output",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "c"),
				node("c", KindConstant, Params{}),
				node("a", KindAbs, Params{}, "source", "out"),
			},
			target: new(*InvalidNodeError),
			at:     "a",
		},
		{
			name: "warp without offsets",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "n"),
				node("n", KindPerlin, Params{}, "domain", "w"),
				node("w", KindWarp, Params{}),
			},
			target: new(*InvalidNodeError),
			at:     "w",
		},
		{
			name: "bad axis",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "p"),
				node("p", KindCoordinate, Params{Axis: "w"}),
			},
			target: new(*InvalidNodeError),
			at:     "p",
		},
		{
			name: "too many octaves",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "f"),
				node("f", KindFractal, Params{Octaves: MaxOctaves + 1}),
			},
			target: new(*InvalidNodeError),
			at:     "f",
		},
		{
			name: "descending curve",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "r"),
				node("r", KindRemap, Params{Curve: [][2]float64{{0.5, 0}, {0.2, 1}}}, "source", "c"),
				node("c", KindConstant, Params{}),
			},
			target: new(*InvalidNodeError),
			at:     "r",
		},
		{
			name: "fractal source and base",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "f"),
				node("f", KindFractal, Params{Source: KindValue}, "base", "n"),
				node("n", KindPerlin, Params{}),
			},
			target: new(*InvalidNodeError),
			at:     "f",
		},
		{
			name: "vector fractal base",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "f"),
				node("f", KindFractal, Params{}, "base", "p"),
				node("p", KindCoordinate, Params{Axis: "xyz"}),
			},
			target: new(*TypeMismatchError),
			at:     "f",
		},
		{
			name: "too many cellular points",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "c"),
				node("c", KindCellular, Params{Points: MaxPoints + 1}),
			},
			target: new(*InvalidNodeError),
			at:     "c",
		},
		{
			name: "zero remap range",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "r"),
				node("r", KindRemap, Params{InMin: 1}, "source", "c"),
				node("c", KindConstant, Params{}),
			},
			target: new(*InvalidNodeError),
			at:     "r",
		},
		{
			name: "empty height range",
			nodes: []Node{
				node("out", KindOutput, Params{}, "density", "h"),
				node("h", KindHeightBias, Params{Lower: 2, Upper: 2}, "source", "c"),
				node("c", KindConstant, Params{}),
			},
			target: new(*InvalidNodeError),
			at:     "h",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Compile(Graph{Name: tt.name, Nodes: tt.nodes})
			if err == nil {
				t.Fatal("Compile() error = nil, want error")
			}
			if plan != nil {
				t.Error("Compile() returned a plan alongside an error")
			}
			if !errors.As(err, tt.target) {
				t.Fatalf("Compile() error = %T %v, want %T", err, err, tt.target)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.is)
			}
			var ce CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("error %T does not implement CompileError", err)
			}
			if tt.at != "" && ce.Node() != tt.at {
				t.Errorf("Node() = %q, want %q", ce.Node(), tt.at)
			}
		})
	}
}

func TestCompile_CyclePath(t *testing.T) {
	_, err := Compile(Graph{Nodes: []Node{
		node("out", KindOutput, Params{}, "density", "a"),
		node("a", KindAbs, Params{}, "source", "b"),
		node("b", KindAbs, Params{}, "source", "c"),
		node("c", KindAbs, Params{}, "source", "a"),
	}})
	var cyc *CyclicGraphError
	if !errors.As(err, &cyc) {
		t.Fatalf("error = %v, want *CyclicGraphError", err)
	}
	want := []NodeID{"a", "b", "c", "a"}
	if !slices.Equal(cyc.Path, want) {
		t.Errorf("Path = %v, want %v", cyc.Path, want)
	}
}

func TestCompile_Deterministic(t *testing.T) {
	g, _ := Preset("caves")
	a := mustCompile(t, g)

	shuffled := g.Clone()
	slices.Reverse(shuffled.Nodes)
	shuffled.Name = "renamed"
	b := mustCompile(t, shuffled)

	if !slices.Equal(a.Order(), b.Order()) {
		t.Errorf("Order differs with node order:\n%v\n%v", a.Order(), b.Order())
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("Fingerprint differs: %v vs %v", a.Fingerprint(), b.Fingerprint())
	}

	g2 := g.Clone()
	g2.Nodes[0].Params.Seed++
	if c := mustCompile(t, g2); c.Fingerprint() == a.Fingerprint() {
		t.Error("Fingerprint unchanged after editing a reachable node")
	}
}

func TestCompile_FractalBase(t *testing.T) {
	g := Graph{Nodes: []Node{
		node("out", KindOutput, Params{}, "density", "sum"),
		node("sum", KindAdd, Params{}, "a", "f", "b", "c"),
		node("f", KindFractal, Params{Octaves: 3}, "base", "r"),
		node("r", KindRidge, Params{}, "source", "n"),
		node("n", KindPerlin, Params{Seed: 4}),
		node("c", KindConstant, Params{Value: 0.1}),
	}}
	plan := mustCompile(t, g)

	// The base subgraph runs inside the fractal, not in the outer plan.
	want := []NodeID{"f", "c", "sum", "out"}
	if got := plan.Order(); !slices.Equal(got, want) {
		t.Errorf("Order() = %v, want %v", got, want)
	}
	var f *step
	for i := range plan.steps {
		if plan.steps[i].id == "f" {
			f = &plan.steps[i]
		}
	}
	if f == nil || f.sub == nil {
		t.Fatal("fractal step has no sub-plan")
	}
	if got := f.sub.Order(); !slices.Equal(got, []NodeID{"n", "r"}) {
		t.Errorf("sub-plan Order() = %v, want [n r]", got)
	}

	g2 := g.Clone()
	n, _ := g2.Node("n")
	n.Params.Seed++
	if mustCompile(t, g2).Fingerprint() == plan.Fingerprint() {
		t.Error("Fingerprint unchanged after editing a node inside the fractal base")
	}
}

func TestCompile_DoesNotMutateGraph(t *testing.T) {
	g, _ := Preset("hills")
	before, err := Encode(g)
	if err != nil {
		t.Fatal(err)
	}
	mustCompile(t, g)
	after, _ := Encode(g)
	if string(before) != string(after) {
		t.Error("Compile modified its input graph")
	}
}

func TestPresets_Compile(t *testing.T) {
	names := PresetNames()
	if !slices.Equal(names, []string{"caves", "flat", "hills"}) {
		t.Errorf("PresetNames() = %v", names)
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			g, ok := Preset(name)
			if !ok {
				t.Fatalf("Preset(%q) not found", name)
			}
			mustCompile(t, g)
		})
	}
	if _, ok := Preset("mountains"); ok {
		t.Error("Preset(mountains) found")
	}
}

func TestNode_OutputShape(t *testing.T) {
	tests := []struct {
		n    Node
		want Shape
	}{
		{Node{Kind: KindConstant}, Scalar},
		{Node{Kind: KindCoordinate, Params: Params{Axis: "y"}}, Scalar},
		{Node{Kind: KindCoordinate, Params: Params{Axis: "xyz"}}, Vector},
		{Node{Kind: KindWarp}, Vector},
		{Node{Kind: KindFractal}, Scalar},
	}
	for _, tt := range tests {
		if got := tt.n.OutputShape(); got != tt.want {
			t.Errorf("%v.OutputShape() = %v, want %v", tt.n, got, tt.want)
		}
	}
}
