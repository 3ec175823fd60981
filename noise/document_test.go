package noise

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const ridgeJSON = `{
  "name": "ridges",
  "nodes": [
    {"id": "n", "kind": "fractal", "params": {"seed": 42, "frequency": 0.02, "octaves": 5}},
    {"id": "r", "kind": "ridge", "inputs": {"source": "n"}},
    {"id": "out", "kind": "output", "inputs": {"density": "r"}}
  ]
}`

const ridgeYAML = `
name: ridges
nodes:
  - id: n
    kind: fractal
    params:
      seed: 42
      frequency: 0.02
      octaves: 5
  - id: r
    kind: ridge
    inputs:
      source: n
  - id: out
    kind: output
    inputs:
      density: r
`

func TestDecodeJSON(t *testing.T) {
	g, err := DecodeJSON([]byte(ridgeJSON))
	if err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	if g.Name != "ridges" || len(g.Nodes) != 3 {
		t.Fatalf("DecodeJSON() = %+v", g)
	}
	n, ok := g.Node("n")
	if !ok {
		t.Fatal("node n missing")
	}
	if n.Params.Seed != 42 || n.Params.Octaves != 5 || n.Params.Frequency == nil || *n.Params.Frequency != 0.02 {
		t.Errorf("params = %+v", n.Params)
	}
	mustCompile(t, g)
}

func TestDecodeYAML_MatchesJSON(t *testing.T) {
	fromYAML, err := DecodeYAML([]byte(ridgeYAML))
	if err != nil {
		t.Fatalf("DecodeYAML() error = %v", err)
	}
	fromJSON, err := DecodeJSON([]byte(ridgeJSON))
	if err != nil {
		t.Fatal(err)
	}
	a, b := mustCompile(t, fromYAML), mustCompile(t, fromJSON)
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("YAML and JSON documents compile to different plans")
	}
}

func TestDecode_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown kind", `{"nodes":[{"id":"a","kind":"simplex"}]}`},
		{"missing id", `{"nodes":[{"kind":"constant"}]}`},
		{"unknown field", `{"nodes":[{"id":"a","kind":"constant","colour":"red"}]}`},
		{"unknown param", `{"nodes":[{"id":"a","kind":"constant","params":{"gain":2}}]}`},
		{"negative seed", `{"nodes":[{"id":"a","kind":"perlin","params":{"seed":-1}}]}`},
		{"bad policy", `{"nodes":[{"id":"a","kind":"warp","params":{"policy":"mirror"}}]}`},
		{"curve point arity", `{"nodes":[{"id":"a","kind":"remap","params":{"curve":[[0,1,2]]}}]}`},
		{"empty nodes", `{"nodes":[]}`},
		{"not an object", `[1,2,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJSON([]byte(tt.doc))
			if err == nil {
				t.Fatal("DecodeJSON() error = nil")
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("error %v does not wrap ErrInvalidDocument", err)
			}
			var inv *InvalidNodeError
			if !errors.As(err, &inv) {
				t.Errorf("error %T is not *InvalidNodeError", err)
			}
			var verr *jsonschema.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error %T does not carry the schema failure", err)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := DecodeJSON([]byte(`{"nodes": [`)); err == nil || errors.Is(err, ErrInvalidDocument) {
		t.Errorf("truncated JSON: error = %v, want a parse error", err)
	}
	if _, err := DecodeYAML([]byte("nodes: [\n")); err == nil {
		t.Error("truncated YAML: error = nil")
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			g, _ := Preset(name)
			want := mustCompile(t, g).Fingerprint()

			js, err := Encode(g)
			if err != nil {
				t.Fatal(err)
			}
			back, err := DecodeJSON(js)
			if err != nil {
				t.Fatalf("DecodeJSON(Encode()) error = %v\n%s", err, js)
			}
			if got := mustCompile(t, back).Fingerprint(); got != want {
				t.Error("JSON round trip changed the plan")
			}

			ym, err := EncodeYAML(g)
			if err != nil {
				t.Fatal(err)
			}
			back, err = DecodeYAML(ym)
			if err != nil {
				t.Fatalf("DecodeYAML(EncodeYAML()) error = %v\n%s", err, ym)
			}
			if got := mustCompile(t, back).Fingerprint(); got != want {
				t.Error("YAML round trip changed the plan")
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "ridges.json")
	yamlPath := filepath.Join(dir, "ridges.YML")
	if err := os.WriteFile(jsonPath, []byte(ridgeJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(yamlPath, []byte(ridgeYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{jsonPath, yamlPath} {
		g, err := ReadFile(p)
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", p, err)
		}
		if g.Name != "ridges" {
			t.Errorf("ReadFile(%s).Name = %q", p, g.Name)
		}
	}
	if _, err := ReadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("ReadFile(missing) error = nil")
	}
}

func TestSchema_Embedded(t *testing.T) {
	if !strings.Contains(Schema(), SchemaURL) {
		t.Error("embedded schema does not declare its $id")
	}
	for _, k := range Kinds() {
		if !strings.Contains(Schema(), `"`+string(k)+`"`) {
			t.Errorf("schema does not list kind %q", k)
		}
	}
}

func TestPlanCache(t *testing.T) {
	pc := NewPlanCache(8)
	g, _ := Preset("caves")

	a, err := pc.Compile(g)
	if err != nil {
		t.Fatal(err)
	}
	reordered := g.Clone()
	reordered.Nodes[0], reordered.Nodes[len(reordered.Nodes)-1] = reordered.Nodes[len(reordered.Nodes)-1], reordered.Nodes[0]
	b, err := pc.Compile(reordered)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("equivalent graphs produced different cached plans")
	}
	st := pc.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("Stats() hits=%d misses=%d, want 1/1", st.Hits, st.Misses)
	}

	broken := Graph{Nodes: []Node{node("c", KindConstant, Params{})}}
	for range 2 {
		if _, err := pc.Compile(broken); !errors.Is(err, ErrNoOutput) {
			t.Fatalf("Compile(broken) error = %v, want ErrNoOutput", err)
		}
	}
	if st := pc.Stats(); st.Len != 1 {
		t.Errorf("Len = %d after failed compiles, want 1", st.Len)
	}
}

func TestBuilder(t *testing.T) {
	b := NewBuilder("custom")
	x := b.Coordinate("x")
	n := b.Noise(KindCellular, 5, 0.1, "")
	sum := b.Binary(KindAdd, x, n)
	out := b.Output(sum, "")

	g := b.Graph()
	if g.Name != "custom" || len(g.Nodes) != 4 {
		t.Fatalf("Graph() = %+v", g)
	}
	if out != "output4" {
		t.Errorf("output id = %q, want output4", out)
	}
	plan := mustCompile(t, g)
	if plan.Order()[plan.Len()-1] != out {
		t.Error("output node is not last in plan order")
	}

	// The returned graph is a copy.
	g.Nodes[0].Params.Axis = "q"
	if _, err := Compile(b.Graph()); err != nil {
		t.Errorf("builder graph affected by edits to a copy: %v", err)
	}
}

func TestBuilder_FractalOf(t *testing.T) {
	b := NewBuilder("ridged")
	r := b.Unary(KindRidge, Params{}, b.Noise(KindPerlin, 3, 1, ""))
	f := b.FractalOf(r, 0.05, 4, "")
	b.Output(f, "")
	g := b.Graph()

	n, ok := g.Node(f)
	if !ok || n.Inputs["base"] != r {
		t.Fatalf("fractal inputs = %v, want base %q", n.Inputs, r)
	}
	if n.Params.Source != "" || *n.Params.Frequency != 0.05 {
		t.Errorf("fractal params = %+v", n.Params)
	}
	if plan := mustCompile(t, g); plan.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (fractal and output)", plan.Len())
	}
}
