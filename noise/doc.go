// Package noise compiles and evaluates terrain noise graphs.
//
// A Graph is a serializable DAG of nodes: primitives (perlin, value,
// cellular and white noise, fractal sums over a primitive or any scalar
// subgraph), combinators, domain warps, remaps and a single output node
// producing density and an optional material field.
// Graphs are loaded from JSON or YAML documents (validated against an
// embedded JSON Schema), built with Builder, or taken from Preset.
//
// Compile validates a graph and produces an immutable CompiledGraph. An
// Evaluator runs a plan over a Lattice in batches, using the lane width
// selected by internal/wide:
//
//	plan, err := noise.Compile(g)
//	if err != nil {
//	    return err
//	}
//	lat := noise.Lattice{Size: [3]int{33, 33, 33}, Spacing: 1}
//	out := noise.Output{Density: make([]float32, lat.Len())}
//	noise.NewEvaluator().Evaluate(plan, lat, &out)
//
// Sample coordinates are derived from integer lattice indices, so every
// lattice that contains a world position computes exactly the same value
// there. Evaluation is deterministic for a given plan and backend.
//
// Evaluator is not safe for concurrent use; CompiledGraph and PlanCache
// are.
package noise
