package volume

import (
	"github.com/gogpu/terrain/noise"
)

// Field is the sampled density (and optional material) of one chunk over
// its padded lattice. It is written only by Populate.
type Field struct {
	Key      Key
	Lattice  noise.Lattice
	Density  []float32
	Material []float32 // nil when the plan has no material output

	complete bool
}

// Complete reports whether every sample has been written.
func (f *Field) Complete() bool {
	return f != nil && f.complete
}

// Cells returns the number of cells per axis covered by the chunk, without
// padding.
func (f *Field) Cells() int {
	return f.Lattice.Size[0] - 1 - 2*Padding
}

// At returns the density of local sample (i, j, k), padding included.
func (f *Field) At(i, j, k int) float32 {
	return f.Density[f.Lattice.Index(i, j, k)]
}

// Release drops the sample buffers. The field is incomplete afterwards.
func (f *Field) Release() {
	f.Density, f.Material = nil, nil
	f.complete = false
}

// Populate evaluates plan over the padded lattice of key. It is the only
// writer of a field buffer, and the returned field is complete.
//
// It panics with *noise.PreconditionViolation if the layout is invalid or
// key.LOD exceeds layout.MaxLOD.
func Populate(ev *noise.Evaluator, key Key, plan *noise.CompiledGraph, layout Layout) *Field {
	const op = "volume.Populate"
	if ev == nil {
		noise.Violate(op, "nil evaluator")
	}
	if err := layout.Validate(); err != nil {
		noise.Violate(op, "%v", err)
	}
	if key.LOD > layout.MaxLOD {
		noise.Violate(op, "key %v beyond max LOD %d", key, layout.MaxLOD)
	}

	lat := layout.Lattice(key)
	f := &Field{
		Key:     key,
		Lattice: lat,
		Density: make([]float32, lat.Len()),
	}
	out := noise.Output{Density: f.Density}
	if plan != nil && plan.HasMaterial() {
		f.Material = make([]float32, lat.Len())
		out.Material = f.Material
	}
	ev.Evaluate(plan, lat, &out)
	f.complete = true
	return f
}
