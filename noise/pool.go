package noise

import "github.com/gogpu/terrain"

// maxPoolEntries bounds the number of distinct buffer shapes an evaluator
// keeps. Streaming uses one lattice size per LOD, so this is rarely hit.
const maxPoolEntries = 16

// poolKey identifies a scratch shape: plan step count and lattice size.
type poolKey struct {
	steps   int
	samples int
}

// scratch holds the slot buffers of one batch plus per-axis coordinate
// tables for the current lattice.
type scratch struct {
	data  []float32
	batch int
	axes  [3][]float32
	// children hold the buffers of fractal sub-plans.
	children map[*CompiledGraph]*scratch
}

func (s *scratch) slot(i int) []float32 {
	return s.data[i*s.batch : (i+1)*s.batch]
}

// child returns the buffers for sub-plan p, creating them with p's
// constants filled in on first use.
func (s *scratch) child(p *CompiledGraph) *scratch {
	c, ok := s.children[p]
	if ok {
		return c
	}
	if s.children == nil || len(s.children) >= maxPoolEntries {
		s.children = make(map[*CompiledGraph]*scratch)
	}
	c = &scratch{batch: s.batch, data: make([]float32, p.slots*s.batch)}
	for i := range p.steps {
		if st := &p.steps[i]; st.kind == KindConstant {
			dst := c.slot(st.out)
			for j := range dst {
				dst[j] = st.value
			}
		}
	}
	s.children[p] = c
	return c
}

// vector returns the three component buffers of the vector field at base,
// or the sample positions when base is unconnected.
func (s *scratch) vector(base, m int) (x, y, z []float32) {
	if base == unconnected {
		base = slotX
	}
	return s.slot(base)[:m], s.slot(base + 1)[:m], s.slot(base + 2)[:m]
}

// bufferPool hands out scratch buffers keyed by plan and lattice shape.
// It belongs to one Evaluator and is never shared between goroutines.
type bufferPool struct {
	entries map[poolKey]*scratch
}

func (p *bufferPool) get(plan *CompiledGraph, lat Lattice) *scratch {
	n := lat.Len()
	key := poolKey{steps: len(plan.steps), samples: n}
	if p.entries == nil {
		p.entries = make(map[poolKey]*scratch)
	}

	s, ok := p.entries[key]
	if !ok {
		if len(p.entries) >= maxPoolEntries {
			clear(p.entries)
		}
		s = &scratch{batch: min(n, BatchSize)}
		p.entries[key] = s
		terrain.Logger().Debug("noise: new evaluation buffers",
			"steps", key.steps, "samples", n, "slots", plan.slots)
	}
	if need := plan.slots * s.batch; len(s.data) < need {
		s.data = make([]float32, need)
	}

	for a := range 3 {
		size := lat.Size[a]
		if cap(s.axes[a]) < size {
			s.axes[a] = make([]float32, size)
		}
		s.axes[a] = s.axes[a][:size]
		for i := range size {
			s.axes[a][i] = float32(lat.Coord(a, i))
		}
	}
	return s
}

// len returns the number of pooled buffer shapes.
func (p *bufferPool) len() int { return len(p.entries) }
