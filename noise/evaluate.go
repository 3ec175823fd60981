package noise

import (
	"github.com/gogpu/terrain/internal/wide"
)

// BatchSize is the number of samples evaluated per pass over the plan. It
// is a multiple of every lane width.
const BatchSize = 256

// Output receives evaluation results. Density must hold at least one value
// per lattice sample. Material is written only when the plan has a material
// input and Material is non-nil.
type Output struct {
	Density  []float32
	Material []float32
}

// Option configures an Evaluator.
type Option func(*options)

type options struct {
	backend wide.Backend
}

// WithBackend selects the lane width. The default, wide.Auto, uses the
// process-wide backend.
func WithBackend(b wide.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// Evaluator runs compiled plans over lattices. It owns the intermediate
// buffers and is not safe for concurrent use: create one per worker.
type Evaluator struct {
	backend wide.Backend
	pool    bufferPool
}

// NewEvaluator creates an evaluator with an empty buffer pool.
func NewEvaluator(opts ...Option) *Evaluator {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Evaluator{backend: wide.Resolve(o.backend)}
}

// Backend returns the lane width the evaluator uses.
func (e *Evaluator) Backend() wide.Backend { return e.backend }

// Evaluate runs plan over every sample of lat and writes the output node's
// density (and material) into out, in lattice order.
//
// It panics with *PreconditionViolation if plan is nil or empty, lat is
// invalid, or out is too short.
func (e *Evaluator) Evaluate(plan *CompiledGraph, lat Lattice, out *Output) {
	const op = "noise.Evaluate"
	if !plan.valid() {
		Violate(op, "plan is nil or was not produced by Compile")
	}
	if err := lat.Validate(); err != nil {
		Violate(op, "%v", err)
	}
	n := lat.Len()
	if out == nil || len(out.Density) < n {
		Violate(op, "density buffer shorter than %d samples", n)
	}
	if plan.HasMaterial() && out.Material != nil && len(out.Material) < n {
		Violate(op, "material buffer shorter than %d samples", n)
	}

	s := e.pool.get(plan, lat)
	switch e.backend {
	case wide.Scalar:
		evaluate[wide.F32x1](plan, lat, s, out)
	case wide.Wide4:
		evaluate[wide.F32x4](plan, lat, s, out)
	default:
		evaluate[wide.F32x8](plan, lat, s, out)
	}
}

// Evaluate runs plan over lat with a temporary evaluator on the
// process-wide backend. Workers should keep an Evaluator instead, so
// buffers are reused.
func Evaluate(plan *CompiledGraph, lat Lattice, out *Output) {
	NewEvaluator().Evaluate(plan, lat, out)
}

func evaluate[V wide.Float[V]](p *CompiledGraph, lat Lattice, s *scratch, out *Output) {
	// Constants do not depend on the sample, so they are filled once.
	for i := range p.steps {
		if st := &p.steps[i]; st.kind == KindConstant {
			wide.Fill[V](s.slot(st.out), st.value)
		}
	}

	n := lat.Len()
	var i, j, k int
	for start := 0; start < n; start += s.batch {
		m := min(s.batch, n-start)
		px, py, pz := s.slot(slotX), s.slot(slotY), s.slot(slotZ)
		for t := 0; t < m; t++ {
			px[t], py[t], pz[t] = s.axes[0][i], s.axes[1][j], s.axes[2][k]
			if i++; i == lat.Size[0] {
				i = 0
				if j++; j == lat.Size[1] {
					j = 0
					k++
				}
			}
		}

		runSteps[V](p, s, m)

		copy(out.Density[start:start+m], s.slot(p.density)[:m])
		if p.material != unconnected && out.Material != nil {
			copy(out.Material[start:start+m], s.slot(p.material)[:m])
		}
	}
}

func runSteps[V wide.Float[V]](p *CompiledGraph, s *scratch, m int) {
	for i := range p.steps {
		run[V](&p.steps[i], s, m)
	}
}

// run executes one step over the first m samples of the batch.
func run[V wide.Float[V]](st *step, s *scratch, m int) {
	var zero V
	one := zero.Splat(1)
	in := func(i int) []float32 { return s.slot(st.in[i])[:m] }
	dst := func(offset int) []float32 { return s.slot(st.out + offset)[:m] }

	switch st.kind {
	case KindConstant, KindCoordinate, KindOutput:
		// Filled up front, aliased to a position slot, or copied out.

	case KindPerlin, KindValue, KindCellular, KindRandom:
		dx, dy, dz := s.vector(st.in[0], m)
		f := zero.Splat(st.freq)
		wide.Map3(dst(0), dx, dy, dz, func(x, y, z V) V {
			return primitive(st.kind, x.Mul(f), y.Mul(f), z.Mul(f), st)
		})

	case KindFractal:
		dx, dy, dz := s.vector(st.in[0], m)
		if st.sub != nil {
			fractalOf[V](st, s, dx, dy, dz, m)
			return
		}
		f := zero.Splat(st.freq)
		wide.Map3(dst(0), dx, dy, dz, func(x, y, z V) V {
			return fractal(st, x.Mul(f), y.Mul(f), z.Mul(f))
		})

	case KindAdd:
		wide.Map2(dst(0), in(0), in(1), func(a, b V) V { return a.Add(b) })
	case KindSub:
		wide.Map2(dst(0), in(0), in(1), func(a, b V) V { return a.Sub(b) })
	case KindMul:
		wide.Map2(dst(0), in(0), in(1), func(a, b V) V { return a.Mul(b) })
	case KindDiv:
		wide.Map2(dst(0), in(0), in(1), func(a, b V) V { return a.Div(b) })
	case KindMin:
		wide.Map2(dst(0), in(0), in(1), func(a, b V) V { return a.Min(b) })
	case KindMax:
		wide.Map2(dst(0), in(0), in(1), func(a, b V) V { return a.Max(b) })
	case KindBlend:
		wide.Map3(dst(0), in(0), in(1), in(2), func(a, b, t V) V { return a.Lerp(b, t) })

	case KindScaleBias:
		scale, bias := zero.Splat(st.scale), zero.Splat(st.bias)
		wide.Map1(dst(0), in(0), func(x V) V { return x.MulAdd(scale, bias) })
	case KindAbs:
		wide.Map1(dst(0), in(0), func(x V) V { return x.Abs() })
	case KindInvert:
		wide.Map1(dst(0), in(0), func(x V) V { return one.Sub(x) })
	case KindRidge:
		two := zero.Splat(2)
		wide.Map1(dst(0), in(0), func(x V) V { return x.MulAdd(two, one.Neg()).Abs() })

	case KindSelect:
		thr := zero.Splat(st.threshold)
		wide.Map3(dst(0), in(0), in(1), in(2), func(a, b, c V) V {
			return a.Select(c.Less(thr), b)
		})

	case KindWarp:
		d := [3][]float32{}
		d[0], d[1], d[2] = s.vector(st.in[0], m)
		scale, bias := zero.Splat(2*st.strength), zero.Splat(-st.strength)
		for a := range 3 {
			if st.in[1+a] == unconnected {
				copy(dst(a), d[a])
				continue
			}
			wide.Map2(dst(a), d[a], in(1+a), func(p, o V) V {
				return applyPolicy(st.policy, o).MulAdd(scale, bias).Add(p)
			})
		}

	case KindRemap:
		lo, sc := zero.Splat(st.inMin), zero.Splat(st.inScale)
		wide.Map1(dst(0), in(0), func(x V) V {
			t := applyPolicy(st.policy, x.Sub(lo).Mul(sc))
			return curve(t, st.curveT, st.curveV)
		})

	case KindHeightBias:
		lo, inv := zero.Splat(st.lower), zero.Splat(st.invRange)
		wide.Map2(dst(0), in(0), s.slot(slotX + st.axis)[:m], func(v, h V) V {
			return v.Sub(h.Sub(lo).Mul(inv).Clamp(0, 1))
		})
	}
}

// fractalOf sums octaves of the sub-plan st.sub, re-running it with the
// position slots set to the scaled domain for each octave.
func fractalOf[V wide.Float[V]](st *step, s *scratch, dx, dy, dz []float32, m int) {
	var zero V
	c := s.child(st.sub)
	px, py, pz := c.slot(slotX)[:m], c.slot(slotY)[:m], c.slot(slotZ)[:m]
	acc := s.slot(st.out)[:m]
	clear(acc)

	amp, freq, total := float32(1), st.freq, float32(0)
	for range st.octaves {
		f := zero.Splat(freq)
		scale := func(x V) V { return x.Mul(f) }
		wide.Map1(px, dx, scale)
		wide.Map1(py, dy, scale)
		wide.Map1(pz, dz, scale)
		runSteps[V](st.sub, c, m)

		a2, na := zero.Splat(2*amp), zero.Splat(-amp)
		wide.Map2(acc, c.slot(st.sub.density)[:m], acc, func(n, sum V) V {
			return n.MulAdd(a2, na).Add(sum)
		})
		total += amp
		amp *= st.persistence
		freq *= st.lacunarity
	}
	if total == 0 {
		wide.Fill[V](acc, 0.5)
		return
	}
	k, half := zero.Splat(0.5/total), zero.Splat(0.5)
	wide.Map1(acc, acc, func(x V) V { return x.MulAdd(k, half) })
}

func applyPolicy[V wide.Float[V]](p Policy, t V) V {
	if p == Wrap {
		return t.Fract()
	}
	return t.Clamp(0, 1)
}

// curve evaluates a piecewise-linear curve at t. Before the first point and
// after the last the curve is flat. An empty curve is the identity.
func curve[V wide.Float[V]](t V, ts, vs []float32) V {
	if len(ts) == 0 {
		return t
	}
	var zero V
	res := zero.Splat(vs[0])
	for i := 0; i+1 < len(ts); i++ {
		t0 := zero.Splat(ts[i])
		u := t.Sub(t0).Mul(zero.Splat(1 / (ts[i+1] - ts[i])))
		seg := zero.Splat(vs[i]).Lerp(zero.Splat(vs[i+1]), u)
		res = seg.Select(t0.LessEq(t), res)
	}
	last := len(ts) - 1
	return zero.Splat(vs[last]).Select(zero.Splat(ts[last]).LessEq(t), res)
}
