package noise

import (
	"math"

	"github.com/gogpu/terrain/internal/wide"
)

// Perlin gradient set: the 12 cube edge directions plus 4 diagonals,
// normalized, indexed by the top 4 bits of the lattice hash.
var (
	gradX = []float32{r2, r2, -r2, -r2, r2, r2, -r2, -r2, 0, 0, 0, 0, r3, r3, r3, -r3}
	gradY = []float32{r2, -r2, r2, -r2, 0, 0, 0, 0, r2, r2, -r2, -r2, r3, r3, -r3, r3}
	gradZ = []float32{0, 0, 0, 0, r2, -r2, r2, -r2, r2, -r2, r2, -r2, r3, -r3, r3, r3}
)

const (
	r2 = 0.70710678
	r3 = 0.57735027

	// perlinScale stretches normalized-gradient Perlin noise to about [-1, 1].
	perlinScale = 1.1547005
)

// fade is the quintic smoothstep 6t^5 - 15t^4 + 10t^3.
func fade[V wide.Float[V]](t V) V {
	var zero V
	inner := t.MulAdd(zero.Splat(6), zero.Splat(-15))
	return t.Mul(t).Mul(t).Mul(t.MulAdd(inner, zero.Splat(10)))
}

func dotGradient[V wide.Float[V]](ix, iy, iz, dx, dy, dz V, seed uint32) V {
	var zero V
	h := ix.Hash3(iy, iz, seed).Mul(zero.Splat(float32(len(gradX))))
	return dx.Mul(h.Gather(gradX)).Add(dy.Mul(h.Gather(gradY))).Add(dz.Mul(h.Gather(gradZ)))
}

// perlin returns gradient noise in [0, 1].
func perlin[V wide.Float[V]](x, y, z V, seed uint32) V {
	var zero V
	one := zero.Splat(1)

	x0, y0, z0 := x.Floor(), y.Floor(), z.Floor()
	x1, y1, z1 := x0.Add(one), y0.Add(one), z0.Add(one)
	fx, fy, fz := x.Sub(x0), y.Sub(y0), z.Sub(z0)
	gx, gy, gz := fx.Sub(one), fy.Sub(one), fz.Sub(one)

	d000 := dotGradient(x0, y0, z0, fx, fy, fz, seed)
	d100 := dotGradient(x1, y0, z0, gx, fy, fz, seed)
	d010 := dotGradient(x0, y1, z0, fx, gy, fz, seed)
	d110 := dotGradient(x1, y1, z0, gx, gy, fz, seed)
	d001 := dotGradient(x0, y0, z1, fx, fy, gz, seed)
	d101 := dotGradient(x1, y0, z1, gx, fy, gz, seed)
	d011 := dotGradient(x0, y1, z1, fx, gy, gz, seed)
	d111 := dotGradient(x1, y1, z1, gx, gy, gz, seed)

	u, v, w := fade(fx), fade(fy), fade(fz)
	n := trilinear(d000, d100, d010, d110, d001, d101, d011, d111, u, v, w)
	return n.MulAdd(zero.Splat(0.5*perlinScale), zero.Splat(0.5)).Clamp(0, 1)
}

// value returns interpolated lattice noise in [0, 1).
func value[V wide.Float[V]](x, y, z V, seed uint32) V {
	var zero V
	one := zero.Splat(1)

	x0, y0, z0 := x.Floor(), y.Floor(), z.Floor()
	x1, y1, z1 := x0.Add(one), y0.Add(one), z0.Add(one)

	u, v, w := fade(x.Sub(x0)), fade(y.Sub(y0)), fade(z.Sub(z0))
	return trilinear(
		x0.Hash3(y0, z0, seed), x1.Hash3(y0, z0, seed),
		x0.Hash3(y1, z0, seed), x1.Hash3(y1, z0, seed),
		x0.Hash3(y0, z1, seed), x1.Hash3(y0, z1, seed),
		x0.Hash3(y1, z1, seed), x1.Hash3(y1, z1, seed),
		u, v, w,
	)
}

// cellular returns the distance to the nearest feature point clamped to
// [0, 1], or with cellValue the hash of that point. Each unit cell holds
// between 1 and points feature points, chosen by a per-cell hash.
func cellular[V wide.Float[V]](x, y, z V, seed uint32, points int, cellValue bool) V {
	var zero V
	x0, y0, z0 := x.Floor(), y.Floor(), z.Floor()
	best := zero.Splat(math.MaxFloat32)
	bestValue := zero

	for dz := -1; dz <= 1; dz++ {
		cz := z0.Add(zero.Splat(float32(dz)))
		for dy := -1; dy <= 1; dy++ {
			cy := y0.Add(zero.Splat(float32(dy)))
			for dx := -1; dx <= 1; dx++ {
				cx := x0.Add(zero.Splat(float32(dx)))

				var count V
				if points > 1 {
					count = cx.Hash3(cy, cz, seed+7).Mul(zero.Splat(float32(points))).Floor()
				}
				for p := range points {
					// Point 0 always exists; point p needs count >= p.
					ps := seed + uint32(p)*8
					ox := cx.Add(cx.Hash3(cy, cz, ps)).Sub(x)
					oy := cy.Add(cx.Hash3(cy, cz, ps+1)).Sub(y)
					oz := cz.Add(cx.Hash3(cy, cz, ps+2)).Sub(z)
					d2 := ox.Mul(ox).Add(oy.Mul(oy)).Add(oz.Mul(oz))

					closer := d2.Less(best)
					if p > 0 {
						closer &= zero.Splat(float32(p)).LessEq(count)
					}
					best = d2.Select(closer, best)
					if cellValue {
						bestValue = cx.Hash3(cy, cz, ps+3).Select(closer, bestValue)
					}
				}
			}
		}
	}
	if cellValue {
		return bestValue
	}
	return best.Sqrt().Clamp(0, 1)
}

// random is white noise: the hash of the unit cell containing the point,
// in [0, 1). With frequency 1/spacing every sample gets its own value.
func random[V wide.Float[V]](x, y, z V, seed uint32) V {
	return x.Floor().Hash3(y.Floor(), z.Floor(), seed)
}

func primitive[V wide.Float[V]](kind Kind, x, y, z V, st *step) V {
	switch kind {
	case KindValue:
		return value(x, y, z, st.seed)
	case KindCellular:
		return cellular(x, y, z, st.seed, st.points, st.cellValue)
	case KindRandom:
		return random(x, y, z, st.seed)
	default:
		return perlin(x, y, z, st.seed)
	}
}

// fractal sums octaves of the source noise, each remapped to [-1, 1] and
// weighted by amplitude, then normalizes the sum back to [0, 1].
func fractal[V wide.Float[V]](s *step, x, y, z V) V {
	var zero V
	sum := zero
	amp, freq, total := float32(1), float32(1), float32(0)

	for range s.octaves {
		f := zero.Splat(freq)
		n := primitive(s.source, x.Mul(f), y.Mul(f), z.Mul(f), s)
		sum = n.MulAdd(zero.Splat(2*amp), zero.Splat(-amp)).Add(sum)
		total += amp
		amp *= s.persistence
		freq *= s.lacunarity
	}
	if total == 0 {
		return zero.Splat(0.5)
	}
	return sum.MulAdd(zero.Splat(0.5/total), zero.Splat(0.5))
}

func trilinear[V wide.Float[V]](c000, c100, c010, c110, c001, c101, c011, c111, u, v, w V) V {
	x00 := c000.Lerp(c100, u)
	x10 := c010.Lerp(c110, u)
	x01 := c001.Lerp(c101, u)
	x11 := c011.Lerp(c111, u)
	return x00.Lerp(x10, v).Lerp(x01.Lerp(x11, v), w)
}
