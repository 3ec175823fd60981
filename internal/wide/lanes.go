package wide

import (
	"math"
	"math/bits"
)

// Float is the contract shared by every lane type. Numeric code is written
// once against Float and instantiated per lane type, so the scalar fallback
// and the wide backends run the same formulas.
//
// Methods that construct values (Splat, Load, LoadPartial) ignore their
// receiver; call them on the zero value:
//
//	var zero V
//	one := zero.Splat(1)
type Float[V any] interface {
	Lanes() int
	Splat(x float32) V
	Load(src []float32) V
	LoadPartial(src []float32) V
	Store(dst []float32)
	StorePartial(dst []float32)

	Add(o V) V
	Sub(o V) V
	Mul(o V) V
	Div(o V) V
	Min(o V) V
	Max(o V) V
	Abs() V
	Neg() V
	Floor() V
	Fract() V
	Sqrt() V
	RcpApprox() V
	RsqrtApprox() V
	MulAdd(b, c V) V
	Lerp(o, t V) V
	Clamp(minVal, maxVal float32) V

	Less(o V) Mask
	LessEq(o V) Mask
	Greater(o V) Mask
	Eq(o V) Mask
	Select(m Mask, o V) V

	Gather(table []float32) V
	Hash3(y, z V, seed uint32) V
}

// Mask holds one bit per lane; bit i corresponds to lane i.
type Mask uint32

// MaskN returns a mask with the first n lanes set.
func MaskN(n int) Mask {
	if n >= 32 {
		return ^Mask(0)
	}
	if n <= 0 {
		return 0
	}
	return Mask(1)<<n - 1
}

// Has reports whether lane i is set.
func (m Mask) Has(i int) bool { return m&(1<<i) != 0 }

// Count returns the number of set lanes.
func (m Mask) Count() int { return bits.OnesCount32(uint32(m)) }

// Any reports whether any lane is set.
func (m Mask) Any() bool { return m != 0 }

// All reports whether the first lanes lanes are all set.
func (m Mask) All(lanes int) bool { return m&MaskN(lanes) == MaskN(lanes) }

// And returns the lanes set in both masks.
func (m Mask) And(o Mask) Mask { return m & o }

// Or returns the lanes set in either mask.
func (m Mask) Or(o Mask) Mask { return m | o }

// Not returns the complement of m over the first lanes lanes.
func (m Mask) Not(lanes int) Mask { return ^m & MaskN(lanes) }

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func abs32(x float32) float32 {
	return math.Float32frombits(math.Float32bits(x) &^ (1 << 31))
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

func floor32(x float32) float32 {
	return float32(math.Floor(float64(x)))
}

func clamp32(x, lo, hi float32) float32 {
	switch {
	case x < lo:
		return lo
	case x > hi:
		return hi
	default:
		return x
	}
}

// rcp32 is computed as a correctly rounded float32 division, which is
// within the documented 2 ULP bound.
func rcp32(x float32) float32 {
	return 1 / x
}

// rsqrt32 is computed in float64 and rounded once to float32.
func rsqrt32(x float32) float32 {
	return float32(1 / math.Sqrt(float64(x)))
}

// fma32 relies on the float32*float32 product being exact in float64.
func fma32(a, b, c float32) float32 {
	return float32(math.FMA(float64(a), float64(b), float64(c)))
}

// gatherIndex truncates f and clamps it to [0, n-1]. NaN maps to 0.
// n must be positive.
func gatherIndex(f float32, n int) int {
	if !(f > 0) {
		return 0
	}
	if f >= float32(n-1) {
		return n - 1
	}
	return int(f)
}

// hash3 mixes an integer lattice point and a seed into 32 well distributed
// bits.
func hash3(x, y, z int32, seed uint32) uint32 {
	h := seed ^ uint32(x)*0x8da6b343 ^ uint32(y)*0xd8163841 ^ uint32(z)*0xcb1ab31f
	h ^= h >> 16
	h *= 0x7feb352d
	h ^= h >> 15
	h *= 0x846ca68b
	h ^= h >> 16
	return h
}

// unitHash maps hash3 to [0, 1) using the top 24 bits, which float32
// represents exactly.
func unitHash(x, y, z int32, seed uint32) float32 {
	return float32(hash3(x, y, z, seed)>>8) * (1.0 / (1 << 24))
}
