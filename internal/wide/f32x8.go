package wide

// F32x8 represents 8 float32 values for SIMD-style operations.
// Designed for Go compiler auto-vectorization with fixed-size arrays.
// This is the native tile on AVX-class hardware (one 256-bit register).
type F32x8 [8]float32

// SplatF32 creates F32x8 with all elements set to n.
// This is useful for initializing constants or broadcasting a single value.
func SplatF32(n float32) F32x8 {
	var result F32x8
	for i := range result {
		result[i] = n
	}
	return result
}

// Lanes returns 8.
func (v F32x8) Lanes() int { return len(v) }

// Splat returns a vector with every lane set to x. The receiver is ignored.
func (F32x8) Splat(x float32) F32x8 { return SplatF32(x) }

// Load reads 8 values from src. src must hold at least 8 values.
func (F32x8) Load(src []float32) F32x8 {
	return F32x8(src[:8])
}

// LoadPartial reads min(len(src), 8) values from src and zero-fills the
// remaining lanes. It never reads past the end of src.
func (F32x8) LoadPartial(src []float32) F32x8 {
	var result F32x8
	copy(result[:], src)
	return result
}

// Store writes all 8 lanes to dst. dst must hold at least 8 values.
func (v F32x8) Store(dst []float32) {
	copy(dst[:8], v[:])
}

// StorePartial writes the first min(len(dst), 8) lanes to dst.
func (v F32x8) StorePartial(dst []float32) {
	copy(dst, v[:])
}

// Add performs element-wise addition.
func (v F32x8) Add(other F32x8) F32x8 {
	var result F32x8
	for i := range v {
		result[i] = v[i] + other[i]
	}
	return result
}

// Sub performs element-wise subtraction.
func (v F32x8) Sub(other F32x8) F32x8 {
	var result F32x8
	for i := range v {
		result[i] = v[i] - other[i]
	}
	return result
}

// Mul performs element-wise multiplication.
func (v F32x8) Mul(other F32x8) F32x8 {
	var result F32x8
	for i := range v {
		result[i] = v[i] * other[i]
	}
	return result
}

// Div performs element-wise division.
// Note: Division by zero results in +Inf, -Inf, or NaN according to IEEE 754.
func (v F32x8) Div(other F32x8) F32x8 {
	var result F32x8
	for i := range v {
		result[i] = v[i] / other[i]
	}
	return result
}

// Min performs element-wise minimum.
func (v F32x8) Min(other F32x8) F32x8 {
	var result F32x8
	for i := range v {
		result[i] = min32(v[i], other[i])
	}
	return result
}

// Max performs element-wise maximum.
func (v F32x8) Max(other F32x8) F32x8 {
	var result F32x8
	for i := range v {
		result[i] = max32(v[i], other[i])
	}
	return result
}

// Abs returns |v[i]| for each element.
func (v F32x8) Abs() F32x8 {
	var result F32x8
	for i := range v {
		result[i] = abs32(v[i])
	}
	return result
}

// Neg returns -v[i] for each element.
func (v F32x8) Neg() F32x8 {
	var result F32x8
	for i := range v {
		result[i] = -v[i]
	}
	return result
}

// Floor rounds each element toward negative infinity.
func (v F32x8) Floor() F32x8 {
	var result F32x8
	for i := range v {
		result[i] = floor32(v[i])
	}
	return result
}

// Fract returns v[i] - floor(v[i]) for each element, in [0, 1).
func (v F32x8) Fract() F32x8 {
	var result F32x8
	for i := range v {
		result[i] = v[i] - floor32(v[i])
	}
	return result
}

// Sqrt computes square root of each element.
// Negative values result in NaN according to IEEE 754.
func (v F32x8) Sqrt() F32x8 {
	var result F32x8
	for i := range v {
		result[i] = sqrt32(v[i])
	}
	return result
}

// RcpApprox returns 1/v[i] for each element, within 2 ULP.
func (v F32x8) RcpApprox() F32x8 {
	var result F32x8
	for i := range v {
		result[i] = rcp32(v[i])
	}
	return result
}

// RsqrtApprox returns 1/sqrt(v[i]) for each element, within 2 ULP.
func (v F32x8) RsqrtApprox() F32x8 {
	var result F32x8
	for i := range v {
		result[i] = rsqrt32(v[i])
	}
	return result
}

// MulAdd returns v[i]*b[i] + c[i] with a single rounding.
func (v F32x8) MulAdd(b, c F32x8) F32x8 {
	var result F32x8
	for i := range v {
		result[i] = fma32(v[i], b[i], c[i])
	}
	return result
}

// Lerp performs linear interpolation: v + (other - v) * t.
// When t=0, returns v; when t=1, returns other.
func (v F32x8) Lerp(other, t F32x8) F32x8 {
	var result F32x8
	for i := range v {
		result[i] = v[i] + float32((other[i]-v[i])*t[i])
	}
	return result
}

// Clamp clamps each element to [minVal, maxVal].
func (v F32x8) Clamp(minVal, maxVal float32) F32x8 {
	var result F32x8
	for i := range v {
		result[i] = clamp32(v[i], minVal, maxVal)
	}
	return result
}

// Less returns a mask with bit i set where v[i] < other[i].
func (v F32x8) Less(other F32x8) Mask {
	var m Mask
	for i := range v {
		if v[i] < other[i] {
			m |= 1 << i
		}
	}
	return m
}

// LessEq returns a mask with bit i set where v[i] <= other[i].
func (v F32x8) LessEq(other F32x8) Mask {
	var m Mask
	for i := range v {
		if v[i] <= other[i] {
			m |= 1 << i
		}
	}
	return m
}

// Greater returns a mask with bit i set where v[i] > other[i].
func (v F32x8) Greater(other F32x8) Mask {
	var m Mask
	for i := range v {
		if v[i] > other[i] {
			m |= 1 << i
		}
	}
	return m
}

// Eq returns a mask with bit i set where v[i] == other[i].
func (v F32x8) Eq(other F32x8) Mask {
	var m Mask
	for i := range v {
		if v[i] == other[i] {
			m |= 1 << i
		}
	}
	return m
}

// Select takes v[i] where bit i of m is set and other[i] elsewhere.
func (v F32x8) Select(m Mask, other F32x8) F32x8 {
	var result F32x8
	for i := range v {
		if m.Has(i) {
			result[i] = v[i]
		} else {
			result[i] = other[i]
		}
	}
	return result
}

// Gather treats each element as an index into table and returns the
// looked-up values. Indices are truncated and clamped to the table bounds.
func (v F32x8) Gather(table []float32) F32x8 {
	var result F32x8
	for i := range v {
		result[i] = table[gatherIndex(v[i], len(table))]
	}
	return result
}

// Hash3 hashes the integer lattice point (v[i], y[i], z[i]) with seed and
// returns a uniform value in [0, 1) per lane. Inputs are expected to be
// integer valued (see Floor).
func (v F32x8) Hash3(y, z F32x8, seed uint32) F32x8 {
	var result F32x8
	for i := range v {
		result[i] = unitHash(int32(v[i]), int32(y[i]), int32(z[i]), seed)
	}
	return result
}
