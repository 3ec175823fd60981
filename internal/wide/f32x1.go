package wide

// F32x1 is the scalar fallback: one float32 lane behind the same Float
// interface as the wide types. Every operation applies the exact scalar
// formula used per lane by F32x4 and F32x8, so the fallback and the wide
// paths agree bit for bit on the elementwise operations.
type F32x1 [1]float32

// Lanes returns 1.
func (v F32x1) Lanes() int { return 1 }

// Splat returns x as a single lane.
func (F32x1) Splat(x float32) F32x1 { return F32x1{x} }

// Load reads src[0].
func (F32x1) Load(src []float32) F32x1 { return F32x1{src[0]} }

// LoadPartial reads src[0], or zero if src is empty.
func (F32x1) LoadPartial(src []float32) F32x1 {
	if len(src) == 0 {
		return F32x1{}
	}
	return F32x1{src[0]}
}

// Store writes the lane to dst[0].
func (v F32x1) Store(dst []float32) { dst[0] = v[0] }

// StorePartial writes the lane to dst[0] if dst is not empty.
func (v F32x1) StorePartial(dst []float32) {
	if len(dst) > 0 {
		dst[0] = v[0]
	}
}

func (v F32x1) Add(o F32x1) F32x1 { return F32x1{v[0] + o[0]} }
func (v F32x1) Sub(o F32x1) F32x1 { return F32x1{v[0] - o[0]} }
func (v F32x1) Mul(o F32x1) F32x1 { return F32x1{v[0] * o[0]} }
func (v F32x1) Div(o F32x1) F32x1 { return F32x1{v[0] / o[0]} }
func (v F32x1) Min(o F32x1) F32x1 { return F32x1{min32(v[0], o[0])} }
func (v F32x1) Max(o F32x1) F32x1 { return F32x1{max32(v[0], o[0])} }
func (v F32x1) Abs() F32x1        { return F32x1{abs32(v[0])} }
func (v F32x1) Neg() F32x1        { return F32x1{-v[0]} }
func (v F32x1) Floor() F32x1      { return F32x1{floor32(v[0])} }
func (v F32x1) Fract() F32x1      { return F32x1{v[0] - floor32(v[0])} }

func (v F32x1) Sqrt() F32x1 {
	return F32x1{sqrt32(v[0])}
}

func (v F32x1) RcpApprox() F32x1   { return F32x1{rcp32(v[0])} }
func (v F32x1) RsqrtApprox() F32x1 { return F32x1{rsqrt32(v[0])} }

func (v F32x1) MulAdd(b, c F32x1) F32x1 {
	return F32x1{fma32(v[0], b[0], c[0])}
}

func (v F32x1) Lerp(o, t F32x1) F32x1 {
	return F32x1{v[0] + float32((o[0]-v[0])*t[0])}
}

func (v F32x1) Clamp(minVal, maxVal float32) F32x1 {
	return F32x1{clamp32(v[0], minVal, maxVal)}
}

func (v F32x1) Less(o F32x1) Mask    { return boolMask(v[0] < o[0]) }
func (v F32x1) LessEq(o F32x1) Mask  { return boolMask(v[0] <= o[0]) }
func (v F32x1) Greater(o F32x1) Mask { return boolMask(v[0] > o[0]) }
func (v F32x1) Eq(o F32x1) Mask      { return boolMask(v[0] == o[0]) }

func (v F32x1) Select(m Mask, o F32x1) F32x1 {
	if m.Has(0) {
		return v
	}
	return o
}

func (v F32x1) Gather(table []float32) F32x1 {
	return F32x1{table[gatherIndex(v[0], len(table))]}
}

func (v F32x1) Hash3(y, z F32x1, seed uint32) F32x1 {
	return F32x1{unitHash(int32(v[0]), int32(y[0]), int32(z[0]), seed)}
}

func boolMask(b bool) Mask {
	if b {
		return 1
	}
	return 0
}
