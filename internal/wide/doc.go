// Package wide provides SIMD-friendly lane types for batched field math.
//
// The lane types (F32x8, F32x4 and the scalar fallback F32x1) are fixed-size
// float32 arrays operated on by simple loops, which lets the Go compiler keep
// them in registers and generate vector instructions on SSE, AVX and NEON
// targets without assembly.
//
// # Writing width-agnostic code
//
// Numeric code is written once against the generic Float interface and
// instantiated per lane type. Callers never assume a width: they process N
// values through the batch kernels (Map1, Map2, Map3, Fill), which tile N
// into the lane width and finish with a zero-filled partial tile that is
// never stored past N.
//
//	wide.Map2[wide.F32x8](dst, a, b, func(a, b wide.F32x8) wide.F32x8 {
//		return a.MulAdd(b, a)
//	})
//
// # Backend selection
//
// Active picks a Backend once per process from CPU capabilities, or from the
// TERRAIN_LANES environment variable. Every backend applies the same per-lane
// formula, so elementwise results are identical across widths.
//
// # Precision
//
// RcpApprox and RsqrtApprox are within 2 ULP of the exact result. MulAdd is
// fused on every backend. NaN and Inf propagate per IEEE 754.
package wide
