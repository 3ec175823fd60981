package wide

import "testing"

// Benchmark lane operations and kernels to verify auto-vectorization.

func BenchmarkF32x8_Add(b *testing.B) {
	a := SplatF32(1.5)
	c := SplatF32(2.5)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = a.Add(c)
	}
}

func BenchmarkF32x8_MulAdd(b *testing.B) {
	a := SplatF32(1.5)
	c := SplatF32(2.5)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = a.MulAdd(c, a)
	}
}

func BenchmarkF32x8_Lerp(b *testing.B) {
	a := SplatF32(0.0)
	c := SplatF32(10.0)
	t := SplatF32(0.5)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = a.Lerp(c, t)
	}
}

func BenchmarkF32x8_Hash3(b *testing.B) {
	x := F32x8{0, 1, 2, 3, 4, 5, 6, 7}
	y := SplatF32(3)
	z := SplatF32(-2)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = x.Hash3(y, z, 1337)
	}
}

func benchmarkMap2[V Float[V]](b *testing.B) {
	const n = 4096
	x, y, dst := ramp(n), ramp(n), make([]float32, n)
	b.SetBytes(n * 4)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Map2[V](dst, x, y, func(a, c V) V { return a.MulAdd(c, a).Sqrt() })
	}
}

func BenchmarkMap2_Scalar(b *testing.B) { benchmarkMap2[F32x1](b) }
func BenchmarkMap2_Wide4(b *testing.B)  { benchmarkMap2[F32x4](b) }
func BenchmarkMap2_Wide8(b *testing.B)  { benchmarkMap2[F32x8](b) }

// BenchmarkScalar_Loop is the plain-loop baseline for the Map2 benchmarks.
func BenchmarkScalar_Loop(b *testing.B) {
	const n = 4096
	x, y, dst := ramp(n), ramp(n), make([]float32, n)
	b.SetBytes(n * 4)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := range dst {
			dst[j] = sqrt32(fma32(x[j], y[j], x[j]))
		}
	}
}
