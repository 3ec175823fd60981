package wide

import (
	"math"
	"testing"
)

func TestSplatF32(t *testing.T) {
	tests := []struct {
		name  string
		value float32
	}{
		{"zero", 0.0},
		{"one", 1.0},
		{"half", 0.5},
		{"negative", -1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SplatF32(tt.value)
			for i, v := range result {
				if v != tt.value {
					t.Errorf("element %d = %f, want %f", i, v, tt.value)
				}
			}
			if got := (F32x4{}).Splat(tt.value); got != (F32x4{tt.value, tt.value, tt.value, tt.value}) {
				t.Errorf("F32x4 Splat = %v", got)
			}
		})
	}
}

func TestF32x8_Arithmetic(t *testing.T) {
	a := F32x8{1, 2, 3, 4, -1, -2, 0.5, 10}
	b := F32x8{2, 2, 2, 2, 4, -4, 0.25, -10}

	tests := []struct {
		name string
		got  F32x8
		want F32x8
	}{
		{"add", a.Add(b), F32x8{3, 4, 5, 6, 3, -6, 0.75, 0}},
		{"sub", a.Sub(b), F32x8{-1, 0, 1, 2, -5, 2, 0.25, 20}},
		{"mul", a.Mul(b), F32x8{2, 4, 6, 8, -4, 8, 0.125, -100}},
		{"div", a.Div(b), F32x8{0.5, 1, 1.5, 2, -0.25, 0.5, 2, -1}},
		{"min", a.Min(b), F32x8{1, 2, 2, 2, -1, -4, 0.25, -10}},
		{"max", a.Max(b), F32x8{2, 2, 3, 4, 4, -2, 0.5, 10}},
		{"abs", a.Abs(), F32x8{1, 2, 3, 4, 1, 2, 0.5, 10}},
		{"neg", a.Neg(), F32x8{-1, -2, -3, -4, 1, 2, -0.5, -10}},
		{"muladd", a.MulAdd(b, a), F32x8{3, 6, 9, 12, -5, 6, 0.625, -90}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestF32x8_DivByZero(t *testing.T) {
	got := F32x8{1, -1, 0, 1, 1, 1, 1, 1}.Div(SplatF32(0))

	if !math.IsInf(float64(got[0]), 1) {
		t.Errorf("1/0 = %v, want +Inf", got[0])
	}
	if !math.IsInf(float64(got[1]), -1) {
		t.Errorf("-1/0 = %v, want -Inf", got[1])
	}
	if !math.IsNaN(float64(got[2])) {
		t.Errorf("0/0 = %v, want NaN", got[2])
	}
}

func TestF32x8_FloorFract(t *testing.T) {
	v := F32x8{1.5, -1.5, 0, -0.25, 2, 7.75, -3, 0.999}
	floor := v.Floor()
	fract := v.Fract()

	wantFloor := F32x8{1, -2, 0, -1, 2, 7, -3, 0}
	if floor != wantFloor {
		t.Errorf("Floor() = %v, want %v", floor, wantFloor)
	}
	for i := range v {
		if fract[i] < 0 || fract[i] >= 1 {
			t.Errorf("Fract()[%d] = %v, want [0,1)", i, fract[i])
		}
		if fract[i]+floor[i] != v[i] {
			t.Errorf("Floor+Fract [%d] = %v, want %v", i, fract[i]+floor[i], v[i])
		}
	}
}

func TestF32x8_Sqrt(t *testing.T) {
	got := F32x8{0, 1, 4, 9, 16, 0.25, 2, -1}.Sqrt()
	want := []float32{0, 1, 2, 3, 4, 0.5, float32(math.Sqrt2)}

	for i, w := range want {
		if got[i] != w {
			t.Errorf("Sqrt()[%d] = %v, want %v", i, got[i], w)
		}
	}
	if !math.IsNaN(float64(got[7])) {
		t.Errorf("Sqrt(-1) = %v, want NaN", got[7])
	}
}

func TestF32x8_Approximations(t *testing.T) {
	inputs := F32x8{1, 2, 3, 0.1, 1e-3, 1e6, 7.5, 0.333}
	rcp := inputs.RcpApprox()
	rsqrt := inputs.RsqrtApprox()

	for i, x := range inputs {
		if d := ulpDiff(rcp[i], float32(1/float64(x))); d > 2 {
			t.Errorf("RcpApprox(%v) off by %d ULP", x, d)
		}
		if d := ulpDiff(rsqrt[i], float32(1/math.Sqrt(float64(x)))); d > 2 {
			t.Errorf("RsqrtApprox(%v) off by %d ULP", x, d)
		}
	}
}

func TestF32x8_Clamp(t *testing.T) {
	tests := []struct {
		name     string
		value    F32x8
		min, max float32
		want     F32x8
	}{
		{"within", SplatF32(0.5), 0, 1, SplatF32(0.5)},
		{"below", SplatF32(-0.5), 0, 1, SplatF32(0)},
		{"above", SplatF32(1.5), 0, 1, SplatF32(1)},
		{"mixed", F32x8{-1, 0, 0.5, 1, 2, -0.1, 1.1, 0.9}, 0, 1, F32x8{0, 0, 0.5, 1, 1, 0, 1, 0.9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.Clamp(tt.min, tt.max); got != tt.want {
				t.Errorf("Clamp() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestF32x8_Lerp(t *testing.T) {
	a := SplatF32(2)
	b := SplatF32(6)

	tests := []struct {
		name string
		t    float32
		want float32
	}{
		{"t=0", 0, 2},
		{"t=0.5", 0.5, 4},
		{"t=1", 1, 6},
		{"t=0.25", 0.25, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Lerp(b, SplatF32(tt.t))
			if got != SplatF32(tt.want) {
				t.Errorf("Lerp() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestF32x8_CompareSelect(t *testing.T) {
	a := F32x8{0, 1, 2, 3, 4, 5, 6, 7}
	b := SplatF32(3)

	if got := a.Less(b); got != 0b00000111 {
		t.Errorf("Less() = %08b", got)
	}
	if got := a.LessEq(b); got != 0b00001111 {
		t.Errorf("LessEq() = %08b", got)
	}
	if got := a.Greater(b); got != 0b11110000 {
		t.Errorf("Greater() = %08b", got)
	}
	if got := a.Eq(b); got != 0b00001000 {
		t.Errorf("Eq() = %08b", got)
	}

	got := a.Select(a.Less(b), b)
	want := F32x8{0, 1, 2, 3, 3, 3, 3, 3}
	if got != want {
		t.Errorf("Select() = %v, want %v", got, want)
	}

	nan := float32(math.NaN())
	if m := (F32x8{nan}).Eq(F32x8{nan}); m.Has(0) {
		t.Error("NaN compared equal to itself")
	}
}

func TestF32x8_Gather(t *testing.T) {
	table := []float32{10, 20, 30, 40}
	idx := F32x8{0, 1, 2, 3, 3.9, -5, 100, float32(math.NaN())}

	got := idx.Gather(table)
	want := F32x8{10, 20, 30, 40, 40, 10, 40, 10}
	if got != want {
		t.Errorf("Gather() = %v, want %v", got, want)
	}
}

func TestF32x8_Hash3(t *testing.T) {
	x := F32x8{0, 1, 2, 3, -1, -2, 1000, 5}
	y := F32x8{0, 0, 0, 0, 7, 7, -3, 5}
	z := F32x8{0, 0, 0, 0, 0, 1, 9, 5}

	h1 := x.Hash3(y, z, 1337)
	h2 := x.Hash3(y, z, 1337)
	if h1 != h2 {
		t.Fatalf("Hash3 not deterministic: %v vs %v", h1, h2)
	}
	for i, h := range h1 {
		if h < 0 || h >= 1 {
			t.Errorf("Hash3()[%d] = %v, want [0,1)", i, h)
		}
	}
	if h1 == x.Hash3(y, z, 42) {
		t.Error("Hash3 ignores the seed")
	}
}

func TestF32x8_LoadStorePartial(t *testing.T) {
	src := []float32{1, 2, 3}
	v := F32x8{}.LoadPartial(src)
	if v != (F32x8{1, 2, 3}) {
		t.Errorf("LoadPartial() = %v", v)
	}

	dst := []float32{9, 9, 9, 9, 9}
	SplatF32(7).StorePartial(dst[:2])
	want := []float32{7, 7, 9, 9, 9}
	for i := range dst {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestMask(t *testing.T) {
	if MaskN(0) != 0 || MaskN(4) != 0b1111 || MaskN(32) != ^Mask(0) {
		t.Errorf("MaskN: %b %b %b", MaskN(0), MaskN(4), MaskN(32))
	}
	m := Mask(0b1010)
	if !m.Has(1) || m.Has(0) {
		t.Errorf("Has on %04b", m)
	}
	if m.Count() != 2 || !m.Any() || m.All(4) {
		t.Errorf("Count/Any/All on %04b", m)
	}
	if m.Not(4) != 0b0101 || m.And(0b0010) != 0b0010 || m.Or(0b0001) != 0b1011 {
		t.Errorf("Not/And/Or on %04b", m)
	}
}

func ulpDiff(a, b float32) int64 {
	d := int64(math.Float32bits(a)) - int64(math.Float32bits(b))
	if d < 0 {
		d = -d
	}
	return d
}
