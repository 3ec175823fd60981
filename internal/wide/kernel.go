package wide

// Map1 computes dst[i] = f(a[i]) for every i < len(dst), len(V) lanes at a
// time. a must hold at least len(dst) values. The final partial tile is
// loaded zero-filled and only its first len(dst)%lanes results are stored.
func Map1[V Float[V]](dst, a []float32, f func(a V) V) {
	var zero V
	w := zero.Lanes()
	n := len(dst)
	a = a[:n]

	i := 0
	for ; i+w <= n; i += w {
		f(zero.Load(a[i:])).Store(dst[i:])
	}
	if i < n {
		f(zero.LoadPartial(a[i:])).StorePartial(dst[i:])
	}
}

// Map2 computes dst[i] = f(a[i], b[i]) for every i < len(dst).
func Map2[V Float[V]](dst, a, b []float32, f func(a, b V) V) {
	var zero V
	w := zero.Lanes()
	n := len(dst)
	a, b = a[:n], b[:n]

	i := 0
	for ; i+w <= n; i += w {
		f(zero.Load(a[i:]), zero.Load(b[i:])).Store(dst[i:])
	}
	if i < n {
		f(zero.LoadPartial(a[i:]), zero.LoadPartial(b[i:])).StorePartial(dst[i:])
	}
}

// Map3 computes dst[i] = f(a[i], b[i], c[i]) for every i < len(dst).
func Map3[V Float[V]](dst, a, b, c []float32, f func(a, b, c V) V) {
	var zero V
	w := zero.Lanes()
	n := len(dst)
	a, b, c = a[:n], b[:n], c[:n]

	i := 0
	for ; i+w <= n; i += w {
		f(zero.Load(a[i:]), zero.Load(b[i:]), zero.Load(c[i:])).Store(dst[i:])
	}
	if i < n {
		f(zero.LoadPartial(a[i:]), zero.LoadPartial(b[i:]), zero.LoadPartial(c[i:])).StorePartial(dst[i:])
	}
}

// Fill sets every element of dst to x.
func Fill[V Float[V]](dst []float32, x float32) {
	var zero V
	w := zero.Lanes()
	v := zero.Splat(x)

	i := 0
	for ; i+w <= len(dst); i += w {
		v.Store(dst[i:])
	}
	if i < len(dst) {
		v.StorePartial(dst[i:])
	}
}

// Tiles returns how many lane tiles of width lanes cover n values,
// counting the final partial tile.
func Tiles(n, lanes int) int {
	if lanes <= 0 {
		return 0
	}
	return (n + lanes - 1) / lanes
}
