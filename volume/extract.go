package volume

import (
	"math"

	"github.com/gogpu/terrain/noise"
)

// Cube corners are numbered by offset bits: x=1, y=2, z=4.
var cornerOffset = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1},
}

// kuhn splits a cube into six tetrahedra around the 0-7 diagonal. Within a
// tetrahedron each corner's offset bits include the previous corner's, so
// the first endpoint of every edge is the lower lattice index. Every cube
// face is cut along the same diagonal from both sides, which keeps the
// surface consistent between cells and between chunks.
var kuhn = [6][4]uint8{
	{0, 1, 3, 7},
	{0, 1, 5, 7},
	{0, 2, 3, 7},
	{0, 2, 6, 7},
	{0, 4, 5, 7},
	{0, 4, 6, 7},
}

// tetEdges are the six tetrahedron edges as vertex pairs.
var tetEdges = [6][2]uint8{
	{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3},
}

// tetCases maps the inside mask of a tetrahedron (bit i set when vertex i
// is inside) to its crossing edges: three for a triangle, four in cyclic
// order for a quad. Winding is fixed up per triangle.
var tetCases = [16][]uint8{
	1:  {0, 1, 2},
	2:  {0, 4, 3},
	3:  {1, 2, 4, 3},
	4:  {1, 3, 5},
	5:  {0, 2, 5, 3},
	6:  {0, 4, 5, 1},
	7:  {2, 4, 5},
	8:  {2, 4, 5},
	9:  {0, 1, 5, 4},
	10: {0, 3, 5, 2},
	11: {1, 3, 5},
	12: {1, 3, 4, 2},
	13: {0, 3, 4},
	14: {0, 1, 2},
}

// MaxThresholds is the largest number of material thresholds accepted by
// ExtractSurface.
const MaxThresholds = MaxMaterials - 1

// ExtractSurface builds the isosurface of f at iso with marching
// tetrahedra. A sample is inside when its density is greater than iso.
//
// Crossings are interpolated linearly from the lower-index corner of each
// edge and positioned from global sample indices, so chunks that share a
// face produce identical vertices on it. Vertices are shared per edge, and
// per corner when the crossing lands exactly on a sample. Triangles face
// from inside to outside.
//
// thresholds (ascending, at most MaxThresholds) split the material channel
// into material indices: the index is the number of thresholds <= value.
//
// It panics with *noise.PreconditionViolation if f is nil or not fully
// populated, or thresholds are invalid.
func ExtractSurface(f *Field, iso float32, thresholds []float32) *Mesh {
	const op = "volume.ExtractSurface"
	if !f.Complete() || len(f.Density) < f.Lattice.Len() {
		noise.Violate(op, "field is nil or not populated")
	}
	if f.Material != nil && len(f.Material) < f.Lattice.Len() {
		noise.Violate(op, "material channel is partially populated")
	}
	if err := checkThresholds(thresholds); err != "" {
		noise.Violate(op, "%s", err)
	}

	x := &extractor{
		f:          f,
		iso:        iso,
		thresholds: thresholds,
		verts:      make(map[uint64]uint32),
		mesh:       &Mesh{Key: f.Key},
	}
	x.run()
	return x.finish()
}

func checkThresholds(th []float32) string {
	if len(th) > MaxThresholds {
		return "more than 3 material thresholds"
	}
	for i, t := range th {
		if t != t {
			return "NaN material threshold"
		}
		if i > 0 && t < th[i-1] {
			return "material thresholds are not ascending"
		}
	}
	return ""
}

type extractor struct {
	f          *Field
	iso        float32
	thresholds []float32

	verts map[uint64]uint32
	mat   []uint8
	tris  [MaxMaterials][]uint32
	mesh  *Mesh
}

func (x *extractor) run() {
	lat := x.f.Lattice
	cells := x.f.Cells()

	var d [8]float32
	var idx [8]int
	for k := Padding; k < Padding+cells; k++ {
		for j := Padding; j < Padding+cells; j++ {
			for i := Padding; i < Padding+cells; i++ {
				var inside uint8
				for c, o := range cornerOffset {
					idx[c] = lat.Index(i+o[0], j+o[1], k+o[2])
					d[c] = x.f.Density[idx[c]]
					if d[c] > x.iso {
						inside |= 1 << c
					}
				}
				if inside == 0 || inside == 0xff {
					continue
				}

				for _, tet := range kuhn {
					var mask uint8
					for v, c := range tet {
						if inside&(1<<c) != 0 {
							mask |= 1 << v
						}
					}
					edges := tetCases[mask]
					if edges == nil {
						continue
					}

					var ids [4]uint32
					for e, te := range edges {
						a, b := tet[tetEdges[te][0]], tet[tetEdges[te][1]]
						ids[e] = x.vertex(i, j, k, a, b, idx[a], idx[b], d[a], d[b])
					}
					out := outward(tet, mask)
					x.triangle(ids[0], ids[1], ids[2], out)
					if len(edges) == 4 {
						x.triangle(ids[0], ids[2], ids[3], out)
					}
				}
			}
		}
	}
}

// vertex returns the vertex on the edge from corner a to corner b of the
// cell at (i, j, k), creating it on first use.
func (x *extractor) vertex(i, j, k int, a, b uint8, ia, ib int, da, db float32) uint32 {
	t := (float64(x.iso) - float64(da)) / (float64(db) - float64(da))
	switch {
	case !(t > 0):
		t = 0
	case t > 1:
		t = 1
	}

	var key uint64
	switch t {
	case 0:
		key = uint64(ia)<<32 | uint64(ia)
	case 1:
		key = uint64(ib)<<32 | uint64(ib)
	default:
		key = uint64(ia)<<32 | uint64(ib)
	}
	if id, ok := x.verts[key]; ok {
		return id
	}

	lat := x.f.Lattice
	oa, ob := cornerOffset[a], cornerOffset[b]
	la := [3]int{i + oa[0], j + oa[1], k + oa[2]}
	lb := [3]int{i + ob[0], j + ob[1], k + ob[2]}

	var pos Vec3
	for ax := range 3 {
		pa, pb := lat.Coord(ax, la[ax]), lat.Coord(ax, lb[ax])
		pos[ax] = float32(lerp(pa, pb, t))
	}

	ga, gb := x.gradient(la), x.gradient(lb)
	var n [3]float64
	for ax := range 3 {
		n[ax] = -lerp(ga[ax], gb[ax], t)
	}

	var m uint8
	if x.f.Material != nil {
		v := float32(lerp(float64(x.f.Material[ia]), float64(x.f.Material[ib]), t))
		for _, th := range x.thresholds {
			if th <= v {
				m++
			}
		}
	}
	var w [MaxMaterials]float32
	w[m] = 1

	id := uint32(len(x.mesh.Positions))
	x.mesh.Positions = append(x.mesh.Positions, pos)
	x.mesh.Normals = append(x.mesh.Normals, normalize(n))
	x.mesh.Weights = append(x.mesh.Weights, w)
	x.mat = append(x.mat, m)
	x.verts[key] = id
	return id
}

// gradient returns the central-difference density gradient at a local
// sample, scaled by twice the spacing.
func (x *extractor) gradient(l [3]int) [3]float64 {
	f := x.f
	i, j, k := l[0], l[1], l[2]
	return [3]float64{
		float64(f.At(i+1, j, k)) - float64(f.At(i-1, j, k)),
		float64(f.At(i, j+1, k)) - float64(f.At(i, j-1, k)),
		float64(f.At(i, j, k+1)) - float64(f.At(i, j, k-1)),
	}
}

func (x *extractor) triangle(a, b, c uint32, out [3]float64) {
	if a == b || b == c || a == c {
		return
	}
	p := x.mesh.Positions
	e1 := sub3(p[b], p[a])
	e2 := sub3(p[c], p[a])
	n := [3]float64{
		e1[1]*e2[2] - e1[2]*e2[1],
		e1[2]*e2[0] - e1[0]*e2[2],
		e1[0]*e2[1] - e1[1]*e2[0],
	}
	if n[0]*out[0]+n[1]*out[1]+n[2]*out[2] < 0 {
		b, c = c, b
	}

	ma, mb, mc := x.mat[a], x.mat[b], x.mat[c]
	dom := min(ma, mb, mc)
	switch {
	case ma == mb || ma == mc:
		dom = ma
	case mb == mc:
		dom = mb
	}
	x.tris[dom] = append(x.tris[dom], a, b, c)
}

func (x *extractor) finish() *Mesh {
	m := x.mesh
	total := 0
	for _, t := range x.tris {
		total += len(t)
	}
	m.Indices = make([]uint32, 0, total)
	for mat, t := range x.tris {
		if len(t) == 0 {
			continue
		}
		m.Splits = append(m.Splits, Split{Material: uint8(mat), First: len(m.Indices), Count: len(t)})
		m.Indices = append(m.Indices, t...)
	}
	return m
}

// outward points from the inside corners of a tetrahedron towards its
// outside corners, in cell units.
func outward(tet [4]uint8, mask uint8) [3]float64 {
	var in, out [3]float64
	var nIn, nOut float64
	for v, c := range tet {
		o := cornerOffset[c]
		if mask&(1<<v) != 0 {
			nIn++
			for ax := range 3 {
				in[ax] += float64(o[ax])
			}
		} else {
			nOut++
			for ax := range 3 {
				out[ax] += float64(o[ax])
			}
		}
	}
	var dir [3]float64
	for ax := range 3 {
		dir[ax] = out[ax]/nOut - in[ax]/nIn
	}
	return dir
}

// lerp returns a at t == 0 and b at t == 1 exactly.
func lerp(a, b, t float64) float64 {
	switch t {
	case 0:
		return a
	case 1:
		return b
	}
	return a + t*(b-a)
}

func sub3(a, b Vec3) [3]float64 {
	return [3]float64{
		float64(a[0]) - float64(b[0]),
		float64(a[1]) - float64(b[1]),
		float64(a[2]) - float64(b[2]),
	}
}

func normalize(v [3]float64) Vec3 {
	l := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if l == 0 || math.IsNaN(l) {
		return Vec3{}
	}
	return Vec3{float32(v[0] / l), float32(v[1] / l), float32(v[2] / l)}
}
