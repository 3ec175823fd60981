package volume

import "math"

// Vec3 is a position or direction in world space.
type Vec3 [3]float32

// MaxMaterials is the number of material weights per vertex.
const MaxMaterials = 4

// Split is a contiguous range of Mesh.Indices whose triangles share a
// dominant material.
type Split struct {
	Material uint8
	First    int // offset into Indices
	Count    int // number of indices
}

// Mesh is an extracted isosurface. It is immutable once ExtractSurface
// returns; renderers borrow it and must not modify it.
type Mesh struct {
	Key       Key
	Positions []Vec3
	Normals   []Vec3
	Weights   [][MaxMaterials]float32
	Indices   []uint32
	Splits    []Split
}

func (m *Mesh) VertexCount() int { return len(m.Positions) }

func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }

// IsEmpty reports whether the mesh has no triangles.
func (m *Mesh) IsEmpty() bool { return m == nil || len(m.Indices) == 0 }

// Bounds returns the axis-aligned bounding box of the vertices. ok is false
// for an empty mesh.
func (m *Mesh) Bounds() (lo, hi Vec3, ok bool) {
	if m == nil || len(m.Positions) == 0 {
		return lo, hi, false
	}
	lo = Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	hi = Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for _, p := range m.Positions {
		for a := range 3 {
			lo[a] = min(lo[a], p[a])
			hi[a] = max(hi[a], p[a])
		}
	}
	return lo, hi, true
}
