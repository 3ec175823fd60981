package volume

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/gogpu/terrain/noise"
)

// Padding is the number of extra samples on each side of a chunk lattice,
// used for central-difference gradients at the chunk border.
const Padding = 1

// Layout fixes the chunk grid: chunk edge length in world units, cells per
// axis at LOD 0, and the coarsest LOD.
//
// At LOD l a chunk has Cells>>l cells per axis. Each LOD l+1 sample position
// is also an LOD l sample position, so coarser LODs strictly downsample.
type Layout struct {
	ChunkSize float64
	Cells     int
	MaxLOD    uint8
}

// DefaultLayout returns a 32 unit chunk with 32 cells and two coarser LODs.
func DefaultLayout() Layout {
	return Layout{ChunkSize: 32, Cells: 32, MaxLOD: 2}
}

// Validate checks that Cells is a power of two that still leaves at least
// two cells per axis at MaxLOD.
func (l Layout) Validate() error {
	if !(l.ChunkSize > 0) || math.IsInf(l.ChunkSize, 0) {
		return fmt.Errorf("volume: chunk size %v must be positive", l.ChunkSize)
	}
	if l.Cells <= 0 || bits.OnesCount(uint(l.Cells)) != 1 {
		return fmt.Errorf("volume: cells %d must be a power of two", l.Cells)
	}
	if l.MaxLOD > 30 || l.Cells>>l.MaxLOD < 2 {
		return errors.New("volume: max LOD leaves fewer than 2 cells per chunk")
	}
	return nil
}

// CellsAt returns the number of cells per axis at lod.
func (l Layout) CellsAt(lod uint8) int {
	return l.Cells >> lod
}

// Spacing returns the distance between samples at lod.
func (l Layout) Spacing(lod uint8) float64 {
	return l.ChunkSize / float64(l.CellsAt(lod))
}

// Lattice returns the padded sample lattice of key: CellsAt+1+2*Padding
// samples per axis, starting Padding samples before the chunk origin.
func (l Layout) Lattice(key Key) noise.Lattice {
	n := l.CellsAt(key.LOD)
	size := n + 1 + 2*Padding
	return noise.Lattice{
		Origin: [3]int64{
			int64(key.X)*int64(n) - Padding,
			int64(key.Y)*int64(n) - Padding,
			int64(key.Z)*int64(n) - Padding,
		},
		Size:    [3]int{size, size, size},
		Spacing: l.Spacing(key.LOD),
	}
}

// ChunkAt returns the coordinate of the chunk containing the world position.
func (l Layout) ChunkAt(p [3]float64) Coord {
	f := func(v float64) int32 { return int32(math.Floor(v / l.ChunkSize)) }
	return Coord{f(p[0]), f(p[1]), f(p[2])}
}

// Origin returns the world position of the chunk's minimum corner.
func (l Layout) Origin(c Coord) [3]float64 {
	return [3]float64{
		float64(c.X) * l.ChunkSize,
		float64(c.Y) * l.ChunkSize,
		float64(c.Z) * l.ChunkSize,
	}
}
