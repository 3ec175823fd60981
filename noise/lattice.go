package noise

import "fmt"

// Lattice is a regular 3D grid of sample points. Sample (i, j, k) sits at
// world position (Origin + (i, j, k)) * Spacing, computed from integers so
// two lattices that share a sample compute bit-identical coordinates.
//
// Samples are ordered x fastest, then y, then z. A 2D-over-height lattice
// is a lattice with one axis of size 1.
type Lattice struct {
	Origin  [3]int64
	Size    [3]int
	Spacing float64
}

// Len returns the number of samples.
func (l Lattice) Len() int {
	return l.Size[0] * l.Size[1] * l.Size[2]
}

// Index returns the linear index of sample (i, j, k).
func (l Lattice) Index(i, j, k int) int {
	return i + l.Size[0]*(j+l.Size[1]*k)
}

// Coord returns the world coordinate of sample index idx along axis.
func (l Lattice) Coord(axis, idx int) float64 {
	return float64(l.Origin[axis]+int64(idx)) * l.Spacing
}

// Position returns the world position of sample (i, j, k).
func (l Lattice) Position(i, j, k int) [3]float64 {
	return [3]float64{l.Coord(0, i), l.Coord(1, j), l.Coord(2, k)}
}

// Validate reports whether the lattice has a positive size and spacing.
func (l Lattice) Validate() error {
	for a, n := range l.Size {
		if n <= 0 {
			return fmt.Errorf("noise: lattice axis %d has size %d", a, n)
		}
	}
	if !(l.Spacing > 0) {
		return fmt.Errorf("noise: lattice spacing %v must be positive", l.Spacing)
	}
	return nil
}

func (l Lattice) String() string {
	return fmt.Sprintf("lattice{origin=%v size=%v spacing=%g}", l.Origin, l.Size, l.Spacing)
}
