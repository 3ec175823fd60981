package stream

import (
	"cmp"
	"slices"

	"github.com/gogpu/terrain/volume"
)

// frontier computes the keys required around center. A coordinate at
// Chebyshev distance d is required at the first LOD whose radius is at
// least d. The result is ordered nearest first.
func frontier(center volume.Coord, radii []int, vertical int) (map[volume.Key]int32, []volume.Key) {
	outer := int32(radii[len(radii)-1])
	vr := min(int32(vertical), outer)

	required := make(map[volume.Key]int32)
	keys := make([]volume.Key, 0)
	for dz := -outer; dz <= outer; dz++ {
		for dy := -vr; dy <= vr; dy++ {
			for dx := -outer; dx <= outer; dx++ {
				c := center.Add(volume.Coord{X: dx, Y: dy, Z: dz})
				d := c.Chebyshev(center)
				key := volume.Key{Coord: c, LOD: lodFor(d, radii)}
				required[key] = d
				keys = append(keys, key)
			}
		}
	}
	slices.SortFunc(keys, func(a, b volume.Key) int {
		return cmp.Or(
			cmp.Compare(required[a], required[b]),
			compareKeys(a, b),
		)
	})
	return required, keys
}

func lodFor(d int32, radii []int) uint8 {
	for l, r := range radii {
		if d <= int32(r) {
			return uint8(l)
		}
	}
	return uint8(len(radii) - 1)
}

func compareKeys(a, b volume.Key) int {
	return cmp.Or(
		cmp.Compare(a.Y, b.Y),
		cmp.Compare(a.Z, b.Z),
		cmp.Compare(a.X, b.X),
		cmp.Compare(a.LOD, b.LOD),
	)
}
