package volume

import (
	"fmt"
	"strconv"
	"strings"
)

// Coord is a chunk coordinate in chunk units. Chunk (x, y, z) covers world
// space [x, x+1) * ChunkSize along each axis.
type Coord struct {
	X, Y, Z int32
}

// Add returns c + o.
func (c Coord) Add(o Coord) Coord {
	return Coord{c.X + o.X, c.Y + o.Y, c.Z + o.Z}
}

// Chebyshev returns the largest per-axis distance between c and o.
func (c Coord) Chebyshev(o Coord) int32 {
	return max(abs32(c.X-o.X), abs32(c.Y-o.Y), abs32(c.Z-o.Z))
}

func (c Coord) String() string {
	return fmt.Sprintf("%d,%d,%d", c.X, c.Y, c.Z)
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// Key identifies one chunk at one level of detail. A coordinate at two
// LODs is two independent keys.
type Key struct {
	Coord
	LOD uint8
}

// String formats the key as "x,y,z@lod".
func (k Key) String() string {
	return k.Coord.String() + "@" + strconv.Itoa(int(k.LOD))
}

// ParseKey parses the String form of a key.
func ParseKey(s string) (Key, error) {
	coord, lod, ok := strings.Cut(s, "@")
	if !ok {
		lod = "0"
	}
	parts := strings.Split(coord, ",")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("volume: key %q: want x,y,z@lod", s)
	}
	var v [3]int32
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return Key{}, fmt.Errorf("volume: key %q: %w", s, err)
		}
		v[i] = int32(n)
	}
	l, err := strconv.ParseUint(strings.TrimSpace(lod), 10, 8)
	if err != nil {
		return Key{}, fmt.Errorf("volume: key %q: %w", s, err)
	}
	return Key{Coord: Coord{v[0], v[1], v[2]}, LOD: uint8(l)}, nil
}
