// Package volume turns noise fields into chunk meshes.
//
// The world is divided into cubic chunks addressed by Coord. A Key pairs a
// coordinate with a level of detail, and Layout maps a key to its padded
// sample Lattice. Populate evaluates a compiled noise plan over that
// lattice, and ExtractSurface runs marching tetrahedra over the populated
// Field to produce a Mesh. Neighbouring chunks at the same LOD produce
// identical vertices along their shared face.
//
// Chunk and State model the per-key lifecycle used by the streamer:
//
//	Empty -> Requested -> Generating -> Populated -> Meshing -> Ready -> Evicting -> Empty
//
// with Requested, Generating and Meshing able to move to Cancelled and then
// back to Empty.
package volume
