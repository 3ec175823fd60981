// Package terrain is a procedural terrain core for chunk-streamed 3D worlds.
//
// # Overview
//
// A noise node graph is compiled once into an immutable plan and evaluated
// over chunk sample lattices through a width-agnostic SIMD layer. Populated
// chunks are turned into seam-continuous triangle meshes, and a streamer
// keeps the set of live chunks around a moving focal point, generating and
// evicting them on a worker pool without blocking the frame loop.
//
// # Quick Start
//
//	g, _ := noise.Preset("hills")
//	plan, err := noise.Compile(g)
//	if err != nil {
//		log.Fatal(err)
//	}
//	cfg := config.Default()
//	s, err := stream.New(cfg.Streaming, cfg.Layout.Volume(), plan, renderer)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer s.Close()
//
//	for frame := range frames {
//		s.Update(frame.Camera)
//	}
//
// # Architecture
//
// The module is organized into:
//   - internal/wide: lane types, masks and batch kernels
//   - noise: graph model, compiler, evaluator and documents
//   - volume: chunk keys, lattices, population and surface extraction
//   - stream: frontier policy and the per-chunk lifecycle
//   - render: GPU vertex layout, interleaving and the terrain shader
//   - config, store: YAML configuration and graph persistence
//
// # Coordinate System
//
// Right-handed, Y up. Chunk coordinates are integers in units of the
// configured chunk size; chunk (0,0,0) spans [0, size) on every axis.
package terrain

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
