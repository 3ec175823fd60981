// Package stream keeps the terrain around a moving focal point resident.
//
// Each Update drains finished worker results, recomputes the required
// frontier of chunk keys when the focal point has moved far enough, and
// submits generation and meshing work to a bounded worker pool. Chunks
// move through the volume.State machine; every change can be observed
// with WithTransitionLog.
//
// A key that leaves the frontier while a worker owns it is cancelled and
// is never published. A key whose LOD changes stays published until its
// replacement is Ready, so the renderer never sees a hole.
package stream
