// Package parallel provides the work-stealing worker pool that runs chunk
// generation and meshing off the frame thread.
package parallel
