// Package render adapts extracted terrain meshes for a GPU renderer.
//
// The terrain core does not own a GPU device. A host application that has
// one passes it in as a DeviceHandle (gpucontext.DeviceProvider) and uses
// the descriptors here to build its pipeline:
//
//	pipe, err := render.NewPipeline(app.DeviceHandle())
//	if err != nil {
//	    return err
//	}
//	// create a shader module from pipe.SPIRV and a render pipeline with
//	// pipe.Vertex, pipe.Primitive and pipe.DepthStencil
//
// Interleave and IndexBytes pack a volume.Mesh into buffers matching
// VertexLayout and IndexFormat. Recorder is a stream.Renderer that keeps the
// packed buffers of every published chunk, for headless use and tests.
package render
