package render

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/terrain/volume"
)

// Byte offsets of the interleaved vertex attributes.
const (
	PositionOffset = 0
	NormalOffset   = 12
	WeightsOffset  = 24
	VertexStride   = 40
)

// IndexFormat is the format of IndexBytes.
const IndexFormat = gputypes.IndexFormatUint32

// VertexLayout returns the layout of Interleave's output: position at
// location 0, normal at 1 and material weights at 2.
func VertexLayout() gputypes.VertexBufferLayout {
	return gputypes.VertexBufferLayout{
		ArrayStride: VertexStride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x3, Offset: PositionOffset, ShaderLocation: 0},
			{Format: gputypes.VertexFormatFloat32x3, Offset: NormalOffset, ShaderLocation: 1},
			{Format: gputypes.VertexFormatFloat32x4, Offset: WeightsOffset, ShaderLocation: 2},
		},
	}
}

// Primitive returns the primitive state for terrain meshes. Extraction
// winds triangles counter-clockwise seen from outside the solid.
func Primitive() gputypes.PrimitiveState {
	return gputypes.PrimitiveState{
		Topology:  gputypes.PrimitiveTopologyTriangleList,
		FrontFace: gputypes.FrontFaceCCW,
		CullMode:  gputypes.CullModeBack,
	}
}

// Interleave packs the vertices of m little-endian in VertexLayout order.
// A nil mesh yields nil.
func Interleave(m *volume.Mesh) []byte {
	if m == nil || len(m.Positions) == 0 {
		return nil
	}
	buf := make([]byte, len(m.Positions)*VertexStride)
	for i := range m.Positions {
		v := buf[i*VertexStride:]
		putFloats(v[PositionOffset:], m.Positions[i][:])
		putFloats(v[NormalOffset:], m.Normals[i][:])
		putFloats(v[WeightsOffset:], m.Weights[i][:])
	}
	return buf
}

// IndexBytes packs the indices of m as little-endian uint32.
func IndexBytes(m *volume.Mesh) []byte {
	if m == nil || len(m.Indices) == 0 {
		return nil
	}
	buf := make([]byte, 0, len(m.Indices)*int(IndexFormat.Size()))
	for _, idx := range m.Indices {
		buf = binary.LittleEndian.AppendUint32(buf, idx)
	}
	return buf
}

func putFloats(dst []byte, src []float32) {
	for i, f := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}
