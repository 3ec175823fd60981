package render

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// DeviceHandle provides the host application's GPU device. The terrain
// core never creates a device of its own.
type DeviceHandle = gpucontext.DeviceProvider

// Fallback formats used when the device reports none.
const (
	DefaultColorFormat = gputypes.TextureFormatBGRA8Unorm
	DepthFormat        = gputypes.TextureFormatDepth32Float
)

// Pipeline describes the render pipeline for terrain meshes on one device.
// It carries no GPU objects; the host creates them from these descriptors.
type Pipeline struct {
	Label        string
	SPIRV        []uint32
	Vertex       gputypes.VertexBufferLayout
	Primitive    gputypes.PrimitiveState
	IndexFormat  gputypes.IndexFormat
	ColorFormat  gputypes.TextureFormat
	DepthStencil gputypes.DepthStencilState
	Multisample  gputypes.MultisampleState
	Adapter      gpucontext.AdapterInfo
}

// NewPipeline compiles the shader and fills the descriptors for dev. The
// color target follows the surface format; headless devices get
// DefaultColorFormat. Discrete adapters render with 4x MSAA, all others
// with one sample.
func NewPipeline(dev DeviceHandle) (*Pipeline, error) {
	spirv, err := CompileShader()
	if err != nil {
		return nil, err
	}
	if dev == nil {
		dev = NullDevice{}
	}

	info := dev.AdapterInfo()
	color := dev.SurfaceFormat()
	if color == gputypes.TextureFormatUndefined {
		color = DefaultColorFormat
	}
	ms := gputypes.DefaultMultisampleState()
	if info.Type == gpucontext.AdapterTypeDiscrete {
		ms.Count = 4
	}

	return &Pipeline{
		Label:        "terrain",
		SPIRV:        spirv,
		Vertex:       VertexLayout(),
		Primitive:    Primitive(),
		IndexFormat:  IndexFormat,
		ColorFormat:  color,
		DepthStencil: gputypes.DefaultDepthStencilState(DepthFormat),
		Multisample:  ms,
		Adapter:      info,
	}, nil
}

// NullDevice is a DeviceHandle without a GPU, for headless baking.
type NullDevice struct{}

func (NullDevice) Device() gpucontext.Device   { return nil }
func (NullDevice) Queue() gpucontext.Queue     { return nil }
func (NullDevice) Adapter() gpucontext.Adapter { return nil }

func (NullDevice) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

func (NullDevice) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "none", Type: gpucontext.AdapterTypeUnknown}
}

var _ DeviceHandle = NullDevice{}
