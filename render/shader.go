package render

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/gogpu/naga"
)

// ShaderSource is the WGSL shader for terrain meshes. Entry points are
// vs_main and fs_main; bind group 0 holds the frame uniforms at binding 0
// and the material palette at binding 1.
//
//go:embed shader.wgsl
var ShaderSource string

// Shader entry point names.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
)

var shaderOnce struct {
	sync.Once
	words []uint32
	err   error
}

// CompileShader compiles ShaderSource to SPIR-V. The result is computed
// once and shared; callers must not modify it.
func CompileShader() ([]uint32, error) {
	shaderOnce.Do(func() {
		shaderOnce.words, shaderOnce.err = compileSPIRV(ShaderSource)
	})
	return shaderOnce.words, shaderOnce.err
}

// compileSPIRV compiles WGSL and converts the little-endian SPIR-V bytes to
// words.
func compileSPIRV(src string) ([]uint32, error) {
	b, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("render: compile shader: %w", err)
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("render: SPIR-V length %d is not a multiple of 4", len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words, nil
}
