package glsl

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"

	"github.com/lambdash/lambdash/lambdasherr"
)

// Backend is a runtime-selectable compilation strategy from wrapped GLSL
// source to a device-ready shader module representation.
type Backend int

const (
	// BackendSPIRV translates GLSL to SPIR-V via naga before handing the
	// module to the GPU core.
	BackendSPIRV Backend = iota
	// BackendDirectGLSL hands GLSL source straight to the GPU core, for
	// backends that accept GLSL natively.
	BackendDirectGLSL
)

// Module is the compiled output of one shader stage: either a SPIR-V word
// stream (BackendSPIRV) or the original GLSL text (BackendDirectGLSL),
// tagged so the GPU core knows how to hand it to the device.
type Module struct {
	Backend Backend
	SPIRV   []uint32
	Source  string
}

// Compile runs source (already wrapped via Wrap/WrapRaw) through the
// selected backend, labelling any failure with stage.
func Compile(source string, stage StageLabel, backend Backend) (*Module, error) {
	switch backend {
	case BackendDirectGLSL:
		return &Module{Backend: BackendDirectGLSL, Source: source}, nil
	case BackendSPIRV:
		words, err := translateToSPIRV(source, stage)
		if err != nil {
			return nil, &CompileError{Stage: stage, Cause: err}
		}
		return &Module{Backend: BackendSPIRV, SPIRV: words}, nil
	default:
		return nil, &CompileError{Stage: stage, Cause: lambdasherr.New(lambdasherr.ShaderCompile, "unknown backend")}
	}
}

// translateToSPIRV runs wrapped source through naga and converts the
// byte stream into the little-endian SPIR-V words a wgpu device consumes.
func translateToSPIRV(source string, stage StageLabel) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("%s: naga compile: %w", stage, err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("%s: SPIR-V byte count not multiple of 4", stage)
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}
