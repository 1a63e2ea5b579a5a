// Package glsl implements the ShaderToy GLSL wrapping and compilation
// pipeline: stripping reserved uniform declarations, prepending a fixed
// prologue, appending a fixed epilogue, and compiling the result via a
// runtime-selectable backend.
package glsl

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/lambdash/lambdash/bindings"
)

// reservedUniforms are the ShaderToy uniform names stripped from raw
// source before the prologue's own declarations take effect.
var reservedUniforms = map[string]bool{
	"iTime": true, "iTimeDelta": true, "iFrame": true, "iResolution": true,
	"iMouse": true, "iDate": true, "iSampleRate": true,
	"iChannelTime": true, "iChannelResolution": true,
	"iChannel0": true, "iChannel1": true, "iChannel2": true, "iChannel3": true,
}

var versionDirective = regexp.MustCompile(`^\s*#version\b.*$`)
var uniformDecl = regexp.MustCompile(`^\s*uniform\s+\S+\s+([A-Za-z_][A-Za-z0-9_]*)\s*(\[[^\]]*\])?\s*;`)

// StripReserved removes a leading #version directive and any top-level
// uniform declaration whose identifier is a reserved ShaderToy name.
func StripReserved(source string) string {
	scanner := bufio.NewScanner(strings.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out strings.Builder
	strippedVersion := false
	for scanner.Scan() {
		line := scanner.Text()
		if !strippedVersion && versionDirective.MatchString(line) {
			strippedVersion = true
			continue
		}
		if m := uniformDecl.FindStringSubmatch(line); m != nil && reservedUniforms[m[1]] {
			continue
		}
		out.WriteString(line)
		out.WriteString("\n")
	}
	return out.String()
}

// prologue declares version 450, the std140 uniform block, four
// texture+sampler bind-group slots at set 1 bindings 0..7, macros
// aliasing ShaderToy names to block members, iChannelN combinator macros,
// and the lambdash_gl_FragCoord shim.
const prologue = `#version 450

layout(set = 0, binding = 0, std140) uniform ShadertoyUniforms {
    vec4 iResolution;
    float iTime;
    float iTimeDelta;
    int iFrame;
    float iPadding0;
    vec4 iMouse;
    vec4 iDate;
    float iSampleRate;
    float iFade;
    vec2 iPadding1;
    vec4 iChannelTime[4];
    vec4 iChannelResolution[4];
    vec4 iSurface;
    vec4 iFill;
    vec4 iFillWrap;
};

layout(set = 1, binding = 0) uniform texture2D lambdash_tex0;
layout(set = 1, binding = 1) uniform sampler lambdash_samp0;
layout(set = 1, binding = 2) uniform texture2D lambdash_tex1;
layout(set = 1, binding = 3) uniform sampler lambdash_samp1;
layout(set = 1, binding = 4) uniform texture2D lambdash_tex2;
layout(set = 1, binding = 5) uniform sampler lambdash_samp2;
layout(set = 1, binding = 6) uniform texture2D lambdash_tex3;
layout(set = 1, binding = 7) uniform sampler lambdash_samp3;

#define iChannel0 sampler2D(lambdash_tex0, lambdash_samp0)
#define iChannel1 sampler2D(lambdash_tex1, lambdash_samp1)
#define iChannel2 sampler2D(lambdash_tex2, lambdash_samp2)
#define iChannel3 sampler2D(lambdash_tex3, lambdash_samp3)

vec4 lambdash_gl_FragCoord;
#define gl_FragCoord lambdash_gl_FragCoord

layout(location = 0) out vec4 lambdash_fragColor;

`

// epilogue applies the fill transform, redirects the gl_FragCoord shim to
// the mapped coordinate, calls mainImage, and writes the faded color.
const epilogue = `
#undef gl_FragCoord

void main() {
    vec4 frag = gl_FragCoord;
    vec2 mapped;
    mapped.x = frag.x * iFill.x + iFill.z;
    mapped.y = (iSurface.y - frag.y) * iFill.y + iFill.w;

    if (iFillWrap.x > 0.0) {
        mapped.x = mod(mapped.x, iFillWrap.x);
    } else if (mapped.x < 0.0 || mapped.x >= iResolution.x) {
        lambdash_fragColor = vec4(0.0);
        return;
    }
    if (iFillWrap.y > 0.0) {
        mapped.y = mod(mapped.y, iFillWrap.y);
    } else if (mapped.y < 0.0 || mapped.y >= iResolution.y) {
        lambdash_fragColor = vec4(0.0);
        return;
    }

    lambdash_gl_FragCoord = vec4(mapped, frag.z, frag.w);

    vec4 color;
    mainImage(color, mapped);
    lambdash_fragColor = vec4(color.rgb * iFade, iFade);
}
`

// Wrap assembles the fixed prologue, the caller's (already reserved-name
// stripped) source, and the fixed epilogue.
func Wrap(strippedSource string) string {
	var b strings.Builder
	b.WriteString(prologue)
	b.WriteString(strippedSource)
	b.WriteString(epilogue)
	return b.String()
}

// WrapRaw strips reserved uniforms from raw and wraps it.
func WrapRaw(raw string) string {
	return Wrap(StripReserved(raw))
}

// VertexShader is the static three-vertex full-screen triangle used for
// every draw.
const VertexShader = `#version 450

layout(location = 0) out vec2 lambdash_uv;

void main() {
    vec2 positions[3] = vec2[3](
        vec2(-1.0, -1.0),
        vec2(3.0, -1.0),
        vec2(-1.0, 3.0)
    );
    vec2 pos = positions[gl_VertexIndex];
    lambdash_uv = (pos + 1.0) * 0.5;
    gl_Position = vec4(pos, 0.0, 1.0);
}
`

// BindGroupSlotCount mirrors bindings.ChannelCount for callers that don't
// want to import bindings directly.
const BindGroupSlotCount = bindings.ChannelCount

// StageLabel identifies the shader stage a compile error originates in.
type StageLabel string

const (
	StageVertex   StageLabel = "vertex"
	StageFragment StageLabel = "fragment"
)

// CompileError reports a failure from either compilation backend, labelled
// by stage.
type CompileError struct {
	Stage StageLabel
	Cause error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("glsl %s compile: %v", e.Stage, e.Cause)
}

func (e *CompileError) Unwrap() error { return e.Cause }
