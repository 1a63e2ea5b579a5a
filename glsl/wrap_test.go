package glsl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripReservedRemovesVersionAndReservedUniforms(t *testing.T) {
	source := `#version 300 es
uniform float iTime;
uniform vec2 iResolution;
uniform sampler2D myOwnTexture;

void mainImage(out vec4 fragColor, in vec2 fragCoord) {
    fragColor = vec4(iTime);
}
`
	stripped := StripReserved(source)
	assert.NotContains(t, stripped, "#version")
	assert.NotContains(t, stripped, "uniform float iTime")
	assert.NotContains(t, stripped, "uniform vec2 iResolution")
	assert.Contains(t, stripped, "uniform sampler2D myOwnTexture")
	assert.Contains(t, stripped, "mainImage")
}

func TestWrapProducesPrologueAndEpilogue(t *testing.T) {
	wrapped := WrapRaw(`void mainImage(out vec4 fragColor, in vec2 fragCoord) {
    fragColor = vec4(1.0);
}
`)
	assert.True(t, strings.HasPrefix(wrapped, "#version 450"))
	assert.Contains(t, wrapped, "ShadertoyUniforms")
	assert.Contains(t, wrapped, "mainImage(color, mapped)")
	assert.Contains(t, wrapped, "color.rgb * iFade")
}

func TestCompileDirectGLSLBackendPassesSourceThrough(t *testing.T) {
	wrapped := WrapRaw("void mainImage(out vec4 c, in vec2 uv) { c = vec4(1.0); }")
	module, err := Compile(wrapped, StageFragment, BackendDirectGLSL)
	require.NoError(t, err)
	assert.Equal(t, BackendDirectGLSL, module.Backend)
	assert.Equal(t, wrapped, module.Source)
}
