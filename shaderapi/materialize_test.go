package shaderapi

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambdash/lambdash/config"
)

func intp(v int64) *int64 { return &v }

func TestBuildCachePlanInjectsCommonAndSelectsImageEntry(t *testing.T) {
	payload := &ShaderPayload{
		Info: ShaderInfo{Name: "Demo Shader!", Tags: []string{"demo"}},
		RenderPasses: []RenderPass{
			{Name: "Common", Type: "common", Code: "float shared() { return 1.0; }\n"},
			{Name: "Buf A", Type: "buffer", Code: "void mainImage(){}", Outputs: []RenderOutput{{ID: 257, Channel: 0}}},
			{
				Name: "Image", Type: "image", Code: "void mainImage(){}",
				Inputs: []RenderInput{{ID: intp(257), Channel: 0, CType: "buffer"}},
			},
		},
	}

	plan, err := buildCachePlan(payload, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "image", plan.manifest.Entry)
	require.Len(t, plan.manifest.Passes, 2)

	var imagePass *passArtifact
	for i := range plan.passArtifacts {
		if plan.passArtifacts[i].sourceRel == "image.glsl" {
			imagePass = &plan.passArtifacts[i]
		}
	}
	require.NotNil(t, imagePass)
	assert.Contains(t, imagePass.sourceCode, "shared()")

	var bufferInput config.ManifestInput
	for _, p := range plan.manifest.Passes {
		if p.Name == "image" {
			bufferInput = p.Inputs[0]
		}
	}
	assert.Equal(t, "buffer", bufferInput.Type)
	assert.Equal(t, "buf_a", bufferInput.Name)
}

func TestBuildCachePlanSchedulesTextureAsset(t *testing.T) {
	payload := &ShaderPayload{
		Info: ShaderInfo{Name: "Tex"},
		RenderPasses: []RenderPass{
			{
				Name: "Image", Type: "image", Code: "void mainImage(){}",
				Inputs: []RenderInput{{Channel: 0, CType: "texture", Src: "/media/a/tex00.png?v=1"}},
			},
		},
	}

	plan, err := buildCachePlan(payload, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, plan.assets, 1)
	assert.Equal(t, "textures/tex00.png", plan.assets[0].destinationRel)
}

func TestBuildCachePlanIgnoresUnsupportedChannelType(t *testing.T) {
	payload := &ShaderPayload{
		Info: ShaderInfo{Name: "KB"},
		RenderPasses: []RenderPass{
			{
				Name: "Image", Type: "image", Code: "void mainImage(){}",
				Inputs: []RenderInput{{Channel: 0, CType: "keyboard"}},
			},
		},
	}

	plan, err := buildCachePlan(payload, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, plan.manifest.Passes[0].Inputs)
}

func TestSanitizeLabel(t *testing.T) {
	assert.Equal(t, "buf_a", sanitizeLabel("Buf A"))
	assert.Equal(t, "p123", sanitizeLabel("123"))
	assert.Equal(t, "", sanitizeLabel("!!!"))
}

func TestMakeUniqueName(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "image", makeUniqueName("image", used))
	assert.Equal(t, "image_2", makeUniqueName("image", used))
	assert.Equal(t, "image_3", makeUniqueName("image", used))
}
