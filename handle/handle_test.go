package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambdash/lambdash/lambdasherr"
)

// TestParseHandleNormalisation: a full
// shadertoy.com URL with a query string, a shader:// local pack reference,
// and an ambiguous bare name.
func TestParseHandleNormalisation(t *testing.T) {
	h, err := Parse("https://www.shadertoy.com/view/abc123?x=1")
	require.NoError(t, err)
	assert.Equal(t, ShadertoyID, h.Kind)
	assert.Equal(t, "abc123", h.Value)

	h, err = Parse("shader://demo")
	require.NoError(t, err)
	assert.Equal(t, LocalPackName, h.Kind)
	assert.Equal(t, "demo", h.Value)

	_, err = Parse("demo")
	require.Error(t, err)
	assert.True(t, lambdasherr.Is(err, lambdasherr.HandleParse))
}

func TestParseShadertoyScheme(t *testing.T) {
	h, err := Parse("shadertoy://XlSSzV")
	require.NoError(t, err)
	assert.Equal(t, ShadertoyID, h.Kind)
	assert.Equal(t, "XlSSzV", h.Value)

	_, err = Parse("shadertoy://")
	assert.Error(t, err)
}

func TestParseRawPath(t *testing.T) {
	h, err := Parse("/opt/shaders/demo")
	require.NoError(t, err)
	assert.Equal(t, RawPath, h.Kind)

	h, err = Parse("relative/demo")
	require.NoError(t, err)
	assert.Equal(t, RawPath, h.Kind)
	assert.Equal(t, "relative/demo", h.Value)
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse("   ")
	require.Error(t, err)
	assert.True(t, lambdasherr.Is(err, lambdasherr.HandleParse))
}

func TestParseNonShadertoyURL(t *testing.T) {
	// A URL-shaped string pointing elsewhere is not a valid bare scheme and
	// contains no path separator disambiguation beyond its own slashes, so
	// it resolves as a RawPath (it does contain '/').
	h, err := Parse("https://example.com/view/xyz")
	require.NoError(t, err)
	assert.Equal(t, RawPath, h.Kind)
}
