package assetcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambdash/lambdash/handle"
	"github.com/lambdash/lambdash/repository"
)

func writePack(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "shader.toml"), []byte(`
entry = "image"
[[passes]]
name = "image"
kind = "image"
source = "image.glsl"
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "image.glsl"), []byte("void mainImage(out vec4 c, in vec2 uv){ c = vec4(1.0); }"), 0o644))
}

func TestResolveCachesAcrossCalls(t *testing.T) {
	searchRoot := t.TempDir()
	writePack(t, filepath.Join(searchRoot, "demo"))

	repo := repository.New([]string{searchRoot}, t.TempDir(), zerolog.Nop())
	cache := New(repo, zerolog.Nop())

	h, err := handle.Parse("shader://demo")
	require.NoError(t, err)

	entry1, err := cache.Resolve(h, nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(searchRoot, "demo", "image.glsl"), entry1.ShaderPath)

	entry2, err := cache.Resolve(h, nil, nil, false)
	require.NoError(t, err)
	assert.Same(t, entry1, entry2, "second resolve without refresh must return the cached entry")
}

func TestResolveRefreshRebuildsEntry(t *testing.T) {
	searchRoot := t.TempDir()
	writePack(t, filepath.Join(searchRoot, "demo"))

	repo := repository.New([]string{searchRoot}, t.TempDir(), zerolog.Nop())
	cache := New(repo, zerolog.Nop())

	h, err := handle.Parse("shader://demo")
	require.NoError(t, err)

	entry1, err := cache.Resolve(h, nil, nil, false)
	require.NoError(t, err)

	entry2, err := cache.Resolve(h, nil, nil, true)
	require.NoError(t, err)
	assert.NotSame(t, entry1, entry2)
}
