package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambdash/lambdash/handle"
	"github.com/lambdash/lambdash/shaderapi"
)

func writeLocalPack(t *testing.T, root string) {
	if t != nil {
		t.Helper()
	}
	mustWritePack(root)
}

func mustWritePack(root string) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		panic(err)
	}
	if err := os.WriteFile(filepath.Join(root, "shader.toml"), []byte(`
entry = "image"
[[passes]]
name = "image"
kind = "image"
source = "image.glsl"
`), 0o644); err != nil {
		panic(err)
	}
	if err := os.WriteFile(filepath.Join(root, "image.glsl"), []byte("void mainImage(out vec4 c, in vec2 uv){ c = vec4(1.0); }"), 0o644); err != nil {
		panic(err)
	}
}

func TestResolveLocalPackRelativeToSearchRoot(t *testing.T) {
	searchRoot := t.TempDir()
	writeLocalPack(t, filepath.Join(searchRoot, "demo"))

	repo := New([]string{searchRoot}, t.TempDir(), zerolog.Nop())
	h, err := handle.Parse("shader://demo")
	require.NoError(t, err)

	src, err := repo.Resolve(h, nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, LocalSource, src.Kind)
	assert.Equal(t, "image", src.Pack.Manifest.Entry)
}

func TestResolveLocalPackNotFound(t *testing.T) {
	repo := New([]string{t.TempDir()}, t.TempDir(), zerolog.Nop())
	h, err := handle.Parse("shader://missing")
	require.NoError(t, err)

	_, err = repo.Resolve(h, nil, nil, false)
	require.Error(t, err)
}

type fakeRemote struct {
	fetchCalls int
}

func (f *fakeRemote) FetchAndCache(shaderID, cacheDir string, fetch shaderapi.AssetFetcher) error {
	f.fetchCalls++
	writeLocalPack(nil, cacheDir)
	return nil
}

func TestResolveRemoteFetchesOnceThenUsesCache(t *testing.T) {
	cacheRoot := t.TempDir()
	repo := New(nil, cacheRoot, zerolog.Nop())
	h, err := handle.Parse("shadertoy://abc123")
	require.NoError(t, err)

	client := &fakeRemote{}
	src, err := repo.Resolve(h, client, nil, false)
	require.NoError(t, err)
	assert.Equal(t, CachedRemoteSource, src.Kind)
	assert.Equal(t, 1, client.fetchCalls)

	src2, err := repo.Resolve(h, client, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "abc123", src2.ID)
	assert.Equal(t, 1, client.fetchCalls, "second resolve must not refetch")
}

func TestResolveRemoteWithoutClientAndNoCacheIsCacheMiss(t *testing.T) {
	repo := New(nil, t.TempDir(), zerolog.Nop())
	h, err := handle.Parse("shadertoy://abc123")
	require.NoError(t, err)

	_, err = repo.Resolve(h, nil, nil, false)
	require.Error(t, err)
}
