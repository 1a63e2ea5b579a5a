package playlist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambdash/lambdash/config"
	"github.com/lambdash/lambdash/surface"
)

func testConfig(t *testing.T, toml string) *config.PlaylistFile {
	t.Helper()
	cfg, err := config.DecodePlaylist(strings.NewReader(toml))
	require.NoError(t, err)
	return cfg
}

func TestResolveTargetWorkspaceByNameWins(t *testing.T) {
	cfg := testConfig(t, `
version = 1

[targets]
"workspace:code" = "dev"
"output:DP-1" = "general"
_default = "fallback"

[playlists.dev]
[[playlists.dev.items]]
handle = "a"

[playlists.general]
[[playlists.general.items]]
handle = "b"

[playlists.fallback]
[[playlists.fallback.items]]
handle = "c"
`)
	info := surface.SurfaceInfo{SurfaceID: "s1", OutputName: "DP-1"}
	ws := surface.WorkspaceSnapshot{"DP-1": {ID: "2", Name: "code"}}

	res, err := ResolveTarget(info, ws, cfg)
	require.NoError(t, err)
	assert.Equal(t, "workspace:code", res.Selector)
	assert.Equal(t, "dev", res.PlaylistName)
	assert.Equal(t, 1, res.PlaylistLen)
}

func TestResolveTargetOutputFallback(t *testing.T) {
	cfg := testConfig(t, `
version = 1

[targets]
"output:DP-1" = "general"
_default = "fallback"

[playlists.general]
[[playlists.general.items]]
handle = "b"

[playlists.fallback]
[[playlists.fallback.items]]
handle = "c"
`)
	info := surface.SurfaceInfo{SurfaceID: "s1", OutputName: "DP-1"}
	res, err := ResolveTarget(info, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, "output:DP-1", res.Selector)
	assert.Equal(t, "general", res.PlaylistName)
}

func TestResolveTargetDefaultFallback(t *testing.T) {
	cfg := testConfig(t, `
version = 1

[targets]
_default = "fallback"

[playlists.fallback]
[[playlists.fallback.items]]
handle = "c"
`)
	info := surface.SurfaceInfo{SurfaceID: "s1", OutputName: "HDMI-0"}
	res, err := ResolveTarget(info, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, "_default", res.Selector)
	assert.Equal(t, "fallback", res.PlaylistName)
}

func TestResolveTargetConfigDefaultPlaylist(t *testing.T) {
	cfg := testConfig(t, `
version = 1

[defaults]
playlist = "solo"

[playlists.solo]
[[playlists.solo.items]]
handle = "d"
`)
	info := surface.SurfaceInfo{SurfaceID: "s1"}
	res, err := ResolveTarget(info, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, "solo", res.PlaylistName)
}

func TestResolveTargetNoMappingErrors(t *testing.T) {
	cfg := testConfig(t, "version = 1\n")
	_, err := ResolveTarget(surface.SurfaceInfo{SurfaceID: "s1"}, nil, cfg)
	require.Error(t, err)
}
