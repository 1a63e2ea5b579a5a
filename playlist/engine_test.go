package playlist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambdash/lambdash/assetcache"
	"github.com/lambdash/lambdash/config"
	"github.com/lambdash/lambdash/repository"
	"github.com/lambdash/lambdash/surface"
)

func writeLocalPack(t *testing.T, root, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "shader.toml"), []byte(body), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "image.glsl"), []byte("void mainImage(out vec4 c, in vec2 uv){ c = vec4(1.0); }"), 0o644))
}

const simplePack = `
entry = "image"
[[passes]]
name = "image"
kind = "image"
source = "image.glsl"
`

func newTestEngine(t *testing.T, searchRoot string, playlistTOML string) *Engine {
	t.Helper()
	cfg, err := config.DecodePlaylist(strings.NewReader(playlistTOML))
	require.NoError(t, err)

	repo := repository.New([]string{searchRoot}, t.TempDir(), zerolog.Nop())
	cache := assetcache.New(repo, zerolog.Nop())
	return NewEngine(cfg, 1, cache, nil, nil, EngineOptions{Prewarm: time.Millisecond}, zerolog.Nop())
}

// TestSyncTargetsActivatesFirstItem: a surface resolves to a
// playlist and the engine emits a SwapRequest for its first item.
func TestSyncTargetsActivatesFirstItem(t *testing.T) {
	searchRoot := t.TempDir()
	writeLocalPack(t, filepath.Join(searchRoot, "demo"), simplePack)

	engine := newTestEngine(t, searchRoot, `
version = 1

[targets]
"output:DP-1" = "main"

[playlists.main]
mode = "continuous"
item_duration = 3600

[[playlists.main.items]]
handle = "shader://demo"
`)

	now := time.Now()
	reqs, err := engine.SyncTargets([]surface.SurfaceInfo{{SurfaceID: "s1", OutputName: "DP-1"}}, nil, now)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].ShaderPath, "image.glsl")
	assert.Equal(t, time.Duration(0), reqs[0].Crossfade, "fresh target activates with a hard cut")
}

// TestSyncTargetsWorkspaceSwitchAppliesCrossfadeOverride:
// moving a surface between workspace-mapped targets stages the configured
// workspace_switch_crossfade for exactly the next activation.
func TestSyncTargetsWorkspaceSwitchAppliesCrossfadeOverride(t *testing.T) {
	searchRoot := t.TempDir()
	writeLocalPack(t, filepath.Join(searchRoot, "demo-a"), simplePack)
	writeLocalPack(t, filepath.Join(searchRoot, "demo-b"), simplePack)

	engine := newTestEngine(t, searchRoot, `
version = 1
workspace_switch_crossfade = 2

[targets]
"workspace:code" = "dev"
"workspace:chat" = "social"

[playlists.dev]
mode = "continuous"
item_duration = 3600
crossfade = 1

[[playlists.dev.items]]
handle = "shader://demo-a"
[[playlists.dev.items]]
handle = "shader://demo-a"

[playlists.social]
mode = "continuous"
item_duration = 3600
crossfade = 1

[[playlists.social.items]]
handle = "shader://demo-b"
[[playlists.social.items]]
handle = "shader://demo-b"
`)

	now := time.Now()
	ws := surface.WorkspaceSnapshot{"DP-1": {ID: "1", Name: "code"}}
	_, err := engine.SyncTargets([]surface.SurfaceInfo{{SurfaceID: "s1", OutputName: "DP-1"}}, ws, now)
	require.NoError(t, err)

	ws2 := surface.WorkspaceSnapshot{"DP-1": {ID: "2", Name: "chat"}}
	reqs, err := engine.SyncTargets([]surface.SurfaceInfo{{SurfaceID: "s1", OutputName: "DP-1"}}, ws2, now)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, 2*time.Second, reqs[0].Crossfade, "workspace switch overrides the item's own crossfade once")
}

func TestSyncTargetsRemovesStaleTargets(t *testing.T) {
	searchRoot := t.TempDir()
	writeLocalPack(t, filepath.Join(searchRoot, "demo"), simplePack)

	engine := newTestEngine(t, searchRoot, `
version = 1

[targets]
"output:DP-1" = "main"

[playlists.main]
mode = "continuous"
item_duration = 3600

[[playlists.main.items]]
handle = "shader://demo"
`)

	now := time.Now()
	_, err := engine.SyncTargets([]surface.SurfaceInfo{{SurfaceID: "s1", OutputName: "DP-1"}}, nil, now)
	require.NoError(t, err)
	assert.Len(t, engine.targets, 1)

	_, err = engine.SyncTargets(nil, nil, now)
	require.NoError(t, err)
	assert.Empty(t, engine.targets)
}

// TestActivateSkipsMissingItems: a playlist whose first item cannot be
// resolved skips forward and emits a single swap for the first loadable
// item, still at the fresh-target hard cut.
func TestActivateSkipsMissingItems(t *testing.T) {
	searchRoot := t.TempDir()
	writeLocalPack(t, filepath.Join(searchRoot, "valid-pack"), simplePack)

	engine := newTestEngine(t, searchRoot, `
version = 1

[targets]
"output:DP-1" = "main"

[playlists.main]
mode = "continuous"
item_duration = 3600
crossfade = 1

[[playlists.main.items]]
handle = "shader://missing-pack"
[[playlists.main.items]]
handle = "shader://valid-pack"
`)

	now := time.Now()
	reqs, err := engine.SyncTargets([]surface.SurfaceInfo{{SurfaceID: "s1", OutputName: "DP-1"}}, nil, now)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].ShaderPath, "valid-pack")
	assert.Equal(t, time.Duration(0), reqs[0].Crossfade)
}

// TestRefreshOnceRefreshesAtMostOncePerRun: a handle marked
// refresh_once is refreshed at most once per run.
func TestRefreshOnceRefreshesAtMostOncePerRun(t *testing.T) {
	searchRoot := t.TempDir()
	writeLocalPack(t, filepath.Join(searchRoot, "demo"), simplePack)

	engine := newTestEngine(t, searchRoot, `
version = 1

[targets]
"output:DP-1" = "main"

[playlists.main]
mode = "continuous"
item_duration = 1

[[playlists.main.items]]
handle = "shader://demo"
refresh_once = true
[[playlists.main.items]]
handle = "shader://demo"
refresh_once = true
`)

	now := time.Now()
	_, err := engine.SyncTargets([]surface.SurfaceInfo{{SurfaceID: "s1", OutputName: "DP-1"}}, nil, now)
	require.NoError(t, err)
	assert.True(t, engine.refreshed["shader://demo"])

	_, err = engine.Tick(now.Add(2 * time.Second))
	require.NoError(t, err)
	assert.Len(t, engine.refreshed, 1)
}

func TestSkipSurfaceUnknownReturnsNil(t *testing.T) {
	searchRoot := t.TempDir()
	engine := newTestEngine(t, searchRoot, "version = 1\n")
	req, err := engine.SkipSurface("missing", time.Now())
	require.NoError(t, err)
	assert.Nil(t, req)
}
