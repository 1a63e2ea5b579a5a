// Package playlist implements the playlist engine and target resolver:
// it maps live surfaces onto playlists, drives the
// scheduler, resolves shader assets through the cache, and emits
// SwapRequests for the GPU core to dispatch.
package playlist

import (
	"strings"

	"github.com/lambdash/lambdash/config"
	"github.com/lambdash/lambdash/lambdasherr"
	"github.com/lambdash/lambdash/surface"
)

// Resolution is the outcome of resolving a surface to a playlist.
type Resolution struct {
	Selector     string
	PlaylistName string
	PlaylistLen  int
}

// ResolveTarget implements the selector priority order: workspace
// mapping (by name then id), output mapping, "_default", then
// the config-wide default playlist.
func ResolveTarget(info surface.SurfaceInfo, workspace surface.WorkspaceSnapshot, cfg *config.PlaylistFile) (Resolution, error) {
	if workspace != nil && info.OutputName != "" {
		if ws, ok := workspace[info.OutputName]; ok {
			for _, selector := range []string{
				"workspace:" + ws.Name,
				"workspace:" + ws.ID,
				ws.Name,
				ws.ID,
			} {
				if selector == "workspace:" || selector == "" {
					continue
				}
				if name, ok := cfg.Targets[selector]; ok {
					return resolved(selector, name, cfg)
				}
			}
		}
	}

	if info.OutputName != "" {
		selector := "output:" + info.OutputName
		if name, ok := cfg.Targets[selector]; ok {
			return resolved(selector, name, cfg)
		}
	}

	if name, ok := cfg.Targets["_default"]; ok {
		return resolved("_default", name, cfg)
	}

	if cfg.Defaults.Playlist != "" {
		return resolved("_default", cfg.Defaults.Playlist, cfg)
	}

	return Resolution{}, lambdasherr.New(lambdasherr.NoPlaylistMapping, string(info.SurfaceID))
}

func resolved(selector, playlistName string, cfg *config.PlaylistFile) (Resolution, error) {
	pl, ok := cfg.Playlists[playlistName]
	if !ok {
		return Resolution{}, lambdasherr.New(lambdasherr.SchedulerUnknownPlaylist, playlistName)
	}
	return Resolution{Selector: selector, PlaylistName: playlistName, PlaylistLen: len(pl.Items)}, nil
}

// isWorkspaceSelector reports whether selector names a workspace mapping,
// used by SyncTargets to detect workspace-switch transitions. Bare
// numeric selectors are workspace ids.
func isWorkspaceSelector(selector string) bool {
	if strings.HasPrefix(selector, "workspace:") {
		return true
	}
	if selector == "" || strings.HasPrefix(selector, "output:") || selector == "_default" {
		return false
	}
	for _, r := range selector {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
