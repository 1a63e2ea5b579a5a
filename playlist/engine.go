package playlist

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/lambdash/lambdash/assetcache"
	"github.com/lambdash/lambdash/config"
	"github.com/lambdash/lambdash/handle"
	"github.com/lambdash/lambdash/lambdasherr"
	"github.com/lambdash/lambdash/manifest"
	"github.com/lambdash/lambdash/repository"
	"github.com/lambdash/lambdash/scheduler"
	"github.com/lambdash/lambdash/shaderapi"
	"github.com/lambdash/lambdash/surface"
)

// EngineOptions parameterises the engine.
type EngineOptions struct {
	CacheOnly       bool
	RefreshAll      bool
	GlobalFPS       *float64
	GlobalAntialias *string
	GlobalColorSpace *manifest.ColorSpace
	Prewarm         time.Duration
}

type engineTarget struct {
	selector          string
	playlistName      string
	playlistLen       int
	surfaceID         surface.ID
	crossfadeOverride *time.Duration
}

// Engine owns the config, the scheduler, the asset cache, the refresh
// set, and the target/surface maps.
type Engine struct {
	cfg       *config.PlaylistFile
	scheduler *scheduler.Scheduler
	cache     *assetcache.Cache
	client    repository.RemoteClient
	fetch     shaderapi.AssetFetcher
	options   EngineOptions
	log       zerolog.Logger

	targets         map[scheduler.TargetID]*engineTarget
	surfaceToTarget map[surface.ID]scheduler.TargetID
	refreshed       map[string]bool
}

// NewEngine builds an Engine around an already-constructed asset cache.
// seed is forwarded to the scheduler so shuffle orders are reproducible.
func NewEngine(cfg *config.PlaylistFile, seed uint64, cache *assetcache.Cache, client repository.RemoteClient, fetch shaderapi.AssetFetcher, options EngineOptions, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:             cfg,
		scheduler:       scheduler.New(cfg, seed),
		cache:           cache,
		client:          client,
		fetch:           fetch,
		options:         options,
		log:             logger,
		targets:         make(map[scheduler.TargetID]*engineTarget),
		surfaceToTarget: make(map[surface.ID]scheduler.TargetID),
		refreshed:       make(map[string]bool),
	}
}

func targetIDFor(selector string) scheduler.TargetID { return scheduler.TargetID(selector) }

// SyncTargets drops targets for surfaces that no longer exist, resolves
// each live surface to a target, detects workspace
// switches, and activates every resulting selection.
func (e *Engine) SyncTargets(surfaces []surface.SurfaceInfo, workspace surface.WorkspaceSnapshot, now time.Time) ([]surface.SwapRequest, error) {
	present := make(map[surface.ID]bool, len(surfaces))
	for _, s := range surfaces {
		present[s.SurfaceID] = true
	}
	for sid, tid := range e.surfaceToTarget {
		if present[sid] {
			continue
		}
		delete(e.surfaceToTarget, sid)
		stillUsed := false
		for _, other := range e.surfaceToTarget {
			if other == tid {
				stillUsed = true
				break
			}
		}
		if !stillUsed {
			e.scheduler.RemoveTarget(tid)
			delete(e.targets, tid)
		}
	}

	var requests []surface.SwapRequest
	for _, s := range surfaces {
		res, err := ResolveTarget(s, workspace, e.cfg)
		if err != nil {
			e.log.Warn().Err(err).Str("surface", string(s.SurfaceID)).Msg("no playlist mapping for surface")
			continue
		}

		tid := targetIDFor(res.Selector)
		prevTid, hadPrev := e.surfaceToTarget[s.SurfaceID]
		existing, targetExists := e.targets[tid]

		needsSet := !hadPrev || prevTid != tid || !targetExists || existing.playlistName != res.PlaylistName
		if !needsSet {
			continue
		}

		wasWorkspace := hadPrev && isWorkspaceSelector(string(prevTid))
		becomesWorkspace := isWorkspaceSelector(res.Selector)

		change, err := e.scheduler.SetTarget(tid, res.PlaylistName, now)
		if err != nil {
			e.log.Warn().Err(err).Str("playlist", res.PlaylistName).Msg("failed to set scheduler target")
			continue
		}

		et := &engineTarget{
			selector:     res.Selector,
			playlistName: res.PlaylistName,
			playlistLen:  res.PlaylistLen,
			surfaceID:    s.SurfaceID,
		}
		if !hadPrev {
			// A fresh target always activates with a hard cut; the
			// workspace-switch fade only applies to later retargets.
			zero := time.Duration(0)
			et.crossfadeOverride = &zero
		} else if wasWorkspace || becomesWorkspace {
			cf := e.cfg.WorkspaceSwitchCrossfade.Duration()
			et.crossfadeOverride = &cf
		}
		e.targets[tid] = et
		e.surfaceToTarget[s.SurfaceID] = tid

		req, err := e.activateSelection(tid, change, now)
		if err != nil {
			return requests, err
		}
		if req != nil {
			requests = append(requests, *req)
		}
	}

	return requests, nil
}

// activateSelection resolves a selection change into a SwapRequest,
// retrying up to the playlist's length before giving up on this cycle.
func (e *Engine) activateSelection(tid scheduler.TargetID, change scheduler.SelectionChange, now time.Time) (*surface.SwapRequest, error) {
	et, ok := e.targets[tid]
	if !ok {
		return nil, lambdasherr.New(lambdasherr.SchedulerUnknownPlaylist, string(tid))
	}

	retryLimit := et.playlistLen
	if retryLimit < 1 {
		retryLimit = 1
	}

	current := change
	for attempt := 0; attempt < retryLimit; attempt++ {
		needsRefresh := !e.options.CacheOnly && (e.options.RefreshAll || current.Item.RefreshOnce) && !e.refreshed[current.Item.Handle]

		h, err := handle.Parse(current.Item.Handle)
		if err != nil {
			e.log.Warn().Err(err).Str("handle", current.Item.Handle).Msg("could not parse handle; skipping item")
			sc, ok := e.scheduler.SkipTarget(tid, now)
			if !ok {
				return nil, nil
			}
			current = sc
			continue
		}

		entry, err := e.cache.Resolve(h, e.client, e.fetch, needsRefresh)
		if err != nil {
			e.log.Warn().Err(err).Str("handle", current.Item.Handle).Msg("could not resolve shader; skipping item")
			sc, ok := e.scheduler.SkipTarget(tid, now)
			if !ok {
				return nil, nil
			}
			current = sc
			continue
		}

		if needsRefresh {
			e.refreshed[current.Item.Handle] = true
		}

		crossfade := current.Item.Crossfade
		if et.crossfadeOverride != nil {
			crossfade = *et.crossfadeOverride
			et.crossfadeOverride = nil
		} else if et.playlistLen <= 1 {
			crossfade = 0
		}

		policy := surface.PolicyAnimate
		stillTime := 0.0
		if current.Item.Mode == "still" {
			policy = surface.PolicyStill
			if current.Item.StillTime != nil {
				stillTime = *current.Item.StillTime
			}
		}

		req := surface.SwapRequest{
			Target:          et.surfaceID,
			ShaderPath:      entry.ShaderPath,
			ChannelBindings: entry.ChannelBindings,
			Crossfade:       crossfade,
			Warmup:          e.options.Prewarm,
			TargetFPS:       resolveFPS(current.Item.FPS, e.options.GlobalFPS),
			Antialiasing:    resolveAntialias(current.Item.Antialias, e.options.GlobalAntialias),
			SurfaceAlpha:    entry.SurfaceAlpha,
			ColorSpace:      resolveColorSpace(entry.ColorSpace, e.options.GlobalColorSpace),
			Policy:          policy,
			StillTime:       stillTime,
		}
		return &req, nil
	}

	e.log.Warn().Str("target", string(tid)).Msg("every item in playlist failed to load this cycle")
	return nil, nil
}

// Tick forwards to the scheduler and activates every resulting change.
func (e *Engine) Tick(now time.Time) ([]surface.SwapRequest, error) {
	changes := e.scheduler.Tick(now)
	var requests []surface.SwapRequest
	for _, change := range changes {
		req, err := e.activateSelection(change.Target, change, now)
		if err != nil {
			return requests, err
		}
		if req != nil {
			requests = append(requests, *req)
		}
	}
	return requests, nil
}

// SkipSurface looks up surfaceID's target and forwards to the scheduler's
// skip Returns nil, nil if the surface has no target.
func (e *Engine) SkipSurface(surfaceID surface.ID, now time.Time) (*surface.SwapRequest, error) {
	tid, ok := e.surfaceToTarget[surfaceID]
	if !ok {
		return nil, nil
	}
	change, ok := e.scheduler.SkipTarget(tid, now)
	if !ok {
		return nil, nil
	}
	return e.activateSelection(tid, change, now)
}

func resolveFPS(itemFPS, globalFPS *float64) float64 {
	if globalFPS != nil {
		return *globalFPS
	}
	if itemFPS != nil {
		return *itemFPS
	}
	return 0
}

func resolveAntialias(item, global *string) surface.AntialiasSetting {
	if global != nil {
		return parseAntialias(*global)
	}
	if item != nil {
		return parseAntialias(*item)
	}
	return surface.AntialiasAuto
}

func parseAntialias(s string) surface.AntialiasSetting {
	switch s {
	case "off":
		return surface.AntialiasOff
	case "2x", "2":
		return surface.AntialiasCount2
	case "4x", "4":
		return surface.AntialiasCount4
	case "8x", "8":
		return surface.AntialiasCount8
	default:
		return surface.AntialiasAuto
	}
}

func resolveColorSpace(entry manifest.ColorSpace, global *manifest.ColorSpace) manifest.ColorSpace {
	if global != nil {
		return *global
	}
	return entry
}
