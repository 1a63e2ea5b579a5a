// lambdash-preview renders a shader pack or playlist into a desktop
// window. It is the preview-window stand-in for the Wayland layer-surface
// daemon: the window plays the role of one surface, spacebar advances the
// playlist, and the playlist engine drives shader swaps exactly as it
// would against a compositor background.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lambdash/lambdash/assetcache"
	"github.com/lambdash/lambdash/config"
	"github.com/lambdash/lambdash/gpu"
	"github.com/lambdash/lambdash/playlist"
	"github.com/lambdash/lambdash/repository"
	"github.com/lambdash/lambdash/shaderapi"
	"github.com/lambdash/lambdash/surface"
)

const previewSurfaceID surface.ID = "preview-window"

func init() {
	// The GLFW event loop and the GPU session both live on the main
	// thread; render, shader swaps, and resizes must be serialised on
	// one goroutine anyway.
	runtime.LockOSThread()
}

func main() {
	shaderFlag := flag.String("shader", "", "shader handle (shadertoy://<id>, shader://<name>, or a pack path)")
	playlistFlag := flag.String("playlist", "", "playlist TOML file (overrides -shader)")
	widthFlag := flag.Int("width", 1280, "window width")
	heightFlag := flag.Int("height", 720, "window height")
	shaderDirs := flag.String("shader-dirs", "", "colon-separated local pack search roots")
	cacheDir := flag.String("cache-dir", "", "remote shader cache root (default: ~/.cache/lambdash/shadertoy)")
	apiKey := flag.String("apikey", "", "Shadertoy API key (SHADERTOY_KEY env var if not set)")
	cacheOnly := flag.Bool("cache-only", false, "never refresh remote shaders")
	refreshAll := flag.Bool("refresh", false, "refresh every remote shader once this run")
	prewarm := flag.Duration("prewarm", 150*time.Millisecond, "pre-warm window before a swapped shader becomes visible")
	seed := flag.Uint64("seed", 0, "shuffle seed (0: derived from clock)")
	curveFlag := flag.String("crossfade-curve", "smoothstep", "crossfade curve: linear, smoothstep, ease_in_out")
	vsyncFlag := flag.String("vsync", "crossfade", "vsync mode: never, always, crossfade")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()

	if *shaderFlag == "" && *playlistFlag == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*playlistFlag, *shaderFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not load playlist config")
	}

	repo := repository.New(searchRoots(*shaderDirs), resolveCacheDir(*cacheDir), logger)
	cache := assetcache.New(repo, logger)

	var client repository.RemoteClient
	if key := resolveAPIKey(*apiKey); key != "" {
		apiCfg, err := shaderapi.NewConfig(key)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid shadertoy api configuration")
		}
		client = shaderapi.NewClient(apiCfg, logger)
	} else {
		logger.Debug().Msg("no shadertoy api key; remote handles resolve from cache only")
	}

	engine := playlist.NewEngine(cfg, resolveSeed(*seed), cache, client, httpFetch, playlist.EngineOptions{
		CacheOnly:  *cacheOnly,
		RefreshAll: *refreshAll,
		Prewarm:    *prewarm,
	}, logger)

	window, err := newPreviewWindow(*widthFlag, *heightFlag, "lambdash")
	if err != nil {
		logger.Fatal().Err(err).Msg("could not create preview window")
	}
	defer window.Shutdown()

	if err := run(window, engine, sessionOptions{
		curve:       gpu.FadeCurve(*curveFlag),
		vsyncMode:   parseVsync(*vsyncFlag),
		renderScale: 1.0,
		fillMethod:  gpu.FillMethod{Kind: gpu.FillStretch},
		latency:     2,
	}, logger); err != nil {
		logger.Fatal().Err(err).Msg("preview session failed")
	}
}

// run pumps all three execution contexts on one thread: the GLFW event
// poll stands in for the surface/event context, the engine tick for the
// scheduler context, and the session for the GPU core.
func run(window *previewWindow, engine *playlist.Engine, opts sessionOptions, logger zerolog.Logger) error {
	now := time.Now()
	requests, err := engine.SyncTargets(surfaceSnapshot(window), nil, now)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return fmt.Errorf("no playlist item could be activated")
	}

	sess, err := newSession(window, requests[0], opts, logger)
	if err != nil {
		return err
	}
	defer sess.Shutdown(previewSurfaceID)

	lastTick := now
	lastW, lastH := window.PixelSize()

	for !window.ShouldClose() {
		frameStart := time.Now()

		advance := window.Poll()
		if w, h := window.PixelSize(); w != lastW || h != lastH {
			lastW, lastH = w, h
			if err := sess.Resize(previewSurfaceID, int(w), int(h)); err != nil {
				return err
			}
		}

		if advance {
			if req, err := engine.SkipSurface(previewSurfaceID, frameStart); err != nil {
				logger.Warn().Err(err).Msg("skip failed")
			} else if req != nil {
				dispatch(sess, *req, logger)
			}
		}

		if frameStart.Sub(lastTick) >= 250*time.Millisecond {
			lastTick = frameStart
			reqs, err := engine.Tick(frameStart)
			if err != nil {
				logger.Warn().Err(err).Msg("scheduler tick failed")
			}
			for _, req := range reqs {
				dispatch(sess, req, logger)
			}
		}

		if fatal := sess.Frame(frameStart); fatal {
			return fmt.Errorf("renderer shut down")
		}

		if budget := sess.FrameBudget(); budget > 0 {
			if elapsed := time.Since(frameStart); elapsed < budget {
				time.Sleep(budget - elapsed)
			}
		}
	}
	return nil
}

func dispatch(sess *session, req surface.SwapRequest, logger zerolog.Logger) {
	if err := sess.Dispatch(req); err != nil {
		logger.Warn().Err(err).Str("shader", req.ShaderPath).Msg("swap failed; keeping current shader")
	}
}

func surfaceSnapshot(window *previewWindow) []surface.SurfaceInfo {
	w, h := window.PixelSize()
	return []surface.SurfaceInfo{{
		SurfaceID:  previewSurfaceID,
		OutputName: "preview",
		Width:      int(w),
		Height:     int(h),
	}}
}

// loadConfig reads the playlist file, or synthesises a single-item
// continuous playlist around the -shader handle so both modes drive the
// same engine path.
func loadConfig(playlistPath, shaderHandle string) (*config.PlaylistFile, error) {
	if playlistPath != "" {
		f, err := os.Open(playlistPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return config.DecodePlaylist(f)
	}

	return &config.PlaylistFile{
		Version:  1,
		Defaults: config.PlaylistDefaults{Playlist: "solo"},
		Playlists: map[string]config.Playlist{
			"solo": {
				Mode:         "continuous",
				ItemDuration: config.Duration(24 * time.Hour),
				Items:        []config.PlaylistItem{{Handle: shaderHandle}},
			},
		},
	}, nil
}

// httpFetch is the asset download function handed to the shader
// repository; fetch concerns stay out of the core packages.
func httpFetch(url, destPath string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

func searchRoots(dirs string) []string {
	roots := []string{"."}
	for _, d := range strings.Split(dirs, ":") {
		if d != "" {
			roots = append(roots, d)
		}
	}
	return roots
}

func resolveCacheDir(dir string) string {
	if dir != "" {
		return dir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "lambdash", "shadertoy")
}

func resolveAPIKey(flagKey string) string {
	if flagKey != "" {
		return flagKey
	}
	return os.Getenv("SHADERTOY_KEY")
}

func resolveSeed(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return uint64(time.Now().UnixNano())
}

func parseVsync(s string) gpu.VsyncMode {
	switch s {
	case "never":
		return gpu.VsyncNever
	case "always":
		return gpu.VsyncAlways
	default:
		return gpu.VsyncCrossfade
	}
}
