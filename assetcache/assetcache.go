// Package assetcache memoises resolved shader assets per run: handle ->
// entry source path, channel bindings, and surface hints. Entries are
// never evicted while the process lives.
package assetcache

import (
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lambdash/lambdash/bindings"
	"github.com/lambdash/lambdash/handle"
	"github.com/lambdash/lambdash/lambdasherr"
	"github.com/lambdash/lambdash/manifest"
	"github.com/lambdash/lambdash/repository"
	"github.com/lambdash/lambdash/shaderapi"
)

// Entry is the resolved, cached shape of one handle: the entry pass's GLSL
// source path, its channel bindings, and the manifest's alpha/color hints.
type Entry struct {
	ShaderPath      string
	ChannelBindings bindings.ChannelBindings
	SurfaceAlpha    manifest.SurfaceAlpha
	ColorSpace      manifest.ColorSpace
	Issues          []bindings.Issue
}

// Cache is the single-owner (playlist engine), per-run memoisation of
// resolved shader assets keyed by handle text. It is guarded by a mutex
// because activation and refresh can be invoked from different
// goroutines driving the scheduler tick and a manual refresh request; no
// third-party cache library fits a never-evicting, process-lifetime map
// better than a guarded map (see DESIGN.md).
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	repository *repository.Repository
	log        zerolog.Logger
}

// New builds an empty Cache backed by repo.
func New(repo *repository.Repository, logger zerolog.Logger) *Cache {
	return &Cache{entries: make(map[string]*Entry), repository: repo, log: logger}
}

// Resolve returns the cached entry for h unless refresh is set or no entry
// exists yet, in which case it resolves via the repository, builds channel
// bindings, and caches the result.
func (c *Cache) Resolve(h handle.Handle, client repository.RemoteClient, fetch shaderapi.AssetFetcher, refresh bool) (*Entry, error) {
	key := h.Kind.String() + ":" + h.Value

	c.mu.Lock()
	if !refresh {
		if entry, ok := c.entries[key]; ok {
			c.mu.Unlock()
			return entry, nil
		}
	}
	c.mu.Unlock()

	src, err := c.repository.Resolve(h, client, fetch, refresh)
	if err != nil {
		return nil, err
	}

	bound, issues, err := bindings.Build(src.Pack)
	if err != nil {
		return nil, err
	}

	entry, ok := src.Pack.Manifest.EntryPass()
	if !ok {
		return nil, lambdasherr.New(lambdasherr.ManifestValidation, key)
	}

	shaderPath := entry.Source
	if !filepath.IsAbs(shaderPath) {
		shaderPath = filepath.Join(src.Pack.Root, shaderPath)
	}

	result := &Entry{
		ShaderPath:      shaderPath,
		ChannelBindings: bound,
		SurfaceAlpha:    src.Pack.Manifest.SurfaceAlpha,
		ColorSpace:      src.Pack.Manifest.ColorSpace,
		Issues:          issues,
	}

	for _, issue := range issues {
		c.log.Warn().Str("handle", key).Int("channel", issue.Channel).Msg(issue.Detail)
	}

	c.mu.Lock()
	c.entries[key] = result
	c.mu.Unlock()

	return result, nil
}
