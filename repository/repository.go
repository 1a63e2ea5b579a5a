// Package repository turns a shader Handle into a loaded ShaderSource,
// resolving local packs against an ordered list of search roots and
// fetching/materialising remote Shadertoy ids into a cache directory.
package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lambdash/lambdash/handle"
	"github.com/lambdash/lambdash/lambdasherr"
	"github.com/lambdash/lambdash/manifest"
	"github.com/lambdash/lambdash/shaderapi"
)

// SourceKind tags a resolved ShaderSource.
type SourceKind int

const (
	LocalSource SourceKind = iota
	CachedRemoteSource
)

// ShaderSource is the result of resolving a Handle: either a pack loaded
// directly from a local root, or one cached under the repository's cache
// root keyed by a remote id.
type ShaderSource struct {
	Kind     SourceKind
	ID       string // non-empty only for CachedRemoteSource
	CacheDir string // non-empty only for CachedRemoteSource
	Pack     *manifest.LocalPack
}

// RemoteClient is the subset of shaderapi.Client the repository needs,
// kept as an interface so tests can substitute a fake without spinning up
// HTTP.
type RemoteClient interface {
	FetchAndCache(shaderID, cacheDir string, fetch shaderapi.AssetFetcher) error
}

// Repository resolves handles into loaded shader sources.
type Repository struct {
	LocalRoots []string
	CacheRoot  string
	Log        zerolog.Logger
}

// New builds a Repository over the given local search roots and cache
// root.
func New(localRoots []string, cacheRoot string, logger zerolog.Logger) *Repository {
	return &Repository{LocalRoots: localRoots, CacheRoot: cacheRoot, Log: logger}
}

// Resolve turns h into a ShaderSource. client may be nil, in which case a
// remote id can only be resolved from an existing cache entry.
func (r *Repository) Resolve(h handle.Handle, client RemoteClient, fetch shaderapi.AssetFetcher, refresh bool) (*ShaderSource, error) {
	switch h.Kind {
	case handle.RawPath:
		return r.loadLocalPack(h.Value, h.Value)
	case handle.LocalPackName:
		return r.loadLocalPack(h.Value, h.Value)
	case handle.ShadertoyID:
		return r.resolveRemote(h.Value, client, fetch, refresh)
	default:
		return nil, lambdasherr.New(lambdasherr.HandleParse, h.Value)
	}
}

// loadLocalPack mirrors load_local_pack: if key is absolute or exists as a
// path directly, load it; otherwise try it relative to each search root in
// order, returning a CacheMiss error listing the roots searched.
func (r *Repository) loadLocalPack(key, original string) (*ShaderSource, error) {
	candidates := []string{}
	if filepath.IsAbs(key) {
		candidates = append(candidates, key)
	} else if _, err := os.Stat(key); err == nil {
		candidates = append(candidates, key)
	} else {
		for _, root := range r.LocalRoots {
			candidates = append(candidates, filepath.Join(root, key))
		}
	}

	for _, candidate := range candidates {
		pack, err := manifest.Load(candidate)
		if err == nil {
			return &ShaderSource{Kind: LocalSource, Pack: pack}, nil
		}
	}

	return nil, lambdasherr.New(lambdasherr.CacheMiss,
		fmt.Sprintf("%s (searched roots: %s)", original, strings.Join(r.LocalRoots, ", ")))
}

// resolveRemote mirrors ensure_remote_cached / load_cached_remote.
func (r *Repository) resolveRemote(id string, client RemoteClient, fetch shaderapi.AssetFetcher, refresh bool) (*ShaderSource, error) {
	cacheDir := filepath.Join(r.CacheRoot, id)
	exists := dirExists(cacheDir)

	if refresh && exists {
		if err := os.RemoveAll(cacheDir); err != nil {
			return nil, lambdasherr.Wrap(lambdasherr.CacheCorrupt, cacheDir, err)
		}
		exists = false
	}

	if exists {
		if src, err := r.loadCachedRemote(id, cacheDir); err == nil {
			return src, nil
		}
		// Corrupt cache: wipe and refetch below.
		if err := os.RemoveAll(cacheDir); err != nil {
			return nil, lambdasherr.Wrap(lambdasherr.CacheCorrupt, cacheDir, err)
		}
		exists = false
	}

	if !exists {
		if client == nil {
			return nil, lambdasherr.New(lambdasherr.CacheMiss, id)
		}
		if err := client.FetchAndCache(id, cacheDir, fetch); err != nil {
			return nil, lambdasherr.Wrap(lambdasherr.RemoteUnavailable, id, err)
		}
	}

	return r.loadCachedRemote(id, cacheDir)
}

func (r *Repository) loadCachedRemote(id, cacheDir string) (*ShaderSource, error) {
	if !dirExists(cacheDir) {
		return nil, lambdasherr.New(lambdasherr.CacheMiss, id)
	}
	pack, err := manifest.Load(cacheDir)
	if err != nil {
		return nil, err
	}
	return &ShaderSource{Kind: CachedRemoteSource, ID: id, CacheDir: cacheDir, Pack: pack}, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
