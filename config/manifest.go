// Package config holds the pure TOML data structures for shader-pack
// manifests (shader.toml) and playlist files, decoded with
// github.com/pelletier/go-toml/v2. It performs no CLI parsing, no
// environment-variable directory discovery, and no bundled-default
// extraction: callers hand it an io.Reader of already-located file content.
package config

import (
	"io"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFile is the raw decoded shape of shader.toml, before it is
// converted into manifest.ShaderPackManifest.
type ManifestFile struct {
	Name         string           `toml:"name"`
	Entry        string           `toml:"entry"`
	SurfaceAlpha string           `toml:"surface_alpha"`
	ColorSpace   string           `toml:"color_space"`
	Description  string           `toml:"description"`
	Tags         []string         `toml:"tags"`
	Passes       []ManifestPass   `toml:"passes"`
}

// ManifestPass is one [[passes]] table.
type ManifestPass struct {
	Name   string          `toml:"name"`
	Kind   string          `toml:"kind"`
	Source string          `toml:"source"`
	Inputs []ManifestInput `toml:"inputs"`
}

// ManifestInput is one [[passes.inputs]] table. Only the fields relevant to
// its Type are populated by the author; all are optional strings so a
// single struct can decode every input kind.
type ManifestInput struct {
	Channel   int    `toml:"channel"`
	Type      string `toml:"type"`
	Path      string `toml:"path"`
	Directory string `toml:"directory"`
	Name      string `toml:"name"`
}

// DecodeManifest decodes shader.toml content from r.
func DecodeManifest(r io.Reader) (*ManifestFile, error) {
	var m ManifestFile
	dec := toml.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// EncodeManifest renders m as TOML, used when materialising a remote shader
// into a synthesised shader.toml.
func EncodeManifest(m *ManifestFile) ([]byte, error) {
	return toml.Marshal(m)
}
