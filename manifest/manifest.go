// Package manifest models the Shader Pack Manifest and Local Pack data
// types and pack loading.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lambdash/lambdash/config"
	"github.com/lambdash/lambdash/lambdasherr"
)

// SurfaceAlpha is the manifest-level alpha hint.
type SurfaceAlpha int

const (
	Opaque SurfaceAlpha = iota
	Transparent
)

// ColorSpace is the manifest-level color hint.
type ColorSpace int

const (
	ColorAuto ColorSpace = iota
	ColorGamma
	ColorLinear
)

// PassKind is the kind of a render pass.
type PassKind int

const (
	Image PassKind = iota
	Buffer
	Sound
	Cubemap
)

// InputKind tags a PassInput's Source.
type InputKind int

const (
	SourceTexture InputKind = iota
	SourceCubemap
	SourceBuffer
	SourceAudio
	SourceKeyboard
)

// PassInput is one channel input declaration on a pass.
type PassInput struct {
	Channel int
	Kind    InputKind
	// Path holds the Texture/Audio path, Directory the Cubemap dir, Name the
	// referenced Buffer pass name. Exactly one is meaningful per Kind.
	Path      string
	Directory string
	Name      string
}

// Pass is one manifest render pass.
type Pass struct {
	Name   string
	Kind   PassKind
	Source string
	Inputs []PassInput
}

// ShaderPackManifest is the parsed, validated shape of shader.toml.
type ShaderPackManifest struct {
	Name         string
	Entry        string
	SurfaceAlpha SurfaceAlpha
	ColorSpace   ColorSpace
	Description  string
	Tags         []string
	Passes       []Pass
}

// EntryPass returns the pass whose name matches Entry.
func (m *ShaderPackManifest) EntryPass() (*Pass, bool) {
	for i := range m.Passes {
		if m.Passes[i].Name == m.Entry {
			return &m.Passes[i], true
		}
	}
	return nil, false
}

// Validate reports structural problems: missing entry pass,
// channel > 3, undefined buffer reference. It returns the full list of
// issues found, not just the first.
func (m *ShaderPackManifest) Validate() []string {
	var issues []string

	if _, ok := m.EntryPass(); !ok {
		issues = append(issues, fmt.Sprintf("entry pass %q not found among declared passes", m.Entry))
	}

	names := make(map[string]bool, len(m.Passes))
	for _, p := range m.Passes {
		names[p.Name] = true
	}

	for _, p := range m.Passes {
		for _, in := range p.Inputs {
			if in.Channel > 3 || in.Channel < 0 {
				issues = append(issues, fmt.Sprintf("pass %q: channel %d out of range 0..=3", p.Name, in.Channel))
			}
			if in.Kind == SourceBuffer && !names[in.Name] {
				issues = append(issues, fmt.Sprintf("pass %q: buffer input references undefined pass %q", p.Name, in.Name))
			}
		}
	}
	return issues
}

func parseSurfaceAlpha(s string) SurfaceAlpha {
	if strings.EqualFold(s, "transparent") {
		return Transparent
	}
	return Opaque
}

func parseColorSpace(s string) ColorSpace {
	switch strings.ToLower(s) {
	case "gamma":
		return ColorGamma
	case "linear":
		return ColorLinear
	default:
		return ColorAuto
	}
}

func parsePassKind(s string) (PassKind, bool) {
	switch strings.ToLower(s) {
	case "image":
		return Image, true
	case "buffer":
		return Buffer, true
	case "sound":
		return Sound, true
	case "cubemap":
		return Cubemap, true
	default:
		return 0, false
	}
}

// FromFile converts a decoded config.ManifestFile into a ShaderPackManifest,
// without touching disk.
func FromFile(f *config.ManifestFile) (*ShaderPackManifest, error) {
	m := &ShaderPackManifest{
		Name:         f.Name,
		Entry:        f.Entry,
		SurfaceAlpha: parseSurfaceAlpha(f.SurfaceAlpha),
		ColorSpace:   parseColorSpace(f.ColorSpace),
		Description:  f.Description,
		Tags:         f.Tags,
	}

	for _, fp := range f.Passes {
		kind, ok := parsePassKind(fp.Kind)
		if !ok {
			return nil, lambdasherr.New(lambdasherr.ManifestValidation, fmt.Sprintf("pass %q: unknown kind %q", fp.Name, fp.Kind))
		}
		pass := Pass{Name: fp.Name, Kind: kind, Source: fp.Source}
		for _, fi := range fp.Inputs {
			in := PassInput{Channel: fi.Channel}
			switch strings.ToLower(fi.Type) {
			case "texture":
				in.Kind = SourceTexture
				in.Path = fi.Path
			case "cubemap":
				in.Kind = SourceCubemap
				in.Directory = fi.Directory
			case "buffer":
				in.Kind = SourceBuffer
				in.Name = fi.Name
			case "audio":
				in.Kind = SourceAudio
				in.Path = fi.Path
			case "keyboard":
				in.Kind = SourceKeyboard
			default:
				return nil, lambdasherr.New(lambdasherr.ManifestValidation, fmt.Sprintf("pass %q channel %d: unknown input type %q", fp.Name, fi.Channel, fi.Type))
			}
			pass.Inputs = append(pass.Inputs, in)
		}
		m.Passes = append(m.Passes, pass)
	}
	return m, nil
}

// LocalPack is an immutable, loaded shader pack: a root directory and its
// validated manifest.
type LocalPack struct {
	Root     string
	Manifest *ShaderPackManifest
}

// Load reads shader.toml from root, validates it, and ensures every pass's
// source file exists on disk.
func Load(root string) (*LocalPack, error) {
	manifestPath := filepath.Join(root, "shader.toml")
	f, err := os.Open(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lambdasherr.Wrap(lambdasherr.ManifestMissing, manifestPath, err)
		}
		return nil, lambdasherr.Wrap(lambdasherr.ManifestMissing, manifestPath, err)
	}
	defer f.Close()

	decoded, err := config.DecodeManifest(f)
	if err != nil {
		return nil, lambdasherr.Wrap(lambdasherr.ManifestParse, manifestPath, err)
	}

	m, err := FromFile(decoded)
	if err != nil {
		return nil, err
	}

	if issues := m.Validate(); len(issues) > 0 {
		return nil, lambdasherr.New(lambdasherr.ManifestValidation, strings.Join(issues, "; "))
	}

	if err := ensureSourcesExist(root, m); err != nil {
		return nil, err
	}

	return &LocalPack{Root: root, Manifest: m}, nil
}

// ensureSourcesExist checks that every declared pass's source file
// exists on disk after resolution.
func ensureSourcesExist(root string, m *ShaderPackManifest) error {
	var missing []string
	for _, p := range m.Passes {
		path := p.Source
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, fmt.Sprintf("pass %q source %q", p.Name, p.Source))
		}
	}
	if len(missing) > 0 {
		return lambdasherr.New(lambdasherr.ManifestValidation, strings.Join(missing, "; "))
	}
	return nil
}
