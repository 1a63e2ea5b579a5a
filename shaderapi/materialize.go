package shaderapi

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lambdash/lambdash/config"
	"github.com/lambdash/lambdash/lambdasherr"
)

// passArtifact is a single pass source file to be written relative to the
// cache directory.
type passArtifact struct {
	sourceRel  string
	sourceCode string
}

// assetArtifact is a single binary asset to download relative to the cache
// directory.
type assetArtifact struct {
	url            string
	destinationRel string
}

// cachePlan is the full set of writes FetchAndCache performs: the
// synthesised manifest, the per-pass GLSL files, and the downloadable
// assets.
type cachePlan struct {
	manifest      config.ManifestFile
	passArtifacts []passArtifact
	assets        []assetArtifact
}

// FetchAndCache fetches shaderID, builds its cache plan, and writes the
// pass sources, a synthesised shader.toml, and (via fetch) every
// referenced asset into cacheDir.
func (c *Client) FetchAndCache(shaderID, cacheDir string, fetch AssetFetcher) error {
	payload, err := c.FetchShader(shaderID)
	if err != nil {
		return err
	}
	return c.materialize(payload, cacheDir, fetch)
}

func (c *Client) materialize(payload *ShaderPayload, cacheDir string, fetch AssetFetcher) error {
	plan, err := buildCachePlan(payload, c.Log)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return lambdasherr.Wrap(lambdasherr.DownloadFailed, cacheDir, err)
	}

	for _, pa := range plan.passArtifacts {
		dest := filepath.Join(cacheDir, pa.sourceRel)
		if err := os.WriteFile(dest, []byte(pa.sourceCode), 0o644); err != nil {
			return lambdasherr.Wrap(lambdasherr.DownloadFailed, dest, err)
		}
	}

	for _, a := range plan.assets {
		dest := filepath.Join(cacheDir, a.destinationRel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return lambdasherr.Wrap(lambdasherr.DownloadFailed, dest, err)
		}
		resolved := c.Config.ResolveMediaURL(a.url)
		if err := fetch(resolved, dest); err != nil {
			return lambdasherr.Wrap(lambdasherr.DownloadFailed, dest, err)
		}
	}

	encoded, err := config.EncodeManifest(&plan.manifest)
	if err != nil {
		return lambdasherr.Wrap(lambdasherr.RemotePayloadInvalid, "shader.toml", err)
	}
	if err := os.WriteFile(filepath.Join(cacheDir, "shader.toml"), encoded, 0o644); err != nil {
		return lambdasherr.Wrap(lambdasherr.DownloadFailed, "shader.toml", err)
	}

	return nil
}

// buildCachePlan sanitises and dedups pass names, injects any Common
// pass code into every other pass, chooses the entry pass, and schedules
// per-channel asset downloads.
func buildCachePlan(payload *ShaderPayload, logger zerolog.Logger) (*cachePlan, error) {
	if len(payload.RenderPasses) == 0 {
		return nil, lambdasherr.New(lambdasherr.RemotePayloadInvalid, "shader payload contains no render passes")
	}

	used := map[string]bool{}
	passNames := make([]string, len(payload.RenderPasses))
	outputToPass := map[int64]string{}
	nameLookup := map[string]string{}

	for i, p := range payload.RenderPasses {
		base := sanitizeLabel(p.Name)
		if base == "" {
			base = fmt.Sprintf("pass%d", i)
		}
		unique := makeUniqueName(base, used)
		nameLookup[strings.ToLower(p.Name)] = unique
		for _, out := range p.Outputs {
			outputToPass[out.ID] = unique
		}
		passNames[i] = unique
	}

	entry := passNames[0]
	for i, p := range payload.RenderPasses {
		if strings.EqualFold(p.Type, "image") {
			entry = passNames[i]
			break
		}
	}

	var commonCode strings.Builder
	for _, p := range payload.RenderPasses {
		if strings.EqualFold(p.Type, "common") {
			commonCode.WriteString(p.Code)
			if !strings.HasSuffix(commonCode.String(), "\n") {
				commonCode.WriteString("\n")
			}
		}
	}

	var plan cachePlan
	var manifestPasses []config.ManifestPass
	assetSeen := map[string]bool{}

	for i, p := range payload.RenderPasses {
		if strings.EqualFold(p.Type, "common") {
			continue
		}
		passName := passNames[i]
		sourceRel := passName + ".glsl"

		var inputs []config.ManifestInput
		for _, in := range p.Inputs {
			if in.Channel > 3 {
				return nil, lambdasherr.New(lambdasherr.RemotePayloadInvalid, fmt.Sprintf("pass %q references channel %d which exceeds supported range", p.Name, in.Channel))
			}
			ctype := strings.ToLower(in.CType)
			switch ctype {
			case "buffer":
				bufferName, ok := resolveBufferTarget(in, outputToPass, nameLookup)
				if !ok {
					return nil, lambdasherr.New(lambdasherr.RemotePayloadInvalid, fmt.Sprintf("pass %q references buffer input with unknown target", p.Name))
				}
				inputs = append(inputs, config.ManifestInput{Channel: in.Channel, Type: "buffer", Name: bufferName})

			case "texture":
				if in.Src == "" {
					return nil, lambdasherr.New(lambdasherr.RemotePayloadInvalid, fmt.Sprintf("texture input missing src in pass %q", p.Name))
				}
				filename := deriveFilename(in.Src, fmt.Sprintf("%s_ch%d", passName, in.Channel), "png")
				destRel := filepath.Join("textures", filename)
				scheduleAsset(&plan, assetSeen, in.Src, destRel)
				inputs = append(inputs, config.ManifestInput{Channel: in.Channel, Type: "texture", Path: destRel})

			case "cubemap":
				if in.Src == "" {
					return nil, lambdasherr.New(lambdasherr.RemotePayloadInvalid, fmt.Sprintf("cubemap input missing src in pass %q", p.Name))
				}
				filename := deriveFilename(in.Src, fmt.Sprintf("%s_cube", passName), "png")
				stem := sanitizeLabel(strings.TrimSuffix(filename, filepath.Ext(filename)))
				if stem == "" {
					stem = "cubemap"
				}
				destDir := filepath.Join("cubemaps", stem)
				destRel := filepath.Join(destDir, filename)
				scheduleAsset(&plan, assetSeen, in.Src, destRel)
				inputs = append(inputs, config.ManifestInput{Channel: in.Channel, Type: "cubemap", Directory: destDir})

			case "music", "sound", "musicstream":
				if in.Src == "" {
					return nil, lambdasherr.New(lambdasherr.RemotePayloadInvalid, fmt.Sprintf("audio input missing src in pass %q", p.Name))
				}
				filename := deriveFilename(in.Src, fmt.Sprintf("%s_ch%d", passName, in.Channel), "mp3")
				destRel := filepath.Join("audio", filename)
				scheduleAsset(&plan, assetSeen, in.Src, destRel)
				inputs = append(inputs, config.ManifestInput{Channel: in.Channel, Type: "audio", Path: destRel})

			default:
				// Gracefully ignore unsupported channel types (e.g. 'keyboard',
				// 'webcam'); the renderer binds a placeholder, which is enough
				// for most shaders to keep running.
				logger.Warn().Str("pass", p.Name).Int("channel", in.Channel).Str("channel_type", ctype).Msg("ignoring unsupported channel type")
			}
		}

		kind, err := mapPassKind(p.Type)
		if err != nil {
			return nil, err
		}
		manifestPasses = append(manifestPasses, config.ManifestPass{
			Name:   passName,
			Kind:   kind,
			Source: sourceRel,
			Inputs: inputs,
		})

		sourceCode := p.Code
		if commonCode.Len() > 0 {
			sourceCode = commonCode.String() + p.Code
		}
		plan.passArtifacts = append(plan.passArtifacts, passArtifact{sourceRel: sourceRel, sourceCode: sourceCode})
	}

	plan.manifest = config.ManifestFile{
		Name:        payload.Info.Name,
		Entry:       entry,
		SurfaceAlpha: "opaque",
		Description: payload.Info.Description,
		Tags:        payload.Info.Tags,
		Passes:      manifestPasses,
	}

	return &plan, nil
}

func resolveBufferTarget(in RenderInput, outputToPass map[int64]string, nameLookup map[string]string) (string, bool) {
	if in.ID != nil {
		if name, ok := outputToPass[*in.ID]; ok {
			return name, true
		}
	}
	if in.Src != "" {
		if name, ok := nameLookup[strings.ToLower(in.Src)]; ok {
			return name, true
		}
	}
	return "", false
}

func scheduleAsset(plan *cachePlan, seen map[string]bool, url, destRel string) {
	if seen[destRel] {
		return
	}
	seen[destRel] = true
	plan.assets = append(plan.assets, assetArtifact{url: url, destinationRel: destRel})
}

func mapPassKind(kind string) (string, error) {
	switch strings.ToLower(kind) {
	case "image":
		return "image", nil
	case "buffer", "compute":
		return "buffer", nil
	case "sound", "music":
		return "sound", nil
	case "cubemap":
		return "cubemap", nil
	default:
		return "", lambdasherr.New(lambdasherr.UnsupportedPassKind, kind)
	}
}

// sanitizeLabel keeps ASCII letters and digits (lowercased), turns each run
// of whitespace, '-' and '_' after them into a single underscore, drops
// every other character, trims trailing underscores, and prefixes a
// leading digit with 'p' so the result is always a safe filename stem.
func sanitizeLabel(input string) string {
	var b strings.Builder
	prevUnderscore := false
	for _, ch := range input {
		switch {
		case isASCIIAlnum(ch):
			b.WriteRune(toLowerASCII(ch))
			prevUnderscore = false
		case (isASCIISpace(ch) || ch == '-' || ch == '_') && b.Len() > 0 && !prevUnderscore:
			b.WriteRune('_')
			prevUnderscore = true
		}
	}
	result := strings.TrimRight(b.String(), "_")
	if result == "" {
		return ""
	}
	if result[0] >= '0' && result[0] <= '9' {
		result = "p" + result
	}
	return result
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isASCIISpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func toLowerASCII(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

func makeUniqueName(base string, used map[string]bool) string {
	if !used[base] {
		used[base] = true
		return base
	}
	for counter := 2; ; counter++ {
		candidate := fmt.Sprintf("%s_%d", base, counter)
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}

// deriveFilename extracts a filename from a src URL, stripping any query
// or fragment, falling back to fallbackBase+defaultExt when the URL has no
// usable path segment.
func deriveFilename(src, fallbackBase, defaultExt string) string {
	trimmed := src
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	base := filepath.Base(trimmed)
	if base == "" || base == "." || base == "/" || !strings.Contains(base, ".") {
		return fallbackBase + "." + defaultExt
	}
	return base
}
