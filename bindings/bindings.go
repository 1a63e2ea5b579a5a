// Package bindings builds the fixed four-slot Channel Bindings table from a
// loaded local shader pack's entry pass inputs.
package bindings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lambdash/lambdash/manifest"
)

const ChannelCount = 4

// TextureKind is the derived per-slot kind used to build the bind-group
// layout signature.
type TextureKind int

const (
	Empty TextureKind = iota
	Texture2D
	CubemapKind
	KeyboardKind
)

// Slot is one of the four channel binding slots.
type Slot struct {
	Kind TextureKind
	// Path is the resolved texture file path for Texture2D.
	Path string
	// Directory is the resolved cubemap directory for CubemapKind.
	Directory string
}

// ChannelBindings is the fixed-length table of four channel slots.
type ChannelBindings struct {
	Slots [ChannelCount]Slot
}

// LayoutSignature is the derived per-slot TextureKind sequence that
// determines whether two ChannelBindings can share a pipeline's bind-group
// layout. Swaps that change this cannot cross-fade.
type LayoutSignature [ChannelCount]TextureKind

func (b ChannelBindings) LayoutSignature() LayoutSignature {
	var sig LayoutSignature
	for i, s := range b.Slots {
		sig[i] = s.Kind
	}
	return sig
}

// IssueKind classifies a non-fatal channel binding problem.
type IssueKind int

const (
	TextureMissing IssueKind = iota
	CubemapFaceMissing
	Unsupported
)

// Issue is one non-fatal problem found while building bindings. Issues are
// never fatal: the renderer must tolerate the resulting empty slot by
// binding a placeholder.
type Issue struct {
	Channel int
	Kind    IssueKind
	Detail  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("channel %d: %s", i.Channel, i.Detail)
}

// canonicalCubeFaces is the face-stem probing order, matching GL's
// TEXTURE_CUBE_MAP_POSITIVE_X..NEGATIVE_Z upload order.
var canonicalCubeFaces = []string{"posx", "negx", "posy", "negy", "posz", "negz"}

var cubeFaceExtensions = []string{".png", ".jpg", ".jpeg"}

// Build walks pack's entry pass inputs and constructs the ChannelBindings
// table, returning any non-fatal issues alongside it.
func Build(pack *manifest.LocalPack) (ChannelBindings, []Issue, error) {
	var out ChannelBindings
	var issues []Issue

	entry, ok := pack.Manifest.EntryPass()
	if !ok {
		return out, nil, fmt.Errorf("bindings: pack has no entry pass %q", pack.Manifest.Entry)
	}

	for _, in := range entry.Inputs {
		if in.Channel < 0 || in.Channel >= ChannelCount {
			return out, issues, fmt.Errorf("bindings: channel %d out of range", in.Channel)
		}

		switch in.Kind {
		case manifest.SourceTexture:
			path := in.Path
			if !filepath.IsAbs(path) {
				path = filepath.Join(pack.Root, path)
			}
			if _, err := os.Stat(path); err != nil {
				issues = append(issues, Issue{Channel: in.Channel, Kind: TextureMissing, Detail: fmt.Sprintf("texture %q missing", in.Path)})
				continue
			}
			out.Slots[in.Channel] = Slot{Kind: Texture2D, Path: path}

		case manifest.SourceCubemap:
			dir := in.Directory
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(pack.Root, dir)
			}
			info, err := os.Stat(dir)
			if err != nil || !info.IsDir() {
				issues = append(issues, Issue{Channel: in.Channel, Kind: CubemapFaceMissing, Detail: fmt.Sprintf("cubemap directory %q missing", in.Directory)})
				continue
			}
			for _, face := range canonicalCubeFaces {
				if !probeFace(dir, face) {
					issues = append(issues, Issue{Channel: in.Channel, Kind: CubemapFaceMissing, Detail: fmt.Sprintf("cubemap %q missing face %q", in.Directory, face)})
				}
			}
			out.Slots[in.Channel] = Slot{Kind: CubemapKind, Directory: dir}

		case manifest.SourceKeyboard:
			out.Slots[in.Channel] = Slot{Kind: KeyboardKind}

		case manifest.SourceBuffer:
			issues = append(issues, Issue{Channel: in.Channel, Kind: Unsupported, Detail: "buffer channel sources are not supported"})

		case manifest.SourceAudio:
			issues = append(issues, Issue{Channel: in.Channel, Kind: Unsupported, Detail: "audio channel sources are not supported"})
		}
	}

	return out, issues, nil
}

func probeFace(dir, stem string) bool {
	for _, ext := range cubeFaceExtensions {
		if _, err := os.Stat(filepath.Join(dir, stem+ext)); err == nil {
			return true
		}
	}
	return false
}
