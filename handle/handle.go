// Package handle parses textual shader handles into a typed Handle value.
// Parsing is pure: it never touches the network or the filesystem.
package handle

import (
	"net/url"
	"os"
	"strings"

	"github.com/lambdash/lambdash/lambdasherr"
)

// Kind tags which variant a Handle holds.
type Kind int

const (
	// RawPath is an absolute or relative filesystem path.
	RawPath Kind = iota
	// LocalPackName is an identifier resolved against an ordered list of
	// local search roots.
	LocalPackName
	// ShadertoyID materialises under a per-id subdirectory of the cache root.
	ShadertoyID
)

func (k Kind) String() string {
	switch k {
	case RawPath:
		return "raw_path"
	case LocalPackName:
		return "local_pack_name"
	case ShadertoyID:
		return "shadertoy_id"
	default:
		return "unknown"
	}
}

// Handle is a tagged, immutable reference to a shader. Value holds the
// path, pack name, or shadertoy id depending on Kind.
type Handle struct {
	Kind  Kind
	Value string
}

func (h Handle) String() string { return h.Value }

const shadertoySchemePrefix = "shadertoy://"
const localSchemePrefix = "shader://"

var shadertoyHosts = map[string]bool{
	"shadertoy.com":     true,
	"www.shadertoy.com": true,
}

// Parse converts handle text into a Handle, following the prefix rules in
// order: shadertoy:// scheme, shadertoy.com URL, shader:// scheme, then a
// path (absolute, or containing a path separator, or beginning with ~ or
// $). Anything else is ambiguous and fails with HandleParse.
func Parse(text string) (Handle, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Handle{}, lambdasherr.New(lambdasherr.HandleParse, text)
	}

	if strings.HasPrefix(trimmed, shadertoySchemePrefix) {
		id := strings.TrimPrefix(trimmed, shadertoySchemePrefix)
		if id == "" {
			return Handle{}, lambdasherr.New(lambdasherr.HandleParse, text)
		}
		return Handle{Kind: ShadertoyID, Value: id}, nil
	}

	if id, ok := parseShadertoyURL(trimmed); ok {
		if id == "" {
			return Handle{}, lambdasherr.New(lambdasherr.HandleParse, text)
		}
		return Handle{Kind: ShadertoyID, Value: id}, nil
	}

	if strings.HasPrefix(trimmed, localSchemePrefix) {
		name := strings.TrimPrefix(trimmed, localSchemePrefix)
		if name == "" {
			return Handle{}, lambdasherr.New(lambdasherr.HandleParse, text)
		}
		return Handle{Kind: LocalPackName, Value: name}, nil
	}

	if looksLikePath(trimmed) {
		return Handle{Kind: RawPath, Value: expandPath(trimmed)}, nil
	}

	return Handle{}, lambdasherr.New(lambdasherr.HandleParse, text)
}

// parseShadertoyURL recognises full shadertoy.com URLs and extracts the
// last non-empty path segment before any query or fragment as the id.
func parseShadertoyURL(text string) (id string, ok bool) {
	if !strings.HasPrefix(text, "http://") && !strings.HasPrefix(text, "https://") {
		return "", false
	}
	u, err := url.Parse(text)
	if err != nil {
		return "", false
	}
	if !shadertoyHosts[strings.ToLower(u.Host)] {
		return "", false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i], true
		}
	}
	return "", true
}

// looksLikePath reports whether text should be treated as a filesystem
// path: absolute, containing a path separator, or starting with a home or
// environment-variable expansion marker.
func looksLikePath(text string) bool {
	if strings.HasPrefix(text, "/") || strings.HasPrefix(text, "~") || strings.HasPrefix(text, "$") {
		return true
	}
	return strings.Contains(text, "/")
}

// expandPath expands a leading ~ to the user's home directory and $VAR /
// ${VAR} references, mirroring common shell expansion so RawPath handles
// match what a user typed in a playlist file.
func expandPath(text string) string {
	expanded := os.ExpandEnv(text)
	if strings.HasPrefix(expanded, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			rest := strings.TrimPrefix(expanded, "~")
			expanded = home + rest
		}
	}
	return expanded
}
