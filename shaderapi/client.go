// Package shaderapi fetches shader payloads from the Shadertoy HTTP API
// and materialises them into a cache directory shaped like a local pack.
package shaderapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lambdash/lambdash/lambdasherr"
)

const (
	apiBase   = "https://www.shadertoy.com/api/v1/"
	mediaBase = "https://www.shadertoy.com/"
)

// Config holds the validated API credentials and endpoint bases.
type Config struct {
	APIKey    string
	APIBase   *url.URL
	MediaBase *url.URL
}

// NewConfig validates apiKey and parses the default Shadertoy API and media
// bases.
func NewConfig(apiKey string) (*Config, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, lambdasherr.New(lambdasherr.RemoteUnavailable, "shadertoy api key is empty")
	}
	apiURL, err := url.Parse(apiBase)
	if err != nil {
		return nil, err
	}
	mediaURL, err := url.Parse(mediaBase)
	if err != nil {
		return nil, err
	}
	return &Config{APIKey: apiKey, APIBase: apiURL, MediaBase: mediaURL}, nil
}

// ShaderInfo is the "info" object of a Shadertoy API payload.
type ShaderInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// RenderInput is one input declaration on a render pass.
type RenderInput struct {
	ID      *int64 `json:"id"`
	Channel int    `json:"channel"`
	Src     string `json:"src"`
	CType   string `json:"ctype"`
}

// RenderOutput is one output declaration on a render pass.
type RenderOutput struct {
	ID      int64 `json:"id"`
	Channel int   `json:"channel"`
}

// RenderPass is one element of a payload's renderpass array.
type RenderPass struct {
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	Code    string         `json:"code"`
	Inputs  []RenderInput  `json:"inputs"`
	Outputs []RenderOutput `json:"outputs"`
}

// ShaderPayload is the "Shader" object returned by the API.
type ShaderPayload struct {
	Info        ShaderInfo   `json:"info"`
	RenderPasses []RenderPass `json:"renderpass"`
}

type shaderAPIResponse struct {
	Shader ShaderPayload `json:"Shader"`
}

type apiError struct {
	Error string `json:"Error"`
}

// Client fetches and caches Shadertoy shaders over HTTP.
type Client struct {
	HTTP   *http.Client
	Config *Config
	Log    zerolog.Logger
}

// NewClient builds a Client with a default http.Client.
func NewClient(cfg *Config, logger zerolog.Logger) *Client {
	return &Client{HTTP: &http.Client{}, Config: cfg, Log: logger}
}

// FetchShader retrieves the raw shader payload for shaderID.
func (c *Client) FetchShader(shaderID string) (*ShaderPayload, error) {
	u := *c.Config.APIBase
	u.Path = strings.TrimSuffix(u.Path, "/") + "/shaders/" + shaderID
	q := u.Query()
	q.Set("key", c.Config.APIKey)
	u.RawQuery = q.Encode()

	resp, err := c.HTTP.Get(u.String())
	if err != nil {
		return nil, lambdasherr.Wrap(lambdasherr.RemoteUnavailable, shaderID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, lambdasherr.Wrap(lambdasherr.RemoteUnavailable, shaderID, err)
	}

	var ok shaderAPIResponse
	if err := json.Unmarshal(body, &ok); err == nil && len(ok.Shader.RenderPasses) > 0 {
		return &ok.Shader, nil
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return nil, lambdasherr.New(lambdasherr.RemotePayloadInvalid, fmt.Sprintf("%s: %s", shaderID, apiErr.Error))
	}

	snippet := body
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return nil, lambdasherr.New(lambdasherr.RemotePayloadInvalid, fmt.Sprintf("%s: unrecognised response: %s", shaderID, string(snippet)))
}

// AssetFetcher downloads the bytes at url and writes them to destPath,
// creating parent directories as needed. Kept as a caller-provided function
// so fetch concerns stay outside the core.
type AssetFetcher func(url, destPath string) error

// ResolveMediaURL normalises a src attribute from the API into an absolute
// URL: absolute http(s) URLs pass through, protocol-relative "//..." URLs
// get "https:" prepended, and everything else is resolved against the
// configured media base.
func (c *Config) ResolveMediaURL(src string) string {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	base := *c.MediaBase
	base.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(src, "/")
	return base.String()
}
