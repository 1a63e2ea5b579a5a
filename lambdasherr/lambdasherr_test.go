package lambdasherr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesKindAndSubject(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(DownloadFailed, "textures/foo.png", base)

	var got *Error
	require.True(t, errors.As(err, &got))
	assert.Equal(t, DownloadFailed, got.Kind)
	assert.Equal(t, "textures/foo.png", got.Subject)
	assert.ErrorIs(t, err, base)
}

func TestWrapDoesNotDoubleWrapSameKind(t *testing.T) {
	inner := New(ManifestValidation, "shader.toml")
	outer := Wrap(ManifestValidation, "shader.toml", inner)
	assert.Same(t, inner, outer)
}

func TestIs(t *testing.T) {
	err := New(NoPlaylistMapping, "output:HDMI-A-1")
	assert.True(t, Is(err, NoPlaylistMapping))
	assert.False(t, Is(err, CacheMiss))
	assert.False(t, Is(errors.New("plain"), CacheMiss))
}
