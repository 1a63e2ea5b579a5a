package scheduler

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambdash/lambdash/config"
)

func decodePlaylistFile(t *testing.T, toml string) *config.PlaylistFile {
	t.Helper()
	f, err := config.DecodePlaylist(strings.NewReader(toml))
	require.NoError(t, err)
	return f
}

// TestAdvancesContinuousPlaylist: a continuous playlist returns items in
// declaration order, cycling.
func TestAdvancesContinuousPlaylist(t *testing.T) {
	cfg := decodePlaylistFile(t, `
version = 1

[playlists.test]
mode = "continuous"
item_duration = 1

[[playlists.test.items]]
handle = "one"
[[playlists.test.items]]
handle = "two"
`)
	s := New(cfg, 1)
	target := TargetID("output:A")
	now := time.Now()

	first, err := s.SetTarget(target, "test", now)
	require.NoError(t, err)
	assert.Equal(t, "one", first.Item.Handle)

	now = now.Add(time.Second)
	changes := s.Tick(now)
	require.Len(t, changes, 1)
	assert.Equal(t, "two", changes[0].Item.Handle)

	now = now.Add(time.Second)
	changes = s.Tick(now)
	require.Len(t, changes, 1)
	assert.Equal(t, "one", changes[0].Item.Handle, "continuous playlist cycles back to the first item")
}

// TestShuffleGeneratesOrder: a shuffle playlist's first selection is one
// of its items.
func TestShuffleGeneratesOrder(t *testing.T) {
	cfg := decodePlaylistFile(t, `
version = 1

[playlists.test]
mode = "shuffle"
item_duration = 1

[[playlists.test.items]]
handle = "one"
[[playlists.test.items]]
handle = "two"
[[playlists.test.items]]
handle = "three"
`)
	s := New(cfg, 42)
	target := TargetID("output:A")

	first, err := s.SetTarget(target, "test", time.Now())
	require.NoError(t, err)
	assert.Contains(t, []string{"one", "two", "three"}, first.Item.Handle)
}

func TestShufflePlaylistVisitsEachItemExactlyOnce(t *testing.T) {
	cfg := decodePlaylistFile(t, `
version = 1

[playlists.test]
mode = "shuffle"
item_duration = 1

[[playlists.test.items]]
handle = "one"
[[playlists.test.items]]
handle = "two"
[[playlists.test.items]]
handle = "three"
`)
	s := New(cfg, 7)
	target := TargetID("output:A")
	now := time.Now()

	seen := map[string]int{}
	first, err := s.SetTarget(target, "test", now)
	require.NoError(t, err)
	seen[first.Item.Handle]++

	for i := 0; i < 2; i++ {
		now = now.Add(time.Second)
		changes := s.Tick(now)
		require.Len(t, changes, 1)
		seen[changes[0].Item.Handle]++
	}

	assert.Equal(t, map[string]int{"one": 1, "two": 1, "three": 1}, seen)
}

func TestSetTargetUnknownPlaylist(t *testing.T) {
	cfg := decodePlaylistFile(t, "version = 1\n")
	s := New(cfg, 1)
	_, err := s.SetTarget("output:A", "missing", time.Now())
	require.Error(t, err)
}

func TestSkipTargetAdvancesImmediately(t *testing.T) {
	cfg := decodePlaylistFile(t, `
version = 1

[playlists.test]
mode = "continuous"
item_duration = 100

[[playlists.test.items]]
handle = "one"
[[playlists.test.items]]
handle = "two"
`)
	s := New(cfg, 1)
	target := TargetID("output:A")
	now := time.Now()
	_, err := s.SetTarget(target, "test", now)
	require.NoError(t, err)

	change, ok := s.SkipTarget(target, now)
	require.True(t, ok)
	assert.Equal(t, "two", change.Item.Handle)

	_, ok = s.SkipTarget("unknown", now)
	assert.False(t, ok)
}
