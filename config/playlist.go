package config

import (
	"io"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// PlaylistFile is the raw decoded shape of a playlist TOML file.
type PlaylistFile struct {
	Version                 int                   `toml:"version"`
	WorkspaceSwitchCrossfade Duration             `toml:"workspace_switch_crossfade"`
	Defaults                PlaylistDefaults      `toml:"defaults"`
	Playlists               map[string]Playlist   `toml:"playlists"`
	Targets                 map[string]string     `toml:"targets"`
}

// PlaylistDefaults is the [defaults] table.
type PlaylistDefaults struct {
	Playlist  string `toml:"playlist"`
	FPS       *float64 `toml:"fps"`
	Antialias string `toml:"antialias"`
}

// Playlist is one [playlists.<name>] table.
type Playlist struct {
	Mode         string          `toml:"mode"`
	ItemDuration Duration        `toml:"item_duration"`
	Crossfade    Duration        `toml:"crossfade"`
	FPS          *float64        `toml:"fps"`
	Antialias    string          `toml:"antialias"`
	Items        []PlaylistItem  `toml:"items"`
}

// PlaylistItem is one [[playlists.<name>.items]] table.
type PlaylistItem struct {
	Handle      string    `toml:"handle"`
	Duration    *Duration `toml:"duration"`
	FPS         *float64  `toml:"fps"`
	Antialias   *string   `toml:"antialias"`
	RefreshOnce bool      `toml:"refresh_once"`
	Mode        string    `toml:"mode"`
	StillTime   *float64  `toml:"still_time"`
}

// Duration decodes a TOML value expressed in seconds (an integer or
// float) into a time.Duration, so playlist files can say item_duration =
// 1 or crossfade = 2.5.
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// UnmarshalText implements encoding.TextUnmarshaler so Duration fields
// accept plain numeric seconds values from the TOML document.
func (d *Duration) UnmarshalText(text []byte) error {
	seconds, err := strconv.ParseFloat(string(text), 64)
	if err != nil {
		return err
	}
	*d = Duration(time.Duration(seconds * float64(time.Second)))
	return nil
}

// MarshalTOML implements toml.Marshaler, emitting plain seconds.
func (d Duration) MarshalTOML() ([]byte, error) {
	seconds := time.Duration(d).Seconds()
	return toml.Marshal(seconds)
}

// DecodePlaylist decodes a playlist TOML document from r.
func DecodePlaylist(r io.Reader) (*PlaylistFile, error) {
	var p PlaylistFile
	dec := toml.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
